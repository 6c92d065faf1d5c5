package intent

import "github.com/seu-repo/mirror-voice/internal/domain"

// Example is one labelled training utterance.
type Example struct {
	Text   string
	Intent domain.Intent
}

// SeedCorpus is the fixed training set of the classifier strategy.
var SeedCorpus = []Example{
	{"what is the weather like", domain.IntentWeather},
	{"tell me the forecast", domain.IntentWeather},
	{"what's the temperature", domain.IntentWeather},
	{"set an alarm", domain.IntentAlarm},
	{"wake me up at", domain.IntentAlarm},
	{"remind me to", domain.IntentReminder},
	{"set a reminder to", domain.IntentReminder},
	{"add to my to-do list", domain.IntentTodo},
	{"put this on my to-do list", domain.IntentTodo},
}
