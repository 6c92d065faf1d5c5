package intent

import (
	"fmt"
	"math/rand"

	"go.uber.org/zap"

	"github.com/seu-repo/mirror-voice/internal/domain"
)

const (
	// FallbackResponse answers anything no handler can serve.
	FallbackResponse = "I'm not sure how to help with that. Can you please rephrase?"
	// UnknownTimeResponse answers an alarm request without a usable time.
	UnknownTimeResponse = "I couldn't understand the time. Please try again."
)

// WeatherConditions is the fixed set the mock weather handler picks from.
var WeatherConditions = [...]string{"sunny", "cloudy", "rainy", "snowy"}

const (
	minTemperature   = 10
	temperatureRange = 30
)

// RandomSource is satisfied by *rand.Rand from math/rand/v2.
type RandomSource interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.Intn(n) }

// HandlerFunc produces the response for a resolved action's arguments.
type HandlerFunc func(args map[string]string) string

type handlerEntry struct {
	intent domain.Intent
	spec   domain.FunctionSpec
	fn     HandlerFunc
}

// Registry is the single table of action handlers shared by both resolver
// strategies: the classifier dispatches by intent, the function-calling
// resolver by function name.
type Registry struct {
	entries    []handlerEntry
	byIntent   map[domain.Intent]int
	byFunction map[string]int
	rnd        RandomSource
	log        *zap.Logger
}

// NewRegistry builds the registry with the weather, alarm, reminder and todo
// handlers. A nil rnd uses the process-wide generator.
func NewRegistry(rnd RandomSource, log *zap.Logger) *Registry {
	if rnd == nil {
		rnd = globalRand{}
	}
	r := &Registry{
		byIntent:   make(map[domain.Intent]int),
		byFunction: make(map[string]int),
		rnd:        rnd,
		log:        log,
	}

	r.Register(domain.IntentWeather, domain.FunctionSpec{
		Name:        "getWeatherResponse",
		Description: "Get the current weather conditions",
	}, r.weather)

	r.Register(domain.IntentAlarm, domain.FunctionSpec{
		Name:        "setAlarm",
		Description: "Set an alarm for a specific time",
		Parameters: []domain.FunctionParam{
			{Name: domain.ArgTime, Description: "The time to set the alarm for, in HH:MM format", Required: true},
		},
	}, setAlarm)

	r.Register(domain.IntentReminder, domain.FunctionSpec{
		Name:        "setReminder",
		Description: "Set a reminder with specific text",
		Parameters: []domain.FunctionParam{
			{Name: domain.ArgText, Description: "The text of the reminder", Required: true},
		},
	}, setReminder)

	r.Register(domain.IntentTodo, domain.FunctionSpec{
		Name:        "addTodo",
		Description: "Add an item to the to-do list",
		Parameters: []domain.FunctionParam{
			{Name: domain.ArgItem, Description: "The item to add to the to-do list", Required: true},
		},
	}, addTodo)

	return r
}

// Register adds or replaces the handler for an intent.
func (r *Registry) Register(intent domain.Intent, spec domain.FunctionSpec, fn HandlerFunc) {
	entry := handlerEntry{intent: intent, spec: spec, fn: fn}
	if i, ok := r.byIntent[intent]; ok {
		delete(r.byFunction, r.entries[i].spec.Name)
		r.entries[i] = entry
		r.byFunction[spec.Name] = i
		return
	}
	r.entries = append(r.entries, entry)
	r.byIntent[intent] = len(r.entries) - 1
	r.byFunction[spec.Name] = len(r.entries) - 1
}

// Functions returns the schemas offered to the completion engine.
func (r *Registry) Functions() []domain.FunctionSpec {
	specs := make([]domain.FunctionSpec, 0, len(r.entries))
	for _, e := range r.entries {
		specs = append(specs, e.spec)
	}
	return specs
}

// ActionForCall maps a function call onto the action of the matching
// handler. Unknown function names resolve to the unknown intent and only
// declared parameters are carried over.
func (r *Registry) ActionForCall(call domain.FunctionCall) domain.ActionRequest {
	i, ok := r.byFunction[call.Name]
	if !ok {
		return domain.UnknownAction()
	}
	entry := r.entries[i]
	args := make(map[string]string, len(entry.spec.Parameters))
	for _, p := range entry.spec.Parameters {
		if v, ok := call.Arguments[p.Name]; ok {
			args[p.Name] = v
		}
	}
	return domain.ActionRequest{Intent: entry.intent, Arguments: args}
}

// Dispatch runs the handler for the action. Unknown intents and panicking
// handlers produce FallbackResponse.
func (r *Registry) Dispatch(action domain.ActionRequest) (response string) {
	i, ok := r.byIntent[action.Intent]
	if !ok {
		return FallbackResponse
	}

	defer func() {
		if p := recover(); p != nil {
			r.log.Error("Handler panicked",
				zap.String("intent", string(action.Intent)),
				zap.Any("panic", p),
			)
			response = FallbackResponse
		}
	}()

	args := action.Arguments
	if args == nil {
		args = map[string]string{}
	}
	return r.entries[i].fn(args)
}

// weather is mocked: a random condition and a temperature in [10,40).
func (r *Registry) weather(map[string]string) string {
	condition := WeatherConditions[r.rnd.IntN(len(WeatherConditions))]
	temperature := minTemperature + r.rnd.IntN(temperatureRange)
	return fmt.Sprintf("The weather is currently %s with a temperature of %d°C.", condition, temperature)
}

func setAlarm(args map[string]string) string {
	t := args[domain.ArgTime]
	if t == "" {
		return UnknownTimeResponse
	}
	return fmt.Sprintf("Alarm set for %s.", t)
}

func setReminder(args map[string]string) string {
	return "Reminder set: " + args[domain.ArgText]
}

func addTodo(args map[string]string) string {
	return "Added to your to-do list: " + args[domain.ArgItem]
}
