package domain

// Intent is the closed set of categories a transcript can resolve to.
type Intent string

const (
	IntentWeather  Intent = "weather"
	IntentAlarm    Intent = "alarm"
	IntentReminder Intent = "reminder"
	IntentTodo     Intent = "todo"
	IntentUnknown  Intent = "unknown"
)

// Argument keys understood by the handlers.
const (
	ArgTime = "time"
	ArgText = "text"
	ArgItem = "item"
)

// ActionRequest is a resolved intent plus its intent-specific arguments.
type ActionRequest struct {
	Intent    Intent            `json:"intent"`
	Arguments map[string]string `json:"arguments,omitempty"`
}

// Arg returns the named argument or an empty string.
func (a ActionRequest) Arg(name string) string {
	if a.Arguments == nil {
		return ""
	}
	return a.Arguments[name]
}

// UnknownAction is the action every failed resolution degrades to.
func UnknownAction() ActionRequest {
	return ActionRequest{Intent: IntentUnknown, Arguments: map[string]string{}}
}

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ConversationTurn is one role-tagged utterance of the conversation log.
type ConversationTurn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// FunctionParam describes one string argument of a callable function.
type FunctionParam struct {
	Name        string
	Description string
	Required    bool
}

// FunctionSpec is the schema offered to the completion engine for a handler.
type FunctionSpec struct {
	Name        string
	Description string
	Parameters  []FunctionParam
}

// FunctionCall is a structured call proposed by the completion engine.
type FunctionCall struct {
	Name      string
	Arguments map[string]string
}

// Completion is either plain text or a function call.
type Completion struct {
	Text string
	Call *FunctionCall
}

// ServerResponseEvent is pushed to every connected session after a pipeline run.
type ServerResponseEvent struct {
	Command  string `json:"command"`
	Response string `json:"response"`
}

// StatusReport is the body of GET /status.
type StatusReport struct {
	Status               string `json:"status"`
	ConnectedClients     int    `json:"connectedClients"`
	LastProcessedCommand string `json:"lastProcessedCommand"`
}

type ProcessAudioResponse struct {
	Transcription string `json:"transcription"`
	Response      string `json:"response"`
	AudioContent  string `json:"audioContent"` // Base64 encoded audio
}

type ProcessTextRequest struct {
	Text string `json:"text"`
}

type ProcessTextResponse struct {
	Response string `json:"response"`
}

// EventServerResponse names the push event carrying a ServerResponseEvent.
const EventServerResponse = "server_response"

// PushEnvelope is the frame written to push-channel subscribers.
type PushEnvelope struct {
	Event string              `json:"event"`
	Data  ServerResponseEvent `json:"data"`
}
