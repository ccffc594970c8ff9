package console

// Event is a sealed interface representing a semantic exchange event,
// dispatched to the UI layer after dedup and masking. Transport and
// protocol errors come from the controller's error return, not from
// events. The unexported marker method prevents external implementations.
type Event interface {
	event()
}

// EventAnswerDelta carries a masked chunk of the in-progress answer.
type EventAnswerDelta struct {
	Text string
}

func (EventAnswerDelta) event() {}

// EventToolActivity reports backend tool usage during generation.
type EventToolActivity struct {
	ToolName string
	Status   string
}

func (EventToolActivity) event() {}

// EventCitation appends one evidence entry to the answer.
type EventCitation struct {
	SourceID string
	Title    string
	Score    float64
}

func (EventCitation) event() {}

// EventSafeNotice sets an advisory banner on the exchange.
type EventSafeNotice struct {
	Message string
}

func (EventSafeNotice) event() {}

// EventStreamError signals a terminal server-reported failure.
type EventStreamError struct {
	Code    string
	Message string
	TraceID string
}

func (EventStreamError) event() {}

// EventDone marks normal completion of the exchange.
type EventDone struct {
	MessageID string
	TraceID   string
}

func (EventDone) event() {}

// Interface compliance checks.
var (
	_ Event = EventAnswerDelta{}
	_ Event = EventToolActivity{}
	_ Event = EventCitation{}
	_ Event = EventSafeNotice{}
	_ Event = EventStreamError{}
	_ Event = EventDone{}
)
