package console

// EventType identifies the kind of a stream record on the wire.
type EventType string

// Wire event types emitted by the chat backend's streaming endpoint.
const (
	EventToken        EventType = "token"
	EventTool         EventType = "tool"
	EventTypeCitation EventType = "citation"
	EventTypeDone     EventType = "done"
	EventError        EventType = "error"
	EventSafeResponse EventType = "safe_response"
	EventHeartbeat    EventType = "heartbeat"

	// EventMessage is the default type for records that carry no event: field.
	EventMessage EventType = "message"
)

// StreamRecord is one discrete event/id/data unit reconstructed from a
// text/event-stream body. Data is the newline-joined concatenation of the
// record's data: lines, already stripped of the line-prefix marker.
// Immutable once emitted by the parser.
type StreamRecord struct {
	ID    string // empty when the record carried no id: field
	Event EventType
	Data  string
}
