package console

// ExchangeState indicates where one question/answer exchange is in its
// lifecycle. Disconnected transitions back to Connecting with a resume
// cursor exactly once; a second disconnection in the same exchange is
// Failed.
type ExchangeState int

const (
	ExchangeIdle         ExchangeState = iota // Before the exchange starts.
	ExchangeConnecting                        // Opening the streaming request.
	ExchangeReceiving                         // Records flowing.
	ExchangeDone                              // Terminal done record observed.
	ExchangeDisconnected                      // Stream closed early; resume pending.
	ExchangeFailed                            // Error record, or resume budget spent.
)

func (s ExchangeState) String() string {
	switch s {
	case ExchangeIdle:
		return "idle"
	case ExchangeConnecting:
		return "connecting"
	case ExchangeReceiving:
		return "receiving"
	case ExchangeDone:
		return "done"
	case ExchangeDisconnected:
		return "disconnected"
	case ExchangeFailed:
		return "failed"
	default:
		return "unknown"
	}
}
