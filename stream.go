package console

import "context"

// StreamRequest describes one streaming question/answer call.
type StreamRequest struct {
	SessionID   string
	Prompt      string
	LastEventID string // resume cursor; empty on the first connect
}

// RecordStream is a pull-based iterator over stream records. Next returns
// io.EOF once the body is exhausted and any record left unterminated at
// close has been recovered and delivered.
type RecordStream interface {
	Next() (StreamRecord, error)
	Close() error
}

// Streamer opens a streaming exchange against the chat backend.
// Cancellation flows through the context passed to Open.
type Streamer interface {
	Open(ctx context.Context, req StreamRequest) (RecordStream, error)
}
