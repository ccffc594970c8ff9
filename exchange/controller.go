// Package exchange orchestrates one question/answer exchange over a
// record stream: it opens the stream, deduplicates records by id, masks
// text before dispatch, and resumes an interrupted stream from the last
// consumed event exactly once.
package exchange

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"

	"github.com/opsconsole/console"
)

// Result is the assembled outcome of one exchange. Answer and Notice are
// already masked.
type Result struct {
	Answer    string
	Citations []console.EventCitation
	Notice    string
	MessageID string
	TraceID   string
	State     console.ExchangeState
}

// Controller runs question/answer exchanges against a Streamer. A
// Controller is safe to reuse across exchanges; each Run call owns its
// own cursor and dedup state.
type Controller struct {
	streamer console.Streamer
	onEvent  func(console.Event)
	logger   *slog.Logger
}

// Option configures a [Controller].
type Option func(*Controller)

// WithEventHandler sets a callback that receives each semantic event as
// it is consumed. If not set, events are silently discarded and only the
// final Result is available.
func WithEventHandler(fn func(console.Event)) Option {
	return func(c *Controller) { c.onEvent = fn }
}

// WithLogger sets the logger for resume and dispatch diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// New creates a Controller streaming through the given Streamer.
func New(streamer console.Streamer, opts ...Option) *Controller {
	c := &Controller{
		streamer: streamer,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Run executes one exchange and blocks until it reaches a terminal state.
// A stream that closes without a done record is resumed from the last
// consumed event id exactly once; a second disconnection fails the
// exchange with console.ErrDisconnected. A terminal error record fails
// the exchange with the server's *console.APIError. The partial Result is
// returned alongside any error.
func (c *Controller) Run(ctx context.Context, sessionID, prompt string) (*Result, error) {
	r := &run{
		c:    c,
		seen: make(map[string]struct{}),
		req:  console.StreamRequest{SessionID: sessionID, Prompt: prompt},
	}
	r.result.State = console.ExchangeIdle

	for {
		r.result.State = console.ExchangeConnecting
		stream, err := c.streamer.Open(ctx, r.req)
		if err != nil {
			r.result.State = console.ExchangeFailed
			return &r.result, err
		}

		err = r.receive(ctx, stream)
		stream.Close()
		if err != nil {
			r.result.State = console.ExchangeFailed
			return &r.result, err
		}

		switch r.result.State {
		case console.ExchangeDone:
			return &r.result, nil
		case console.ExchangeFailed:
			return &r.result, r.terminalErr
		}

		// Premature close without a terminal record.
		if r.resumed {
			r.result.State = console.ExchangeFailed
			return &r.result, console.ErrDisconnected
		}
		r.resumed = true
		r.result.State = console.ExchangeDisconnected
		r.req.LastEventID = r.lastID
		c.logger.Info("resuming interrupted stream",
			"session_id", sessionID, "last_event_id", r.lastID)
	}
}

// run holds the per-exchange cursor and dedup state. Discarded when the
// exchange ends; never reused.
type run struct {
	c           *Controller
	req         console.StreamRequest
	seen        map[string]struct{}
	lastID      string
	resumed     bool
	result      Result
	terminalErr error
}

// receive drains the stream until a terminal record or the connection
// closes. A nil return with a non-terminal state means the stream closed
// prematurely and the caller decides whether to resume.
func (r *run) receive(ctx context.Context, stream console.RecordStream) error {
	r.result.State = console.ExchangeReceiving
	for {
		rec, err := stream.Next()
		// An abort must stop further dispatch even when a record was
		// already in flight.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if err != io.EOF {
				// A mid-stream transport failure is a disconnect like
				// any other; the resume budget decides what happens.
				r.c.logger.Warn("stream read failed", "error", err)
			}
			return nil
		}

		if rec.ID != "" {
			if _, dup := r.seen[rec.ID]; dup {
				// Overlap from a server-side replay after resume.
				continue
			}
			r.seen[rec.ID] = struct{}{}
			r.lastID = rec.ID
		}

		if terminal := r.dispatch(rec); terminal {
			return nil
		}
	}
}

// dispatch routes one record by event type. Returns true for terminal
// records (done, error).
func (r *run) dispatch(rec console.StreamRecord) bool {
	switch rec.Event {
	case console.EventToken:
		text := console.MaskSensitive(tokenText(rec.Data))
		r.result.Answer += text
		r.emit(console.EventAnswerDelta{Text: text})

	case console.EventTool:
		var p struct {
			ToolName string `json:"tool_name"`
			Status   string `json:"status"`
		}
		decodePayload(rec.Data, &p)
		r.emit(console.EventToolActivity{ToolName: p.ToolName, Status: p.Status})

	case console.EventTypeCitation:
		var p struct {
			SourceID string  `json:"source_id"`
			Title    string  `json:"title"`
			Score    float64 `json:"score"`
		}
		decodePayload(rec.Data, &p)
		cit := console.EventCitation{SourceID: p.SourceID, Title: p.Title, Score: p.Score}
		r.result.Citations = append(r.result.Citations, cit)
		r.emit(cit)

	case console.EventSafeResponse:
		var p struct {
			Message string `json:"message"`
		}
		decodePayload(rec.Data, &p)
		r.result.Notice = console.MaskSensitive(p.Message)
		r.emit(console.EventSafeNotice{Message: r.result.Notice})

	case console.EventError:
		var p struct {
			ErrorCode string `json:"error_code"`
			Message   string `json:"message"`
			TraceID   string `json:"trace_id"`
		}
		decodePayload(rec.Data, &p)
		r.result.State = console.ExchangeFailed
		r.terminalErr = &console.APIError{Code: p.ErrorCode, Message: p.Message, TraceID: p.TraceID}
		r.emit(console.EventStreamError{Code: p.ErrorCode, Message: p.Message, TraceID: p.TraceID})
		return true

	case console.EventTypeDone:
		var p struct {
			MessageID string `json:"message_id"`
			TraceID   string `json:"trace_id"`
		}
		decodePayload(rec.Data, &p)
		r.result.State = console.ExchangeDone
		r.result.MessageID = p.MessageID
		r.result.TraceID = p.TraceID
		r.emit(console.EventDone{MessageID: p.MessageID, TraceID: p.TraceID})

		return true

	case console.EventHeartbeat:
		// Liveness signal only.

	default:
		// Unknown event types are ignored so the wire format can grow.
	}
	return false
}

func (r *run) emit(evt console.Event) {
	if r.c.onEvent != nil {
		r.c.onEvent(evt)
	}
}

// tokenText extracts the text field from a token payload. Payloads that
// are not the expected JSON shape surface verbatim rather than vanish.
func tokenText(data string) string {
	var p struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(data), &p); err != nil || p.Text == "" {
		return data
	}
	return p.Text
}

func decodePayload(data string, out any) {
	// Best effort: a malformed payload leaves the zero values in place.
	_ = json.Unmarshal([]byte(data), out)
}
