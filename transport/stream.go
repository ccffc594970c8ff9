package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/opsconsole/console"
	"github.com/opsconsole/console/sse"
)

// Interface compliance check.
var _ console.Streamer = (*Client)(nil)

// Open starts a streaming question/answer exchange. A resume request
// carries the Last-Event-ID header so the server replays only events
// after the cursor. The returned stream yields records until the server
// closes the response; a record left unterminated at close is recovered
// via the parser's flush.
func (c *Client) Open(ctx context.Context, sreq console.StreamRequest) (console.RecordStream, error) {
	endpoint := fmt.Sprintf("%s/v1/sessions/%s/messages/stream?prompt=%s",
		c.baseURL, url.PathEscape(sreq.SessionID), url.QueryEscape(sreq.Prompt))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("transport: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	if sreq.LastEventID != "" {
		req.Header.Set("Last-Event-ID", sreq.LastEventID)
	}

	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, console.DecodeAPIError(resp)
	}
	return &recordStream{body: resp.Body}, nil
}

// recordStream adapts an HTTP response body into a pull iterator of
// stream records. Read chunks are fed to the incremental parser; chunk
// boundaries carry no meaning.
type recordStream struct {
	body   io.ReadCloser
	parser sse.Parser
	queue  []console.StreamRecord
	err    error
	buf    [4096]byte
}

// Next returns the next record. io.EOF signals a normally exhausted body
// after the final flush has been delivered.
func (s *recordStream) Next() (console.StreamRecord, error) {
	for {
		if len(s.queue) > 0 {
			rec := s.queue[0]
			s.queue = s.queue[1:]
			return rec, nil
		}
		if s.err != nil {
			return console.StreamRecord{}, s.err
		}

		n, err := s.body.Read(s.buf[:])
		if n > 0 {
			s.queue = append(s.queue, s.parser.Feed(string(s.buf[:n]))...)
		}
		if err != nil {
			// The connection is gone, cleanly or not. Recover a record
			// the server never terminated with a blank line before
			// surfacing the error.
			if rec, ok := s.parser.Flush(); ok {
				s.queue = append(s.queue, rec)
			}
			s.err = err
		}
	}
}

// Close releases the underlying response body. Subsequent Next calls
// return console.ErrStreamClosed once queued records are drained.
func (s *recordStream) Close() error {
	if s.err == nil {
		s.err = console.ErrStreamClosed
	}
	return s.body.Close()
}
