// Package sse implements an incremental parser for text/event-stream
// bodies. Chunk boundaries carry no framing meaning, so all partial-line
// and partial-record state lives in the Parser, never in the caller.
package sse

import (
	"strings"

	"github.com/opsconsole/console"
)

// Parser reconstructs discrete stream records from arbitrarily chunked
// text. The zero value is ready to use. A Parser is owned by exactly one
// stream and is not safe for concurrent use.
type Parser struct {
	buf       string // bytes not yet resolved into complete lines
	eventName string
	eventID   string
	dataLines []string
}

// Feed appends chunk to the pending buffer, consumes every complete line,
// and returns the records completed by this chunk in the order their
// terminating blank line was observed. The slice may be empty.
func (p *Parser) Feed(chunk string) []console.StreamRecord {
	p.buf += chunk

	var records []console.StreamRecord
	for {
		line, rest, ok := cutLine(p.buf)
		if !ok {
			break
		}
		p.buf = rest
		if rec, ok := p.processLine(line); ok {
			records = append(records, rec)
		}
	}
	return records
}

// Flush drains a record still buffered when the connection ends without a
// trailing blank line. The pending partial buffer is run through the line
// processor first so a stream truncated mid-line is not lost, then any
// accumulated data lines are emitted as one final record. Calling Flush
// again afterward returns false.
func (p *Parser) Flush() (console.StreamRecord, bool) {
	if p.buf != "" {
		pending := p.buf
		p.buf = ""
		var last console.StreamRecord
		var emitted bool
		for _, line := range strings.Split(pending, "\n") {
			if rec, ok := p.processLine(strings.TrimSuffix(line, "\r")); ok {
				last, emitted = rec, true
			}
		}
		if emitted {
			return last, true
		}
	}
	return p.emit()
}

// cutLine splits the first complete line off buf. Lines end in \n or
// \r\n; the terminator is not part of the returned line.
func cutLine(buf string) (line, rest string, ok bool) {
	i := strings.IndexByte(buf, '\n')
	if i < 0 {
		return "", buf, false
	}
	return strings.TrimSuffix(buf[:i], "\r"), buf[i+1:], true
}

// processLine handles one complete line. A blank line terminates the
// current record; field lines accumulate into it. Comments and unknown
// fields are ignored per the wire format.
func (p *Parser) processLine(line string) (console.StreamRecord, bool) {
	if line == "" {
		return p.emit()
	}
	switch {
	case strings.HasPrefix(line, "event:"):
		p.eventName = strings.TrimSpace(line[len("event:"):])
	case strings.HasPrefix(line, "id:"):
		p.eventID = strings.TrimSpace(line[len("id:"):])
	case strings.HasPrefix(line, "data:"):
		p.dataLines = append(p.dataLines, strings.TrimPrefix(line[len("data:"):], " "))
	}
	return console.StreamRecord{}, false
}

// emit produces a record from the accumulated fields and resets them. A
// terminator with no accumulated data lines emits nothing: blank lines
// are pure separators on this wire format.
func (p *Parser) emit() (console.StreamRecord, bool) {
	if len(p.dataLines) == 0 {
		p.eventName = ""
		p.eventID = ""
		return console.StreamRecord{}, false
	}

	eventType := console.EventType(p.eventName)
	if p.eventName == "" {
		eventType = console.EventMessage
	}
	rec := console.StreamRecord{
		ID:    p.eventID,
		Event: eventType,
		Data:  strings.Join(p.dataLines, "\n"),
	}

	p.eventName = ""
	p.eventID = ""
	p.dataLines = nil
	return rec, true
}
