// Package mock provides test doubles for console interfaces using
// function fields.
package mock

import (
	"context"
	"io"

	"github.com/opsconsole/console"
)

// Interface compliance checks.
var (
	_ console.Streamer        = (*Streamer)(nil)
	_ console.RecordStream    = (*RecordStream)(nil)
	_ console.CredentialStore = (*CredentialStore)(nil)
)

// Streamer is a test double for console.Streamer.
// Set OpenFn before calling Open.
type Streamer struct {
	OpenFn func(ctx context.Context, req console.StreamRequest) (console.RecordStream, error)
}

// Open delegates to OpenFn.
func (s *Streamer) Open(ctx context.Context, req console.StreamRequest) (console.RecordStream, error) {
	return s.OpenFn(ctx, req)
}

// RecordStream is a test double for console.RecordStream.
// NextFn panics when nil to catch missing setup. CloseFn is nil-safe
// because test code commonly calls defer stream.Close().
type RecordStream struct {
	NextFn  func() (console.StreamRecord, error)
	CloseFn func() error
}

// Next delegates to NextFn.
func (s *RecordStream) Next() (console.StreamRecord, error) {
	return s.NextFn()
}

// Close delegates to CloseFn. Returns nil when CloseFn is not set.
func (s *RecordStream) Close() error {
	if s.CloseFn == nil {
		return nil
	}
	return s.CloseFn()
}

// Records returns a RecordStream that plays back records in order and
// then returns final. Pass io.EOF for a normally exhausted stream or a
// different error for an abnormal close.
func Records(records []console.StreamRecord, final error) *RecordStream {
	i := 0
	if final == nil {
		final = io.EOF
	}
	return &RecordStream{
		NextFn: func() (console.StreamRecord, error) {
			if i >= len(records) {
				return console.StreamRecord{}, final
			}
			rec := records[i]
			i++
			return rec, nil
		},
	}
}

// CredentialStore is an in-memory test double for console.CredentialStore
// with no persistence.
type CredentialStore struct {
	State console.Credential
	subs  []func(console.Credential)
}

// Get returns the current state.
func (s *CredentialStore) Get() console.Credential { return s.State }

// Update applies the patch and notifies subscribers.
func (s *CredentialStore) Update(patch console.CredentialPatch) {
	s.State = patch.Apply(s.State)
	s.notify()
}

// Clear resets to the empty state and notifies subscribers.
func (s *CredentialStore) Clear() {
	s.State = console.Credential{}
	s.notify()
}

// IncrementStaleFailure increments and returns the stale counter.
func (s *CredentialStore) IncrementStaleFailure() int {
	s.State.StaleAuthFailures++
	s.notify()
	return s.State.StaleAuthFailures
}

// ResetStaleFailure zeroes the stale counter.
func (s *CredentialStore) ResetStaleFailure() {
	s.State.StaleAuthFailures = 0
	s.notify()
}

// Subscribe registers fn. The returned cancel is a no-op; tests rarely
// need unsubscription.
func (s *CredentialStore) Subscribe(fn func(console.Credential)) (cancel func()) {
	s.subs = append(s.subs, fn)
	return func() {}
}

func (s *CredentialStore) notify() {
	for _, fn := range s.subs {
		fn(s.State)
	}
}
