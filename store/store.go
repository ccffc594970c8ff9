// Package store persists the operator's credential snapshot to a JSON
// file and fans out synchronous change notifications to subscribers.
package store

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/opsconsole/console"
)

// envelope is the v1 wire format for the persisted credential snapshot.
type envelope struct {
	Version           int      `json:"version"`
	TenantKey         string   `json:"tenant_key"`
	AccessToken       string   `json:"access_token"`
	SessionFamilyID   string   `json:"session_family_id"`
	Roles             []string `json:"roles"`
	AdminLevel        string   `json:"admin_level"`
	PermissionVersion int      `json:"permission_version"`
	StaleAuthFailures int      `json:"stale_auth_failures"`
}

// Interface compliance check.
var _ console.CredentialStore = (*Store)(nil)

// Store is a process-wide credential holder backed by a JSON file.
// Persist failures are logged and otherwise ignored: losing durability
// degrades to an in-memory store, it never breaks the session.
type Store struct {
	path   string
	logger *slog.Logger

	mu      sync.Mutex
	state   console.Credential
	subs    map[int]func(console.Credential)
	nextSub int
}

// Option configures a [Store].
type Option func(*Store)

// WithLogger sets the logger for persistence diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New returns a Store loading its initial state from the file at path.
// A missing or malformed file is treated as an empty state, never an
// error.
func New(path string, opts ...Option) *Store {
	s := &Store{
		path:   path,
		logger: slog.New(slog.DiscardHandler),
		subs:   make(map[int]func(console.Credential)),
	}
	for _, o := range opts {
		o(s)
	}
	s.state = s.load()
	return s
}

func (s *Store) load() console.Credential {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return console.Credential{}
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Version != 1 {
		s.logger.Warn("ignoring malformed credential file", "path", s.path)
		return console.Credential{}
	}
	return console.Credential{
		TenantKey:         env.TenantKey,
		AccessToken:       env.AccessToken,
		SessionFamilyID:   env.SessionFamilyID,
		Roles:             env.Roles,
		AdminLevel:        env.AdminLevel,
		PermissionVersion: env.PermissionVersion,
		StaleAuthFailures: env.StaleAuthFailures,
	}
}

// Get returns the current snapshot. It never blocks on I/O.
func (s *Store) Get() console.Credential {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Update merges the patch into the current state, persists, and notifies
// subscribers synchronously.
func (s *Store) Update(patch console.CredentialPatch) {
	s.mu.Lock()
	s.state = patch.Apply(s.state)
	s.persistLocked()
	snap, subs := s.snapshotLocked(), s.subsLocked()
	s.mu.Unlock()
	notify(subs, snap)
}

// Clear resets to the empty state, persists, and notifies subscribers.
func (s *Store) Clear() {
	s.mu.Lock()
	s.state = console.Credential{}
	s.persistLocked()
	snap, subs := s.snapshotLocked(), s.subsLocked()
	s.mu.Unlock()
	notify(subs, snap)
}

// IncrementStaleFailure atomically increments the consecutive
// stale-permission failure counter and returns the new count.
func (s *Store) IncrementStaleFailure() int {
	s.mu.Lock()
	s.state.StaleAuthFailures++
	n := s.state.StaleAuthFailures
	s.persistLocked()
	snap, subs := s.snapshotLocked(), s.subsLocked()
	s.mu.Unlock()
	notify(subs, snap)
	return n
}

// ResetStaleFailure zeroes the stale-permission failure counter.
func (s *Store) ResetStaleFailure() {
	s.mu.Lock()
	if s.state.StaleAuthFailures == 0 {
		s.mu.Unlock()
		return
	}
	s.state.StaleAuthFailures = 0
	s.persistLocked()
	snap, subs := s.snapshotLocked(), s.subsLocked()
	s.mu.Unlock()
	notify(subs, snap)
}

// Subscribe registers fn to be called with a snapshot after every state
// change. The returned cancel function removes the subscription.
func (s *Store) Subscribe(fn func(console.Credential)) (cancel func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Store) snapshotLocked() console.Credential {
	snap := s.state
	snap.Roles = append([]string(nil), s.state.Roles...)
	return snap
}

func (s *Store) subsLocked() []func(console.Credential) {
	subs := make([]func(console.Credential), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	return subs
}

// notify runs outside the lock so a subscriber may call back into the
// store without deadlocking.
func notify(subs []func(console.Credential), snap console.Credential) {
	for _, fn := range subs {
		fn(snap)
	}
}

func (s *Store) persistLocked() {
	env := envelope{
		Version:           1,
		TenantKey:         s.state.TenantKey,
		AccessToken:       s.state.AccessToken,
		SessionFamilyID:   s.state.SessionFamilyID,
		Roles:             s.state.Roles,
		AdminLevel:        s.state.AdminLevel,
		PermissionVersion: s.state.PermissionVersion,
		StaleAuthFailures: s.state.StaleAuthFailures,
	}
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		s.logger.Warn("marshal credential state", "error", err)
		return
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		s.logger.Warn("create credential state directory", "error", err)
		return
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		s.logger.Warn("write credential state", "error", err)
		return
	}
	if err := os.Rename(tmp, s.path); err != nil {
		s.logger.Warn("replace credential state", "error", err)
	}
}
