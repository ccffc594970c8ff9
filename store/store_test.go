package store_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsconsole/console"
	"github.com/opsconsole/console/store"
)

func statePath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "credentials.json")
}

func TestNew_MissingFileIsEmptyState(t *testing.T) {
	t.Parallel()
	s := store.New(statePath(t))

	assert.Equal(t, console.Credential{}, s.Get())
}

func TestNew_MalformedFileIsEmptyState(t *testing.T) {
	t.Parallel()
	path := statePath(t)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	s := store.New(path)

	assert.Equal(t, console.Credential{}, s.Get())
}

func TestNew_UnsupportedVersionIsEmptyState(t *testing.T) {
	t.Parallel()
	path := statePath(t)
	require.NoError(t, os.WriteFile(path, []byte(`{"version":2,"tenant_key":"acme"}`), 0o600))

	s := store.New(path)

	assert.Equal(t, console.Credential{}, s.Get())
}

func TestUpdate_PersistsAcrossReload(t *testing.T) {
	t.Parallel()
	path := statePath(t)
	s := store.New(path)

	tenant, token := "acme", "tok-1"
	s.Update(console.CredentialPatch{
		TenantKey:   &tenant,
		AccessToken: &token,
		Roles:       []string{"OPS"},
	})

	reloaded := store.New(path)
	got := reloaded.Get()
	assert.Equal(t, "acme", got.TenantKey)
	assert.Equal(t, "tok-1", got.AccessToken)
	assert.Equal(t, []string{"OPS"}, got.Roles)
}

func TestUpdate_MergesPartialFields(t *testing.T) {
	t.Parallel()
	s := store.New(statePath(t))
	tenant := "acme"
	s.Update(console.CredentialPatch{TenantKey: &tenant, Roles: []string{"OPS"}})

	token := "tok-2"
	s.Update(console.CredentialPatch{AccessToken: &token})

	got := s.Get()
	assert.Equal(t, "acme", got.TenantKey)
	assert.Equal(t, "tok-2", got.AccessToken)
	assert.Equal(t, []string{"OPS"}, got.Roles)
}

func TestSubscribe_NotifiedSynchronously(t *testing.T) {
	t.Parallel()
	s := store.New(statePath(t))

	var seen []console.Credential
	cancel := s.Subscribe(func(c console.Credential) { seen = append(seen, c) })

	tenant := "acme"
	s.Update(console.CredentialPatch{TenantKey: &tenant})
	require.Len(t, seen, 1)
	assert.Equal(t, "acme", seen[0].TenantKey)

	cancel()
	s.Clear()
	assert.Len(t, seen, 1, "cancelled subscriber no longer notified")
}

func TestSubscribe_CanReadBackDuringNotification(t *testing.T) {
	t.Parallel()
	s := store.New(statePath(t))

	var got console.Credential
	s.Subscribe(func(console.Credential) { got = s.Get() })

	tenant := "acme"
	s.Update(console.CredentialPatch{TenantKey: &tenant})

	assert.Equal(t, "acme", got.TenantKey)
}

func TestClear_EmptiesStateAndFile(t *testing.T) {
	t.Parallel()
	path := statePath(t)
	s := store.New(path)
	tenant := "acme"
	s.Update(console.CredentialPatch{TenantKey: &tenant})

	s.Clear()

	assert.Equal(t, console.Credential{}, s.Get())
	assert.Equal(t, console.Credential{}, store.New(path).Get())
}

func TestStaleFailureCounter(t *testing.T) {
	t.Parallel()
	path := statePath(t)
	s := store.New(path)

	assert.Equal(t, 1, s.IncrementStaleFailure())
	assert.Equal(t, 2, s.IncrementStaleFailure())
	assert.Equal(t, 2, store.New(path).Get().StaleAuthFailures, "counter survives reload")

	s.ResetStaleFailure()
	assert.Zero(t, s.Get().StaleAuthFailures)

	assert.Equal(t, 1, s.IncrementStaleFailure(), "reset restarts the count")
}

func TestGet_SnapshotIsolatedFromStore(t *testing.T) {
	t.Parallel()
	s := store.New(statePath(t))
	s.Update(console.CredentialPatch{Roles: []string{"OPS"}})

	got := s.Get()
	got.Roles[0] = "mutated"

	assert.Equal(t, []string{"OPS"}, s.Get().Roles)
}
