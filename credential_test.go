package console_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/opsconsole/console"
)

func TestCredentialPatch_Apply(t *testing.T) {
	t.Parallel()
	base := console.Credential{
		TenantKey:         "acme",
		AccessToken:       "tok-1",
		Roles:             []string{"OPS"},
		PermissionVersion: 3,
	}

	tok := "tok-2"
	got := console.CredentialPatch{AccessToken: &tok}.Apply(base)

	assert.Equal(t, "tok-2", got.AccessToken)
	assert.Equal(t, "acme", got.TenantKey, "unset fields stay intact")
	assert.Equal(t, []string{"OPS"}, got.Roles)
	assert.Equal(t, 3, got.PermissionVersion)
}

func TestCredentialPatch_Apply_RolesCopied(t *testing.T) {
	t.Parallel()
	roles := []string{"OPS", "ADMIN"}
	got := console.CredentialPatch{Roles: roles}.Apply(console.Credential{})

	roles[0] = "mutated"
	assert.Equal(t, []string{"OPS", "ADMIN"}, got.Roles)
}

func TestCredential_HasAnyRole(t *testing.T) {
	t.Parallel()
	cred := console.Credential{Roles: []string{"ops", "Auditor"}}

	assert.True(t, cred.HasAnyRole("OPS"))
	assert.True(t, cred.HasAnyRole("admin", "auditor"))
	assert.False(t, cred.HasAnyRole("ADMIN"))
	assert.False(t, console.Credential{}.HasAnyRole("OPS"))
}
