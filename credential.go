package console

import "strings"

// Credential is the process-wide identity snapshot: tenant, access token,
// granted roles, and the consecutive stale-permission failure counter.
type Credential struct {
	TenantKey         string
	AccessToken       string
	SessionFamilyID   string
	Roles             []string
	AdminLevel        string
	PermissionVersion int
	StaleAuthFailures int
}

// HasAnyRole reports whether the credential grants at least one of the
// given roles. Comparison is case-insensitive.
func (c Credential) HasAnyRole(roles ...string) bool {
	granted := make(map[string]struct{}, len(c.Roles))
	for _, r := range c.Roles {
		granted[strings.ToUpper(r)] = struct{}{}
	}
	for _, r := range roles {
		if _, ok := granted[strings.ToUpper(r)]; ok {
			return true
		}
	}
	return false
}

// CredentialPatch is a partial credential update. Nil fields leave the
// current value untouched; a nil Roles slice leaves roles untouched.
type CredentialPatch struct {
	TenantKey         *string
	AccessToken       *string
	SessionFamilyID   *string
	Roles             []string
	AdminLevel        *string
	PermissionVersion *int
	StaleAuthFailures *int
}

// Apply merges the patch into c and returns the result.
func (p CredentialPatch) Apply(c Credential) Credential {
	if p.TenantKey != nil {
		c.TenantKey = *p.TenantKey
	}
	if p.AccessToken != nil {
		c.AccessToken = *p.AccessToken
	}
	if p.SessionFamilyID != nil {
		c.SessionFamilyID = *p.SessionFamilyID
	}
	if p.Roles != nil {
		c.Roles = append([]string(nil), p.Roles...)
	}
	if p.AdminLevel != nil {
		c.AdminLevel = *p.AdminLevel
	}
	if p.PermissionVersion != nil {
		c.PermissionVersion = *p.PermissionVersion
	}
	if p.StaleAuthFailures != nil {
		c.StaleAuthFailures = *p.StaleAuthFailures
	}
	return c
}

// CredentialStore holds the current identity, durable across process
// restarts. Get never blocks; Update merges partial fields, persists, and
// notifies subscribers synchronously. Clear resets to the empty state.
// Malformed persisted content is treated as absent on load, never fatal.
type CredentialStore interface {
	Get() Credential
	Update(patch CredentialPatch)
	Clear()
	IncrementStaleFailure() int
	ResetStaleFailure()
	Subscribe(fn func(Credential)) (cancel func())
}
