// Package api provides typed clients for the console's collaborator REST
// surface. AuthClient talks to the token endpoints with a bare HTTP
// client so a credential refresh can never recurse into the
// authenticated transport; AdminClient rides on it.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/opsconsole/console"
)

// clientType identifies this console to the auth endpoints.
const clientType = "web"

// LoginStatus discriminates the outcome of a login attempt.
type LoginStatus string

const (
	LoginAccepted         LoginStatus = "accepted"
	LoginMFARequired      LoginStatus = "mfa_required"
	LoginMFASetupRequired LoginStatus = "mfa_setup_required"
)

// LoginParams carries the operator's login form.
type LoginParams struct {
	TenantKey string
	LoginID   string
	Password  string
}

// LoginResult is the discriminated outcome of Login. MFATicketID is set
// only when MFA is required.
type LoginResult struct {
	Status      LoginStatus
	MFATicketID string
}

// authResponse is the wire shape shared by the token endpoints.
type authResponse struct {
	Result            string   `json:"result"`
	AccessToken       string   `json:"access_token"`
	SessionFamilyID   string   `json:"session_family_id"`
	MFATicketID       string   `json:"mfa_ticket_id"`
	Roles             []string `json:"roles"`
	AdminLevel        string   `json:"admin_level"`
	PermissionVersion int      `json:"permission_version"`
	RecoveryCodes     []string `json:"recovery_codes"`
	TraceID           string   `json:"trace_id"`
}

// MFAEnrollment is the TOTP enrollment material shown to the operator.
type MFAEnrollment struct {
	MFATicketID string `json:"mfa_ticket_id"`
	TOTPSecret  string `json:"totp_secret"`
	OTPAuthURI  string `json:"otpauth_uri"`
	TraceID     string `json:"trace_id"`
}

// AuthClient calls the authentication endpoints directly, outside the
// authenticated transport.
type AuthClient struct {
	baseURL    string
	httpClient *http.Client
	store      console.CredentialStore
}

// AuthOption configures an [AuthClient].
type AuthOption func(*AuthClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) AuthOption {
	return func(c *AuthClient) { c.httpClient = hc }
}

// NewAuthClient creates an AuthClient writing successful outcomes into
// store.
func NewAuthClient(baseURL string, store console.CredentialStore, opts ...AuthOption) *AuthClient {
	c := &AuthClient{
		baseURL:    baseURL,
		httpClient: http.DefaultClient,
		store:      store,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Login authenticates the operator. On acceptance the credential store is
// replaced with the new identity; when MFA is required nothing is stored
// and the caller proceeds with the returned ticket.
func (c *AuthClient) Login(ctx context.Context, params LoginParams) (LoginResult, error) {
	body := map[string]string{
		"login_id":     params.LoginID,
		"password":     params.Password,
		"client_type":  clientType,
		"channel_id":   "agent-console",
		"client_nonce": uuid.NewString(),
	}
	var resp authResponse
	if err := c.post(ctx, "/v1/auth/login", params.TenantKey, body, &resp); err != nil {
		return LoginResult{}, err
	}

	switch resp.Result {
	case string(LoginMFARequired), string(LoginMFASetupRequired):
		return LoginResult{Status: LoginStatus(resp.Result), MFATicketID: resp.MFATicketID}, nil
	}

	c.storeIdentity(params.TenantKey, resp)
	return LoginResult{Status: LoginAccepted}, nil
}

// Refresh exchanges the tenant's refresh cookie for a new access token
// and patches the store with the refreshed grants. It satisfies
// transport.RefreshFunc.
func (c *AuthClient) Refresh(ctx context.Context, tenantKey string) (string, error) {
	body := map[string]string{
		"client_type":  clientType,
		"client_nonce": uuid.NewString(),
	}
	var resp authResponse
	if err := c.post(ctx, "/v1/auth/refresh", tenantKey, body, &resp); err != nil {
		return "", err
	}

	c.store.Update(console.CredentialPatch{
		AccessToken:       &resp.AccessToken,
		SessionFamilyID:   &resp.SessionFamilyID,
		Roles:             resp.Roles,
		AdminLevel:        &resp.AdminLevel,
		PermissionVersion: &resp.PermissionVersion,
	})
	return resp.AccessToken, nil
}

// Logout revokes the server-side session. The local credential state is
// cleared even when the call fails; a dead session must not keep the
// console signed in.
func (c *AuthClient) Logout(ctx context.Context) error {
	defer c.store.Clear()
	body := map[string]string{
		"client_type":  clientType,
		"client_nonce": uuid.NewString(),
		"reason":       "user_requested_logout",
	}
	return c.post(ctx, "/v1/auth/logout", c.store.Get().TenantKey, body, nil)
}

// EnrollMFA starts TOTP enrollment for the given login ticket.
func (c *AuthClient) EnrollMFA(ctx context.Context, tenantKey, mfaTicketID string) (MFAEnrollment, error) {
	body := map[string]string{"mfa_ticket_id": mfaTicketID}
	var resp MFAEnrollment
	if err := c.post(ctx, "/v1/auth/mfa/totp/enroll", tenantKey, body, &resp); err != nil {
		return MFAEnrollment{}, err
	}
	return resp, nil
}

// ActivateMFA completes first-time TOTP setup and signs the operator in.
func (c *AuthClient) ActivateMFA(ctx context.Context, tenantKey, mfaTicketID, totpCode string) error {
	body := map[string]string{
		"mfa_ticket_id": mfaTicketID,
		"totp_code":     totpCode,
		"client_type":   clientType,
	}
	var resp authResponse
	if err := c.post(ctx, "/v1/auth/mfa/totp/activate", tenantKey, body, &resp); err != nil {
		return err
	}
	c.storeIdentity(tenantKey, resp)
	return nil
}

// VerifyMFA completes an MFA challenge with a TOTP code or a recovery
// code and signs the operator in.
func (c *AuthClient) VerifyMFA(ctx context.Context, tenantKey, mfaTicketID, totpCode, recoveryCode string) error {
	body := map[string]string{
		"mfa_ticket_id": mfaTicketID,
		"client_type":   clientType,
	}
	if totpCode != "" {
		body["totp_code"] = totpCode
	}
	if recoveryCode != "" {
		body["recovery_code"] = recoveryCode
	}
	var resp authResponse
	if err := c.post(ctx, "/v1/auth/mfa/verify", tenantKey, body, &resp); err != nil {
		return err
	}
	c.storeIdentity(tenantKey, resp)
	return nil
}

func (c *AuthClient) storeIdentity(tenantKey string, resp authResponse) {
	zero := 0
	c.store.Update(console.CredentialPatch{
		TenantKey:         &tenantKey,
		AccessToken:       &resp.AccessToken,
		SessionFamilyID:   &resp.SessionFamilyID,
		Roles:             resp.Roles,
		AdminLevel:        &resp.AdminLevel,
		PermissionVersion: &resp.PermissionVersion,
		StaleAuthFailures: &zero,
	})
}

// post sends a JSON body with the tenant, trace, and idempotency headers
// every auth endpoint expects.
func (c *AuthClient) post(ctx context.Context, path, tenantKey string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("api: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("api: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Trace-Id", uuid.NewString())
	req.Header.Set("Idempotency-Key", uuid.NewString())
	if tenantKey != "" {
		req.Header.Set("X-Tenant-Key", tenantKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return console.DecodeAPIError(resp)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("api: decode response: %w", err)
	}
	return nil
}
