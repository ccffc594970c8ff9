package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsconsole/console"
	"github.com/opsconsole/console/api"
	"github.com/opsconsole/console/store"
)

func newStore(t *testing.T) *store.Store {
	t.Helper()
	return store.New(filepath.Join(t.TempDir(), "credentials.json"))
}

func TestLogin_Accepted(t *testing.T) {
	t.Parallel()

	var body map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/auth/login", r.URL.Path)
		assert.Equal(t, "acme", r.Header.Get("X-Tenant-Key"))
		assert.NoError(t, uuid.Validate(r.Header.Get("X-Trace-Id")))
		assert.NoError(t, uuid.Validate(r.Header.Get("Idempotency-Key")))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"result": "accepted",
			"access_token": "tok-login",
			"session_family_id": "fam-1",
			"roles": ["OPERATOR", "AUDITOR"],
			"admin_level": "L2",
			"permission_version": 7
		}`))
	}))
	defer srv.Close()

	s := newStore(t)
	client := api.NewAuthClient(srv.URL, s)

	result, err := client.Login(context.Background(), api.LoginParams{
		TenantKey: "acme",
		LoginID:   "alice",
		Password:  "secret",
	})
	require.NoError(t, err)
	assert.Equal(t, api.LoginAccepted, result.Status)
	assert.Empty(t, result.MFATicketID)

	assert.Equal(t, "alice", body["login_id"])
	assert.Equal(t, "secret", body["password"])
	assert.NoError(t, uuid.Validate(body["client_nonce"]))

	cred := s.Get()
	assert.Equal(t, "acme", cred.TenantKey)
	assert.Equal(t, "tok-login", cred.AccessToken)
	assert.Equal(t, "fam-1", cred.SessionFamilyID)
	assert.Equal(t, []string{"OPERATOR", "AUDITOR"}, cred.Roles)
	assert.Equal(t, "L2", cred.AdminLevel)
	assert.Equal(t, 7, cred.PermissionVersion)
	assert.Zero(t, cred.StaleAuthFailures)
}

func TestLogin_MFARequired(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"result": "mfa_required", "mfa_ticket_id": "ticket-9"}`))
	}))
	defer srv.Close()

	s := newStore(t)
	client := api.NewAuthClient(srv.URL, s)

	result, err := client.Login(context.Background(), api.LoginParams{TenantKey: "acme", LoginID: "alice", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, api.LoginMFARequired, result.Status)
	assert.Equal(t, "ticket-9", result.MFATicketID)
	assert.Empty(t, s.Get().AccessToken)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error_code": "AUTH_INVALID_CREDENTIALS", "message": "bad password", "trace_id": "t-1"}`))
	}))
	defer srv.Close()

	client := api.NewAuthClient(srv.URL, newStore(t))

	_, err := client.Login(context.Background(), api.LoginParams{TenantKey: "acme", LoginID: "alice", Password: "wrong"})
	var apiErr *console.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "AUTH_INVALID_CREDENTIALS", apiErr.Code)
}

func TestRefresh_PatchesStore(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/auth/refresh", r.URL.Path)
		assert.Equal(t, "acme", r.Header.Get("X-Tenant-Key"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"result": "accepted",
			"access_token": "tok-2",
			"session_family_id": "fam-2",
			"roles": ["OPERATOR"],
			"admin_level": "L1",
			"permission_version": 8
		}`))
	}))
	defer srv.Close()

	s := newStore(t)
	tenant := "acme"
	token := "tok-1"
	s.Update(console.CredentialPatch{TenantKey: &tenant, AccessToken: &token, Roles: []string{"OPERATOR", "AUDITOR"}})

	client := api.NewAuthClient(srv.URL, s)
	got, err := client.Refresh(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, "tok-2", got)

	cred := s.Get()
	assert.Equal(t, "tok-2", cred.AccessToken)
	assert.Equal(t, "fam-2", cred.SessionFamilyID)
	assert.Equal(t, []string{"OPERATOR"}, cred.Roles)
	assert.Equal(t, 8, cred.PermissionVersion)
}

func TestLogout_ClearsStoreEvenOnFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/auth/logout", r.URL.Path)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := newStore(t)
	tenant := "acme"
	token := "tok-1"
	s.Update(console.CredentialPatch{TenantKey: &tenant, AccessToken: &token})

	client := api.NewAuthClient(srv.URL, s)
	err := client.Logout(context.Background())
	require.Error(t, err)
	assert.Empty(t, s.Get().AccessToken)
	assert.Empty(t, s.Get().TenantKey)
}

func TestEnrollAndActivateMFA(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/auth/mfa/totp/enroll":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "ticket-9", body["mfa_ticket_id"])
			w.Write([]byte(`{"mfa_ticket_id": "ticket-9", "totp_secret": "JBSWY3DP", "otpauth_uri": "otpauth://totp/acme:alice?secret=JBSWY3DP"}`))
		case "/v1/auth/mfa/totp/activate":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "123456", body["totp_code"])
			w.Write([]byte(`{"result": "accepted", "access_token": "tok-mfa", "roles": ["OPERATOR"], "admin_level": "L1", "permission_version": 1}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	s := newStore(t)
	client := api.NewAuthClient(srv.URL, s)

	enrollment, err := client.EnrollMFA(context.Background(), "acme", "ticket-9")
	require.NoError(t, err)
	assert.Equal(t, "JBSWY3DP", enrollment.TOTPSecret)

	require.NoError(t, client.ActivateMFA(context.Background(), "acme", "ticket-9", "123456"))
	assert.Equal(t, "tok-mfa", s.Get().AccessToken)
	assert.Equal(t, "acme", s.Get().TenantKey)
}

func TestVerifyMFA_RecoveryCode(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/auth/mfa/verify", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "rc-1111", body["recovery_code"])
		_, hasTOTP := body["totp_code"]
		assert.False(t, hasTOTP)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"result": "accepted", "access_token": "tok-rec", "roles": ["OPERATOR"], "admin_level": "L1", "permission_version": 3}`))
	}))
	defer srv.Close()

	s := newStore(t)
	client := api.NewAuthClient(srv.URL, s)
	require.NoError(t, client.VerifyMFA(context.Background(), "acme", "ticket-9", "", "rc-1111"))
	assert.Equal(t, "tok-rec", s.Get().AccessToken)
}
