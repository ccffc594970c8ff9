package console

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// CodeStalePermission is the server-signaled condition meaning the cached
// authorization snapshot is outdated even though the access credential
// itself is still valid. Refresh cannot fix it, so the transport escalates
// to a forced re-login after repeated occurrences.
const CodeStalePermission = "AUTH_STALE_PERMISSION"

// Sentinel errors for common failure modes.
var (
	// ErrLoginRequired indicates credentials were cleared and the caller
	// must re-authenticate before retrying.
	ErrLoginRequired = errors.New("login required")

	// ErrStreamClosed indicates an operation on a closed record stream.
	ErrStreamClosed = errors.New("stream closed")

	// ErrDisconnected indicates the stream closed without a terminal
	// record after the single resume attempt was already spent.
	ErrDisconnected = errors.New("stream disconnected")

	// ErrNoTenant indicates an operation that needs a tenant key ran
	// against an empty credential state.
	ErrNoTenant = errors.New("no tenant key")
)

// APIError is a machine-readable failure returned by the backend. Code
// carries the server error code (e.g. AUTH_STALE_PERMISSION); Status is
// zero for errors delivered inside the stream rather than as an HTTP
// response.
type APIError struct {
	Status  int
	Code    string
	Message string
	TraceID string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("HTTP %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsStalePermission reports whether err is an unauthorized response
// carrying the stale permission code.
func IsStalePermission(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) &&
		apiErr.Status == http.StatusUnauthorized &&
		apiErr.Code == CodeStalePermission
}

// DecodeAPIError drains a non-2xx response body into an *APIError. Bodies
// that are not the backend's JSON error shape are kept verbatim in
// Message. The response body is not closed.
func DecodeAPIError(resp *http.Response) *APIError {
	apiErr := &APIError{Status: resp.StatusCode}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		apiErr.Message = err.Error()
		return apiErr
	}
	var payload struct {
		ErrorCode string `json:"error_code"`
		Message   string `json:"message"`
		TraceID   string `json:"trace_id"`
	}
	if json.Unmarshal(body, &payload) == nil && (payload.ErrorCode != "" || payload.Message != "") {
		apiErr.Code = payload.ErrorCode
		apiErr.Message = payload.Message
		apiErr.TraceID = payload.TraceID
		return apiErr
	}
	apiErr.Message = strings.TrimSpace(string(body))
	return apiErr
}

// Banner is the user-facing rendering of a failed request.
type Banner struct {
	Code    string
	Message string
}

// UserBanner maps an error to a banner with a stable fallback code per
// status class. notFound is shown for 404s so each screen can name the
// missing resource.
func UserBanner(err error, notFound string) Banner {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return Banner{Code: "SYS-003-500", Message: err.Error()}
	}
	code := apiErr.Code
	switch apiErr.Status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		if code == "" {
			code = "API-003-422"
		}
		return Banner{Code: code, Message: "Request format is invalid. Please verify session/message identifiers."}
	case http.StatusForbidden:
		if code == "" {
			code = "SEC-002-403"
		}
		return Banner{Code: code, Message: "You do not have permission to access this tenant resource."}
	case http.StatusNotFound:
		if code == "" {
			code = "API-004-404"
		}
		return Banner{Code: code, Message: notFound}
	}
	if code == "" {
		code = "SYS-003-500"
	}
	msg := apiErr.Message
	if msg == "" {
		msg = "Request failed"
	}
	return Banner{Code: code, Message: msg}
}
