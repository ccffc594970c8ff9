package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/opsconsole/console/transport"
)

// DashboardSummary is the headline counters for the admin dashboard.
type DashboardSummary struct {
	ActiveSessions   int     `json:"active_sessions"`
	MessagesToday    int     `json:"messages_today"`
	BlockedToday     int     `json:"blocked_today"`
	PendingApprovals int     `json:"pending_approvals"`
	ErrorRate        float64 `json:"error_rate"`
}

// SeriesPoint is one bucket of a dashboard time series.
type SeriesPoint struct {
	Bucket string `json:"bucket"`
	Count  int    `json:"count"`
}

// AuditQuery filters an audit-log search. Zero values are omitted.
type AuditQuery struct {
	ActorID  string
	Action   string
	From     string
	To       string
	Page     int
	PageSize int
}

// AuditEntry is one row of the audit log.
type AuditEntry struct {
	ID          string `json:"id"`
	ActorID     string `json:"actor_id"`
	Action      string `json:"action"`
	TargetType  string `json:"target_type"`
	TargetID    string `json:"target_id"`
	Reason      string `json:"reason"`
	OccurredAt  string `json:"occurred_at"`
	TraceID     string `json:"trace_id"`
	HasSnapshot bool   `json:"has_snapshot"`
}

// AuditPage is a page of audit search results.
type AuditPage struct {
	Entries    []AuditEntry `json:"entries"`
	Page       int          `json:"page"`
	TotalPages int          `json:"total_pages"`
	TotalCount int          `json:"total_count"`
}

// AuditDiff is the before/after snapshot pair for one audit entry.
type AuditDiff struct {
	Before map[string]any `json:"before"`
	After  map[string]any `json:"after"`
}

// RBACEntry is one cell of the role/permission matrix.
type RBACEntry struct {
	RoleCode       string `json:"role_code"`
	AdminLevel     string `json:"admin_level"`
	PermissionCode string `json:"permission_code"`
	Allowed        bool   `json:"allowed"`
}

// ApprovalRequest is a pending two-person change awaiting review.
type ApprovalRequest struct {
	ID          string         `json:"id"`
	RequesterID string         `json:"requester_id"`
	ChangeType  string         `json:"change_type"`
	Payload     map[string]any `json:"payload"`
	Status      string         `json:"status"`
	RequestedAt string         `json:"requested_at"`
}

// SessionInfo describes one of the operator's active sessions.
type SessionInfo struct {
	ID         string `json:"id"`
	DeviceName string `json:"device_name"`
	IPAddress  string `json:"ip_address"`
	LastSeenAt string `json:"last_seen_at"`
	Current    bool   `json:"current"`
}

// AdminClient calls the privileged console endpoints through the
// authenticated transport, so every request carries the bearer token and
// participates in refresh and stale-permission handling.
type AdminClient struct {
	transport *transport.Client
}

// NewAdminClient creates an AdminClient over tc.
func NewAdminClient(tc *transport.Client) *AdminClient {
	return &AdminClient{transport: tc}
}

// DashboardSummary fetches the headline counters.
func (c *AdminClient) DashboardSummary(ctx context.Context) (DashboardSummary, error) {
	var out DashboardSummary
	err := c.transport.DoJSON(ctx, http.MethodGet, "/v1/admin/dashboard/summary", nil, &out)
	return out, err
}

// DashboardSeries fetches one named time series, e.g. "messages" or
// "blocks", bucketed by the given interval.
func (c *AdminClient) DashboardSeries(ctx context.Context, name, interval string) ([]SeriesPoint, error) {
	path := fmt.Sprintf("/v1/admin/dashboard/series/%s?interval=%s", url.PathEscape(name), url.QueryEscape(interval))
	var out []SeriesPoint
	err := c.transport.DoJSON(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

// SearchAuditLogs pages through the audit log with the given filters.
func (c *AdminClient) SearchAuditLogs(ctx context.Context, q AuditQuery) (AuditPage, error) {
	params := url.Values{}
	if q.ActorID != "" {
		params.Set("actor_id", q.ActorID)
	}
	if q.Action != "" {
		params.Set("action", q.Action)
	}
	if q.From != "" {
		params.Set("from", q.From)
	}
	if q.To != "" {
		params.Set("to", q.To)
	}
	if q.Page > 0 {
		params.Set("page", fmt.Sprint(q.Page))
	}
	if q.PageSize > 0 {
		params.Set("page_size", fmt.Sprint(q.PageSize))
	}
	path := "/v1/admin/audit-logs"
	if encoded := params.Encode(); encoded != "" {
		path += "?" + encoded
	}
	var out AuditPage
	err := c.transport.DoJSON(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

// AuditDiff fetches the before/after snapshots for one audit entry.
func (c *AdminClient) AuditDiff(ctx context.Context, entryID string) (AuditDiff, error) {
	var out AuditDiff
	err := c.transport.DoJSON(ctx, http.MethodGet, "/v1/admin/audit-logs/"+url.PathEscape(entryID)+"/diff", nil, &out)
	return out, err
}

// ExportAuditLogs requests a CSV export for the filtered range and
// returns the download URL.
func (c *AdminClient) ExportAuditLogs(ctx context.Context, q AuditQuery) (string, error) {
	body := map[string]string{}
	if q.ActorID != "" {
		body["actor_id"] = q.ActorID
	}
	if q.Action != "" {
		body["action"] = q.Action
	}
	if q.From != "" {
		body["from"] = q.From
	}
	if q.To != "" {
		body["to"] = q.To
	}
	var out struct {
		DownloadURL string `json:"download_url"`
	}
	err := c.transport.DoJSON(ctx, http.MethodPost, "/v1/admin/audit-logs/export", body, &out)
	return out.DownloadURL, err
}

// RBACMatrix fetches the full role/permission matrix.
func (c *AdminClient) RBACMatrix(ctx context.Context) ([]RBACEntry, error) {
	var out []RBACEntry
	err := c.transport.DoJSON(ctx, http.MethodGet, "/v1/admin/rbac/matrix", nil, &out)
	return out, err
}

// UpsertRBACEntry sets one cell of the permission matrix.
func (c *AdminClient) UpsertRBACEntry(ctx context.Context, entry RBACEntry) error {
	body := map[string]any{
		"role_code":   entry.RoleCode,
		"admin_level": entry.AdminLevel,
		"allowed":     entry.Allowed,
		"reason":      "manual_request",
	}
	path := "/v1/admin/rbac/matrix/" + url.PathEscape(entry.PermissionCode)
	return c.transport.DoJSON(ctx, http.MethodPut, path, body, nil)
}

// ApprovalRequests lists pending two-person approvals.
func (c *AdminClient) ApprovalRequests(ctx context.Context) ([]ApprovalRequest, error) {
	var out []ApprovalRequest
	err := c.transport.DoJSON(ctx, http.MethodGet, "/v1/admin/approval-requests", nil, &out)
	return out, err
}

// ApproveRequest approves one pending change.
func (c *AdminClient) ApproveRequest(ctx context.Context, requestID, comment string) error {
	body := map[string]string{"comment": comment}
	return c.transport.DoJSON(ctx, http.MethodPost, "/v1/admin/approval-requests/"+url.PathEscape(requestID)+"/approve", body, nil)
}

// RejectRequest rejects one pending change.
func (c *AdminClient) RejectRequest(ctx context.Context, requestID, comment string) error {
	body := map[string]string{"comment": comment}
	return c.transport.DoJSON(ctx, http.MethodPost, "/v1/admin/approval-requests/"+url.PathEscape(requestID)+"/reject", body, nil)
}

// UpsertBlock activates a keyword or pattern block.
func (c *AdminClient) UpsertBlock(ctx context.Context, blockType, value string) error {
	body := map[string]string{
		"block_type":  blockType,
		"block_value": value,
		"status":      "ACTIVE",
		"reason":      "manual_block",
	}
	return c.transport.DoJSON(ctx, http.MethodPut, "/v1/ops/blocks/"+url.PathEscape(value), body, nil)
}

// Sessions lists the operator's active sessions across devices.
func (c *AdminClient) Sessions(ctx context.Context) ([]SessionInfo, error) {
	var out []SessionInfo
	err := c.transport.DoJSON(ctx, http.MethodGet, "/v1/auth/sessions", nil, &out)
	return out, err
}

// RevokeSession terminates one session by id.
func (c *AdminClient) RevokeSession(ctx context.Context, sessionID string) error {
	return c.transport.DoJSON(ctx, http.MethodDelete, "/v1/auth/sessions/"+url.PathEscape(sessionID), nil, nil)
}

// RevokeOtherSessions terminates every session except the current one.
func (c *AdminClient) RevokeOtherSessions(ctx context.Context) error {
	return c.transport.DoJSON(ctx, http.MethodPost, "/v1/auth/sessions/revoke-others", nil, nil)
}
