// Package audit persists the usage and publication trail published on
// quill.events.audit and serves it to the admin API.
package audit

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditLog matches the audit_logs table schema.
type AuditLog struct {
	ID         uuid.UUID       `json:"id"`
	UserID     string          `json:"user_id"`
	EventType  string          `json:"event_type"`
	Severity   string          `json:"severity"`
	Transport  string          `json:"transport,omitempty"`
	ResourceID string          `json:"resource_id,omitempty"`
	Details    json.RawMessage `json:"details,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// ListParams holds pagination and filtering parameters for audit log queries.
type ListParams struct {
	EventType string
	Severity  string
	From      *time.Time
	To        *time.Time
	Page      int
	PageSize  int
}

// DefaultListParams returns sensible defaults.
func DefaultListParams() ListParams {
	return ListParams{
		Page:     1,
		PageSize: 20,
	}
}
