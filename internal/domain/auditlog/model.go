package auditlog

import (
	"time"

	"github.com/google/uuid"
)

// Entry is one row of audit_logs. Entries are append-only.
type Entry struct {
	ID         uuid.UUID              `db:"id" json:"id"`
	UserID     *uuid.UUID             `db:"user_id" json:"user_id,omitempty"`
	Action     string                 `db:"action" json:"action"`
	EntityType string                 `db:"entity_type" json:"entity_type"`
	EntityID   *uuid.UUID             `db:"entity_id" json:"entity_id,omitempty"`
	Details    map[string]interface{} `db:"details" json:"details"`
	IPAddress  *string                `db:"ip_address" json:"ip_address,omitempty"`
	CreatedAt  time.Time              `db:"created_at" json:"created_at"`

	UserName *string `json:"user_name,omitempty"`
}
