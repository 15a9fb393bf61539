// Package audit captures who did what to which entity. Entries for data
// mutations are recorded out-of-band through a bounded queue so request
// latency is unaffected; auth events are written inline so they are durable
// before the response completes.
package audit

import (
	"encoding/json"
	"time"
)

// Action kinds recorded in the audit trail.
const (
	ActionCreate       = "CREATE"
	ActionUpdate       = "UPDATE"
	ActionDelete       = "DELETE"
	ActionLogin        = "LOGIN"
	ActionLogout       = "LOGOUT"
	ActionAccessDenied = "ACCESS_DENIED"
)

// Entry is one append-only audit record. Entries are never mutated or
// deleted through the public surface.
type Entry struct {
	ID         string          `db:"id" json:"id"`
	Actor      string          `db:"actor" json:"actor"`
	Action     string          `db:"action" json:"action"`
	EntityKind string          `db:"entity_kind" json:"entity_kind"`
	EntityID   string          `db:"entity_id" json:"entity_id"`
	Payload    json.RawMessage `db:"payload" json:"payload,omitempty"`
	RemoteIP   string          `db:"remote_ip" json:"remote_ip"`
	UserAgent  string          `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}
