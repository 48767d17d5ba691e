// Package audit serves the audit trail read surface. Writes happen in
// shared.AuditLogger; this package only queries.
package audit

import (
	"time"
)

// TimelineEntry is one audit record as returned to clients.
type TimelineEntry struct {
	ID         string         `json:"id"`
	ActorID    string         `json:"actor_id"`
	Action     string         `json:"action"`
	Entity     string         `json:"entity"`
	EntityID   string         `json:"entity_id"`
	Before     map[string]any `json:"before,omitempty"`
	After      map[string]any `json:"after,omitempty"`
	Reason     string         `json:"reason,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// TimelineFilters narrows a timeline query.
type TimelineFilters struct {
	ActorID  string
	Entity   string
	EntityID string
	Action   string
	Since    *time.Time
	Until    *time.Time
	Page     int
	PageSize int
}
