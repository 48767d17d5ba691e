package shared

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditEntry is a record stored in audit_logs. Role and permission
// mutations must produce one before they are considered committed.
type AuditEntry struct {
	ActorID  string
	Action   string
	Entity   string
	EntityID string
	Before   map[string]any
	After    map[string]any
	Reason   string
	At       time.Time
}

// AuditRecorder is implemented by the audit sink. Split out so services
// can be tested with an in-memory recorder.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry) error
}

// AuditLogger writes records into audit_logs.
type AuditLogger struct {
	pool *pgxpool.Pool
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(pool *pgxpool.Pool) *AuditLogger {
	return &AuditLogger{pool: pool}
}

// Record persists the audit entry.
func (l *AuditLogger) Record(ctx context.Context, entry AuditEntry) error {
	if l == nil {
		return errors.New("audit logger not initialised")
	}
	if entry.ActorID == "" || entry.Action == "" || entry.Entity == "" || entry.EntityID == "" {
		return errors.New("audit entry requires actor/action/entity/entity_id")
	}
	beforeJSON, err := json.Marshal(entry.Before)
	if err != nil {
		return err
	}
	afterJSON, err := json.Marshal(entry.After)
	if err != nil {
		return err
	}
	at := entry.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err = l.pool.Exec(ctx,
		`INSERT INTO audit_logs (id, actor_id, action, entity, entity_id, before_state, after_state, reason, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		uuid.NewString(), entry.ActorID, entry.Action, entry.Entity, entry.EntityID, beforeJSON, afterJSON, entry.Reason, at)
	return err
}
