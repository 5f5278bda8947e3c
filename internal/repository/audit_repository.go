package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditEntry records a security-relevant auth event (login, revocation).
type AuditEntry struct {
	ID         int64
	ActorID    string
	Action     string
	Meta       map[string]any
	OccurredAt time.Time
}

// Auth event actions recorded in the trail.
const (
	AuditActionLogin      = "auth.login"
	AuditActionStaffLogin = "auth.staff_login"
	AuditActionRevokeAll  = "auth.revoke_all"
)

// AuditRepository persists the auth audit trail.
type AuditRepository interface {
	Record(ctx context.Context, entry AuditEntry) error
	ListRecent(ctx context.Context, limit int) ([]AuditEntry, error)
}

type auditRepository struct {
	pool *pgxpool.Pool
}

// NewAuditRepository returns a Postgres-backed implementation.
func NewAuditRepository(pool *pgxpool.Pool) AuditRepository {
	return &auditRepository{pool: pool}
}

func (r *auditRepository) Record(ctx context.Context, entry AuditEntry) error {
	metaJSON, err := json.Marshal(entry.Meta)
	if err != nil {
		return err
	}

	const query = `
        INSERT INTO auth_audit_logs (actor_id, action, meta, occurred_at)
        VALUES ($1, $2, $3, COALESCE(NULLIF($4, '0001-01-01T00:00:00Z'::timestamptz), NOW()))`

	_, err = r.pool.Exec(ctx, query, entry.ActorID, entry.Action, metaJSON, entry.OccurredAt)
	return err
}

func (r *auditRepository) ListRecent(ctx context.Context, limit int) ([]AuditEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	const query = `
        SELECT id, actor_id, action, meta, occurred_at
        FROM auth_audit_logs ORDER BY occurred_at DESC LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]AuditEntry, 0, limit)
	for rows.Next() {
		var entry AuditEntry
		var metaJSON []byte
		if err := rows.Scan(&entry.ID, &entry.ActorID, &entry.Action, &metaJSON, &entry.OccurredAt); err != nil {
			return nil, err
		}
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &entry.Meta); err != nil {
				return nil, err
			}
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
