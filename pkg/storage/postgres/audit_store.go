package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/notifycore/pkg/audit"
)

// AuditStore is an append-only audit.Storage.
type AuditStore struct {
	pool *pgxpool.Pool
}

func NewAuditStore(pool *pgxpool.Pool) *AuditStore {
	return &AuditStore{pool: pool}
}

// Store writes events in one batch. Duplicate ids are ignored so a retried
// batch does not fail on rows that already made it.
func (s *AuditStore) Store(ctx context.Context, events ...audit.Event) error {
	if len(events) == 0 {
		return nil
	}
	for _, e := range events {
		if err := e.Validate(); err != nil {
			return err
		}
	}

	batch := &pgx.Batch{}
	for _, e := range events {
		batch.Queue(`
			INSERT INTO audit_events (id, user_id, type, severity, message, metadata, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO NOTHING
		`, e.ID, e.UserID, string(e.Type), int16(e.Severity), e.Message, e.Metadata, e.CreatedAt)
	}
	return s.pool.SendBatch(ctx, batch).Close()
}

func (s *AuditStore) Query(ctx context.Context, c audit.Criteria) ([]audit.Event, error) {
	where, args := auditWhere(c)
	args = append(args, limitArg(c.Limit), max(c.Offset, 0))

	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT id, user_id, type, severity, message, metadata, created_at
		FROM audit_events
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []audit.Event
	for rows.Next() {
		var (
			e        audit.Event
			typ      string
			severity int16
		)
		if err := rows.Scan(&e.ID, &e.UserID, &typ, &severity, &e.Message, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Type = audit.EventType(typ)
		e.Severity = audit.Severity(severity)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *AuditStore) Count(ctx context.Context, c audit.Criteria) (int64, error) {
	where, args := auditWhere(c)
	var n int64
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM audit_events WHERE `+where, args...).Scan(&n)
	return n, err
}

func (s *AuditStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM audit_events WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func auditWhere(c audit.Criteria) (string, []any) {
	where := []string{"severity >= $1"}
	args := []any{int16(c.MinSeverity)}

	if c.UserID != 0 {
		args = append(args, c.UserID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if len(c.Types) > 0 {
		types := make([]string, len(c.Types))
		for i, t := range c.Types {
			types[i] = string(t)
		}
		args = append(args, types)
		where = append(where, fmt.Sprintf("type = ANY($%d)", len(args)))
	}
	if !c.From.IsZero() {
		args = append(args, c.From)
		where = append(where, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if !c.To.IsZero() {
		args = append(args, c.To)
		where = append(where, fmt.Sprintf("created_at < $%d", len(args)))
	}
	return strings.Join(where, " AND "), args
}
