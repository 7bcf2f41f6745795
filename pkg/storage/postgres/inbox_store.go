package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/notifycore/pkg/inbox"
	"github.com/dmitrymomot/notifycore/pkg/notify"
	"github.com/dmitrymomot/notifycore/pkg/pg"
)

const inboxColumns = `id, user_id, type, title, body, data, priority, delivered, delivered_via,
	delivered_at, read, read_at, created_at, dispatched`

// InboxStore implements inbox.Storage.
type InboxStore struct {
	pool *pgxpool.Pool
}

func NewInboxStore(pool *pgxpool.Pool) *InboxStore {
	return &InboxStore{pool: pool}
}

func (s *InboxStore) Create(ctx context.Context, rec inbox.Record) error {
	if rec.ID == "" || rec.UserID <= 0 {
		return inbox.ErrInvalidRecord
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO notifications (id, user_id, type, title, body, data, priority, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, rec.ID, rec.UserID, rec.Type, rec.Title, rec.Body, rec.Data, int16(rec.Priority), rec.CreatedAt)
	if pg.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: duplicate id %s", inbox.ErrInvalidRecord, rec.ID)
	}
	return err
}

func (s *InboxStore) Get(ctx context.Context, userID int64, id string) (*inbox.Record, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+inboxColumns+` FROM notifications WHERE user_id = $1 AND id = $2
	`, userID, id)
	rec, err := scanRecord(row)
	if pg.IsNotFoundError(err) {
		return nil, inbox.ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *InboxStore) List(ctx context.Context, userID int64, opts inbox.ListOptions) ([]inbox.Record, error) {
	where := []string{"user_id = $1"}
	args := []any{userID}
	if opts.OnlyUnread {
		where = append(where, "NOT read")
	}
	if len(opts.Types) > 0 {
		args = append(args, opts.Types)
		where = append(where, fmt.Sprintf("type = ANY($%d)", len(args)))
	}
	if opts.Since != nil {
		args = append(args, *opts.Since)
		where = append(where, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	args = append(args, limitArg(opts.Limit), max(opts.Offset, 0))

	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM notifications
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, inboxColumns, strings.Join(where, " AND "), len(args)-1, len(args)), args...)
	if err != nil {
		return nil, err
	}
	return collectRecords(rows)
}

func (s *InboxStore) ListUndelivered(ctx context.Context, userID int64, limit int) ([]inbox.Record, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+inboxColumns+` FROM notifications
		WHERE user_id = $1 AND NOT delivered
		ORDER BY created_at ASC
		LIMIT $2
	`, userID, limitArg(limit))
	if err != nil {
		return nil, err
	}
	return collectRecords(rows)
}

// MarkDelivered keeps the first delivery channel when called twice.
func (s *InboxStore) MarkDelivered(ctx context.Context, userID int64, id, via string, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE notifications
		SET delivered = true,
			dispatched = true,
			delivered_via = CASE WHEN delivered THEN delivered_via ELSE $3 END,
			delivered_at = CASE WHEN delivered THEN delivered_at ELSE $4 END
		WHERE user_id = $1 AND id = $2
	`, userID, id, via, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return inbox.ErrRecordNotFound
	}
	return nil
}

// ListStranded scans all users; the partial index on undispatched rows keeps
// it cheap.
func (s *InboxStore) ListStranded(ctx context.Context, before time.Time, limit int) ([]inbox.Record, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+inboxColumns+` FROM notifications
		WHERE NOT dispatched AND NOT delivered AND created_at <= $1
		ORDER BY created_at ASC, id ASC
		LIMIT $2
	`, before, limitArg(limit))
	if err != nil {
		return nil, err
	}
	return collectRecords(rows)
}

func (s *InboxStore) MarkDispatched(ctx context.Context, userID int64, id string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE notifications SET dispatched = true WHERE user_id = $1 AND id = $2
	`, userID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return inbox.ErrRecordNotFound
	}
	return nil
}

func (s *InboxStore) MarkRead(ctx context.Context, userID int64, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx, `
		UPDATE notifications SET read = true, read_at = now()
		WHERE user_id = $1 AND id = ANY($2) AND NOT read
	`, userID, ids)
	return err
}

func (s *InboxStore) CountUnread(ctx context.Context, userID int64) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT count(*) FROM notifications WHERE user_id = $1 AND NOT read
	`, userID).Scan(&n)
	return n, err
}

func (s *InboxStore) Ping(ctx context.Context) error {
	return pg.Healthcheck(s.pool)(ctx)
}

func scanRecord(row pgx.Row) (inbox.Record, error) {
	var (
		rec      inbox.Record
		priority int16
	)
	err := row.Scan(
		&rec.ID, &rec.UserID, &rec.Type, &rec.Title, &rec.Body, &rec.Data, &priority,
		&rec.Delivered, &rec.DeliveredVia, &rec.DeliveredAt, &rec.Read, &rec.ReadAt, &rec.CreatedAt,
		&rec.Dispatched,
	)
	rec.Priority = notify.Priority(priority)
	return rec, err
}

func collectRecords(rows pgx.Rows) ([]inbox.Record, error) {
	defer rows.Close()

	var out []inbox.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
