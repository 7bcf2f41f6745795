package postgres

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/notifycore/pkg/notify"
	"github.com/dmitrymomot/notifycore/pkg/pg"
	"github.com/dmitrymomot/notifycore/pkg/queue"
)

// DefaultLease is how long a claimed item may stay in processing before
// another claim may take it over.
const DefaultLease = 5 * time.Minute

const queueColumns = `id, user_id, type, title, body, data, priority, attempts, max_attempts,
	status, next_retry_at, last_error, expires_at, record_id, created_at`

// QueueStore is the durable queue tier. It implements queue.Store.
type QueueStore struct {
	pool  *pgxpool.Pool
	lease time.Duration
}

// QueueOption configures a QueueStore.
type QueueOption func(*QueueStore)

// WithLease overrides DefaultLease.
func WithLease(d time.Duration) QueueOption {
	return func(s *QueueStore) {
		if d > 0 {
			s.lease = d
		}
	}
}

func NewQueueStore(pool *pgxpool.Pool, opts ...QueueOption) *QueueStore {
	s := &QueueStore{pool: pool, lease: DefaultLease}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *QueueStore) Save(ctx context.Context, item *notify.QueuedNotification) error {
	if item == nil || item.ID == uuid.Nil {
		return queue.ErrInvalidItem
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO notification_queue (
			id, user_id, type, title, body, data, priority, attempts, max_attempts,
			status, next_retry_at, last_error, expires_at, record_id, created_at, claimed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, NULL)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			body = EXCLUDED.body,
			data = EXCLUDED.data,
			priority = EXCLUDED.priority,
			attempts = EXCLUDED.attempts,
			max_attempts = EXCLUDED.max_attempts,
			status = EXCLUDED.status,
			next_retry_at = EXCLUDED.next_retry_at,
			last_error = EXCLUDED.last_error,
			expires_at = EXCLUDED.expires_at,
			claimed_at = NULL
	`,
		item.ID, item.UserID, item.Type, item.Title, item.Body, item.Data, int16(item.Priority),
		item.Attempts, item.MaxAttempts, string(item.Status), item.NextRetryAt, item.LastError,
		item.ExpiresAt, item.RecordID, item.CreatedAt,
	)
	return err
}

func (s *QueueStore) Get(ctx context.Context, id uuid.UUID) (*notify.QueuedNotification, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+queueColumns+` FROM notification_queue WHERE id = $1`, id)
	item, err := scanQueued(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, queue.ErrNotFound
	}
	return item, err
}

func (s *QueueStore) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM notification_queue WHERE id = $1`, id)
	return err
}

func (s *QueueStore) ClaimDue(ctx context.Context, now time.Time, limit int) ([]*notify.QueuedNotification, error) {
	items, err := s.claim(ctx, `
		WITH picked AS (
			SELECT id FROM notification_queue
			WHERE (
				(status = 'pending' AND (next_retry_at IS NULL OR next_retry_at <= $1))
				OR (status = 'processing' AND claimed_at < $3)
			)
			AND (expires_at IS NULL OR expires_at > $1)
			ORDER BY priority DESC, created_at ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		UPDATE notification_queue q
		SET status = 'processing', claimed_at = $1
		FROM picked WHERE q.id = picked.id
		RETURNING `+prefixed("q", queueColumns),
		now, limitArg(limit), now.Add(-s.lease),
	)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(items, func(a, b *notify.QueuedNotification) int {
		if c := cmp.Compare(b.Priority, a.Priority); c != 0 {
			return c
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return items, nil
}

func (s *QueueStore) ClaimUser(ctx context.Context, userID int64, now time.Time, limit int) ([]*notify.QueuedNotification, error) {
	items, err := s.claim(ctx, `
		WITH picked AS (
			SELECT id FROM notification_queue
			WHERE user_id = $3
			AND status = 'pending'
			AND NOT (attempts = 0 AND next_retry_at IS NOT NULL AND next_retry_at > $1)
			ORDER BY created_at ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		UPDATE notification_queue q
		SET status = 'processing', claimed_at = $1
		FROM picked WHERE q.id = picked.id
		RETURNING `+prefixed("q", queueColumns),
		now, limitArg(limit), userID,
	)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(items, func(a, b *notify.QueuedNotification) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return items, nil
}

func (s *QueueStore) claim(ctx context.Context, sql string, args ...any) ([]*notify.QueuedNotification, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	items, err := collectQueued(rows)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *QueueStore) CancelPending(ctx context.Context, id uuid.UUID) (*notify.QueuedNotification, error) {
	row := s.pool.QueryRow(ctx, `
		DELETE FROM notification_queue
		WHERE id = $1 AND status = 'pending'
		RETURNING `+queueColumns, id)
	item, err := scanQueued(row)
	if err == nil {
		return item, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	var status string
	err = s.pool.QueryRow(ctx, `SELECT status FROM notification_queue WHERE id = $1`, id).Scan(&status)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, queue.ErrNotFound
	case err != nil:
		return nil, err
	default:
		return nil, queue.ErrNotCancellable
	}
}

func (s *QueueStore) ListByUser(ctx context.Context, userID int64, limit int) ([]*notify.QueuedNotification, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+queueColumns+`
		FROM notification_queue
		WHERE user_id = $1 AND status IN ('pending', 'processing')
		ORDER BY created_at ASC
		LIMIT $2
	`, userID, limitArg(limit))
	if err != nil {
		return nil, err
	}
	return collectQueued(rows)
}

func (s *QueueStore) CountByUser(ctx context.Context, userID int64) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT count(*) FROM notification_queue
		WHERE user_id = $1 AND status IN ('pending', 'processing')
	`, userID).Scan(&n)
	return n, err
}

func (s *QueueStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM notification_queue
		WHERE expires_at IS NOT NULL AND expires_at <= $1
		AND (status <> 'processing' OR claimed_at < $2)
	`, now, now.Add(-s.lease))
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (s *QueueStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM notification_queue
		WHERE created_at < $1
		AND (status <> 'processing' OR claimed_at < $2)
	`, cutoff, time.Now().Add(-s.lease))
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (s *QueueStore) Ping(ctx context.Context) error {
	return pg.Healthcheck(s.pool)(ctx)
}

func scanQueued(row pgx.Row) (*notify.QueuedNotification, error) {
	var (
		item     notify.QueuedNotification
		priority int16
		status   string
	)
	err := row.Scan(
		&item.ID, &item.UserID, &item.Type, &item.Title, &item.Body, &item.Data, &priority,
		&item.Attempts, &item.MaxAttempts, &status, &item.NextRetryAt, &item.LastError,
		&item.ExpiresAt, &item.RecordID, &item.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	item.Priority = notify.Priority(priority)
	item.Status = notify.Status(status)
	return &item, nil
}

func collectQueued(rows pgx.Rows) ([]*notify.QueuedNotification, error) {
	defer rows.Close()

	var out []*notify.QueuedNotification
	for rows.Next() {
		item, err := scanQueued(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
