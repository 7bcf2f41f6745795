package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/notifycore/pkg/cache"
	"github.com/dmitrymomot/notifycore/pkg/notify"
	"github.com/dmitrymomot/notifycore/pkg/pg"
)

// Users is the user directory and the preference store. A missing
// preference row means the type is enabled, email fallback is allowed and
// delivery is automatic.
type Users struct {
	pool  *pgxpool.Pool
	cache *cache.LRU[int64, notify.User]
}

// UsersOption configures Users.
type UsersOption func(*Users)

// WithUserCache keeps up to size directory entries in memory for ttl.
// UpsertUser through the same Users invalidates the entry; changes made by
// other writers show up once the entry expires.
func WithUserCache(size int, ttl time.Duration) UsersOption {
	return func(u *Users) {
		if size > 0 {
			u.cache = cache.New[int64, notify.User](size, ttl)
		}
	}
}

func NewUsers(pool *pgxpool.Pool, opts ...UsersOption) *Users {
	u := &Users{pool: pool}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

func (u *Users) GetUser(ctx context.Context, userID int64) (*notify.User, error) {
	if u.cache != nil {
		if user, ok := u.cache.Get(userID); ok {
			return &user, nil
		}
	}

	user := notify.User{ID: userID}
	err := u.pool.QueryRow(ctx, `SELECT email, username FROM users WHERE id = $1`, userID).
		Scan(&user.Email, &user.Username)
	if pg.IsNotFoundError(err) {
		return nil, notify.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	if u.cache != nil {
		u.cache.Put(userID, user)
	}
	return &user, nil
}

// UpsertUser creates or updates a directory entry.
func (u *Users) UpsertUser(ctx context.Context, user notify.User) error {
	_, err := u.pool.Exec(ctx, `
		INSERT INTO users (id, email, username) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET email = EXCLUDED.email, username = EXCLUDED.username
	`, user.ID, user.Email, user.Username)
	if u.cache != nil {
		u.cache.Remove(user.ID)
	}
	return err
}

// Preference is one stored per-type setting.
type Preference struct {
	UserID         int64
	Type           string
	Enabled        bool
	EmailEnabled   bool
	DeliveryMethod notify.DeliveryMethod
}

// SetPreference stores a per-type setting.
func (u *Users) SetPreference(ctx context.Context, p Preference) error {
	method := p.DeliveryMethod
	if method == "" {
		method = notify.DeliveryAuto
	}
	_, err := u.pool.Exec(ctx, `
		INSERT INTO notification_preferences (user_id, type, enabled, email_enabled, delivery_method)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, type) DO UPDATE SET
			enabled = EXCLUDED.enabled,
			email_enabled = EXCLUDED.email_enabled,
			delivery_method = EXCLUDED.delivery_method
	`, p.UserID, p.Type, p.Enabled, p.EmailEnabled, string(method))
	return err
}

func (u *Users) preference(ctx context.Context, userID int64, notifType string) (Preference, error) {
	p := Preference{
		UserID:         userID,
		Type:           notifType,
		Enabled:        true,
		EmailEnabled:   true,
		DeliveryMethod: notify.DeliveryAuto,
	}
	var method string
	err := u.pool.QueryRow(ctx, `
		SELECT enabled, email_enabled, delivery_method
		FROM notification_preferences
		WHERE user_id = $1 AND type = $2
	`, userID, notifType).Scan(&p.Enabled, &p.EmailEnabled, &method)
	if pg.IsNotFoundError(err) {
		return p, nil
	}
	if err != nil {
		return p, err
	}
	p.DeliveryMethod = notify.DeliveryMethod(method)
	return p, nil
}

func (u *Users) ShouldSend(ctx context.Context, userID int64, notifType string) (bool, error) {
	p, err := u.preference(ctx, userID, notifType)
	return p.Enabled, err
}

func (u *Users) ShouldSendEmail(ctx context.Context, userID int64, notifType string) (bool, error) {
	p, err := u.preference(ctx, userID, notifType)
	if err != nil {
		return false, err
	}
	return p.Enabled && p.EmailEnabled, nil
}

func (u *Users) PreferredDeliveryMethod(ctx context.Context, userID int64, notifType string) (notify.DeliveryMethod, error) {
	p, err := u.preference(ctx, userID, notifType)
	if err != nil {
		return notify.DeliveryAuto, err
	}
	switch p.DeliveryMethod {
	case notify.DeliveryRealtimeFirst, notify.DeliveryEmailOnly:
		return p.DeliveryMethod, nil
	default:
		return notify.DeliveryAuto, nil
	}
}

// Ping lets health reports include the directory.
func (u *Users) Ping(ctx context.Context) error {
	return pg.Healthcheck(u.pool)(ctx)
}
