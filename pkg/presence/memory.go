package presence

import (
	"context"
	"sync"
	"time"
)

// MemoryTracker is a process-local Tracker.
type MemoryTracker struct {
	mu    sync.RWMutex
	users map[int64]*Status
	now   func() time.Time
	ttl   time.Duration
}

// MemoryOption configures a MemoryTracker.
type MemoryOption func(*MemoryTracker)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) MemoryOption {
	return func(t *MemoryTracker) {
		if now != nil {
			t.now = now
		}
	}
}

// WithTTL makes users read as offline once LastSeen is older than ttl,
// matching the expiring online key of RedisTracker. Zero disables expiry.
func WithTTL(ttl time.Duration) MemoryOption {
	return func(t *MemoryTracker) {
		if ttl > 0 {
			t.ttl = ttl
		}
	}
}

func NewMemoryTracker(opts ...MemoryOption) *MemoryTracker {
	t := &MemoryTracker{users: make(map[int64]*Status), now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *MemoryTracker) IsOnline(_ context.Context, userID int64) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.users[userID]
	return ok && t.online(s)
}

func (t *MemoryTracker) SetOnline(_ context.Context, userID int64, channel string) error {
	if userID <= 0 {
		return ErrInvalidUserID
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.entry(userID)
	s.Online = true
	s.Channel = channel
	s.LastSeen = t.now()
	return nil
}

func (t *MemoryTracker) SetOffline(_ context.Context, userID int64) error {
	if userID <= 0 {
		return ErrInvalidUserID
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.entry(userID)
	s.Online = false
	s.LastSeen = t.now()
	return nil
}

func (t *MemoryTracker) SetQueued(_ context.Context, userID int64, count int) error {
	if userID <= 0 {
		return ErrInvalidUserID
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entry(userID).QueuedCount = max(0, count)
	return nil
}

// Status returns a zero Status with UserID set for unknown users.
func (t *MemoryTracker) Status(_ context.Context, userID int64) (Status, error) {
	if userID <= 0 {
		return Status{}, ErrInvalidUserID
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	if s, ok := t.users[userID]; ok {
		st := *s
		st.Online = t.online(s)
		return st, nil
	}
	return Status{UserID: userID}, nil
}

// Online returns the ids of all users currently marked online.
func (t *MemoryTracker) Online() []int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ids := make([]int64, 0, len(t.users))
	for id, s := range t.users {
		if t.online(s) {
			ids = append(ids, id)
		}
	}
	return ids
}

// Touch refreshes LastSeen of an online user. Offline users are left as is.
func (t *MemoryTracker) Touch(_ context.Context, userID int64) error {
	if userID <= 0 {
		return ErrInvalidUserID
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.users[userID]; ok && t.online(s) {
		s.LastSeen = t.now()
	}
	return nil
}

// online must be called with mu held.
func (t *MemoryTracker) online(s *Status) bool {
	if !s.Online {
		return false
	}
	return t.ttl <= 0 || t.now().Sub(s.LastSeen) < t.ttl
}

// entry must be called with mu held for writing.
func (t *MemoryTracker) entry(userID int64) *Status {
	s, ok := t.users[userID]
	if !ok {
		s = &Status{UserID: userID}
		t.users[userID] = s
	}
	return s
}
