package queue

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/notifycore/pkg/notify"
)

// MemoryStore is a Store for tests and single-process development.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[uuid.UUID]*notify.QueuedNotification
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[uuid.UUID]*notify.QueuedNotification)}
}

func (s *MemoryStore) Save(_ context.Context, item *notify.QueuedNotification) error {
	if item == nil || item.ID == uuid.Nil {
		return ErrInvalidItem
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item.ID] = item.Clone()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (*notify.QueuedNotification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return item.Clone(), nil
}

func (s *MemoryStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
	return nil
}

func (s *MemoryStore) ClaimDue(_ context.Context, now time.Time, limit int) ([]*notify.QueuedNotification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.claim(limit, byPriority, func(item *notify.QueuedNotification) bool {
		return item.IsDue(now) && !item.IsExpired(now)
	}), nil
}

func (s *MemoryStore) ClaimUser(_ context.Context, userID int64, now time.Time, limit int) ([]*notify.QueuedNotification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.claim(limit, byCreation, func(item *notify.QueuedNotification) bool {
		return item.UserID == userID && item.Status == notify.StatusPending && !item.IsScheduled(now)
	}), nil
}

// claim must be called with mu held for writing.
func (s *MemoryStore) claim(limit int, order func(a, b *notify.QueuedNotification) int, keep func(*notify.QueuedNotification) bool) []*notify.QueuedNotification {
	var picked []*notify.QueuedNotification
	for _, item := range s.items {
		if keep(item) {
			picked = append(picked, item)
		}
	}
	slices.SortFunc(picked, order)
	if limit > 0 && len(picked) > limit {
		picked = picked[:limit]
	}
	out := make([]*notify.QueuedNotification, len(picked))
	for i, item := range picked {
		item.Status = notify.StatusProcessing
		out[i] = item.Clone()
	}
	return out
}

func (s *MemoryStore) CancelPending(_ context.Context, id uuid.UUID) (*notify.QueuedNotification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	if item.Status != notify.StatusPending {
		return nil, ErrNotCancellable
	}
	delete(s.items, id)
	return item.Clone(), nil
}

func (s *MemoryStore) ListByUser(_ context.Context, userID int64, limit int) ([]*notify.QueuedNotification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*notify.QueuedNotification
	for _, item := range s.items {
		if item.UserID == userID && !item.Status.IsTerminal() {
			out = append(out, item.Clone())
		}
	}
	slices.SortFunc(out, byCreation)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) CountByUser(_ context.Context, userID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, item := range s.items {
		if item.UserID == userID && !item.Status.IsTerminal() {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	return s.deleteWhere(func(item *notify.QueuedNotification) bool {
		return item.Status != notify.StatusProcessing && item.IsExpired(now)
	}), nil
}

func (s *MemoryStore) DeleteOlderThan(_ context.Context, cutoff time.Time) (int, error) {
	return s.deleteWhere(func(item *notify.QueuedNotification) bool {
		return item.Status != notify.StatusProcessing && item.CreatedAt.Before(cutoff)
	}), nil
}

func (s *MemoryStore) deleteWhere(match func(*notify.QueuedNotification) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, item := range s.items {
		if match(item) {
			delete(s.items, id)
			n++
		}
	}
	return n
}

// Len returns the number of stored items.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *MemoryStore) Ping(context.Context) error { return nil }
