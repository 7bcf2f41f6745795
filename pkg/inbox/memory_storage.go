package inbox

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"
)

// MemoryStorage keeps records per user in process memory.
type MemoryStorage struct {
	mu      sync.RWMutex
	records map[int64][]Record
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{records: make(map[int64][]Record)}
}

func (s *MemoryStorage) Create(_ context.Context, rec Record) error {
	if rec.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidRecord)
	}
	if rec.UserID <= 0 {
		return fmt.Errorf("%w: user id is required", ErrInvalidRecord)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.UserID] = append(s.records[rec.UserID], rec)
	return nil
}

func (s *MemoryStorage) Get(_ context.Context, userID int64, id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.records[userID] {
		if r.ID == id {
			return &r, nil
		}
	}
	return nil, ErrRecordNotFound
}

func (s *MemoryStorage) List(_ context.Context, userID int64, opts ListOptions) ([]Record, error) {
	s.mu.RLock()
	filtered := make([]Record, 0, len(s.records[userID]))
	for _, r := range s.records[userID] {
		if opts.OnlyUnread && r.Read {
			continue
		}
		if len(opts.Types) > 0 && !slices.Contains(opts.Types, r.Type) {
			continue
		}
		if opts.Since != nil && r.CreatedAt.Before(*opts.Since) {
			continue
		}
		filtered = append(filtered, r)
	}
	s.mu.RUnlock()

	slices.SortStableFunc(filtered, func(a, b Record) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	return paginate(filtered, opts.Offset, opts.Limit), nil
}

func (s *MemoryStorage) ListUndelivered(_ context.Context, userID int64, limit int) ([]Record, error) {
	s.mu.RLock()
	var out []Record
	for _, r := range s.records[userID] {
		if !r.Delivered {
			out = append(out, r)
		}
	}
	s.mu.RUnlock()

	slices.SortStableFunc(out, func(a, b Record) int {
		return cmp.Compare(a.CreatedAt.UnixNano(), b.CreatedAt.UnixNano())
	})
	return paginate(out, 0, limit), nil
}

func (s *MemoryStorage) MarkDelivered(_ context.Context, userID int64, id, via string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs := s.records[userID]
	for i := range recs {
		if recs[i].ID != id {
			continue
		}
		recs[i].Dispatched = true
		if !recs[i].Delivered {
			recs[i].Delivered = true
			recs[i].DeliveredVia = via
			recs[i].DeliveredAt = &at
		}
		return nil
	}
	return ErrRecordNotFound
}

func (s *MemoryStorage) ListStranded(_ context.Context, before time.Time, limit int) ([]Record, error) {
	s.mu.RLock()
	var out []Record
	for _, recs := range s.records {
		for _, r := range recs {
			if !r.Delivered && !r.Dispatched && !r.CreatedAt.After(before) {
				out = append(out, r)
			}
		}
	}
	s.mu.RUnlock()

	slices.SortStableFunc(out, func(a, b Record) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
	return paginate(out, 0, limit), nil
}

func (s *MemoryStorage) MarkDispatched(_ context.Context, userID int64, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs := s.records[userID]
	for i := range recs {
		if recs[i].ID == id {
			recs[i].Dispatched = true
			return nil
		}
	}
	return ErrRecordNotFound
}

func (s *MemoryStorage) MarkRead(_ context.Context, userID int64, ids ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	recs := s.records[userID]
	for i := range recs {
		if !recs[i].Read && slices.Contains(ids, recs[i].ID) {
			recs[i].Read = true
			recs[i].ReadAt = &now
		}
	}
	return nil
}

func (s *MemoryStorage) CountUnread(_ context.Context, userID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, r := range s.records[userID] {
		if !r.Read {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStorage) Ping(context.Context) error { return nil }

// Len returns the number of stored records across all users.
func (s *MemoryStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, recs := range s.records {
		n += len(recs)
	}
	return n
}

func paginate(recs []Record, offset, limit int) []Record {
	if offset >= len(recs) {
		return []Record{}
	}
	end := len(recs)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return recs[offset:end]
}
