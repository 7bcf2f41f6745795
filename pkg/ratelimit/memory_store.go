package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a process-local Store with periodic cleanup of idle keys.
type MemoryStore struct {
	mu      sync.Mutex
	series  map[string]*series
	blocks  map[string]time.Time
	nowFunc func() time.Time

	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	cleanupOnce     sync.Once
}

type series struct {
	timestamps []time.Time
	retain     time.Duration
}

// MemoryStoreOption configures a MemoryStore.
type MemoryStoreOption func(*MemoryStore)

// WithCleanupInterval sets how often idle keys are dropped.
func WithCleanupInterval(interval time.Duration) MemoryStoreOption {
	return func(s *MemoryStore) {
		if interval > 0 {
			s.cleanupInterval = interval
		}
	}
}

// WithStoreClock replaces time.Now for background cleanup.
func WithStoreClock(now func() time.Time) MemoryStoreOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.nowFunc = now
		}
	}
}

// NewMemoryStore creates a store and starts its cleanup goroutine.
// Call Close to stop it.
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		series:          make(map[string]*series),
		blocks:          make(map[string]time.Time),
		nowFunc:         time.Now,
		cleanupInterval: time.Minute,
		stopCleanup:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	go s.cleanupLoop()

	return s
}

func (s *MemoryStore) Hit(_ context.Context, key string, now time.Time, limits []Limit) (HitResult, error) {
	if key == "" {
		return HitResult{}, ErrKeyRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sr, ok := s.series[key]
	if !ok {
		sr = &series{}
		s.series[key] = sr
	}
	sr.retain = max(sr.retain, maxWindow(limits))
	sr.trim(now)

	res := HitResult{
		Counts:   make([]int64, len(limits)),
		Oldest:   make([]time.Time, len(limits)),
		Recorded: true,
	}
	for i, l := range limits {
		cutoff := now.Add(-l.Window)
		for _, ts := range sr.timestamps {
			if ts.After(cutoff) {
				if res.Oldest[i].IsZero() {
					res.Oldest[i] = ts
				}
				res.Counts[i]++
			}
		}
		if l.Max > 0 && res.Counts[i] >= int64(l.Max) {
			res.Recorded = false
		}
	}
	if res.Recorded {
		sr.timestamps = append(sr.timestamps, now)
	}

	return res, nil
}

func (s *MemoryStore) Count(_ context.Context, key string, now time.Time, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sr, ok := s.series[key]
	if !ok {
		return 0, nil
	}
	cutoff := now.Add(-window)
	var n int64
	for _, ts := range sr.timestamps {
		if ts.After(cutoff) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) SetBlock(_ context.Context, key string, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocks[key] = until
	return nil
}

func (s *MemoryStore) BlockedUntil(_ context.Context, key string, now time.Time) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	until, ok := s.blocks[key]
	if !ok || !until.After(now) {
		return time.Time{}, nil
	}
	return until, nil
}

func (s *MemoryStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.series, key)
	delete(s.blocks, key)
	return nil
}

// Close stops the cleanup goroutine.
func (s *MemoryStore) Close() error {
	s.cleanupOnce.Do(func() {
		close(s.stopCleanup)
	})
	return nil
}

func (s *MemoryStore) cleanupLoop() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopCleanup:
			return
		}
	}
}

// cleanup drops empty series and expired blocks.
func (s *MemoryStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowFunc()
	for key, sr := range s.series {
		sr.trim(now)
		if len(sr.timestamps) == 0 {
			delete(s.series, key)
		}
	}
	for key, until := range s.blocks {
		if !until.After(now) {
			delete(s.blocks, key)
		}
	}
}

// trim drops timestamps older than the retention window.
func (sr *series) trim(now time.Time) {
	cutoff := now.Add(-sr.retain)
	i := 0
	for i < len(sr.timestamps) && !sr.timestamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		sr.timestamps = append(sr.timestamps[:0], sr.timestamps[i:]...)
	}
}
