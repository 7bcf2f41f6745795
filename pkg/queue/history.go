package queue

import (
	"github.com/google/uuid"

	"github.com/dmitrymomot/notifycore/pkg/notify"
)

// history is a bounded ring of terminal items, newest overwrite oldest.
// It is guarded by Queue.mu.
type history struct {
	ring []*notify.QueuedNotification
	next int
	size int
	byID map[uuid.UUID]*notify.QueuedNotification
}

func newHistory(capacity int) *history {
	return &history{
		ring: make([]*notify.QueuedNotification, max(1, capacity)),
		byID: make(map[uuid.UUID]*notify.QueuedNotification),
	}
}

func (h *history) add(item *notify.QueuedNotification) {
	if old := h.ring[h.next]; old != nil {
		delete(h.byID, old.ID)
	}
	h.ring[h.next] = item
	h.byID[item.ID] = item
	h.next = (h.next + 1) % len(h.ring)
	h.size = min(h.size+1, len(h.ring))
}

func (h *history) get(id uuid.UUID) (*notify.QueuedNotification, bool) {
	item, ok := h.byID[id]
	return item, ok
}

// recent returns up to n items newest first that match keep.
func (h *history) recent(n int, keep func(*notify.QueuedNotification) bool) []*notify.QueuedNotification {
	var out []*notify.QueuedNotification
	for i := 1; i <= h.size; i++ {
		item := h.ring[(h.next-i+len(h.ring))%len(h.ring)]
		if keep != nil && !keep(item) {
			continue
		}
		out = append(out, item.Clone())
		if n > 0 && len(out) == n {
			break
		}
	}
	return out
}

func (h *history) countByStatus() map[notify.Status]int {
	out := make(map[notify.Status]int)
	for i := range h.size {
		out[h.ring[i].Status]++
	}
	return out
}
