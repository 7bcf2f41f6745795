package queue

import (
	"cmp"

	"github.com/dmitrymomot/notifycore/pkg/notify"
)

// byPriority orders items highest priority first, oldest first within a
// priority.
func byPriority(a, b *notify.QueuedNotification) int {
	if c := cmp.Compare(b.Priority, a.Priority); c != 0 {
		return c
	}
	return a.CreatedAt.Compare(b.CreatedAt)
}

// byCreation orders items oldest first.
func byCreation(a, b *notify.QueuedNotification) int {
	return a.CreatedAt.Compare(b.CreatedAt)
}
