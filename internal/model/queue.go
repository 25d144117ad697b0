package model

import "time"

// QueueEntry is one waiting player. The rating is the snapshot taken when the
// player was admitted.
type QueueEntry struct {
	PlayerID   PlayerID
	Rating     EncryptedRating
	EnqueuedAt time.Time

	// Seq is assigned by storage and breaks ties between equal timestamps so
	// that ordering stays insertion order.
	Seq int64
}

// WaitTime returns how long the entry has been waiting at now
func (e QueueEntry) WaitTime(now time.Time) time.Duration {
	if now.Before(e.EnqueuedAt) {
		return 0
	}
	return now.Sub(e.EnqueuedAt)
}

// QueueEntryLess orders entries oldest first, then by insertion sequence
func QueueEntryLess(a, b QueueEntry) bool {
	if !a.EnqueuedAt.Equal(b.EnqueuedAt) {
		return a.EnqueuedAt.Before(b.EnqueuedAt)
	}
	return a.Seq < b.Seq
}
