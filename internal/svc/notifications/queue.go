package notifications

import (
	"sync"
	"time"

	"github.com/murmurchat/realtime/data/model"
	gocache "github.com/patrickmn/go-cache"
)

// QueueEntry is a canonical event plus its render lifecycle.
type QueueEntry struct {
	Notification model.Notification `json:"notification"`
	EnqueuedAt   int64              `json:"enqueued_at"`
	ExpiresAt    int64              `json:"expires_at"`
}

// Queue is an ordered, bounded sequence of notification entries for one
// viewer. Enqueue is idempotent by event id: the same logical event arriving
// via the live broadcast path and a later persisted-record reconciliation
// is surfaced once.
type Queue struct {
	mtx     sync.Mutex
	entries []QueueEntry
	seen    *gocache.Cache
	ttl     time.Duration
	limit   int
}

func newQueue(ttl time.Duration, limit int) *Queue {
	// The dedup set outlives entry expiry so a reconciliation fetch cannot
	// resurface an already-dismissed toast.
	return &Queue{
		seen:  gocache.New(ttl*4, ttl*2),
		ttl:   ttl,
		limit: limit,
	}
}

// Enqueue appends the event unless one with the same id was already seen.
// Reports whether the entry was added. When the queue is full the oldest
// entry is evicted.
func (q *Queue) Enqueue(n model.Notification) bool {
	q.mtx.Lock()
	defer q.mtx.Unlock()

	if _, dup := q.seen.Get(n.NotificationID()); dup {
		return false
	}

	q.seen.SetDefault(n.NotificationID(), struct{}{})

	now := time.Now()
	q.entries = append(q.entries, QueueEntry{
		Notification: n,
		EnqueuedAt:   now.UnixMilli(),
		ExpiresAt:    now.Add(q.ttl).UnixMilli(),
	})

	if q.limit > 0 && len(q.entries) > q.limit {
		q.entries = q.entries[len(q.entries)-q.limit:]
	}

	return true
}

// Dismiss removes the entry immediately. Unknown ids are a no-op.
func (q *Queue) Dismiss(id string) {
	q.mtx.Lock()
	defer q.mtx.Unlock()

	for n, e := range q.entries {
		if e.Notification.NotificationID() == id {
			q.entries = append(q.entries[:n], q.entries[n+1:]...)

			return
		}
	}
}

// Snapshot returns the live entries in arrival order, sweeping out expired
// ones. This is the sole surface the rendering layer consumes.
func (q *Queue) Snapshot() []QueueEntry {
	q.mtx.Lock()
	defer q.mtx.Unlock()

	now := time.Now().UnixMilli()

	live := q.entries[:0]
	for _, e := range q.entries {
		if e.ExpiresAt > now {
			live = append(live, e)
		}
	}

	q.entries = live

	out := make([]QueueEntry, len(q.entries))
	copy(out, q.entries)

	return out
}

func (q *Queue) Len() int {
	return len(q.Snapshot())
}
