package notifications

import (
	"fmt"
	"testing"
	"time"

	"github.com/murmurchat/realtime/data/model"
	"github.com/murmurchat/realtime/internal/testutil"
)

func toast(id string) model.GeneralNotification {
	return model.GeneralNotification{
		ID:        id,
		Type:      "notification",
		Timestamp: time.Now().UnixMilli(),
		Title:     "t-" + id,
	}
}

func TestQueueDedup(t *testing.T) {
	t.Parallel()

	q := newQueue(time.Minute, 8)

	testutil.Assert(t, true, q.Enqueue(toast("n1")), "first enqueue accepted")
	testutil.Assert(t, false, q.Enqueue(toast("n1")), "duplicate id rejected")
	testutil.Assert(t, true, q.Enqueue(toast("n2")), "distinct id accepted")

	testutil.Assert(t, 2, q.Len(), "two live entries")
}

func TestQueueDedupSurvivesDismiss(t *testing.T) {
	t.Parallel()

	q := newQueue(time.Minute, 8)

	q.Enqueue(toast("n1"))
	q.Dismiss("n1")

	testutil.Assert(t, 0, q.Len(), "dismissed entry gone")

	// A reconciliation replay of the same event must not resurface it.
	testutil.Assert(t, false, q.Enqueue(toast("n1")), "dismissed id stays seen")
}

func TestQueueBound(t *testing.T) {
	t.Parallel()

	q := newQueue(time.Minute, 3)

	for n := 0; n < 5; n++ {
		q.Enqueue(toast(fmt.Sprintf("n%d", n)))
	}

	entries := q.Snapshot()
	testutil.Assert(t, 3, len(entries), "bounded at the limit")

	// Oldest entries are the ones evicted.
	testutil.Assert(t, "n2", entries[0].Notification.NotificationID(), "n0 and n1 evicted")
	testutil.Assert(t, "n4", entries[2].Notification.NotificationID(), "newest kept")
}

func TestQueueExpiry(t *testing.T) {
	t.Parallel()

	q := newQueue(10*time.Millisecond, 8)

	q.Enqueue(toast("n1"))
	testutil.Assert(t, 1, q.Len(), "live before ttl")

	time.Sleep(25 * time.Millisecond)

	testutil.Assert(t, 0, q.Len(), "swept after ttl")
}

func TestQueueSnapshotOrder(t *testing.T) {
	t.Parallel()

	q := newQueue(time.Minute, 8)

	q.Enqueue(toast("n1"))
	q.Enqueue(toast("n2"))
	q.Enqueue(toast("n3"))
	q.Dismiss("n2")

	entries := q.Snapshot()
	testutil.Assert(t, 2, len(entries), "dismissed removed")
	testutil.Assert(t, "n1", entries[0].Notification.NotificationID(), "arrival order")
	testutil.Assert(t, "n3", entries[1].Notification.NotificationID(), "arrival order")
}
