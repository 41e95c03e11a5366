// Package notifications merges socket-origin and push-stream-origin events
// into per-viewer render queues, using one normalization path for every
// origin.
package notifications

import (
	"context"
	stderrors "errors"
	"hash/fnv"
	"sync"
	"time"

	"github.com/murmurchat/realtime/internal/instance"
	"go.uber.org/zap"
)

const shardCount = 16

const (
	DefaultTTL       = 5 * time.Second
	DefaultQueueSize = 64
)

type Instance interface {
	// QueueFor returns the viewer's queue, creating it on first use.
	QueueFor(identityID string) *Queue

	// Ingest normalizes one raw payload for the viewer and enqueues the
	// result. Validation drops are logged, never returned: a malformed
	// payload must not disturb the caller's loop.
	Ingest(raw map[string]any, viewerID string)

	// IngestBatch is Ingest over a slice, fail-soft per element.
	IngestBatch(raws []map[string]any, viewerID string)

	// Reconcile fetches persisted notification records for the viewer and
	// funnels them through the same normalization path, deduplicated
	// against anything already delivered live.
	Reconcile(ctx context.Context, identityID string, limit int) error
}

type shard struct {
	mtx    sync.Mutex
	queues map[string]*Queue
}

type inst struct {
	shards     [shardCount]*shard
	store      instance.NotificationStore
	prometheus instance.Prometheus
	ttl        time.Duration
	queueSize  int
}

type Options struct {
	Store      instance.NotificationStore
	Prometheus instance.Prometheus

	TTL       time.Duration
	QueueSize int
}

func New(opt Options) Instance {
	if opt.TTL <= 0 {
		opt.TTL = DefaultTTL
	}

	if opt.QueueSize <= 0 {
		opt.QueueSize = DefaultQueueSize
	}

	i := &inst{
		store:      opt.Store,
		prometheus: opt.Prometheus,
		ttl:        opt.TTL,
		queueSize:  opt.QueueSize,
	}

	for n := range i.shards {
		i.shards[n] = &shard{queues: map[string]*Queue{}}
	}

	return i
}

func (i *inst) QueueFor(identityID string) *Queue {
	s := i.shardFor(identityID)

	s.mtx.Lock()
	defer s.mtx.Unlock()

	q, ok := s.queues[identityID]
	if !ok {
		q = newQueue(i.ttl, i.queueSize)
		s.queues[identityID] = q
	}

	return q
}

func (i *inst) Ingest(raw map[string]any, viewerID string) {
	n, err := Normalize(raw, viewerID)
	if err != nil {
		if stderrors.Is(err, ErrSkipped) {
			return
		}

		if i.prometheus != nil {
			i.prometheus.NotificationsDropped().Inc()
		}

		zap.S().Warnw("dropped malformed notification",
			"viewer", viewerID,
			"error", err,
		)

		return
	}

	i.QueueFor(viewerID).Enqueue(n)
}

func (i *inst) IngestBatch(raws []map[string]any, viewerID string) {
	for _, raw := range raws {
		i.Ingest(raw, viewerID)
	}
}

func (i *inst) Reconcile(ctx context.Context, identityID string, limit int) error {
	if i.store == nil {
		return nil
	}

	raws, err := i.store.Fetch(ctx, identityID, limit)
	if err != nil {
		return err
	}

	events, drops := NormalizeAll(raws, identityID)
	if drops != nil {
		if i.prometheus != nil {
			i.prometheus.NotificationsDropped().Inc()
		}

		zap.S().Warnw("dropped persisted notification records",
			"viewer", identityID,
			"error", drops,
		)
	}

	q := i.QueueFor(identityID)
	for _, n := range events {
		q.Enqueue(n)
	}

	return nil
}

func (i *inst) shardFor(identityID string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(identityID))

	return i.shards[h.Sum32()%shardCount]
}
