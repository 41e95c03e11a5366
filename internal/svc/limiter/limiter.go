// Package limiter rate-limits inbound gateway commands per connection.
package limiter

import (
	"sync"

	"golang.org/x/time/rate"
)

type Instance interface {
	// Allow reports whether the connection may issue another command now.
	Allow(connID string) bool

	// Forget drops the connection's bucket. Called on disconnect.
	Forget(connID string)
}

type inst struct {
	mtx     sync.Mutex
	buckets map[string]*rate.Limiter

	rate  rate.Limit
	burst int
}

type Options struct {
	// Commands per second, with Burst headroom for short flurries
	// (typing start/stop pairs, rapid reads).
	Rate  float64
	Burst int
}

func New(opt Options) Instance {
	if opt.Rate <= 0 {
		opt.Rate = 10
	}

	if opt.Burst <= 0 {
		opt.Burst = 20
	}

	return &inst{
		buckets: map[string]*rate.Limiter{},
		rate:    rate.Limit(opt.Rate),
		burst:   opt.Burst,
	}
}

func (i *inst) Allow(connID string) bool {
	i.mtx.Lock()

	b, ok := i.buckets[connID]
	if !ok {
		b = rate.NewLimiter(i.rate, i.burst)
		i.buckets[connID] = b
	}

	i.mtx.Unlock()

	return b.Allow()
}

func (i *inst) Forget(connID string) {
	i.mtx.Lock()
	delete(i.buckets, connID)
	i.mtx.Unlock()
}
