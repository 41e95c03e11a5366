// Package presence derives each identity's availability from its live
// connection count. Multiple connections for one identity coalesce into a
// single online state; the offline transition fires only when the last
// connection goes away.
package presence

import (
	"hash/fnv"
	"sync"
	"time"

	"github.com/murmurchat/realtime/data/events"
	"github.com/murmurchat/realtime/data/model"
	"github.com/murmurchat/realtime/internal/errors"
	"github.com/murmurchat/realtime/internal/svc/rooms"
)

const shardCount = 16

type Instance interface {
	// SetOnline adds one connection reference for the identity. The first
	// reference broadcasts presence.online to the presence room.
	SetOnline(identityID string)

	// SetOffline drops one connection reference. The last reference removes
	// the state and broadcasts presence.offline. Exactly one offline event
	// is emitted per online period.
	SetOffline(identityID string)

	// UpdateStatus changes the advertised status of an online identity and
	// broadcasts presence.updated.
	UpdateStatus(identityID string, status model.PresenceStatus) error

	// Status reports the current status; offline for unknown identities.
	Status(identityID string) model.PresenceStatus
}

type state struct {
	status    model.PresenceStatus
	changedAt int64
	refs      int
}

type shard struct {
	mtx    sync.Mutex
	states map[string]*state
}

type inst struct {
	shards [shardCount]*shard
	rooms  rooms.Instance
}

type Options struct {
	Rooms rooms.Instance
}

func New(opt Options) Instance {
	i := &inst{
		rooms: opt.Rooms,
	}

	for n := range i.shards {
		i.shards[n] = &shard{states: map[string]*state{}}
	}

	return i
}

func (i *inst) shardFor(identityID string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(identityID))

	return i.shards[h.Sum32()%shardCount]
}

func (i *inst) SetOnline(identityID string) {
	s := i.shardFor(identityID)

	s.mtx.Lock()
	st, ok := s.states[identityID]
	if ok {
		st.refs++
		s.mtx.Unlock()

		return
	}

	now := time.Now().UnixMilli()
	s.states[identityID] = &state{
		status:    model.PresenceStatusOnline,
		changedAt: now,
		refs:      1,
	}
	s.mtx.Unlock()

	i.rooms.Broadcast(rooms.PresenceRoom, events.NewDispatch(events.EventTypeUserOnline, events.PresenceBody{
		UserID:    identityID,
		Status:    model.PresenceStatusOnline,
		Timestamp: now,
	}), "")
}

func (i *inst) SetOffline(identityID string) {
	s := i.shardFor(identityID)

	s.mtx.Lock()
	st, ok := s.states[identityID]
	if !ok {
		s.mtx.Unlock()

		return
	}

	st.refs--
	if st.refs > 0 {
		s.mtx.Unlock()

		return
	}

	delete(s.states, identityID)
	s.mtx.Unlock()

	i.rooms.Broadcast(rooms.PresenceRoom, events.NewDispatch(events.EventTypeUserOffline, events.PresenceBody{
		UserID:    identityID,
		Status:    model.PresenceStatusOffline,
		Timestamp: time.Now().UnixMilli(),
	}), "")
}

func (i *inst) UpdateStatus(identityID string, status model.PresenceStatus) error {
	if !status.Settable() {
		return errors.ErrInvalidRequest().SetDetail("Invalid Presence Status").SetFields(errors.Fields{
			"status": string(status),
		})
	}

	s := i.shardFor(identityID)

	s.mtx.Lock()
	st, ok := s.states[identityID]
	if !ok {
		s.mtx.Unlock()

		return errors.ErrNotFound().SetDetail("Identity Is Not Online")
	}

	now := time.Now().UnixMilli()
	st.status = status
	st.changedAt = now
	s.mtx.Unlock()

	i.rooms.Broadcast(rooms.PresenceRoom, events.NewDispatch(events.EventTypePresenceUpdated, events.PresenceBody{
		UserID:    identityID,
		Status:    status,
		Timestamp: now,
	}), "")

	return nil
}

func (i *inst) Status(identityID string) model.PresenceStatus {
	s := i.shardFor(identityID)

	s.mtx.Lock()
	defer s.mtx.Unlock()

	if st, ok := s.states[identityID]; ok {
		return st.status
	}

	return model.PresenceStatusOffline
}
