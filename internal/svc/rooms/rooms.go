// Package rooms groups connections into conversation-scoped broadcast
// groups. Rooms are created lazily on first join and garbage-collected when
// their last member leaves.
package rooms

import (
	"encoding/json"
	"hash/fnv"
	"sync"

	"github.com/murmurchat/realtime/data/events"
	"github.com/murmurchat/realtime/internal/svc/registry"
	"go.uber.org/zap"
)

// PresenceRoom is the sentinel room every connection joins on connect;
// presence transitions are broadcast there.
const PresenceRoom = "presence"

const shardCount = 32

type Instance interface {
	// Join adds the connection to the room, creating it if needed.
	// Joining twice is a no-op.
	Join(roomID string, conn *registry.Connection)

	// Leave removes the connection; an empty room is deleted.
	Leave(roomID string, conn *registry.Connection)

	Members(roomID string) []string

	IsMember(roomID, connID string) bool

	// Broadcast delivers the event to every current member except
	// excludeConnID (empty string excludes nobody). Delivery to a dead
	// connection is dropped per-recipient; the multicast never fails.
	Broadcast(roomID string, msg events.Message[json.RawMessage], excludeConnID string)

	// RemoveFromAll removes the connection from every room it joined and
	// returns the room ids it left. Used for disconnect cleanup; must
	// complete synchronously.
	RemoveFromAll(conn *registry.Connection) []string

	Size() int
}

type room struct {
	mtx     sync.RWMutex
	members map[string]*registry.Connection
}

type shard struct {
	mtx   sync.RWMutex
	rooms map[string]*room
}

type inst struct {
	shards [shardCount]*shard
}

type Options struct{}

func New(_ Options) Instance {
	i := &inst{}

	for n := range i.shards {
		i.shards[n] = &shard{rooms: map[string]*room{}}
	}

	return i
}

func (i *inst) shardFor(roomID string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(roomID))

	return i.shards[h.Sum32()%shardCount]
}

func (i *inst) Join(roomID string, conn *registry.Connection) {
	s := i.shardFor(roomID)

	// The member insert stays under the shard lock so a concurrent Leave
	// cannot empty and delete the room between the lookup and the insert.
	s.mtx.Lock()
	r, ok := s.rooms[roomID]
	if !ok {
		r = &room{members: map[string]*registry.Connection{}}
		s.rooms[roomID] = r
	}

	r.mtx.Lock()
	r.members[conn.ID] = conn
	r.mtx.Unlock()
	s.mtx.Unlock()

	conn.TrackRoom(roomID)
}

func (i *inst) Leave(roomID string, conn *registry.Connection) {
	s := i.shardFor(roomID)

	s.mtx.Lock()
	r, ok := s.rooms[roomID]
	if !ok {
		s.mtx.Unlock()

		return
	}

	r.mtx.Lock()
	delete(r.members, conn.ID)
	empty := len(r.members) == 0
	r.mtx.Unlock()

	if empty {
		delete(s.rooms, roomID)
	}
	s.mtx.Unlock()

	conn.UntrackRoom(roomID)
}

func (i *inst) Members(roomID string) []string {
	r, ok := i.lookup(roomID)
	if !ok {
		return nil
	}

	r.mtx.RLock()
	defer r.mtx.RUnlock()

	out := make([]string, 0, len(r.members))
	for id := range r.members {
		out = append(out, id)
	}

	return out
}

func (i *inst) IsMember(roomID, connID string) bool {
	r, ok := i.lookup(roomID)
	if !ok {
		return false
	}

	r.mtx.RLock()
	defer r.mtx.RUnlock()

	_, ok = r.members[connID]

	return ok
}

func (i *inst) Broadcast(roomID string, msg events.Message[json.RawMessage], excludeConnID string) {
	r, ok := i.lookup(roomID)
	if !ok {
		return
	}

	// Snapshot the member set so a slow or failing write never holds the
	// room lock.
	r.mtx.RLock()
	recipients := make([]*registry.Connection, 0, len(r.members))
	for id, conn := range r.members {
		if id == excludeConnID {
			continue
		}

		recipients = append(recipients, conn)
	}
	r.mtx.RUnlock()

	for _, conn := range recipients {
		if err := conn.SendEvent(msg); err != nil {
			zap.S().Warnw("dropped broadcast recipient",
				"room", roomID,
				"connection", conn.ID,
				"error", err,
			)
		}
	}
}

func (i *inst) RemoveFromAll(conn *registry.Connection) []string {
	left := conn.Rooms()

	for _, roomID := range left {
		i.Leave(roomID, conn)
	}

	return left
}

func (i *inst) Size() int {
	n := 0

	for _, s := range i.shards {
		s.mtx.RLock()
		n += len(s.rooms)
		s.mtx.RUnlock()
	}

	return n
}

func (i *inst) lookup(roomID string) (*room, bool) {
	s := i.shardFor(roomID)

	s.mtx.RLock()
	defer s.mtx.RUnlock()

	r, ok := s.rooms[roomID]

	return r, ok
}
