// Package registry tracks live connections and the identity bound to each.
// It is the leaf component of the engine: everything else resolves
// connections through it.
package registry

import (
	"encoding/json"
	"hash/fnv"
	"sync"
	"sync/atomic"

	"github.com/murmurchat/realtime/data/events"
)

const shardCount = 32

// EventSender is the write half of a connection. A sender that returns an
// error is considered dead; the broadcast path drops it silently.
type EventSender interface {
	SendEvent(msg events.Message[json.RawMessage]) error
}

// Connection is the registry's handle to one live bidirectional channel.
type Connection struct {
	ID          string
	IdentityID  string
	DisplayName string

	sender EventSender
	dead   atomic.Bool

	mtx   sync.Mutex
	rooms map[string]struct{}
}

// SendEvent forwards the event to the underlying channel. The first write
// failure marks the connection dead; later sends are no-ops.
func (c *Connection) SendEvent(msg events.Message[json.RawMessage]) error {
	if c.dead.Load() {
		return nil
	}

	c.mtx.Lock()
	sender := c.sender
	c.mtx.Unlock()

	if err := sender.SendEvent(msg); err != nil {
		c.dead.Store(true)

		return err
	}

	return nil
}

func (c *Connection) Dead() bool {
	return c.dead.Load()
}

// rebind swaps the write half and identity metadata in place. Room member
// maps hold the *Connection pointer, so the handle itself must survive a
// metadata-replacing re-register.
func (c *Connection) rebind(identityID, displayName string, sender EventSender) {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	c.IdentityID = identityID
	c.DisplayName = displayName
	c.sender = sender
	c.dead.Store(false)
}

// TrackRoom records that this connection joined roomID. Reports whether the
// room was newly tracked.
func (c *Connection) TrackRoom(roomID string) bool {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	if _, ok := c.rooms[roomID]; ok {
		return false
	}

	c.rooms[roomID] = struct{}{}

	return true
}

func (c *Connection) UntrackRoom(roomID string) {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	delete(c.rooms, roomID)
}

// Rooms returns a snapshot of the room ids this connection has joined.
func (c *Connection) Rooms() []string {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	out := make([]string, 0, len(c.rooms))
	for id := range c.rooms {
		out = append(out, id)
	}

	return out
}

type Instance interface {
	// Register binds a connection id to an identity. Registering an id that
	// is still active replaces its metadata but preserves room memberships.
	Register(id, identityID, displayName string, sender EventSender) *Connection

	// Unregister removes the connection and runs the unregister hooks
	// synchronously before returning. Unknown ids are a no-op and return nil.
	Unregister(id string) *Connection

	Lookup(id string) (*Connection, bool)

	// CountForIdentity reports how many live connections an identity has.
	CountForIdentity(identityID string) int

	// Each calls fn for every live connection. The iteration works on a
	// snapshot, so fn may register or unregister freely.
	Each(fn func(*Connection))

	Size() int

	// OnUnregister installs a hook run synchronously during Unregister,
	// after the connection is removed from the map. Wiring-time only.
	OnUnregister(fn func(*Connection))
}

type shard struct {
	mtx   sync.RWMutex
	conns map[string]*Connection
}

type inst struct {
	shards [shardCount]*shard

	identityMtx sync.Mutex
	identities  map[string]int

	hooks []func(*Connection)
}

func New() Instance {
	i := &inst{
		identities: map[string]int{},
	}

	for n := range i.shards {
		i.shards[n] = &shard{conns: map[string]*Connection{}}
	}

	return i
}

func (i *inst) shardFor(id string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))

	return i.shards[h.Sum32()%shardCount]
}

func (i *inst) OnUnregister(fn func(*Connection)) {
	i.hooks = append(i.hooks, fn)
}

func (i *inst) Register(id, identityID, displayName string, sender EventSender) *Connection {
	s := i.shardFor(id)

	s.mtx.Lock()

	prev, ok := s.conns[id]
	if ok {
		// Replace metadata, keep room memberships.
		prevIdentity := prev.IdentityID
		prev.rebind(identityID, displayName, sender)
		s.mtx.Unlock()

		if prevIdentity != identityID {
			i.adjustIdentity(prevIdentity, -1)
			i.adjustIdentity(identityID, 1)
		}

		return prev
	}

	conn := &Connection{
		ID:          id,
		IdentityID:  identityID,
		DisplayName: displayName,
		sender:      sender,
		rooms:       map[string]struct{}{},
	}
	s.conns[id] = conn
	s.mtx.Unlock()

	i.adjustIdentity(identityID, 1)

	return conn
}

func (i *inst) Unregister(id string) *Connection {
	s := i.shardFor(id)

	s.mtx.Lock()
	conn, ok := s.conns[id]
	if !ok {
		s.mtx.Unlock()

		return nil
	}

	delete(s.conns, id)
	s.mtx.Unlock()

	i.adjustIdentity(conn.IdentityID, -1)

	for _, fn := range i.hooks {
		fn(conn)
	}

	return conn
}

func (i *inst) Lookup(id string) (*Connection, bool) {
	s := i.shardFor(id)

	s.mtx.RLock()
	defer s.mtx.RUnlock()

	conn, ok := s.conns[id]

	return conn, ok
}

func (i *inst) CountForIdentity(identityID string) int {
	i.identityMtx.Lock()
	defer i.identityMtx.Unlock()

	return i.identities[identityID]
}

func (i *inst) Each(fn func(*Connection)) {
	var snapshot []*Connection

	for _, s := range i.shards {
		s.mtx.RLock()
		for _, conn := range s.conns {
			snapshot = append(snapshot, conn)
		}
		s.mtx.RUnlock()
	}

	for _, conn := range snapshot {
		fn(conn)
	}
}

func (i *inst) Size() int {
	n := 0

	for _, s := range i.shards {
		s.mtx.RLock()
		n += len(s.conns)
		s.mtx.RUnlock()
	}

	return n
}

func (i *inst) adjustIdentity(identityID string, delta int) {
	i.identityMtx.Lock()
	defer i.identityMtx.Unlock()

	n := i.identities[identityID] + delta
	if n <= 0 {
		delete(i.identities, identityID)

		return
	}

	i.identities[identityID] = n
}
