package registry

import (
	"testing"

	"github.com/murmurchat/realtime/data/events"
	"github.com/murmurchat/realtime/internal/testutil"
)

func TestRegisterLookup(t *testing.T) {
	t.Parallel()

	reg := New()

	conn := reg.Register("c1", "u1", "Ada", NewMockSender())
	testutil.Assert(t, "c1", conn.ID, "connection id")
	testutil.Assert(t, "u1", conn.IdentityID, "identity id")
	testutil.Assert(t, 1, reg.Size(), "registry size")

	got, ok := reg.Lookup("c1")
	testutil.Assert(t, true, ok, "lookup finds the connection")
	testutil.Assert(t, conn, got, "lookup returns the same handle")

	_, ok = reg.Lookup("nope")
	testutil.Assert(t, false, ok, "unknown id is not found")
}

func TestRegisterIdempotent(t *testing.T) {
	t.Parallel()

	reg := New()

	oldSender := NewMockSender()
	first := reg.Register("c1", "u1", "Ada", oldSender)
	first.TrackRoom("conv1")

	// Same connection id again, e.g. a reconnect racing its own cleanup.
	newSender := NewMockSender()
	second := reg.Register("c1", "u1", "Ada Lovelace", newSender)

	testutil.Assert(t, 1, reg.Size(), "size unchanged after re-register")
	testutil.Assert(t, 1, reg.CountForIdentity("u1"), "identity count unchanged")
	testutil.Assert(t, first, second, "same handle, rebound in place")
	testutil.Assert(t, "Ada Lovelace", second.DisplayName, "metadata replaced")
	testutil.Assert(t, 1, len(second.Rooms()), "room memberships preserved")
	testutil.Assert(t, "conv1", second.Rooms()[0], "tracked room survives")

	// The old pointer is what everyone else holds; sends through it must
	// reach the new write half.
	msg := events.NewDispatch(events.EventTypeNewMessage, map[string]any{"n": 1})
	testutil.IsNil(t, errOrNil(first.SendEvent(msg)), "send after rebind succeeds")
	testutil.Assert(t, 0, oldSender.Count(), "stale sender detached")
	testutil.Assert(t, 1, newSender.Count(), "new sender receives sends")
}

func TestRegisterRevivesDeadConnection(t *testing.T) {
	t.Parallel()

	reg := New()

	broken := NewMockSender()
	broken.SetFailing(true)

	conn := reg.Register("c1", "u1", "Ada", broken)

	msg := events.NewDispatch(events.EventTypeNewMessage, map[string]any{"n": 1})
	testutil.IsNotNil(t, conn.SendEvent(msg), "failing send surfaces the error")
	testutil.Assert(t, true, conn.Dead(), "connection marked dead")

	// Re-registering with a healthy write half clears the dead flag.
	fresh := NewMockSender()
	reg.Register("c1", "u1", "Ada", fresh)

	testutil.Assert(t, false, conn.Dead(), "rebind revives the connection")
	testutil.IsNil(t, errOrNil(conn.SendEvent(msg)), "send flows again")
	testutil.Assert(t, 1, fresh.Count(), "fresh sender received the event")
}

func TestRegisterRebindsIdentity(t *testing.T) {
	t.Parallel()

	reg := New()

	reg.Register("c1", "u1", "Ada", NewMockSender())
	reg.Register("c1", "u2", "Grace", NewMockSender())

	testutil.Assert(t, 0, reg.CountForIdentity("u1"), "old identity released")
	testutil.Assert(t, 1, reg.CountForIdentity("u2"), "new identity bound")
}

func TestCountForIdentity(t *testing.T) {
	t.Parallel()

	reg := New()

	reg.Register("c1", "u1", "Ada", NewMockSender())
	reg.Register("c2", "u1", "Ada", NewMockSender())
	reg.Register("c3", "u2", "Grace", NewMockSender())

	testutil.Assert(t, 2, reg.CountForIdentity("u1"), "two connections for u1")
	testutil.Assert(t, 1, reg.CountForIdentity("u2"), "one connection for u2")

	reg.Unregister("c1")
	testutil.Assert(t, 1, reg.CountForIdentity("u1"), "count drops with the connection")

	reg.Unregister("c2")
	testutil.Assert(t, 0, reg.CountForIdentity("u1"), "identity fully released")
}

func TestUnregisterHooks(t *testing.T) {
	t.Parallel()

	reg := New()

	var seen []string

	reg.OnUnregister(func(conn *Connection) {
		seen = append(seen, conn.ID)
	})

	reg.Register("c1", "u1", "Ada", NewMockSender())

	// Hooks run synchronously inside Unregister.
	reg.Unregister("c1")
	testutil.Assert(t, 1, len(seen), "hook ran once")
	testutil.Assert(t, "c1", seen[0], "hook received the connection")

	// Unknown ids are a no-op and never reach the hooks.
	testutil.Assert(t, true, reg.Unregister("c1") == nil, "double unregister returns nil")
	testutil.Assert(t, 1, len(seen), "hook not re-run")
}

func TestEach(t *testing.T) {
	t.Parallel()

	reg := New()

	reg.Register("c1", "u1", "Ada", NewMockSender())
	reg.Register("c2", "u2", "Grace", NewMockSender())

	seen := map[string]bool{}

	reg.Each(func(conn *Connection) {
		seen[conn.ID] = true
	})

	testutil.Assert(t, 2, len(seen), "every connection visited")
	testutil.Assert(t, true, seen["c1"] && seen["c2"], "both ids seen")

	// Unregistering from inside the callback must not deadlock.
	reg.Each(func(conn *Connection) {
		reg.Unregister(conn.ID)
	})
	testutil.Assert(t, 0, reg.Size(), "emptied during iteration")
}

func TestConnectionDeadAfterSendFailure(t *testing.T) {
	t.Parallel()

	reg := New()

	sender := NewMockSender()
	conn := reg.Register("c1", "u1", "Ada", sender)

	msg := events.NewDispatch(events.EventTypeNewMessage, map[string]any{"x": 1})

	testutil.IsNil(t, errOrNil(conn.SendEvent(msg)), "first send succeeds")
	testutil.Assert(t, false, conn.Dead(), "connection alive")

	sender.SetFailing(true)

	testutil.IsNotNil(t, conn.SendEvent(msg), "failing send surfaces the error")
	testutil.Assert(t, true, conn.Dead(), "connection marked dead")

	// Dead connections swallow further sends.
	testutil.IsNil(t, errOrNil(conn.SendEvent(msg)), "send after death is a no-op")
	testutil.Assert(t, 1, sender.Count(), "only the first event was delivered")
}

// errOrNil keeps a typed nil error from tripping IsNil's interface check.
func errOrNil(err error) any {
	if err == nil {
		return nil
	}

	return err
}
