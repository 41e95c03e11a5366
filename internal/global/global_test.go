package global

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/murmurchat/realtime/data/events"
	"github.com/murmurchat/realtime/data/model"
	"github.com/murmurchat/realtime/internal/configure"
	"github.com/murmurchat/realtime/internal/svc/limiter"
	"github.com/murmurchat/realtime/internal/svc/messages"
	"github.com/murmurchat/realtime/internal/svc/notifications"
	"github.com/murmurchat/realtime/internal/svc/presence"
	"github.com/murmurchat/realtime/internal/svc/registry"
	"github.com/murmurchat/realtime/internal/svc/rooms"
	"github.com/murmurchat/realtime/internal/svc/store"
	"github.com/murmurchat/realtime/internal/svc/typing"
	"github.com/murmurchat/realtime/internal/testutil"
)

// assemble wires the engine the way cmd/main does, minus the servers.
func assemble() Context {
	gCtx := New(context.Background(), &configure.Config{})
	inst := gCtx.Inst()

	inst.MessageStore = store.NewMockMessageStore()
	inst.Directory = store.NewMockDirectory()
	inst.NotificationStore = store.NewMockNotificationStore()

	inst.Registry = registry.New()
	inst.Rooms = rooms.New(rooms.Options{})
	inst.Presence = presence.New(presence.Options{Rooms: inst.Rooms})
	inst.Typing = typing.New(typing.Options{Rooms: inst.Rooms})
	inst.Messages = messages.New(messages.Options{
		Rooms:     inst.Rooms,
		Store:     inst.MessageStore,
		Directory: inst.Directory,
	})
	inst.Notifications = notifications.New(notifications.Options{Store: inst.NotificationStore})
	inst.Limiter = limiter.New(limiter.Options{})

	inst.Registry.OnUnregister(func(conn *registry.Connection) {
		inst.Rooms.RemoveFromAll(conn)
		inst.Presence.SetOffline(conn.IdentityID)
	})

	return gCtx
}

func connect(gCtx Context, connID, identityID, name string) (*registry.Connection, *registry.MockSender) {
	sender := registry.NewMockSender()

	conn := gCtx.Inst().Registry.Register(connID, identityID, name, sender)
	gCtx.Inst().Rooms.Join(rooms.PresenceRoom, conn)
	gCtx.Inst().Presence.SetOnline(identityID)

	return conn, sender
}

// TestConversationLifecycle walks two participants through a full session:
// connect, join, message, typing, read receipt, disconnect.
func TestConversationLifecycle(t *testing.T) {
	t.Parallel()

	gCtx := assemble()
	inst := gCtx.Inst()

	alice, aliceWire := connect(gCtx, "ca", "alice", "Alice")

	// Bob connects second; Alice sees him come online.
	bob, bobWire := connect(gCtx, "cb", "bob", "Bob")

	online, ok := aliceWire.LastDispatch()
	testutil.Assert(t, true, ok, "presence event delivered")
	testutil.Assert(t, events.EventTypeUserOnline, online.Type, "bob online")

	inst.Rooms.Join("conv1", alice)
	inst.Rooms.Join("conv1", bob)

	// Bob types, Alice sees the indicator, Bob gets no echo.
	bobTypingBaseline := bobWire.Count()
	testutil.IsNil(t, errOrNil(inst.Typing.Start("conv1", bob)), "typing start")

	indicator, _ := aliceWire.LastDispatch()
	testutil.Assert(t, events.EventTypeTypingUpdate, indicator.Type, "alice sees typing")
	testutil.Assert(t, bobTypingBaseline, bobWire.Count(), "bob gets no echo")

	// Bob publishes; both participants receive the message.
	msg, err := inst.Messages.Publish(gCtx, "conv1", bob, "hi alice", "", nil)
	testutil.IsNil(t, errOrNil(err), "publish succeeds")

	for _, wire := range []*registry.MockSender{aliceWire, bobWire} {
		payload, ok := wire.LastDispatch()
		testutil.Assert(t, true, ok, "message delivered")
		testutil.Assert(t, events.EventTypeNewMessage, payload.Type, "new message event")
	}

	// Alice reads; Bob gets the receipt, Alice does not.
	aliceBaseline := aliceWire.Count()
	testutil.IsNil(t, errOrNil(inst.Messages.MarkRead(gCtx, "conv1", alice, nil)), "mark read")

	receipt, _ := bobWire.LastDispatch()
	testutil.Assert(t, events.EventTypeMessagesRead, receipt.Type, "bob sees the receipt")
	testutil.Assert(t, aliceBaseline, aliceWire.Count(), "alice gets no receipt")

	var receiptBody events.MessagesReadBody
	testutil.IsNil(t, errOrNil(json.Unmarshal(receipt.Body, &receiptBody)), "receipt decodes")
	testutil.Assert(t, "alice", receiptBody.UserID, "reader identity")

	// Bob's message is flipped, and only Bob's.
	stored := inst.MessageStore.(*store.MockMessageStore).Messages()
	testutil.Assert(t, msg.ID, stored[0].ID, "stored message matches")
	testutil.Assert(t, true, stored[0].Read, "bob's message read")

	// Bob disconnects: the unregister hooks clean rooms and presence.
	inst.Registry.Unregister("cb")

	testutil.Assert(t, false, inst.Rooms.IsMember("conv1", "cb"), "bob out of the room")
	testutil.Assert(t, model.PresenceStatusOffline, inst.Presence.Status("bob"), "bob offline")

	offline, _ := aliceWire.LastDispatch()
	testutil.Assert(t, events.EventTypeUserOffline, offline.Type, "alice sees bob leave")

	testutil.Assert(t, 1, inst.Registry.Size(), "one connection remains")
}

// TestMultiDeviceIdentity checks that a second device neither re-announces
// online nor tears presence down when only one of the two disconnects.
func TestMultiDeviceIdentity(t *testing.T) {
	t.Parallel()

	gCtx := assemble()
	inst := gCtx.Inst()

	_, aliceWire := connect(gCtx, "ca", "alice", "Alice")

	connect(gCtx, "cb1", "bob", "Bob")
	baseline := aliceWire.Count()

	connect(gCtx, "cb2", "bob", "Bob")
	testutil.Assert(t, baseline, aliceWire.Count(), "second device is silent")

	inst.Registry.Unregister("cb1")
	testutil.Assert(t, baseline, aliceWire.Count(), "bob still online on the other device")
	testutil.Assert(t, model.PresenceStatusOnline, inst.Presence.Status("bob"), "presence intact")

	inst.Registry.Unregister("cb2")
	offline, _ := aliceWire.LastDispatch()
	testutil.Assert(t, events.EventTypeUserOffline, offline.Type, "last device emits offline")
}

func errOrNil(err error) any {
	if err == nil {
		return nil
	}

	return err
}
