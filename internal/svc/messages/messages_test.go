package messages

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/murmurchat/realtime/data/events"
	"github.com/murmurchat/realtime/data/model"
	"github.com/murmurchat/realtime/internal/svc/registry"
	"github.com/murmurchat/realtime/internal/svc/rooms"
	"github.com/murmurchat/realtime/internal/svc/store"
	"github.com/murmurchat/realtime/internal/testutil"
)

type fixture struct {
	reg   registry.Instance
	rooms rooms.Instance
	store *store.MockMessageStore
	dir   *store.MockDirectory
	msgs  Instance
}

func newFixture() *fixture {
	f := &fixture{
		reg:   registry.New(),
		rooms: rooms.New(rooms.Options{}),
		store: store.NewMockMessageStore(),
		dir:   store.NewMockDirectory(),
	}

	f.msgs = New(Options{
		Rooms:     f.rooms,
		Store:     f.store,
		Directory: f.dir,
	})

	return f
}

func (f *fixture) connect(connID, identityID, name string) (*registry.Connection, *registry.MockSender) {
	sender := registry.NewMockSender()

	return f.reg.Register(connID, identityID, name, sender), sender
}

func TestPublishBroadcastsToSenderToo(t *testing.T) {
	t.Parallel()

	f := newFixture()

	c1, s1 := f.connect("c1", "u1", "Ada")
	c2, s2 := f.connect("c2", "u2", "Grace")

	f.rooms.Join("conv1", c1)
	f.rooms.Join("conv1", c2)

	msg, err := f.msgs.Publish(context.Background(), "conv1", c1, "hello", "", nil)
	testutil.IsNil(t, errOrNil(err), "publish succeeds")
	testutil.Assert(t, model.MessageTypeText, msg.Type, "empty type defaults to text")
	testutil.Assert(t, "m1", msg.ID, "store assigned the id")

	// Unlike typing, message delivery echoes back to the sender.
	testutil.Assert(t, 1, s1.Count(), "sender receives own message")
	testutil.Assert(t, 1, s2.Count(), "peer receives message")

	payload, ok := s2.LastDispatch()
	testutil.Assert(t, true, ok, "dispatch delivered")
	testutil.Assert(t, events.EventTypeNewMessage, payload.Type, "new message event")

	var body events.NewMessageBody
	testutil.IsNil(t, errOrNil(json.Unmarshal(payload.Body, &body)), "body decodes")
	testutil.Assert(t, "hello", body.Message.Content, "content carried")
	testutil.Assert(t, "Ada", body.Message.SenderName, "display name fallback")
}

func TestPublishEnrichesFromDirectory(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.dir.Put(model.User{ID: "u1", DisplayName: "Ada Lovelace", AvatarURL: "https://cdn/a.png"})

	c1, s1 := f.connect("c1", "u1", "ada")
	f.rooms.Join("conv1", c1)

	_, err := f.msgs.Publish(context.Background(), "conv1", c1, "hi", model.MessageTypeText, nil)
	testutil.IsNil(t, errOrNil(err), "publish succeeds")

	payload, _ := s1.LastDispatch()

	var body events.NewMessageBody
	testutil.IsNil(t, errOrNil(json.Unmarshal(payload.Body, &body)), "body decodes")
	testutil.Assert(t, "Ada Lovelace", body.Message.SenderName, "directory name wins")
	testutil.Assert(t, "https://cdn/a.png", body.Message.SenderAvatar, "avatar attached")
}

func TestPublishRequiresMembership(t *testing.T) {
	t.Parallel()

	f := newFixture()

	outsider, _ := f.connect("c1", "u1", "Ada")

	_, err := f.msgs.Publish(context.Background(), "conv1", outsider, "hi", "", nil)
	testutil.AssertCode(t, 70403, err, "non-member cannot publish")
	testutil.Assert(t, 0, len(f.store.Messages()), "nothing persisted")
}

func TestPublishRejectsBadType(t *testing.T) {
	t.Parallel()

	f := newFixture()

	c1, _ := f.connect("c1", "u1", "Ada")
	f.rooms.Join("conv1", c1)

	_, err := f.msgs.Publish(context.Background(), "conv1", c1, "hi", "carrier-pigeon", nil)
	testutil.AssertCode(t, 70400, err, "unknown type rejected")
}

func TestPublishNoBroadcastOnStoreFailure(t *testing.T) {
	t.Parallel()

	f := newFixture()

	c1, s1 := f.connect("c1", "u1", "Ada")
	c2, s2 := f.connect("c2", "u2", "Grace")

	f.rooms.Join("conv1", c1)
	f.rooms.Join("conv1", c2)

	f.store.SetFailing(true)

	_, err := f.msgs.Publish(context.Background(), "conv1", c1, "hello", "", nil)
	testutil.AssertCode(t, 70502, err, "persistence failure surfaces to sender")

	// No participant may ever see a message that was not stored.
	testutil.Assert(t, 0, s1.Count(), "sender got nothing")
	testutil.Assert(t, 0, s2.Count(), "peer got nothing")
}

func TestMarkRead(t *testing.T) {
	t.Parallel()

	f := newFixture()

	c1, s1 := f.connect("c1", "u1", "Ada")
	c2, s2 := f.connect("c2", "u2", "Grace")

	f.rooms.Join("conv1", c1)
	f.rooms.Join("conv1", c2)

	_, err := f.msgs.Publish(context.Background(), "conv1", c1, "one", "", nil)
	testutil.IsNil(t, errOrNil(err), "publish succeeds")
	_, err = f.msgs.Publish(context.Background(), "conv1", c2, "two", "", nil)
	testutil.IsNil(t, errOrNil(err), "publish succeeds")

	before1, before2 := s1.Count(), s2.Count()

	// u1 marks everything: only u2's message flips, u1's own stays unread.
	testutil.IsNil(t, errOrNil(f.msgs.MarkRead(context.Background(), "conv1", c1, nil)), "mark read succeeds")

	stored := f.store.Messages()
	testutil.Assert(t, false, stored[0].Read, "reader's own message untouched")
	testutil.Assert(t, true, stored[1].Read, "peer's message flipped")

	// The receipt goes to everyone except the reader.
	testutil.Assert(t, before1, s1.Count(), "reader gets no receipt")
	testutil.Assert(t, before2+1, s2.Count(), "peer gets the receipt")

	payload, _ := s2.LastDispatch()
	testutil.Assert(t, events.EventTypeMessagesRead, payload.Type, "read receipt event")

	var body events.MessagesReadBody
	testutil.IsNil(t, errOrNil(json.Unmarshal(payload.Body, &body)), "body decodes")
	testutil.Assert(t, "u1", body.UserID, "reader identity")
}

func TestMarkReadRequiresMembership(t *testing.T) {
	t.Parallel()

	f := newFixture()

	outsider, _ := f.connect("c1", "u1", "Ada")

	err := f.msgs.MarkRead(context.Background(), "conv1", outsider, nil)
	testutil.AssertCode(t, 70403, err, "non-member cannot mark read")
}

func TestMarkReadSelectedIDs(t *testing.T) {
	t.Parallel()

	f := newFixture()

	c1, _ := f.connect("c1", "u1", "Ada")
	c2, _ := f.connect("c2", "u2", "Grace")

	f.rooms.Join("conv1", c1)
	f.rooms.Join("conv1", c2)

	m1, _ := f.msgs.Publish(context.Background(), "conv1", c2, "one", "", nil)
	_, _ = f.msgs.Publish(context.Background(), "conv1", c2, "two", "", nil)

	testutil.IsNil(t, errOrNil(f.msgs.MarkRead(context.Background(), "conv1", c1, []string{m1.ID})), "mark one")

	stored := f.store.Messages()
	testutil.Assert(t, true, stored[0].Read, "selected message read")
	testutil.Assert(t, false, stored[1].Read, "unselected message unread")
}

func errOrNil(err error) any {
	if err == nil {
		return nil
	}

	return err
}
