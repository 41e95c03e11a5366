// Package typing relays ephemeral typing indicators to conversation rooms.
//
// The coordinator is a stateless relay: it holds no per-pair state and the
// timeout is sender-owned. The originating client is expected to send a stop
// when input ceases; receivers treat an indicator older than Timeout as
// implicitly stopped.
package typing

import (
	"time"

	"github.com/murmurchat/realtime/data/events"
	"github.com/murmurchat/realtime/internal/errors"
	"github.com/murmurchat/realtime/internal/svc/registry"
	"github.com/murmurchat/realtime/internal/svc/rooms"
)

// Timeout is the window after which receivers treat an unrenewed typing
// indicator as stopped.
const Timeout = 8 * time.Second

type Instance interface {
	Start(conversationID string, conn *registry.Connection) error
	Stop(conversationID string, conn *registry.Connection) error
}

type inst struct {
	rooms rooms.Instance
}

type Options struct {
	Rooms rooms.Instance
}

func New(opt Options) Instance {
	return &inst{
		rooms: opt.Rooms,
	}
}

func (i *inst) Start(conversationID string, conn *registry.Connection) error {
	return i.relay(conversationID, conn, true)
}

func (i *inst) Stop(conversationID string, conn *registry.Connection) error {
	return i.relay(conversationID, conn, false)
}

func (i *inst) relay(conversationID string, conn *registry.Connection, isTyping bool) error {
	if !i.rooms.IsMember(conversationID, conn.ID) {
		return errors.ErrNotAuthorized().SetDetail("Not A Member Of This Conversation").SetFields(errors.Fields{
			"conversation_id": conversationID,
		})
	}

	// The originator never receives an echo of their own indicator.
	i.rooms.Broadcast(conversationID, events.NewDispatch(events.EventTypeTypingUpdate, events.TypingUpdateBody{
		ConversationID: conversationID,
		UserID:         conn.IdentityID,
		IsTyping:       isTyping,
	}), conn.ID)

	return nil
}
