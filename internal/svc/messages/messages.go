// Package messages orchestrates message persistence and fan-out, and
// propagates read receipts.
package messages

import (
	"context"
	"time"

	"github.com/murmurchat/realtime/data/events"
	"github.com/murmurchat/realtime/data/model"
	"github.com/murmurchat/realtime/internal/errors"
	"github.com/murmurchat/realtime/internal/instance"
	"github.com/murmurchat/realtime/internal/svc/registry"
	"github.com/murmurchat/realtime/internal/svc/rooms"
	"go.uber.org/zap"
)

type Instance interface {
	// Publish persists the message and fans it out to the conversation room.
	// The broadcast includes the sender's own connection: message delivery
	// must echo back for UI confirmation, unlike typing and presence.
	//
	// Persistence failure surfaces to the sender only; no broadcast occurs,
	// so no other participant ever sees a message that was not stored.
	Publish(ctx context.Context, conversationID string, sender *registry.Connection, content string, msgType model.MessageType, attachment map[string]any) (model.Message, error)

	// MarkRead flips the read flag on the reader's unread messages (never
	// their own) and broadcasts a read receipt to everyone else in the room.
	// Empty messageIDs signals "all unread messages as of now".
	MarkRead(ctx context.Context, conversationID string, reader *registry.Connection, messageIDs []string) error
}

type inst struct {
	rooms      rooms.Instance
	store      instance.MessageStore
	directory  instance.Directory
	prometheus instance.Prometheus
}

type Options struct {
	Rooms      rooms.Instance
	Store      instance.MessageStore
	Directory  instance.Directory
	Prometheus instance.Prometheus
}

func New(opt Options) Instance {
	return &inst{
		rooms:      opt.Rooms,
		store:      opt.Store,
		directory:  opt.Directory,
		prometheus: opt.Prometheus,
	}
}

func (i *inst) Publish(ctx context.Context, conversationID string, sender *registry.Connection, content string, msgType model.MessageType, attachment map[string]any) (model.Message, error) {
	if !i.rooms.IsMember(conversationID, sender.ID) {
		return model.Message{}, errors.ErrNotAuthorized().SetDetail("Not A Member Of This Conversation").SetFields(errors.Fields{
			"conversation_id": conversationID,
		})
	}

	if msgType == "" {
		msgType = model.MessageTypeText
	}

	if !msgType.IsValid() {
		return model.Message{}, errors.ErrInvalidRequest().SetDetail("Invalid Message Type").SetFields(errors.Fields{
			"type": string(msgType),
		})
	}

	start := time.Now()

	// The only suspension point on the hot broadcast path. Per-room ordering
	// is the order publishes complete here; the store assigns monotonic ids.
	msg, err := i.store.Store(ctx, conversationID, sender.IdentityID, content, msgType, attachment)
	if err != nil {
		zap.S().Errorw("message persistence failed",
			"conversation_id", conversationID,
			"sender", sender.IdentityID,
			"error", err,
		)

		return model.Message{}, errors.ErrPersistenceFailed().WithError(err)
	}

	if i.prometheus != nil {
		i.prometheus.PublishDuration().Observe(time.Since(start).Seconds())
		i.prometheus.MessagesPublished().Inc()
	}

	i.enrichSender(ctx, &msg, sender)

	i.rooms.Broadcast(conversationID, events.NewDispatch(events.EventTypeNewMessage, events.NewMessageBody{
		ConversationID: conversationID,
		Message:        msg,
	}), "")

	return msg, nil
}

func (i *inst) MarkRead(ctx context.Context, conversationID string, reader *registry.Connection, messageIDs []string) error {
	if !i.rooms.IsMember(conversationID, reader.ID) {
		return errors.ErrNotAuthorized().SetDetail("Not A Member Of This Conversation").SetFields(errors.Fields{
			"conversation_id": conversationID,
		})
	}

	if _, err := i.store.MarkRead(ctx, conversationID, reader.IdentityID, messageIDs); err != nil {
		zap.S().Errorw("mark read failed",
			"conversation_id", conversationID,
			"reader", reader.IdentityID,
			"error", err,
		)

		return errors.ErrPersistenceFailed().WithError(err)
	}

	i.rooms.Broadcast(conversationID, events.NewDispatch(events.EventTypeMessagesRead, events.MessagesReadBody{
		ConversationID: conversationID,
		UserID:         reader.IdentityID,
		MessageIDs:     messageIDs,
	}), reader.ID)

	return nil
}

// enrichSender attaches directory metadata to the outgoing message. A
// directory miss falls back to the connection's display name; it never
// fails the publish.
func (i *inst) enrichSender(ctx context.Context, msg *model.Message, sender *registry.Connection) {
	msg.SenderName = sender.DisplayName

	if i.directory == nil {
		return
	}

	user, err := i.directory.Resolve(ctx, sender.IdentityID)
	if err != nil {
		zap.S().Debugw("directory resolve failed",
			"identity", sender.IdentityID,
			"error", err,
		)

		return
	}

	if user.DisplayName != "" {
		msg.SenderName = user.DisplayName
	}

	msg.SenderAvatar = user.AvatarURL
}
