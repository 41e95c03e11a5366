package gateway

import (
	"encoding/json"

	"github.com/murmurchat/realtime/data/events"
	"github.com/murmurchat/realtime/internal/errors"
)

func apiErrorOf(err error) errors.APIError {
	return errors.From(err)
}

func (s *session) handleCommand(msg events.Message[json.RawMessage]) {
	switch msg.Op {
	case events.OpcodeJoinConversation:
		s.handleJoin(msg)
	case events.OpcodeLeaveConversation:
		s.handleLeave(msg)
	case events.OpcodeSendMessage:
		s.handleSendMessage(msg)
	case events.OpcodeTypingStart:
		s.handleTyping(msg, true)
	case events.OpcodeTypingStop:
		s.handleTyping(msg, false)
	case events.OpcodeMarkRead:
		s.handleMarkRead(msg)
	case events.OpcodeUpdatePresence:
		s.handleUpdatePresence(msg)
	case events.OpcodeNotificationsSync:
		s.handleNotificationsSync(msg)
	}
}

func (s *session) handleJoin(msg events.Message[json.RawMessage]) {
	cmd, err := events.ConvertMessage[events.JoinConversationPayload](msg)
	if err != nil || cmd.Data.ConversationID == "" {
		s.sendError("invalid payload", int(events.CloseCodeInvalidPayload), nil)

		return
	}

	roomID := cmd.Data.ConversationID

	s.gCtx.Inst().Rooms.Join(roomID, s.conn)

	s.gCtx.Inst().Rooms.Broadcast(roomID, events.NewDispatch(events.EventTypeJoinedConversation, events.JoinedConversationBody{
		ConversationID: roomID,
		UserID:         s.conn.IdentityID,
	}), s.conn.ID)

	s.sendAck(events.OpcodeJoinConversation.String(), map[string]any{
		"conversation_id": roomID,
	})
}

func (s *session) handleLeave(msg events.Message[json.RawMessage]) {
	cmd, err := events.ConvertMessage[events.LeaveConversationPayload](msg)
	if err != nil || cmd.Data.ConversationID == "" {
		s.sendError("invalid payload", int(events.CloseCodeInvalidPayload), nil)

		return
	}

	roomID := cmd.Data.ConversationID

	s.gCtx.Inst().Rooms.Leave(roomID, s.conn)

	s.gCtx.Inst().Rooms.Broadcast(roomID, events.NewDispatch(events.EventTypeLeftConversation, events.LeftConversationBody{
		ConversationID: roomID,
		UserID:         s.conn.IdentityID,
	}), s.conn.ID)

	s.sendAck(events.OpcodeLeaveConversation.String(), map[string]any{
		"conversation_id": roomID,
	})
}

func (s *session) handleSendMessage(msg events.Message[json.RawMessage]) {
	cmd, err := events.ConvertMessage[events.SendMessagePayload](msg)
	if err != nil || cmd.Data.ConversationID == "" || cmd.Data.Content == "" {
		s.sendError("invalid payload", int(events.CloseCodeInvalidPayload), nil)

		return
	}

	stored, err := s.gCtx.Inst().Messages.Publish(
		s.gCtx,
		cmd.Data.ConversationID,
		s.conn,
		cmd.Data.Content,
		cmd.Data.Type,
		cmd.Data.Attachment,
	)
	if err != nil {
		// Persistence or capability failure surfaces to the sender only;
		// nothing was broadcast.
		s.sendAPIError(err)

		return
	}

	s.fanOutNotification(cmd.Data.ConversationID, map[string]any{
		"type":            "new_message",
		"conversation_id": cmd.Data.ConversationID,
		"sender_id":       stored.SenderID,
		"message": map[string]any{
			"id":          stored.ID,
			"sender_id":   stored.SenderID,
			"sender_name": stored.SenderName,
			"content":     stored.Content,
			"created_at":  stored.CreatedAt,
		},
	})

	s.sendAck(events.OpcodeSendMessage.String(), stored)
}

// fanOutNotification feeds the socket-origin raw event into each room
// member's notification queue. Normalization applies self-echo suppression,
// so the sender's own queue is untouched.
func (s *session) fanOutNotification(roomID string, raw map[string]any) {
	notifs := s.gCtx.Inst().Notifications
	reg := s.gCtx.Inst().Registry

	seen := map[string]struct{}{}

	for _, connID := range s.gCtx.Inst().Rooms.Members(roomID) {
		conn, ok := reg.Lookup(connID)
		if !ok {
			continue
		}

		if _, dup := seen[conn.IdentityID]; dup {
			continue
		}

		seen[conn.IdentityID] = struct{}{}

		notifs.Ingest(raw, conn.IdentityID)
	}
}

func (s *session) handleTyping(msg events.Message[json.RawMessage], start bool) {
	cmd, err := events.ConvertMessage[events.TypingCommandPayload](msg)
	if err != nil || cmd.Data.ConversationID == "" {
		s.sendError("invalid payload", int(events.CloseCodeInvalidPayload), nil)

		return
	}

	if start {
		err = s.gCtx.Inst().Typing.Start(cmd.Data.ConversationID, s.conn)
	} else {
		err = s.gCtx.Inst().Typing.Stop(cmd.Data.ConversationID, s.conn)
	}

	if err != nil {
		s.sendAPIError(err)

		return
	}

	op := events.OpcodeTypingStop
	if start {
		op = events.OpcodeTypingStart
	}

	s.sendAck(op.String(), nil)
}

func (s *session) handleMarkRead(msg events.Message[json.RawMessage]) {
	cmd, err := events.ConvertMessage[events.MarkReadPayload](msg)
	if err != nil || cmd.Data.ConversationID == "" {
		s.sendError("invalid payload", int(events.CloseCodeInvalidPayload), nil)

		return
	}

	if err := s.gCtx.Inst().Messages.MarkRead(s.gCtx, cmd.Data.ConversationID, s.conn, cmd.Data.MessageIDs); err != nil {
		s.sendAPIError(err)

		return
	}

	s.sendAck(events.OpcodeMarkRead.String(), nil)
}

func (s *session) handleUpdatePresence(msg events.Message[json.RawMessage]) {
	cmd, err := events.ConvertMessage[events.UpdatePresencePayload](msg)
	if err != nil {
		s.sendError("invalid payload", int(events.CloseCodeInvalidPayload), nil)

		return
	}

	if err := s.gCtx.Inst().Presence.UpdateStatus(s.conn.IdentityID, cmd.Data.Status); err != nil {
		s.sendAPIError(err)

		return
	}

	s.sendAck(events.OpcodeUpdatePresence.String(), map[string]any{
		"status": cmd.Data.Status,
	})
}

func (s *session) handleNotificationsSync(msg events.Message[json.RawMessage]) {
	cmd, err := events.ConvertMessage[events.NotificationsSyncPayload](msg)
	if err != nil {
		s.sendError("invalid payload", int(events.CloseCodeInvalidPayload), nil)

		return
	}

	notifs := s.gCtx.Inst().Notifications

	// Reconcile persisted records first so the snapshot is one merged view;
	// dedup makes replays of live-delivered events harmless.
	if err := notifs.Reconcile(s.gCtx, s.conn.IdentityID, cmd.Data.Limit); err != nil {
		s.sendAPIError(errors.ErrPersistenceFailed().WithError(err))

		return
	}

	s.sendAck(events.OpcodeNotificationsSync.String(), map[string]any{
		"entries": notifs.QueueFor(s.conn.IdentityID).Snapshot(),
	})
}
