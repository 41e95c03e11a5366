package events

import (
	"encoding/json"

	"github.com/murmurchat/realtime/data/model"
)

type AnyPayload interface {
	json.RawMessage | HelloPayload | AckPayload | HeartbeatPayload | DispatchPayload |
		ErrorPayload | EndOfStreamPayload |
		JoinConversationPayload | LeaveConversationPayload | SendMessagePayload |
		TypingCommandPayload | MarkReadPayload | UpdatePresencePayload |
		NotificationsSyncPayload
}

type HelloPayload struct {
	HeartbeatInterval uint32 `json:"heartbeat_interval"`
	SessionID         string `json:"session_id"`
	Actor             string `json:"actor,omitempty"`
}

type AckPayload struct {
	Command string          `json:"command"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type HeartbeatPayload struct {
	Count uint64 `json:"count"`
}

type DispatchPayload struct {
	Type EventType       `json:"type"`
	Body json.RawMessage `json:"body"`
}

type ErrorPayload struct {
	Message string         `json:"message"`
	Code    int            `json:"code,omitempty"`
	Fields  map[string]any `json:"fields,omitempty"`
}

type EndOfStreamPayload struct {
	Code    CloseCode `json:"code"`
	Message string    `json:"message"`
}

// Command payloads (client -> server)

type JoinConversationPayload struct {
	ConversationID string `json:"conversation_id"`
}

type LeaveConversationPayload struct {
	ConversationID string `json:"conversation_id"`
}

type SendMessagePayload struct {
	ConversationID string            `json:"conversation_id"`
	Content        string            `json:"content"`
	Type           model.MessageType `json:"type,omitempty"`
	Attachment     map[string]any    `json:"attachment,omitempty"`
}

type TypingCommandPayload struct {
	ConversationID string `json:"conversation_id"`
}

type MarkReadPayload struct {
	ConversationID string   `json:"conversation_id"`
	MessageIDs     []string `json:"message_ids,omitempty"`
}

type UpdatePresencePayload struct {
	Status model.PresenceStatus `json:"status"`
}

type NotificationsSyncPayload struct {
	Limit int `json:"limit,omitempty"`
}

// Dispatch bodies (server -> client, wrapped by DispatchPayload)

type JoinedConversationBody struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
}

type LeftConversationBody struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
}

type NewMessageBody struct {
	ConversationID string        `json:"conversation_id"`
	Message        model.Message `json:"message"`
}

type TypingUpdateBody struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	IsTyping       bool   `json:"is_typing"`
}

type MessagesReadBody struct {
	ConversationID string   `json:"conversation_id"`
	UserID         string   `json:"user_id"`
	MessageIDs     []string `json:"message_ids,omitempty"`
}

type PresenceBody struct {
	UserID    string               `json:"user_id"`
	Status    model.PresenceStatus `json:"status,omitempty"`
	Timestamp int64                `json:"timestamp"`
}
