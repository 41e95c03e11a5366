package model

// NotificationKind tags the canonical notification variants.
type NotificationKind string

const (
	NotificationKindSSE     NotificationKind = "sse"
	NotificationKindMessage NotificationKind = "message"
	NotificationKindGeneral NotificationKind = "general"
)

// Notification is the canonical union produced by the normalization layer.
// Every variant carries a non-empty ID and a timestamp; both are defaulted
// at construction time when absent in the raw input. Raw input that cannot
// be resolved into a variant produces no Notification at all.
type Notification interface {
	NotificationID() string
	Kind() NotificationKind
	OccurredAt() int64
}

// SSEMessage is a server-push stream event that carries no richer structure
// than its type tag and an arbitrary data map.
type SSEMessage struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Timestamp int64          `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

func (n SSEMessage) NotificationID() string { return n.ID }
func (n SSEMessage) Kind() NotificationKind { return NotificationKindSSE }
func (n SSEMessage) OccurredAt() int64      { return n.Timestamp }

// MessageNotification announces a new message in a conversation the viewer
// is not actively watching.
type MessageNotification struct {
	ID             string `json:"id"`
	Timestamp      int64  `json:"timestamp"`
	ConversationID string `json:"conversation_id"`
	SenderID       string `json:"sender_id"`
	SenderName     string `json:"sender_name,omitempty"`
	Preview        string `json:"preview,omitempty"`
}

func (n MessageNotification) NotificationID() string { return n.ID }
func (n MessageNotification) Kind() NotificationKind { return NotificationKindMessage }
func (n MessageNotification) OccurredAt() int64      { return n.Timestamp }

// GeneralNotification is any other user-facing notice: a title, optional
// content, and whatever extra data the producer attached.
type GeneralNotification struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Timestamp int64          `json:"timestamp"`
	Title     string         `json:"title"`
	Content   string         `json:"content,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

func (n GeneralNotification) NotificationID() string { return n.ID }
func (n GeneralNotification) Kind() NotificationKind { return NotificationKindGeneral }
func (n GeneralNotification) OccurredAt() int64      { return n.Timestamp }
