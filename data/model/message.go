package model

// MessageType describes the kind of content a message carries.
type MessageType string

const (
	MessageTypeText   MessageType = "text"
	MessageTypeImage  MessageType = "image"
	MessageTypeFile   MessageType = "file"
	MessageTypeSystem MessageType = "system"
)

func (t MessageType) IsValid() bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeFile, MessageTypeSystem:
		return true
	}

	return false
}

// Message is a persisted conversation message. The engine never creates one
// itself; the message store assigns the ID and CreatedAt, and the engine is
// responsible only for its fan-out shape.
type Message struct {
	ID             string         `json:"id" bson:"_id"`
	ConversationID string         `json:"conversation_id" bson:"conversation_id"`
	SenderID       string         `json:"sender_id" bson:"sender_id"`
	SenderName     string         `json:"sender_name,omitempty" bson:"sender_name,omitempty"`
	SenderAvatar   string         `json:"sender_avatar,omitempty" bson:"sender_avatar,omitempty"`
	Content        string         `json:"content" bson:"content"`
	Type           MessageType    `json:"type" bson:"type"`
	Attachment     map[string]any `json:"attachment,omitempty" bson:"attachment,omitempty"`
	CreatedAt      int64          `json:"created_at" bson:"created_at"`
	Read           bool           `json:"read" bson:"read"`
}
