package instance

import (
	"context"

	"github.com/murmurchat/realtime/data/model"
)

// MessageStore is the external message persistence collaborator. Store is
// the only call allowed to block on I/O inside the fan-out hot path; it is
// expected to assign the message id and a monotonic creation timestamp.
type MessageStore interface {
	Store(ctx context.Context, conversationID, senderID, content string, msgType model.MessageType, attachment map[string]any) (model.Message, error)

	// MarkRead flips the read flag on the given messages, scoped to messages
	// not authored by readerID. An empty messageIDs marks everything unread
	// as of now. Returns the number of messages updated.
	MarkRead(ctx context.Context, conversationID, readerID string, messageIDs []string) (int64, error)

	Ping(ctx context.Context) error
}

// Directory resolves an identity id to its display metadata.
type Directory interface {
	Resolve(ctx context.Context, identityID string) (model.User, error)
}

// NotificationStore serves persisted notification records, fetched
// independently of the live path and reconciled through the same
// normalization layer.
type NotificationStore interface {
	Fetch(ctx context.Context, identityID string, limit int) ([]map[string]any, error)
}
