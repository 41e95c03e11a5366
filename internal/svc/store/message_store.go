// Package store provides the engine's external collaborators: message
// persistence, the user directory, and notification records. The live
// implementations are mongo-backed; in-memory doubles live in
// store_mock.go.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/murmurchat/realtime/data/model"
	"github.com/murmurchat/realtime/internal/instance"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	collectionMessages      = "messages"
	collectionUsers         = "users"
	collectionNotifications = "notifications"
)

type MongoOptions struct {
	URI    string
	DB     string
	Direct bool
}

// Connect dials mongo and returns the database handle shared by the
// collaborator implementations.
func Connect(ctx context.Context, opt MongoOptions) (*mongo.Database, error) {
	clientOpts := options.Client().ApplyURI(opt.URI).SetDirect(opt.Direct)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, err
	}

	if err = client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, err
	}

	return client.Database(opt.DB), nil
}

type messageStore struct {
	db *mongo.Database
}

func NewMessageStore(db *mongo.Database) instance.MessageStore {
	return &messageStore{db: db}
}

func (s *messageStore) Store(ctx context.Context, conversationID, senderID, content string, msgType model.MessageType, attachment map[string]any) (model.Message, error) {
	msg := model.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		Type:           msgType,
		Attachment:     attachment,
		CreatedAt:      time.Now().UnixMilli(),
	}

	if _, err := s.db.Collection(collectionMessages).InsertOne(ctx, msg); err != nil {
		return model.Message{}, err
	}

	return msg, nil
}

func (s *messageStore) MarkRead(ctx context.Context, conversationID, readerID string, messageIDs []string) (int64, error) {
	filter := bson.M{
		"conversation_id": conversationID,
		"read":            false,
		// A reader cannot read-receipt their own messages.
		"sender_id": bson.M{"$ne": readerID},
	}

	if len(messageIDs) > 0 {
		filter["_id"] = bson.M{"$in": messageIDs}
	}

	result, err := s.db.Collection(collectionMessages).UpdateMany(ctx, filter, bson.M{
		"$set": bson.M{"read": true},
	})
	if err != nil {
		return 0, err
	}

	return result.ModifiedCount, nil
}

func (s *messageStore) Ping(ctx context.Context) error {
	return s.db.Client().Ping(ctx, readpref.Primary())
}
