package store

import (
	"context"

	"github.com/murmurchat/realtime/internal/instance"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// notificationStore serves persisted notification records as raw maps;
// shaping them is the normalization layer's job, so both the live path and
// the reconciliation path share one code path.
type notificationStore struct {
	db *mongo.Database
}

func NewNotificationStore(db *mongo.Database) instance.NotificationStore {
	return &notificationStore{db: db}
}

func (s *notificationStore) Fetch(ctx context.Context, identityID string, limit int) ([]map[string]any, error) {
	if limit <= 0 {
		limit = 50
	}

	cur, err := s.db.Collection(collectionNotifications).Find(ctx,
		bson.M{"recipient_id": identityID},
		options.Find().SetSort(bson.M{"timestamp": -1}).SetLimit(int64(limit)),
	)
	if err != nil {
		return nil, err
	}

	defer cur.Close(ctx)

	var out []map[string]any

	for cur.Next(ctx) {
		raw := map[string]any{}
		if err := cur.Decode(&raw); err != nil {
			continue
		}

		out = append(out, raw)
	}

	return out, cur.Err()
}
