package store

import (
	"context"
	"time"

	"github.com/murmurchat/realtime/data/model"
	"github.com/murmurchat/realtime/internal/errors"
	"github.com/murmurchat/realtime/internal/instance"
	gocache "github.com/patrickmn/go-cache"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// directory resolves identities from the users collection with a small TTL
// cache in front: fan-out enrichment hits the directory once per message,
// and display metadata changes rarely.
type directory struct {
	db    *mongo.Database
	cache *gocache.Cache
}

type DirectoryOptions struct {
	CacheTTL time.Duration
}

func NewDirectory(db *mongo.Database, opt DirectoryOptions) instance.Directory {
	if opt.CacheTTL <= 0 {
		opt.CacheTTL = 30 * time.Second
	}

	return &directory{
		db:    db,
		cache: gocache.New(opt.CacheTTL, opt.CacheTTL*2),
	}
}

func (d *directory) Resolve(ctx context.Context, identityID string) (model.User, error) {
	if v, ok := d.cache.Get(identityID); ok {
		return v.(model.User), nil
	}

	var user model.User

	err := d.db.Collection(collectionUsers).FindOne(ctx, bson.M{"_id": identityID}).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return model.User{}, errors.ErrNotFound().SetDetail("Unknown Identity").SetFields(errors.Fields{
				"identity": identityID,
			})
		}

		return model.User{}, err
	}

	d.cache.SetDefault(identityID, user)

	return user, nil
}
