package services

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"clipbot/internal/database"
)

// LockService implements the per-user delivery lock: a soft mutex with a
// TTL override. A lock older than the staleness window counts as released
// even if never cleared, so a crashed delivery cannot lock a user out
// forever.
type LockService struct {
	db         *database.MongoDB
	collection *mongo.Collection
	ttl        time.Duration
}

// NewLockService creates a new lock service. ttl is the staleness window
// after which a held lock is treated as released.
func NewLockService(db *database.MongoDB, ttl time.Duration) *LockService {
	var collection *mongo.Collection
	if db != nil {
		collection = db.Collection(database.CollectionDeliveryLocks)
	}
	return &LockService{
		db:         db,
		collection: collection,
		ttl:        ttl,
	}
}

// TryAcquire attempts to take the user's delivery lock. It succeeds when no
// lock exists, the lock is released, or the lock is stale past the TTL.
// All of that is checked and set in one conditional upsert, so concurrent
// attempts for the same user cannot both win: the loser's upsert collides
// with the unique userId index and reports contention.
func (s *LockService) TryAcquire(ctx context.Context, userID int64) (bool, error) {
	now := time.Now()
	stale := now.Add(-s.ttl)

	filter := bson.M{
		"userId": userID,
		"$or": []bson.M{
			{"locked": false},
			{"lockedAt": bson.M{"$lt": stale}},
		},
	}
	// The userId equality term populates the record on insert.
	update := bson.M{
		"$set": bson.M{
			"locked":   true,
			"lockedAt": now,
		},
	}

	opts := options.Update().SetUpsert(true)
	_, err := s.collection.UpdateOne(ctx, filter, update, opts)
	if mongo.IsDuplicateKeyError(err) {
		// A live lock exists: the filter excluded it, the upsert tried to
		// insert a second record and hit the unique index.
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to acquire delivery lock: %w", err)
	}
	return true, nil
}

// Release unconditionally clears the user's lock
func (s *LockService) Release(ctx context.Context, userID int64) error {
	_, err := s.collection.UpdateOne(ctx, bson.M{"userId": userID}, bson.M{
		"$set": bson.M{"locked": false},
	})
	if err != nil {
		return fmt.Errorf("failed to release delivery lock: %w", err)
	}
	return nil
}
