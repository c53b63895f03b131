package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"clipbot/internal/database"
	"clipbot/internal/models"
)

// ErrPoolEmpty means no rooms are provisioned at all. This is an operator
// misconfiguration, not a transient condition.
var ErrPoolEmpty = errors.New("room pool is empty")

// RoomService owns the delivery-room pool and its lease lifecycle.
//
// When every room is busy, Lease steals the least-recently-used room instead
// of queuing the request. This trades fairness for availability under load:
// a stuck or slow delivery loses its room to the next user rather than
// stalling everyone behind it.
type RoomService struct {
	db         *database.MongoDB
	collection *mongo.Collection
	metrics    *Metrics
}

// NewRoomService creates a new room service
func NewRoomService(db *database.MongoDB, metrics *Metrics) *RoomService {
	var collection *mongo.Collection
	if db != nil {
		collection = db.Collection(database.CollectionRooms)
	}
	return &RoomService{
		db:         db,
		collection: collection,
		metrics:    metrics,
	}
}

// Lease atomically acquires a room: a free one if any exists, otherwise the
// least-recently-used room is force-marked busy. The find-and-flip is a
// single FindOneAndUpdate so two concurrent requests can never lease the
// same room. Returns ErrPoolEmpty when zero rooms are provisioned.
func (s *RoomService) Lease(ctx context.Context) (*models.Room, error) {
	update := bson.M{"$set": bson.M{"busy": true}}

	// Prefer a free room, oldest first so usage spreads across the pool.
	opts := options.FindOneAndUpdate().
		SetSort(bson.D{{Key: "lastUsedAt", Value: 1}}).
		SetReturnDocument(options.Before)

	var room models.Room
	err := s.collection.FindOneAndUpdate(ctx, bson.M{"busy": false}, update, opts).Decode(&room)
	if err == nil {
		if s.metrics != nil {
			s.metrics.RoomLeases.WithLabelValues("fresh").Inc()
		}
		return &room, nil
	}
	if err != mongo.ErrNoDocuments {
		return nil, fmt.Errorf("failed to lease room: %w", err)
	}

	// No free room: steal the LRU room, busy or not.
	err = s.collection.FindOneAndUpdate(ctx, bson.M{}, update, opts).Decode(&room)
	if err == mongo.ErrNoDocuments {
		return nil, ErrPoolEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("failed to steal LRU room: %w", err)
	}

	log.Printf("⚠️ [ROOM-POOL] Pool exhausted, stole LRU room %d (last used %s)",
		room.ChatID, room.LastUsedAt.Format(time.RFC3339))
	if s.metrics != nil {
		s.metrics.RoomLeases.WithLabelValues("lru_steal").Inc()
	}
	return &room, nil
}

// Release ends a lease: clears busy, records the occupant and the message
// IDs of what was just delivered, and stamps lastUsedAt. Must be called
// exactly once per lease, including failed deliveries (possibly with
// partial or empty deliveredIDs) so a room can never starve.
func (s *RoomService) Release(ctx context.Context, roomID primitive.ObjectID, occupant int64, deliveredIDs []int64) error {
	if deliveredIDs == nil {
		deliveredIDs = []int64{}
	}

	_, err := s.collection.UpdateOne(ctx, bson.M{"_id": roomID}, bson.M{
		"$set": bson.M{
			"busy":             false,
			"currentOccupant":  occupant,
			"lastDeliveredIds": deliveredIDs,
			"lastUsedAt":       time.Now(),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to release room: %w", err)
	}
	return nil
}

// ForceReleaseAll clears every busy flag. Used by the manual admin override.
func (s *RoomService) ForceReleaseAll(ctx context.Context) (int64, error) {
	result, err := s.collection.UpdateMany(ctx, bson.M{"busy": true}, bson.M{
		"$set": bson.M{"busy": false},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to force-release rooms: %w", err)
	}
	return result.ModifiedCount, nil
}

// ReleaseStale frees rooms that have sat busy longer than the threshold.
// This is the janitor's crash-recovery sweep, not a normal path.
func (s *RoomService) ReleaseStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)

	result, err := s.collection.UpdateMany(ctx, bson.M{
		"busy":       true,
		"lastUsedAt": bson.M{"$lt": cutoff},
	}, bson.M{
		"$set": bson.M{"busy": false},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to release stale rooms: %w", err)
	}

	if result.ModifiedCount > 0 && s.metrics != nil {
		s.metrics.JanitorRecoveries.Add(float64(result.ModifiedCount))
	}
	return result.ModifiedCount, nil
}

// Add provisions a new room for the given channel
func (s *RoomService) Add(ctx context.Context, chatID int64) error {
	_, err := s.collection.InsertOne(ctx, models.Room{
		ChatID:     chatID,
		Busy:       false,
		LastUsedAt: time.Time{},
		CreatedAt:  time.Now(),
	})
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("room %d already exists", chatID)
	}
	if err != nil {
		return fmt.Errorf("failed to add room: %w", err)
	}

	log.Printf("✅ [ROOM-POOL] Provisioned room %d", chatID)
	return nil
}

// List returns all rooms with their lease state, oldest lease first
func (s *RoomService) List(ctx context.Context) ([]models.Room, error) {
	opts := options.Find().SetSort(bson.D{{Key: "lastUsedAt", Value: 1}})
	cursor, err := s.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	defer cursor.Close(ctx)

	var rooms []models.Room
	if err := cursor.All(ctx, &rooms); err != nil {
		return nil, fmt.Errorf("failed to decode rooms: %w", err)
	}
	return rooms, nil
}

// Get fetches one room by its channel ID
func (s *RoomService) Get(ctx context.Context, chatID int64) (*models.Room, error) {
	var room models.Room
	err := s.collection.FindOne(ctx, bson.M{"chatId": chatID}).Decode(&room)
	if err == mongo.ErrNoDocuments {
		return nil, fmt.Errorf("room %d not found", chatID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	return &room, nil
}
