package services

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"clipbot/internal/database"
	"clipbot/internal/models"
)

// UserService tracks per-user bookkeeping: who the bot has seen and how
// many deliveries they have received (the badge counter).
type UserService struct {
	db         *database.MongoDB
	collection *mongo.Collection
}

// NewUserService creates a new user service
func NewUserService(db *database.MongoDB) *UserService {
	var collection *mongo.Collection
	if db != nil {
		collection = db.Collection(database.CollectionBotUsers)
	}
	return &UserService{db: db, collection: collection}
}

// Touch upserts the user record on every interaction
func (s *UserService) Touch(ctx context.Context, user *models.TelegramUser) error {
	now := time.Now()
	opts := options.Update().SetUpsert(true)
	_, err := s.collection.UpdateOne(ctx, bson.M{"userId": user.ID}, bson.M{
		"$set": bson.M{
			"username":  user.Username,
			"firstName": user.FirstName,
			"lastSeen":  now,
		},
		"$setOnInsert": bson.M{
			"firstSeen":  now,
			"deliveries": int64(0),
		},
	}, opts)
	if err != nil {
		return fmt.Errorf("failed to touch user %d: %w", user.ID, err)
	}
	return nil
}

// IncrementDeliveries bumps the user's delivery counter and returns the
// updated record so the caller can react to badge changes
func (s *UserService) IncrementDeliveries(ctx context.Context, userID int64) (*models.BotUser, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var user models.BotUser
	err := s.collection.FindOneAndUpdate(ctx, bson.M{"userId": userID}, bson.M{
		"$inc": bson.M{"deliveries": 1},
		"$set": bson.M{"lastSeen": time.Now()},
	}, opts).Decode(&user)
	if err != nil {
		return nil, fmt.Errorf("failed to increment deliveries for %d: %w", userID, err)
	}
	return &user, nil
}

// Get fetches one user record
func (s *UserService) Get(ctx context.Context, userID int64) (*models.BotUser, error) {
	var user models.BotUser
	err := s.collection.FindOne(ctx, bson.M{"userId": userID}).Decode(&user)
	if err == mongo.ErrNoDocuments {
		return nil, fmt.Errorf("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}
