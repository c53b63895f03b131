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

// TokenService reads the access tokens that gate delivery. Tokens are
// issued by the external monetization collaborator; the TTL index on
// expiresAt removes expired records automatically, so a present,
// still-valid record is the whole check.
type TokenService struct {
	db          *database.MongoDB
	collection  *mongo.Collection
	gateLinkURL string
}

// NewTokenService creates a new token service. gateLinkURL is the
// access-acquisition link base; empty disables the gate entirely.
func NewTokenService(db *database.MongoDB, gateLinkURL string) *TokenService {
	var collection *mongo.Collection
	if db != nil {
		collection = db.Collection(database.CollectionAccessTokens)
	}
	return &TokenService{
		db:          db,
		collection:  collection,
		gateLinkURL: gateLinkURL,
	}
}

// Enabled reports whether the token gate is configured at all
func (s *TokenService) Enabled() bool {
	return s.gateLinkURL != ""
}

// HasValidToken reports whether the user holds an unexpired access token
func (s *TokenService) HasValidToken(ctx context.Context, userID int64) (bool, error) {
	err := s.collection.FindOne(ctx, bson.M{
		"userId":    userID,
		"expiresAt": bson.M{"$gt": time.Now()},
	}).Err()
	if err == mongo.ErrNoDocuments {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check access token: %w", err)
	}
	return true, nil
}

// GateLink returns the access-acquisition link for the user
func (s *TokenService) GateLink(userID int64) string {
	return fmt.Sprintf("%s?uid=%d", s.gateLinkURL, userID)
}

// Grant stores a token for the user, used by the admin override command.
// One record per user: a fresh grant extends the existing one.
func (s *TokenService) Grant(ctx context.Context, userID int64, ttl time.Duration) error {
	opts := options.Update().SetUpsert(true)
	_, err := s.collection.UpdateOne(ctx, bson.M{"userId": userID}, bson.M{
		"$set": bson.M{"expiresAt": time.Now().Add(ttl)},
	}, opts)
	if err != nil {
		return fmt.Errorf("failed to grant access token: %w", err)
	}
	return nil
}
