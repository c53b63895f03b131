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

// StatsService aggregates daily activity counters, keyed by UTC date so a
// new day starts a fresh record without any in-memory state to reset.
type StatsService struct {
	db         *database.MongoDB
	collection *mongo.Collection
}

// NewStatsService creates a new stats service
func NewStatsService(db *database.MongoDB) *StatsService {
	var collection *mongo.Collection
	if db != nil {
		collection = db.Collection(database.CollectionDailyStats)
	}
	return &StatsService{db: db, collection: collection}
}

func today() string {
	return time.Now().UTC().Format("2006-01-02")
}

// incr bumps one counter on today's record, creating it on first use
func (s *StatsService) incr(ctx context.Context, field string) error {
	opts := options.Update().SetUpsert(true)
	_, err := s.collection.UpdateOne(ctx, bson.M{"date": today()}, bson.M{
		"$inc": bson.M{field: 1},
	}, opts)
	if err != nil {
		return fmt.Errorf("failed to increment %s: %w", field, err)
	}
	return nil
}

// IncrSearches counts one title search
func (s *StatsService) IncrSearches(ctx context.Context) error {
	return s.incr(ctx, "searches")
}

// IncrDeliveries counts one successful delivery
func (s *StatsService) IncrDeliveries(ctx context.Context) error {
	return s.incr(ctx, "deliveries")
}

// IncrFailures counts one failed delivery
func (s *StatsService) IncrFailures(ctx context.Context) error {
	return s.incr(ctx, "failures")
}

// Today returns the current day's counters (zeroes when nothing happened yet)
func (s *StatsService) Today(ctx context.Context) (*models.DailyStats, error) {
	var stats models.DailyStats
	err := s.collection.FindOne(ctx, bson.M{"date": today()}).Decode(&stats)
	if err == mongo.ErrNoDocuments {
		return &models.DailyStats{Date: today()}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load daily stats: %w", err)
	}
	return &stats, nil
}

// Prune removes stats records older than the retention window
func (s *StatsService) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention).Format("2006-01-02")
	result, err := s.collection.DeleteMany(ctx, bson.M{"date": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, fmt.Errorf("failed to prune daily stats: %w", err)
	}
	return result.DeletedCount, nil
}
