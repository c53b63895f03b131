package services

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"clipbot/internal/database"
	"clipbot/internal/match"
	"clipbot/internal/models"
)

const catalogCacheKey = "catalog_snapshot"

// MovieService is the catalog store: titled media collections, searchable
// by title and category, with atomic ingestion and popularity counting.
type MovieService struct {
	db         *database.MongoDB
	collection *mongo.Collection
	cache      *gocache.Cache
}

// NewMovieService creates a new movie service
func NewMovieService(db *database.MongoDB) *MovieService {
	var collection *mongo.Collection
	if db != nil {
		collection = db.Collection(database.CollectionMovies)
	}
	return &MovieService{
		db:         db,
		collection: collection,
		// Searches run against a short-lived catalog snapshot so each
		// keystroke does not scan MongoDB.
		cache: gocache.New(30*time.Second, time.Minute),
	}
}

// Ingest appends a media item to the catalog entry for the given title,
// creating the entry on its first item. Creation and append are a single
// atomic upsert keyed on the normalized title.
func (s *MovieService) Ingest(ctx context.Context, title string, item models.MediaItem) (*models.Movie, error) {
	title = match.NormalizeTitle(title)
	if title == "" {
		return nil, fmt.Errorf("title is required")
	}

	now := time.Now()
	filter := bson.M{"title": title}
	update := bson.M{
		"$push": bson.M{"mediaItems": item},
		"$set":  bson.M{"updatedAt": now},
		"$setOnInsert": bson.M{
			"title":      title,
			"popularity": int64(0),
			"createdAt":  now,
		},
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var movie models.Movie
	if err := s.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&movie); err != nil {
		return nil, fmt.Errorf("failed to ingest media for %q: %w", title, err)
	}

	s.cache.Delete(catalogCacheKey)
	return &movie, nil
}

// AddCategories attaches category tags (performers, directors, genres) to a
// title, ignoring duplicates
func (s *MovieService) AddCategories(ctx context.Context, title string, categories []string) error {
	title = match.NormalizeTitle(title)
	normalized := make([]string, 0, len(categories))
	for _, c := range categories {
		if c = match.NormalizeTitle(c); c != "" {
			normalized = append(normalized, c)
		}
	}
	if len(normalized) == 0 {
		return nil
	}

	result, err := s.collection.UpdateOne(ctx, bson.M{"title": title}, bson.M{
		"$addToSet": bson.M{"categories": bson.M{"$each": normalized}},
		"$set":      bson.M{"updatedAt": time.Now()},
	})
	if err != nil {
		return fmt.Errorf("failed to add categories to %q: %w", title, err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("no catalog entry for %q", title)
	}

	s.cache.Delete(catalogCacheKey)
	return nil
}

// SetThumbnail records the display thumbnail for a title
func (s *MovieService) SetThumbnail(ctx context.Context, title, fileID string) error {
	title = match.NormalizeTitle(title)
	result, err := s.collection.UpdateOne(ctx, bson.M{"title": title}, bson.M{
		"$set": bson.M{"thumbnail": fileID, "updatedAt": time.Now()},
	})
	if err != nil {
		return fmt.Errorf("failed to set thumbnail for %q: %w", title, err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("no catalog entry for %q", title)
	}
	return nil
}

// GetByTitle fetches one catalog entry by its normalized title
func (s *MovieService) GetByTitle(ctx context.Context, title string) (*models.Movie, error) {
	var movie models.Movie
	err := s.collection.FindOne(ctx, bson.M{"title": match.NormalizeTitle(title)}).Decode(&movie)
	if err == mongo.ErrNoDocuments {
		return nil, fmt.Errorf("movie not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get movie: %w", err)
	}
	return &movie, nil
}

// All returns the catalog snapshot used by the match engine, cached briefly
// in-process
func (s *MovieService) All(ctx context.Context) ([]models.Movie, error) {
	if cached, found := s.cache.Get(catalogCacheKey); found {
		return cached.([]models.Movie), nil
	}

	cursor, err := s.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	defer cursor.Close(ctx)

	var movies []models.Movie
	if err := cursor.All(ctx, &movies); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}

	s.cache.Set(catalogCacheKey, movies, gocache.DefaultExpiration)
	return movies, nil
}

// IncrementPopularity bumps the resolution counter for a title by one.
// Uses $inc so concurrent searches for the same title never lose counts.
func (s *MovieService) IncrementPopularity(ctx context.Context, title string) error {
	_, err := s.collection.UpdateOne(ctx, bson.M{"title": title}, bson.M{
		"$inc": bson.M{"popularity": 1},
	})
	if err != nil {
		return fmt.Errorf("failed to increment popularity for %q: %w", title, err)
	}
	return nil
}

// Trending returns the most-resolved titles, most popular first
func (s *MovieService) Trending(ctx context.Context, limit int64) ([]models.Movie, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "popularity", Value: -1}}).
		SetLimit(limit)

	cursor, err := s.collection.Find(ctx, bson.M{"popularity": bson.M{"$gt": 0}}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to load trending titles: %w", err)
	}
	defer cursor.Close(ctx)

	var movies []models.Movie
	if err := cursor.All(ctx, &movies); err != nil {
		return nil, fmt.Errorf("failed to decode trending titles: %w", err)
	}
	return movies, nil
}
