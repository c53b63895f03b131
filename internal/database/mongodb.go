package database

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoDB wraps the MongoDB client and database
type MongoDB struct {
	client   *mongo.Client
	database *mongo.Database
	dbName   string
}

// Collection names
const (
	CollectionMovies        = "movies"
	CollectionRooms         = "rooms"
	CollectionDeliveryLocks = "delivery_locks"
	CollectionAccessTokens  = "access_tokens"
	CollectionBotUsers      = "bot_users"
	CollectionDailyStats    = "daily_stats"
)

// NewMongoDB creates a new MongoDB connection with connection pooling
func NewMongoDB(uri string) (*MongoDB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(50).
		SetMinPoolSize(5).
		SetMaxConnIdleTime(30 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetConnectTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// Ping to verify connection
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	dbName := extractDBName(uri)
	if dbName == "" {
		dbName = "clipbot"
	}

	db := &MongoDB{
		client:   client,
		database: client.Database(dbName),
		dbName:   dbName,
	}

	log.Printf("✅ Connected to MongoDB database: %s", dbName)

	return db, nil
}

// extractDBName extracts the database name from MongoDB URI
func extractDBName(uri string) string {
	// Find the database name between the last "/" and "?" or end of string
	// mongodb://localhost:27017/clipbot?authSource=admin -> clipbot
	lastSlash := -1
	questionMark := -1

	for i, c := range uri {
		if c == '/' {
			lastSlash = i
		}
		if c == '?' && questionMark == -1 {
			questionMark = i
		}
	}

	if lastSlash != -1 {
		start := lastSlash + 1
		end := len(uri)
		if questionMark != -1 && questionMark > lastSlash {
			end = questionMark
		}
		if start < end {
			dbName := uri[start:end]
			// A URI with no path segment leaves host:port after the
			// scheme's double slash
			if dbName != "" && !strings.ContainsAny(dbName, ":@") {
				return dbName
			}
		}
	}

	return "clipbot"
}

// Initialize creates indexes for all collections
func (m *MongoDB) Initialize(ctx context.Context) error {
	log.Println("📦 Initializing MongoDB indexes...")

	// Movies collection indexes
	if err := m.createIndexes(ctx, CollectionMovies, []mongo.IndexModel{
		{Keys: bson.D{{Key: "title", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "popularity", Value: -1}}}, // trending listing
		{Keys: bson.D{{Key: "categories", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("failed to create movies indexes: %w", err)
	}

	// Rooms collection indexes
	if err := m.createIndexes(ctx, CollectionRooms, []mongo.IndexModel{
		{Keys: bson.D{{Key: "chatId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "busy", Value: 1}, {Key: "lastUsedAt", Value: 1}}}, // lease scan
	}); err != nil {
		return fmt.Errorf("failed to create rooms indexes: %w", err)
	}

	// Delivery locks collection indexes
	if err := m.createIndexes(ctx, CollectionDeliveryLocks, []mongo.IndexModel{
		{Keys: bson.D{{Key: "userId", Value: 1}}, Options: options.Index().SetUnique(true)},
	}); err != nil {
		return fmt.Errorf("failed to create delivery_locks indexes: %w", err)
	}

	// Access tokens collection indexes (TTL: records vanish at expiry)
	if err := m.createIndexes(ctx, CollectionAccessTokens, []mongo.IndexModel{
		{Keys: bson.D{{Key: "userId", Value: 1}}},
		{Keys: bson.D{{Key: "expiresAt", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0)},
	}); err != nil {
		return fmt.Errorf("failed to create access_tokens indexes: %w", err)
	}

	// Bot users collection indexes
	if err := m.createIndexes(ctx, CollectionBotUsers, []mongo.IndexModel{
		{Keys: bson.D{{Key: "userId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "deliveries", Value: -1}}}, // badge leaderboard
	}); err != nil {
		return fmt.Errorf("failed to create bot_users indexes: %w", err)
	}

	// Daily stats collection indexes
	if err := m.createIndexes(ctx, CollectionDailyStats, []mongo.IndexModel{
		{Keys: bson.D{{Key: "date", Value: 1}}, Options: options.Index().SetUnique(true)},
	}); err != nil {
		return fmt.Errorf("failed to create daily_stats indexes: %w", err)
	}

	log.Println("✅ MongoDB indexes initialized successfully")
	return nil
}

// createIndexes creates indexes for a collection
func (m *MongoDB) createIndexes(ctx context.Context, collectionName string, indexes []mongo.IndexModel) error {
	collection := m.database.Collection(collectionName)
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}

// Collection returns a collection handle
func (m *MongoDB) Collection(name string) *mongo.Collection {
	return m.database.Collection(name)
}

// Client returns the underlying MongoDB client
func (m *MongoDB) Client() *mongo.Client {
	return m.client
}

// Database returns the underlying MongoDB database
func (m *MongoDB) Database() *mongo.Database {
	return m.database
}

// Close closes the MongoDB connection
func (m *MongoDB) Close(ctx context.Context) error {
	log.Println("🔌 Closing MongoDB connection...")
	return m.client.Disconnect(ctx)
}

// Ping checks if the database connection is alive
func (m *MongoDB) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}
