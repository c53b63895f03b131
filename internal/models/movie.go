package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MediaKind represents the transport type of a stored media item
type MediaKind string

const (
	MediaKindVideo     MediaKind = "video"
	MediaKindPhoto     MediaKind = "photo"
	MediaKindDocument  MediaKind = "document"
	MediaKindAudio     MediaKind = "audio"
	MediaKindAnimation MediaKind = "animation"
)

// MediaItem is a single stored clip belonging to a movie.
// Items are appended by ingestion and never mutated afterwards.
type MediaItem struct {
	FileID  string    `bson:"fileId" json:"fileId"` // Telegram file reference
	Kind    MediaKind `bson:"kind" json:"kind"`
	Caption string    `bson:"caption,omitempty" json:"caption,omitempty"`
}

// Movie is a catalog entry: a titled, searchable collection of media items.
// The title is normalized (lowercase, whitespace-collapsed) and unique.
type Movie struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title      string             `bson:"title" json:"title"`
	Categories []string           `bson:"categories,omitempty" json:"categories,omitempty"` // performers, directors, genres
	MediaItems []MediaItem        `bson:"mediaItems" json:"mediaItems"`
	Thumbnail  string             `bson:"thumbnail,omitempty" json:"thumbnail,omitempty"` // optional photo file reference

	// Popularity counts successful resolutions; incremented atomically,
	// read for trending order.
	Popularity int64 `bson:"popularity" json:"popularity"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// ClipCount returns the number of media items attached to the movie
func (m *Movie) ClipCount() int {
	return len(m.MediaItems)
}
