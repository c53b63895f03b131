package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Room is a shared delivery channel leased exclusively to one user at a time.
// The busy flag strictly brackets the critical section from lease to release;
// it is only ever flipped through atomic find-and-update operations.
type Room struct {
	ID     primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ChatID int64              `bson:"chatId" json:"chatId"` // Telegram channel identifier
	Busy   bool               `bson:"busy" json:"busy"`

	// LastUsedAt feeds the LRU-steal path when the pool is exhausted.
	LastUsedAt time.Time `bson:"lastUsedAt" json:"lastUsedAt"`

	// CurrentOccupant is the last user granted access; evicted before reuse.
	CurrentOccupant int64 `bson:"currentOccupant,omitempty" json:"currentOccupant,omitempty"`

	// LastDeliveredIDs are the message IDs of the most recent delivery,
	// purged before the room is reused.
	LastDeliveredIDs []int64 `bson:"lastDeliveredIds,omitempty" json:"lastDeliveredIds,omitempty"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}

// DeliveryLock is a per-user soft mutex with a TTL override: a lock older
// than the staleness window counts as released even if never cleared, so a
// crashed delivery cannot lock a user out permanently.
type DeliveryLock struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID   int64              `bson:"userId" json:"userId"`
	Locked   bool               `bson:"locked" json:"locked"`
	LockedAt time.Time          `bson:"lockedAt" json:"lockedAt"`
}

// AccessToken gates delivery behind the monetization collaborator.
// Tokens are issued externally; the bot only reads them. The expiresAt TTL
// index removes expired records automatically.
type AccessToken struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    int64              `bson:"userId" json:"userId"`
	ExpiresAt time.Time          `bson:"expiresAt" json:"expiresAt"`
}
