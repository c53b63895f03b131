package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// BotUser tracks per-user bookkeeping: delivery counts and the badge tier
// derived from them.
type BotUser struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID     int64              `bson:"userId" json:"userId"`
	Username   string             `bson:"username,omitempty" json:"username,omitempty"`
	FirstName  string             `bson:"firstName,omitempty" json:"firstName,omitempty"`
	Deliveries int64              `bson:"deliveries" json:"deliveries"`
	FirstSeen  time.Time          `bson:"firstSeen" json:"firstSeen"`
	LastSeen   time.Time          `bson:"lastSeen" json:"lastSeen"`
}

// Badge returns the gamification tier for the user's delivery count
func (u *BotUser) Badge() string {
	switch {
	case u.Deliveries >= 500:
		return "🏆 Legend"
	case u.Deliveries >= 100:
		return "💎 Collector"
	case u.Deliveries >= 25:
		return "🥈 Regular"
	case u.Deliveries >= 5:
		return "🥉 Explorer"
	default:
		return "🌱 Newcomer"
	}
}

// DailyStats aggregates one UTC day of activity; old days are pruned on
// schedule
type DailyStats struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Date       string             `bson:"date" json:"date"` // YYYY-MM-DD (UTC)
	Searches   int64              `bson:"searches" json:"searches"`
	Deliveries int64              `bson:"deliveries" json:"deliveries"`
	Failures   int64              `bson:"failures" json:"failures"`
}
