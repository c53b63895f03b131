package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Port     string
	MongoURI string
	RedisURL string

	// Telegram bot configuration
	BotToken      string
	WebhookURL    string // public base URL; webhook is registered at <WebhookURL>/webhook/<secret>
	WebhookSecret string

	// Delivery configuration
	InviteTTL       time.Duration // invite link lifetime
	LockTTL         time.Duration // per-user delivery lock staleness window
	RoomStuckAfter  time.Duration // busy rooms older than this are janitor-freed
	JanitorInterval time.Duration

	// Gating configuration
	ForceSubChannel int64  // channel the user must join before delivery; 0 disables
	ForceSubLink    string // invite link shown when the force-sub gate blocks
	TokenGateURL    string // access-acquisition link base; empty disables the token gate

	// Operator configuration
	AuditChannelID int64   // channel receiving operator audit entries; 0 disables
	AdminIDs       []int64 // Telegram user IDs allowed to run admin commands
}

// Load loads configuration from environment variables with defaults
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "3001"),
		MongoURI: getEnv("MONGODB_URI", ""),
		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379"),

		BotToken:      getEnv("BOT_TOKEN", ""),
		WebhookURL:    getEnv("WEBHOOK_URL", ""),
		WebhookSecret: getEnv("WEBHOOK_SECRET", ""),

		InviteTTL:       getDurationEnv("INVITE_TTL", 2*time.Hour),
		LockTTL:         getDurationEnv("DELIVERY_LOCK_TTL", 5*time.Minute),
		RoomStuckAfter:  getDurationEnv("ROOM_STUCK_AFTER", 6*time.Hour),
		JanitorInterval: getDurationEnv("ROOM_JANITOR_INTERVAL", 24*time.Hour),

		ForceSubChannel: getInt64Env("FORCE_SUB_CHANNEL", 0),
		ForceSubLink:    getEnv("FORCE_SUB_LINK", ""),
		TokenGateURL:    getEnv("TOKEN_GATE_URL", ""),

		AuditChannelID: getInt64Env("AUDIT_CHANNEL_ID", 0),
		AdminIDs:       getInt64ListEnv("ADMIN_IDS"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt64Env(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getInt64ListEnv parses a comma-separated list of Telegram IDs
func getInt64ListEnv(key string) []int64 {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// IsAdmin reports whether the given Telegram user ID is in the admin list
func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}
