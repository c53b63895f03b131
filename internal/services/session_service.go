package services

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	suggestionTTL = 10 * time.Minute
	dedupTTL      = time.Hour
)

// SessionService keeps transient per-user state in Redis: the suggestion
// list behind an inline keyboard (callback data carries an index, not the
// title, which would overflow Telegram's 64-byte callback limit) and
// webhook update de-duplication.
type SessionService struct {
	redis *RedisService
}

// NewSessionService creates a new session service
func NewSessionService(redisService *RedisService) *SessionService {
	return &SessionService{redis: redisService}
}

func suggestionKey(userID int64) string {
	return fmt.Sprintf("sugg:%d", userID)
}

// SaveSuggestions stores the ranked suggestion titles for a user, replacing
// any previous set
func (s *SessionService) SaveSuggestions(ctx context.Context, userID int64, titles []string) error {
	key := suggestionKey(userID)
	client := s.redis.Client()

	pipe := client.TxPipeline()
	pipe.Del(ctx, key)
	for _, t := range titles {
		pipe.RPush(ctx, key, t)
	}
	pipe.Expire(ctx, key, suggestionTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save suggestions: %w", err)
	}
	return nil
}

// Suggestion fetches one stored suggestion by index. Returns an empty
// string when the session expired or the index is out of range.
func (s *SessionService) Suggestion(ctx context.Context, userID int64, index int) (string, error) {
	title, err := s.redis.Client().LIndex(ctx, suggestionKey(userID), int64(index)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load suggestion: %w", err)
	}
	return title, nil
}

// SeenUpdate marks a webhook update ID as processed and reports whether it
// had been seen before. Telegram redelivers updates when the webhook
// responds slowly; the SETNX makes redelivery a no-op.
func (s *SessionService) SeenUpdate(ctx context.Context, updateID int64) (bool, error) {
	key := fmt.Sprintf("upd:%d", updateID)
	fresh, err := s.redis.Client().SetNX(ctx, key, 1, dedupTTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to dedup update: %w", err)
	}
	return !fresh, nil
}
