package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"clipbot/internal/models"
)

const defaultAPIBase = "https://api.telegram.org"

// Client is a thin Telegram Bot API client. All calls go through a shared
// rate limiter so bulk deliveries cannot trip the API's flood limits.
type Client struct {
	botToken   string
	apiBase    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a Bot API client for the given token
func NewClient(botToken string) *Client {
	return &Client{
		botToken: botToken,
		apiBase:  defaultAPIBase,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		// Bot API allows ~30 messages/second overall; stay under it
		limiter: rate.NewLimiter(rate.Limit(25), 5),
	}
}

// APIError is a non-200 response from the Bot API
type APIError struct {
	Method      string
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s: %d %s", e.Method, e.ErrorCode, e.Description)
}

// IsBenign reports whether the error is one of the tolerated cleanup
// failures: evicting someone who already left, or missing rights in a room
// the bot was demoted in. These never abort a delivery.
func IsBenign(err error) bool {
	apiErr, ok := err.(*APIError)
	if !ok {
		return false
	}
	desc := strings.ToLower(apiErr.Description)
	return strings.Contains(desc, "user not found") ||
		strings.Contains(desc, "participant_id_invalid") ||
		strings.Contains(desc, "user_not_participant") ||
		strings.Contains(desc, "not enough rights") ||
		strings.Contains(desc, "chat member status can't be changed") ||
		strings.Contains(desc, "message to delete not found")
}

// call performs one Bot API method call with a JSON payload and decodes the
// "result" field into out (when out is non-nil).
func (c *Client) call(ctx context.Context, method string, payload map[string]interface{}, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.apiBase, c.botToken, method)
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s: %w", method, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", method, err)
	}

	var envelope struct {
		OK          bool            `json:"ok"`
		Result      json.RawMessage `json:"result"`
		ErrorCode   int             `json:"error_code"`
		Description string          `json:"description"`
	}
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", method, err)
	}

	if !envelope.OK {
		return &APIError{Method: method, ErrorCode: envelope.ErrorCode, Description: envelope.Description}
	}

	if out != nil {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return fmt.Errorf("failed to decode %s result: %w", method, err)
		}
	}

	return nil
}

// SendMessage sends a text message, optionally with an inline keyboard
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, markup *models.InlineKeyboardMarkup) (*models.TelegramMessage, error) {
	payload := map[string]interface{}{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "HTML",
	}
	if markup != nil {
		payload["reply_markup"] = markup
	}

	var msg models.TelegramMessage
	if err := c.call(ctx, "sendMessage", payload, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// InputMedia is one item of a sendMediaGroup album
type InputMedia struct {
	Type    string `json:"type"` // "photo", "video", "document", "audio", "animation"
	Media   string `json:"media"`
	Caption string `json:"caption,omitempty"`
}

// SendMediaGroup sends one album of up to 10 items and returns the created
// messages. All items must share a transport-compatible album type.
func (c *Client) SendMediaGroup(ctx context.Context, chatID int64, media []InputMedia) ([]models.TelegramMessage, error) {
	payload := map[string]interface{}{
		"chat_id": chatID,
		"media":   media,
	}

	var msgs []models.TelegramMessage
	if err := c.call(ctx, "sendMediaGroup", payload, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// SendMedia sends a single media item using the kind-specific method.
// Used as the per-item fallback when an album send fails.
func (c *Client) SendMedia(ctx context.Context, chatID int64, item models.MediaItem) (*models.TelegramMessage, error) {
	var method, field string
	switch item.Kind {
	case models.MediaKindPhoto:
		method, field = "sendPhoto", "photo"
	case models.MediaKindDocument:
		method, field = "sendDocument", "document"
	case models.MediaKindAudio:
		method, field = "sendAudio", "audio"
	case models.MediaKindAnimation:
		method, field = "sendAnimation", "animation"
	default:
		method, field = "sendVideo", "video"
	}

	payload := map[string]interface{}{
		"chat_id": chatID,
		field:     item.FileID,
	}
	if item.Caption != "" {
		payload["caption"] = item.Caption
	}

	var msg models.TelegramMessage
	if err := c.call(ctx, method, payload, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// CreateInviteLink creates a single-use invite that expires at the given
// time. member_limit is pinned to 1: one redemption per delivery.
func (c *Client) CreateInviteLink(ctx context.Context, chatID int64, expiresAt time.Time) (string, error) {
	payload := map[string]interface{}{
		"chat_id":      chatID,
		"member_limit": 1,
		"expire_date":  expiresAt.Unix(),
	}

	var link models.TelegramInviteLink
	if err := c.call(ctx, "createChatInviteLink", payload, &link); err != nil {
		return "", err
	}
	return link.InviteLink, nil
}

// EvictMember removes a user from a chat with the ban-then-unban pattern:
// the Bot API has no direct "kick without ban" primitive, so an immediate
// unban keeps the user able to rejoin via a future invite.
func (c *Client) EvictMember(ctx context.Context, chatID, userID int64) error {
	if err := c.call(ctx, "banChatMember", map[string]interface{}{
		"chat_id": chatID,
		"user_id": userID,
	}, nil); err != nil {
		return err
	}

	return c.call(ctx, "unbanChatMember", map[string]interface{}{
		"chat_id":        chatID,
		"user_id":        userID,
		"only_if_banned": true,
	}, nil)
}

// deleteBatchSize is the Bot API limit for one deleteMessages call
const deleteBatchSize = 100

// DeleteMessages bulk-deletes messages in batches, tolerating partial
// failure per batch: a batch that fails is skipped, the rest still run.
func (c *Client) DeleteMessages(ctx context.Context, chatID int64, messageIDs []int64) error {
	var lastErr error
	for start := 0; start < len(messageIDs); start += deleteBatchSize {
		end := start + deleteBatchSize
		if end > len(messageIDs) {
			end = len(messageIDs)
		}

		err := c.call(ctx, "deleteMessages", map[string]interface{}{
			"chat_id":     chatID,
			"message_ids": messageIDs[start:end],
		}, nil)
		if err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// GetChatMember returns the membership status of a user in a chat
func (c *Client) GetChatMember(ctx context.Context, chatID, userID int64) (*models.TelegramChatMember, error) {
	var member models.TelegramChatMember
	err := c.call(ctx, "getChatMember", map[string]interface{}{
		"chat_id": chatID,
		"user_id": userID,
	}, &member)
	if err != nil {
		return nil, err
	}
	return &member, nil
}

// AnswerCallbackQuery acknowledges a button tap, optionally with a toast
func (c *Client) AnswerCallbackQuery(ctx context.Context, callbackID, text string) error {
	payload := map[string]interface{}{
		"callback_query_id": callbackID,
	}
	if text != "" {
		payload["text"] = text
	}
	return c.call(ctx, "answerCallbackQuery", payload, nil)
}

// SetWebhook registers the webhook endpoint with Telegram
func (c *Client) SetWebhook(ctx context.Context, url string) error {
	return c.call(ctx, "setWebhook", map[string]interface{}{
		"url":             url,
		"allowed_updates": []string{"message", "callback_query"},
	}, nil)
}

// DeleteWebhook unregisters the webhook
func (c *Client) DeleteWebhook(ctx context.Context) error {
	return c.call(ctx, "deleteWebhook", map[string]interface{}{}, nil)
}

// GetMe verifies the bot token and returns the bot's own user record
func (c *Client) GetMe(ctx context.Context) (*models.TelegramUser, error) {
	var me models.TelegramUser
	if err := c.call(ctx, "getMe", map[string]interface{}{}, &me); err != nil {
		return nil, err
	}
	return &me, nil
}
