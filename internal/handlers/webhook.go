package handlers

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"clipbot/internal/config"
	"clipbot/internal/match"
	"clipbot/internal/models"
	"clipbot/internal/services"
	"clipbot/internal/telegram"
)

// suggestionButtons caps the inline keyboard shown for an ambiguous search
const suggestionButtons = 3

// processTimeout bounds the background handling of one update. The HTTP
// response returns immediately so Telegram does not redeliver.
const processTimeout = 90 * time.Second

// WebhookHandler receives Telegram webhook updates and routes them to
// search, delivery, ingestion and the command surface.
type WebhookHandler struct {
	cfg      *config.Config
	tg       *telegram.Client
	search   *services.SearchService
	delivery *services.DeliveryService
	movies   *services.MovieService
	rooms    *services.RoomService
	users    *services.UserService
	stats    *services.StatsService
	sessions *services.SessionService
	maint    *services.MaintenanceState
	tokens   *services.TokenService
}

// NewWebhookHandler creates the webhook handler
func NewWebhookHandler(
	cfg *config.Config,
	tg *telegram.Client,
	search *services.SearchService,
	delivery *services.DeliveryService,
	movies *services.MovieService,
	rooms *services.RoomService,
	users *services.UserService,
	stats *services.StatsService,
	sessions *services.SessionService,
	maint *services.MaintenanceState,
	tokens *services.TokenService,
) *WebhookHandler {
	return &WebhookHandler{
		cfg:      cfg,
		tg:       tg,
		search:   search,
		delivery: delivery,
		movies:   movies,
		rooms:    rooms,
		users:    users,
		stats:    stats,
		sessions: sessions,
		maint:    maint,
		tokens:   tokens,
	}
}

// Handle processes an incoming Telegram update
// POST /webhook/:secret
func (h *WebhookHandler) Handle(c *fiber.Ctx) error {
	secret := c.Params("secret")
	if subtle.ConstantTimeCompare([]byte(secret), []byte(h.cfg.WebhookSecret)) != 1 {
		return c.SendStatus(fiber.StatusNotFound)
	}

	var update models.TelegramUpdate
	if err := json.Unmarshal(c.Body(), &update); err != nil {
		log.Printf("❌ [WEBHOOK] Malformed update payload: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid payload",
		})
	}

	if h.sessions != nil {
		seen, err := h.sessions.SeenUpdate(c.Context(), update.UpdateID)
		if err != nil {
			log.Printf("⚠️ [WEBHOOK] Dedup check failed for update %d: %v", update.UpdateID, err)
		} else if seen {
			return c.SendStatus(fiber.StatusOK)
		}
	}

	// Deliveries can outlive Telegram's webhook timeout; respond now and
	// finish the work in the background.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), processTimeout)
		defer cancel()
		h.process(ctx, &update)
	}()

	return c.SendStatus(fiber.StatusOK)
}

func (h *WebhookHandler) process(ctx context.Context, update *models.TelegramUpdate) {
	switch {
	case update.CallbackQuery != nil:
		h.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		h.handleMessage(ctx, update.Message)
	}
}

func (h *WebhookHandler) handleMessage(ctx context.Context, msg *models.TelegramMessage) {
	if msg.From == nil || msg.From.IsBot || msg.Chat == nil {
		return
	}

	if err := h.users.Touch(ctx, msg.From); err != nil {
		log.Printf("⚠️ [WEBHOOK] User upsert failed for %d: %v", msg.From.ID, err)
	}

	if strings.HasPrefix(msg.Text, "/") {
		h.handleCommand(ctx, msg)
		return
	}

	if item, ok := extractMediaItem(msg); ok {
		h.handleIngestion(ctx, msg, item)
		return
	}

	if msg.Text != "" {
		h.handleSearch(ctx, msg)
	}
}

// handleSearch resolves the query and either delivers immediately, offers
// suggestions, or reports no match.
func (h *WebhookHandler) handleSearch(ctx context.Context, msg *models.TelegramMessage) {
	outcome, err := h.search.Search(ctx, msg.From.ID, msg.Text)
	if err != nil {
		log.Printf("❌ [WEBHOOK] Search failed for %d: %v", msg.From.ID, err)
		h.reply(ctx, msg.Chat.ID, "Something went wrong, please try again.")
		return
	}

	switch outcome.Kind {
	case match.SingleMatch:
		h.offerMovie(ctx, msg, outcome.Match)

	case match.Suggestions:
		n := len(outcome.Candidates)
		if n > suggestionButtons {
			n = suggestionButtons
		}
		rows := make([][]models.InlineKeyboardButton, n)
		for i := 0; i < n; i++ {
			rows[i] = []models.InlineKeyboardButton{{
				Text:         outcome.Candidates[i].Title,
				CallbackData: fmt.Sprintf("sug:%d", i),
			}}
		}
		markup := &models.InlineKeyboardMarkup{InlineKeyboard: rows}
		text := mention(msg) + "Did you mean one of these?"
		if _, err := h.tg.SendMessage(ctx, msg.Chat.ID, text, markup); err != nil {
			log.Printf("⚠️ [WEBHOOK] Suggestion reply failed: %v", err)
		}

	default:
		h.reply(ctx, msg.Chat.ID, mention(msg)+"No clips found for that title. Check the spelling and try again.")
	}
}

// offerMovie presents a resolved title with a Get button. The title goes
// into the user's session as a one-entry pick list and the button carries
// its index; the indirection keeps one delivery entry point for both direct
// hits and suggestion picks.
func (h *WebhookHandler) offerMovie(ctx context.Context, msg *models.TelegramMessage, movie *models.Movie) {
	if err := h.sessions.SaveSuggestions(ctx, msg.From.ID, []string{movie.Title}); err != nil {
		log.Printf("⚠️ [WEBHOOK] Pick list save failed for %d: %v", msg.From.ID, err)
	}
	markup := &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{{offerButton(movie)}},
	}
	text := fmt.Sprintf("%sFound <b>%s</b> with %d clips.", mention(msg), movie.Title, movie.ClipCount())
	if _, err := h.tg.SendMessage(ctx, msg.Chat.ID, text, markup); err != nil {
		log.Printf("⚠️ [WEBHOOK] Match reply failed: %v", err)
	}
}

// offerButton builds the Get button. Callback data carries a pick-list
// index, never the title: Telegram caps callback data at 64 bytes and
// titles routinely exceed it.
func offerButton(movie *models.Movie) models.InlineKeyboardButton {
	return models.InlineKeyboardButton{
		Text:         fmt.Sprintf("🎬 Get %d clips", movie.ClipCount()),
		CallbackData: "get:0",
	}
}

func (h *WebhookHandler) handleCallback(ctx context.Context, cb *models.TelegramCallbackQuery) {
	if cb.From == nil || cb.Message == nil || cb.Message.Chat == nil {
		return
	}

	var movie *models.Movie
	var err error

	switch {
	// Both button kinds resolve through the stored pick list.
	case strings.HasPrefix(cb.Data, "get:"), strings.HasPrefix(cb.Data, "sug:"):
		var idx int
		idx, err = strconv.Atoi(cb.Data[4:])
		if err == nil {
			movie, err = h.search.PickSuggestion(ctx, cb.From.ID, idx)
		}
	default:
		_ = h.tg.AnswerCallbackQuery(ctx, cb.ID, "")
		return
	}

	if err != nil || movie == nil {
		log.Printf("⚠️ [WEBHOOK] Callback %q unresolved for %d: %v", cb.Data, cb.From.ID, err)
		_ = h.tg.AnswerCallbackQuery(ctx, cb.ID, "That option has expired, search again.")
		return
	}

	_ = h.tg.AnswerCallbackQuery(ctx, cb.ID, "Preparing your clips...")
	h.runDelivery(ctx, cb.From, cb.Message.Chat.ID, movie)
}

// runDelivery executes one delivery and translates the result into a reply
func (h *WebhookHandler) runDelivery(ctx context.Context, user *models.TelegramUser, chatID int64, movie *models.Movie) {
	result := h.delivery.Deliver(ctx, user, movie)

	switch result.Status {
	case services.StatusDelivered:
		markup := &models.InlineKeyboardMarkup{
			InlineKeyboard: [][]models.InlineKeyboardButton{{
				{Text: "📥 Join and watch", URL: result.InviteURL},
			}},
		}
		text := fmt.Sprintf("✅ <b>%s</b> is ready: %d clips.\nThe link admits one person and expires soon.", movie.Title, result.ClipCount)
		if _, err := h.tg.SendMessage(ctx, chatID, text, markup); err != nil {
			log.Printf("⚠️ [WEBHOOK] Delivery reply failed: %v", err)
		}

	case services.StatusBlocked:
		h.replyBlocked(ctx, chatID, result)

	default:
		h.reply(ctx, chatID, "❌ Delivery failed, please try again in a moment.")
	}
}

func (h *WebhookHandler) replyBlocked(ctx context.Context, chatID int64, result services.DeliveryResult) {
	switch result.Reason {
	case services.BlockBusy:
		h.reply(ctx, chatID, "⏳ Your previous delivery is still running, give it a moment.")
	case services.BlockMaint:
		h.reply(ctx, chatID, "🛠 The bot is under maintenance, try again later.")
	case services.BlockPoolEmpty:
		h.reply(ctx, chatID, "❌ No delivery rooms are available right now, try again later.")
	case services.BlockGated:
		markup := &models.InlineKeyboardMarkup{
			InlineKeyboard: [][]models.InlineKeyboardButton{{
				{Text: "🔑 Get access", URL: result.GateURL},
			}},
		}
		if _, err := h.tg.SendMessage(ctx, chatID, "You need an access pass to receive clips.", markup); err != nil {
			log.Printf("⚠️ [WEBHOOK] Gate reply failed: %v", err)
		}
	case services.BlockMembership:
		markup := &models.InlineKeyboardMarkup{
			InlineKeyboard: [][]models.InlineKeyboardButton{{
				{Text: "📢 Join channel", URL: result.GateURL},
			}},
		}
		if _, err := h.tg.SendMessage(ctx, chatID, "Join our channel first, then try again.", markup); err != nil {
			log.Printf("⚠️ [WEBHOOK] Membership reply failed: %v", err)
		}
	}
}

// handleIngestion appends forwarded media to the catalog entry named by the
// caption. Admin only.
func (h *WebhookHandler) handleIngestion(ctx context.Context, msg *models.TelegramMessage, item models.MediaItem) {
	if !h.cfg.IsAdmin(msg.From.ID) {
		return
	}

	// A photo captioned "/setthumb <title>" sets the title's thumbnail
	// instead of being indexed as a clip.
	if item.Kind == models.MediaKindPhoto && strings.HasPrefix(msg.Caption, "/setthumb ") {
		title := match.NormalizeTitle(strings.TrimPrefix(msg.Caption, "/setthumb "))
		if err := h.movies.SetThumbnail(ctx, title, item.FileID); err != nil {
			h.reply(ctx, msg.Chat.ID, "❌ "+err.Error())
			return
		}
		h.reply(ctx, msg.Chat.ID, fmt.Sprintf("🖼 Thumbnail set for <b>%s</b>.", title))
		return
	}

	title, categories := parseCaption(msg.Caption)
	if title == "" {
		h.reply(ctx, msg.Chat.ID, "Add a caption with the title to index this media.")
		return
	}

	movie, err := h.movies.Ingest(ctx, title, item)
	if err != nil {
		log.Printf("❌ [WEBHOOK] Ingestion of %q failed: %v", title, err)
		h.reply(ctx, msg.Chat.ID, "❌ Failed to index: "+err.Error())
		return
	}
	if len(categories) > 0 {
		if err := h.movies.AddCategories(ctx, movie.Title, categories); err != nil {
			log.Printf("⚠️ [WEBHOOK] Category update for %q failed: %v", movie.Title, err)
		}
	}

	h.reply(ctx, msg.Chat.ID, fmt.Sprintf("📦 Indexed <b>%s</b>, now %d clips.", movie.Title, movie.ClipCount()))
}

// extractMediaItem pulls the single media attachment out of a message.
// Photos arrive as a size array; the last entry is the largest.
func extractMediaItem(msg *models.TelegramMessage) (models.MediaItem, bool) {
	switch {
	case msg.Video != nil:
		return models.MediaItem{FileID: msg.Video.FileID, Kind: models.MediaKindVideo}, true
	case msg.Animation != nil:
		return models.MediaItem{FileID: msg.Animation.FileID, Kind: models.MediaKindAnimation}, true
	case msg.Audio != nil:
		return models.MediaItem{FileID: msg.Audio.FileID, Kind: models.MediaKindAudio}, true
	case msg.Document != nil:
		return models.MediaItem{FileID: msg.Document.FileID, Kind: models.MediaKindDocument}, true
	case len(msg.Photo) > 0:
		return models.MediaItem{FileID: msg.Photo[len(msg.Photo)-1].FileID, Kind: models.MediaKindPhoto}, true
	}
	return models.MediaItem{}, false
}

// parseCaption splits an ingestion caption into a title and optional
// categories. The first line is the title; a line starting with "cast:" or
// "tags:" lists comma-separated category words.
func parseCaption(caption string) (string, []string) {
	lines := strings.Split(strings.TrimSpace(caption), "\n")
	if len(lines) == 0 {
		return "", nil
	}
	title := match.NormalizeTitle(lines[0])

	var categories []string
	for _, line := range lines[1:] {
		lower := strings.ToLower(strings.TrimSpace(line))
		for _, prefix := range []string{"cast:", "tags:"} {
			if strings.HasPrefix(lower, prefix) {
				for _, c := range strings.Split(strings.TrimPrefix(lower, prefix), ",") {
					if c = strings.TrimSpace(c); c != "" {
						categories = append(categories, c)
					}
				}
			}
		}
	}
	return title, categories
}

// mention prefixes group replies with the requesting user so threads stay
// readable; private chats need no prefix.
func mention(msg *models.TelegramMessage) string {
	if msg.Chat.Type == "private" {
		return ""
	}
	if msg.From.Username != "" {
		return "@" + msg.From.Username + " "
	}
	return msg.From.FirstName + " "
}

func (h *WebhookHandler) reply(ctx context.Context, chatID int64, text string) {
	if _, err := h.tg.SendMessage(ctx, chatID, text, nil); err != nil {
		log.Printf("⚠️ [WEBHOOK] Reply to %d failed: %v", chatID, err)
	}
}
