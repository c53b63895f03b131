package handlers

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"clipbot/internal/models"
	"clipbot/internal/telegram"
)

func (h *WebhookHandler) handleCommand(ctx context.Context, msg *models.TelegramMessage) {
	parts := strings.Fields(msg.Text)
	command := parts[0]
	// Group chats append @botname to commands
	if i := strings.Index(command, "@"); i > 0 {
		command = command[:i]
	}
	args := parts[1:]

	switch command {
	case "/start":
		h.cmdStart(ctx, msg)
	case "/trending":
		h.cmdTrending(ctx, msg)
	case "/stats":
		h.cmdStats(ctx, msg)
	case "/addroom":
		h.adminOnly(ctx, msg, func() { h.cmdAddRoom(ctx, msg, args) })
	case "/rooms":
		h.adminOnly(ctx, msg, func() { h.cmdRooms(ctx, msg) })
	case "/cleanroom":
		h.adminOnly(ctx, msg, func() { h.cmdCleanRoom(ctx, msg, args) })
	case "/freerooms":
		h.adminOnly(ctx, msg, func() { h.cmdFreeRooms(ctx, msg) })
	case "/maintenance":
		h.adminOnly(ctx, msg, func() { h.cmdMaintenance(ctx, msg, args) })
	case "/grant":
		h.adminOnly(ctx, msg, func() { h.cmdGrant(ctx, msg, args) })
	}
}

func (h *WebhookHandler) adminOnly(ctx context.Context, msg *models.TelegramMessage, fn func()) {
	if !h.cfg.IsAdmin(msg.From.ID) {
		h.reply(ctx, msg.Chat.ID, "This command is restricted.")
		return
	}
	fn()
}

func (h *WebhookHandler) cmdStart(ctx context.Context, msg *models.TelegramMessage) {
	h.reply(ctx, msg.Chat.ID,
		"👋 Hi! Send me a movie title and I'll find its clips.\n"+
			"Typos are fine, I'll figure it out.\n\n"+
			"/trending shows what everyone is watching.")
}

func (h *WebhookHandler) cmdTrending(ctx context.Context, msg *models.TelegramMessage) {
	movies, err := h.movies.Trending(ctx, 10)
	if err != nil {
		log.Printf("❌ [WEBHOOK] Trending query failed: %v", err)
		h.reply(ctx, msg.Chat.ID, "Something went wrong, please try again.")
		return
	}
	if len(movies) == 0 {
		h.reply(ctx, msg.Chat.ID, "Nothing trending yet, be the first to search!")
		return
	}

	var b strings.Builder
	b.WriteString("🔥 <b>Trending now</b>\n\n")
	for i, m := range movies {
		fmt.Fprintf(&b, "%d. %s (%d requests)\n", i+1, m.Title, m.Popularity)
	}
	h.reply(ctx, msg.Chat.ID, b.String())
}

// cmdStats shows personal stats to everyone and daily counters to admins
func (h *WebhookHandler) cmdStats(ctx context.Context, msg *models.TelegramMessage) {
	var b strings.Builder

	if user, err := h.users.Get(ctx, msg.From.ID); err == nil && user != nil {
		fmt.Fprintf(&b, "%s You have received %d deliveries.\n", user.Badge(), user.Deliveries)
	}

	if h.cfg.IsAdmin(msg.From.ID) {
		today, err := h.stats.Today(ctx)
		if err != nil {
			log.Printf("⚠️ [WEBHOOK] Daily stats read failed: %v", err)
		} else {
			fmt.Fprintf(&b, "\n📊 <b>Today</b>\nSearches: %d\nDeliveries: %d\nFailures: %d\n",
				today.Searches, today.Deliveries, today.Failures)
		}
	}

	if b.Len() == 0 {
		b.WriteString("No stats yet, search for something first!")
	}
	h.reply(ctx, msg.Chat.ID, b.String())
}

func (h *WebhookHandler) cmdAddRoom(ctx context.Context, msg *models.TelegramMessage, args []string) {
	if len(args) != 1 {
		h.reply(ctx, msg.Chat.ID, "Usage: /addroom <chatID>")
		return
	}
	chatID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		h.reply(ctx, msg.Chat.ID, "Chat ID must be numeric.")
		return
	}
	if err := h.rooms.Add(ctx, chatID); err != nil {
		h.reply(ctx, msg.Chat.ID, "❌ "+err.Error())
		return
	}
	log.Printf("✅ [ROOM-POOL] Room %d registered by admin %d", chatID, msg.From.ID)
	h.reply(ctx, msg.Chat.ID, fmt.Sprintf("✅ Room %d added to the pool.", chatID))
}

func (h *WebhookHandler) cmdRooms(ctx context.Context, msg *models.TelegramMessage) {
	rooms, err := h.rooms.List(ctx)
	if err != nil {
		h.reply(ctx, msg.Chat.ID, "❌ "+err.Error())
		return
	}
	if len(rooms) == 0 {
		h.reply(ctx, msg.Chat.ID, "The room pool is empty. Add rooms with /addroom.")
		return
	}

	var b strings.Builder
	b.WriteString("🏠 <b>Room pool</b>\n\n")
	for _, r := range rooms {
		state := "free"
		if r.Busy {
			state = fmt.Sprintf("busy (occupant %d)", r.CurrentOccupant)
		}
		fmt.Fprintf(&b, "%d: %s, last used %s\n", r.ChatID, state, r.LastUsedAt.Format(time.RFC3339))
	}
	h.reply(ctx, msg.Chat.ID, b.String())
}

// cmdCleanRoom sanitizes one room out of band: evicts the recorded
// occupant and purges the recorded messages.
func (h *WebhookHandler) cmdCleanRoom(ctx context.Context, msg *models.TelegramMessage, args []string) {
	if len(args) != 1 {
		h.reply(ctx, msg.Chat.ID, "Usage: /cleanroom <chatID>")
		return
	}
	chatID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		h.reply(ctx, msg.Chat.ID, "Chat ID must be numeric.")
		return
	}
	room, err := h.rooms.Get(ctx, chatID)
	if err != nil {
		h.reply(ctx, msg.Chat.ID, "❌ "+err.Error())
		return
	}

	if room.CurrentOccupant != 0 {
		if err := h.tg.EvictMember(ctx, room.ChatID, room.CurrentOccupant); err != nil && !telegram.IsBenign(err) {
			log.Printf("⚠️ [ROOM-POOL] Manual eviction in %d failed: %v", room.ChatID, err)
		}
	}
	if len(room.LastDeliveredIDs) > 0 {
		if err := h.tg.DeleteMessages(ctx, room.ChatID, room.LastDeliveredIDs); err != nil && !telegram.IsBenign(err) {
			log.Printf("⚠️ [ROOM-POOL] Manual purge in %d failed: %v", room.ChatID, err)
		}
	}
	if err := h.rooms.Release(ctx, room.ID, 0, nil); err != nil {
		h.reply(ctx, msg.Chat.ID, "❌ "+err.Error())
		return
	}

	log.Printf("🧹 [ROOM-POOL] Room %d cleaned by admin %d", chatID, msg.From.ID)
	h.reply(ctx, msg.Chat.ID, fmt.Sprintf("🧹 Room %d cleaned and freed.", chatID))
}

func (h *WebhookHandler) cmdFreeRooms(ctx context.Context, msg *models.TelegramMessage) {
	freed, err := h.rooms.ForceReleaseAll(ctx)
	if err != nil {
		h.reply(ctx, msg.Chat.ID, "❌ "+err.Error())
		return
	}
	log.Printf("🧹 [ROOM-POOL] %d rooms force-freed by admin %d", freed, msg.From.ID)
	h.reply(ctx, msg.Chat.ID, fmt.Sprintf("🧹 Freed %d busy rooms.", freed))
}

func (h *WebhookHandler) cmdMaintenance(ctx context.Context, msg *models.TelegramMessage, args []string) {
	if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
		h.reply(ctx, msg.Chat.ID, "Usage: /maintenance on|off")
		return
	}
	enabled := args[0] == "on"
	h.maint.Set(enabled)
	log.Printf("🛠 [WEBHOOK] Maintenance set to %v by admin %d", enabled, msg.From.ID)
	h.reply(ctx, msg.Chat.ID, fmt.Sprintf("🛠 Maintenance mode: %s", args[0]))
}

// cmdGrant issues an access token: /grant <userID> <duration, e.g. 24h>
func (h *WebhookHandler) cmdGrant(ctx context.Context, msg *models.TelegramMessage, args []string) {
	if len(args) != 2 {
		h.reply(ctx, msg.Chat.ID, "Usage: /grant <userID> <duration>")
		return
	}
	userID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		h.reply(ctx, msg.Chat.ID, "User ID must be numeric.")
		return
	}
	ttl, err := time.ParseDuration(args[1])
	if err != nil || ttl <= 0 {
		h.reply(ctx, msg.Chat.ID, "Duration must look like 24h or 30m.")
		return
	}
	if err := h.tokens.Grant(ctx, userID, ttl); err != nil {
		h.reply(ctx, msg.Chat.ID, "❌ "+err.Error())
		return
	}
	h.reply(ctx, msg.Chat.ID, fmt.Sprintf("🔑 Access granted to %d for %s.", userID, ttl))
}
