package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"clipbot/internal/logging"
	"clipbot/internal/models"
	"clipbot/internal/telegram"
)

// DeliveryStatus classifies the outcome of one delivery attempt
type DeliveryStatus int

const (
	// StatusDelivered means the media reached the room and an invite was issued
	StatusDelivered DeliveryStatus = iota
	// StatusBlocked means a precondition failed; nothing was delivered
	StatusBlocked
	// StatusFailed means a load-bearing step failed mid-delivery
	StatusFailed
)

// BlockReason says which gate stopped a blocked delivery
type BlockReason string

const (
	BlockBusy       BlockReason = "busy"        // a delivery for this user is already running
	BlockGated      BlockReason = "gated"       // no valid access token
	BlockMembership BlockReason = "membership"  // force-subscribe channel not joined
	BlockPoolEmpty  BlockReason = "pool_empty"  // zero rooms provisioned
	BlockMaint      BlockReason = "maintenance" // maintenance mode is on
)

// DeliveryResult is the outcome of Deliver
type DeliveryResult struct {
	Status    DeliveryStatus
	InviteURL string
	ClipCount int
	Reason    BlockReason
	GateURL   string // link to clear the blocking gate, when one exists
	Err       error
}

// roomPool is the slice of the room service the orchestrator needs
type roomPool interface {
	Lease(ctx context.Context) (*models.Room, error)
	Release(ctx context.Context, roomID primitive.ObjectID, occupant int64, deliveredIDs []int64) error
}

// userLocker is the per-user delivery lock
type userLocker interface {
	TryAcquire(ctx context.Context, userID int64) (bool, error)
	Release(ctx context.Context, userID int64) error
}

// accessGate is the monetization collaborator boundary
type accessGate interface {
	Enabled() bool
	HasValidToken(ctx context.Context, userID int64) (bool, error)
	GateLink(userID int64) string
}

// transport is the slice of the Telegram client the orchestrator needs
type transport interface {
	EvictMember(ctx context.Context, chatID, userID int64) error
	DeleteMessages(ctx context.Context, chatID int64, messageIDs []int64) error
	SendMediaGroup(ctx context.Context, chatID int64, media []telegram.InputMedia) ([]models.TelegramMessage, error)
	SendMedia(ctx context.Context, chatID int64, item models.MediaItem) (*models.TelegramMessage, error)
	CreateInviteLink(ctx context.Context, chatID int64, expiresAt time.Time) (string, error)
	GetChatMember(ctx context.Context, chatID, userID int64) (*models.TelegramChatMember, error)
}

// DeliveryService orchestrates one delivery: lock, lease, sanitize,
// transfer, invite, release, bookkeeping. Locks and rooms are always
// released on the way out, whatever fails in between.
type DeliveryService struct {
	rooms       roomPool
	locks       userLocker
	tokens      accessGate
	tg          transport
	movies      *MovieService
	users       *UserService
	stats       *StatsService
	audit       *AuditService
	maintenance *MaintenanceState
	metrics     *Metrics

	inviteTTL       time.Duration
	forceSubChannel int64
	forceSubLink    string
}

// DeliveryConfig carries the orchestrator's tunables
type DeliveryConfig struct {
	InviteTTL       time.Duration
	ForceSubChannel int64
	ForceSubLink    string
}

// NewDeliveryService creates the delivery orchestrator. movies, users,
// stats, audit, maintenance and metrics may be nil; bookkeeping is then
// skipped.
func NewDeliveryService(rooms roomPool, locks userLocker, tokens accessGate, tg transport, cfg DeliveryConfig) *DeliveryService {
	return &DeliveryService{
		rooms:           rooms,
		locks:           locks,
		tokens:          tokens,
		tg:              tg,
		inviteTTL:       cfg.InviteTTL,
		forceSubChannel: cfg.ForceSubChannel,
		forceSubLink:    cfg.ForceSubLink,
	}
}

// SetBookkeeping attaches the optional bookkeeping collaborators
func (s *DeliveryService) SetBookkeeping(movies *MovieService, users *UserService, stats *StatsService, audit *AuditService, maintenance *MaintenanceState, metrics *Metrics) {
	s.movies = movies
	s.users = users
	s.stats = stats
	s.audit = audit
	s.maintenance = maintenance
	s.metrics = metrics
}

// Deliver runs one delivery attempt for the user and the resolved movie.
// It never returns with the lock or a room still held.
func (s *DeliveryService) Deliver(ctx context.Context, user *models.TelegramUser, movie *models.Movie) DeliveryResult {
	start := time.Now()
	deliveryID := uuid.NewString()

	result := s.deliver(ctx, deliveryID, user, movie)

	if s.metrics != nil {
		switch result.Status {
		case StatusDelivered:
			s.metrics.Deliveries.WithLabelValues("delivered").Inc()
			s.metrics.DeliveryLatency.Observe(time.Since(start).Seconds())
		case StatusBlocked:
			s.metrics.Deliveries.WithLabelValues("blocked").Inc()
		case StatusFailed:
			s.metrics.Deliveries.WithLabelValues("failed").Inc()
		}
	}

	return result
}

func (s *DeliveryService) deliver(ctx context.Context, deliveryID string, user *models.TelegramUser, movie *models.Movie) DeliveryResult {
	if s.maintenance != nil && s.maintenance.Enabled() {
		return DeliveryResult{Status: StatusBlocked, Reason: BlockMaint}
	}

	// Take the per-user lock first: the atomic acquire doubles as the
	// "already delivering" precondition check.
	acquired, err := s.locks.TryAcquire(ctx, user.ID)
	if err != nil {
		return DeliveryResult{Status: StatusFailed, Err: fmt.Errorf("lock acquire: %w", err)}
	}
	if !acquired {
		return DeliveryResult{Status: StatusBlocked, Reason: BlockBusy}
	}
	defer func() {
		if err := s.locks.Release(cleanupContext(ctx), user.ID); err != nil {
			log.Printf("⚠️ [DELIVERY] %s: failed to release lock for %d: %v", deliveryID, user.ID, err)
		}
	}()

	// Monetization gate.
	if s.tokens != nil && s.tokens.Enabled() {
		ok, err := s.tokens.HasValidToken(ctx, user.ID)
		if err != nil {
			return DeliveryResult{Status: StatusFailed, Err: fmt.Errorf("token check: %w", err)}
		}
		if !ok {
			return DeliveryResult{Status: StatusBlocked, Reason: BlockGated, GateURL: s.tokens.GateLink(user.ID)}
		}
	}

	// Force-subscribe gate.
	if s.forceSubChannel != 0 {
		member, err := s.tg.GetChatMember(ctx, s.forceSubChannel, user.ID)
		if err != nil || !member.IsMember() {
			return DeliveryResult{Status: StatusBlocked, Reason: BlockMembership, GateURL: s.forceSubLink}
		}
	}

	// Lease a room.
	room, err := s.rooms.Lease(ctx)
	if err == ErrPoolEmpty {
		if s.audit != nil {
			s.audit.ConfigError(ctx, "Delivery blocked: no rooms provisioned")
		}
		return DeliveryResult{Status: StatusBlocked, Reason: BlockPoolEmpty}
	}
	if err != nil {
		return DeliveryResult{Status: StatusFailed, Err: fmt.Errorf("room lease: %w", err)}
	}

	// From here on the room must be released exactly once, with whatever
	// was delivered before any failure.
	var deliveredIDs []int64
	defer func() {
		if err := s.rooms.Release(cleanupContext(ctx), room.ID, user.ID, deliveredIDs); err != nil {
			log.Printf("❌ [DELIVERY] %s: failed to release room %d: %v", deliveryID, room.ChatID, err)
		}
	}()

	s.sanitizeRoom(ctx, deliveryID, room, user.ID)

	deliveredIDs, err = s.transferMedia(ctx, room.ChatID, movie)
	if err != nil {
		s.reportFailure(ctx, deliveryID, user.ID, movie.Title, err)
		return DeliveryResult{Status: StatusFailed, Err: err}
	}

	inviteURL, err := s.tg.CreateInviteLink(ctx, room.ChatID, time.Now().Add(s.inviteTTL))
	if err != nil {
		err = fmt.Errorf("invite creation: %w", err)
		s.reportFailure(ctx, deliveryID, user.ID, movie.Title, err)
		return DeliveryResult{Status: StatusFailed, Err: err}
	}

	s.bookkeep(ctx, user, movie)

	log.Printf("✅ [DELIVERY] %s: delivered %q (%d clips) to user %d via room %d",
		deliveryID, movie.Title, len(deliveredIDs), user.ID, room.ChatID)

	return DeliveryResult{
		Status:    StatusDelivered,
		InviteURL: inviteURL,
		ClipCount: movie.ClipCount(),
	}
}

// cleanupContext detaches the request context for the deferred release
// calls: a delivery killed by a timeout still frees its lock and room
// promptly instead of waiting out the staleness TTL.
func cleanupContext(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

// reportFailure records one failed delivery everywhere it needs to land:
// structured log, audit channel, daily stats
func (s *DeliveryService) reportFailure(ctx context.Context, deliveryID string, userID int64, title string, err error) {
	logging.WithDelivery(deliveryID, userID, title).Error("delivery failed", "error", err)
	if s.audit != nil {
		s.audit.DeliveryFailure(ctx, deliveryID, userID, title, err)
	}
	if s.stats != nil {
		_ = s.stats.IncrFailures(ctx)
	}
}

// sanitizeRoom evicts the previous occupant and purges the previous
// delivery's messages. Everything here is best-effort cleanup: errors are
// logged and swallowed, they never abort the delivery.
func (s *DeliveryService) sanitizeRoom(ctx context.Context, deliveryID string, room *models.Room, newOccupant int64) {
	if room.CurrentOccupant != 0 && room.CurrentOccupant != newOccupant {
		if err := s.tg.EvictMember(ctx, room.ChatID, room.CurrentOccupant); err != nil && !telegram.IsBenign(err) {
			log.Printf("⚠️ [DELIVERY] %s: eviction of %d from room %d failed: %v",
				deliveryID, room.CurrentOccupant, room.ChatID, err)
		}
	}

	if len(room.LastDeliveredIDs) > 0 {
		if err := s.tg.DeleteMessages(ctx, room.ChatID, room.LastDeliveredIDs); err != nil && !telegram.IsBenign(err) {
			log.Printf("⚠️ [DELIVERY] %s: purge of %d messages in room %d failed: %v",
				deliveryID, len(room.LastDeliveredIDs), room.ChatID, err)
		}
	}
}

// albumLimit is the Bot API cap on items per media group
const albumLimit = 10

// transferMedia sends the movie's media into the room, grouped into
// transport-compatible albums, and returns every created message ID.
// A failed album falls back to sending its items one by one; the transfer
// as a whole fails only when nothing could be sent at all.
func (s *DeliveryService) transferMedia(ctx context.Context, chatID int64, movie *models.Movie) ([]int64, error) {
	if len(movie.MediaItems) == 0 {
		return nil, fmt.Errorf("movie %q has no media items", movie.Title)
	}

	var deliveredIDs []int64
	for _, album := range groupAlbums(movie.MediaItems) {
		for start := 0; start < len(album); start += albumLimit {
			end := start + albumLimit
			if end > len(album) {
				end = len(album)
			}
			batch := album[start:end]

			ids, err := s.sendAlbum(ctx, chatID, batch)
			if err != nil {
				// Album failed wholesale: salvage item by item.
				ids = s.sendIndividually(ctx, chatID, batch)
			}
			deliveredIDs = append(deliveredIDs, ids...)
		}
	}

	if len(deliveredIDs) == 0 {
		return nil, fmt.Errorf("media transfer failed: no items delivered")
	}
	return deliveredIDs, nil
}

func (s *DeliveryService) sendAlbum(ctx context.Context, chatID int64, items []models.MediaItem) ([]int64, error) {
	if len(items) == 1 {
		msg, err := s.tg.SendMedia(ctx, chatID, items[0])
		if err != nil {
			return nil, err
		}
		return []int64{msg.MessageID}, nil
	}

	media := make([]telegram.InputMedia, len(items))
	for i, item := range items {
		media[i] = telegram.InputMedia{
			Type:    string(item.Kind),
			Media:   item.FileID,
			Caption: item.Caption,
		}
	}

	msgs, err := s.tg.SendMediaGroup(ctx, chatID, media)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, len(msgs))
	for i, m := range msgs {
		ids[i] = m.MessageID
	}
	return ids, nil
}

func (s *DeliveryService) sendIndividually(ctx context.Context, chatID int64, items []models.MediaItem) []int64 {
	var ids []int64
	for _, item := range items {
		msg, err := s.tg.SendMedia(ctx, chatID, item)
		if err != nil {
			log.Printf("⚠️ [DELIVERY] Item %s failed individually: %v", item.FileID, err)
			continue
		}
		ids = append(ids, msg.MessageID)
	}
	return ids
}

// groupAlbums splits media items into transport-compatible album groups:
// photos, videos and animations may share an album; documents and audio
// each need their own.
func groupAlbums(items []models.MediaItem) [][]models.MediaItem {
	var visual, documents, audio []models.MediaItem
	for _, item := range items {
		switch item.Kind {
		case models.MediaKindDocument:
			documents = append(documents, item)
		case models.MediaKindAudio:
			audio = append(audio, item)
		default:
			visual = append(visual, item)
		}
	}

	var albums [][]models.MediaItem
	for _, group := range [][]models.MediaItem{visual, documents, audio} {
		if len(group) > 0 {
			albums = append(albums, group)
		}
	}
	return albums
}

// bookkeep applies the post-delivery side effects: popularity, user badge
// counter, daily stats. All best-effort.
func (s *DeliveryService) bookkeep(ctx context.Context, user *models.TelegramUser, movie *models.Movie) {
	if s.movies != nil {
		if err := s.movies.IncrementPopularity(ctx, movie.Title); err != nil {
			log.Printf("⚠️ [DELIVERY] Popularity bump for %q failed: %v", movie.Title, err)
		}
	}
	if s.users != nil {
		if _, err := s.users.IncrementDeliveries(ctx, user.ID); err != nil {
			log.Printf("⚠️ [DELIVERY] Delivery count bump for %d failed: %v", user.ID, err)
		}
	}
	if s.stats != nil {
		_ = s.stats.IncrDeliveries(ctx)
	}
}
