package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"clipbot/internal/models"
	"clipbot/internal/telegram"
)

type fakePool struct {
	room          *models.Room
	leaseErr      error
	released      bool
	releasedID    int64
	deliveredIDs  []int64
	releaseCtxErr error
}

func (f *fakePool) Lease(ctx context.Context) (*models.Room, error) {
	if f.leaseErr != nil {
		return nil, f.leaseErr
	}
	return f.room, nil
}

func (f *fakePool) Release(ctx context.Context, roomID primitive.ObjectID, occupant int64, deliveredIDs []int64) error {
	if f.released {
		return errors.New("room released twice")
	}
	f.released = true
	f.releasedID = occupant
	f.deliveredIDs = deliveredIDs
	f.releaseCtxErr = ctx.Err()
	return nil
}

type fakeLocker struct {
	deny          bool
	acquired      bool
	released      bool
	releaseCtxErr error
}

func (f *fakeLocker) TryAcquire(ctx context.Context, userID int64) (bool, error) {
	if f.deny {
		return false, nil
	}
	f.acquired = true
	return true, nil
}

func (f *fakeLocker) Release(ctx context.Context, userID int64) error {
	f.released = true
	f.releaseCtxErr = ctx.Err()
	return nil
}

type fakeGate struct {
	enabled bool
	valid   bool
	link    string
}

func (f *fakeGate) Enabled() bool { return f.enabled }
func (f *fakeGate) HasValidToken(ctx context.Context, userID int64) (bool, error) {
	return f.valid, nil
}
func (f *fakeGate) GateLink(userID int64) string { return f.link }

type fakeTransport struct {
	groupErr     error
	mediaErr     error
	inviteErr    error
	cancelOnSend context.CancelFunc
	evicted      []int64
	purged       [][]int64
	albumSizes   []int
	singleSends  int
	nextMsgID    int64
	memberStatus string
}

func (f *fakeTransport) EvictMember(ctx context.Context, chatID, userID int64) error {
	f.evicted = append(f.evicted, userID)
	return nil
}

func (f *fakeTransport) DeleteMessages(ctx context.Context, chatID int64, messageIDs []int64) error {
	f.purged = append(f.purged, messageIDs)
	return nil
}

func (f *fakeTransport) SendMediaGroup(ctx context.Context, chatID int64, media []telegram.InputMedia) ([]models.TelegramMessage, error) {
	if f.groupErr != nil {
		return nil, f.groupErr
	}
	f.albumSizes = append(f.albumSizes, len(media))
	msgs := make([]models.TelegramMessage, len(media))
	for i := range msgs {
		f.nextMsgID++
		msgs[i] = models.TelegramMessage{MessageID: f.nextMsgID}
	}
	return msgs, nil
}

func (f *fakeTransport) SendMedia(ctx context.Context, chatID int64, item models.MediaItem) (*models.TelegramMessage, error) {
	if f.cancelOnSend != nil {
		f.cancelOnSend()
		return nil, ctx.Err()
	}
	if f.mediaErr != nil {
		return nil, f.mediaErr
	}
	f.singleSends++
	f.nextMsgID++
	return &models.TelegramMessage{MessageID: f.nextMsgID}, nil
}

func (f *fakeTransport) CreateInviteLink(ctx context.Context, chatID int64, expiresAt time.Time) (string, error) {
	if f.inviteErr != nil {
		return "", f.inviteErr
	}
	return "https://t.me/+invite", nil
}

func (f *fakeTransport) GetChatMember(ctx context.Context, chatID, userID int64) (*models.TelegramChatMember, error) {
	status := f.memberStatus
	if status == "" {
		status = "member"
	}
	return &models.TelegramChatMember{Status: status}, nil
}

func testMovie(items ...models.MediaItem) *models.Movie {
	if len(items) == 0 {
		items = []models.MediaItem{{FileID: "f1", Kind: models.MediaKindVideo}}
	}
	return &models.Movie{ID: primitive.NewObjectID(), Title: "jawan", MediaItems: items}
}

func testUser() *models.TelegramUser {
	return &models.TelegramUser{ID: 42, FirstName: "Test"}
}

func newTestDelivery(pool *fakePool, locker *fakeLocker, gate *fakeGate, tg *fakeTransport) *DeliveryService {
	return NewDeliveryService(pool, locker, gate, tg, DeliveryConfig{
		InviteTTL: 2 * time.Hour,
	})
}

func TestDeliverSuccess(t *testing.T) {
	pool := &fakePool{room: &models.Room{ID: primitive.NewObjectID(), ChatID: -100500}}
	locker := &fakeLocker{}
	tg := &fakeTransport{}

	svc := newTestDelivery(pool, locker, &fakeGate{}, tg)
	result := svc.Deliver(context.Background(), testUser(), testMovie())

	if result.Status != StatusDelivered {
		t.Fatalf("expected delivered, got %v (err %v)", result.Status, result.Err)
	}
	if result.InviteURL == "" {
		t.Error("expected invite URL")
	}
	if result.ClipCount != 1 {
		t.Errorf("expected clip count 1, got %d", result.ClipCount)
	}
	if !locker.released {
		t.Error("lock was not released")
	}
	if !pool.released {
		t.Error("room was not released")
	}
	if pool.releasedID != 42 {
		t.Errorf("room released with occupant %d, want 42", pool.releasedID)
	}
	if len(pool.deliveredIDs) != 1 {
		t.Errorf("expected 1 delivered message ID recorded, got %d", len(pool.deliveredIDs))
	}
}

func TestDeliverBlockedWhenLockHeld(t *testing.T) {
	pool := &fakePool{room: &models.Room{ID: primitive.NewObjectID(), ChatID: -1}}
	svc := newTestDelivery(pool, &fakeLocker{deny: true}, &fakeGate{}, &fakeTransport{})

	result := svc.Deliver(context.Background(), testUser(), testMovie())

	if result.Status != StatusBlocked || result.Reason != BlockBusy {
		t.Fatalf("expected blocked/busy, got %v/%v", result.Status, result.Reason)
	}
	if pool.released {
		t.Error("room should never have been touched")
	}
}

func TestDeliverBlockedByTokenGate(t *testing.T) {
	locker := &fakeLocker{}
	gate := &fakeGate{enabled: true, valid: false, link: "https://gate.example/?uid=42"}
	svc := newTestDelivery(&fakePool{}, locker, gate, &fakeTransport{})

	result := svc.Deliver(context.Background(), testUser(), testMovie())

	if result.Status != StatusBlocked || result.Reason != BlockGated {
		t.Fatalf("expected blocked/gated, got %v/%v", result.Status, result.Reason)
	}
	if result.GateURL != gate.link {
		t.Errorf("expected gate link %q, got %q", gate.link, result.GateURL)
	}
	if !locker.released {
		t.Error("lock must be released even on a blocked delivery")
	}
}

func TestDeliverBlockedByMembership(t *testing.T) {
	tg := &fakeTransport{memberStatus: "left"}
	svc := NewDeliveryService(&fakePool{}, &fakeLocker{}, &fakeGate{}, tg, DeliveryConfig{
		InviteTTL:       time.Hour,
		ForceSubChannel: -100111,
		ForceSubLink:    "https://t.me/channel",
	})

	result := svc.Deliver(context.Background(), testUser(), testMovie())

	if result.Status != StatusBlocked || result.Reason != BlockMembership {
		t.Fatalf("expected blocked/membership, got %v/%v", result.Status, result.Reason)
	}
	if result.GateURL != "https://t.me/channel" {
		t.Errorf("expected join link, got %q", result.GateURL)
	}
}

func TestDeliverBlockedWhenPoolEmpty(t *testing.T) {
	locker := &fakeLocker{}
	svc := newTestDelivery(&fakePool{leaseErr: ErrPoolEmpty}, locker, &fakeGate{}, &fakeTransport{})

	result := svc.Deliver(context.Background(), testUser(), testMovie())

	if result.Status != StatusBlocked || result.Reason != BlockPoolEmpty {
		t.Fatalf("expected blocked/pool_empty, got %v/%v", result.Status, result.Reason)
	}
	if !locker.released {
		t.Error("lock must be released after a pool-empty block")
	}
}

func TestDeliverBlockedByMaintenance(t *testing.T) {
	locker := &fakeLocker{}
	svc := newTestDelivery(&fakePool{}, locker, &fakeGate{}, &fakeTransport{})
	maint := NewMaintenanceState()
	maint.Set(true)
	svc.SetBookkeeping(nil, nil, nil, nil, maint, nil)

	result := svc.Deliver(context.Background(), testUser(), testMovie())

	if result.Status != StatusBlocked || result.Reason != BlockMaint {
		t.Fatalf("expected blocked/maintenance, got %v/%v", result.Status, result.Reason)
	}
	if locker.acquired {
		t.Error("lock should not be taken during maintenance")
	}
}

func TestDeliverFailureReleasesLockAndRoom(t *testing.T) {
	pool := &fakePool{room: &models.Room{ID: primitive.NewObjectID(), ChatID: -100500}}
	locker := &fakeLocker{}
	tg := &fakeTransport{groupErr: errors.New("boom"), mediaErr: errors.New("boom")}

	svc := newTestDelivery(pool, locker, &fakeGate{}, tg)
	movie := testMovie(
		models.MediaItem{FileID: "f1", Kind: models.MediaKindVideo},
		models.MediaItem{FileID: "f2", Kind: models.MediaKindVideo},
	)
	result := svc.Deliver(context.Background(), testUser(), movie)

	if result.Status != StatusFailed {
		t.Fatalf("expected failed, got %v", result.Status)
	}
	if !locker.released {
		t.Error("lock leaked after transfer failure")
	}
	if !pool.released {
		t.Error("room leaked after transfer failure")
	}
	if len(pool.deliveredIDs) != 0 {
		t.Errorf("expected no delivered IDs after total failure, got %v", pool.deliveredIDs)
	}
}

func TestDeliverReleasesSurviveCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool := &fakePool{room: &models.Room{ID: primitive.NewObjectID(), ChatID: -100500}}
	locker := &fakeLocker{}
	tg := &fakeTransport{cancelOnSend: cancel}

	svc := newTestDelivery(pool, locker, &fakeGate{}, tg)
	result := svc.Deliver(ctx, testUser(), testMovie())

	if result.Status != StatusFailed {
		t.Fatalf("expected failed, got %v", result.Status)
	}
	if !pool.released {
		t.Fatal("room leaked after context cancellation")
	}
	if pool.releaseCtxErr != nil {
		t.Errorf("room release ran on a dead context: %v", pool.releaseCtxErr)
	}
	if !locker.released {
		t.Fatal("lock leaked after context cancellation")
	}
	if locker.releaseCtxErr != nil {
		t.Errorf("lock release ran on a dead context: %v", locker.releaseCtxErr)
	}
}

func TestDeliverInviteFailureReleasesEverything(t *testing.T) {
	pool := &fakePool{room: &models.Room{ID: primitive.NewObjectID(), ChatID: -7}}
	locker := &fakeLocker{}
	tg := &fakeTransport{inviteErr: errors.New("rights revoked")}

	svc := newTestDelivery(pool, locker, &fakeGate{}, tg)
	result := svc.Deliver(context.Background(), testUser(), testMovie())

	if result.Status != StatusFailed {
		t.Fatalf("expected failed, got %v", result.Status)
	}
	if !locker.released || !pool.released {
		t.Error("lock or room leaked after invite failure")
	}
	// The media went through before the invite failed; the room release
	// must still carry those message IDs for the next sanitize pass.
	if len(pool.deliveredIDs) != 1 {
		t.Errorf("expected delivered IDs recorded despite invite failure, got %v", pool.deliveredIDs)
	}
}

func TestDeliverSanitizesPreviousOccupant(t *testing.T) {
	room := &models.Room{
		ID:               primitive.NewObjectID(),
		ChatID:           -100500,
		CurrentOccupant:  7,
		LastDeliveredIDs: []int64{11, 12, 13},
	}
	tg := &fakeTransport{}
	svc := newTestDelivery(&fakePool{room: room}, &fakeLocker{}, &fakeGate{}, tg)

	result := svc.Deliver(context.Background(), testUser(), testMovie())
	if result.Status != StatusDelivered {
		t.Fatalf("expected delivered, got %v", result.Status)
	}
	if len(tg.evicted) != 1 || tg.evicted[0] != 7 {
		t.Errorf("expected previous occupant 7 evicted, got %v", tg.evicted)
	}
	if len(tg.purged) != 1 || len(tg.purged[0]) != 3 {
		t.Errorf("expected 3 stale messages purged, got %v", tg.purged)
	}
}

func TestDeliverSkipsEvictionForSameUser(t *testing.T) {
	room := &models.Room{ID: primitive.NewObjectID(), ChatID: -1, CurrentOccupant: 42}
	tg := &fakeTransport{}
	svc := newTestDelivery(&fakePool{room: room}, &fakeLocker{}, &fakeGate{}, tg)

	svc.Deliver(context.Background(), testUser(), testMovie())

	if len(tg.evicted) != 0 {
		t.Errorf("same user re-entering must not be evicted, got %v", tg.evicted)
	}
}

func TestGroupAlbumsSeparatesKinds(t *testing.T) {
	items := []models.MediaItem{
		{FileID: "v1", Kind: models.MediaKindVideo},
		{FileID: "d1", Kind: models.MediaKindDocument},
		{FileID: "p1", Kind: models.MediaKindPhoto},
		{FileID: "a1", Kind: models.MediaKindAudio},
		{FileID: "g1", Kind: models.MediaKindAnimation},
	}

	albums := groupAlbums(items)
	if len(albums) != 3 {
		t.Fatalf("expected 3 albums (visual/documents/audio), got %d", len(albums))
	}
	if len(albums[0]) != 3 {
		t.Errorf("expected photo+video+animation grouped, got %d items", len(albums[0]))
	}
}

func TestTransferChunksLargeAlbums(t *testing.T) {
	items := make([]models.MediaItem, 23)
	for i := range items {
		items[i] = models.MediaItem{FileID: "f", Kind: models.MediaKindVideo}
	}
	tg := &fakeTransport{}
	svc := newTestDelivery(&fakePool{room: &models.Room{ChatID: -1}}, &fakeLocker{}, &fakeGate{}, tg)

	ids, err := svc.transferMedia(context.Background(), -1, testMovie(items...))
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 23 {
		t.Errorf("expected 23 delivered IDs, got %d", len(ids))
	}
	want := []int{10, 10, 3}
	if len(tg.albumSizes) != len(want) {
		t.Fatalf("expected %d album sends, got %v", len(want), tg.albumSizes)
	}
	for i, n := range want {
		if tg.albumSizes[i] != n {
			t.Errorf("album %d: expected %d items, got %d", i, n, tg.albumSizes[i])
		}
	}
}

func TestTransferFallsBackPerItem(t *testing.T) {
	items := []models.MediaItem{
		{FileID: "f1", Kind: models.MediaKindVideo},
		{FileID: "f2", Kind: models.MediaKindVideo},
	}
	tg := &fakeTransport{groupErr: errors.New("album rejected")}
	svc := newTestDelivery(&fakePool{room: &models.Room{ChatID: -1}}, &fakeLocker{}, &fakeGate{}, tg)

	ids, err := svc.transferMedia(context.Background(), -1, testMovie(items...))
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 {
		t.Errorf("expected 2 IDs via fallback, got %d", len(ids))
	}
	if tg.singleSends != 2 {
		t.Errorf("expected 2 individual sends, got %d", tg.singleSends)
	}
}

func TestTransferFailsWhenMovieEmpty(t *testing.T) {
	svc := newTestDelivery(&fakePool{}, &fakeLocker{}, &fakeGate{}, &fakeTransport{})
	movie := &models.Movie{Title: "empty"}

	if _, err := svc.transferMedia(context.Background(), -1, movie); err == nil {
		t.Error("expected error for movie without media")
	}
}
