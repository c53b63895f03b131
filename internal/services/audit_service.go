package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"clipbot/internal/models"
)

// auditSender is the slice of the transport the audit channel needs
type auditSender interface {
	SendMessage(ctx context.Context, chatID int64, text string, markup *models.InlineKeyboardMarkup) (*models.TelegramMessage, error)
}

// AuditService posts operator-visible entries to the audit channel.
// Everything here is best-effort: an unreachable audit channel must never
// affect a delivery.
type AuditService struct {
	sender    auditSender
	channelID int64
}

// NewAuditService creates a new audit service. channelID 0 disables posting;
// entries still reach the process log.
func NewAuditService(sender auditSender, channelID int64) *AuditService {
	return &AuditService{sender: sender, channelID: channelID}
}

// Report posts one audit entry
func (s *AuditService) Report(ctx context.Context, text string) {
	log.Printf("📋 [AUDIT] %s", text)

	if s.channelID == 0 || s.sender == nil {
		return
	}

	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if _, err := s.sender.SendMessage(sendCtx, s.channelID, text, nil); err != nil {
		log.Printf("⚠️ [AUDIT] Failed to post audit entry: %v", err)
	}
}

// DeliveryFailure reports a failed delivery with its correlation ID
func (s *AuditService) DeliveryFailure(ctx context.Context, deliveryID string, userID int64, title string, err error) {
	s.Report(ctx, fmt.Sprintf("❌ Delivery %s failed\nUser: %d\nTitle: %s\nError: %v", deliveryID, userID, title, err))
}

// ConfigError reports an operator misconfiguration
func (s *AuditService) ConfigError(ctx context.Context, text string) {
	s.Report(ctx, "⚙️ "+text)
}
