package persistence

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/carebridge/backend/internal/domain/shared"
	"github.com/carebridge/backend/internal/infrastructure/persistence/models"
)

// GormWebhookAuditRepository implements shared.WebhookAuditor using GORM.
// Insert failures are logged and swallowed so a broken audit trail never
// turns a processed webhook into a partner-visible error.
type GormWebhookAuditRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewGormWebhookAuditRepository creates a new GormWebhookAuditRepository
func NewGormWebhookAuditRepository(db *gorm.DB, logger *zap.Logger) *GormWebhookAuditRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GormWebhookAuditRepository{db: db, logger: logger}
}

// RecordOutcome appends one audit row for a webhook delivery
func (r *GormWebhookAuditRepository) RecordOutcome(ctx context.Context, entry shared.WebhookAuditEntry) {
	var model models.WebhookEventModel
	model.FromAuditEntry(entry)

	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		r.logger.Error("failed to record webhook audit entry",
			zap.String("source", entry.Source),
			zap.String("event_id", entry.EventID),
			zap.Error(err))
	}
}

// Ensure GormWebhookAuditRepository implements WebhookAuditor
var _ shared.WebhookAuditor = (*GormWebhookAuditRepository)(nil)
