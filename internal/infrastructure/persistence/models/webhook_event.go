package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/carebridge/backend/internal/domain/shared"
)

// WebhookEventModel is the GORM model for the webhook delivery audit trail.
// The (source, event_id) index is deliberately non-unique: partners may
// redeliver an event and every delivery gets its own row.
type WebhookEventModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key"`
	Source     string    `gorm:"type:varchar(32);not null;index:idx_webhook_events_source_event"`
	EventID    string    `gorm:"type:varchar(255);not null;index:idx_webhook_events_source_event"`
	EventType  string    `gorm:"type:varchar(128);not null"`
	Processed  bool      `gorm:"not null"`
	Duplicate  bool      `gorm:"not null"`
	Message    string    `gorm:"type:text"`
	ReceivedAt time.Time `gorm:"not null;index"`
}

// TableName returns the table name for WebhookEventModel
func (WebhookEventModel) TableName() string {
	return "webhook_events"
}

// FromAuditEntry populates the model from a domain audit entry.
func (m *WebhookEventModel) FromAuditEntry(entry shared.WebhookAuditEntry) {
	m.ID = uuid.New()
	m.Source = entry.Source
	m.EventID = entry.EventID
	m.EventType = entry.EventType
	m.Processed = entry.Processed
	m.Duplicate = entry.Duplicate
	m.Message = entry.Message
	m.ReceivedAt = time.Now().UTC()
}
