package shared

import "context"

// WebhookAuditEntry records the outcome of one delivered partner event.
// Every delivery is recorded, redeliveries included, so reconciliation
// can see what each partner actually sent.
type WebhookAuditEntry struct {
	Source    string
	EventID   string
	EventType string
	Processed bool
	Duplicate bool
	Message   string
}

// WebhookAuditor persists webhook outcomes. Recording is fire-and-forget:
// implementations log their own failures and never block event handling.
type WebhookAuditor interface {
	RecordOutcome(ctx context.Context, entry WebhookAuditEntry)
}
