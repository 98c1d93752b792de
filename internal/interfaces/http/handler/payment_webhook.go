package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	apppayments "github.com/carebridge/backend/internal/application/payments"
	"github.com/carebridge/backend/internal/domain/shared"
	"github.com/carebridge/backend/internal/infrastructure/telemetry"
)

// Maximum webhook payload size (64KB - processor webhooks are small)
const maxWebhookPayloadSize = 65536

// WebhookResponse is the acknowledgement shape shared by all webhook
// endpoints
type WebhookResponse struct {
	Received  bool   `json:"received"`
	EventID   string `json:"event_id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Duplicate bool   `json:"duplicate,omitempty"`
	Message   string `json:"message,omitempty"`
}

// PaymentWebhookHandler handles payment-processor webhook endpoints.
// These endpoints are called by the processor and authenticate via the
// raw-body signature, not a session.
type PaymentWebhookHandler struct {
	BaseHandler
	webhookService *apppayments.PaymentWebhookService
	metrics        *telemetry.OrderMetrics
	auditor        shared.WebhookAuditor
}

// NewPaymentWebhookHandler creates a new PaymentWebhookHandler
func NewPaymentWebhookHandler(webhookService *apppayments.PaymentWebhookService, metrics *telemetry.OrderMetrics, auditor shared.WebhookAuditor) *PaymentWebhookHandler {
	return &PaymentWebhookHandler{
		webhookService: webhookService,
		metrics:        metrics,
		auditor:        auditor,
	}
}

// RegisterRoutes registers the webhook routes
func (h *PaymentWebhookHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/webhooks/payments", h.Handle)
}

// Handle receives one processor event. The raw body is read before any
// parsing because signature verification covers the exact bytes sent.
func (h *PaymentWebhookHandler) Handle(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookPayloadSize+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, WebhookResponse{Message: "Failed to read request body"})
		return
	}
	if len(payload) > maxWebhookPayloadSize {
		c.JSON(http.StatusRequestEntityTooLarge, WebhookResponse{Message: "Payload too large"})
		return
	}

	signature := c.GetHeader("Stripe-Signature")
	if signature == "" {
		c.JSON(http.StatusUnauthorized, WebhookResponse{Message: "Missing Stripe-Signature header"})
		return
	}

	result, err := h.webhookService.ProcessWebhook(c.Request.Context(), payload, signature)
	if err != nil {
		if result == nil {
			c.JSON(http.StatusUnauthorized, WebhookResponse{Message: "Webhook signature verification failed"})
			return
		}
		// The event id was not recorded in the ledger, so a non-2xx
		// answer makes the processor redeliver and the retry reprocess
		if h.auditor != nil {
			h.auditor.RecordOutcome(c.Request.Context(), shared.WebhookAuditEntry{
				Source:    "stripe",
				EventID:   result.EventID,
				EventType: result.EventType,
				Message:   err.Error(),
			})
		}
		c.JSON(http.StatusInternalServerError, WebhookResponse{
			EventID:   result.EventID,
			EventType: result.EventType,
			Message:   "Webhook processing failed",
		})
		return
	}

	if h.metrics != nil {
		h.metrics.RecordWebhook(c.Request.Context(), "payments", result.EventType)
	}
	if h.auditor != nil {
		h.auditor.RecordOutcome(c.Request.Context(), shared.WebhookAuditEntry{
			Source:    "stripe",
			EventID:   result.EventID,
			EventType: result.EventType,
			Processed: true,
			Duplicate: result.Duplicate,
			Message:   result.Message,
		})
	}

	c.JSON(http.StatusOK, WebhookResponse{
		Received:  true,
		EventID:   result.EventID,
		EventType: result.EventType,
		Duplicate: result.Duplicate,
		Message:   result.Message,
	})
}
