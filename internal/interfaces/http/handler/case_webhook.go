package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/carebridge/backend/internal/application/cases"
	"github.com/carebridge/backend/internal/domain/shared"
	"github.com/carebridge/backend/internal/infrastructure/telemetry"
)

// CaseWebhookHandler handles telemedicine-partner webhook endpoints
type CaseWebhookHandler struct {
	BaseHandler
	bridge  *cases.CaseBridgeService
	metrics *telemetry.OrderMetrics
	auditor shared.WebhookAuditor
}

// NewCaseWebhookHandler creates a new CaseWebhookHandler
func NewCaseWebhookHandler(bridge *cases.CaseBridgeService, metrics *telemetry.OrderMetrics, auditor shared.WebhookAuditor) *CaseWebhookHandler {
	return &CaseWebhookHandler{
		bridge:  bridge,
		metrics: metrics,
		auditor: auditor,
	}
}

// RegisterRoutes registers the webhook routes
func (h *CaseWebhookHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/webhooks/cases", h.Handle)
}

// Handle receives one telemedicine-partner event
func (h *CaseWebhookHandler) Handle(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookPayloadSize+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, WebhookResponse{Message: "Failed to read request body"})
		return
	}
	if len(payload) > maxWebhookPayloadSize {
		c.JSON(http.StatusRequestEntityTooLarge, WebhookResponse{Message: "Payload too large"})
		return
	}

	signature := c.GetHeader("X-Telemed-Signature")
	if signature == "" {
		c.JSON(http.StatusUnauthorized, WebhookResponse{Message: "Missing X-Telemed-Signature header"})
		return
	}

	result, err := h.bridge.ProcessWebhook(c.Request.Context(), payload, signature)
	if err != nil {
		if result == nil {
			c.JSON(http.StatusUnauthorized, WebhookResponse{Message: "Webhook signature verification failed"})
			return
		}
		// Not yet in the ledger; a non-2xx answer invites redelivery
		if h.auditor != nil {
			h.auditor.RecordOutcome(c.Request.Context(), shared.WebhookAuditEntry{
				Source:    "telemed",
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
		h.metrics.RecordWebhook(c.Request.Context(), "cases", result.EventType)
	}
	if h.auditor != nil {
		h.auditor.RecordOutcome(c.Request.Context(), shared.WebhookAuditEntry{
			Source:    "telemed",
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
