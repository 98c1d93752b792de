package handler

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	appfulfillment "github.com/carebridge/backend/internal/application/fulfillment"
	"github.com/carebridge/backend/internal/domain/fulfillment"
	"github.com/carebridge/backend/internal/domain/shared"
	"github.com/carebridge/backend/internal/infrastructure/telemetry"
)

// PharmacyWebhookHandler handles pharmacy-partner webhook endpoints. The
// partner travels in the path; each partner authenticates with its own
// credential scheme (raw-body signature or bearer secret).
type PharmacyWebhookHandler struct {
	BaseHandler
	webhookService *appfulfillment.PharmacyWebhookService
	metrics        *telemetry.OrderMetrics
	auditor        shared.WebhookAuditor
}

// NewPharmacyWebhookHandler creates a new PharmacyWebhookHandler
func NewPharmacyWebhookHandler(webhookService *appfulfillment.PharmacyWebhookService, metrics *telemetry.OrderMetrics, auditor shared.WebhookAuditor) *PharmacyWebhookHandler {
	return &PharmacyWebhookHandler{
		webhookService: webhookService,
		metrics:        metrics,
		auditor:        auditor,
	}
}

// RegisterRoutes registers the webhook routes
func (h *PharmacyWebhookHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/webhooks/pharmacy/:partner", h.Handle)
}

// Handle receives one pharmacy-partner event
func (h *PharmacyWebhookHandler) Handle(c *gin.Context) {
	partner := fulfillment.PharmacyPartner(c.Param("partner"))
	if !partner.IsValid() {
		h.NotFound(c, "Unknown pharmacy partner")
		return
	}

	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookPayloadSize+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, WebhookResponse{Message: "Failed to read request body"})
		return
	}
	if len(payload) > maxWebhookPayloadSize {
		c.JSON(http.StatusRequestEntityTooLarge, WebhookResponse{Message: "Payload too large"})
		return
	}

	credential := partnerCredential(c)
	if credential == "" {
		c.JSON(http.StatusUnauthorized, WebhookResponse{Message: "Missing webhook credential"})
		return
	}

	result, err := h.webhookService.ProcessWebhook(c.Request.Context(), partner, payload, credential)
	if err != nil {
		if result == nil {
			c.JSON(http.StatusUnauthorized, WebhookResponse{Message: "Webhook verification failed"})
			return
		}
		// Not yet in the ledger; a non-2xx answer invites redelivery
		if h.auditor != nil {
			h.auditor.RecordOutcome(c.Request.Context(), shared.WebhookAuditEntry{
				Source:    partner.String(),
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
		h.metrics.RecordWebhook(c.Request.Context(), partner.String(), result.EventType)
	}
	if h.auditor != nil {
		h.auditor.RecordOutcome(c.Request.Context(), shared.WebhookAuditEntry{
			Source:    partner.String(),
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

// partnerCredential extracts the partner's credential: a raw-body
// signature header when present, otherwise the Authorization bearer token
func partnerCredential(c *gin.Context) string {
	if signature := c.GetHeader("X-Pharmacy-Signature"); signature != "" {
		return signature
	}
	auth := c.GetHeader("Authorization")
	if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return token
	}
	return ""
}
