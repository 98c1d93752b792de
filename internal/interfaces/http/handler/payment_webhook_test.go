package handler

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	apppayments "github.com/carebridge/backend/internal/application/payments"
)

func newPaymentWebhookRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)

	// Signature verification rejects before any repository access, so
	// the service can run without backing stores here.
	service := apppayments.NewPaymentWebhookService(apppayments.PaymentWebhookServiceConfig{
		WebhookSecret: "whsec_test",
	})
	handler := NewPaymentWebhookHandler(service, nil, nil)

	router := gin.New()
	handler.RegisterRoutes(router.Group("/api/v1"))
	return router
}

func TestPaymentWebhookHandler_MissingSignature(t *testing.T) {
	router := newPaymentWebhookRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payments", bytes.NewReader([]byte(`{"id":"evt_1"}`)))
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPaymentWebhookHandler_InvalidSignature(t *testing.T) {
	router := newPaymentWebhookRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payments", bytes.NewReader([]byte(`{"id":"evt_1"}`)))
	req.Header.Set("Stripe-Signature", "t=1,v1=deadbeef")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPaymentWebhookHandler_OversizedPayload(t *testing.T) {
	router := newPaymentWebhookRouter()

	body := strings.Repeat("a", maxWebhookPayloadSize+1)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payments", strings.NewReader(body))
	req.Header.Set("Stripe-Signature", "t=1,v1=deadbeef")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}
