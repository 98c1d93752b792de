package handler

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/carebridge/backend/internal/application/cases"
	"github.com/carebridge/backend/internal/application/orders"
	"github.com/carebridge/backend/internal/infrastructure/cache"
	"github.com/carebridge/backend/internal/infrastructure/webhook"
)

func newCaseWebhookRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)

	service := cases.NewCaseBridgeService(cases.CaseBridgeServiceConfig{
		Verifier: rejectingVerifier{},
	})
	handler := NewCaseWebhookHandler(service, nil, nil)

	router := gin.New()
	handler.RegisterRoutes(router.Group("/api/v1"))
	return router
}

func TestCaseWebhookHandler_MissingSignature(t *testing.T) {
	router := newCaseWebhookRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/cases", bytes.NewReader([]byte(`{"event_id":"cs_1"}`)))
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCaseWebhookHandler_FailedVerification(t *testing.T) {
	router := newCaseWebhookRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/cases", bytes.NewReader([]byte(`{"event_id":"cs_1"}`)))
	req.Header.Set("X-Telemed-Signature", "bad-sig")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func signBody(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestCaseWebhookHandler_FailureInvitesRedelivery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	const secret = "telemed-secret"

	order := paidOrder(t)
	orderRepo := new(MockOrderRepository)
	ledger := cache.NewBoundedEventLedger(16)
	transitions := orders.NewTransitionService(orderRepo, nil, nil, nil)

	service := cases.NewCaseBridgeService(cases.CaseBridgeServiceConfig{
		Verifier:    webhook.NewHMACVerifier(secret),
		Ledger:      ledger,
		Orders:      orderRepo,
		Transitions: transitions,
	})
	h := NewCaseWebhookHandler(service, nil, nil)
	router := gin.New()
	h.RegisterRoutes(router.Group("/api/v1"))

	payload := []byte(fmt.Sprintf(
		`{"id":"cs_evt_7","type":"message_created","case_id":"case-7","message":"hello","metadata":{"order_id":%q}}`,
		order.ID))
	signature := signBody(secret, payload)

	// First delivery hits a transient repository failure
	orderRepo.On("FindByID", mock.Anything, order.ID).
		Return(nil, errors.New("connection refused")).Once()
	orderRepo.On("FindByID", mock.Anything, order.ID).Return(order, nil)
	orderRepo.On("SaveWithLock", mock.Anything, order).Return(nil)

	deliver := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/cases", bytes.NewReader(payload))
		req.Header.Set("X-Telemed-Signature", signature)
		router.ServeHTTP(w, req)
		return w
	}

	w := deliver()
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	seen, err := ledger.Seen(context.Background(), "cs_evt_7")
	assert.NoError(t, err)
	assert.False(t, seen, "failed delivery must not enter the ledger")

	// Redelivery reprocesses the same event id
	w = deliver()
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"received":true`)
	seen, err = ledger.Seen(context.Background(), "cs_evt_7")
	assert.NoError(t, err)
	assert.True(t, seen)

	// A third delivery is a recognized duplicate
	w = deliver()
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"duplicate":true`)
	orderRepo.AssertExpectations(t)
}
