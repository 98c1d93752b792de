// Package pharmacy provides the partner integrations orders are
// dispatched through after clinical approval.
package pharmacy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/carebridge/backend/internal/domain/fulfillment"
)

// maxResponseSize limits the response body size to prevent memory exhaustion
const maxResponseSize = 1 * 1024 * 1024 // 1MB max response

// PharmaDirectConfig holds configuration for the PharmaDirect order API
type PharmaDirectConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Validate validates the PharmaDirect configuration
func (c *PharmaDirectConfig) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("pharmadirect: base URL is required")
	}
	if c.APIKey == "" {
		return fmt.Errorf("pharmadirect: API key is required")
	}
	return nil
}

// PharmaDirectIntegration submits orders through PharmaDirect's order API
type PharmaDirectIntegration struct {
	config     PharmaDirectConfig
	httpClient *http.Client
	logger     *zap.Logger
}

// NewPharmaDirectIntegration creates the PharmaDirect integration
func NewPharmaDirectIntegration(config PharmaDirectConfig, logger *zap.Logger) (*PharmaDirectIntegration, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &PharmaDirectIntegration{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     logger,
	}, nil
}

// Partner returns the partner this integration submits to
func (i *PharmaDirectIntegration) Partner() fulfillment.PharmacyPartner {
	return fulfillment.PartnerPharmaDirect
}

// submitOrderRequest is PharmaDirect's order submission payload
type submitOrderRequest struct {
	ExternalID string          `json:"external_id"`
	Patient    orderPatient    `json:"patient"`
	Medication orderMedication `json:"medication"`
}

type orderPatient struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	DateOfBirth string `json:"date_of_birth"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
}

type orderMedication struct {
	Name     string `json:"name"`
	DosageMg string `json:"dosage_mg"`
}

// submitOrderResponse is PharmaDirect's order submission response
type submitOrderResponse struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
}

// SubmitOrder submits the order to PharmaDirect
func (i *PharmaDirectIntegration) SubmitOrder(ctx context.Context, req fulfillment.DispatchRequest) (*fulfillment.DispatchResult, error) {
	i.logger.Debug("Submitting order to PharmaDirect",
		zap.String("order_number", req.Order.OrderNumber))

	payload := submitOrderRequest{
		ExternalID: req.Order.OrderNumber,
		Patient: orderPatient{
			FirstName:   req.Patient.FirstName,
			LastName:    req.Patient.LastName,
			DateOfBirth: req.Patient.DateOfBirth,
			Email:       req.Patient.Email,
			Phone:       req.Patient.Phone,
		},
		Medication: orderMedication{
			Name:     req.Treatment.Name,
			DosageMg: req.Treatment.DosageMg.String(),
		},
	}

	respBody, err := i.doRequest(ctx, "/v1/orders", payload)
	if err != nil {
		return nil, err
	}

	var resp submitOrderResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("pharmadirect: failed to parse response: %w", err)
	}
	if resp.OrderID == "" {
		return nil, fmt.Errorf("pharmadirect: submission rejected: %d - %s", resp.Code, resp.Message)
	}

	i.logger.Info("Submitted order to PharmaDirect",
		zap.String("order_number", req.Order.OrderNumber),
		zap.String("partner_order_id", resp.OrderID))

	return &fulfillment.DispatchResult{
		PartnerOrderID: resp.OrderID,
	}, nil
}

func (i *PharmaDirectIntegration) doRequest(ctx context.Context, path string, payload any) ([]byte, error) {
	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("pharmadirect: failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", i.config.BaseURL+path, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("pharmadirect: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+i.config.APIKey)

	resp, err := i.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pharmadirect: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("pharmadirect: failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("pharmadirect: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	return body, nil
}

var _ fulfillment.Integration = (*PharmaDirectIntegration)(nil)
