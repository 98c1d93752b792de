package telemed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/carebridge/backend/internal/application/cases"
)

// maxResponseSize limits the response body size to prevent memory exhaustion
const maxResponseSize = 1 * 1024 * 1024 // 1MB max response

// ClientConfig holds configuration for the telemedicine partner API
type ClientConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Validate validates the client configuration
func (c *ClientConfig) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("telemed: base URL is required")
	}
	if c.APIKey == "" {
		return fmt.Errorf("telemed: API key is required")
	}
	return nil
}

// Client implements the outbound telemedicine-partner API
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a telemedicine partner client
func NewClient(config ClientConfig, logger *zap.Logger) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     logger,
	}, nil
}

// createCaseRequest is the partner's case creation payload
type createCaseRequest struct {
	PatientID string            `json:"patient_id"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// createCaseResponse is the partner's case creation response
type createCaseResponse struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
}

// CreateCase opens a case with the telemedicine partner
func (c *Client) CreateCase(ctx context.Context, input cases.CreateCaseInput) (*cases.CreateCaseOutput, error) {
	c.logger.Debug("Creating telemedicine case",
		zap.String("patient_partner_id", input.PatientPartnerID))

	respBody, err := c.doRequest(ctx, "/v1/cases", createCaseRequest{
		PatientID: input.PatientPartnerID,
		Metadata:  input.Metadata,
	})
	if err != nil {
		return nil, err
	}

	var resp createCaseResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("telemed: failed to parse response: %w", err)
	}
	if resp.ID == "" {
		return nil, fmt.Errorf("telemed: case creation rejected: %d - %s", resp.Code, resp.Message)
	}

	c.logger.Info("Created telemedicine case",
		zap.String("case_id", resp.ID),
		zap.String("status", resp.Status))

	return &cases.CreateCaseOutput{
		CaseID: resp.ID,
		Status: resp.Status,
	}, nil
}

// doRequest performs an authenticated POST against the partner API
func (c *Client) doRequest(ctx context.Context, path string, payload any) ([]byte, error) {
	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("telemed: failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.config.BaseURL+path, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("telemed: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telemed: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("telemed: failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("telemed: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	return body, nil
}

var _ cases.CasePartnerClient = (*Client)(nil)
