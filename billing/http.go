// Package billing implements the entry-fee payment gate against the
// venue's payment service over HTTP.
package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/clubtable/tournament-engine/services"
)

const defaultTimeout = 10 * time.Second

type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

type httpGate struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPGate(cfg Config) services.BillingGate {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &httpGate{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
	}
}

type chargeRequest struct {
	CustomerID int    `json:"customer_id"`
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency"`
}

type chargeResponse struct {
	Authorized bool   `json:"authorized"`
	Reference  string `json:"reference"`
}

func (g *httpGate) Charge(ctx context.Context, customerID int, amount int64, currency string) (*services.ChargeResult, error) {
	body, err := json.Marshal(chargeRequest{
		CustomerID: customerID,
		Amount:     amount,
		Currency:   currency,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal charge request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/charges", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build charge request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("charge request failed: %w", err)
	}
	defer resp.Body.Close()

	// 402 is a decline, not a transport failure: the caller turns it
	// into a clean registration rollback.
	if resp.StatusCode == http.StatusPaymentRequired {
		return &services.ChargeResult{Authorized: false}, nil
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("billing service returned status %d", resp.StatusCode)
	}

	var parsed chargeResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode charge response: %w", err)
	}

	return &services.ChargeResult{
		Authorized: parsed.Authorized,
		Reference:  parsed.Reference,
	}, nil
}
