// Package momo is the client for the mobile-money payment provider.
//
// The provider is a black box reached over HTTP: Charge starts a collection
// request against a subscriber's wallet, QueryStatus polls its outcome.
// Both calls may be slow or fail transiently; callers own the retry policy.
// Neither call ever mutates booking state on our side.
package momo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Outcome is the provider's view of a charge
type Outcome string

const (
	OutcomePending   Outcome = "pending"
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
)

// Config holds provider connection settings. An empty BaseURL puts the
// gateway in sandbox mode: charges are accepted locally and complete on the
// first status query, which is what local development and CI run against.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Gateway talks to the mobile-money collections API
type Gateway struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// ChargeRequest asks the provider to collect from a subscriber's wallet
type ChargeRequest struct {
	Provider    string  `json:"provider"`
	PhoneNumber string  `json:"phone_number"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	ExternalRef string  `json:"external_ref"`
	Description string  `json:"description,omitempty"`
}

// ChargeResponse carries the provider's reference for the new charge
type ChargeResponse struct {
	ProviderRef string  `json:"provider_ref"`
	Status      Outcome `json:"status"`
	Message     string  `json:"message,omitempty"`
}

type statusResponse struct {
	ProviderRef string  `json:"provider_ref"`
	Status      Outcome `json:"status"`
	Message     string  `json:"message,omitempty"`
}

// NewGateway creates a provider client
func NewGateway(cfg Config) *Gateway {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Gateway{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
	}
}

// IsSandbox reports whether the gateway is running without a real provider
func (g *Gateway) IsSandbox() bool {
	return g.baseURL == ""
}

// Charge starts a mobile-money collection. The returned ProviderRef is the
// only handle for later status queries.
func (g *Gateway) Charge(ctx context.Context, req *ChargeRequest) (*ChargeResponse, error) {
	if g.IsSandbox() {
		return &ChargeResponse{
			ProviderRef: fmt.Sprintf("SANDBOX-%s", uuid.New().String()[:13]),
			Status:      OutcomePending,
		}, nil
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal charge request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/collections", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build charge request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to call provider: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read provider response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return nil, fmt.Errorf("provider returned status %d: %s", resp.StatusCode, string(raw))
	}

	var chargeResp ChargeResponse
	if err := json.Unmarshal(raw, &chargeResp); err != nil {
		return nil, fmt.Errorf("failed to parse provider response: %w", err)
	}
	if chargeResp.ProviderRef == "" {
		return nil, fmt.Errorf("provider accepted charge but returned no reference")
	}

	return &chargeResp, nil
}

// QueryStatus polls the outcome of an earlier charge. A pending outcome is
// not an error; the caller polls again within its own retry budget.
func (g *Gateway) QueryStatus(ctx context.Context, providerRef string) (Outcome, error) {
	if g.IsSandbox() {
		return OutcomeCompleted, nil
	}

	url := fmt.Sprintf("%s/v1/collections/%s", g.baseURL, providerRef)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build status request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to call provider: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read provider response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("provider returned status %d: %s", resp.StatusCode, string(raw))
	}

	var statusResp statusResponse
	if err := json.Unmarshal(raw, &statusResp); err != nil {
		return "", fmt.Errorf("failed to parse provider response: %w", err)
	}

	switch statusResp.Status {
	case OutcomePending, OutcomeCompleted, OutcomeFailed:
		return statusResp.Status, nil
	default:
		return "", fmt.Errorf("provider returned unknown status %q", statusResp.Status)
	}
}
