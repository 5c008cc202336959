// Package services provides external service integrations and technical concerns
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/storekeep/pricing-core/config"
	"github.com/storekeep/pricing-core/models"
)

// PriceSignalProvider returns an external price suggestion for a unit with a
// confidence score. It stands in for any external ML pricing model; callers
// must treat failures and timeouts as a missing signal, never as a fatal error.
type PriceSignalProvider interface {
	Suggest(ctx context.Context, unit *models.Unit) (*PriceSignal, error)
}

// PriceSignal is one external price suggestion
type PriceSignal struct {
	SuggestedPrice float64 `json:"suggested_price"`
	Confidence     float64 `json:"confidence"`
	Model          string  `json:"model,omitempty"`
}

// PriceSignalProviderImpl implements PriceSignalProvider over HTTP
type PriceSignalProviderImpl struct {
	config *config.SignalProviderConfig
	client *http.Client
}

// priceSignalRequest is the request payload for the suggestion API
type priceSignalRequest struct {
	UnitUUID     string  `json:"unit_uuid"`
	Category     string  `json:"category"`
	AreaSqm      float64 `json:"area_sqm"`
	BasePrice    float64 `json:"base_price"`
	CurrentPrice float64 `json:"current_price"`
}

// NewPriceSignalProvider creates a new HTTP-backed signal provider
func NewPriceSignalProvider(cfg *config.SignalProviderConfig) PriceSignalProvider {
	return &PriceSignalProviderImpl{
		config: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Suggest requests a price suggestion for one unit
func (p *PriceSignalProviderImpl) Suggest(ctx context.Context, unit *models.Unit) (*PriceSignal, error) {
	payload := priceSignalRequest{
		UnitUUID:     unit.UUID.String(),
		Category:     unit.Category.String(),
		AreaSqm:      unit.AreaSqm,
		BasePrice:    unit.BasePrice,
		CurrentPrice: unit.CurrentPrice,
	}

	requestBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal signal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.APIURL, bytes.NewBuffer(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create signal request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("signal request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("signal provider returned status %d", resp.StatusCode)
	}

	var signal PriceSignal
	if err := json.NewDecoder(resp.Body).Decode(&signal); err != nil {
		return nil, fmt.Errorf("failed to decode signal response: %w", err)
	}

	if signal.SuggestedPrice <= 0 {
		return nil, fmt.Errorf("signal provider returned non-positive price %f", signal.SuggestedPrice)
	}

	return &signal, nil
}
