package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"routebinder/internal/models"
)

const hereGeocodeURL = "https://geocode.search.hereapi.com/v1/geocode"

// hereGeocodeResponse represents the response from HERE Geocoding API
type hereGeocodeResponse struct {
	Items []struct {
		Title    string `json:"title"`
		Position struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"position"`
		Address struct {
			Label string `json:"label"`
		} `json:"address"`
		Scoring struct {
			QueryScore float64 `json:"queryScore"`
		} `json:"scoring"`
	} `json:"items"`
}

// HEREGeocoder resolves addresses with the HERE Geocoding API
type HEREGeocoder struct {
	apiKey  string
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewHEREGeocoder creates a HERE-backed provider
func NewHEREGeocoder(apiKey string, client *http.Client, logger *zap.Logger) *HEREGeocoder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HEREGeocoder{
		apiKey:  apiKey,
		baseURL: hereGeocodeURL,
		client:  client,
		logger:  logger,
	}
}

func (h *HEREGeocoder) Name() string { return "here" }

// Lookup geocodes a single free-text address
func (h *HEREGeocoder) Lookup(ctx context.Context, query string) (*models.GeocodeResult, error) {
	params := url.Values{}
	params.Add("q", query)
	params.Add("limit", "1")
	params.Add("apiKey", h.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response body: %v", ErrUpstream, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: here returned status %d: %s", ErrUpstream, resp.StatusCode, string(body))
	}

	var result hereGeocodeResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("%w: failed to parse geocoding response: %v", ErrUpstream, err)
	}
	if len(result.Items) == 0 {
		return nil, ErrNoResults
	}

	best := result.Items[0]
	h.logger.Debug("here geocode hit",
		zap.String("query", query),
		zap.Float64("lat", best.Position.Lat),
		zap.Float64("lon", best.Position.Lng),
		zap.Float64("score", best.Scoring.QueryScore))

	label := best.Address.Label
	if label == "" {
		label = best.Title
	}
	return &models.GeocodeResult{
		Lat:   best.Position.Lat,
		Lon:   best.Position.Lng,
		Label: label,
	}, nil
}
