package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"routebinder/internal/models"
)

const googleGeocodeURL = "https://maps.googleapis.com/maps/api/geocode/json"

// GoogleGeocoder resolves addresses with the Google Maps Geocoding API
type GoogleGeocoder struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// googleGeocodeResponse represents the Google Maps Geocoding API response
type googleGeocodeResponse struct {
	Results []struct {
		FormattedAddress string `json:"formatted_address"`
		Geometry         struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
	Status string `json:"status"`
}

// NewGoogleGeocoder creates a Google-backed provider
func NewGoogleGeocoder(apiKey string, client *http.Client) (*GoogleGeocoder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GOOGLE_MAPS_API_KEY is required")
	}
	return &GoogleGeocoder{
		apiKey:  apiKey,
		baseURL: googleGeocodeURL,
		client:  client,
	}, nil
}

func (g *GoogleGeocoder) Name() string { return "google" }

// Lookup converts an address string to coordinates
func (g *GoogleGeocoder) Lookup(ctx context.Context, query string) (*models.GeocodeResult, error) {
	params := url.Values{}
	params.Add("address", query)
	params.Add("key", g.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: google returned status code %d", ErrUpstream, resp.StatusCode)
	}

	var result googleGeocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v", ErrUpstream, err)
	}

	switch result.Status {
	case "OK":
	case "ZERO_RESULTS":
		return nil, ErrNoResults
	default:
		return nil, fmt.Errorf("%w: geocoding API returned status %s", ErrUpstream, result.Status)
	}
	if len(result.Results) == 0 {
		return nil, ErrNoResults
	}

	first := result.Results[0]
	return &models.GeocodeResult{
		Lat:   first.Geometry.Location.Lat,
		Lon:   first.Geometry.Location.Lng,
		Label: first.FormattedAddress,
	}, nil
}
