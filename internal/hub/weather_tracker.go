package hub

import (
	"context"
	"fmt"
	"sync"

	"routebinder/internal/models"
)

type WeatherSource interface {
	Weather(ctx context.Context, lat, lon float64) (*models.WeatherResponse, error)
}

// WeatherTracker remembers the last point it fetched weather for and skips
// a prefetch when asked for the same point again
type WeatherTracker struct {
	source WeatherSource

	mu      sync.Mutex
	lastKey string
	last    *models.WeatherResponse
}

func NewWeatherTracker(source WeatherSource) *WeatherTracker {
	return &WeatherTracker{source: source}
}

// Prefetch returns the weather for a stop's location. fetched is false when
// the answer is the remembered one.
func (t *WeatherTracker) Prefetch(ctx context.Context, geo models.Geo) (resp *models.WeatherResponse, fetched bool, err error) {
	if !geo.HasLocation() {
		return nil, false, fmt.Errorf("stop has no location")
	}
	lat, lon := *geo.Lat, *geo.Lon
	key := PointKey(lat, lon)

	t.mu.Lock()
	if key == t.lastKey && t.last != nil {
		last := t.last
		t.mu.Unlock()
		return last, false, nil
	}
	t.lastKey = key
	t.mu.Unlock()

	resp, err = t.source.Weather(ctx, lat, lon)

	t.mu.Lock()
	defer t.mu.Unlock()
	if err != nil {
		if t.lastKey == key {
			t.lastKey = ""
		}
		return nil, true, err
	}
	// a newer point may have been requested while this one was in flight
	if t.lastKey == key {
		t.last = resp
	}
	return resp, true, nil
}

// Reset forgets the remembered point
func (t *WeatherTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastKey, t.last = "", nil
}

func PointKey(lat, lon float64) string {
	return fmt.Sprintf("%.5f,%.5f", lat, lon)
}
