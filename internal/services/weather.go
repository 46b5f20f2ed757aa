package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"routebinder/internal/models"
)

const (
	DefaultOpenMeteoURL = "https://api.open-meteo.com/v1/forecast"

	WeatherCacheSize = 256
	WeatherCacheTTL  = 10 * time.Minute
)

var (
	currentFields = []string{
		"temperature_2m",
		"weather_code",
		"wind_speed_10m",
		"wind_direction_10m",
		"precipitation",
		"rain",
		"snowfall",
	}
	hourlyFields = []string{"precipitation", "snowfall"}
)

// WeatherService fetches current conditions from Open-Meteo
type WeatherService struct {
	baseURL string
	client  *http.Client
	cache   *expirable.LRU[string, models.WeatherData]
	logger  *zap.Logger
}

func NewWeatherService(baseURL string, client *http.Client, cache *expirable.LRU[string, models.WeatherData], logger *zap.Logger) *WeatherService {
	if baseURL == "" {
		baseURL = DefaultOpenMeteoURL
	}
	if cache == nil {
		cache = expirable.NewLRU[string, models.WeatherData](WeatherCacheSize, nil, WeatherCacheTTL)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WeatherService{baseURL: baseURL, client: client, cache: cache, logger: logger}
}

// Forecast returns today's forecast for a point. Points within a degree of
// 0,0 are rejected. Results are cached per point rounded to two decimals.
func (w *WeatherService) Forecast(ctx context.Context, lat, lon float64) (*models.WeatherData, error) {
	if !models.IsFinite(&lat) || !models.IsFinite(&lon) || models.NullIsland(lat, lon) {
		return nil, ErrInvalidCoordinates
	}
	key := fmt.Sprintf("%.2f,%.2f", lat, lon)
	if hit, ok := w.cache.Get(key); ok {
		return &hit, nil
	}

	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	params.Set("current", strings.Join(currentFields, ","))
	params.Set("hourly", strings.Join(hourlyFields, ","))
	params.Set("forecast_days", "1")
	params.Set("timezone", "auto")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: open-meteo returned status %d", ErrUpstream, resp.StatusCode)
	}

	var data models.WeatherData
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("%w: failed to decode forecast: %v", ErrUpstream, err)
	}
	w.cache.Add(key, data)
	w.logger.Debug("forecast fetched", zap.String("point", key), zap.Int("code", data.Current.WeatherCode))
	return &data, nil
}

var weatherCodeLabels = map[int]string{
	0:  "Clear",
	1:  "Mostly clear",
	2:  "Partly cloudy",
	3:  "Overcast",
	45: "Fog",
	48: "Rime fog",
	51: "Light drizzle",
	53: "Drizzle",
	55: "Heavy drizzle",
	61: "Light rain",
	63: "Rain",
	65: "Heavy rain",
	71: "Light snow",
	73: "Snow",
	75: "Heavy snow",
	77: "Snow grains",
	80: "Light showers",
	81: "Showers",
	82: "Heavy showers",
	85: "Light snow showers",
	86: "Snow showers",
	95: "Thunderstorm",
}

// WeatherCodeLabel names a WMO weather code, "Weather" when unknown
func WeatherCodeLabel(code int) string {
	if label, ok := weatherCodeLabels[code]; ok {
		return label
	}
	return "Weather"
}

const (
	LakeEffectHigh     = "High"
	LakeEffectPossible = "Possible"
	LakeEffectLow      = "Low"
)

// Insight reads current conditions for the operator. Lake effect is rated
// High when it is at or below 1°C with falling precipitation and a wind
// from 280° to 360°, the flow that carries Lake Erie bands onto the west
// side; Possible when only the cold and precipitation hold.
func Insight(c models.WeatherCurrent) models.WeatherInsight {
	cold := c.Temperature2m <= 1
	active := c.Snowfall > 0 || c.Precipitation > 0
	dir := c.WindDirection10m
	inBand := !math.IsNaN(dir) && dir >= 280 && dir <= 360

	out := models.WeatherInsight{Label: WeatherCodeLabel(c.WeatherCode)}
	switch {
	case cold && active && inBand:
		out.LakeEffect, out.LakeEffectNote = LakeEffectHigh, "Wind favors lake banding"
	case cold && active:
		out.LakeEffect, out.LakeEffectNote = LakeEffectPossible, "Cold with precip, watch wind shifts"
	default:
		out.LakeEffect, out.LakeEffectNote = LakeEffectLow, "No strong lake signal"
	}
	return out
}
