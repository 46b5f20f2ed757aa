package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the hub server's environment
type Config struct {
	Port              string
	DatabaseURL       string
	SeedFile          string
	NominatimURL      string
	OpenMeteoURL      string
	HEREAPIKey        string
	GoogleMapsAPIKey  string
	GeocoderUserAgent string
	LogLevel          string
	CORSOrigins       []string
	UpstreamTimeout   time.Duration
	KeyCacheSize      int
	KeyCacheTTL       time.Duration
}

// Load reads .env when present, then the process environment. It reports
// whether a .env file was found.
func Load() (*Config, bool, error) {
	envLoaded := godotenv.Load() == nil

	cfg := &Config{
		Port:              firstNonEmpty(os.Getenv("PORT"), "8080"),
		DatabaseURL:       firstNonEmpty(os.Getenv("DATABASE_URL"), "routebinder-hub.db"),
		SeedFile:          os.Getenv("SEED_FILE"),
		NominatimURL:      os.Getenv("NOMINATIM_URL"),
		OpenMeteoURL:      os.Getenv("OPEN_METEO_URL"),
		HEREAPIKey:        os.Getenv("HERE_API_KEY"),
		GoogleMapsAPIKey:  os.Getenv("GOOGLE_MAPS_API_KEY"),
		GeocoderUserAgent: os.Getenv("GEOCODER_USER_AGENT"),
		LogLevel:          firstNonEmpty(os.Getenv("LOG_LEVEL"), "info"),
		CORSOrigins:       splitList(firstNonEmpty(os.Getenv("CORS_ORIGINS"), "*")),
		UpstreamTimeout:   10 * time.Second,
		KeyCacheSize:      64,
		KeyCacheTTL:       time.Minute,
	}

	if v := os.Getenv("UPSTREAM_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, envLoaded, fmt.Errorf("invalid UPSTREAM_TIMEOUT %q", v)
		}
		cfg.UpstreamTimeout = d
	}
	if v := os.Getenv("KEY_CACHE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, envLoaded, fmt.Errorf("invalid KEY_CACHE_SIZE %q", v)
		}
		cfg.KeyCacheSize = n
	}
	if v := os.Getenv("KEY_CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, envLoaded, fmt.Errorf("invalid KEY_CACHE_TTL %q", v)
		}
		cfg.KeyCacheTTL = d
	}
	return cfg, envLoaded, nil
}

// GeocodeProvider names the upstream geocoder the keys select: Google, then
// HERE, then Nominatim
func (c *Config) GeocodeProvider() string {
	switch {
	case c.GoogleMapsAPIKey != "":
		return "google"
	case c.HEREAPIKey != "":
		return "here"
	default:
		return "nominatim"
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
