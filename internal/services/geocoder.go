package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"routebinder/internal/models"
)

var (
	ErrEmptyQuery         = errors.New("missing q")
	ErrNoResults          = errors.New("no results")
	ErrUpstream           = errors.New("upstream failed")
	ErrInvalidCoordinates = errors.New("missing lat or lon")
)

const (
	GeocodeCacheSize = 512
	GeocodeCacheTTL  = 24 * time.Hour
)

// GeocodeProvider is one upstream geocoding API
type GeocodeProvider interface {
	Name() string
	Lookup(ctx context.Context, query string) (*models.GeocodeResult, error)
}

// Geocoder tries a fixed list of rewrites of the address against a provider
// and caches the first plausible hit
type Geocoder struct {
	provider GeocodeProvider
	cache    *expirable.LRU[string, models.GeocodeResult]
	logger   *zap.Logger
}

func NewGeocoder(provider GeocodeProvider, cache *expirable.LRU[string, models.GeocodeResult], logger *zap.Logger) *Geocoder {
	if cache == nil {
		cache = expirable.NewLRU[string, models.GeocodeResult](GeocodeCacheSize, nil, GeocodeCacheTTL)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Geocoder{provider: provider, cache: cache, logger: logger}
}

// Geocode resolves q. Candidates are tried in order; a hit within a degree
// of 0,0 is treated as a miss. Upstream failures stop the walk and are
// returned unless a later candidate succeeds.
func (g *Geocoder) Geocode(ctx context.Context, q string) (*models.GeocodeResult, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, ErrEmptyQuery
	}
	key := cacheKey(q)
	if hit, ok := g.cache.Get(key); ok {
		return &hit, nil
	}

	var lastErr error = ErrNoResults
	for _, candidate := range GeocodeCandidates(q) {
		res, err := g.provider.Lookup(ctx, candidate)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if !errors.Is(err, ErrNoResults) {
				lastErr = err
			}
			g.logger.Debug("geocode candidate failed", zap.String("candidate", candidate), zap.Error(err))
			continue
		}
		if models.NullIsland(res.Lat, res.Lon) {
			g.logger.Debug("geocode candidate near null island", zap.String("candidate", candidate))
			continue
		}
		out := *res
		if out.Label == "" {
			out.Label = q
		}
		out.QueryUsed = candidate
		out.Source = g.provider.Name()
		g.cache.Add(key, out)
		return &out, nil
	}
	return nil, lastErr
}

var (
	spaceRunRe      = regexp.MustCompile(`\s+`)
	houseNumberList = regexp.MustCompile(`^((?:\d+[A-Za-z]?\s*,\s*)+\d+[A-Za-z]?)\s+(.+)$`)
	commaNoSpaceRe  = regexp.MustCompile(`,(\S)`)
	spaceCommaRe    = regexp.MustCompile(`\s+,`)
)

// GeocodeCandidates lists the rewrites of q to try, in order, without
// duplicates: the original, whitespace collapsed, one per leading house
// number of a "27211, 27323 Wolf Rd" list, comma spacing fixed, and commas
// stripped.
func GeocodeCandidates(q string) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			return
		}
		seen[s] = true
		out = append(out, s)
	}

	add(q)
	collapsed := spaceRunRe.ReplaceAllString(strings.TrimSpace(q), " ")
	add(collapsed)

	if m := houseNumberList.FindStringSubmatch(collapsed); m != nil {
		for _, n := range strings.Split(m[1], ",") {
			add(strings.TrimSpace(n) + " " + m[2])
		}
	}

	spaced := spaceCommaRe.ReplaceAllString(collapsed, ",")
	spaced = commaNoSpaceRe.ReplaceAllString(spaced, ", $1")
	add(spaced)

	stripped := spaceRunRe.ReplaceAllString(strings.ReplaceAll(collapsed, ",", " "), " ")
	add(stripped)
	return out
}

func cacheKey(q string) string {
	return strings.ToLower(spaceRunRe.ReplaceAllString(strings.TrimSpace(q), " "))
}
