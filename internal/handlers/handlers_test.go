package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"routebinder/internal/middleware"
	"routebinder/internal/models"
	"routebinder/internal/services"
	"routebinder/pkg/utils"
)

type fakeResolver struct {
	trucks map[string]models.Truck
	err    error
}

func (f fakeResolver) Resolve(_ context.Context, key string) (models.Truck, error) {
	if f.err != nil {
		return models.Truck{}, f.err
	}
	if t, ok := f.trucks[models.NormalizeTruckKey(key)]; ok {
		return t, nil
	}
	return models.Truck{}, services.ErrUnknownTruckKey
}

type fakeCatalog struct {
	stops  []models.StopInput
	inbox  []models.InboxItem
	err    error
	routes []string
}

func (f *fakeCatalog) ListSeedStops(_ context.Context, routes []string) ([]models.StopInput, error) {
	f.routes = routes
	return f.stops, f.err
}

func (f *fakeCatalog) ListInboxItems(_ context.Context, routes []string) ([]models.InboxItem, error) {
	return f.inbox, f.err
}

type fakeGeocoder struct {
	res *models.GeocodeResult
	err error
}

func (f fakeGeocoder) Geocode(context.Context, string) (*models.GeocodeResult, error) {
	return f.res, f.err
}

type fakeForecaster struct {
	data *models.WeatherData
	err  error
}

func (f fakeForecaster) Forecast(context.Context, float64, float64) (*models.WeatherData, error) {
	return f.data, f.err
}

func newTestRouter(catalog *fakeCatalog, resolver fakeResolver, geo fakeGeocoder, wx fakeForecaster) http.Handler {
	return NewRouter(RouterDeps{
		Catalog:    catalog,
		Keys:       resolver,
		Geocoder:   geo,
		Forecaster: wx,
	})
}

func serve(t *testing.T, h http.Handler, path string, headers map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var body map[string]any
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

var truck948 = models.Truck{ID: "948", RouteName: "Route 948", RouteLabel: "West Side Commercial", RouteNumbers: []string{"948"}}

func TestHubBootstrap(t *testing.T) {
	catalog := &fakeCatalog{
		stops: []models.StopInput{{ID: "stop-948-1"}},
		inbox: []models.InboxItem{{ID: "inbox_1", Payload: json.RawMessage(`{"name":"Lorain Road Plaza"}`)}},
	}
	resolver := fakeResolver{trucks: map[string]models.Truck{"RB9488F2K9D7QM3LX": truck948}}
	h := newTestRouter(catalog, resolver, fakeGeocoder{}, fakeForecaster{})

	t.Run("accepted key", func(t *testing.T) {
		rec, body := serve(t, h, "/api/hub/bootstrap", map[string]string{"xtruckkey": " rb948-8f2k9d7qm3lx "})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, utils.NoStoreCacheControl, rec.Header().Get("Cache-Control"))
		assert.Equal(t, true, body["ok"])
		truck := body["truck"].(map[string]any)
		assert.Equal(t, "948", truck["id"])
		assert.Equal(t, "West Side Commercial", truck["routeLabel"])
		assert.Len(t, body["stops"], 1)
		assert.Len(t, body["inboxItems"], 1)
		assert.Equal(t, []string{"948"}, catalog.routes)
	})

	t.Run("alternate header", func(t *testing.T) {
		rec, _ := serve(t, h, "/api/hub/bootstrap", map[string]string{middleware.AltTruckKeyHeader: "RB9488F2K9D7QM3LX"})
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("rejected key", func(t *testing.T) {
		rec, body := serve(t, h, "/api/hub/bootstrap", map[string]string{"xtruckkey": "RB000"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, utils.NoStoreCacheControl, rec.Header().Get("Cache-Control"))
		assert.Equal(t, false, body["ok"])
		assert.Equal(t, "Key not accepted", body["error"])
	})

	t.Run("missing key", func(t *testing.T) {
		rec, _ := serve(t, h, "/api/hub/bootstrap", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestHubBootstrapFailures(t *testing.T) {
	resolver := fakeResolver{trucks: map[string]models.Truck{"K1": truck948}}

	h := newTestRouter(&fakeCatalog{err: errors.New("db down")}, resolver, fakeGeocoder{}, fakeForecaster{})
	rec, body := serve(t, h, "/api/hub/bootstrap", map[string]string{"xtruckkey": "K1"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Catalog unavailable", body["error"])

	h = newTestRouter(&fakeCatalog{}, fakeResolver{err: errors.New("db down")}, fakeGeocoder{}, fakeForecaster{})
	rec, _ = serve(t, h, "/api/hub/bootstrap", map[string]string{"xtruckkey": "K1"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGeocodeHandler(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		geo    fakeGeocoder
		status int
		errMsg string
	}{
		{"missing q", "/api/geocode?q=%20", fakeGeocoder{}, http.StatusBadRequest, "Missing q"},
		{"no results", "/api/geocode?q=nowhere", fakeGeocoder{err: services.ErrNoResults}, http.StatusNotFound, "No results"},
		{"upstream", "/api/geocode?q=x", fakeGeocoder{err: fmt.Errorf("%w: 503", services.ErrUpstream)}, http.StatusBadGateway, "Geocode upstream failed"},
		{"timeout", "/api/geocode?q=x", fakeGeocoder{err: context.DeadlineExceeded}, http.StatusGatewayTimeout, "Geocode upstream timed out"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestRouter(&fakeCatalog{}, fakeResolver{}, tt.geo, fakeForecaster{})
			rec, body := serve(t, h, tt.path, nil)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, false, body["ok"])
			assert.Equal(t, tt.errMsg, body["error"])
		})
	}

	t.Run("hit", func(t *testing.T) {
		geo := fakeGeocoder{res: &models.GeocodeResult{Lat: 41.45, Lon: -81.91, Label: "Westlake", QueryUsed: "1700 Center Ridge Rd", Source: "nominatim"}}
		h := newTestRouter(&fakeCatalog{}, fakeResolver{}, geo, fakeForecaster{})
		rec, body := serve(t, h, "/api/geocode?q=1700+Center+Ridge+Rd", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, true, body["ok"])
		assert.Equal(t, 41.45, body["lat"])
		assert.Equal(t, "1700 Center Ridge Rd", body["queryUsed"])
	})
}

func TestWeatherHandler(t *testing.T) {
	data := &models.WeatherData{Current: models.WeatherCurrent{Temperature2m: -2, WeatherCode: 73, Snowfall: 0.6, WindDirection10m: 310}}

	t.Run("forecast", func(t *testing.T) {
		h := newTestRouter(&fakeCatalog{}, fakeResolver{}, fakeGeocoder{}, fakeForecaster{data: data})
		rec, body := serve(t, h, "/api/weather?lat=41.45&lon=-81.92", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		insight := body["insight"].(map[string]any)
		assert.Equal(t, "Snow", insight["label"])
		assert.Equal(t, services.LakeEffectHigh, insight["lakeEffect"])
		current := body["data"].(map[string]any)["current"].(map[string]any)
		assert.Equal(t, float64(73), current["weather_code"])
	})

	t.Run("bad coordinates", func(t *testing.T) {
		h := newTestRouter(&fakeCatalog{}, fakeResolver{}, fakeGeocoder{}, fakeForecaster{err: services.ErrInvalidCoordinates})
		rec, body := serve(t, h, "/api/weather?lat=abc&lon=1", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Missing lat or lon", body["error"])

		rec, _ = serve(t, h, "/api/weather?lat=0.1&lon=0.2", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("upstream", func(t *testing.T) {
		h := newTestRouter(&fakeCatalog{}, fakeResolver{}, fakeGeocoder{}, fakeForecaster{err: services.ErrUpstream})
		rec, body := serve(t, h, "/api/weather?lat=41&lon=-81", nil)
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Equal(t, "Weather upstream failed", body["error"])
	})
}

func TestHealth(t *testing.T) {
	h := newTestRouter(&fakeCatalog{}, fakeResolver{}, fakeGeocoder{}, fakeForecaster{})
	rec, _ := serve(t, h, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}
