package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"routebinder/internal/models"
	"routebinder/internal/services"
	"routebinder/pkg/utils"
)

type Forecaster interface {
	Forecast(ctx context.Context, lat, lon float64) (*models.WeatherData, error)
}

// Weather handles GET /api/weather?lat=&lon=
func Weather(forecaster Forecaster, logger *zap.Logger) http.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		lat, errLat := strconv.ParseFloat(strings.TrimSpace(r.URL.Query().Get("lat")), 64)
		lon, errLon := strconv.ParseFloat(strings.TrimSpace(r.URL.Query().Get("lon")), 64)
		if errLat != nil || errLon != nil {
			utils.RespondError(w, http.StatusBadRequest, "Missing lat or lon")
			return
		}

		data, err := forecaster.Forecast(r.Context(), lat, lon)
		if err != nil {
			if errors.Is(err, services.ErrInvalidCoordinates) {
				utils.RespondError(w, http.StatusBadRequest, "Missing lat or lon")
				return
			}
			status, msg := upstreamStatus(err, "Weather")
			logger.Warn("forecast failed", zap.Float64("lat", lat), zap.Float64("lon", lon), zap.Error(err))
			utils.RespondError(w, status, msg)
			return
		}

		insight := services.Insight(data.Current)
		utils.RespondJSON(w, http.StatusOK, models.WeatherResponse{
			OK:      true,
			Data:    data,
			Insight: &insight,
		})
	}
}

// Health handles GET /health
func Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}
}
