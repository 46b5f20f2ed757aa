package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"routebinder/internal/models"
	"routebinder/internal/services"
	"routebinder/pkg/utils"
)

type AddressGeocoder interface {
	Geocode(ctx context.Context, q string) (*models.GeocodeResult, error)
}

// Geocode handles GET /api/geocode?q=
func Geocode(geocoder AddressGeocoder, logger *zap.Logger) http.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		q := strings.TrimSpace(r.URL.Query().Get("q"))
		if q == "" {
			utils.RespondError(w, http.StatusBadRequest, "Missing q")
			return
		}

		res, err := geocoder.Geocode(r.Context(), q)
		if err != nil {
			status, msg := upstreamStatus(err, "Geocode")
			if errors.Is(err, services.ErrNoResults) {
				status, msg = http.StatusNotFound, "No results"
			}
			logger.Warn("geocode failed", zap.String("q", q), zap.Int("status", status), zap.Error(err))
			utils.RespondError(w, status, msg)
			return
		}

		utils.RespondJSON(w, http.StatusOK, models.GeocodeResponse{
			OK:        true,
			Lat:       res.Lat,
			Lon:       res.Lon,
			Label:     res.Label,
			QueryUsed: res.QueryUsed,
			Source:    res.Source,
		})
	}
}

// upstreamStatus maps a proxy failure to 504 on timeout and 502 otherwise
func upstreamStatus(err error, what string) (int, string) {
	if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
		return http.StatusGatewayTimeout, what + " upstream timed out"
	}
	return http.StatusBadGateway, what + " upstream failed"
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
