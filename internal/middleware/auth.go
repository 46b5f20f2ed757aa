package middleware

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"routebinder/internal/models"
	"routebinder/internal/services"
	"routebinder/pkg/utils"
)

type contextKey string

const TruckContextKey contextKey = "truck"

// Header names a device may present its truck key under
const (
	TruckKeyHeader    = "xtruckkey"
	AltTruckKeyHeader = "X-Truck-Key"
)

type TruckResolver interface {
	Resolve(ctx context.Context, key string) (models.Truck, error)
}

// TruckKey resolves the presented truck key and adds the truck to the
// request context. Responses behind it are never cacheable.
func TruckKey(resolver TruckResolver, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			utils.NoStore(w)

			key := r.Header.Get(TruckKeyHeader)
			if key == "" {
				key = r.Header.Get(AltTruckKeyHeader)
			}

			truck, err := resolver.Resolve(r.Context(), key)
			if err != nil {
				if errors.Is(err, services.ErrUnknownTruckKey) {
					logger.Info("truck key rejected", zap.String("path", r.URL.Path), zap.Int("keyLength", len(key)))
					utils.RespondError(w, http.StatusUnauthorized, "Key not accepted")
					return
				}
				logger.Error("truck key lookup failed", zap.Error(err))
				utils.RespondError(w, http.StatusInternalServerError, "Key lookup failed")
				return
			}

			ctx := context.WithValue(r.Context(), TruckContextKey, truck)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// TruckFromContext extracts the resolved truck from the request context
func TruckFromContext(r *http.Request) (models.Truck, bool) {
	truck, ok := r.Context().Value(TruckContextKey).(models.Truck)
	return truck, ok
}
