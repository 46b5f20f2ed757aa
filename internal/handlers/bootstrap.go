package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"routebinder/internal/database"
	"routebinder/internal/middleware"
	"routebinder/internal/models"
	"routebinder/pkg/utils"
)

// BootstrapCatalog is the part of the seed catalog a bootstrap reads
type BootstrapCatalog interface {
	ListSeedStops(ctx context.Context, routes []string) ([]models.StopInput, error)
	ListInboxItems(ctx context.Context, routes []string) ([]models.InboxItem, error)
}

// HubBootstrap handles GET /api/hub/bootstrap. It must sit behind
// middleware.TruckKey.
func HubBootstrap(catalog BootstrapCatalog, logger *zap.Logger) http.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		utils.NoStore(w)

		truck, ok := middleware.TruckFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Key not accepted")
			return
		}
		routes := database.RouteList(truck.AllowedRoutes())

		stops, err := catalog.ListSeedStops(r.Context(), routes)
		if err != nil {
			logger.Error("bootstrap stops failed", zap.String("truck", truck.ID), zap.Error(err))
			utils.RespondError(w, http.StatusInternalServerError, "Catalog unavailable")
			return
		}
		inbox, err := catalog.ListInboxItems(r.Context(), routes)
		if err != nil {
			logger.Error("bootstrap inbox failed", zap.String("truck", truck.ID), zap.Error(err))
			utils.RespondError(w, http.StatusInternalServerError, "Catalog unavailable")
			return
		}

		logger.Info("bootstrap served",
			zap.String("truck", truck.ID),
			zap.Int("stops", len(stops)),
			zap.Int("inbox", len(inbox)))

		utils.RespondJSON(w, http.StatusOK, models.BootstrapPayload{
			OK:         true,
			Truck:      truck.Input(),
			Stops:      stops,
			InboxItems: inbox,
		})
	}
}
