package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"routebinder/internal/middleware"
)

// RouterDeps is everything the hub's routes need
type RouterDeps struct {
	Catalog     BootstrapCatalog
	Keys        middleware.TruckResolver
	Geocoder    AddressGeocoder
	Forecaster  Forecaster
	CORSOrigins []string
	AccessLog   bool
	Logger      *zap.Logger
}

func NewRouter(deps RouterDeps) http.Handler {
	origins := deps.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()

	// Middleware
	if deps.AccessLog {
		r.Use(chimiddleware.Logger)
	}
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", middleware.TruckKeyHeader, middleware.AltTruckKeyHeader},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", Health())

	r.Route("/api", func(r chi.Router) {
		// Proxies (no key required)
		r.Get("/geocode", Geocode(deps.Geocoder, deps.Logger))
		r.Get("/weather", Weather(deps.Forecaster, deps.Logger))

		// Truck-scoped endpoints
		r.Group(func(r chi.Router) {
			r.Use(middleware.TruckKey(deps.Keys, deps.Logger))
			r.Get("/hub/bootstrap", HubBootstrap(deps.Catalog, deps.Logger))
		})
	})

	return r
}
