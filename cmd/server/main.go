package main

import (
	"log"
	"net/http"

	"go.uber.org/zap"

	"routebinder/internal/config"
	"routebinder/internal/database"
	"routebinder/internal/handlers"
	"routebinder/internal/logging"
	"routebinder/internal/services"
)

func main() {
	log.Println("═══════════════════════════════════════════════════════════════════")
	log.Println("🚀 ROUTE BINDER HUB STARTING")
	log.Println("═══════════════════════════════════════════════════════════════════")

	// Load .env and the process environment
	log.Println("📂 Loading environment variables...")
	cfg, envLoaded, err := config.Load()
	if err != nil {
		log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		log.Println("❌ FATAL ERROR: Invalid configuration")
		log.Printf("   Error: %v", err)
		log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		log.Fatal(err)
	}
	if envLoaded {
		log.Println("✅ .env file loaded successfully")
	} else {
		log.Println("⚠️  Warning: .env file not found, using environment variables from system")
	}

	logger, err := logging.New(cfg.LogLevel, false)
	if err != nil {
		log.Fatalf("❌ FATAL ERROR: Logger setup failed: %v", err)
	}
	defer logger.Sync()

	// Connect to database
	log.Println("🔌 Connecting to database...")
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		log.Println("❌ FATAL ERROR: Database connection failed")
		log.Printf("   Error: %v", err)
		log.Println("   This is usually caused by:")
		log.Println("   1. Wrong DATABASE_URL format")
		log.Println("   2. PostgreSQL service is down or the SQLite path is not writable")
		log.Println("   3. Invalid credentials")
		log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		log.Fatal(err)
	}
	defer db.Close()
	log.Println("✅ Database connection established")

	// Run migrations
	log.Println("🔄 Running database migrations...")
	if err := database.Migrate(db); err != nil {
		log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		log.Println("❌ FATAL ERROR: Database migrations failed")
		log.Printf("   Error: %v", err)
		log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		log.Fatal(err)
	}
	log.Println("✅ Database migrations completed")

	// Seed trucks, stops and inbox
	log.Println("🌱 Seeding database with route catalog...")
	seed, err := database.LoadSeedFile(cfg.SeedFile)
	if err == nil {
		err = database.Seed(db, seed, 0)
	}
	if err != nil {
		log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		log.Println("❌ FATAL ERROR: Catalog seeding failed")
		log.Printf("   Error: %v", err)
		log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		log.Fatal(err)
	}
	log.Println("✅ Catalog seeded successfully")

	catalog := database.NewCatalog(db)
	keys := services.NewTruckKeyResolver(catalog, cfg.KeyCacheSize, cfg.KeyCacheTTL, logger)

	// Upstream clients share one timeout
	client := &http.Client{Timeout: cfg.UpstreamTimeout}

	var provider services.GeocodeProvider
	switch cfg.GeocodeProvider() {
	case "google":
		google, err := services.NewGoogleGeocoder(cfg.GoogleMapsAPIKey, client)
		if err != nil {
			log.Fatalf("❌ FATAL ERROR: Google geocoder setup failed: %v", err)
		}
		provider = google
	case "here":
		provider = services.NewHEREGeocoder(cfg.HEREAPIKey, client, logger)
	default:
		provider = services.NewNominatimGeocoder(cfg.NominatimURL, cfg.GeocoderUserAgent, client)
	}
	log.Printf("✅ Geocoding through %s", provider.Name())

	geocoder := services.NewGeocoder(provider, nil, logger)
	weather := services.NewWeatherService(cfg.OpenMeteoURL, client, nil, logger)

	r := handlers.NewRouter(handlers.RouterDeps{
		Catalog:     catalog,
		Keys:        keys,
		Geocoder:    geocoder,
		Forecaster:  weather,
		CORSOrigins: cfg.CORSOrigins,
		AccessLog:   true,
		Logger:      logger,
	})

	log.Println("═══════════════════════════════════════════════════════════════════")
	log.Println("✅ ALL INITIALIZATION COMPLETE")
	log.Printf("🚀 Server starting on http://localhost:%s", cfg.Port)
	log.Println("🔌 Ready to accept requests!")
	log.Println("═══════════════════════════════════════════════════════════════════")
	logger.Info("hub listening", zap.String("port", cfg.Port), zap.String("geocoder", provider.Name()))

	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		log.Println("❌ FATAL ERROR: Server failed to start")
		log.Printf("   Error: %v", err)
		log.Printf("   Port: %s", cfg.Port)
		log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		log.Fatal(err)
	}
}
