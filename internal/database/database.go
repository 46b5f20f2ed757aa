package database

import (
	"fmt"
	"log"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DriverFor picks the SQL driver for a database URL. postgres:// and
// postgresql:// go to lib/pq; "sqlite:<path>", "file:<path>" and bare paths
// go to the pure-Go sqlite driver.
func DriverFor(dbURL string) (driver, dsn string) {
	lower := strings.ToLower(dbURL)
	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return DriverPostgres, dbURL
	case strings.HasPrefix(lower, "sqlite:"):
		path := strings.TrimPrefix(dbURL[len("sqlite:"):], "//")
		return DriverSQLite, sqliteDSN(path)
	case strings.HasPrefix(lower, "file:"):
		return DriverSQLite, dbURL
	default:
		return DriverSQLite, sqliteDSN(dbURL)
	}
}

func sqliteDSN(path string) string {
	if path == ":memory:" {
		return "file::memory:?cache=shared"
	}
	return "file:" + path + "?_pragma=busy_timeout(5000)"
}

func Connect(dbURL string) (*sqlx.DB, error) {
	driver, dsn := DriverFor(dbURL)

	log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	log.Println("🔌 CATALOG DATABASE CONNECTION ATTEMPT")
	log.Printf("   📍 Driver: %s", driver)
	log.Printf("   📍 URL prefix: %s...", dbURL[:min(30, len(dbURL))])
	log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		log.Println("❌ DATABASE CONNECTION FAILED")
		log.Printf("   Error type: %T", err)
		log.Printf("   Error message: %v", err)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if driver == DriverSQLite {
		// sqlite allows one writer; a single connection keeps :memory: shared too
		db.SetMaxOpenConns(1)
	}

	log.Println("✅ DATABASE CONNECTION SUCCESSFUL")
	return db, nil
}

func Migrate(db *sqlx.DB) error {
	migrations := []string{
		// Trucks and their hashed keys. route_numbers is a comma separated list
		`CREATE TABLE IF NOT EXISTS trucks (
			id TEXT PRIMARY KEY,
			key_hash TEXT NOT NULL,
			key_hint TEXT NOT NULL DEFAULT '',
			route_name TEXT NOT NULL DEFAULT '',
			route_label TEXT NOT NULL DEFAULT '',
			route_numbers TEXT NOT NULL DEFAULT '',
			created_at BIGINT NOT NULL
		)`,

		// Seed stops, stored as the JSON document the device ingests
		`CREATE TABLE IF NOT EXISTS seed_stops (
			id TEXT PRIMARY KEY,
			route_number TEXT NOT NULL DEFAULT '',
			sort_order INTEGER NOT NULL DEFAULT 0,
			document TEXT NOT NULL,
			created_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_seed_stops_route_number ON seed_stops(route_number)`,

		// Dispatch inbox. An empty route_number reaches every truck
		`CREATE TABLE IF NOT EXISTS inbox_items (
			id TEXT PRIMARY KEY,
			route_number TEXT NOT NULL DEFAULT '',
			sender TEXT NOT NULL DEFAULT '',
			received_at TEXT NOT NULL DEFAULT '',
			title TEXT NOT NULL DEFAULT '',
			hint TEXT NOT NULL DEFAULT '',
			payload TEXT NOT NULL DEFAULT '{}',
			created_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_inbox_items_route_number ON inbox_items(route_number)`,
	}

	for _, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	log.Println("✓ Database migrations completed")
	return nil
}
