package database

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"routebinder/internal/models"
)

//go:embed seed.yaml
var defaultSeed []byte

// SeedFile is the catalog a hub starts from. Stops and inbox payloads are
// kept as free-form maps so they reach the device exactly as written.
type SeedFile struct {
	Trucks []SeedTruck      `yaml:"trucks"`
	Stops  []map[string]any `yaml:"stops"`
	Inbox  []SeedInboxItem  `yaml:"inbox"`
}

type SeedTruck struct {
	ID           string   `yaml:"id"`
	Key          string   `yaml:"key"`
	RouteName    string   `yaml:"routeName"`
	RouteLabel   string   `yaml:"routeLabel"`
	RouteNumbers []string `yaml:"routeNumbers"`
}

type SeedInboxItem struct {
	ID          string         `yaml:"id"`
	RouteNumber string         `yaml:"routeNumber"`
	From        string         `yaml:"from"`
	ReceivedAt  string         `yaml:"receivedAt"`
	Title       string         `yaml:"title"`
	Hint        string         `yaml:"hint"`
	Payload     map[string]any `yaml:"payload"`
}

// LoadSeedFile reads a seed catalog from path, or the built-in catalog when
// path is empty
func LoadSeedFile(path string) (*SeedFile, error) {
	raw := defaultSeed
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read seed file: %w", err)
		}
		raw = b
	}
	return ParseSeed(raw)
}

func ParseSeed(raw []byte) (*SeedFile, error) {
	var seed SeedFile
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	for i, t := range seed.Trucks {
		if strings.TrimSpace(t.ID) == "" {
			return nil, fmt.Errorf("seed truck %d has no id", i+1)
		}
		if models.NormalizeTruckKey(t.Key) == "" {
			return nil, fmt.Errorf("seed truck %s has no key", t.ID)
		}
	}
	return &seed, nil
}

type truckRecord struct {
	ID           string `db:"id"`
	KeyHash      string `db:"key_hash"`
	KeyHint      string `db:"key_hint"`
	RouteName    string `db:"route_name"`
	RouteLabel   string `db:"route_label"`
	RouteNumbers string `db:"route_numbers"`
	CreatedAt    int64  `db:"created_at"`
}

type stopRecord struct {
	ID          string `db:"id"`
	RouteNumber string `db:"route_number"`
	SortOrder   int    `db:"sort_order"`
	Document    string `db:"document"`
	CreatedAt   int64  `db:"created_at"`
}

type inboxRecord struct {
	ID          string `db:"id"`
	RouteNumber string `db:"route_number"`
	Sender      string `db:"sender"`
	ReceivedAt  string `db:"received_at"`
	Title       string `db:"title"`
	Hint        string `db:"hint"`
	Payload     string `db:"payload"`
	CreatedAt   int64  `db:"created_at"`
}

// Seed loads the catalog into an empty database. Truck keys are stored as
// bcrypt hashes of their normalized form; cost 0 means bcrypt.DefaultCost.
func Seed(db *sqlx.DB, seed *SeedFile, cost int) error {
	var count int
	if err := db.Get(&count, "SELECT COUNT(*) FROM trucks"); err != nil {
		return err
	}
	if count > 0 {
		log.Println("✓ Catalog already seeded, skipping...")
		return nil
	}
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}

	log.Printf("🌱 Seeding %d trucks, %d stops, %d inbox items...", len(seed.Trucks), len(seed.Stops), len(seed.Inbox))
	now := time.Now().Unix()

	tx, err := db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin seed: %w", err)
	}
	defer tx.Rollback()

	for _, t := range seed.Trucks {
		key := models.NormalizeTruckKey(t.Key)
		hash, err := bcrypt.GenerateFromPassword([]byte(key), cost)
		if err != nil {
			return fmt.Errorf("failed to hash key for truck %s: %w", t.ID, err)
		}
		rec := truckRecord{
			ID:           strings.TrimSpace(t.ID),
			KeyHash:      string(hash),
			KeyHint:      keyHint(key),
			RouteName:    t.RouteName,
			RouteLabel:   t.RouteLabel,
			RouteNumbers: strings.Join(t.RouteNumbers, ","),
			CreatedAt:    now,
		}
		if _, err := tx.NamedExec(`
			INSERT INTO trucks (id, key_hash, key_hint, route_name, route_label, route_numbers, created_at)
			VALUES (:id, :key_hash, :key_hint, :route_name, :route_label, :route_numbers, :created_at)
		`, rec); err != nil {
			return fmt.Errorf("failed to insert truck %s: %w", t.ID, err)
		}
		log.Printf("  ✓ Created truck: %s (%s)", rec.ID, rec.KeyHint)
	}

	for i, doc := range seed.Stops {
		rec, err := stopRecordFrom(doc, i, now)
		if err != nil {
			return err
		}
		if _, err := tx.NamedExec(`
			INSERT INTO seed_stops (id, route_number, sort_order, document, created_at)
			VALUES (:id, :route_number, :sort_order, :document, :created_at)
		`, rec); err != nil {
			return fmt.Errorf("failed to insert stop %s: %w", rec.ID, err)
		}
	}

	for _, item := range seed.Inbox {
		payload := []byte("{}")
		if item.Payload != nil {
			if payload, err = json.Marshal(item.Payload); err != nil {
				return fmt.Errorf("failed to encode inbox payload %s: %w", item.ID, err)
			}
		}
		rec := inboxRecord{
			ID:          item.ID,
			RouteNumber: strings.TrimSpace(item.RouteNumber),
			Sender:      item.From,
			ReceivedAt:  item.ReceivedAt,
			Title:       item.Title,
			Hint:        item.Hint,
			Payload:     string(payload),
			CreatedAt:   now,
		}
		if rec.ID == "" {
			rec.ID = "inbox_" + uuid.New().String()
		}
		if _, err := tx.NamedExec(`
			INSERT INTO inbox_items (id, route_number, sender, received_at, title, hint, payload, created_at)
			VALUES (:id, :route_number, :sender, :received_at, :title, :hint, :payload, :created_at)
		`, rec); err != nil {
			return fmt.Errorf("failed to insert inbox item %s: %w", rec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit seed: %w", err)
	}
	log.Println("✓ Successfully seeded catalog")
	return nil
}

// stopRecordFrom derives the indexed columns of a seed stop from its
// document. The route number comes from site.routeNumber or the flat field.
func stopRecordFrom(doc map[string]any, idx int, now int64) (stopRecord, error) {
	if doc == nil {
		doc = map[string]any{}
	}
	if _, ok := doc["id"]; !ok {
		doc["id"] = "stop-" + uuid.New().String()
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return stopRecord{}, fmt.Errorf("failed to encode stop %d: %w", idx+1, err)
	}
	var in models.StopInput
	if err := models.DecodeLenient(raw, &in); err != nil {
		return stopRecord{}, fmt.Errorf("failed to decode stop %d: %w", idx+1, err)
	}

	rec := stopRecord{
		ID:        strings.TrimSpace(in.ID.String()),
		SortOrder: (idx + 1) * 10,
		Document:  string(raw),
		CreatedAt: now,
	}
	if in.Order != nil {
		rec.SortOrder = *in.Order
	}
	rec.RouteNumber = strings.TrimSpace(in.RouteNumber.String())
	if in.Site != nil && in.Site.RouteNumber != "" {
		rec.RouteNumber = strings.TrimSpace(in.Site.RouteNumber.String())
	}
	return rec, nil
}

func keyHint(key string) string {
	if len(key) <= 4 {
		return key
	}
	return "…" + key[len(key)-4:]
}
