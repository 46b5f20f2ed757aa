package database

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"

	"routebinder/internal/models"
)

// TruckCredential pairs a truck with the bcrypt hash of its key
type TruckCredential struct {
	Truck   models.Truck
	KeyHash string
	KeyHint string
}

// CatalogCounts summarizes what a hub is serving
type CatalogCounts struct {
	Trucks     int `db:"trucks" json:"trucks"`
	Stops      int `db:"stops" json:"stops"`
	InboxItems int `db:"inbox_items" json:"inboxItems"`
}

// Catalog reads the seed catalog the hub serves to devices
type Catalog struct {
	db *sqlx.DB
}

func NewCatalog(db *sqlx.DB) *Catalog {
	return &Catalog{db: db}
}

func (c *Catalog) ListTruckCredentials(ctx context.Context) ([]TruckCredential, error) {
	var rows []truckRecord
	if err := c.db.SelectContext(ctx, &rows, `
		SELECT id, key_hash, key_hint, route_name, route_label, route_numbers, created_at
		FROM trucks
		ORDER BY id
	`); err != nil {
		return nil, fmt.Errorf("failed to list trucks: %w", err)
	}

	out := make([]TruckCredential, 0, len(rows))
	for _, r := range rows {
		out = append(out, TruckCredential{
			Truck:   r.truck(),
			KeyHash: r.KeyHash,
			KeyHint: r.KeyHint,
		})
	}
	return out, nil
}

func (c *Catalog) ListTrucks(ctx context.Context) ([]models.Truck, error) {
	creds, err := c.ListTruckCredentials(ctx)
	if err != nil {
		return nil, err
	}
	trucks := make([]models.Truck, 0, len(creds))
	for _, cr := range creds {
		trucks = append(trucks, cr.Truck)
	}
	return trucks, nil
}

// ListSeedStops returns the seed stops on the given routes in sort order.
// No routes means every stop.
func (c *Catalog) ListSeedStops(ctx context.Context, routes []string) ([]models.StopInput, error) {
	query := `SELECT id, route_number, sort_order, document, created_at FROM seed_stops`
	var args []any
	if len(routes) > 0 {
		var err error
		query, args, err = sqlx.In(query+` WHERE route_number IN (?)`, routes)
		if err != nil {
			return nil, fmt.Errorf("failed to build stop query: %w", err)
		}
	}
	query = c.db.Rebind(query + ` ORDER BY route_number, sort_order, id`)

	var rows []stopRecord
	if err := c.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list seed stops: %w", err)
	}

	stops := make([]models.StopInput, 0, len(rows))
	for _, r := range rows {
		var in models.StopInput
		if err := models.DecodeLenient([]byte(r.Document), &in); err != nil {
			return nil, fmt.Errorf("failed to decode seed stop %s: %w", r.ID, err)
		}
		stops = append(stops, in)
	}
	return stops, nil
}

// ListInboxItems returns the dispatch items addressed to the given routes
// plus those addressed to no route. No routes means every item.
func (c *Catalog) ListInboxItems(ctx context.Context, routes []string) ([]models.InboxItem, error) {
	query := `SELECT id, route_number, sender, received_at, title, hint, payload, created_at FROM inbox_items`
	var args []any
	if len(routes) > 0 {
		var err error
		query, args, err = sqlx.In(query+` WHERE route_number = '' OR route_number IN (?)`, routes)
		if err != nil {
			return nil, fmt.Errorf("failed to build inbox query: %w", err)
		}
	}
	query = c.db.Rebind(query + ` ORDER BY created_at, id`)

	var rows []inboxRecord
	if err := c.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list inbox items: %w", err)
	}

	items := make([]models.InboxItem, 0, len(rows))
	for _, r := range rows {
		if strings.TrimSpace(r.Payload) == "" {
			r.Payload = "{}"
		}
		items = append(items, models.InboxItem{
			ID:         r.ID,
			From:       r.Sender,
			ReceivedAt: r.ReceivedAt,
			Title:      r.Title,
			Hint:       r.Hint,
			Payload:    json.RawMessage(r.Payload),
		})
	}
	return items, nil
}

func (c *Catalog) Counts(ctx context.Context) (CatalogCounts, error) {
	var counts CatalogCounts
	err := c.db.GetContext(ctx, &counts, `
		SELECT
			(SELECT COUNT(*) FROM trucks) AS trucks,
			(SELECT COUNT(*) FROM seed_stops) AS stops,
			(SELECT COUNT(*) FROM inbox_items) AS inbox_items
	`)
	if err != nil {
		return CatalogCounts{}, fmt.Errorf("failed to count catalog: %w", err)
	}
	return counts, nil
}

// RouteList flattens an allowed-route set into a sorted slice
func RouteList(allowed map[string]bool) []string {
	out := make([]string, 0, len(allowed))
	for r, ok := range allowed {
		if ok {
			out = append(out, r)
		}
	}
	sort.Strings(out)
	return out
}

func (r truckRecord) truck() models.Truck {
	t := models.Truck{
		ID:         r.ID,
		RouteName:  r.RouteName,
		RouteLabel: r.RouteLabel,
	}
	for _, n := range strings.Split(r.RouteNumbers, ",") {
		if n = strings.TrimSpace(n); n != "" {
			t.RouteNumbers = append(t.RouteNumbers, n)
		}
	}
	return t
}
