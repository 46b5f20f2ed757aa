package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"routebinder/internal/config"
	"routebinder/internal/database"
)

func main() {
	// Load environment variables
	cfg, envLoaded, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if !envLoaded {
		log.Println("No .env file found, using environment variables")
	}

	cost := 0
	if v := os.Getenv("SEED_BCRYPT_COST"); v != "" {
		if cost, err = strconv.Atoi(v); err != nil {
			log.Fatalf("Invalid SEED_BCRYPT_COST %q", v)
		}
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	seed, err := database.LoadSeedFile(cfg.SeedFile)
	if err != nil {
		log.Fatalf("Failed to read seed: %v", err)
	}
	if err := database.Seed(db, seed, cost); err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Println("Migration completed successfully!")

	catalog := database.NewCatalog(db)
	ctx := context.Background()
	counts, err := catalog.Counts(ctx)
	if err != nil {
		log.Fatalf("Failed to query summary: %v", err)
	}
	trucks, err := catalog.ListTrucks(ctx)
	if err != nil {
		log.Fatalf("Failed to list trucks: %v", err)
	}

	fmt.Println()
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.SetStyle(table.StyleLight)
	tw.SetTitle("CATALOG SUMMARY")
	tw.AppendRow(table.Row{"Trucks", counts.Trucks})
	tw.AppendRow(table.Row{"Seed stops", counts.Stops})
	tw.AppendRow(table.Row{"Inbox items", counts.InboxItems})
	tw.Render()

	tw = table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"Truck", "Route", "Label", "Routes served"})
	for _, t := range trucks {
		tw.AppendRow(table.Row{t.ID, t.RouteName, t.RouteLabel, strings.Join(t.RouteNumbers, ", ")})
	}
	tw.Render()
}
