package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/vigilia/guard-backend/internal/db"
	"github.com/vigilia/guard-backend/internal/geo"
	"github.com/vigilia/guard-backend/internal/zones"
)

// check-point reports which zones contain a coordinate. With -guardia it only
// looks at that guard's assignments active at -at (default now).
func main() {
	_ = godotenv.Load(".env.local")

	lat := flag.Float64("lat", 0, "Latitude")
	lng := flag.Float64("lng", 0, "Longitude")
	guardia := flag.String("guardia", "", "Optional guard id; limits the check to its active assignments")
	at := flag.String("at", "", "Optional RFC 3339 instant for the assignment window (default now)")
	flag.Parse()

	p := geo.Point{Latitude: *lat, Longitude: *lng}
	if err := geo.ValidateCoordinate(p); err != nil {
		log.Fatalf("%v", err)
	}

	asOf := time.Now()
	if *at != "" {
		t, err := time.Parse(time.RFC3339, *at)
		if err != nil {
			log.Fatalf("invalid -at: %v", err)
		}
		asOf = t
	}

	cfg, err := zones.LoadFromEnv()
	if err != nil {
		log.Fatalf("%v", err)
	}

	db.Connect()

	var candidates []zones.Zone
	if *guardia != "" {
		active, err := zones.NewGormRegistry(db.DB, cfg.Location).ActiveAssignmentsFor(context.Background(), *guardia, asOf)
		if err != nil {
			log.Fatalf("Query error: %v", err)
		}
		for _, a := range active {
			candidates = append(candidates, a.Zone)
		}
		fmt.Printf("Guard %s has %d active assignments at %s\n\n", *guardia, len(active), asOf.Format(time.RFC3339))
	} else {
		if err := db.DB.Where("activo = ?", true).Order("nombre ASC").Find(&candidates).Error; err != nil {
			log.Fatalf("Query error: %v", err)
		}
		fmt.Printf("Checking %d active zones\n\n", len(candidates))
	}

	inside := 0
	for _, z := range candidates {
		res, err := zones.Verify(z, p)
		if err != nil {
			fmt.Printf("  ?  %-30s %s (skipped: %v)\n", z.Nombre, z.Tipo, err)
			continue
		}
		mark := "   "
		if res.Dentro {
			mark = " * "
			inside++
		}
		fmt.Printf(" %s %-30s %-9s %10.1f m\n", mark, z.Nombre, z.Tipo, res.DistanciaM)
	}

	fmt.Printf("\n(%.6f, %.6f) is inside %d of %d zones\n", p.Latitude, p.Longitude, inside, len(candidates))
	if inside == 0 {
		os.Exit(2)
	}
}
