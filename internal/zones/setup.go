package zones

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/vigilia/guard-backend/internal/db"
)

type Config struct {
	Location *time.Location
}

// LoadFromEnv reads ZONE_TIMEZONE (IANA name, default UTC).
func LoadFromEnv() (Config, error) {
	name := os.Getenv("ZONE_TIMEZONE")
	if name == "" {
		return Config{Location: time.UTC}, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return Config{}, fmt.Errorf("ZONE_TIMEZONE %q: %w", name, err)
	}
	return Config{Location: loc}, nil
}

func Init() Config {
	cfg, err := LoadFromEnv()
	if err != nil {
		log.Fatal("Invalid zones config: ", err)
	}
	zoneLocation = cfg.Location

	if err := db.EnsureSchema(db.DB, db.GeofenceSchema); err != nil {
		log.Fatal("Failed to ensure schema geofence: ", err)
	}

	if err := db.DB.AutoMigrate(&Zone{}, &Assignment{}, &Alert{}); err != nil {
		log.Fatal("Failed to auto-migrate zone tables: ", err)
	}

	// Serves the per-guard window lookup on every location sample
	if err := db.DB.Exec(`
		CREATE INDEX IF NOT EXISTS idx_asignaciones_guardia_ventana
		ON geofence.asignaciones_zona (guardia_id, activo, fecha_inicio, fecha_fin);
	`).Error; err != nil {
		log.Fatal("Failed to create idx_asignaciones_guardia_ventana: ", err)
	}

	log.Printf("Zones module initialized (timezone %s)", cfg.Location)
	return cfg
}
