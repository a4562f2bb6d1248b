package guards

import (
	"log"
	"os"
	"strconv"

	"github.com/vigilia/guard-backend/internal/db"
	"github.com/vigilia/guard-backend/internal/tracker"
)

type Config struct {
	RatePerMinute int
	RateBurst     int
}

func LoadFromEnv() Config {
	cfg := Config{RatePerMinute: 12, RateBurst: 3}
	if v, err := strconv.Atoi(os.Getenv("UBICACION_RATE_PER_MIN")); err == nil && v > 0 {
		cfg.RatePerMinute = v
	}
	if v, err := strconv.Atoi(os.Getenv("UBICACION_RATE_BURST")); err == nil && v > 0 {
		cfg.RateBurst = v
	}
	return cfg
}

func Init() {
	if err := db.EnsureSchema(db.DB, db.GeofenceSchema); err != nil {
		log.Fatal("Failed to ensure schema geofence: ", err)
	}

	if err := db.DB.AutoMigrate(&Guard{}); err != nil {
		log.Fatal("Failed to auto-migrate guardias: ", err)
	}
}

// NewHandler wires the handler over the database and a running tracker.
func NewHandler(svc *tracker.Service) Handler {
	h := Handler{
		Guards:  GormGuardStore{DB: db.DB},
		Tracker: svc.Dispatcher,
	}
	if lister, ok := svc.States.(tracker.SubjectLister); ok {
		h.States = lister
	}
	return h
}
