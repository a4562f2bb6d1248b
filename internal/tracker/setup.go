package tracker

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vigilia/guard-backend/internal/db"
	"github.com/vigilia/guard-backend/internal/zones"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

type Config struct {
	Shards       int
	QueueSize    int
	StateBackend string
	Location     *time.Location
}

func LoadFromEnv() Config {
	cfg := Config{
		Shards:       8,
		QueueSize:    64,
		StateBackend: BackendPostgres,
		Location:     time.UTC,
	}
	if v, err := strconv.Atoi(os.Getenv("TRACKER_SHARDS")); err == nil {
		cfg.Shards = v
	}
	if v, err := strconv.Atoi(os.Getenv("TRACKER_QUEUE_SIZE")); err == nil {
		cfg.QueueSize = v
	}
	if v := os.Getenv("TRACKER_STATE_BACKEND"); v != "" {
		cfg.StateBackend = v
	}
	return cfg
}

func (c Config) Validate() error {
	if c.Shards < 1 {
		return fmt.Errorf("TRACKER_SHARDS must be at least 1, got %d", c.Shards)
	}
	if c.QueueSize < 0 {
		return fmt.Errorf("TRACKER_QUEUE_SIZE must not be negative, got %d", c.QueueSize)
	}
	switch c.StateBackend {
	case BackendMemory, BackendPostgres:
	default:
		return fmt.Errorf("TRACKER_STATE_BACKEND must be %q or %q, got %q", BackendMemory, BackendPostgres, c.StateBackend)
	}
	return nil
}

// Service is the wired tracker the HTTP layer submits samples to. Samples of
// one subject are serialized and ordered within this process only, so a
// deployment with several instances must route each guard to the same one.
type Service struct {
	Dispatcher *Dispatcher
	States     StateStore
	Order      *OrderGuard
}

// Init wires the tracker over the given zone location and metrics registry.
func Init(loc *time.Location, reg prometheus.Registerer) *Service {
	cfg := LoadFromEnv()
	if loc != nil {
		cfg.Location = loc
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid tracker config: ", err)
	}

	metrics, err := NewMetrics(reg)
	if err != nil {
		log.Fatal("Failed to register tracker metrics: ", err)
	}

	var states StateStore
	switch cfg.StateBackend {
	case BackendMemory:
		states = NewMemoryStore(cfg.Shards)
	default:
		if err := db.DB.AutoMigrate(&StateRecord{}); err != nil {
			log.Fatal("Failed to auto-migrate containment state: ", err)
		}
		states = GormStore{DB: db.DB}
	}

	t := New(
		zones.NewGormRegistry(db.DB, cfg.Location),
		states,
		zones.GormAlertSink{DB: db.DB},
		WithMetrics(metrics),
	)

	order := NewOrderGuard()
	d := NewDispatcher(t, DispatcherConfig{
		Shards:    cfg.Shards,
		QueueSize: cfg.QueueSize,
		Order:     order,
		Metrics:   metrics,
	})

	log.Printf("Tracker initialized (%d shards, %s state)", cfg.Shards, cfg.StateBackend)
	return &Service{Dispatcher: d, States: states, Order: order}
}
