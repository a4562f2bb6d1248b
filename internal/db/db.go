package db

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

func newLogger() logger.Interface {
	level := logger.Warn
	if os.Getenv("DB_LOG_SQL") == "true" {
		level = logger.Info
	}

	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             100 * time.Millisecond, // log queries > 100ms
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}

// Open connects to dsn, retrying while Postgres comes up.
func Open(dsn string, attempts int, delay time.Duration) (*gorm.DB, error) {
	var lastErr error
	for i := 1; i <= attempts; i++ {
		d, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: newLogger()})
		if err == nil {
			sqlDB, err := d.DB()
			if err != nil {
				return nil, fmt.Errorf("get sql.DB: %w", err)
			}
			sqlDB.SetMaxOpenConns(20)
			sqlDB.SetMaxIdleConns(20)
			sqlDB.SetConnMaxLifetime(30 * time.Minute)
			return d, nil
		}

		lastErr = err
		log.Printf("[db] connect attempt %d/%d failed: %v", i, attempts, err)
		time.Sleep(delay)
	}

	return nil, fmt.Errorf("db connect failed after %d attempts: %w", attempts, lastErr)
}

func Connect() {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL is empty")
	}

	d, err := Open(dsn, 5, 2*time.Second)
	if err != nil {
		log.Fatal("Failed to connect to database: ", err)
	}

	DB = d
	log.Println("Connected to database")
}
