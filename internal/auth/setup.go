package auth

import (
	"log"

	"github.com/vigilia/guard-backend/internal/db"
)

// Init makes sure the provider tables exist so lookups work against a fresh
// database. The rows themselves are written by the provider.
func Init() {
	if err := db.EnsureSchema(db.DB, "app_auth"); err != nil {
		log.Fatal("Failed to ensure schema app_auth: ", err)
	}

	if err := db.DB.AutoMigrate(&Account{}, &Session{}); err != nil {
		log.Fatal("Failed to auto-migrate tables", err)
	}
}
