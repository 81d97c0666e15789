// Command migrate applies the schema. The server only auto-migrates outside
// production, so production deploys run this first.
package main

import (
	"log"

	"inkwell/internal/config"
	"inkwell/internal/database"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Connect auto-migrates outside production.
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if cfg.IsProduction() {
		if err := database.AutoMigrate(db); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
	}
	log.Println("schema up to date")

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
