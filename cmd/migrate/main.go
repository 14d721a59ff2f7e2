package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/saturnino-fabrica-de-software/chamada/internal/database"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Flags
	action := flag.String("action", "up", "Migration action: up, down, version, force")
	steps := flag.Int("steps", 1, "Number of migrations to roll back (down) or version to force (force)")
	flag.Parse()

	_ = godotenv.Load()

	// Só precisa do DSN; o resto da config do serviço não é validado aqui
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	dbName, err := database.DatabaseName(dsn)
	if err != nil {
		return err
	}

	// golang-migrate usa database/sql
	db, err := database.OpenSQL(context.Background(), dsn)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	log.Printf("Connected to database %s", dbName)

	migrator, err := database.NewMigrator(db, dbName)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer func() { _ = migrator.Close() }()

	// Execute action
	switch *action {
	case "up":
		log.Println("Running migrations...")
		if err := migrator.Up(); err != nil {
			return fmt.Errorf("migration up failed: %w", err)
		}
		log.Println("✓ Migrations completed successfully")

	case "down":
		log.Printf("Rolling back %d migration(s)...\n", *steps)
		if err := migrator.Down(*steps); err != nil {
			return fmt.Errorf("migration down failed: %w", err)
		}
		log.Println("✓ Migration rolled back successfully")

	case "version":
		status, err := migrator.Status()
		if err != nil {
			return fmt.Errorf("failed to get version: %w", err)
		}
		if status.Dirty {
			log.Printf("Current version: %d (DIRTY - migration incomplete)\n", status.Version)
		} else {
			log.Printf("Current version: %d\n", status.Version)
		}

	case "force":
		log.Printf("Forcing migration to version %d...\n", *steps)
		if err := migrator.Force(*steps); err != nil {
			return fmt.Errorf("force migration failed: %w", err)
		}
		log.Println("✓ Migration version forced successfully")

	default:
		return fmt.Errorf("invalid action: %s (use: up, down, version, force)", *action)
	}

	return nil
}
