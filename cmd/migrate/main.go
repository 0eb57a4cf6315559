// ABOUTME: Migration utility that copies a local SQLite database into Postgres
// ABOUTME: Safe to re-run; supports dry-run and a backup of the source file

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/harperreed/outreach/config"
	"github.com/harperreed/outreach/db"
	"github.com/harperreed/outreach/logging"
)

func main() {
	dbPath := flag.String("db", "", "Path to the SQLite database (default: OUTREACH_DB_PATH or XDG data dir)")
	pgURL := flag.String("postgres", "", "Destination Postgres URL (default: DATABASE_URL)")
	dryRun := flag.Bool("dry-run", false, "Show what would be copied without writing")
	backup := flag.Bool("backup", true, "Create a backup of the SQLite file first")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	if *dbPath == "" {
		*dbPath = cfg.DBPath
	}
	if *pgURL == "" {
		*pgURL = cfg.DatabaseURL
	}
	if *pgURL == "" && !*dryRun {
		log.Fatal("Error: -postgres flag or DATABASE_URL is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	if err := migrate(ctx, *dbPath, *pgURL, *dryRun, *backup, *debug); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	log.Println("Migration completed successfully")
}

func migrate(ctx context.Context, dbPath, pgURL string, dryRun, createBackup, debug bool) error {
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return fmt.Errorf("database file does not exist: %s", dbPath)
	}

	logger, err := logging.NewDevelopmentLogger(debug)
	if err != nil {
		return err
	}
	defer func() { _ = logging.Sync(logger) }()

	if createBackup && !dryRun {
		backupPath := fmt.Sprintf("%s.backup.%s", dbPath, time.Now().Format("20060102-150405"))
		log.Printf("Creating backup: %s", backupPath)

		input, err := os.ReadFile(dbPath)
		if err != nil {
			return fmt.Errorf("failed to read database: %w", err)
		}

		if err := os.WriteFile(backupPath, input, 0600); err != nil {
			return fmt.Errorf("failed to create backup: %w", err)
		}
		log.Printf("Backup created successfully")
	}

	src, err := db.Open(db.Options{Driver: string(db.DialectSQLite), Path: dbPath}, logger)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer func() { _ = src.Close() }()

	if dryRun {
		counts, err := src.CountRows(ctx)
		if err != nil {
			return err
		}
		log.Printf("[DRY RUN] Would copy into Postgres:")
		for _, c := range counts {
			log.Printf("[DRY RUN] - %s: %d rows", c.Table, c.Read)
		}
		return nil
	}

	dst, err := db.Open(db.Options{Driver: string(db.DialectPostgres), URL: pgURL}, logger)
	if err != nil {
		return fmt.Errorf("failed to open destination: %w", err)
	}
	defer func() { _ = dst.Close() }()

	results, err := src.CopyTo(ctx, dst)
	if err != nil {
		return err
	}
	for _, r := range results {
		log.Printf("%s: %d read, %d copied, %d already present", r.Table, r.Read, r.Inserted, r.Read-r.Inserted)
	}
	return nil
}
