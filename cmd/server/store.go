package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/gpis-formation/satisform/internal/api"
	dbstore "github.com/gpis-formation/satisform/internal/db"
)

// openStore picks the persistence backend. With SATISFORM_SQLITE_PATH set the
// collector survives restarts; without it everything lives in memory, which
// is fine for demos and tests but loses the archive on exit.
func openStore(sqlitePath, migrationsDir string) (api.Store, func(), error) {
	if sqlitePath == "" {
		log.Printf("server: no SATISFORM_SQLITE_PATH, using in-memory store")
		return api.NewMemoryStore(), func() {}, nil
	}

	if err := os.MkdirAll(filepath.Dir(sqlitePath), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create sqlite dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?cache=shared&_busy_timeout=5000", filepath.ToSlash(sqlitePath))
	sqliteDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open sqlite: %w", err)
	}
	closeDB := func() {
		if cerr := sqliteDB.Close(); cerr != nil {
			log.Printf("warning: failed to close sqlite db: %v", cerr)
		}
	}

	if err := dbstore.RunMigrations(sqliteDB, migrationsDir); err != nil {
		closeDB()
		return nil, nil, fmt.Errorf("run migrations: %w", err)
	}
	store, err := dbstore.NewStore(sqliteDB)
	if err != nil {
		closeDB()
		return nil, nil, fmt.Errorf("init sqlite store: %w", err)
	}
	log.Printf("server: sqlite store at %s", sqlitePath)
	return store, closeDB, nil
}
