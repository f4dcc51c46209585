package database

import (
	"database/sql"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"replayhub/internal/platform/config"
)

const driverName = "sqlite3"

// Open connects to the record store described by cfg and verifies the
// connection. The url may be a plain path or a "file:" URI.
func Open(cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open(driverName, dsn(cfg.URL))
	if err != nil {
		return nil, err
	}

	maxConns := cfg.MaxConnections
	if maxConns <= 0 {
		maxConns = 1
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func dsn(url string) string {
	if strings.Contains(url, "?") {
		return url
	}
	return url + "?_foreign_keys=on&_busy_timeout=5000"
}
