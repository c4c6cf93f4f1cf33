package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

var sqliteDialect = dialect{
	name:        "sqlite",
	floatType:   "REAL",
	tsType:      "TEXT",
	dateType:    "TEXT",
	placeholder: func(int) string { return "?" },
	timeValue:   func(t time.Time) any { return t.UTC().Format(timestampLayout) },
	dateValue:   func(t time.Time) any { return t.Format(dateLayout) },
}

// NewSQLiteWriter opens (or creates) an SQLite database file and migrates it.
// Use ":memory:" for a throwaway database.
func NewSQLiteWriter(path string) (*SQLWriter, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("sqlite: mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// A single connection keeps ":memory:" databases alive across calls.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", pragma, err)
		}
	}

	return newSQLWriter(db, sqliteDialect)
}
