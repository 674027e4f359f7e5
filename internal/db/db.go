package db

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/xxxsen/docqa/internal/config"
	"github.com/xxxsen/docqa/internal/pkg/dbutil"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// sqlite commits are fsynced before Exec returns (synchronous=FULL), which the
// registry relies on: a record reported as inserted survives a crash.
const sqlitePragmas = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)"

// Open connects to the registry database and returns the dialect used to
// finalize queries for it.
func Open(cfg config.DatabaseConfig) (*sql.DB, string, error) {
	var (
		driver  string
		dsn     string
		dialect string
	)
	switch cfg.Driver {
	case "", dbutil.DialectSQLite:
		driver, dialect = "sqlite", dbutil.DialectSQLite
		dsn = cfg.Path
		if !strings.Contains(dsn, "?") {
			dsn += "?" + sqlitePragmas
		}
	case dbutil.DialectPostgres:
		driver, dialect = "postgres", dbutil.DialectPostgres
		dsn = cfg.DSN
	default:
		return nil, "", fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, "", err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, "", err
	}
	return db, dialect, nil
}

func ApplyMigrations(db *sql.DB) error {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)
	for _, file := range files {
		content, err := fs.ReadFile(migrationsFS, "migrations/"+file)
		if err != nil {
			return err
		}
		queries := strings.Split(string(content), ";")
		for _, q := range queries {
			q = strings.TrimSpace(q)
			if q == "" {
				continue
			}
			if _, err := db.Exec(q); err != nil {
				if strings.Contains(err.Error(), "already exists") {
					continue
				}
				return fmt.Errorf("execute query in %s: %w", file, err)
			}
		}
	}
	return nil
}
