// Package store opens the local database, applies migrations and bundles
// the repositories that own all persisted state.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/oaktrail/treetrack/internal/logging"
	"github.com/oaktrail/treetrack/internal/store/entities"
	"github.com/oaktrail/treetrack/internal/store/ledger"
	"github.com/oaktrail/treetrack/internal/store/migrations"
	"github.com/oaktrail/treetrack/internal/store/recent"
	"github.com/oaktrail/treetrack/internal/store/trees"
)

// Repositories bundles every repository backed by the local database.
type Repositories struct {
	Entities entities.Repository
	Trees    trees.Repository
	Ledger   ledger.Repository
	Recent   recent.Repository
}

// RunMigrations applies the embedded, ordered goose migrations. Each
// migration runs at most once per database file.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, ".")
}

// Open opens (or creates) the database at path and migrates it. If the
// existing file cannot be migrated, it is erased and rebuilt from scratch:
// the local database is a cache of remote state plus a pending queue, not a
// system of record, so a rebuild is preferable to refusing to start.
func Open(ctx context.Context, path string, log logging.Logger) (*sql.DB, *Repositories, error) {
	db, err := open(ctx, path)
	if err != nil {
		if !isFilePath(path) {
			return nil, nil, err
		}
		log.Warn(ctx, "local database unusable, rebuilding", "path", path, "error", err)
		if rmErr := os.Remove(path); rmErr != nil {
			return nil, nil, fmt.Errorf("failed to remove broken database: %w", rmErr)
		}
		db, err = open(ctx, path)
		if err != nil {
			return nil, nil, err
		}
	}

	repos := &Repositories{
		Entities: entities.NewSQLiteRepository(db, log),
		Trees:    trees.NewSQLiteRepository(db),
		Ledger:   ledger.NewSQLiteRepository(db),
		Recent:   recent.NewSQLiteRepository(db),
	}
	return db, repos, nil
}

func open(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// serialize writers; sqlite allows a single writer anyway
	db.SetMaxOpenConns(1)

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return db, nil
}

// isFilePath reports whether path names an on-disk database, as opposed to
// an in-memory DSN that cannot meaningfully be erased and rebuilt.
func isFilePath(path string) bool {
	return path != ":memory:" && !strings.Contains(path, "mode=memory")
}
