package entities

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/oaktrail/treetrack/internal/dbx"
	"github.com/oaktrail/treetrack/internal/logging"
	"github.com/oaktrail/treetrack/internal/models"
)

// SQLiteRepository implements Repository over the local database.
type SQLiteRepository struct {
	db  *sql.DB
	log logging.Logger
}

// NewSQLiteRepository returns a new SQLiteRepository bound to db.
func NewSQLiteRepository(db *sql.DB, log logging.Logger) *SQLiteRepository {
	return &SQLiteRepository{db: db, log: log}
}

// ReplaceAll deletes every record of kind and inserts the new set inside a
// single transaction, so readers never observe the table half-replaced.
// One bad record must not abort the batch: insert failures are logged and
// the rest of the set is still committed.
func (r *SQLiteRepository) ReplaceAll(ctx context.Context, kind models.EntityKind, records []models.Entity) error {
	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM entities WHERE kind = ?`, kind); err != nil {
			return fmt.Errorf("failed to clear %s: %w", kind, err)
		}
		for _, e := range records {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO entities (kind, id, name) VALUES (?, ?, ?)`,
				kind, e.ID, e.Name)
			if err != nil {
				r.log.Warn(ctx, "skipping entity record", "kind", kind, "id", e.ID, "error", err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to replace %s: %w", kind, err)
	}
	return nil
}

// GetAll lists all records of kind sorted by name for display.
func (r *SQLiteRepository) GetAll(ctx context.Context, kind models.EntityKind) ([]models.Entity, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name FROM entities WHERE kind = ? ORDER BY name COLLATE NOCASE`, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to select %s: %w", kind, err)
	}
	defer rows.Close()

	var result []models.Entity
	for rows.Next() {
		var item models.Entity
		if err := rows.Scan(&item.ID, &item.Name); err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Count reports the number of locally cached records of kind.
func (r *SQLiteRepository) Count(ctx context.Context, kind models.EntityKind) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM entities WHERE kind = ?`, kind).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", kind, err)
	}
	return n, nil
}
