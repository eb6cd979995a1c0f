package recent

import (
	"context"
	"fmt"
	"time"

	"github.com/oaktrail/treetrack/internal/dbx"
)

// SQLiteRepository implements Repository over the local database.
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Touch upserts the species with the new usage time.
func (r *SQLiteRepository) Touch(ctx context.Context, speciesID string, at time.Time) error {
	query := `INSERT INTO recent_species (species_id, used_at) VALUES (?, ?)
			ON CONFLICT(species_id) DO UPDATE SET used_at = excluded.used_at`
	if _, err := r.db.ExecContext(ctx, query, speciesID, at); err != nil {
		return fmt.Errorf("failed to touch recent species: %w", err)
	}
	return nil
}

// UsedToday prunes rows from before today's midnight (local day of now),
// then returns the remaining species ids, most recent first.
func (r *SQLiteRepository) UsedToday(ctx context.Context, now time.Time) ([]string, error) {
	y, m, d := now.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, now.Location())

	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM recent_species WHERE used_at < ?`, midnight); err != nil {
		return nil, fmt.Errorf("failed to prune recent species: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT species_id FROM recent_species ORDER BY used_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to select recent species: %w", err)
	}
	defer rows.Close()

	var result []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		result = append(result, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
