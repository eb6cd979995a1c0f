package ledger

import (
	"context"
	"fmt"

	"github.com/oaktrail/treetrack/internal/dbx"
	"github.com/oaktrail/treetrack/internal/models"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or
// *sql.Tx), so the ledger insert can share a transaction with the tree
// commit.
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Add records a confirmed upload, keeping the first entry on duplicates.
func (r *SQLiteRepository) Add(ctx context.Context, item models.LedgerItem) error {
	query := `INSERT INTO ledger (tree_id, asset_ref, uploaded_at) VALUES (?, ?, ?)
			ON CONFLICT(tree_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, item.TreeID, item.AssetRef, item.UploadedAt); err != nil {
		return fmt.Errorf("failed to add ledger item: %w", err)
	}
	return nil
}

// GetAll lists items awaiting asset cleanup, oldest upload first.
func (r *SQLiteRepository) GetAll(ctx context.Context) ([]models.LedgerItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT tree_id, asset_ref, uploaded_at FROM ledger ORDER BY uploaded_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to select ledger: %w", err)
	}
	defer rows.Close()

	var result []models.LedgerItem
	for rows.Next() {
		var item models.LedgerItem
		if err := rows.Scan(&item.TreeID, &item.AssetRef, &item.UploadedAt); err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Clear empties the ledger.
func (r *SQLiteRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM ledger`); err != nil {
		return fmt.Errorf("failed to clear ledger: %w", err)
	}
	return nil
}
