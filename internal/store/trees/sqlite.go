package trees

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/oaktrail/treetrack/internal/common"
	"github.com/oaktrail/treetrack/internal/dbx"
	"github.com/oaktrail/treetrack/internal/models"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or
// *sql.Tx). Binding to a transaction lets the upload pipeline commit the
// tree update and the ledger insert atomically.
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const treeColumns = `id, asset_ref, supervisor_id, species_id, site_id, notes,
	coordinates, image_url, image_md5, photo_taken_at, created_at, uploaded_at, local`

// UpsertIfAbsent inserts records, silently keeping any existing row with the
// same id. Calling it twice with the same record produces exactly one row.
func (r *SQLiteRepository) UpsertIfAbsent(ctx context.Context, records []models.PendingTree) error {
	query := `INSERT INTO trees (` + treeColumns + `)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO NOTHING`
	for _, t := range records {
		_, err := r.db.ExecContext(ctx, query,
			t.ID, t.AssetRef, t.SupervisorID, t.SpeciesID, t.SiteID, t.Notes,
			t.Coordinates, t.ImageURL, t.ImageMD5, t.PhotoTakenAt, t.CreatedAt,
			t.UploadedAt, t.Local)
		if err != nil {
			return fmt.Errorf("failed to insert tree %s: %w", t.ID, err)
		}
	}
	return nil
}

// Update rewrites the editable fields (species/site/supervisor reassignment,
// notes, coordinates) of an existing record.
func (r *SQLiteRepository) Update(ctx context.Context, t *models.PendingTree) error {
	query := `UPDATE trees SET supervisor_id=?, species_id=?, site_id=?, notes=?, coordinates=?
			WHERE id=?`
	res, err := r.db.ExecContext(ctx, query,
		t.SupervisorID, t.SpeciesID, t.SiteID, t.Notes, t.Coordinates, t.ID)
	if err != nil {
		return fmt.Errorf("failed to update tree: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra == 0 {
		return common.ErrNotFound
	}
	return nil
}

// Delete removes a record by id.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM trees WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete tree: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra == 0 {
		return common.ErrNotFound
	}
	return nil
}

// DeleteAllPending removes every not-yet-uploaded record.
func (r *SQLiteRepository) DeleteAllPending(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM trees WHERE uploaded_at IS NULL`); err != nil {
		return fmt.Errorf("failed to clear pending trees: %w", err)
	}
	return nil
}

// GetPending lists not-yet-uploaded records, oldest first.
func (r *SQLiteRepository) GetPending(ctx context.Context) ([]models.PendingTree, error) {
	query := `SELECT ` + treeColumns + ` FROM trees
			WHERE uploaded_at IS NULL ORDER BY created_at ASC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select pending trees: %w", err)
	}
	defer rows.Close()

	var result []models.PendingTree
	for rows.Next() {
		item, err := scanTree(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// GetByID returns a record by its identifier, or common.ErrNotFound.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.PendingTree, error) {
	query := `SELECT ` + treeColumns + ` FROM trees WHERE id=?`
	rows, err := r.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to select tree: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, common.ErrNotFound
	}
	return scanTree(rows)
}

// MarkUploaded stamps a confirmed upload onto the record.
func (r *SQLiteRepository) MarkUploaded(ctx context.Context, id, imageURL, imageMD5 string, uploadedAt time.Time) error {
	query := `UPDATE trees SET image_url=?, image_md5=?, uploaded_at=?
			WHERE id=? AND uploaded_at IS NULL`
	res, err := r.db.ExecContext(ctx, query, imageURL, imageMD5, uploadedAt, id)
	if err != nil {
		return fmt.Errorf("failed to mark tree uploaded: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra == 0 {
		return common.ErrNotFound
	}
	return nil
}

func scanTree(rows *sql.Rows) (*models.PendingTree, error) {
	var item models.PendingTree
	var uploadedAt sql.NullTime
	err := rows.Scan(&item.ID, &item.AssetRef, &item.SupervisorID, &item.SpeciesID,
		&item.SiteID, &item.Notes, &item.Coordinates, &item.ImageURL, &item.ImageMD5,
		&item.PhotoTakenAt, &item.CreatedAt, &uploadedAt, &item.Local)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, err
	}
	if uploadedAt.Valid {
		t := uploadedAt.Time
		item.UploadedAt = &t
	}
	return &item, nil
}
