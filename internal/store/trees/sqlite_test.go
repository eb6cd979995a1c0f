package trees

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oaktrail/treetrack/internal/common"
	"github.com/oaktrail/treetrack/internal/models"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE trees (
  id             TEXT PRIMARY KEY,
  asset_ref      TEXT NOT NULL,
  supervisor_id  TEXT NOT NULL,
  species_id     TEXT NOT NULL,
  site_id        TEXT NOT NULL,
  notes          TEXT NOT NULL DEFAULT '',
  coordinates    TEXT NOT NULL DEFAULT '',
  image_url      TEXT NOT NULL DEFAULT '',
  image_md5      TEXT NOT NULL DEFAULT '',
  photo_taken_at TIMESTAMP NOT NULL,
  created_at     TIMESTAMP NOT NULL,
  uploaded_at    TIMESTAMP,
  local          INTEGER NOT NULL DEFAULT 0
);
`)
	require.NoError(t, err)
	return db
}

func newTree(id string, createdAt time.Time) models.PendingTree {
	return models.PendingTree{
		ID:           id,
		AssetRef:     "asset-" + id,
		SupervisorID: "sup1",
		SpeciesID:    "spc1",
		SiteID:       "site1",
		PhotoTakenAt: createdAt,
		CreatedAt:    createdAt,
		Local:        true,
	}
}

func TestUpsertIfAbsent_Idempotent(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	tree := newTree("t1", time.Now().UTC())
	require.NoError(t, r.UpsertIfAbsent(ctx, []models.PendingTree{tree}))

	// second call with a modified copy must not overwrite
	changed := tree
	changed.Notes = "should not appear"
	require.NoError(t, r.UpsertIfAbsent(ctx, []models.PendingTree{changed}))

	var n int
	require.NoError(t, db.QueryRow(`SELECT count(*) FROM trees`).Scan(&n))
	assert.Equal(t, 1, n)

	got, err := r.GetByID(ctx, "t1")
	require.NoError(t, err)
	assert.Empty(t, got.Notes)
}

func TestGetPending_OldestFirstAndExcludesUploaded(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	base := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	newer := newTree("t-new", base.Add(2*time.Hour))
	older := newTree("t-old", base)
	done := newTree("t-done", base.Add(time.Hour))

	require.NoError(t, r.UpsertIfAbsent(ctx, []models.PendingTree{newer, older, done}))
	require.NoError(t, r.MarkUploaded(ctx, "t-done", "https://img/x.jpg", "md5", base.Add(3*time.Hour)))

	pending, err := r.GetPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "t-old", pending[0].ID)
	assert.Equal(t, "t-new", pending[1].ID)
}

func TestUpdate_EditableFieldsOnly(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	tree := newTree("t1", time.Now().UTC())
	require.NoError(t, r.UpsertIfAbsent(ctx, []models.PendingTree{tree}))

	tree.SpeciesID = "spc2"
	tree.Notes = "replanted"
	require.NoError(t, r.Update(ctx, &tree))

	got, err := r.GetByID(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "spc2", got.SpeciesID)
	assert.Equal(t, "replanted", got.Notes)
	assert.Equal(t, "asset-t1", got.AssetRef)
}

func TestUpdate_NotFound(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)

	tree := newTree("ghost", time.Now().UTC())
	err := r.Update(context.Background(), &tree)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestDelete(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.UpsertIfAbsent(ctx, []models.PendingTree{newTree("t1", time.Now().UTC())}))
	require.NoError(t, r.Delete(ctx, "t1"))
	assert.ErrorIs(t, r.Delete(ctx, "t1"), common.ErrNotFound)

	_, err := r.GetByID(ctx, "t1")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestDeleteAllPending_KeepsUploaded(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, r.UpsertIfAbsent(ctx, []models.PendingTree{
		newTree("a", now), newTree("b", now), newTree("c", now),
	}))
	require.NoError(t, r.MarkUploaded(ctx, "c", "url", "md5", now))

	require.NoError(t, r.DeleteAllPending(ctx))

	pending, err := r.GetPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	got, err := r.GetByID(ctx, "c")
	require.NoError(t, err)
	assert.True(t, got.Uploaded())
}

func TestMarkUploaded_SecondCallNotFound(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, r.UpsertIfAbsent(ctx, []models.PendingTree{newTree("t1", now)}))
	require.NoError(t, r.MarkUploaded(ctx, "t1", "https://img/1.jpg", "abc", now))

	got, err := r.GetByID(ctx, "t1")
	require.NoError(t, err)
	require.NotNil(t, got.UploadedAt)
	assert.Equal(t, "https://img/1.jpg", got.ImageURL)
	assert.Equal(t, "abc", got.ImageMD5)

	// already uploaded: guarded by uploaded_at IS NULL
	assert.ErrorIs(t, r.MarkUploaded(ctx, "t1", "other", "other", now), common.ErrNotFound)
}
