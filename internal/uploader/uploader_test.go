package uploader

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oaktrail/treetrack/internal/assets"
	"github.com/oaktrail/treetrack/internal/common"
	"github.com/oaktrail/treetrack/internal/gateway"
	"github.com/oaktrail/treetrack/internal/logging"
	"github.com/oaktrail/treetrack/internal/models"
	"github.com/oaktrail/treetrack/internal/store/ledger"
	"github.com/oaktrail/treetrack/internal/store/trees"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", fmt.Sprintf("file:uploader_%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE IF NOT EXISTS trees (
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
CREATE TABLE IF NOT EXISTS ledger (
  tree_id     TEXT PRIMARY KEY,
  asset_ref   TEXT NOT NULL,
  uploaded_at TIMESTAMP NOT NULL
);
DELETE FROM trees; DELETE FROM ledger;
`)
	require.NoError(t, err)
	return db
}

// fakeGateway succeeds unless the uploaded bytes match a configured
// failure, keyed by asset content.
type fakeGateway struct {
	gateway.Client

	mu          sync.Mutex
	uploadFail  map[string]error
	publishFail map[string]error
	uploaded    []string
	fractions   []float64
	blockUpload chan struct{}
}

func (f *fakeGateway) UploadImage(ctx context.Context, data []byte, md5 string, onProgress gateway.ProgressFunc) (string, error) {
	if f.blockUpload != nil {
		select {
		case <-f.blockUpload:
		case <-ctx.Done():
			return "", common.ErrCancelled
		}
	}
	content := string(data)
	f.mu.Lock()
	err := f.uploadFail[content]
	f.mu.Unlock()
	if err != nil {
		return "", err
	}
	for _, p := range []float64{0.25, 0.5, 1.0} {
		onProgress(p)
		f.mu.Lock()
		f.fractions = append(f.fractions, p)
		f.mu.Unlock()
	}
	return "https://img.example.org/" + content + ".jpg", nil
}

func (f *fakeGateway) CreateTree(ctx context.Context, p models.TreePayload) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.publishFail[p.ImageURL]; err != nil {
		return "", err
	}
	f.uploaded = append(f.uploaded, p.ImageURL)
	return "remote-" + p.SpeciesID, nil
}

type fixture struct {
	svc   *Service
	db    *sql.DB
	trees trees.Repository
	ldg   ledger.Repository
	lib   assets.Library
	gw    *fakeGateway
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := setupDB(t)
	lib, err := assets.NewDirLibrary(t.TempDir())
	require.NoError(t, err)

	gw := &fakeGateway{uploadFail: map[string]error{}, publishFail: map[string]error{}}
	treeRepo := trees.NewSQLiteRepository(db)
	ledgerRepo := ledger.NewSQLiteRepository(db)
	svc := NewService(db, gw, treeRepo, ledgerRepo, lib, logging.NewNopLogger())

	return &fixture{svc: svc, db: db, trees: treeRepo, ldg: ledgerRepo, lib: lib, gw: gw}
}

// addPending stores an asset whose bytes equal content and queues a tree
// referencing it.
func (f *fixture) addPending(t *testing.T, id, content string, createdAt time.Time) {
	t.Helper()
	ctx := context.Background()
	ref, err := f.lib.Add(ctx, []byte(content))
	require.NoError(t, err)
	require.NoError(t, f.trees.UpsertIfAbsent(ctx, []models.PendingTree{{
		ID: id, AssetRef: ref, SupervisorID: "sup", SpeciesID: "spc",
		SiteID: "site", Coordinates: "51.5,-0.1",
		PhotoTakenAt: createdAt, CreatedAt: createdAt, Local: true,
	}}))
}

func TestRun_DrainsQueueOldestFirst(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	base := time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)

	f.addPending(t, "t2", "second", base.Add(time.Hour))
	f.addPending(t, "t1", "first", base)

	require.NoError(t, f.svc.Run(ctx))

	assert.Equal(t, []string{
		"https://img.example.org/first.jpg",
		"https://img.example.org/second.jpg",
	}, f.gw.uploaded)

	pending, err := f.trees.GetPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	// final progress for the last record is exactly 1.0
	assert.Equal(t, Progress{TreeID: "t2", Fraction: 1.0}, f.svc.Progress.Get())

	got, err := f.trees.GetByID(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, got.Uploaded())
	assert.NotEmpty(t, got.ImageMD5)
}

func TestRun_HaltsOnFailureLeavingRestPending(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	base := time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)

	f.addPending(t, "ok", "good", base)
	f.addPending(t, "bad", "broken", base.Add(time.Minute))
	f.addPending(t, "after", "never-tried", base.Add(2*time.Minute))

	f.gw.uploadFail["broken"] = &common.RemoteError{Status: 502, Message: "bad gateway"}

	err := f.svc.Run(ctx)
	require.Error(t, err)

	var re *common.RemoteError
	assert.ErrorAs(t, err, &re)
	// diagnostics attached for offline debugging
	assert.Contains(t, err.Error(), "bad")
	assert.Contains(t, err.Error(), "site=site")

	// failed record's progress reset, queue halted
	assert.Equal(t, Progress{TreeID: "bad", Fraction: 0}, f.svc.Progress.Get())

	pending, pErr := f.trees.GetPending(ctx)
	require.NoError(t, pErr)
	require.Len(t, pending, 2)
	assert.Equal(t, "bad", pending[0].ID)
	assert.Equal(t, "after", pending[1].ID)

	// the record before the failure was delivered and ledgered
	items, lErr := f.ldg.GetAll(ctx)
	require.NoError(t, lErr)
	require.Len(t, items, 1)
	assert.Equal(t, "ok", items[0].TreeID)
}

func TestRun_ResumesFromFailedRecord(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	base := time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)

	f.addPending(t, "flaky", "flaky-content", base)
	f.gw.uploadFail["flaky-content"] = &common.RemoteError{Status: 500, Message: "hiccup"}

	require.Error(t, f.svc.Run(ctx))

	// user re-triggers after the backend recovers
	delete(f.gw.uploadFail, "flaky-content")
	require.NoError(t, f.svc.Run(ctx))

	pending, err := f.trees.GetPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestRun_PublishFailureAlsoHalts(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.addPending(t, "t1", "content", time.Now().UTC())
	f.gw.publishFail["https://img.example.org/content.jpg"] = &common.RemoteError{Status: 503, Message: "down"}

	err := f.svc.Run(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "metadata publish")

	// no ledger entry without a remote ack
	items, lErr := f.ldg.GetAll(ctx)
	require.NoError(t, lErr)
	assert.Empty(t, items)
}

func TestRun_MissingAssetSkipsRecord(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	base := time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, f.trees.UpsertIfAbsent(ctx, []models.PendingTree{{
		ID: "ghost", AssetRef: "no-such-asset", SupervisorID: "sup",
		SpeciesID: "spc", SiteID: "site",
		PhotoTakenAt: base, CreatedAt: base, Local: true,
	}}))
	f.addPending(t, "real", "real-content", base.Add(time.Minute))

	require.NoError(t, f.svc.Run(ctx))

	// the resolvable record uploaded; the ghost stays pending
	pending, err := f.trees.GetPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "ghost", pending[0].ID)
	assert.Equal(t, []string{"https://img.example.org/real-content.jpg"}, f.gw.uploaded)
}

func TestRun_TidyUpDeletesAssetsThenClearsLedger(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.addPending(t, "t1", "tidy-me", time.Now().UTC())

	require.NoError(t, f.svc.Run(ctx))

	items, err := f.ldg.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)

	got, err := f.trees.GetByID(ctx, "t1")
	require.NoError(t, err)
	_, loadErr := f.lib.Load(ctx, got.AssetRef)
	assert.ErrorIs(t, loadErr, common.ErrNotFound)
}

func TestRun_CancelHaltsQueue(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	base := time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)

	f.addPending(t, "t1", "slow", base)
	f.addPending(t, "t2", "untouched", base.Add(time.Minute))

	f.gw.blockUpload = make(chan struct{})

	done := make(chan error, 1)
	go func() { done <- f.svc.Run(ctx) }()

	// wait for the drain to reach the blocked transfer, then cancel
	require.Eventually(t, func() bool { return f.svc.Running.Get() }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	f.svc.Cancel()

	err := <-done
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrCancelled)

	pending, pErr := f.trees.GetPending(ctx)
	require.NoError(t, pErr)
	assert.Len(t, pending, 2)
}

func TestRun_ProgressMonotoneWithinRecord(t *testing.T) {
	f := setup(t)
	f.addPending(t, "t1", "steady", time.Now().UTC())

	var seen []float64
	ch, cancel := f.svc.Progress.Subscribe()
	defer cancel()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for p := range ch {
			seen = append(seen, p.Fraction)
		}
	}()

	require.NoError(t, f.svc.Run(context.Background()))
	cancel()
	wg.Wait()

	require.NotEmpty(t, seen)
	for i := 1; i < len(seen); i++ {
		assert.GreaterOrEqual(t, seen[i], seen[i-1])
	}
	assert.Equal(t, 1.0, seen[len(seen)-1])
}

func TestRun_SecondConcurrentRunIsNoop(t *testing.T) {
	f := setup(t)
	f.gw.blockUpload = make(chan struct{})
	f.addPending(t, "t1", "held", time.Now().UTC())

	done := make(chan error, 1)
	go func() { done <- f.svc.Run(context.Background()) }()
	require.Eventually(t, func() bool { return f.svc.Running.Get() }, time.Second, 5*time.Millisecond)

	require.NoError(t, f.svc.Run(context.Background())) // returns immediately

	close(f.gw.blockUpload)
	require.NoError(t, <-done)
}

func TestSplitCoordinates(t *testing.T) {
	lat, lon := splitCoordinates("51.5, -0.12")
	assert.Equal(t, "51.5", lat)
	assert.Equal(t, "-0.12", lon)

	lat, lon = splitCoordinates("")
	assert.Empty(t, lat)
	assert.Empty(t, lon)
}
