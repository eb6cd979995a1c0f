// Package app is the composition root and collaborator-facing surface of
// the core. The UI layer issues commands and consumes observables; nothing
// here renders anything. All dependencies are constructed once in New and
// threaded explicitly, and no constructor performs network I/O: syncs run
// only when the orchestrating caller asks for them.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/oaktrail/treetrack/internal/assets"
	"github.com/oaktrail/treetrack/internal/config"
	"github.com/oaktrail/treetrack/internal/gateway"
	"github.com/oaktrail/treetrack/internal/imagecache"
	"github.com/oaktrail/treetrack/internal/logging"
	"github.com/oaktrail/treetrack/internal/models"
	"github.com/oaktrail/treetrack/internal/observe"
	"github.com/oaktrail/treetrack/internal/store"
	"github.com/oaktrail/treetrack/internal/syncer"
	"github.com/oaktrail/treetrack/internal/uploader"
)

const thumbnailPx = 300

// App owns the core services and the observable state the UI subscribes to.
type App struct {
	cfg *config.Config
	log logging.Logger

	db     *sql.DB
	repos  *store.Repositories
	client gateway.Client
	cache  *imagecache.Cache
	lib    assets.Library

	syncer   *syncer.Service
	uploader *uploader.Service
	images   *imagecache.Loader

	// Observable state.
	Sites       *observe.Value[[]models.Entity]
	Species     *observe.Value[[]models.Entity]
	Supervisors *observe.Value[[]models.Entity]
	Pending     *observe.Value[[]models.PendingTree]
	SyncBusy    *observe.Value[bool]
	Errors      *observe.Value[string]

	// LastSync intentionally has no initial value: reading it before any
	// sync has completed is a logic error worth catching.
	LastSync *observe.Delayed[time.Time]
}

// New wires the whole core from configuration. The caller owns Close.
func New(ctx context.Context, cfg *config.Config, log logging.Logger) (*App, error) {
	db, repos, err := store.Open(ctx, cfg.DatabasePath, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}

	cache, err := imagecache.Open(cfg.ImageCachePath, cfg.CacheMaxCost)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to open image cache: %w", err)
	}

	lib, err := assets.NewDirLibrary(cfg.AssetDir)
	if err != nil {
		_ = cache.Close()
		_ = db.Close()
		return nil, err
	}

	opts := gateway.Options{
		BaseURL:    cfg.APIBaseURL,
		Token:      cfg.BearerToken,
		Timeout:    cfg.RequestTimeout,
		RetryCount: cfg.RetryCount,
		RetryDelay: cfg.RetryDelay,
	}
	var client gateway.Client
	switch cfg.Backend {
	case config.BackendAirtable:
		client = gateway.NewAirtableClient(opts, cfg.AirtableBase, log)
	default:
		client = gateway.NewProtectEarthClient(opts, log)
	}

	a := &App{
		cfg:    cfg,
		log:    log,
		db:     db,
		repos:  repos,
		client: client,
		cache:  cache,
		lib:    lib,

		syncer:   syncer.NewService(client, repos.Entities, repos.Trees, log),
		uploader: uploader.NewService(db, client, repos.Trees, repos.Ledger, lib, log),
		images:   imagecache.NewLoader(cache, client, thumbnailPx, log),

		Sites:       observe.NewValue[[]models.Entity](nil),
		Species:     observe.NewValue[[]models.Entity](nil),
		Supervisors: observe.NewValue[[]models.Entity](nil),
		Pending:     observe.NewValue[[]models.PendingTree](nil),
		SyncBusy:    observe.NewValue(false),
		Errors:      observe.NewValue(""),
		LastSync:    observe.NewDelayed[time.Time](),
	}
	return a, nil
}

// Close releases the databases.
func (a *App) Close() error {
	_ = a.cache.Close()
	return a.db.Close()
}

// UploadProgress exposes the per-record upload progress stream.
func (a *App) UploadProgress() *observe.Value[uploader.Progress] {
	return a.uploader.Progress
}

// UploadRunning exposes the upload busy flag (drives button enabled-state).
func (a *App) UploadRunning() *observe.Value[bool] {
	return a.uploader.Running
}

// Images returns the cache-first image loader.
func (a *App) Images() *imagecache.Loader {
	return a.images
}

// Start populates the observable lists from local state and syncs any
// entity kind whose cache is still empty, then pulls the remote tree list.
func (a *App) Start(ctx context.Context) {
	a.refreshLists(ctx)

	a.SyncBusy.Set(true)
	defer a.SyncBusy.Set(false)

	if err := a.syncer.SyncIfEmpty(ctx); err != nil {
		// stale local data stays on screen; the error is background noise
		a.log.Warn(ctx, "startup sync incomplete", "error", err)
	} else {
		a.LastSync.Set(time.Now().UTC())
	}
	if err := a.syncer.PullTrees(ctx); err != nil {
		a.log.Warn(ctx, "tree pull incomplete", "error", err)
	}
	a.refreshLists(ctx)
}

// Sync refreshes all entity kinds from the remote and republishes the
// lists. Sync failures leave local caches stale; the UI only learns about
// them through the sync silently not completing.
func (a *App) Sync(ctx context.Context) {
	a.SyncBusy.Set(true)
	defer a.SyncBusy.Set(false)

	if err := a.syncer.SyncEntities(ctx); err == nil {
		a.LastSync.Set(time.Now().UTC())
	}
	if err := a.syncer.PullTrees(ctx); err != nil {
		a.log.Warn(ctx, "tree pull incomplete", "error", err)
	}
	a.refreshLists(ctx)
}

// Upload drains the pending queue. On failure the queue halts at the failed
// record and the error is published for the UI to surface; hitting upload
// again resumes from that same record.
func (a *App) Upload(ctx context.Context) {
	// a previous run's error must not outlive the retrigger it asks for
	a.Errors.Set("")
	if err := a.uploader.Run(ctx); err != nil {
		a.Errors.Set(err.Error())
		a.log.Error(ctx, "upload halted", "error", err)
	}
	a.refreshPending(ctx)
}

// CancelUpload stops the in-flight transfer. Untouched records remain
// pending.
func (a *App) CancelUpload() {
	a.uploader.Cancel()
}

// AddTreeParams are the user-entered fields of a new record.
type AddTreeParams struct {
	SupervisorID string
	SpeciesID    string
	SiteID       string
	Notes        string
	Coordinates  string
	PhotoTakenAt time.Time
}

// AddTree creates a local pending record for a captured photo and remembers
// the species for the quick-pick list.
func (a *App) AddTree(ctx context.Context, p AddTreeParams, assetRef string) (*models.PendingTree, error) {
	now := time.Now().UTC()
	photoAt := p.PhotoTakenAt
	if photoAt.IsZero() {
		photoAt = now
	}

	tree := models.PendingTree{
		ID:           uuid.NewString(),
		AssetRef:     assetRef,
		SupervisorID: p.SupervisorID,
		SpeciesID:    p.SpeciesID,
		SiteID:       p.SiteID,
		Notes:        p.Notes,
		Coordinates:  p.Coordinates,
		PhotoTakenAt: photoAt,
		CreatedAt:    now,
		Local:        true,
	}
	if err := a.repos.Trees.UpsertIfAbsent(ctx, []models.PendingTree{tree}); err != nil {
		return nil, err
	}
	if err := a.repos.Recent.Touch(ctx, p.SpeciesID, now); err != nil {
		a.log.Warn(ctx, "failed to record recent species", "error", err)
	}
	a.refreshPending(ctx)
	return &tree, nil
}

// EditTree reassigns the editable fields of a pending record.
func (a *App) EditTree(ctx context.Context, id string, p AddTreeParams) error {
	tree, err := a.repos.Trees.GetByID(ctx, id)
	if err != nil {
		return err
	}
	tree.SupervisorID = p.SupervisorID
	tree.SpeciesID = p.SpeciesID
	tree.SiteID = p.SiteID
	tree.Notes = p.Notes
	if p.Coordinates != "" {
		tree.Coordinates = p.Coordinates
	}
	if err := a.repos.Trees.Update(ctx, tree); err != nil {
		return err
	}
	a.refreshPending(ctx)
	return nil
}

// DeleteTree removes a record.
func (a *App) DeleteTree(ctx context.Context, id string) error {
	if err := a.repos.Trees.Delete(ctx, id); err != nil {
		return err
	}
	a.refreshPending(ctx)
	return nil
}

// ClearQueue drops every pending record.
func (a *App) ClearQueue(ctx context.Context) error {
	if err := a.repos.Trees.DeleteAllPending(ctx); err != nil {
		return err
	}
	a.refreshPending(ctx)
	return nil
}

// ImportPhoto copies a photo file into the local asset library and returns
// the reference to pass to AddTree.
func (a *App) ImportPhoto(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read photo: %w", err)
	}
	return a.lib.Add(ctx, data)
}

// AddSite creates a site remotely, then refreshes the local sites cache so
// the new site is immediately pickable.
func (a *App) AddSite(ctx context.Context, name string) (*models.Entity, error) {
	site, err := a.client.CreateEntity(ctx, models.KindSite, name)
	if err != nil {
		return nil, fmt.Errorf("failed to create site: %w", err)
	}
	a.Sync(ctx)
	return site, nil
}

// RecentSpecies returns today's quick-pick species ids, most recent first.
func (a *App) RecentSpecies(ctx context.Context) []string {
	ids, err := a.repos.Recent.UsedToday(ctx, time.Now())
	if err != nil {
		a.log.Warn(ctx, "failed to read recent species", "error", err)
		return nil
	}
	return ids
}

// refreshLists re-reads the three entity tables in parallel plus the
// pending queue, publishing each to its observable. Reads degrade to empty
// lists on failure: empty is always a safe state for a cache.
func (a *App) refreshLists(ctx context.Context) {
	var g errgroup.Group
	for _, kv := range []struct {
		kind models.EntityKind
		dst  *observe.Value[[]models.Entity]
	}{
		{models.KindSite, a.Sites},
		{models.KindSpecies, a.Species},
		{models.KindSupervisor, a.Supervisors},
	} {
		g.Go(func() error {
			records, err := a.repos.Entities.GetAll(ctx, kv.kind)
			if err != nil {
				a.log.Error(ctx, "failed to read entities", "kind", kv.kind, "error", err)
				records = nil
			}
			kv.dst.Set(records)
			return nil
		})
	}
	_ = g.Wait()

	a.refreshPending(ctx)
}

func (a *App) refreshPending(ctx context.Context) {
	pending, err := a.repos.Trees.GetPending(ctx)
	if err != nil {
		a.log.Error(ctx, "failed to read pending queue", "error", err)
		pending = nil
	}
	a.Pending.Set(pending)
}
