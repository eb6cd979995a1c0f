// Package uploader drains the pending-upload queue, strictly one record at
// a time: resolve the source photo, upload the binary, publish the
// metadata, commit locally, then move on. A failure halts the queue until
// the user triggers another run; only the in-flight transfer is cancellable.
package uploader

import (
	"context"
	"crypto/md5"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oaktrail/treetrack/internal/assets"
	"github.com/oaktrail/treetrack/internal/common"
	"github.com/oaktrail/treetrack/internal/dbx"
	"github.com/oaktrail/treetrack/internal/gateway"
	"github.com/oaktrail/treetrack/internal/logging"
	"github.com/oaktrail/treetrack/internal/models"
	"github.com/oaktrail/treetrack/internal/observe"
	"github.com/oaktrail/treetrack/internal/store/ledger"
	"github.com/oaktrail/treetrack/internal/store/trees"
)

// progress milestones: image resolution contributes the first tenth,
// transport the next eight tenths, metadata publish and commit the rest.
const (
	progressResolved = 0.10
	progressUpload   = 0.80
)

// Progress is the per-record progress event consumed by the UI layer.
// Fraction is monotone within one successful upload, ends at exactly 1.0,
// and resets to 0.0 for that record on failure.
type Progress struct {
	TreeID   string
	Fraction float64
}

// Service owns the queue drain. The queue itself lives in the local store
// (pending trees query), so a crashed run resumes from disk state.
type Service struct {
	db     *sql.DB
	client gateway.Client
	trees  trees.Repository
	ledger ledger.Repository
	assets assets.Library
	log    logging.Logger

	// Progress broadcasts per-record upload progress.
	Progress *observe.Value[Progress]
	// Running flips while a drain is active; drives button enabled-state.
	Running *observe.Value[bool]

	mu     sync.Mutex
	cancel context.CancelFunc
}

func NewService(db *sql.DB, client gateway.Client, treeRepo trees.Repository, ledgerRepo ledger.Repository, lib assets.Library, log logging.Logger) *Service {
	return &Service{
		db:       db,
		client:   client,
		trees:    treeRepo,
		ledger:   ledgerRepo,
		assets:   lib,
		log:      log,
		Progress: observe.NewValue(Progress{}),
		Running:  observe.NewValue(false),
	}
}

// Run drains the pending queue, oldest record first. It stops at the first
// failed record, leaving it and everything behind it pending; the caller
// must invoke Run again to resume from the same record. When the queue
// fully drains, the uploaded source assets are tidied up.
//
// Only one Run is active at a time; a second call while running returns
// immediately.
func (s *Service) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return nil
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.Running.Set(true)
	defer func() {
		s.mu.Lock()
		s.cancel()
		s.cancel = nil
		s.mu.Unlock()
		s.Running.Set(false)
	}()

	for {
		pending, err := s.trees.GetPending(ctx)
		if err != nil {
			// a read failure is not a queue failure; treat as empty
			s.log.Error(ctx, "failed to read pending queue", "error", err)
			return nil
		}
		if len(pending) == 0 {
			return s.tidyUp(ctx)
		}

		uploadedAny := false
		for i := range pending {
			tree := &pending[i]
			if err := s.uploadOne(ctx, tree); err != nil {
				if errors.Is(err, errSkipRecord) {
					continue
				}
				s.Progress.Set(Progress{TreeID: tree.ID, Fraction: 0})
				return err
			}
			uploadedAny = true
		}
		if !uploadedAny {
			// every remaining record was skipped; nothing more to do
			return nil
		}
		// re-read the queue in case records were added during the drain
	}
}

// Cancel stops the in-flight upload, if any. Queued-but-not-started records
// simply remain pending.
func (s *Service) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}

// errSkipRecord marks a record the pipeline cannot act on (e.g. its source
// asset is gone). The record stays pending and the queue moves on.
var errSkipRecord = errors.New("skip record")

func (s *Service) uploadOne(ctx context.Context, tree *models.PendingTree) error {
	report := func(f float64) {
		s.Progress.Set(Progress{TreeID: tree.ID, Fraction: f})
	}
	report(0)

	data, err := s.assets.Load(ctx, tree.AssetRef)
	if err != nil {
		// local failure: log and skip this one record, per the store's
		// degrade-don't-crash policy
		s.log.Error(ctx, "failed to resolve source asset", "tree", tree.ID, "asset", tree.AssetRef, "error", err)
		return errSkipRecord
	}
	report(progressResolved)

	sum := md5.Sum(data)
	imageMD5 := hex.EncodeToString(sum[:])

	imageURL, err := s.client.UploadImage(ctx, data, imageMD5, func(f float64) {
		report(progressResolved + progressUpload*f)
	})
	if err != nil {
		return s.failure(tree, imageMD5, "image upload", err)
	}

	lat, lon := splitCoordinates(tree.Coordinates)
	remoteID, err := s.client.CreateTree(ctx, models.TreePayload{
		ImageURL:     imageURL,
		Latitude:     lat,
		Longitude:    lon,
		PlantedAt:    tree.PhotoTakenAt,
		SupervisorID: tree.SupervisorID,
		SiteID:       tree.SiteID,
		SpeciesID:    tree.SpeciesID,
		Notes:        tree.Notes,
	})
	if err != nil {
		return s.failure(tree, imageMD5, "metadata publish", err)
	}

	// the remote write is acknowledged; commit the tree update and the
	// ledger entry atomically so "uploaded" can never be recorded halfway
	uploadedAt := time.Now().UTC()
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		txTrees := trees.NewSQLiteRepository(tx)
		txLedger := ledger.NewSQLiteRepository(tx)
		if err := txTrees.MarkUploaded(ctx, tree.ID, imageURL, imageMD5, uploadedAt); err != nil {
			return err
		}
		return txLedger.Add(ctx, models.LedgerItem{
			TreeID:     tree.ID,
			AssetRef:   tree.AssetRef,
			UploadedAt: uploadedAt,
		})
	})
	if err != nil {
		return s.failure(tree, imageMD5, "local commit", err)
	}

	report(1.0)
	s.log.Info(ctx, "tree uploaded", "tree", tree.ID, "remote", remoteID, "url", imageURL)
	return nil
}

// failure wraps err with enough context for offline diagnostics and resets
// the record's displayed progress.
func (s *Service) failure(tree *models.PendingTree, imageMD5, stage string, err error) error {
	if errors.Is(err, common.ErrCancelled) {
		s.log.Warn(context.Background(), "upload cancelled", "tree", tree.ID)
	}
	return fmt.Errorf("%s failed for tree %s (site=%s species=%s supervisor=%s coords=%q md5=%s): %w",
		stage, tree.ID, tree.SiteID, tree.SpeciesID, tree.SupervisorID, tree.Coordinates, imageMD5, err)
}

// tidyUp deletes the now-uploaded source photos from the device library in
// bulk, then clears the ledger. The ledger is cleared only after the
// deletion step completes, so a failed deletion never loses track of
// assets.
func (s *Service) tidyUp(ctx context.Context) error {
	items, err := s.ledger.GetAll(ctx)
	if err != nil {
		s.log.Error(ctx, "failed to read upload ledger", "error", err)
		return nil
	}
	if len(items) == 0 {
		return nil
	}

	refs := make([]string, 0, len(items))
	for _, item := range items {
		if item.AssetRef != "" {
			refs = append(refs, item.AssetRef)
		}
	}

	if err := s.assets.Delete(ctx, refs); err != nil {
		s.log.Error(ctx, "failed to delete source assets", "error", err)
		return nil
	}
	if err := s.ledger.Clear(ctx); err != nil {
		s.log.Error(ctx, "failed to clear upload ledger", "error", err)
	}
	s.log.Info(ctx, "tidied up uploaded assets", "count", len(refs))
	return nil
}

// splitCoordinates turns "lat,lon" into its parts; either may come back
// empty for a record captured without a fix.
func splitCoordinates(coords string) (lat, lon string) {
	parts := strings.SplitN(coords, ",", 2)
	if len(parts) > 0 {
		lat = strings.TrimSpace(parts[0])
	}
	if len(parts) > 1 {
		lon = strings.TrimSpace(parts[1])
	}
	return lat, lon
}
