// Package syncer reconciles local reference data against the remote source
// of truth. Entity kinds sync independently and in parallel; trees merge
// rather than replace, so locally created pending records survive a pull.
package syncer

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/oaktrail/treetrack/internal/gateway"
	"github.com/oaktrail/treetrack/internal/logging"
	"github.com/oaktrail/treetrack/internal/models"
	"github.com/oaktrail/treetrack/internal/store/entities"
	"github.com/oaktrail/treetrack/internal/store/trees"
)

// Service drives the reconcile lifecycle. It keeps no persistent state of
// its own: pagination offsets live only for the duration of one run and the
// queue is always rebuilt from the store.
type Service struct {
	client   gateway.Client
	entities entities.Repository
	trees    trees.Repository
	log      logging.Logger
}

func NewService(client gateway.Client, entityRepo entities.Repository, treeRepo trees.Repository, log logging.Logger) *Service {
	return &Service{client: client, entities: entityRepo, trees: treeRepo, log: log}
}

// SyncEntities refreshes all entity kinds in parallel. A failed kind is
// logged and its local cache left untouched (stale-but-consistent beats a
// partial overwrite); the other kinds keep going. The first error is
// returned for the caller's bookkeeping.
func (s *Service) SyncEntities(ctx context.Context) error {
	var g errgroup.Group
	for _, kind := range models.Kinds {
		g.Go(func() error {
			if err := s.syncKind(ctx, kind); err != nil {
				s.log.Error(ctx, "entity sync failed", "kind", kind, "error", err)
				return err
			}
			return nil
		})
	}
	return g.Wait()
}

// SyncIfEmpty syncs only the kinds that have no local cache yet. Used on
// startup so a freshly installed device populates itself without an
// explicit refresh.
func (s *Service) SyncIfEmpty(ctx context.Context) error {
	var g errgroup.Group
	for _, kind := range models.Kinds {
		g.Go(func() error {
			n, err := s.entities.Count(ctx, kind)
			if err != nil {
				s.log.Error(ctx, "failed to count local cache", "kind", kind, "error", err)
				return err
			}
			if n > 0 {
				return nil
			}
			if err := s.syncKind(ctx, kind); err != nil {
				s.log.Error(ctx, "entity sync failed", "kind", kind, "error", err)
				return err
			}
			return nil
		})
	}
	return g.Wait()
}

// syncKind pulls every page for one kind, then replaces the local set in a
// single transaction. A page failure aborts before anything is written.
func (s *Service) syncKind(ctx context.Context, kind models.EntityKind) error {
	var all []models.Entity
	offset := ""
	for {
		page, err := s.client.FetchEntities(ctx, kind, offset)
		if err != nil {
			return fmt.Errorf("failed to fetch page: %w", err)
		}
		all = append(all, page.Records...)
		if page.NextOffset == "" {
			break
		}
		offset = page.NextOffset
	}

	if err := s.entities.ReplaceAll(ctx, kind, all); err != nil {
		return err
	}
	s.log.Info(ctx, "entity sync complete", "kind", kind, "records", len(all))
	return nil
}

// PullTrees merges the remote tree list into the local store. Remote rows
// are inserted only if absent; pending local records are never overwritten.
func (s *Service) PullTrees(ctx context.Context) error {
	offset := ""
	total := 0
	for {
		page, err := s.client.FetchTrees(ctx, offset)
		if err != nil {
			return fmt.Errorf("failed to fetch trees: %w", err)
		}
		if err := s.trees.UpsertIfAbsent(ctx, page.Records); err != nil {
			return err
		}
		total += len(page.Records)
		if page.NextOffset == "" {
			break
		}
		offset = page.NextOffset
	}
	s.log.Info(ctx, "tree pull complete", "records", total)
	return nil
}
