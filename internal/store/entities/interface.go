package entities

import (
	"context"

	"github.com/oaktrail/treetrack/internal/models"
)

// Repository describes query and reconcile operations for the reference
// entity tables (sites, species, supervisors). Implementations are backed
// by the local SQLite database.
type Repository interface {
	// ReplaceAll transactionally deletes all records of the given kind and
	// bulk-inserts the supplied set. Used by sync where the remote is
	// authoritative. A record that fails to insert is skipped, not fatal.
	ReplaceAll(ctx context.Context, kind models.EntityKind, records []models.Entity) error

	// GetAll returns all records of the given kind sorted by name, since
	// the server does not guarantee ordering.
	GetAll(ctx context.Context, kind models.EntityKind) ([]models.Entity, error)

	// Count reports how many records of the given kind are cached locally.
	Count(ctx context.Context, kind models.EntityKind) (int, error)
}
