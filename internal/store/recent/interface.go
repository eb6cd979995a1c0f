package recent

import (
	"context"
	"time"
)

// Repository tracks recently used species to bias the quick-pick list in the
// capture flow. Reads apply a "used today" filter and prune stale rows in
// the same call (read triggers compaction).
type Repository interface {
	// Touch records that the species was used at the given time.
	Touch(ctx context.Context, speciesID string, at time.Time) error

	// UsedToday returns species ids used on the same calendar day as now,
	// most recently used first, after pruning older rows.
	UsedToday(ctx context.Context, now time.Time) ([]string, error)
}
