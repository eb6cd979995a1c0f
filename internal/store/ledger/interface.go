package ledger

import (
	"context"

	"github.com/oaktrail/treetrack/internal/models"
)

// Repository is the uploaded-items ledger: confirmed uploads waiting for
// their source photo assets to be purged from the device. An item is added
// only after the remote write is durably acknowledged, never before.
type Repository interface {
	// Add records a confirmed upload. Adding the same tree twice keeps the
	// first entry.
	Add(ctx context.Context, item models.LedgerItem) error

	// GetAll lists items whose source assets still need cleanup.
	GetAll(ctx context.Context) ([]models.LedgerItem, error)

	// Clear empties the ledger after the asset-deletion step has completed.
	Clear(ctx context.Context) error
}
