package trees

import (
	"context"
	"time"

	"github.com/oaktrail/treetrack/internal/models"
)

// Repository describes CRUD and queue operations for tree records. The
// pending-upload queue is derived from this table (uploaded_at IS NULL),
// so there is no separate in-memory queue that can drift from disk.
type Repository interface {
	// UpsertIfAbsent inserts each record only if no row with the same id
	// exists; it never overwrites. Safe against duplicate calls, which is
	// what the remote tree pull relies on: local pending records survive.
	UpsertIfAbsent(ctx context.Context, records []models.PendingTree) error

	// Update rewrites the editable fields of a record by id.
	Update(ctx context.Context, record *models.PendingTree) error

	// Delete removes a record by id.
	Delete(ctx context.Context, id string) error

	// DeleteAllPending clears the upload queue ("clear queue").
	DeleteAllPending(ctx context.Context) error

	// GetPending returns not-yet-uploaded local records in ascending
	// creation-time order, which is the order the queue is drained in.
	GetPending(ctx context.Context) ([]models.PendingTree, error)

	// GetByID returns a record by its identifier.
	GetByID(ctx context.Context, id string) (*models.PendingTree, error)

	// MarkUploaded records a confirmed upload: image url, content hash and
	// the upload timestamp. The record thereby leaves the pending queue.
	MarkUploaded(ctx context.Context, id, imageURL, imageMD5 string, uploadedAt time.Time) error
}
