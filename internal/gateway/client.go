// Package gateway is the HTTP client abstraction over the remote backend:
// bearer-token auth, per-request timeout, bounded retry on 5xx, paginated
// entity fetch, record create and binary image upload with progress.
//
// Two backends implement the same Client contract and are selected at
// composition time: the Protect Earth REST API and an Airtable base.
package gateway

import (
	"context"

	"github.com/oaktrail/treetrack/internal/models"
)

// Page is one page of a paginated entity listing. NextOffset is an opaque
// server-issued token; an empty value means the listing is exhausted and
// callers must loop until then.
type Page struct {
	Records    []models.Entity
	NextOffset string
}

// TreePage is one page of the remote tree listing.
type TreePage struct {
	Records    []models.PendingTree
	NextOffset string
}

// ProgressFunc receives transport progress in [0.0, 1.0].
type ProgressFunc func(fraction float64)

// Client is the remote gateway. All methods honour ctx cancellation; a
// cancelled in-flight call returns common.ErrCancelled, never a silent drop.
type Client interface {
	// FetchEntities returns one page of the given reference table.
	FetchEntities(ctx context.Context, kind models.EntityKind, offset string) (*Page, error)

	// FetchTrees returns one page of the remote tree records.
	FetchTrees(ctx context.Context, offset string) (*TreePage, error)

	// CreateEntity creates a reference record remotely (e.g. a new site).
	CreateEntity(ctx context.Context, kind models.EntityKind, name string) (*models.Entity, error)

	// CreateTree publishes tree metadata and returns the remote id.
	CreateTree(ctx context.Context, payload models.TreePayload) (string, error)

	// UploadImage uploads photo bytes and returns the hosted image URL.
	// md5 travels as a metadata header for server-side dedup.
	UploadImage(ctx context.Context, data []byte, md5 string, onProgress ProgressFunc) (string, error)

	// FetchImage downloads an image by absolute URL. Consult the image
	// cache first; this always goes to the network.
	FetchImage(ctx context.Context, url string) ([]byte, error)
}
