package gateway

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/oaktrail/treetrack/internal/logging"
	"github.com/oaktrail/treetrack/internal/models"
)

// table names inside the Airtable base
const (
	airtableSites       = "Sites"
	airtableSpecies     = "Species"
	airtableSupervisors = "Supervisors"
	airtableTrees       = "Trees"
)

// AirtableClient talks to an Airtable base exposing the same reference
// tables. Records come back as {id, fields: {...}} and pagination uses the
// offset token Airtable issues.
type AirtableClient struct {
	t    *transport
	base string
}

// NewAirtableClient returns a Client for the Airtable backend. base is the
// Airtable base identifier.
func NewAirtableClient(opts Options, base string, log logging.Logger) *AirtableClient {
	return &AirtableClient{
		t:    newTransport(opts.BaseURL, opts.Token, opts.Timeout, opts.RetryCount, opts.RetryDelay, log),
		base: base,
	}
}

func airtableTable(kind models.EntityKind) string {
	switch kind {
	case models.KindSite:
		return airtableSites
	case models.KindSpecies:
		return airtableSpecies
	case models.KindSupervisor:
		return airtableSupervisors
	default:
		return string(kind)
	}
}

type atRecord struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

func (r atRecord) stringField(name string) string {
	if v, ok := r.Fields[name].(string); ok {
		return v
	}
	return ""
}

type atListResponse struct {
	Offset  string     `json:"offset"`
	Records []atRecord `json:"records"`
}

func (c *AirtableClient) FetchEntities(ctx context.Context, kind models.EntityKind, offset string) (*Page, error) {
	query := url.Values{}
	if offset != "" {
		query.Set("offset", offset)
	}

	var resp atListResponse
	path := "/v0/" + c.base + "/" + airtableTable(kind)
	if err := c.t.getJSON(ctx, path, query, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", kind, err)
	}

	page := &Page{NextOffset: resp.Offset}
	for _, r := range resp.Records {
		page.Records = append(page.Records, models.Entity{ID: r.ID, Name: r.stringField("Name")})
	}
	return page, nil
}

func (c *AirtableClient) FetchTrees(ctx context.Context, offset string) (*TreePage, error) {
	query := url.Values{}
	if offset != "" {
		query.Set("offset", offset)
	}

	var resp atListResponse
	if err := c.t.getJSON(ctx, "/v0/"+c.base+"/"+airtableTrees, query, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch trees: %w", err)
	}

	page := &TreePage{NextOffset: resp.Offset}
	for _, r := range resp.Records {
		plantedAt := time.Now().UTC()
		if raw := r.stringField("PlantedAt"); raw != "" {
			if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
				plantedAt = parsed
			}
		}
		uploadedAt := plantedAt
		page.Records = append(page.Records, models.PendingTree{
			ID:           r.ID,
			SupervisorID: r.stringField("Supervisor"),
			SpeciesID:    r.stringField("Species"),
			SiteID:       r.stringField("Site"),
			Notes:        r.stringField("Notes"),
			Coordinates:  r.stringField("Coordinates"),
			ImageURL:     r.stringField("ImageURL"),
			PhotoTakenAt: plantedAt,
			CreatedAt:    plantedAt,
			UploadedAt:   &uploadedAt,
			Local:        false,
		})
	}
	return page, nil
}

func (c *AirtableClient) CreateEntity(ctx context.Context, kind models.EntityKind, name string) (*models.Entity, error) {
	req := map[string]any{"fields": map[string]string{"Name": name}}

	var resp atRecord
	path := "/v0/" + c.base + "/" + airtableTable(kind)
	if err := c.t.postJSON(ctx, path, req, &resp); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", kind, err)
	}
	return &models.Entity{ID: resp.ID, Name: resp.stringField("Name")}, nil
}

func (c *AirtableClient) CreateTree(ctx context.Context, p models.TreePayload) (string, error) {
	req := map[string]any{"fields": map[string]any{
		"ImageURL":   p.ImageURL,
		"Latitude":   p.Latitude,
		"Longitude":  p.Longitude,
		"PlantedAt":  p.PlantedAt.UTC().Format(time.RFC3339),
		"Supervisor": p.SupervisorID,
		"Site":       p.SiteID,
		"Species":    p.SpeciesID,
		"Notes":      p.Notes,
	}}

	var resp atRecord
	if err := c.t.postJSON(ctx, "/v0/"+c.base+"/"+airtableTrees, req, &resp); err != nil {
		return "", fmt.Errorf("failed to create tree: %w", err)
	}
	return resp.ID, nil
}

type atUploadResponse struct {
	SecureURL string `json:"secure_url"`
}

// UploadImage posts the photo to the image host configured for the base.
// Airtable itself does not store binaries; the hosted URL is what lands in
// the tree record's ImageURL field.
func (c *AirtableClient) UploadImage(ctx context.Context, data []byte, md5 string, onProgress ProgressFunc) (string, error) {
	headers := map[string]string{}
	if md5 != "" {
		headers["X-Image-MD5"] = md5
	}

	var resp atUploadResponse
	err := c.t.postBinary(ctx, c.t.baseURL+"/v0/"+c.base+"/images", data, headers, onProgress, &resp)
	if err != nil {
		return "", err
	}
	if resp.SecureURL == "" {
		return "", fmt.Errorf("image upload returned no url")
	}
	return resp.SecureURL, nil
}

func (c *AirtableClient) FetchImage(ctx context.Context, urlStr string) ([]byte, error) {
	return c.t.getBytes(ctx, urlStr)
}
