package gateway

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/oaktrail/treetrack/internal/logging"
	"github.com/oaktrail/treetrack/internal/models"
)

// ProtectEarthClient talks to the Protect Earth REST API (versioned JSON
// endpoints, opaque offset pagination).
type ProtectEarthClient struct {
	t *transport
}

// Options carries the transport settings shared by both backends.
type Options struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	RetryCount int
	RetryDelay time.Duration
}

// NewProtectEarthClient returns a Client for the Protect Earth backend.
func NewProtectEarthClient(opts Options, log logging.Logger) *ProtectEarthClient {
	return &ProtectEarthClient{
		t: newTransport(opts.BaseURL, opts.Token, opts.Timeout, opts.RetryCount, opts.RetryDelay, log),
	}
}

type peListResponse struct {
	Offset  string `json:"offset"`
	Records []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"records"`
}

func (c *ProtectEarthClient) FetchEntities(ctx context.Context, kind models.EntityKind, offset string) (*Page, error) {
	query := url.Values{}
	if offset != "" {
		query.Set("offset", offset)
	}

	var resp peListResponse
	if err := c.t.getJSON(ctx, "/api/v1/"+string(kind), query, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", kind, err)
	}

	page := &Page{NextOffset: resp.Offset}
	for _, r := range resp.Records {
		page.Records = append(page.Records, models.Entity{ID: r.ID, Name: r.Name})
	}
	return page, nil
}

type peTreeListResponse struct {
	Offset  string `json:"offset"`
	Records []struct {
		ID         string    `json:"id"`
		ImageURL   string    `json:"image_url"`
		Latitude   string    `json:"latitude"`
		Longitude  string    `json:"longitude"`
		PlantedAt  time.Time `json:"planted_at"`
		Supervisor string    `json:"supervisor"`
		Site       string    `json:"site"`
		Species    string    `json:"species"`
		Notes      string    `json:"notes"`
	} `json:"records"`
}

func (c *ProtectEarthClient) FetchTrees(ctx context.Context, offset string) (*TreePage, error) {
	query := url.Values{}
	if offset != "" {
		query.Set("offset", offset)
	}

	var resp peTreeListResponse
	if err := c.t.getJSON(ctx, "/api/v1/trees", query, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch trees: %w", err)
	}

	page := &TreePage{NextOffset: resp.Offset}
	for _, r := range resp.Records {
		uploadedAt := r.PlantedAt
		page.Records = append(page.Records, models.PendingTree{
			ID:           r.ID,
			SupervisorID: r.Supervisor,
			SpeciesID:    r.Species,
			SiteID:       r.Site,
			Notes:        r.Notes,
			Coordinates:  r.Latitude + "," + r.Longitude,
			ImageURL:     r.ImageURL,
			PhotoTakenAt: r.PlantedAt,
			CreatedAt:    r.PlantedAt,
			UploadedAt:   &uploadedAt,
			Local:        false,
		})
	}
	return page, nil
}

type peEntityResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (c *ProtectEarthClient) CreateEntity(ctx context.Context, kind models.EntityKind, name string) (*models.Entity, error) {
	var resp peEntityResponse
	err := c.t.postJSON(ctx, "/api/v1/"+string(kind), map[string]string{"name": name}, &resp)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", kind, err)
	}
	return &models.Entity{ID: resp.ID, Name: resp.Name}, nil
}

type peTreeCreateRequest struct {
	ImageURL   string `json:"image_url"`
	Latitude   string `json:"latitude"`
	Longitude  string `json:"longitude"`
	PlantedAt  string `json:"planted_at"`
	Supervisor string `json:"supervisor"`
	Site       string `json:"site"`
	Species    string `json:"species"`
	Notes      string `json:"notes,omitempty"`
}

func (c *ProtectEarthClient) CreateTree(ctx context.Context, p models.TreePayload) (string, error) {
	req := peTreeCreateRequest{
		ImageURL:   p.ImageURL,
		Latitude:   p.Latitude,
		Longitude:  p.Longitude,
		PlantedAt:  p.PlantedAt.UTC().Format(time.RFC3339),
		Supervisor: p.SupervisorID,
		Site:       p.SiteID,
		Species:    p.SpeciesID,
		Notes:      p.Notes,
	}

	var resp peEntityResponse
	if err := c.t.postJSON(ctx, "/api/v1/trees", req, &resp); err != nil {
		return "", fmt.Errorf("failed to create tree: %w", err)
	}
	return resp.ID, nil
}

type peUploadResponse struct {
	SecureURL string `json:"secure_url"`
}

func (c *ProtectEarthClient) UploadImage(ctx context.Context, data []byte, md5 string, onProgress ProgressFunc) (string, error) {
	headers := map[string]string{}
	if md5 != "" {
		headers["X-Image-MD5"] = md5
	}

	var resp peUploadResponse
	err := c.t.postBinary(ctx, c.t.baseURL+"/api/v1/images", data, headers, onProgress, &resp)
	if err != nil {
		return "", err
	}
	if resp.SecureURL == "" {
		return "", fmt.Errorf("image upload returned no url")
	}
	return resp.SecureURL, nil
}

func (c *ProtectEarthClient) FetchImage(ctx context.Context, urlStr string) ([]byte, error) {
	return c.t.getBytes(ctx, urlStr)
}
