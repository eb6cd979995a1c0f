// Package config loads runtime settings for the treetrack core from
// defaults, an optional JSON file and command-line flags, in that order.
// Later sources take precedence over earlier ones.
package config

import "time"

// Backend selects which remote entity-service implementation to compose.
type Backend string

const (
	BackendProtectEarth Backend = "protectearth"
	BackendAirtable     Backend = "airtable"
)

// Config holds runtime settings for the treetrack core.
type Config struct {
	// Backend selects the remote gateway implementation.
	Backend Backend

	// APIBaseURL is the root of the backend REST API.
	APIBaseURL string

	// BearerToken is the static token attached to every request.
	BearerToken string

	// AirtableBase identifies the Airtable base when Backend is "airtable".
	AirtableBase string

	// RequestTimeout bounds each individual HTTP request.
	RequestTimeout time.Duration

	// RetryCount and RetryDelay drive the gateway's 5xx retry policy:
	// the same request is retried after a fixed delay, at most RetryCount
	// times, then the last error is surfaced.
	RetryCount int
	RetryDelay time.Duration

	// CacheMaxCost is the image-cache budget in bytes. Zero or negative
	// disables caching.
	CacheMaxCost int64

	// DatabasePath and ImageCachePath are the two sqlite files kept under
	// the app's private storage.
	DatabasePath   string
	ImageCachePath string

	// AssetDir is the directory standing in for the device media library.
	AssetDir string

	// LogPath is the rotated log file location.
	LogPath string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.Backend = BackendProtectEarth
	c.APIBaseURL = "https://api.protectearth.org"
	c.RequestTimeout = 60 * time.Second
	c.RetryCount = 3
	c.RetryDelay = 2 * time.Second
	c.CacheMaxCost = 64 << 20
	c.DatabasePath = "treetrack.db"
	c.ImageCachePath = "imagecache.db"
	c.AssetDir = "assets"
	c.LogPath = "treetrack.log"
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present).
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
