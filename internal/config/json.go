package config

import (
	"encoding/json"
	"os"

	"github.com/oaktrail/treetrack/internal/flagx"
	"github.com/oaktrail/treetrack/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. It relies on
// timex.Duration so JSON can specify intervals either as strings like "3s"
// or as integer nanoseconds. Zero values mean "not set" and leave the
// corresponding Config field untouched.
type JsonConfig struct {
	Backend        string         `json:"backend"`
	APIBaseURL     string         `json:"api_base_url"`
	BearerToken    string         `json:"bearer_token"`
	AirtableBase   string         `json:"airtable_base"`
	RequestTimeout timex.Duration `json:"request_timeout"`
	RetryCount     int            `json:"retry_count"`
	RetryDelay     timex.Duration `json:"retry_delay"`
	CacheMaxCost   int64          `json:"cache_max_cost"`
	DatabasePath   string         `json:"database_path"`
	ImageCachePath string         `json:"image_cache_path"`
	AssetDir       string         `json:"asset_dir"`
	LogPath        string         `json:"log_path"`
}

// parseJson overlays cfg with values loaded from the JSON file named by the
// -c/-config flags. When no file is given the function is a no-op; read or
// unmarshal errors panic (the process cannot run half-configured).
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.Backend != "" {
		cfg.Backend = Backend(jc.Backend)
	}
	if jc.APIBaseURL != "" {
		cfg.APIBaseURL = jc.APIBaseURL
	}
	if jc.BearerToken != "" {
		cfg.BearerToken = jc.BearerToken
	}
	if jc.AirtableBase != "" {
		cfg.AirtableBase = jc.AirtableBase
	}
	if jc.RequestTimeout.Duration > 0 {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
	if jc.RetryCount > 0 {
		cfg.RetryCount = jc.RetryCount
	}
	if jc.RetryDelay.Duration > 0 {
		cfg.RetryDelay = jc.RetryDelay.Duration
	}
	if jc.CacheMaxCost != 0 {
		cfg.CacheMaxCost = jc.CacheMaxCost
	}
	if jc.DatabasePath != "" {
		cfg.DatabasePath = jc.DatabasePath
	}
	if jc.ImageCachePath != "" {
		cfg.ImageCachePath = jc.ImageCachePath
	}
	if jc.AssetDir != "" {
		cfg.AssetDir = jc.AssetDir
	}
	if jc.LogPath != "" {
		cfg.LogPath = jc.LogPath
	}
}
