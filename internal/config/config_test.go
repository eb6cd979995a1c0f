package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, data map[string]any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfg.json")
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.LoadDefaults()

	assert.Equal(t, BackendProtectEarth, cfg.Backend)
	assert.Equal(t, 60*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 3, cfg.RetryCount)
	assert.Positive(t, cfg.CacheMaxCost)
}

func Test_parseJson_OverlaysConfig(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	path := writeTempJSON(t, map[string]any{
		"backend":         "airtable",
		"api_base_url":    "https://api.example.org",
		"bearer_token":    "tok123",
		"request_timeout": "10s",
		"retry_delay":     "500ms",
		"retry_count":     5,
		"cache_max_cost":  1000,
	})

	os.Args = []string{"testbin", "-config", path}

	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)

	assert.Equal(t, BackendAirtable, cfg.Backend)
	assert.Equal(t, "https://api.example.org", cfg.APIBaseURL)
	assert.Equal(t, "tok123", cfg.BearerToken)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.RetryDelay)
	assert.Equal(t, 5, cfg.RetryCount)
	assert.Equal(t, int64(1000), cfg.CacheMaxCost)
	// untouched fields keep their defaults
	assert.Equal(t, "treetrack.db", cfg.DatabasePath)
}

func Test_parseJson_NoFileNoChanges(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = []string{"testbin"}

	cfg := &Config{APIBaseURL: "keep-me"}
	parseJson(cfg)
	assert.Equal(t, "keep-me", cfg.APIBaseURL)
}

func Test_parseFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = []string{"testbin", "-u", "https://flag.example.org", "-b", "airtable"}

	cfg := &Config{}
	cfg.LoadDefaults()
	parseFlags(cfg)

	assert.Equal(t, "https://flag.example.org", cfg.APIBaseURL)
	assert.Equal(t, BackendAirtable, cfg.Backend)
}
