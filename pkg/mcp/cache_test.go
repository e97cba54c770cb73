package mcp

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mingkeli/devagent/pkg/platform"
)

func freezeClock(t *testing.T, at time.Time) {
	t.Helper()
	orig := platform.Now
	platform.Now = func() time.Time { return at }
	t.Cleanup(func() { platform.Now = orig })
}

func sampleTools() map[string]map[string]CachedTool {
	return map[string]map[string]CachedTool{
		"weather": {
			"get_forecast": {
				Name:        "get_forecast",
				Description: "查询天气预报",
				Parameters:  map[string]interface{}{"type": "object"},
				ServerName:  "weather",
			},
		},
		"search": {
			"web_search": {Name: "web_search", ServerName: "search"},
		},
	}
}

func TestCacheRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tools_cache.json")
	require.NoError(t, SaveCache(path, sampleTools()))

	configured := map[string]ServerConfig{
		"weather": {Command: "weather-server"},
		"search":  {Command: "search-server"},
	}
	cache, err := LoadCache(path, DefaultCacheTTL, configured)
	require.NoError(t, err)
	require.Len(t, cache.Tools, 2)
	assert.Equal(t, "查询天气预报", cache.Tools["weather"]["get_forecast"].Description)
}

func TestCacheSaveLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tools_cache.json")
	require.NoError(t, SaveCache(path, sampleTools()))

	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestCacheExpiry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tools_cache.json")
	written := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	freezeClock(t, written)
	require.NoError(t, SaveCache(path, sampleTools()))

	configured := map[string]ServerConfig{"weather": {}, "search": {}}

	// Still fresh just inside the TTL.
	freezeClock(t, written.Add(23*time.Hour))
	_, err := LoadCache(path, DefaultCacheTTL, configured)
	assert.NoError(t, err)

	// Expired past it.
	freezeClock(t, written.Add(25*time.Hour))
	_, err = LoadCache(path, DefaultCacheTTL, configured)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expired")
}

func TestCacheMissingKeys(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no timestamp", `{"tools":{}}`},
		{"no tools", `{"timestamp":"2025-03-01T12:00:00Z"}`},
		{"empty object", `{}`},
	}

	freezeClock(t, time.Date(2025, 3, 1, 13, 0, 0, 0, time.UTC))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "tools_cache.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.body), 0644))

			_, err := LoadCache(path, DefaultCacheTTL, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "missing required keys")
		})
	}
}

func TestCacheDropsUnconfiguredServers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tools_cache.json")
	require.NoError(t, SaveCache(path, sampleTools()))

	// Only weather remains configured; search tools must be dropped.
	cache, err := LoadCache(path, DefaultCacheTTL, map[string]ServerConfig{"weather": {}})
	require.NoError(t, err)
	assert.Len(t, cache.Tools, 1)
	assert.Contains(t, cache.Tools, "weather")
	assert.NotContains(t, cache.Tools, "search")
}

func TestCacheMissingFile(t *testing.T) {
	_, err := LoadCache(filepath.Join(t.TempDir(), "nope.json"), DefaultCacheTTL, nil)
	assert.Error(t, err)
}
