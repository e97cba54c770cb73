package mcp

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/mingkeli/devagent/pkg/platform"
)

// DefaultCacheTTL is how long a discovery cache stays valid.
const DefaultCacheTTL = 24 * time.Hour

// CachedTool is one tool entry persisted in the discovery cache.
type CachedTool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
	ServerName  string                 `json:"server_name"`
}

// Cache is the on-disk discovery cache document. Unknown fields are
// tolerated; missing keys disqualify the cache.
type Cache struct {
	Timestamp time.Time                        `json:"timestamp"`
	Tools     map[string]map[string]CachedTool `json:"tools"`
}

// LoadCache reads the cache at path, rejecting documents older than ttl or
// missing required keys. Tools of servers no longer in configured are
// dropped.
func LoadCache(path string, ttl time.Duration, configured map[string]ServerConfig) (*Cache, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tools cache: %w", err)
	}
	var cache Cache
	if err := json.Unmarshal(data, &cache); err != nil {
		return nil, fmt.Errorf("failed to parse tools cache: %w", err)
	}
	if cache.Timestamp.IsZero() || cache.Tools == nil {
		return nil, fmt.Errorf("tools cache is missing required keys")
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if platform.Now().Sub(cache.Timestamp) > ttl {
		return nil, fmt.Errorf("tools cache expired (age %v)", platform.Now().Sub(cache.Timestamp))
	}
	for server := range cache.Tools {
		if _, ok := configured[server]; !ok {
			delete(cache.Tools, server)
		}
	}
	return &cache, nil
}

// SaveCache atomically rewrites the cache file (write temp, then rename).
func SaveCache(path string, tools map[string]map[string]CachedTool) error {
	cache := Cache{Timestamp: platform.Now(), Tools: tools}
	data, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize tools cache: %w", err)
	}
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write tools cache: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to finalize tools cache: %w", err)
	}
	return nil
}
