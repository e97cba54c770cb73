package mcp

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mingkeli/devagent/pkg/tools"
	"github.com/mingkeli/devagent/pkg/utils"
)

// Manager ties discovery, the disk cache, and the tool registry together.
// On startup the cache populates the registry immediately; a background
// refresh then re-discovers every configured server and rewrites the cache.
type Manager struct {
	servers    map[string]ServerConfig
	cachePath  string
	cacheTTL   time.Duration
	registry   *tools.Registry
	discoverer *Discoverer
	dispatcher *Dispatcher
	logger     *utils.Logger

	refreshMu sync.Mutex
}

// NewManager creates a manager over the configured external servers.
func NewManager(servers map[string]ServerConfig, cachePath string, cacheTTL time.Duration, registry *tools.Registry, logger *utils.Logger) *Manager {
	if cacheTTL <= 0 {
		cacheTTL = DefaultCacheTTL
	}
	return &Manager{
		servers:    servers,
		cachePath:  cachePath,
		cacheTTL:   cacheTTL,
		registry:   registry,
		discoverer: NewDiscoverer(servers, logger),
		dispatcher: NewDispatcher(servers, logger),
		logger:     logger,
	}
}

// Start loads the cache synchronously, then refreshes discovery on a
// background goroutine so orchestrator startup is never blocked on slow
// servers. Cache failures are non-fatal.
func (m *Manager) Start(ctx context.Context) {
	if cache, err := LoadCache(m.cachePath, m.cacheTTL, m.servers); err == nil {
		for server, entries := range cache.Tools {
			m.registerServerTools(server, entries)
		}
		if m.logger != nil {
			m.logger.Infof("loaded %d cached tool servers", len(cache.Tools))
		}
	} else if m.logger != nil {
		m.logger.Debugf("tools cache unavailable: %v", err)
	}

	if len(m.servers) == 0 {
		return
	}
	go m.Refresh(ctx)
}

// Refresh re-discovers every configured server, merges the results into the
// registry, and rewrites the cache on any success.
func (m *Manager) Refresh(ctx context.Context) {
	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()

	found := m.discoverer.DiscoverAll(ctx)
	if len(found) == 0 {
		return
	}

	cacheDoc := make(map[string]map[string]CachedTool)
	for server, descriptors := range found {
		entries := make(map[string]CachedTool, len(descriptors))
		for _, d := range descriptors {
			entries[d.Name] = CachedTool{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  d.InputSchema,
				ServerName:  server,
			}
		}
		cacheDoc[server] = entries
		m.registerServerTools(server, entries)
	}

	if err := SaveCache(m.cachePath, cacheDoc); err != nil && m.logger != nil {
		m.logger.Warnf("failed to save tools cache: %v", err)
	}
}

func (m *Manager) registerServerTools(server string, entries map[string]CachedTool) {
	converted := make([]tools.Entry, 0, len(entries))
	for _, e := range entries {
		converted = append(converted, tools.Entry{
			Name:        e.Name,
			Description: e.Description,
			Parameters:  e.Parameters,
			ServerName:  server,
		})
	}
	m.registry.ReplaceServer(server, converted)
}

// CallToolByName resolves a registered external tool and dispatches the
// call. Unregistered names produce the standard unknown-tool outcome.
func (m *Manager) CallToolByName(ctx context.Context, toolName string, args map[string]interface{}) *CallOutcome {
	entry, ok := m.registry.Get(toolName)
	if !ok || entry.Kind != tools.KindExternal {
		return &CallOutcome{Success: false, Error: fmt.Sprintf("未知的工具: %s", toolName)}
	}
	return m.dispatcher.CallTool(ctx, entry.ServerName, toolName, args)
}

// Dispatcher exposes the underlying dispatcher for direct server calls.
func (m *Manager) Dispatcher() *Dispatcher {
	return m.dispatcher
}
