package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/mingkeli/devagent/pkg/utils"
)

const (
	// perServerTimeout bounds one tools/list round trip.
	perServerTimeout = 3 * time.Second
	// overallTimeout bounds one parallel discovery pass.
	overallTimeout = 5 * time.Second
	// discoveryWorkers bounds discovery parallelism.
	discoveryWorkers = 5
)

// Discoverer runs tools/list against every configured server in parallel.
type Discoverer struct {
	servers map[string]ServerConfig
	logger  *utils.Logger
}

// NewDiscoverer creates a discoverer over the configured server set.
func NewDiscoverer(servers map[string]ServerConfig, logger *utils.Logger) *Discoverer {
	return &Discoverer{servers: servers, logger: logger}
}

// DiscoverAll queries all servers with a bounded worker pool. A failing
// server disables only its own tools; the returned map contains one entry
// per server that answered.
func (d *Discoverer) DiscoverAll(ctx context.Context) map[string][]ToolDescriptor {
	ctx, cancel := context.WithTimeout(ctx, overallTimeout)
	defer cancel()

	type job struct {
		name string
		cfg  ServerConfig
	}
	type outcome struct {
		name  string
		tools []ToolDescriptor
		err   error
	}

	jobs := make(chan job, len(d.servers))
	results := make(chan outcome, len(d.servers))

	var wg sync.WaitGroup
	for i := 0; i < discoveryWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				tools, err := d.discoverOne(ctx, j.cfg)
				results <- outcome{name: j.name, tools: tools, err: err}
			}
		}()
	}
	for name, cfg := range d.servers {
		cfg.Name = name
		jobs <- job{name: name, cfg: cfg}
	}
	close(jobs)
	wg.Wait()
	close(results)

	found := make(map[string][]ToolDescriptor)
	for res := range results {
		if res.err != nil {
			if d.logger != nil {
				d.logger.Warnf("tool discovery failed for %s: %v", res.name, res.err)
			}
			continue
		}
		found[res.name] = res.tools
	}
	return found
}

// discoverOne performs a single tools/list round trip with the per-server
// deadline.
func (d *Discoverer) discoverOne(ctx context.Context, cfg ServerConfig) ([]ToolDescriptor, error) {
	ctx, cancel := context.WithTimeout(ctx, perServerTimeout)
	defer cancel()

	msg, err := roundTrip(ctx, cfg, Message{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/list",
		Params:  map[string]interface{}{},
	})
	if err != nil {
		return nil, err
	}

	var result listResult
	if err := json.Unmarshal(msg.Result, &result); err != nil {
		return nil, fmt.Errorf("server %s returned malformed tools/list result: %w", cfg.Name, err)
	}
	if result.Tools == nil {
		return nil, fmt.Errorf("server %s response has no tools array", cfg.Name)
	}
	return result.Tools, nil
}
