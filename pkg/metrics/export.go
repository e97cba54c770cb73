package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Export is the JSON document rewritten on each export interval.
type Export struct {
	ExportTime    time.Time    `json:"export_time"`
	SessionStats  SessionStats `json:"session_stats"`
	RecentMetrics []Sample     `json:"recent_metrics"`
}

// ExportTo writes the current stats and the last 100 samples to path.
// The write is atomic (temp file then rename) so readers never observe a
// torn document.
func (c *Collector) ExportTo(path string) error {
	doc := Export{
		ExportTime:    time.Now(),
		SessionStats:  c.Stats(),
		RecentMetrics: c.Recent(exportTail),
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize metrics export: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create export directory: %w", err)
		}
	}
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write metrics export: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to finalize metrics export: %w", err)
	}
	return nil
}

// StartAutoExport rewrites the export file every interval until the context
// is cancelled. Export is best-effort: IO failures are logged, never raised.
func (c *Collector) StartAutoExport(ctx context.Context, interval time.Duration, path string) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := c.ExportTo(path); err != nil && c.logger != nil {
					c.logger.Warnf("metrics export failed: %v", err)
				}
			}
		}
	}()
}

// ImportExport reads a previously written export document back.
func ImportExport(path string) (*Export, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read metrics export: %w", err)
	}
	var doc Export
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse metrics export: %w", err)
	}
	return &doc, nil
}
