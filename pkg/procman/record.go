package procman

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/mingkeli/devagent/pkg/runner"
	"github.com/mingkeli/devagent/pkg/utils"
)

// Record describes one managed long-running process.
type Record struct {
	PID       int       `json:"pid"`
	Command   string    `json:"command"`
	Type      string    `json:"type"`
	Port      string    `json:"port,omitempty"`
	LogFile   string    `json:"log_file"`
	StartedAt time.Time `json:"started_at"`
}

// HistoryEvent is one append-only lifecycle event.
type HistoryEvent struct {
	Event     string     `json:"event"` // "start" or "stop"
	PID       int        `json:"pid"`
	Command   string     `json:"command"`
	Port      string     `json:"port,omitempty"`
	LogFile   string     `json:"log_file,omitempty"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// store persists the process registry across orchestrator restarts. A single
// lock covers file IO and the in-memory map; saves are atomic.
type store struct {
	mu          sync.Mutex
	statePath   string
	historyPath string
	records     map[int]Record
	logger      *utils.Logger
}

func newStore(statePath, historyPath string, logger *utils.Logger) *store {
	return &store{
		statePath:   statePath,
		historyPath: historyPath,
		records:     make(map[int]Record),
		logger:      logger,
	}
}

// load reads the state file and performs the liveness sweep: recorded pids
// whose process is gone are dropped (and the pruned state saved back).
func (s *store) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.statePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read process state: %w", err)
	}

	var raw map[string]Record
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse process state: %w", err)
	}

	pruned := 0
	for pidStr, rec := range raw {
		pid, err := strconv.Atoi(pidStr)
		if err != nil {
			continue
		}
		rec.PID = pid
		if !runner.IsProcessAlive(pid) {
			pruned++
			continue
		}
		s.records[pid] = rec
	}
	if pruned > 0 {
		if s.logger != nil {
			s.logger.Infof("liveness sweep removed %d dead process records", pruned)
		}
		return s.saveLocked()
	}
	return nil
}

// saveLocked atomically rewrites the state file. Callers hold s.mu.
func (s *store) saveLocked() error {
	out := make(map[string]Record, len(s.records))
	for pid, rec := range s.records {
		out[strconv.Itoa(pid)] = rec
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize process state: %w", err)
	}
	if dir := filepath.Dir(s.statePath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create state directory: %w", err)
		}
	}
	tempPath := s.statePath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write process state: %w", err)
	}
	if err := os.Rename(tempPath, s.statePath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to finalize process state: %w", err)
	}
	return nil
}

func (s *store) add(rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.PID] = rec
	if err := s.saveLocked(); err != nil {
		return err
	}
	return s.appendHistoryLocked(HistoryEvent{
		Event:     "start",
		PID:       rec.PID,
		Command:   rec.Command,
		Port:      rec.Port,
		LogFile:   rec.LogFile,
		StartedAt: rec.StartedAt,
	})
}

func (s *store) remove(pid int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[pid]
	if !ok {
		return nil
	}
	delete(s.records, pid)
	if err := s.saveLocked(); err != nil {
		return err
	}
	now := time.Now()
	return s.appendHistoryLocked(HistoryEvent{
		Event:     "stop",
		PID:       pid,
		Command:   rec.Command,
		Port:      rec.Port,
		LogFile:   rec.LogFile,
		StartedAt: rec.StartedAt,
		EndedAt:   &now,
	})
}

func (s *store) list() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	return out
}

func (s *store) get(pid int) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[pid]
	return rec, ok
}

// appendHistoryLocked appends one event to the history array. History is
// best-effort: a corrupt file is replaced rather than failing a stop.
func (s *store) appendHistoryLocked(event HistoryEvent) error {
	var events []HistoryEvent
	if data, err := os.ReadFile(s.historyPath); err == nil {
		_ = json.Unmarshal(data, &events)
	}
	events = append(events, event)
	data, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize process history: %w", err)
	}
	tempPath := s.historyPath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write process history: %w", err)
	}
	if err := os.Rename(tempPath, s.historyPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to finalize process history: %w", err)
	}
	return nil
}

// history returns the persisted lifecycle events, oldest first.
func (s *store) history() []HistoryEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var events []HistoryEvent
	if data, err := os.ReadFile(s.historyPath); err == nil {
		_ = json.Unmarshal(data, &events)
	}
	return events
}
