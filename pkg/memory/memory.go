package memory

import (
	"sync"
	"time"
)

// Turn is one user/assistant exchange.
type Turn struct {
	UserInput string    `json:"user_input"`
	Response  string    `json:"response"`
	Intent    string    `json:"intent"`
	Timestamp time.Time `json:"timestamp"`
}

// CommandRecord is one executed command.
type CommandRecord struct {
	Command   string    `json:"command"`
	Success   bool      `json:"success"`
	Timestamp time.Time `json:"timestamp"`
}

// Memory holds the bounded conversation and command buffers. Eviction is
// FIFO. Process-lifetime only; nothing is persisted.
type Memory struct {
	mu           sync.Mutex
	history      []Turn
	commands     []CommandRecord
	historyLimit int
	commandLimit int
}

// New creates a memory with the given caps (defaults 20 and 50).
func New(historyLimit, commandLimit int) *Memory {
	if historyLimit <= 0 {
		historyLimit = 20
	}
	if commandLimit <= 0 {
		commandLimit = 50
	}
	return &Memory{historyLimit: historyLimit, commandLimit: commandLimit}
}

// AddTurn appends one exchange, evicting the oldest past the cap.
func (m *Memory) AddTurn(t Turn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.Timestamp.IsZero() {
		t.Timestamp = time.Now()
	}
	m.history = append(m.history, t)
	if len(m.history) > m.historyLimit {
		m.history = m.history[len(m.history)-m.historyLimit:]
	}
}

// AddCommand appends one command record, evicting the oldest past the cap.
func (m *Memory) AddCommand(r CommandRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}
	m.commands = append(m.commands, r)
	if len(m.commands) > m.commandLimit {
		m.commands = m.commands[len(m.commands)-m.commandLimit:]
	}
}

// History returns a snapshot of the conversation buffer, oldest first.
func (m *Memory) History() []Turn {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Turn, len(m.history))
	copy(out, m.history)
	return out
}

// Commands returns a snapshot of the command log, oldest first.
func (m *Memory) Commands() []CommandRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]CommandRecord, len(m.commands))
	copy(out, m.commands)
	return out
}
