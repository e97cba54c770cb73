package procman

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *store {
	t.Helper()
	dir := t.TempDir()
	return newStore(filepath.Join(dir, "state.json"), filepath.Join(dir, "history.json"), nil)
}

func TestStoreRoundTrip(t *testing.T) {
	s := newTestStore(t)
	rec := Record{
		PID:       os.Getpid(),
		Command:   "pnpm dev",
		Type:      "node",
		Port:      "5173",
		LogFile:   "/tmp/x.log",
		StartedAt: time.Now(),
	}
	require.NoError(t, s.add(rec))

	// A fresh store over the same files sees the record: our own pid is
	// alive, so the sweep keeps it.
	s2 := newStore(s.statePath, s.historyPath, nil)
	require.NoError(t, s2.load())

	got, ok := s2.get(os.Getpid())
	require.True(t, ok)
	assert.Equal(t, "pnpm dev", got.Command)
	assert.Equal(t, "5173", got.Port)
}

func TestLoadPrunesDeadProcesses(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.add(Record{PID: os.Getpid(), Command: "alive"}))
	// A pid far beyond any default pid_max.
	require.NoError(t, s.add(Record{PID: 99999999, Command: "dead"}))

	s2 := newStore(s.statePath, s.historyPath, nil)
	require.NoError(t, s2.load())

	assert.Len(t, s2.list(), 1)
	_, ok := s2.get(99999999)
	assert.False(t, ok)

	// The pruned state was saved back: a third load sees one record too.
	s3 := newStore(s.statePath, s.historyPath, nil)
	require.NoError(t, s3.load())
	assert.Len(t, s3.list(), 1)
}

func TestLoadMissingFileIsClean(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.load())
	assert.Empty(t, s.list())
}

func TestRemoveWritesStopEvent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.add(Record{PID: os.Getpid(), Command: "pnpm dev", Port: "3000", StartedAt: time.Now()}))
	require.NoError(t, s.remove(os.Getpid()))

	assert.Empty(t, s.list())

	events := s.history()
	require.Len(t, events, 2)
	assert.Equal(t, "start", events[0].Event)
	assert.Equal(t, "stop", events[1].Event)
	require.NotNil(t, events[1].EndedAt)
	assert.Equal(t, "3000", events[1].Port)
}

func TestRemoveUnknownPIDIsNoop(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.remove(12345))
	assert.Empty(t, s.history())
}
