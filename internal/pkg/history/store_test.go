package history

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cloudlab-agent/internal/pkg/agent"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRecordAndRecent(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return at }

	require.NoError(t, s.Record(ctx, "  uptime\n", &agent.CommandResult{
		Node: "node-1", Stdout: []string{"up 1 day"}, ExitStatus: 0, Duration: 40 * time.Millisecond,
	}))
	require.NoError(t, s.Record(ctx, "false", &agent.CommandResult{
		Node: "node-2", Stderr: []string{"a", "b"}, ExitStatus: 1,
	}))
	require.NoError(t, s.Record(ctx, "uptime", &agent.CommandResult{
		Node: "node-3", ExitStatus: -1, Err: &agent.ConnectionError{Node: "node-3", Err: errors.New("refused")},
	}))

	all, err := s.Recent(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "node-3", all[0].Node, "newest first")
	assert.Equal(t, "node node-3: refused", all[0].Error)
	assert.Equal(t, "a\nb", all[1].Stderr)
	assert.Equal(t, "uptime", all[2].Command)
	assert.Equal(t, 40*time.Millisecond, all[2].Duration)
	assert.True(t, at.Equal(all[2].At))

	one, err := s.Recent(ctx, "node-2", 10)
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, 1, one[0].ExitStatus)

	limited, err := s.Recent(ctx, "", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestConcurrentRecords(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, s.Record(ctx, "hostname", &agent.CommandResult{Node: fmt.Sprintf("node-%d", i)}))
		}(i)
	}
	wg.Wait()

	entries, err := s.Recent(ctx, "", 100)
	require.NoError(t, err)
	assert.Len(t, entries, 20)
}

func TestOpenFailsOnDirectory(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing", "dir", "history.db"))
	assert.Error(t, err)
}
