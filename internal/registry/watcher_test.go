package registry

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/soyeahso/switchboard/internal/domain"
	"github.com/soyeahso/switchboard/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_ReloadsOnExternalSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agents.json")
	fs := store.NewFileStore(path)

	reg := New(fs, testLogger())
	require.NoError(t, reg.Load())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var reloads atomic.Int32
	w := NewWatcher(reg, path, testLogger())
	w.OnReload(func() { reloads.Add(1) })
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Give the watcher a moment to install before the external write.
	time.Sleep(100 * time.Millisecond)

	external := store.NewFileStore(path)
	require.NoError(t, external.Save(store.State{
		Agents: []domain.Agent{
			{ID: "main", IsDefault: true},
			{ID: "edited-by-hand"},
		},
	}))

	require.Eventually(t, func() bool {
		return reg.Snapshot().Has("edited-by-hand")
	}, 5*time.Second, 50*time.Millisecond)
	assert.GreaterOrEqual(t, reloads.Load(), int32(1))

	cancel()
	assert.NoError(t, <-done)
}
