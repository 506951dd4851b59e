package refresh

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/conda-suggest/internal/index/events"
	"github.com/Adithya-Monish-Kumar-K/conda-suggest/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/conda-suggest/internal/searcher/lookup"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encode(t *testing.T, e events.IndexEvent) []byte {
	t.Helper()
	data, err := json.Marshal(e)
	require.NoError(t, err)
	return data
}

func TestHandleMessageClears(t *testing.T) {
	calls := 0
	h := HandleMessage(func(context.Context) error {
		calls++
		return nil
	})
	event := events.IndexEvent{Channel: "conda-forge", Subdir: "linux-64", Entries: 3, GeneratedAt: time.Now()}
	require.NoError(t, h(context.Background(), []byte(event.Key()), encode(t, event)))
	assert.Equal(t, 1, calls)
}

func TestHandleMessageSkipsMalformed(t *testing.T) {
	calls := 0
	h := HandleMessage(func(context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, h(context.Background(), nil, []byte("{not json")))
	assert.Zero(t, calls)
}

func TestHandleMessagePropagatesClearError(t *testing.T) {
	boom := errors.New("redis down")
	h := HandleMessage(func(context.Context) error { return boom })
	err := h(context.Background(), nil, encode(t, events.IndexEvent{Channel: "c", Subdir: "s"}))
	require.ErrorIs(t, err, boom)
}

// A rewritten map file becomes visible once its IndexEvent is handled.
func TestRewriteVisibleAfterEvent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conda-forge.linux-64.map")
	require.NoError(t, os.WriteFile(path, []byte("old:pkg\n"), 0o644))

	mapFiles := cache.NewMapFileCache(nil)
	engine := lookup.NewEngine(mapFiles)
	ctx := context.Background()

	got, err := engine.ExactFind(ctx, "new", []string{dir})
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, os.WriteFile(path, []byte("new:pkg\n"), 0o644))
	got, err = engine.ExactFind(ctx, "new", []string{dir})
	require.NoError(t, err)
	assert.Empty(t, got, "cache is not invalidated against disk")

	h := HandleMessage(func(context.Context) error {
		mapFiles.Clear()
		return nil
	})
	require.NoError(t, h(ctx, nil, encode(t, events.IndexEvent{Channel: "conda-forge", Subdir: "linux-64", Path: path})))

	got, err = engine.ExactFind(ctx, "new", []string{dir})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
