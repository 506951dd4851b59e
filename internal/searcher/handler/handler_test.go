package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/conda-suggest/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/conda-suggest/internal/searcher/lookup"
	"github.com/Adithya-Monish-Kumar-K/conda-suggest/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errMissing = errors.New("missing")

type memStore struct {
	mu   sync.Mutex
	data map[string]string
}

func (s *memStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	if !ok {
		return "", errMissing
	}
	return v, nil
}

func (s *memStore) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value.(string)
	return nil
}

func (s *memStore) FlushByPattern(_ context.Context, _ string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := int64(len(s.data))
	s.data = map[string]string{}
	return n, nil
}

func newServer(t *testing.T, withCache bool, maxResults int) (*httptest.Server, *Handler) {
	t.Helper()
	dir := t.TempDir()
	content := "gcc:c-compiler\ngcc:fortran-compiler\nzzdir:zziplib\nzzxordir:zziplib\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "conda-forge.linux-64.map"), []byte(content), 0o644))

	var results *cache.ResultCache
	if withCache {
		results = cache.NewResultCache(&memStore{data: map[string]string{}}, time.Minute,
			func(err error) bool { return errors.Is(err, errMissing) })
	}
	engine := lookup.NewEngine(cache.NewMapFileCache(nil))
	h := New(engine, results, metrics.New(prometheus.NewRegistry()), []string{dir}, maxResults)
	mux := http.NewServeMux()
	h.Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, h
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp.StatusCode
}

func TestFindExact(t *testing.T) {
	srv, _ := newServer(t, false, 0)
	var body FindResponse
	status := getJSON(t, srv.URL+"/api/v1/find?exe=gcc", &body)

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "exact", string(body.Mode))
	assert.Equal(t, []lookup.Result{
		{Channel: "conda-forge", Subdir: "linux-64", Executable: "gcc", Package: "c-compiler"},
		{Channel: "conda-forge", Subdir: "linux-64", Executable: "gcc", Package: "fortran-compiler"},
	}, body.Results)
}

func TestFindModes(t *testing.T) {
	srv, _ := newServer(t, false, 0)
	tests := []struct {
		query  string
		status int
		count  int
	}{
		{"exe=dir&mode=substring", http.StatusOK, 2},
		{"exe=%5Ezzx&mode=regex", http.StatusOK, 1},
		{"exe=gc&mode=fuzzy", http.StatusOK, 2},
		{"exe=nothing", http.StatusOK, 0},
		{"exe=(&mode=regex", http.StatusBadRequest, 0},
		{"exe=x&mode=glob", http.StatusBadRequest, 0},
		{"mode=exact", http.StatusBadRequest, 0},
	}
	for _, tc := range tests {
		t.Run(tc.query, func(t *testing.T) {
			var body FindResponse
			status := getJSON(t, srv.URL+"/api/v1/find?"+tc.query, &body)
			assert.Equal(t, tc.status, status)
			assert.Len(t, body.Results, tc.count)
		})
	}
}

func TestFindTruncates(t *testing.T) {
	srv, _ := newServer(t, false, 1)
	var body FindResponse
	getJSON(t, srv.URL+"/api/v1/find?exe=z&mode=substring", &body)
	assert.Len(t, body.Results, 1)
	assert.True(t, body.Truncated)
}

func TestMessageCached(t *testing.T) {
	srv, _ := newServer(t, true, 0)

	var first, second MessageResponse
	getJSON(t, srv.URL+"/api/v1/message?exe=gcc", &first)
	getJSON(t, srv.URL+"/api/v1/message?exe=gcc", &second)

	assert.False(t, first.Cached)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Message, second.Message)
	assert.True(t, strings.HasPrefix(first.Message, "Command 'gcc' not found in the environment, but can be installed"))
}

func TestMessageSurvivesCancelledRequester(t *testing.T) {
	_, h := newServer(t, true, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/message?exe=gcc", nil).WithContext(ctx)
	h.Message(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body MessageResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.True(t, strings.HasPrefix(body.Message, "Command 'gcc' not found in the environment, but can be installed"))
}

func TestMessageWithoutCache(t *testing.T) {
	srv, _ := newServer(t, false, 0)
	var body MessageResponse
	status := getJSON(t, srv.URL+"/api/v1/message?exe=ls", &body)
	assert.Equal(t, http.StatusOK, status)
	assert.False(t, body.Cached)
	assert.Equal(t, "Command 'ls' not found in the environment or in any known package.", body.Message)
}

func TestCacheStatsAndClear(t *testing.T) {
	srv, h := newServer(t, true, 0)
	var msg MessageResponse
	getJSON(t, srv.URL+"/api/v1/message?exe=gcc", &msg)
	assert.Equal(t, 1, h.engine.Cache().Len())

	var stats map[string]map[string]any
	getJSON(t, srv.URL+"/api/v1/cache/stats", &stats)
	assert.Equal(t, 1.0, stats["map_files"]["cached"])
	assert.Equal(t, 1.0, stats["results"]["misses"])

	resp, err := http.Post(srv.URL+"/api/v1/cache/clear", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 0, h.engine.Cache().Len())

	getJSON(t, srv.URL+"/api/v1/message?exe=gcc", &msg)
	assert.False(t, msg.Cached)
}

func TestCacheStatsDisabled(t *testing.T) {
	srv, _ := newServer(t, false, 0)
	var stats map[string]map[string]any
	getJSON(t, srv.URL+"/api/v1/cache/stats", &stats)
	assert.Equal(t, "disabled", stats["results"]["status"])
}

func TestClearMethodNotAllowed(t *testing.T) {
	srv, _ := newServer(t, false, 0)
	resp, err := http.Get(srv.URL + "/api/v1/cache/clear")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
