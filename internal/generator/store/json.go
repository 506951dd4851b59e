package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// JSONFileStore keeps each cache in <Dir>/<channel>.<subdir>.cache.json with
// sorted keys and a one-space indent.
type JSONFileStore struct {
	dir    string
	logger *slog.Logger
}

func NewJSONFileStore(dir string) *JSONFileStore {
	return &JSONFileStore{
		dir:    dir,
		logger: slog.Default().With("component", "json-cache-store"),
	}
}

// Path returns the cache file of (channel, subdir).
func (s *JSONFileStore) Path(channel, subdir string) string {
	return filepath.Join(s.dir, channel+"."+subdir+".cache.json")
}

func (s *JSONFileStore) Load(_ context.Context, channel, subdir string) (ArtifactCache, error) {
	path := s.Path(channel, subdir)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return ArtifactCache{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading cache file %s: %w", path, err)
	}
	cache := ArtifactCache{}
	if err := json.Unmarshal(data, &cache); err != nil {
		return nil, fmt.Errorf("decoding cache file %s: %w", path, err)
	}
	s.logger.Info("cache loaded", "path", path, "artifacts", len(cache))
	return cache, nil
}

func (s *JSONFileStore) Save(_ context.Context, channel, subdir string, cache ArtifactCache, _ []string) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}
	data, err := json.MarshalIndent(cache, "", " ")
	if err != nil {
		return fmt.Errorf("encoding cache: %w", err)
	}
	path := s.Path(channel, subdir)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("writing cache file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming cache file: %w", err)
	}
	s.logger.Debug("cache saved", "path", path, "artifacts", len(cache))
	return nil
}
