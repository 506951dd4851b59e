// Package store persists the generator's per-(channel, subdir) artifact
// cache so that reruns only inspect new artifacts.
package store

import (
	"context"
	"slices"
)

// Entry is what the generator learned about one artifact.
type Entry struct {
	Executables []string `json:"executables"`
	Package     string   `json:"package"`
}

// ArtifactCache maps artifact file names to their entries.
type ArtifactCache map[string]Entry

// Needed returns the sorted artifacts of available that the cache lacks.
func (c ArtifactCache) Needed(available []string) []string {
	var needed []string
	for _, artifact := range available {
		if _, ok := c[artifact]; !ok {
			needed = append(needed, artifact)
		}
	}
	slices.Sort(needed)
	return needed
}

// Store loads and saves artifact caches. Load of an unknown
// (channel, subdir) returns an empty cache. changed lists the artifacts
// added since the previous Save; stores that rewrite everything ignore it.
type Store interface {
	Load(ctx context.Context, channel, subdir string) (ArtifactCache, error)
	Save(ctx context.Context, channel, subdir string, cache ArtifactCache, changed []string) error
}
