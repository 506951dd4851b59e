// Package repodata reads a channel's package index and fetches its
// artifacts, from a local directory or over HTTP.
package repodata

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/conda-suggest/pkg/errors"
)

// FileName is the index file every subdir carries.
const FileName = "repodata.json"

// Package is the per-artifact record of the index. Only the fields the
// generator reads are decoded.
type Package struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Build   string `json:"build"`
}

// Repodata is a decoded repodata.json.
type Repodata struct {
	Info struct {
		Subdir string `json:"subdir"`
	} `json:"info"`
	Packages      map[string]Package `json:"packages"`
	PackagesConda map[string]Package `json:"packages.conda"`
}

// All merges the .tar.bz2 and .conda records, keyed by artifact file name.
func (r *Repodata) All() map[string]Package {
	all := make(map[string]Package, len(r.Packages)+len(r.PackagesConda))
	maps.Copy(all, r.Packages)
	maps.Copy(all, r.PackagesConda)
	return all
}

// Artifacts returns every artifact file name, sorted.
func (r *Repodata) Artifacts() []string {
	return slices.Sorted(maps.Keys(r.All()))
}

// Load fetches and decodes <subdir>/repodata.json from src.
func Load(ctx context.Context, src Source, subdir string) (*Repodata, error) {
	blob, err := src.Fetch(ctx, subdir, FileName)
	if err != nil {
		return nil, err
	}
	defer blob.Close()
	var rd Repodata
	if err := json.NewDecoder(blob).Decode(&rd); err != nil {
		return nil, fmt.Errorf("%w: decoding %s/%s: %w", apperrors.ErrRepodata, subdir, FileName, err)
	}
	return &rd, nil
}

// ChannelName is the last path segment of a channel directory or URL.
func ChannelName(channel string) string {
	trimmed := strings.TrimRight(channel, "/")
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		return trimmed[i+1:]
	}
	return trimmed
}
