package lookup

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/conda-suggest/internal/index/locator"
	"github.com/Adithya-Monish-Kumar-K/conda-suggest/internal/index/mapfile"
	"github.com/Adithya-Monish-Kumar-K/conda-suggest/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/conda-suggest/internal/searcher/matcher"
	"golang.org/x/sync/errgroup"
)

// Result is a fully qualified answer: the channel and subdir whose map file
// lists the executable as provided by the package.
type Result struct {
	Channel    string `json:"channel"`
	Subdir     string `json:"subdir"`
	Executable string `json:"executable"`
	Package    string `json:"package"`
}

func (r Result) less(o Result) bool {
	if r.Channel != o.Channel {
		return r.Channel < o.Channel
	}
	if r.Subdir != o.Subdir {
		return r.Subdir < o.Subdir
	}
	if r.Executable != o.Executable {
		return r.Executable < o.Executable
	}
	return r.Package < o.Package
}

const defaultLoadWorkers = 4

// Engine runs lookups across every map file of a search path, loading files
// through a shared MapFileCache.
type Engine struct {
	cache   *cache.MapFileCache
	workers int
	logger  *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLoadWorkers bounds how many map files are loaded concurrently.
func WithLoadWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

func NewEngine(mapFiles *cache.MapFileCache, opts ...Option) *Engine {
	e := &Engine{
		cache:   mapFiles,
		workers: defaultLoadWorkers,
		logger:  slog.Default().With("component", "lookup-engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Cache returns the map file cache the engine reads through.
func (e *Engine) Cache() *cache.MapFileCache {
	return e.cache
}

// ExactFind returns the union over all map files on searchPath of the exact
// lookup of exe. An empty searchPath means the locator default.
func (e *Engine) ExactFind(ctx context.Context, exe string, searchPath []string) ([]Result, error) {
	return e.find(ctx, "exact", exe, searchPath, func(mf *mapfile.MapFile) []mapfile.Entry {
		return ExactFind(mf, exe)
	})
}

// SubstringFind returns the union over all map files on searchPath of the
// substring lookup of exe. A nil m matches names containing exe.
func (e *Engine) SubstringFind(ctx context.Context, exe string, searchPath []string, m matcher.Matcher) ([]Result, error) {
	if m == nil {
		m = matcher.Substring(exe)
	}
	return e.find(ctx, "substring", exe, searchPath, func(mf *mapfile.MapFile) []mapfile.Entry {
		return SubstringFind(mf, exe, m)
	})
}

// Find dispatches on mode: exact runs ExactFind, every other mode runs
// SubstringFind with the matcher that mode builds for exe.
func (e *Engine) Find(ctx context.Context, mode matcher.Mode, exe string, searchPath []string) ([]Result, error) {
	if mode == matcher.ModeExact {
		return e.ExactFind(ctx, exe, searchPath)
	}
	m, err := matcher.ForMode(mode, exe)
	if err != nil {
		return nil, err
	}
	return e.SubstringFind(ctx, exe, searchPath, m)
}

// ExactFindInFile runs the exact lookup against a single map file.
func (e *Engine) ExactFindInFile(exe, path string) ([]Result, error) {
	mf, err := e.cache.GetOrLoad(path)
	if err != nil {
		return nil, fmt.Errorf("loading map file %s: %w", path, err)
	}
	return Union(tag(mf, ExactFind(mf, exe))), nil
}

func (e *Engine) find(
	ctx context.Context,
	mode string,
	exe string,
	searchPath []string,
	fn func(mf *mapfile.MapFile) []mapfile.Entry,
) ([]Result, error) {
	paths := locator.ListMapFiles(locator.Resolve(searchPath))
	if len(paths) == 0 {
		e.logger.Debug("no map files on search path", "exe", exe, "mode", mode)
		return []Result{}, nil
	}
	perFile := make([][]Result, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			mf, err := e.cache.GetOrLoad(path)
			if err != nil {
				return fmt.Errorf("loading map file %s: %w", path, err)
			}
			perFile[i] = tag(mf, fn(mf))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	results := Union(perFile...)
	e.logger.Debug("lookup executed",
		"exe", exe,
		"mode", mode,
		"map_files", len(paths),
		"results", len(results),
	)
	return results, nil
}

func tag(mf *mapfile.MapFile, entries []mapfile.Entry) []Result {
	results := make([]Result, 0, len(entries))
	for _, entry := range entries {
		results = append(results, Result{
			Channel:    mf.Channel,
			Subdir:     mf.Subdir,
			Executable: entry.Executable,
			Package:    entry.Package,
		})
	}
	return results
}

// Union merges result lists into one duplicate-free list, sorted by
// (channel, subdir, executable, package).
func Union(lists ...[]Result) []Result {
	seen := make(map[Result]struct{})
	merged := make([]Result, 0)
	for _, list := range lists {
		for _, r := range list {
			if _, dup := seen[r]; dup {
				continue
			}
			seen[r] = struct{}{}
			merged = append(merged, r)
		}
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].less(merged[j])
	})
	return merged
}
