// Package generator builds map files for a channel: it inspects every
// artifact listed in each subdir's repodata, remembers the executables in a
// resumable artifact cache, and writes one sorted map file per subdir.
package generator

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"regexp"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/conda-suggest/internal/generator/artifact"
	"github.com/Adithya-Monish-Kumar-K/conda-suggest/internal/generator/repodata"
	"github.com/Adithya-Monish-Kumar-K/conda-suggest/internal/generator/store"
	"github.com/Adithya-Monish-Kumar-K/conda-suggest/internal/index/events"
	"github.com/Adithya-Monish-Kumar-K/conda-suggest/internal/index/mapfile"
	apperrors "github.com/Adithya-Monish-Kumar-K/conda-suggest/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/conda-suggest/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/conda-suggest/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

// DefaultCheckpointEvery is how many newly inspected artifacts trigger an
// intermediate cache save.
const DefaultCheckpointEvery = 100

// DefaultSubdirs are generated when no subdir is requested.
var DefaultSubdirs = []string{
	"noarch",
	"linux-64",
	"osx-64",
	"win-64",
	"linux-ppc64le",
	"linux-aarch64",
}

// DefaultRemoveExprs drop bytecode cache directories that land in bin/.
var DefaultRemoveExprs = []string{"__pycache__"}

// Publisher announces written map files.
type Publisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

type Generator struct {
	channel     string
	source      repodata.Source
	store       store.Store
	writer      *mapfile.Writer
	publisher   Publisher
	metrics     *metrics.Metrics
	subdirs     []string
	removeExprs []string
	workers     int
	checkpoint  int
	logger      *slog.Logger
}

// Option configures a Generator.
type Option func(*Generator)

func WithPublisher(p Publisher) Option {
	return func(g *Generator) { g.publisher = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Generator) { g.metrics = m }
}

// WithSubdirs overrides DefaultSubdirs. An empty list keeps the default.
func WithSubdirs(subdirs []string) Option {
	return func(g *Generator) {
		if len(subdirs) > 0 {
			g.subdirs = subdirs
		}
	}
}

// WithRemoveExprs overrides DefaultRemoveExprs. A nil list keeps the
// default; an empty non-nil list removes nothing.
func WithRemoveExprs(exprs []string) Option {
	return func(g *Generator) {
		if exprs != nil {
			g.removeExprs = exprs
		}
	}
}

func WithWorkers(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.workers = n
		}
	}
}

func WithCheckpointEvery(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.checkpoint = n
		}
	}
}

// New creates a Generator for channel, a local directory or an http(s) URL
// that src serves. Map files are named after the channel's last path
// segment.
func New(channel string, src repodata.Source, st store.Store, w *mapfile.Writer, opts ...Option) *Generator {
	g := &Generator{
		channel:     repodata.ChannelName(channel),
		source:      src,
		store:       st,
		writer:      w,
		subdirs:     DefaultSubdirs,
		removeExprs: DefaultRemoveExprs,
		workers:     4,
		checkpoint:  DefaultCheckpointEvery,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = slog.Default().With("component", "generator", "channel", g.channel)
	return g
}

// Channel returns the channel name map files are written under.
func (g *Generator) Channel() string {
	return g.channel
}

// Run generates the map file of every configured subdir. Subdirs without
// repodata are skipped. It returns one IndexEvent per written map file and
// publishes them when a Publisher is configured.
func (g *Generator) Run(ctx context.Context) ([]events.IndexEvent, error) {
	exprs, err := CompileRemoveExprs(g.removeExprs)
	if err != nil {
		return nil, err
	}
	var written []events.IndexEvent
	for _, subdir := range g.subdirs {
		cache, err := g.MakeCache(ctx, subdir)
		if errors.Is(err, fs.ErrNotExist) {
			g.logger.Warn("no repodata, skipping subdir", "subdir", subdir, "error", err)
			continue
		}
		if err != nil {
			return written, fmt.Errorf("building cache for %s: %w", subdir, err)
		}
		entries := filterEntries(cache, exprs)
		path, err := g.writer.Write(g.channel, subdir, entries)
		if err != nil {
			return written, fmt.Errorf("writing map file for %s: %w", subdir, err)
		}
		count := len(mapfile.Sort(entries))
		g.logger.Info("map file written", "subdir", subdir, "path", path, "entries", count)
		if g.metrics != nil {
			g.metrics.MapFilesWritten.Inc()
			g.metrics.MapFileEntries.WithLabelValues(g.channel, subdir).Set(float64(count))
		}
		written = append(written, events.IndexEvent{
			Channel:     g.channel,
			Subdir:      subdir,
			Path:        path,
			Entries:     count,
			GeneratedAt: time.Now().UTC(),
		})
	}
	g.publish(ctx, written)
	return written, nil
}

func (g *Generator) publish(ctx context.Context, written []events.IndexEvent) {
	if g.publisher == nil || len(written) == 0 {
		return
	}
	batch := make([]kafka.Event, 0, len(written))
	for _, e := range written {
		batch = append(batch, kafka.Event{Key: e.Key(), Value: e})
	}
	if err := g.publisher.PublishBatch(ctx, batch); err != nil {
		g.logger.Error("failed to publish index events, lookup services keep stale caches",
			"events", len(batch),
			"error", err,
		)
		return
	}
	g.logger.Info("index events published", "events", len(batch))
}

// MakeCache loads the artifact cache of subdir, inspects every artifact
// of the repodata the cache does not know yet, and saves the cache every
// checkpoint artifacts and at the end. Artifacts that cannot be read are
// logged and left out so a later run retries them.
func (g *Generator) MakeCache(ctx context.Context, subdir string) (store.ArtifactCache, error) {
	cache, err := g.store.Load(ctx, g.channel, subdir)
	if err != nil {
		return nil, err
	}
	rd, err := repodata.Load(ctx, g.source, subdir)
	if err != nil {
		return nil, err
	}
	pkgs := rd.All()
	needed := cache.Needed(rd.Artifacts())
	g.logger.Info("inspecting artifacts",
		"subdir", subdir,
		"known", len(cache),
		"needed", len(needed),
	)

	var (
		mu        sync.Mutex
		changed   []string
		processed int
	)
	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.workers)
	for _, name := range needed {
		eg.Go(func() error {
			if err := egctx.Err(); err != nil {
				return nil
			}
			entry, err := g.inspect(egctx, subdir, name, pkgs[name])
			if err != nil {
				g.logger.Warn("skipping artifact", "subdir", subdir, "artifact", name, "error", err)
				g.countArtifact("error")
				return nil
			}
			g.countArtifact("ok")

			mu.Lock()
			defer mu.Unlock()
			cache[name] = entry
			changed = append(changed, name)
			processed++
			if processed%g.checkpoint == 0 {
				if err := g.store.Save(egctx, g.channel, subdir, cache, changed); err != nil {
					return fmt.Errorf("checkpointing cache: %w", err)
				}
				changed = nil
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	// progress survives cancellation
	if err := g.store.Save(context.WithoutCancel(ctx), g.channel, subdir, cache, changed); err != nil {
		return nil, fmt.Errorf("saving cache: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return cache, nil
}

func (g *Generator) countArtifact(status string) {
	if g.metrics != nil {
		g.metrics.ArtifactsProcessed.WithLabelValues(status).Inc()
	}
}

func (g *Generator) inspect(ctx context.Context, subdir, name string, pkg repodata.Package) (store.Entry, error) {
	entry := store.Entry{Package: pkg.Name, Executables: []string{}}
	if !artifact.Supported(name) {
		return entry, nil
	}
	blob, err := g.source.Fetch(ctx, subdir, name)
	if err != nil {
		return entry, err
	}
	defer blob.Close()
	size, err := blob.Size()
	if err != nil {
		return entry, fmt.Errorf("%w: %w", apperrors.ErrArtifact, err)
	}
	exes, err := artifact.Executables(name, blob, size)
	if err != nil {
		return entry, err
	}
	if exes != nil {
		entry.Executables = exes
	}
	return entry, nil
}

// CompileRemoveExprs compiles exclusion expressions. Each matches at the
// start of an executable name.
func CompileRemoveExprs(exprs []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(exprs))
	for _, expr := range exprs {
		re, err := regexp.Compile("^(?:" + expr + ")")
		if err != nil {
			return nil, fmt.Errorf("%w: remove expression %q: %w", apperrors.ErrPattern, expr, err)
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}

// GenerateMap returns the sorted, distinct map file entries of cache with
// every executable matching one of removeExprs left out.
func GenerateMap(cache store.ArtifactCache, removeExprs []string) ([]mapfile.Entry, error) {
	exprs, err := CompileRemoveExprs(removeExprs)
	if err != nil {
		return nil, err
	}
	return mapfile.Sort(filterEntries(cache, exprs)), nil
}

func filterEntries(cache store.ArtifactCache, exprs []*regexp.Regexp) []mapfile.Entry {
	var entries []mapfile.Entry
	for _, entry := range cache {
	exes:
		for _, exe := range entry.Executables {
			for _, re := range exprs {
				if re.MatchString(exe) {
					continue exes
				}
			}
			entries = append(entries, mapfile.Entry{Executable: exe, Package: entry.Package})
		}
	}
	return entries
}
