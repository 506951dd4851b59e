package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/conda-suggest/pkg/postgres"
)

// Schema creates the table PostgresStore needs.
const Schema = `CREATE TABLE IF NOT EXISTS artifact_cache (
    channel     TEXT        NOT NULL,
    subdir      TEXT        NOT NULL,
    artifact    TEXT        NOT NULL,
    package     TEXT        NOT NULL,
    executables JSONB       NOT NULL,
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (channel, subdir, artifact)
)`

// PostgresStore keeps artifact caches in the artifact_cache table, one row
// per artifact. Save only upserts the changed artifacts.
type PostgresStore struct {
	db     *postgres.Client
	logger *slog.Logger
}

func NewPostgresStore(db *postgres.Client) *PostgresStore {
	return &PostgresStore{
		db:     db,
		logger: slog.Default().With("component", "postgres-cache-store"),
	}
}

// EnsureSchema creates the artifact_cache table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.DB.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("creating artifact_cache table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context, channel, subdir string) (ArtifactCache, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT artifact, package, executables FROM artifact_cache WHERE channel = $1 AND subdir = $2`,
		channel, subdir,
	)
	if err != nil {
		return nil, fmt.Errorf("querying artifact cache: %w", err)
	}
	defer rows.Close()

	cache := ArtifactCache{}
	for rows.Next() {
		var artifact, pkg string
		var raw []byte
		if err := rows.Scan(&artifact, &pkg, &raw); err != nil {
			return nil, fmt.Errorf("scanning artifact row: %w", err)
		}
		var exes []string
		if err := json.Unmarshal(raw, &exes); err != nil {
			s.logger.Warn("skipping corrupt artifact row", "artifact", artifact, "error", err)
			continue
		}
		cache[artifact] = Entry{Package: pkg, Executables: exes}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating artifact rows: %w", err)
	}
	s.logger.Info("cache loaded", "channel", channel, "subdir", subdir, "artifacts", len(cache))
	return cache, nil
}

func (s *PostgresStore) Save(ctx context.Context, channel, subdir string, cache ArtifactCache, changed []string) error {
	if len(changed) == 0 {
		return nil
	}
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO artifact_cache (channel, subdir, artifact, package, executables, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (channel, subdir, artifact)
		DO UPDATE SET package = EXCLUDED.package, executables = EXCLUDED.executables, updated_at = NOW()`)
		if err != nil {
			return fmt.Errorf("preparing upsert: %w", err)
		}
		defer stmt.Close()
		for _, artifact := range changed {
			entry, ok := cache[artifact]
			if !ok {
				continue
			}
			exes := entry.Executables
			if exes == nil {
				exes = []string{}
			}
			raw, err := json.Marshal(exes)
			if err != nil {
				return fmt.Errorf("encoding executables of %s: %w", artifact, err)
			}
			if _, err := stmt.ExecContext(ctx, channel, subdir, artifact, entry.Package, raw); err != nil {
				return fmt.Errorf("upserting %s: %w", artifact, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("saving artifact cache: %w", err)
	}
	s.logger.Debug("cache saved", "channel", channel, "subdir", subdir, "upserted", len(changed))
	return nil
}
