package commands

import (
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/conda-suggest/internal/generator"
	"github.com/Adithya-Monish-Kumar-K/conda-suggest/internal/generator/repodata"
	"github.com/Adithya-Monish-Kumar-K/conda-suggest/internal/generator/store"
	"github.com/Adithya-Monish-Kumar-K/conda-suggest/internal/index/mapfile"
	"github.com/Adithya-Monish-Kumar-K/conda-suggest/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/conda-suggest/pkg/postgres"
	"github.com/spf13/cobra"
)

func (c *CLI) newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate <channel>",
		Short: "Build map files for a channel directory or URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gen := c.cfg.Generate
			flags := cmd.Flags()
			if flags.Changed("remove-exprs") {
				gen.RemoveExprs, _ = flags.GetStringSlice("remove-exprs")
				if gen.RemoveExprs == nil {
					gen.RemoveExprs = []string{}
				}
			}
			if flags.Changed("subdir") {
				gen.Subdirs, _ = flags.GetStringSlice("subdir")
			}
			if flags.Changed("output-dir") {
				gen.OutputDir, _ = flags.GetString("output-dir")
			}
			if flags.Changed("cache-dir") {
				gen.CacheDir, _ = flags.GetString("cache-dir")
			}
			if flags.Changed("workers") {
				gen.Workers, _ = flags.GetInt("workers")
			}
			if flags.Changed("store") {
				gen.Store, _ = flags.GetString("store")
			}

			ctx := cmd.Context()
			var st store.Store
			switch gen.Store {
			case "postgres":
				db, err := postgres.New(c.cfg.Postgres)
				if err != nil {
					return err
				}
				defer db.Close()
				pg := store.NewPostgresStore(db)
				if err := pg.EnsureSchema(ctx); err != nil {
					return err
				}
				st = pg
			case "json":
				st = store.NewJSONFileStore(gen.CacheDir)
			default:
				return fmt.Errorf("unknown cache store %q", gen.Store)
			}

			opts := []generator.Option{
				generator.WithSubdirs(gen.Subdirs),
				generator.WithRemoveExprs(gen.RemoveExprs),
				generator.WithWorkers(gen.Workers),
			}
			if kafka.Enabled(c.cfg.Kafka) {
				producer := kafka.NewProducer(c.cfg.Kafka, c.cfg.Kafka.Topics.IndexUpdated)
				defer producer.Close()
				opts = append(opts, generator.WithPublisher(producer))
			}

			channel := args[0]
			g := generator.New(channel,
				repodata.NewSource(channel, gen.HTTPTimeout),
				st,
				mapfile.NewWriter(gen.OutputDir),
				opts...,
			)
			written, err := g.Run(ctx)
			if err != nil {
				return err
			}
			for _, e := range written {
				slog.Info("generated", "channel", e.Channel, "subdir", e.Subdir, "path", e.Path, "entries", e.Entries)
			}
			return nil
		},
	}
	cmd.Flags().StringSlice("remove-exprs", nil, "Regular expressions of executables to leave out, matched at the start (default: __pycache__)")
	cmd.Flags().StringSlice("subdir", nil, "Subdirs to generate (default: noarch, linux-64, osx-64, win-64, linux-ppc64le, linux-aarch64)")
	cmd.Flags().String("output-dir", "", "Directory receiving the map files")
	cmd.Flags().String("cache-dir", "", "Directory holding the artifact cache files")
	cmd.Flags().Int("workers", 0, "Artifacts inspected concurrently")
	cmd.Flags().String("store", "", "Artifact cache store: json or postgres")
	return cmd
}
