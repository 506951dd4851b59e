// Package commands implements the conda-suggest command line interface.
package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/Adithya-Monish-Kumar-K/conda-suggest/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/conda-suggest/internal/searcher/lookup"
	"github.com/Adithya-Monish-Kumar-K/conda-suggest/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/conda-suggest/pkg/logger"
	"github.com/spf13/cobra"
)

// Build metadata, set with -ldflags at release time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// CLI is the conda-suggest command tree.
type CLI struct {
	rootCmd    *cobra.Command
	cfg        *config.Config
	configPath string
	logLevel   string
	logFormat  string
}

func New() *CLI {
	c := &CLI{}
	rootCmd := &cobra.Command{
		Use:           "conda-suggest",
		Short:         "Suggest conda packages that provide a missing command",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd)
		},
	}
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"{{.Name}} version {{.Version}} (commit: %s, date: %s)\n",
		Commit,
		Date,
	))

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&c.configPath, "config", "", "Path to a YAML config file")
	flags.StringVar(&c.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	flags.StringVar(&c.logFormat, "log-format", "", "Log format: text or json")

	c.rootCmd = rootCmd
	rootCmd.AddCommand(c.newGenerateCmd())
	rootCmd.AddCommand(c.newMessageCmd())
	rootCmd.AddCommand(c.newFindCmd())
	rootCmd.AddCommand(c.newVersionCmd())
	return c
}

// Execute runs the root command with the given context.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

// SetArgs sets the arguments for the root command. Used for testing.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// SetOutput sets the output and error streams of the root command.
func (c *CLI) SetOutput(out, err io.Writer) {
	c.rootCmd.SetOut(out)
	c.rootCmd.SetErr(err)
}

// setup loads the configuration and installs the logger on stderr so that
// stdout carries nothing but command output.
func (c *CLI) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	if c.logLevel != "" {
		cfg.Logging.Level = c.logLevel
	}
	if c.logFormat != "" {
		cfg.Logging.Format = c.logFormat
	}
	logger.SetupWriter(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)
	c.cfg = cfg
	return nil
}

// searchPath prefers --path over the configured search path.
func (c *CLI) searchPath(cmd *cobra.Command) []string {
	if paths, _ := cmd.Flags().GetStringSlice("path"); len(paths) > 0 {
		return paths
	}
	return c.cfg.Search.Path
}

func (c *CLI) newEngine() *lookup.Engine {
	return lookup.NewEngine(cache.NewMapFileCache(nil), lookup.WithLoadWorkers(c.cfg.Search.LoadWorkers))
}
