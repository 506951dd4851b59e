package commands

import (
	"github.com/Adithya-Monish-Kumar-K/conda-suggest/internal/searcher/message"
	"github.com/spf13/cobra"
)

func (c *CLI) newMessageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "message <exe>",
		Short: "Print the suggestion for a command that was not found",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := message.NewFormatter(c.newEngine())
			return f.Write(cmd.Context(), cmd.OutOrStdout(), args[0], c.searchPath(cmd))
		},
	}
	cmd.Flags().StringSlice("path", nil, "Directories to search for map files (default: $CONDA_SUGGEST_PATH or the standard locations)")
	return cmd
}
