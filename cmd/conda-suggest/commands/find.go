package commands

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/conda-suggest/internal/searcher/matcher"
	"github.com/spf13/cobra"
)

func (c *CLI) newFindCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "find <exe>",
		Short: "List the packages that provide an executable",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, _ := cmd.Flags().GetString("match")
			results, err := c.newEngine().Find(cmd.Context(), matcher.Mode(mode), args[0], c.searchPath(cmd))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, r := range results {
				if _, err := fmt.Fprintf(out, "%s/%s %s:%s\n", r.Channel, r.Subdir, r.Executable, r.Package); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().String("match", string(matcher.ModeExact), "Match mode: exact, substring, regex or fuzzy")
	cmd.Flags().StringSlice("path", nil, "Directories to search for map files (default: $CONDA_SUGGEST_PATH or the standard locations)")
	return cmd
}
