package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"cloudlab-agent/internal/config"
	"cloudlab-agent/internal/pkg/history"
)

var errHistoryDisabled = errors.New("run history is disabled; set HISTORY_DB to the path of the history database")

func newHistoryCmd(r *root) *cobra.Command {
	var (
		node  string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the most recent commands run on the cluster",
		Example: `  # Last 20 runs on every node
  agent history

  # Last 5 runs on node-2
  agent history --node node-2 --limit 5`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit < 1 {
				return fmt.Errorf("limit must be positive, got %d", limit)
			}
			formatter, err := r.newFormatter()
			if err != nil {
				return err
			}

			cfg := config.LoadConfig()
			if cfg.History.Path == "" {
				return errHistoryDisabled
			}
			store, err := history.Open(cfg.History.Path)
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.Recent(cmd.Context(), node, limit)
			if err != nil {
				return err
			}
			return formatter.Format(cmd.OutOrStdout(), entries)
		},
	}
	cmd.Flags().StringVar(&node, "node", "", "only show runs on this node")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to show")

	return cmd
}
