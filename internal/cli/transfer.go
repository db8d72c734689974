package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newUploadCmd(r *root) *cobra.Command {
	var node string

	cmd := &cobra.Command{
		Use:     "upload <local> <remote>",
		Short:   "Copy a local file to a node over SFTP",
		Example: `  agent upload --node node-2 ./bench.tar.gz /tmp/bench.tar.gz`,
		Args:    cobra.ExactArgs(2),
		RunE: r.withApp(func(cmd *cobra.Command, a *app, args []string) error {
			if err := a.agent.Upload(node, args[0], args[1]); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s:%s\n", args[0], node, args[1])
			return err
		}),
	}
	cmd.Flags().StringVar(&node, "node", "", "destination node")
	_ = cmd.MarkFlagRequired("node")

	return cmd
}

func newDownloadCmd(r *root) *cobra.Command {
	var node string

	cmd := &cobra.Command{
		Use:     "download <remote> <local>",
		Short:   "Copy a file from a node over SFTP",
		Example: `  agent download --node node-2 /tmp/results.csv ./results-node-2.csv`,
		Args:    cobra.ExactArgs(2),
		RunE: r.withApp(func(cmd *cobra.Command, a *app, args []string) error {
			if err := a.agent.Download(node, args[0], args[1]); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s:%s -> %s\n", node, args[0], args[1])
			return err
		}),
	}
	cmd.Flags().StringVar(&node, "node", "", "source node")
	_ = cmd.MarkFlagRequired("node")

	return cmd
}
