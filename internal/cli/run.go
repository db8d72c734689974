package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"cloudlab-agent/internal/model"
)

func newNodesCmd(r *root) *cobra.Command {
	var probe bool

	cmd := &cobra.Command{
		Use:   "nodes",
		Short: "List the configured nodes and whether they answered",
		Args:  cobra.NoArgs,
		RunE: r.withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			if !probe {
				return a.formatter.Format(cmd.OutOrStdout(), a.nodes.List())
			}
			agg, err := a.nodes.Probe(cmd.Context())
			if agg == nil {
				return a.render(cmd, nil, err)
			}
			return a.render(cmd, agg, err)
		}),
	}
	cmd.Flags().BoolVar(&probe, "probe", false, "run uname -a on every node")

	return cmd
}

func newRunCmd(r *root) *cobra.Command {
	var (
		targets   targetFlags
		exitOnErr bool
	)

	cmd := &cobra.Command{
		Use:   "run [flags] -- <command>",
		Short: "Run a shell command on the selected nodes",
		Long: `Run a shell command on one node, a list of nodes or the whole cluster.
Commands on several nodes run concurrently; the output of every node is
printed once all of them have finished.`,
		Example: `  # Run on every node
  agent run -- uptime

  # Run on two nodes and stop at the first failure
  agent run --nodes node-1,node-2 --exit-on-err -- sudo apt-get update`,
		Args: cobra.MinimumNArgs(1),
		RunE: r.withApp(func(cmd *cobra.Command, a *app, args []string) error {
			req := &model.RunRequest{
				Target:    targets.request(),
				Command:   strings.Join(args, " "),
				ExitOnErr: exitOnErr,
			}
			res, err := a.nodes.Run(cmd.Context(), req)
			return a.render(cmd, res, err)
		}),
	}
	targets.register(cmd)
	cmd.Flags().BoolVar(&exitOnErr, "exit-on-err", false, "abort with status 1 as soon as a node fails")

	return cmd
}

func newBenchCmd(r *root) *cobra.Command {
	var targets targetFlags

	cmd := &cobra.Command{
		Use:     "bench [flags] -- <command>",
		Short:   "Launch a benchmark command on the selected nodes",
		Example: `  agent bench --nodes node-2,node-3 -- ./run-benchmark.sh --duration 60`,
		Args:    cobra.MinimumNArgs(1),
		RunE: r.withApp(func(cmd *cobra.Command, a *app, args []string) error {
			return a.recipe(cmd, "benchmark", &model.RecipeRequest{
				Target:  targets.request(),
				Command: strings.Join(args, " "),
			})
		}),
	}
	targets.register(cmd)

	return cmd
}
