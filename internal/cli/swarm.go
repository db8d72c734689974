package cli

import (
	"github.com/spf13/cobra"

	"cloudlab-agent/internal/model"
)

func newSwarmCmd(r *root) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "swarm",
		Short: "Bootstrap or tear down the Docker swarm",
		Long: `Bootstrap or tear down a Docker swarm across the cluster.

init makes the master a swarm manager, join adds workers with the token the
master printed (recovered from the master when init ran in another
invocation), and leave removes nodes, workers before the master.`,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "init",
			Short: "Initialize the swarm on the master node",
			Args:  cobra.NoArgs,
			RunE: r.withApp(func(cmd *cobra.Command, a *app, _ []string) error {
				return a.recipe(cmd, "swarm-init", &model.RecipeRequest{})
			}),
		},
		&cobra.Command{
			Use:   "join [node...]",
			Short: "Join workers to the swarm (default: every node but the master)",
			RunE: r.withApp(func(cmd *cobra.Command, a *app, args []string) error {
				return a.recipe(cmd, "swarm-join", nodesRequest(args))
			}),
		},
		&cobra.Command{
			Use:   "leave [node...]",
			Short: "Make nodes leave the swarm (default: every node)",
			RunE: r.withApp(func(cmd *cobra.Command, a *app, args []string) error {
				return a.recipe(cmd, "swarm-leave", nodesRequest(args))
			}),
		},
		&cobra.Command{
			Use:   "create",
			Short: "Initialize the swarm and join every worker",
			Args:  cobra.NoArgs,
			RunE: r.withApp(func(cmd *cobra.Command, a *app, _ []string) error {
				return a.recipe(cmd, "swarm-create", &model.RecipeRequest{})
			}),
		},
		&cobra.Command{
			Use:   "destroy",
			Short: "Make every node leave the swarm",
			Args:  cobra.NoArgs,
			RunE: r.withApp(func(cmd *cobra.Command, a *app, _ []string) error {
				return a.recipe(cmd, "swarm-destroy", &model.RecipeRequest{})
			}),
		},
	)

	return cmd
}

func nodesRequest(nodes []string) *model.RecipeRequest {
	req := &model.RecipeRequest{}
	if len(nodes) > 0 {
		req.Target.Nodes = nodes
	}
	return req
}
