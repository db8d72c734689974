package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"cloudlab-agent/internal/model"
)

// targetFlags select the nodes of a command. Without any of them the whole
// cluster is targeted.
type targetFlags struct {
	all   bool
	nodes []string
	node  string
}

func (f *targetFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.all, "all", false, "target every node (default)")
	cmd.Flags().StringSliceVar(&f.nodes, "nodes", nil, "target a list of nodes (comma-separated)")
	cmd.Flags().StringVar(&f.node, "node", "", "target a single node")
	cmd.MarkFlagsMutuallyExclusive("all", "nodes", "node")
}

func (f *targetFlags) request() model.TargetRequest {
	req := model.TargetRequest{All: f.all, Node: f.node}
	if len(f.nodes) > 0 {
		req.Nodes = f.nodes
	}
	if !req.All && req.Node == "" && req.Nodes == nil {
		req.All = true
	}
	return req
}

// parseSwitch reads the on/off argument of the toggle commands.
func parseSwitch(arg string) (bool, error) {
	switch arg {
	case "on", "true", "1", "enable", "enabled":
		return true, nil
	case "off", "false", "0", "disable", "disabled":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", arg)
}
