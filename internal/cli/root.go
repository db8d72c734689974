// Package cli is the command-line front end of the agent. Every command
// loads the cluster file, connects to the nodes it needs and renders the
// outcome with the output package.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"cloudlab-agent/internal/pkg/agent"
)

// version is set at build time with -ldflags "-X cloudlab-agent/internal/cli.version=...".
var version = "dev"

const clusterEnv = "CLOUDLAB_CLUSTER"

// errFailed is returned when at least one node failed but nothing else went
// wrong; the per-node outcome has already been printed.
var errFailed = errors.New("command failed on one or more nodes")

// reportedError marks an error that was already written to the output.
type reportedError struct {
	err error
}

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

type globalFlags struct {
	clusterFile string
	output      string
	noColor     bool
	noHeaders   bool
	verbose     bool
	wide        bool
}

type root struct {
	flags     globalFlags
	agentOpts []agent.Option
	exit      func(code int)
}

// Option customizes the command tree; tests use it to reach in-process
// servers and to keep the abort handler from exiting.
type Option func(*root)

func withAgentOptions(opts ...agent.Option) Option {
	return func(r *root) { r.agentOpts = append(r.agentOpts, opts...) }
}

func withExit(fn func(code int)) Option {
	return func(r *root) { r.exit = fn }
}

// Execute runs the root command with the provided context. Errors that were
// not already rendered are printed to stderr.
func Execute(ctx context.Context) error {
	cmd := newRootCmd()
	err := cmd.ExecuteContext(ctx)
	var reported *reportedError
	if err != nil && !errors.As(err, &reported) {
		fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
	}
	return err
}

func newRootCmd(opts ...Option) *cobra.Command {
	r := &root{exit: os.Exit}
	for _, opt := range opts {
		opt(r)
	}

	rootCmd := &cobra.Command{
		Use:   "agent",
		Short: "Drive a cluster of lab nodes over SSH",
		Long: `agent runs shell commands on one, several or all nodes of a lab cluster
concurrently, copies files over SFTP, bootstraps a Docker swarm and applies
the usual provisioning and power-management recipes.

It can also serve the same operations over HTTP.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&r.flags.clusterFile, "cluster", "c", os.Getenv(clusterEnv), "cluster file (json, yaml or toml; default $"+clusterEnv+")")
	rootCmd.PersistentFlags().StringVarP(&r.flags.output, "output", "o", "table", "output format (table, json, yaml)")
	rootCmd.PersistentFlags().BoolVar(&r.flags.noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVar(&r.flags.noHeaders, "no-headers", false, "omit table headers")
	rootCmd.PersistentFlags().BoolVarP(&r.flags.verbose, "verbose", "v", false, "verbose output with debug logging")
	rootCmd.PersistentFlags().BoolVar(&r.flags.wide, "wide", false, "print every captured output line")

	rootCmd.AddCommand(
		newVersionCmd(),
		newNodesCmd(r),
		newRunCmd(r),
		newUploadCmd(r),
		newDownloadCmd(r),
		newInstallCmd(r),
		newSwarmCmd(r),
		newPowerCmd(r),
		newRebootCmd(r),
		newBenchCmd(r),
		newHistoryCmd(r),
		newServeCmd(r),
	)

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), version)
			return err
		},
	}
}
