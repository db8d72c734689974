package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"cloudlab-agent/internal/config"
	"cloudlab-agent/internal/model"
	"cloudlab-agent/internal/output"
	"cloudlab-agent/internal/pkg/agent"
	"cloudlab-agent/internal/pkg/history"
	"cloudlab-agent/internal/pkg/logger"
	"cloudlab-agent/internal/pkg/recipes"
	"cloudlab-agent/internal/pkg/ssh"
	"cloudlab-agent/internal/pkg/swarm"
	"cloudlab-agent/internal/service"
	"cloudlab-agent/pkg/utils"
)

// app is everything one command invocation needs, built from the flags,
// the environment and the cluster file.
type app struct {
	cfg       *config.Config
	logger    *logger.Logger
	agent     *agent.Agent
	history   *history.Store
	swarm     *swarm.Manager
	nodes     *service.NodeService
	recipes   *service.RecipeService
	formatter output.Formatter
}

func (r *root) newLogger(cfg *config.Config) *logger.Logger {
	level := cfg.Logging.Level
	if r.flags.verbose {
		level = "debug"
	}
	return logger.NewLogger(level, cfg.Logging.Format)
}

func (r *root) newFormatter() (output.Formatter, error) {
	format, err := output.ParseFormat(r.flags.output)
	if err != nil {
		return nil, err
	}
	return output.NewFormatter(format,
		output.WithNoColor(r.flags.noColor),
		output.WithWide(r.flags.wide),
		output.WithNoHeaders(r.flags.noHeaders),
	), nil
}

// newApp connects to the cluster. With failFast the abort handler is
// installed: a fatal failure logs and exits the process with status 1.
func (r *root) newApp(failFast bool) (*app, error) {
	formatter, err := r.newFormatter()
	if err != nil {
		return nil, err
	}

	cfg := config.LoadConfig()
	log := r.newLogger(cfg)

	cluster, err := config.LoadCluster(r.flags.clusterFile)
	if err != nil {
		return nil, err
	}
	for _, n := range cluster.Nodes {
		if err := utils.ValidateNodeName(n); err != nil {
			return nil, fmt.Errorf("%s: %w", r.flags.clusterFile, err)
		}
	}

	opts := []agent.Option{
		agent.WithLogger(log),
		agent.WithConnectTimeout(time.Duration(cfg.SSH.ConnectTimeout) * time.Second),
		agent.WithCommandTimeout(time.Duration(cfg.SSH.CommandTimeout) * time.Second),
		agent.WithMaxParallel(cfg.SSH.MaxParallel),
	}
	if cfg.SSH.KnownHostsFile != "" {
		store, err := ssh.NewHostKeyStore(cfg.SSH.KnownHostsFile)
		if err != nil {
			return nil, err
		}
		opts = append(opts, agent.WithHostKeyCallback(store.Callback()))
	}

	var store *history.Store
	if cfg.History.Path != "" {
		store, err = history.Open(cfg.History.Path)
		if err != nil {
			return nil, err
		}
		opts = append(opts, agent.WithRecorder(store))
	}
	if failFast {
		opts = append(opts, agent.WithAbortHandler(r.abortHandler(log)))
	}
	opts = append(opts, r.agentOpts...)

	a, err := agent.New(cluster, opts...)
	if err != nil {
		if store != nil {
			_ = store.Close()
		}
		return nil, err
	}

	sw := swarm.NewManager(a, cluster.NetworkPrefix, log)
	return &app{
		cfg:       cfg,
		logger:    log,
		agent:     a,
		history:   store,
		swarm:     sw,
		nodes:     service.NewNodeService(a, sw, log),
		recipes:   service.NewRecipeService(recipes.NewInstaller(a, log), sw, log),
		formatter: formatter,
	}, nil
}

func (r *root) abortHandler(log *logger.Logger) func(*agent.FatalError) {
	return func(fe *agent.FatalError) {
		log.With("node", fe.Node, "command", fe.Command).Errorf("aborting: %v", fe)
		_ = log.Sync()
		r.exit(1)
	}
}

// withApp builds the app for the duration of one command.
func (r *root) withApp(fn func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := r.newApp(true)
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(cmd, a, args)
	}
}

func (a *app) Close() error {
	err := a.agent.Close()
	if a.history != nil {
		err = errors.Join(err, a.history.Close())
	}
	_ = a.logger.Sync()
	return err
}

// render prints the outcome of a dispatch. Node failures turn into a
// non-nil error so the process exits non-zero.
func (a *app) render(cmd *cobra.Command, res agent.Result, err error) error {
	if ferr := a.formatter.FormatRun(cmd.OutOrStdout(), res, err); ferr != nil {
		return ferr
	}
	switch {
	case err != nil:
		return &reportedError{err: err}
	case res != nil && res.Failed():
		return &reportedError{err: errFailed}
	}
	return nil
}

func (a *app) recipe(cmd *cobra.Command, name string, req *model.RecipeRequest) error {
	res, err := a.recipes.Execute(cmd.Context(), name, req)
	return a.render(cmd, res, err)
}
