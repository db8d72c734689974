package agent

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"
)

// Run dispatches cmd to the target. A One target runs on the calling
// goroutine and returns a *CommandResult; Nodes and All run concurrently and
// return an AggregatedResult keyed by node.
//
// The returned error is non-nil when the target is invalid, when a single
// node could not execute the command, or when exitOnErr was set and at least
// one node failed (a *FatalError, possibly joined with others).
func (a *Agent) Run(ctx context.Context, t Target, cmd string, exitOnErr bool) (Result, error) {
	if t.IsSingle() {
		node := ""
		if len(t.nodes) > 0 {
			node = t.nodes[0]
		}
		res, err := a.RunOn(ctx, node, cmd, exitOnErr)
		if res == nil {
			return nil, err
		}
		return res, err
	}

	nodes, err := a.resolve(t)
	if err != nil {
		return nil, err
	}
	agg, err := a.RunMany(ctx, nodes, cmd, exitOnErr)
	if agg == nil {
		return nil, err
	}
	return agg, err
}

// RunOn runs cmd synchronously on one node.
func (a *Agent) RunOn(ctx context.Context, node, cmd string, exitOnErr bool) (*CommandResult, error) {
	s, err := a.session(node)
	if err != nil {
		return nil, err
	}
	return a.execute(ctx, s, cmd, exitOnErr)
}

// RunMany runs the same cmd on every listed node concurrently.
func (a *Agent) RunMany(ctx context.Context, nodes []string, cmd string, exitOnErr bool) (AggregatedResult, error) {
	return a.RunEach(ctx, nodes, func(string) string { return cmd }, exitOnErr)
}

// RunEach runs a per-node command on every listed node concurrently and
// waits for all of them. A failing node never cancels its siblings. Only
// FatalErrors are returned as the error; transport failures are kept in the
// per-node results.
func (a *Agent) RunEach(ctx context.Context, nodes []string, build func(node string) string, exitOnErr bool) (AggregatedResult, error) {
	nodes, err := a.resolve(Nodes(nodes...))
	if err != nil {
		return nil, err
	}

	sessions := make([]*session, len(nodes))
	cmds := make([]string, len(nodes))
	for i, node := range nodes {
		sessions[i] = a.sessions[node]
		cmds[i] = build(node)
	}

	results := make([]*CommandResult, len(nodes))
	errs := make([]error, len(nodes))

	// errgroup without a context: the first failure must not cancel the rest.
	var g errgroup.Group
	if a.maxParallel > 0 {
		g.SetLimit(a.maxParallel)
	}
	for i := range nodes {
		g.Go(func() error {
			results[i], errs[i] = a.execute(ctx, sessions[i], cmds[i], exitOnErr)
			return nil
		})
	}
	_ = g.Wait()

	agg := make(AggregatedResult, len(nodes))
	var fatal []error
	for i, node := range nodes {
		agg[node] = results[i]
		if fe, ok := AsFatal(errs[i]); ok {
			fatal = append(fatal, fe)
		}
	}

	a.logger.With("nodes", len(nodes), "failed", len(agg.Failures())).Debug("dispatch finished")
	return agg, errors.Join(fatal...)
}
