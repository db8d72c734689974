package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloudlab-agent/internal/pkg/ssh"
)

// execute runs cmd on one node and waits for it. A non-zero exit status is
// logged with the captured output; with exitOnErr it becomes a FatalError
// and the abort handler, if any, runs before anything is returned.
func (a *Agent) execute(ctx context.Context, s *session, cmd string, exitOnErr bool) (*CommandResult, error) {
	if a.commandTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.commandTimeout)
		defer cancel()
	}

	start := time.Now()
	out, err := s.conn.ExecuteCommand(ctx, cmd)

	res := &CommandResult{
		Node:       s.node,
		Stdout:     []string{},
		Stderr:     []string{},
		ExitStatus: -1,
		Duration:   time.Since(start),
	}
	if out != nil {
		res.Stdout = out.Stdout
		res.Stderr = out.Stderr
		res.ExitStatus = out.ExitCode
	}

	if err != nil {
		if errors.Is(err, ssh.ErrNotConnected) {
			cause := err
			if s.connectErr != nil {
				cause = fmt.Errorf("%w: %v", ErrUnreachable, s.connectErr)
			}
			res.Err = &ConnectionError{Node: s.node, Err: cause}
		} else {
			res.Err = &ConnectionError{Node: s.node, Err: err}
		}
		res.ExitStatus = -1
		a.logger.With("node", s.node, "error", res.Err).Warn("command could not be executed")
		a.record(ctx, cmd, res)
		return res, res.Err
	}

	a.record(ctx, cmd, res)

	if res.ExitStatus != 0 {
		a.logger.CommandFailure(s.node, cmd, res.ExitStatus, res.Stdout, res.Stderr)
		if exitOnErr {
			return res, a.Fail(&FatalError{Node: s.node, Command: cmd, Result: res})
		}
	}
	return res, nil
}

// Fail hands a fatal condition to the abort handler, if one is installed,
// and returns it. Recipes use it for failures detected after a successful
// exit status.
func (a *Agent) Fail(fe *FatalError) error {
	if a.abort != nil {
		a.abort(fe)
	}
	return fe
}

func (a *Agent) record(ctx context.Context, cmd string, res *CommandResult) {
	if a.recorder == nil {
		return
	}
	if err := a.recorder.Record(context.WithoutCancel(ctx), cmd, res); err != nil {
		a.logger.With("node", res.Node, "error", err).Warn("failed to record execution")
	}
}
