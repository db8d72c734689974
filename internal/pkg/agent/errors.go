package agent

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyTarget is returned when a node list selects nothing.
	ErrEmptyTarget = errors.New("target selects no nodes")

	// ErrUnreachable marks nodes whose connection failed at construction.
	ErrUnreachable = errors.New("node unreachable")
)

// ConfigError is returned by New when the cluster cannot be started at all.
// Callers are expected to treat it as fatal.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error: %v", e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ConnectionError reports a node that cannot carry commands.
type ConnectionError struct {
	Node string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("node %s: %v", e.Node, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// FatalError is produced when a caller asked for fail-fast and the command
// failed. The process is expected to stop: either the agent's abort handler
// already ran, or the top-level caller must abort on seeing it.
type FatalError struct {
	Node    string
	Command string
	Result  *CommandResult
	// Reason is set when the failure is not a plain exit status, e.g. a
	// bootstrap whose output lacked the expected token.
	Reason error
}

func (e *FatalError) Error() string {
	if e.Reason != nil {
		return fmt.Sprintf("fatal failure on node %s: %v", e.Node, e.Reason)
	}
	status := -1
	if e.Result != nil {
		status = e.Result.ExitStatus
	}
	return fmt.Sprintf("fatal failure on node %s: command exited with status %d", e.Node, status)
}

func (e *FatalError) Unwrap() error {
	return e.Reason
}

// TransferError wraps any failure of Upload or Download.
type TransferError struct {
	Node   string
	Op     string
	Local  string
	Remote string
	Err    error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("%s %s <-> %s:%s: %v", e.Op, e.Local, e.Node, e.Remote, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// UnknownNodeError is returned when a target names a node that is not part
// of the cluster configuration.
type UnknownNodeError struct {
	Node string
}

func (e *UnknownNodeError) Error() string {
	return fmt.Sprintf("unknown node %q", e.Node)
}

// AsFatal reports whether err carries a FatalError.
func AsFatal(err error) (*FatalError, bool) {
	var fe *FatalError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}
