package agent

import (
	"errors"
	"sort"
	"time"
)

// Result is either a *CommandResult (single-node target) or an
// AggregatedResult (list target). Callers switch on the dynamic type.
type Result interface {
	Failed() bool
	isResult()
}

// CommandResult is the outcome of one command on one node.
type CommandResult struct {
	Node       string
	Stdout     []string
	Stderr     []string
	ExitStatus int
	Duration   time.Duration
	// Err is set when the command could not be run or waited for; ExitStatus
	// is -1 in that case.
	Err error
}

func (r *CommandResult) Failed() bool {
	return r.Err != nil || r.ExitStatus != 0
}

func (*CommandResult) isResult() {}

// AggregatedResult maps each targeted node to its result.
type AggregatedResult map[string]*CommandResult

func (a AggregatedResult) Failed() bool {
	for _, r := range a {
		if r.Failed() {
			return true
		}
	}
	return false
}

func (AggregatedResult) isResult() {}

// Nodes returns the keys in sorted order.
func (a AggregatedResult) Nodes() []string {
	nodes := make([]string, 0, len(a))
	for node := range a {
		nodes = append(nodes, node)
	}
	sort.Strings(nodes)
	return nodes
}

// Failures returns the sorted nodes whose command failed.
func (a AggregatedResult) Failures() []string {
	var failed []string
	for _, node := range a.Nodes() {
		if a[node].Failed() {
			failed = append(failed, node)
		}
	}
	return failed
}

// Err joins the transport errors of every node.
func (a AggregatedResult) Err() error {
	var errs []error
	for _, node := range a.Nodes() {
		if err := a[node].Err; err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
