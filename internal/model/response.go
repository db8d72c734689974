package model

import (
	"cloudlab-agent/internal/pkg/agent"
)

type CommandResultView struct {
	Node       string   `json:"node" yaml:"node"`
	Stdout     []string `json:"stdout" yaml:"stdout"`
	Stderr     []string `json:"stderr" yaml:"stderr"`
	ExitStatus int      `json:"exitStatus" yaml:"exit_status"`
	DurationMs int64    `json:"durationMs" yaml:"duration_ms"`
	Error      string   `json:"error,omitempty" yaml:"error,omitempty"`
}

// RunResponse mirrors the shape of agent.Result: Result for a single-node
// target, Results for a node list.
type RunResponse struct {
	Success bool                         `json:"success" yaml:"success"`
	Result  *CommandResultView           `json:"result,omitempty" yaml:"result,omitempty"`
	Results map[string]CommandResultView `json:"results,omitempty" yaml:"results,omitempty"`
	Error   string                       `json:"error,omitempty" yaml:"error,omitempty"`
}

type TaskResponse struct {
	Success bool   `json:"success"`
	TaskID  string `json:"taskId,omitempty"`
	Message string `json:"message,omitempty"`
}

type ProgressResponse struct {
	Success  bool         `json:"success"`
	Recipe   string       `json:"recipe"`
	Progress float64      `json:"progress"`
	Status   string       `json:"status"`
	Logs     []string     `json:"logs"`
	Error    string       `json:"error,omitempty"`
	Result   *RunResponse `json:"result,omitempty"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Code    int    `json:"code,omitempty"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func ViewOf(r *agent.CommandResult) CommandResultView {
	v := CommandResultView{
		Node:       r.Node,
		Stdout:     r.Stdout,
		Stderr:     r.Stderr,
		ExitStatus: r.ExitStatus,
		DurationMs: r.Duration.Milliseconds(),
	}
	if r.Err != nil {
		v.Error = r.Err.Error()
	}
	return v
}

// NewRunResponse converts a dispatch outcome. res may be nil when err
// rejected the target before dispatch.
func NewRunResponse(res agent.Result, err error) *RunResponse {
	out := &RunResponse{Success: err == nil && res != nil && !res.Failed()}
	if err != nil {
		out.Error = err.Error()
	}
	switch r := res.(type) {
	case *agent.CommandResult:
		v := ViewOf(r)
		out.Result = &v
	case agent.AggregatedResult:
		out.Results = make(map[string]CommandResultView, len(r))
		for node, cr := range r {
			out.Results[node] = ViewOf(cr)
		}
	}
	return out
}
