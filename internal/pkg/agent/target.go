package agent

import (
	"fmt"
	"strings"
)

type targetKind int

const (
	targetOne targetKind = iota
	targetNodes
	targetAll
)

// Target selects the nodes a command is dispatched to. The shape decides the
// shape of the result: One yields a *CommandResult, Nodes and All yield an
// AggregatedResult even when they select a single node.
type Target struct {
	kind  targetKind
	nodes []string
}

// All selects every configured node in configured order.
func All() Target {
	return Target{kind: targetAll}
}

func Nodes(nodes ...string) Target {
	return Target{kind: targetNodes, nodes: append([]string(nil), nodes...)}
}

func One(node string) Target {
	return Target{kind: targetOne, nodes: []string{node}}
}

func (t Target) IsSingle() bool {
	return t.kind == targetOne
}

func (t Target) String() string {
	switch t.kind {
	case targetAll:
		return "all"
	case targetNodes:
		return "[" + strings.Join(t.nodes, ",") + "]"
	default:
		if len(t.nodes) == 0 {
			return ""
		}
		return t.nodes[0]
	}
}

// resolve expands the target against the configured nodes.
func (a *Agent) resolve(t Target) ([]string, error) {
	if t.kind == targetAll {
		return a.Nodes(), nil
	}
	if len(t.nodes) == 0 {
		if t.kind == targetOne {
			return nil, &UnknownNodeError{}
		}
		return nil, ErrEmptyTarget
	}

	seen := make(map[string]bool, len(t.nodes))
	for _, node := range t.nodes {
		if _, ok := a.sessions[node]; !ok {
			return nil, &UnknownNodeError{Node: node}
		}
		if seen[node] {
			return nil, fmt.Errorf("node %q targeted twice", node)
		}
		seen[node] = true
	}
	return t.nodes, nil
}
