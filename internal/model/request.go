package model

import (
	"errors"

	"cloudlab-agent/internal/pkg/agent"
	"cloudlab-agent/pkg/utils"
)

// TargetRequest selects nodes: exactly one of All, Nodes or Node.
type TargetRequest struct {
	All   bool     `json:"all"`
	Nodes []string `json:"nodes"`
	Node  string   `json:"node"`
}

func (r TargetRequest) Target() (agent.Target, error) {
	set := 0
	if r.All {
		set++
	}
	if r.Nodes != nil {
		set++
	}
	if r.Node != "" {
		set++
	}
	if set != 1 {
		return agent.Target{}, errors.New("target must set exactly one of all, nodes or node")
	}
	names := r.Nodes
	if r.Node != "" {
		names = []string{r.Node}
	}
	for _, name := range names {
		if err := utils.ValidateNodeName(name); err != nil {
			return agent.Target{}, err
		}
	}
	switch {
	case r.All:
		return agent.All(), nil
	case r.Node != "":
		return agent.One(r.Node), nil
	default:
		return agent.Nodes(r.Nodes...), nil
	}
}

type RunRequest struct {
	Target    TargetRequest `json:"target"`
	Command   string        `json:"command" binding:"required"`
	ExitOnErr bool          `json:"exitOnErr"`
}

// RecipeRequest carries the arguments of every recipe; each recipe reads
// the fields it needs.
type RecipeRequest struct {
	Target    TargetRequest `json:"target"`
	Governor  string        `json:"governor"`
	CPUs      string        `json:"cpus"`
	Frequency string        `json:"frequency"`
	Enabled   *bool         `json:"enabled"`
	Command   string        `json:"command"`
}
