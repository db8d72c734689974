package service

import (
	"context"

	"cloudlab-agent/internal/model"
	"cloudlab-agent/internal/pkg/agent"
	"cloudlab-agent/internal/pkg/logger"
	"cloudlab-agent/internal/pkg/swarm"
)

const probeCommand = "uname -a"

type NodeService struct {
	agent  *agent.Agent
	swarm  *swarm.Manager
	logger *logger.Logger
}

func NewNodeService(a *agent.Agent, sw *swarm.Manager, logger *logger.Logger) *NodeService {
	return &NodeService{
		agent:  a,
		swarm:  sw,
		logger: logger,
	}
}

func (s *NodeService) List() *model.ClusterInfo {
	cluster := s.agent.Cluster()
	info := &model.ClusterInfo{
		MasterNode:  s.agent.Master(),
		Workers:     s.agent.Workers(),
		Unreachable: s.agent.Unreachable(),
		SwarmState:  s.swarm.State().String(),
	}
	for _, node := range s.agent.Nodes() {
		info.Nodes = append(info.Nodes, model.Node{
			Name:       node,
			Hostname:   cluster.Hostname(node),
			Master:     node == info.MasterNode,
			Reachable:  s.agent.Reachable(node),
			SwarmState: s.swarm.NodeState(node),
		})
	}
	return info
}

// Probe runs a harmless command everywhere and reports what answered.
func (s *NodeService) Probe(ctx context.Context) (agent.AggregatedResult, error) {
	s.logger.Infof("probing %d nodes", len(s.agent.Nodes()))
	return s.agent.RunMany(ctx, s.agent.Nodes(), probeCommand, false)
}

func (s *NodeService) Run(ctx context.Context, req *model.RunRequest) (agent.Result, error) {
	t, err := req.Target.Target()
	if err != nil {
		return nil, err
	}
	s.logger.With("target", t.String(), "exit_on_err", req.ExitOnErr).Info("running command")
	return s.agent.Run(ctx, t, req.Command, req.ExitOnErr)
}
