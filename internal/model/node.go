package model

type Node struct {
	Name       string `json:"name" yaml:"name"`
	Hostname   string `json:"hostname" yaml:"hostname"`
	Master     bool   `json:"master" yaml:"master"`
	Reachable  bool   `json:"reachable" yaml:"reachable"`
	SwarmState string `json:"swarmState,omitempty" yaml:"swarm_state,omitempty"`
}

type ClusterInfo struct {
	MasterNode  string   `json:"masterNode" yaml:"master_node"`
	Workers     []string `json:"workers" yaml:"workers"`
	Unreachable []string `json:"unreachable" yaml:"unreachable"`
	SwarmState  string   `json:"swarmState" yaml:"swarm_state"`
	Nodes       []Node   `json:"nodes" yaml:"nodes"`
}
