// Package fleettest builds agents whose nodes are in-process SSH servers.
package fleettest

import (
	"testing"
	"time"

	"cloudlab-agent/internal/config"
	"cloudlab-agent/internal/pkg/agent"
	"cloudlab-agent/internal/pkg/ssh"
	"cloudlab-agent/internal/testutil/sshtest"
)

// Cluster returns a valid configuration for nodes with a freshly generated
// ed25519 key. The first node is the master.
func Cluster(t testing.TB, nodes ...string) *config.ClusterConfig {
	t.Helper()
	return &config.ClusterConfig{
		Account: config.AccountConfig{
			Username:       "tester",
			SSHKeyFilename: sshtest.WriteKey(t, t.TempDir(), "id_ed25519", "ed25519", ""),
			Port:           22,
		},
		Nodes:         nodes,
		SSHSuffix:     ".test",
		MasterNode:    nodes[0],
		NetworkPrefix: "10.10.1.",
	}
}

// Dialer sends each node with a server to that server and every other node
// to a port nothing listens on.
func Dialer(servers map[string]*sshtest.Server) agent.Dialer {
	return func(node string, cfg ssh.SSHConfig) agent.Conn {
		if srv, ok := servers[node]; ok {
			cfg.Host, cfg.Port = srv.Host(), srv.Port()
		} else {
			cfg.Host, cfg.Port = "127.0.0.1", 1
		}
		return ssh.NewClient(cfg)
	}
}

// New starts one server per handler and connects an agent to nodes. Nodes
// without a handler end up unreachable.
func New(t testing.TB, handlers map[string]sshtest.Handler, nodes []string, opts ...agent.Option) *agent.Agent {
	t.Helper()
	servers := make(map[string]*sshtest.Server, len(handlers))
	for node, h := range handlers {
		servers[node] = sshtest.NewServer(t, h)
	}

	opts = append([]agent.Option{
		agent.WithDialer(Dialer(servers)),
		agent.WithConnectTimeout(2 * time.Second),
	}, opts...)
	a, err := agent.New(Cluster(t, nodes...), opts...)
	if err != nil {
		t.Fatalf("build agent: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a
}

// Same maps every node to the same handler.
func Same(h sshtest.Handler, nodes ...string) map[string]sshtest.Handler {
	out := make(map[string]sshtest.Handler, len(nodes))
	for _, node := range nodes {
		out[node] = h
	}
	return out
}
