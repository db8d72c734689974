// Package swarm bootstraps and tears down a Docker swarm across the cluster.
//
// The master is initialized first and its join token is kept by the
// Manager; workers join with that token and a per-node advertise address.
package swarm

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"cloudlab-agent/internal/pkg/agent"
	"cloudlab-agent/internal/pkg/logger"
)

const (
	initCommand  = "sudo docker swarm init --advertise-addr `hostname -i`"
	leaveCommand = "sudo docker swarm leave -f"
	tokenCommand = "sudo docker swarm join-token worker"
)

var (
	// ErrNoJoinToken is the Reason of the FatalError raised when the swarm
	// init output carries no worker join command.
	ErrNoJoinToken = errors.New("swarm init output has no worker join token")

	// ErrNotInitialized is returned by Join before a successful Initialize.
	ErrNotInitialized = errors.New("swarm is not initialized")

	joinLine   = regexp.MustCompile(`docker swarm join\s+(?:\\\s+)?--token\s+(SWMTKN-[0-9A-Za-z-]+)\s+(?:\\\s+)?(\S+:\d+)`)
	nodeNumber = regexp.MustCompile(`(\d+)$`)
)

// State is the cluster-wide bootstrap state.
type State int

const (
	NoCluster State = iota
	Initialized
	WorkersJoined
)

func (s State) String() string {
	switch s {
	case Initialized:
		return "initialized"
	case WorkersJoined:
		return "workers-joined"
	default:
		return "no-cluster"
	}
}

// JoinToken is what a worker needs to join: the secret and the manager
// address printed by swarm init.
type JoinToken struct {
	Token   string
	Manager string
}

// Runner is the part of the agent the manager drives.
type Runner interface {
	RunOn(ctx context.Context, node, cmd string, exitOnErr bool) (*agent.CommandResult, error)
	RunEach(ctx context.Context, nodes []string, build func(node string) string, exitOnErr bool) (agent.AggregatedResult, error)
	Fail(fe *agent.FatalError) error
	Nodes() []string
	Master() string
	Workers() []string
}

type Manager struct {
	runner Runner
	logger *logger.Logger
	prefix string

	mu     sync.Mutex
	state  State
	token  *JoinToken
	joined map[string]bool
	left   map[string]bool
}

// NewManager returns a manager in the NoCluster state. prefix is prepended
// to a worker's trailing node number to form its advertise address.
func NewManager(runner Runner, prefix string, log *logger.Logger) *Manager {
	if log == nil {
		log = logger.Nop()
	}
	return &Manager{
		runner: runner,
		logger: log,
		prefix: prefix,
		joined: make(map[string]bool),
		left:   make(map[string]bool),
	}
}

// Initialize runs swarm init on the master with fail-fast semantics and
// stores the join token found in its output.
func (m *Manager) Initialize(ctx context.Context) (*agent.CommandResult, error) {
	master := m.runner.Master()
	m.logger.DeploymentStep("swarm-init", master)

	res, err := m.runner.RunOn(ctx, master, initCommand, true)
	if err != nil {
		m.logger.DeploymentError("swarm-init", err)
		return res, err
	}

	token, ok := ParseJoinToken(res.Stdout)
	if !ok {
		err := m.runner.Fail(&agent.FatalError{Node: master, Command: initCommand, Result: res, Reason: ErrNoJoinToken})
		m.logger.DeploymentError("swarm-init", err)
		return res, err
	}

	m.mu.Lock()
	m.token = &token
	m.state = Initialized
	m.joined = make(map[string]bool)
	m.left = make(map[string]bool)
	m.mu.Unlock()

	m.logger.With("manager", token.Manager).Info("swarm initialized")
	return res, nil
}

// Reattach recovers the join token of a swarm initialized by an earlier
// process by asking the master for it. It leaves the manager untouched when
// the master is not a swarm manager.
func (m *Manager) Reattach(ctx context.Context) (*agent.CommandResult, error) {
	master := m.runner.Master()
	res, err := m.runner.RunOn(ctx, master, tokenCommand, false)
	if err != nil {
		return res, err
	}
	if res.Failed() {
		return res, ErrNotInitialized
	}

	token, ok := ParseJoinToken(res.Stdout)
	if !ok {
		return res, ErrNoJoinToken
	}

	m.mu.Lock()
	m.token = &token
	if m.state == NoCluster {
		m.state = Initialized
	}
	m.mu.Unlock()
	m.logger.With("manager", token.Manager).Debug("reattached to swarm")
	return res, nil
}

// Join adds nodes as workers, concurrently. With no nodes every configured
// node except the master joins.
func (m *Manager) Join(ctx context.Context, nodes ...string) (agent.AggregatedResult, error) {
	if len(nodes) == 0 {
		nodes = m.runner.Workers()
	}

	m.mu.Lock()
	token := m.token
	m.mu.Unlock()
	if token == nil {
		return nil, ErrNotInitialized
	}

	cmds := make(map[string]string, len(nodes))
	for _, node := range nodes {
		addr, err := AdvertiseAddr(m.prefix, node)
		if err != nil {
			return nil, err
		}
		cmds[node] = JoinCommand(*token, addr)
	}

	m.logger.DeploymentStep("swarm-join", fmt.Sprint(nodes))
	agg, err := m.runner.RunEach(ctx, nodes, func(node string) string { return cmds[node] }, false)
	if agg == nil {
		return nil, err
	}

	m.mu.Lock()
	for node, res := range agg {
		if !res.Failed() {
			m.joined[node] = true
			delete(m.left, node)
		}
	}
	if len(m.joined) > 0 && m.state == Initialized {
		m.state = WorkersJoined
	}
	m.mu.Unlock()

	if failed := agg.Failures(); len(failed) > 0 {
		m.logger.With("nodes", failed).Warn("some workers failed to join")
	} else {
		m.logger.DeploymentSuccess("swarm-join")
	}
	return agg, err
}

// Leave removes nodes from the swarm one at a time, workers before the
// master. A failure on one node does not stop the others. With no nodes
// every configured node leaves. An unknown node fails the call before any
// node leaves.
func (m *Manager) Leave(ctx context.Context, nodes ...string) (agent.AggregatedResult, error) {
	if len(nodes) == 0 {
		nodes = m.runner.Nodes()
	}
	known := make(map[string]bool)
	for _, node := range m.runner.Nodes() {
		known[node] = true
	}
	for _, node := range nodes {
		if !known[node] {
			return nil, &agent.UnknownNodeError{Node: node}
		}
	}

	master := m.runner.Master()
	ordered := make([]string, 0, len(nodes))
	withMaster := false
	for _, node := range nodes {
		if node == master {
			withMaster = true
			continue
		}
		ordered = append(ordered, node)
	}
	if withMaster {
		ordered = append(ordered, master)
	}

	agg := make(agent.AggregatedResult, len(ordered))
	for _, node := range ordered {
		m.logger.DeploymentStep("swarm-leave", node)
		res, err := m.runner.RunOn(ctx, node, leaveCommand, false)
		if res == nil {
			return agg, err
		}
		agg[node] = res
		if res.Failed() {
			continue
		}

		m.mu.Lock()
		m.left[node] = true
		delete(m.joined, node)
		if node == master {
			m.state = NoCluster
			m.token = nil
		}
		m.mu.Unlock()
	}
	return agg, nil
}

// CreateResult holds the two phases of Create.
type CreateResult struct {
	Init *agent.CommandResult
	Join agent.AggregatedResult
}

// Create initializes the swarm and joins every worker.
func (m *Manager) Create(ctx context.Context) (*CreateResult, error) {
	initRes, err := m.Initialize(ctx)
	out := &CreateResult{Init: initRes}
	if err != nil {
		return out, err
	}
	if len(m.runner.Workers()) == 0 {
		return out, nil
	}
	out.Join, err = m.Join(ctx)
	return out, err
}

// Destroy makes every node leave.
func (m *Manager) Destroy(ctx context.Context) (agent.AggregatedResult, error) {
	return m.Leave(ctx)
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) Token() (JoinToken, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token == nil {
		return JoinToken{}, false
	}
	return *m.token, true
}

// NodeState reports "joined", "left" or "" for a node.
func (m *Manager) NodeState(node string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case m.joined[node]:
		return "joined"
	case m.left[node]:
		return "left"
	}
	return ""
}

// ParseJoinToken finds the worker join command in swarm init output.
func ParseJoinToken(stdout []string) (JoinToken, bool) {
	match := joinLine.FindStringSubmatch(strings.Join(stdout, "\n"))
	if match == nil {
		return JoinToken{}, false
	}
	return JoinToken{Token: match[1], Manager: match[2]}, true
}

// AdvertiseAddr derives a worker address from the trailing number of its
// node name, e.g. "10.10.1." and "node-3" give "10.10.1.3".
func AdvertiseAddr(prefix, node string) (string, error) {
	match := nodeNumber.FindString(node)
	if match == "" {
		return "", fmt.Errorf("node %q has no numeric suffix to derive an advertise address", node)
	}
	n, err := strconv.Atoi(match)
	if err != nil {
		return "", fmt.Errorf("node %q: %w", node, err)
	}
	return prefix + strconv.Itoa(n), nil
}

func JoinCommand(token JoinToken, advertiseAddr string) string {
	return fmt.Sprintf("sudo docker swarm join --token %s --advertise-addr %s %s", token.Token, advertiseAddr, token.Manager)
}
