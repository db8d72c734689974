// Package agent holds one SSH session per cluster node and runs commands on
// one node, a list of nodes, or the whole cluster.
//
// Sessions are opened once, sequentially, when the Agent is built. A node that
// cannot be reached keeps an unconnected session, so it stays a valid target
// and its commands fail at execution time with a ConnectionError.
//
// Commands dispatched to a list of nodes run concurrently, one goroutine per
// node unless a parallelism limit is configured, and the call returns only
// after every node has finished. There is no default timeout: a hung remote
// command holds the whole dispatch.
package agent

import (
	"context"
	"errors"
	"time"

	"github.com/pkg/sftp"
	gossh "golang.org/x/crypto/ssh"

	"cloudlab-agent/internal/config"
	"cloudlab-agent/internal/pkg/logger"
	"cloudlab-agent/internal/pkg/ssh"
)

// Conn is the transport of one node session. *ssh.Client implements it.
type Conn interface {
	Connect() error
	Connected() bool
	ExecuteCommand(ctx context.Context, cmd string) (*ssh.CommandResult, error)
	NewSFTP() (*sftp.Client, error)
	Close() error
}

// Dialer builds the (not yet connected) transport for a node.
type Dialer func(node string, cfg ssh.SSHConfig) Conn

// Recorder receives every finished execution.
type Recorder interface {
	Record(ctx context.Context, cmd string, res *CommandResult) error
}

type session struct {
	node       string
	conn       Conn
	connectErr error
}

type Agent struct {
	cluster *config.ClusterConfig
	logger  *logger.Logger

	sessions    map[string]*session
	unreachable []string

	dialer         Dialer
	hostKeys       gossh.HostKeyCallback
	connectTimeout time.Duration
	commandTimeout time.Duration
	maxParallel    int
	abort          func(*FatalError)
	recorder       Recorder
}

type Option func(*Agent)

func WithLogger(l *logger.Logger) Option {
	return func(a *Agent) { a.logger = l }
}

func WithDialer(d Dialer) Option {
	return func(a *Agent) { a.dialer = d }
}

func WithHostKeyCallback(cb gossh.HostKeyCallback) Option {
	return func(a *Agent) { a.hostKeys = cb }
}

func WithConnectTimeout(d time.Duration) Option {
	return func(a *Agent) { a.connectTimeout = d }
}

// WithCommandTimeout bounds every execution; zero keeps the default of
// waiting forever.
func WithCommandTimeout(d time.Duration) Option {
	return func(a *Agent) { a.commandTimeout = d }
}

// WithMaxParallel bounds concurrent executions of one dispatch; zero means
// one goroutine per node.
func WithMaxParallel(n int) Option {
	return func(a *Agent) { a.maxParallel = n }
}

// WithAbortHandler installs the fail-fast hook. It runs on the goroutine of
// the failing node as soon as the failure is seen and is expected not to
// return (the binary exits the process).
func WithAbortHandler(fn func(*FatalError)) Option {
	return func(a *Agent) { a.abort = fn }
}

func WithRecorder(r Recorder) Option {
	return func(a *Agent) { a.recorder = r }
}

// New loads the key and connects to every configured node. Key problems are
// returned as *ConfigError; connection failures are not errors and only
// mark the node unreachable.
func New(cluster *config.ClusterConfig, opts ...Option) (*Agent, error) {
	if cluster == nil {
		return nil, &ConfigError{Err: errors.New("no cluster configuration")}
	}
	if err := cluster.Validate(); err != nil {
		return nil, &ConfigError{Err: err}
	}

	a := &Agent{
		cluster:        cluster,
		logger:         logger.Nop(),
		sessions:       make(map[string]*session, len(cluster.Nodes)),
		connectTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.dialer == nil {
		a.dialer = func(_ string, cfg ssh.SSHConfig) Conn { return ssh.NewClient(cfg) }
	}
	if a.hostKeys == nil {
		store, err := ssh.NewHostKeyStore("")
		if err != nil {
			return nil, &ConfigError{Err: err}
		}
		a.hostKeys = store.Callback()
	}

	keyType, err := cluster.ResolveKeyType()
	if err != nil {
		return nil, &ConfigError{Err: err}
	}
	signer, err := ssh.LoadSigner(cluster.Account.SSHKeyFilename, cluster.Account.Password, string(keyType))
	if err != nil {
		return nil, &ConfigError{Err: err}
	}

	for _, node := range cluster.Nodes {
		cfg := ssh.SSHConfig{
			Host:            cluster.Hostname(node),
			Port:            cluster.Account.Port,
			Username:        cluster.Account.Username,
			Signer:          signer,
			Timeout:         a.connectTimeout,
			HostKeyCallback: a.hostKeys,
		}
		a.logger.SSHConnectionAttempt(node, cfg.Host)

		s := &session{node: node, conn: a.dialer(node, cfg)}
		if err := s.conn.Connect(); err != nil {
			a.logger.SSHConnectionFailed(node, cfg.Host, err)
			s.connectErr = err
			a.unreachable = append(a.unreachable, node)
		}
		a.sessions[node] = s
	}

	a.logger.Infof("connected to %d/%d nodes", len(cluster.Nodes)-len(a.unreachable), len(cluster.Nodes))
	return a, nil
}

func (a *Agent) Cluster() *config.ClusterConfig {
	return a.cluster
}

func (a *Agent) Logger() *logger.Logger {
	return a.logger
}

// Nodes returns the configured nodes in configured order.
func (a *Agent) Nodes() []string {
	return append([]string(nil), a.cluster.Nodes...)
}

func (a *Agent) Master() string {
	return a.cluster.MasterNode
}

func (a *Agent) Workers() []string {
	return a.cluster.Workers()
}

// Unreachable lists nodes whose connection failed at construction.
func (a *Agent) Unreachable() []string {
	return append([]string(nil), a.unreachable...)
}

func (a *Agent) Reachable(node string) bool {
	s, ok := a.sessions[node]
	return ok && s.connectErr == nil && s.conn.Connected()
}

// Close tears down every session. The agent must not be used afterwards.
func (a *Agent) Close() error {
	var errs []error
	for _, node := range a.cluster.Nodes {
		if err := a.sessions[node].conn.Close(); err != nil {
			errs = append(errs, &ConnectionError{Node: node, Err: err})
		}
	}
	return errors.Join(errs...)
}

func (a *Agent) session(node string) (*session, error) {
	s, ok := a.sessions[node]
	if !ok {
		return nil, &UnknownNodeError{Node: node}
	}
	return s, nil
}
