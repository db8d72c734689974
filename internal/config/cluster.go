package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// KeyType names a supported private key family.
type KeyType string

const (
	KeyTypeEd25519 KeyType = "ed25519"
	KeyTypeRSA     KeyType = "rsa"
)

const defaultNetworkPrefix = "10.10.1."

// ErrInvalidCluster is wrapped by every validation failure of a cluster file.
var ErrInvalidCluster = errors.New("invalid cluster configuration")

// AccountConfig is the login used on every node.
type AccountConfig struct {
	Username       string  `mapstructure:"username" json:"username" yaml:"username"`
	SSHKeyFilename string  `mapstructure:"ssh_key_filename" json:"ssh_key_filename" yaml:"ssh_key_filename"`
	Password       string  `mapstructure:"password" json:"-" yaml:"-"`
	Port           int     `mapstructure:"port" json:"port" yaml:"port"`
	KeyType        KeyType `mapstructure:"key_type" json:"key_type,omitempty" yaml:"key_type,omitempty"`
}

// ClusterConfig is parsed once when the agent is built and never mutated.
type ClusterConfig struct {
	Account       AccountConfig `mapstructure:"account" json:"account" yaml:"account"`
	Nodes         []string      `mapstructure:"nodes" json:"nodes" yaml:"nodes"`
	SSHSuffix     string        `mapstructure:"ssh_suffix" json:"ssh_suffix" yaml:"ssh_suffix"`
	MasterNode    string        `mapstructure:"master_node" json:"master_node" yaml:"master_node"`
	NetworkPrefix string        `mapstructure:"network_prefix" json:"network_prefix" yaml:"network_prefix"`
}

// LoadCluster reads a cluster file (json, yaml or toml, chosen by extension)
// and validates it. Values may be overridden by CLOUDLAB_* variables, e.g.
// CLOUDLAB_ACCOUNT_PASSWORD.
func LoadCluster(path string) (*ClusterConfig, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: no cluster file given", ErrInvalidCluster)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("CLOUDLAB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault("account.port", 22)
	v.SetDefault("network_prefix", defaultNetworkPrefix)
	// AutomaticEnv only applies to keys viper already knows about.
	v.SetDefault("account.password", "")
	v.SetDefault("account.key_type", "")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrInvalidCluster, path, err)
	}

	cfg := &ClusterConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrInvalidCluster, path, err)
	}

	cfg.Account.SSHKeyFilename = expandHome(cfg.Account.SSHKeyFilename)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required fields and node list consistency.
func (c *ClusterConfig) Validate() error {
	if c.Account.Username == "" {
		return fmt.Errorf("%w: account.username is required", ErrInvalidCluster)
	}
	if c.Account.SSHKeyFilename == "" {
		return fmt.Errorf("%w: account.ssh_key_filename is required", ErrInvalidCluster)
	}
	if c.Account.Port < 1 || c.Account.Port > 65535 {
		return fmt.Errorf("%w: account.port out of range: %d", ErrInvalidCluster, c.Account.Port)
	}
	if len(c.Nodes) == 0 {
		return fmt.Errorf("%w: nodes must not be empty", ErrInvalidCluster)
	}

	seen := make(map[string]bool, len(c.Nodes))
	for _, node := range c.Nodes {
		if strings.TrimSpace(node) == "" {
			return fmt.Errorf("%w: empty node name", ErrInvalidCluster)
		}
		if seen[node] {
			return fmt.Errorf("%w: duplicate node %q", ErrInvalidCluster, node)
		}
		seen[node] = true
	}

	if c.MasterNode == "" {
		return fmt.Errorf("%w: master_node is required", ErrInvalidCluster)
	}
	if !seen[c.MasterNode] {
		return fmt.Errorf("%w: master_node %q is not in nodes", ErrInvalidCluster, c.MasterNode)
	}

	if _, err := c.ResolveKeyType(); err != nil {
		return err
	}
	return nil
}

// ResolveKeyType returns the explicit key type, falling back to sniffing the
// key file name for older cluster files.
func (c *ClusterConfig) ResolveKeyType() (KeyType, error) {
	switch KeyType(strings.ToLower(string(c.Account.KeyType))) {
	case KeyTypeEd25519:
		return KeyTypeEd25519, nil
	case KeyTypeRSA:
		return KeyTypeRSA, nil
	case "":
	default:
		return "", fmt.Errorf("%w: unknown key type %q", ErrInvalidCluster, c.Account.KeyType)
	}

	name := filepath.Base(c.Account.SSHKeyFilename)
	switch {
	case strings.Contains(name, "ed25519"):
		return KeyTypeEd25519, nil
	case strings.Contains(name, "id_rsa"):
		return KeyTypeRSA, nil
	}
	return "", fmt.Errorf("%w: unknown key type for key file %q", ErrInvalidCluster, c.Account.SSHKeyFilename)
}

// Hostname is the address dialled for a node.
func (c *ClusterConfig) Hostname(node string) string {
	return node + c.SSHSuffix
}

// Workers returns every node except the master, in configured order.
func (c *ClusterConfig) Workers() []string {
	workers := make([]string, 0, len(c.Nodes))
	for _, node := range c.Nodes {
		if node != c.MasterNode {
			workers = append(workers, node)
		}
	}
	return workers
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
