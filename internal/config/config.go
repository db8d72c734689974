package config

import (
	"os"
	"strconv"
	"strings"
)

// Config holds the runtime settings of the control process. Cluster topology
// lives in ClusterConfig and is loaded separately.
type Config struct {
	Server  ServerConfig
	SSH     SSHConfig
	Logging LoggingConfig
	History HistoryConfig
}

type ServerConfig struct {
	Port         int
	ReadTimeout  int
	WriteTimeout int
	AllowOrigins []string
}

type SSHConfig struct {
	ConnectTimeout int
	// CommandTimeout of 0 disables the per-command deadline.
	CommandTimeout int
	// MaxParallel of 0 runs one goroutine per targeted node.
	MaxParallel    int
	KnownHostsFile string
}

type LoggingConfig struct {
	Level  string
	Format string
}

type HistoryConfig struct {
	// Path of the SQLite run history; empty disables recording.
	Path string
}

func LoadConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:  getEnvAsInt("READ_TIMEOUT", 30),
			WriteTimeout: getEnvAsInt("WRITE_TIMEOUT", 0),
			AllowOrigins: getEnvAsList("CORS_ALLOW_ORIGINS", []string{"http://localhost:3000"}),
		},
		SSH: SSHConfig{
			ConnectTimeout: getEnvAsInt("SSH_CONNECT_TIMEOUT", 30),
			CommandTimeout: getEnvAsInt("SSH_COMMAND_TIMEOUT", 0),
			MaxParallel:    getEnvAsInt("MAX_PARALLEL", 0),
			KnownHostsFile: getEnvAsString("SSH_KNOWN_HOSTS", ""),
		},
		Logging: LoggingConfig{
			Level:  getEnvAsString("LOG_LEVEL", "info"),
			Format: getEnvAsString("LOG_FORMAT", "console"),
		},
		History: HistoryConfig{
			Path: getEnvAsString("HISTORY_DB", ""),
		},
	}
}

func getEnvAsString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
