package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Logger struct {
	*zap.SugaredLogger
}

func NewLogger(level, format string) *Logger {
	cfg := zap.NewProductionConfig()
	if format != "json" {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.DisableStacktrace = true

	base, err := cfg.Build()
	if err != nil {
		base = zap.NewExample()
	}
	return &Logger{SugaredLogger: base.Sugar()}
}

// Nop discards everything; used by tests and library callers without a logger.
func Nop() *Logger {
	return &Logger{SugaredLogger: zap.NewNop().Sugar()}
}

func (l *Logger) SSHConnectionAttempt(node, addr string) {
	l.With("type", "ssh_connection", "node", node, "addr", addr).Info("connecting to node")
}

func (l *Logger) SSHConnectionFailed(node, addr string, err error) {
	l.With("type", "ssh_connection", "node", node, "addr", addr, "error", err).Warn("could not connect to node")
}

// CommandFailure writes the captured streams of a failed command so the
// operator sees them before any abort.
func (l *Logger) CommandFailure(node, cmd string, exitStatus int, stdout, stderr []string) {
	l.With(
		"type", "command",
		"node", node,
		"command", strings.TrimSpace(cmd),
		"exit_status", exitStatus,
		"stdout", strings.Join(stdout, "\n"),
		"stderr", strings.Join(stderr, "\n"),
	).Warn("command exited with non-zero status")
}

func (l *Logger) DeploymentStep(step, node string) {
	l.With("type", "deployment", "step", step, "node", node).Info("running deployment step")
}

func (l *Logger) DeploymentError(step string, err error) {
	l.With("type", "deployment", "step", step, "error", err.Error()).Error("deployment step failed")
}

func (l *Logger) DeploymentSuccess(step string) {
	l.With("type", "deployment", "step", step).Info("deployment step succeeded")
}
