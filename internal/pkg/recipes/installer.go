// Package recipes holds the fixed provisioning and tuning commands routed
// through the agent.
package recipes

import (
	"context"
	"errors"
	"fmt"

	"cloudlab-agent/internal/pkg/agent"
	"cloudlab-agent/internal/pkg/logger"
	"cloudlab-agent/pkg/utils"
)

var ErrEmptyBenchmark = errors.New("benchmark command must not be empty")

// Dispatcher is the part of the agent recipes need.
type Dispatcher interface {
	Run(ctx context.Context, t agent.Target, cmd string, exitOnErr bool) (agent.Result, error)
}

type Installer struct {
	runner Dispatcher
	logger *logger.Logger
}

func NewInstaller(runner Dispatcher, log *logger.Logger) *Installer {
	if log == nil {
		log = logger.Nop()
	}
	return &Installer{runner: runner, logger: log}
}

// InstallDeps installs the system and python packages the experiments need.
// Across several nodes any failure is fatal; on one node the failure is
// returned as data.
func (i *Installer) InstallDeps(ctx context.Context, t agent.Target) (agent.Result, error) {
	return i.run(ctx, "install-deps", t, depsScript, !t.IsSingle())
}

// InstallDocker installs docker-ce from the upstream apt repository. Any
// failure is fatal.
func (i *Installer) InstallDocker(ctx context.Context, t agent.Target) (agent.Result, error) {
	return i.run(ctx, "install-docker", t, dockerScript, true)
}

func (i *Installer) Reboot(ctx context.Context, t agent.Target) (agent.Result, error) {
	return i.run(ctx, "reboot", t, rebootCommand, false)
}

func (i *Installer) SetPowerGovernor(ctx context.Context, t agent.Target, governor string) (agent.Result, error) {
	if err := utils.ValidateGovernor(governor); err != nil {
		return nil, err
	}
	return i.run(ctx, "power-governor", t, fmt.Sprintf(governorCommand, governor), false)
}

// SetFrequency pins the frequency of cpus ("0-3", "0,2" or "all").
func (i *Installer) SetFrequency(ctx context.Context, t agent.Target, cpus, frequency string) (agent.Result, error) {
	if err := utils.ValidateCPUList(cpus); err != nil {
		return nil, err
	}
	if err := utils.ValidateFrequency(frequency); err != nil {
		return nil, err
	}
	return i.run(ctx, "cpu-frequency", t, fmt.Sprintf(frequencyCommand, cpus, frequency), false)
}

func (i *Installer) SetTurbo(ctx context.Context, t agent.Target, enabled bool) (agent.Result, error) {
	noTurbo := 1
	if enabled {
		noTurbo = 0
	}
	return i.run(ctx, "turbo", t, fmt.Sprintf(turboCommand, noTurbo), false)
}

func (i *Installer) SetHyperthreading(ctx context.Context, t agent.Target, enabled bool) (agent.Result, error) {
	state := "off"
	if enabled {
		state = "on"
	}
	return i.run(ctx, "hyperthreading", t, fmt.Sprintf(smtCommand, state), false)
}

// LaunchBenchmark runs a caller-supplied load generator. Its failure is
// diagnostic data and never fatal.
func (i *Installer) LaunchBenchmark(ctx context.Context, t agent.Target, cmd string) (agent.Result, error) {
	if cmd == "" {
		return nil, ErrEmptyBenchmark
	}
	return i.run(ctx, "benchmark", t, cmd, false)
}

func (i *Installer) run(ctx context.Context, step string, t agent.Target, cmd string, exitOnErr bool) (agent.Result, error) {
	i.logger.DeploymentStep(step, t.String())
	res, err := i.runner.Run(ctx, t, cmd, exitOnErr)
	if err != nil {
		i.logger.DeploymentError(step, err)
		return res, err
	}
	if res.Failed() {
		i.logger.With("step", step, "target", t.String()).Warn("recipe finished with failures")
	} else {
		i.logger.DeploymentSuccess(step)
	}
	return res, nil
}
