package recipes

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cloudlab-agent/internal/pkg/agent"
)

type call struct {
	target    string
	cmd       string
	exitOnErr bool
}

type fakeDispatcher struct {
	calls  []call
	status int
}

func (f *fakeDispatcher) Run(_ context.Context, t agent.Target, cmd string, exitOnErr bool) (agent.Result, error) {
	f.calls = append(f.calls, call{target: t.String(), cmd: cmd, exitOnErr: exitOnErr})
	res := &agent.CommandResult{Node: t.String(), ExitStatus: f.status}
	if f.status != 0 && exitOnErr {
		return res, &agent.FatalError{Node: t.String(), Command: cmd, Result: res}
	}
	return res, nil
}

func TestRecipeCommands(t *testing.T) {
	tests := []struct {
		name          string
		run           func(*Installer) (agent.Result, error)
		wantCmd       string
		wantExitOnErr bool
	}{
		{
			name:    "governor",
			run:     func(i *Installer) (agent.Result, error) { return i.SetPowerGovernor(context.Background(), agent.One("node-1"), "performance") },
			wantCmd: "sudo cpupower frequency-set -g performance",
		},
		{
			name:    "frequency",
			run:     func(i *Installer) (agent.Result, error) { return i.SetFrequency(context.Background(), agent.One("node-1"), "0-3", "2.4GHz") },
			wantCmd: "sudo cpupower -c 0-3 frequency-set -f 2.4GHz",
		},
		{
			name:    "turbo on",
			run:     func(i *Installer) (agent.Result, error) { return i.SetTurbo(context.Background(), agent.All(), true) },
			wantCmd: "echo 0 | sudo tee /sys/devices/system/cpu/intel_pstate/no_turbo",
		},
		{
			name:    "turbo off",
			run:     func(i *Installer) (agent.Result, error) { return i.SetTurbo(context.Background(), agent.All(), false) },
			wantCmd: "echo 1 | sudo tee /sys/devices/system/cpu/intel_pstate/no_turbo",
		},
		{
			name:    "hyperthreading off",
			run:     func(i *Installer) (agent.Result, error) { return i.SetHyperthreading(context.Background(), agent.All(), false) },
			wantCmd: "echo off | sudo tee /sys/devices/system/cpu/smt/control",
		},
		{
			name:    "reboot",
			run:     func(i *Installer) (agent.Result, error) { return i.Reboot(context.Background(), agent.One("node-2")) },
			wantCmd: "sudo reboot",
		},
		{
			name:    "benchmark",
			run:     func(i *Installer) (agent.Result, error) { return i.LaunchBenchmark(context.Background(), agent.All(), "wrk -t4 http://10.10.1.1") },
			wantCmd: "wrk -t4 http://10.10.1.1",
		},
		{
			name:          "docker is always fatal",
			run:           func(i *Installer) (agent.Result, error) { return i.InstallDocker(context.Background(), agent.One("node-1")) },
			wantCmd:       dockerScript,
			wantExitOnErr: true,
		},
		{
			name:          "deps fatal across nodes",
			run:           func(i *Installer) (agent.Result, error) { return i.InstallDeps(context.Background(), agent.All()) },
			wantCmd:       depsScript,
			wantExitOnErr: true,
		},
		{
			name:    "deps not fatal on one node",
			run:     func(i *Installer) (agent.Result, error) { return i.InstallDeps(context.Background(), agent.One("node-1")) },
			wantCmd: depsScript,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &fakeDispatcher{}
			_, err := tt.run(NewInstaller(d, nil))
			require.NoError(t, err)
			require.Len(t, d.calls, 1)
			assert.Equal(t, tt.wantCmd, d.calls[0].cmd)
			assert.Equal(t, tt.wantExitOnErr, d.calls[0].exitOnErr)
		})
	}
}

func TestRecipeValidation(t *testing.T) {
	d := &fakeDispatcher{}
	i := NewInstaller(d, nil)
	ctx := context.Background()

	_, err := i.SetPowerGovernor(ctx, agent.All(), "performance; reboot")
	assert.Error(t, err)
	_, err = i.SetFrequency(ctx, agent.All(), "0-3", "$(reboot)")
	assert.Error(t, err)
	_, err = i.SetFrequency(ctx, agent.All(), "x", "2GHz")
	assert.Error(t, err)
	_, err = i.LaunchBenchmark(ctx, agent.All(), "")
	assert.ErrorIs(t, err, ErrEmptyBenchmark)

	assert.Empty(t, d.calls, "invalid arguments never reach the nodes")
}

func TestRecipeFailurePropagation(t *testing.T) {
	d := &fakeDispatcher{status: 100}
	i := NewInstaller(d, nil)

	_, err := i.InstallDocker(context.Background(), agent.One("node-1"))
	_, fatal := agent.AsFatal(err)
	assert.True(t, fatal)

	res, err := i.LaunchBenchmark(context.Background(), agent.One("node-1"), "stress --cpu 4")
	require.NoError(t, err)
	assert.True(t, res.Failed())
}
