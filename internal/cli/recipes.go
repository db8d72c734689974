package cli

import (
	"github.com/spf13/cobra"

	"cloudlab-agent/internal/model"
)

// targetedRecipeCmd is a command that only takes target flags and runs one
// recipe.
func targetedRecipeCmd(r *root, use, short, recipe string) *cobra.Command {
	var targets targetFlags

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: r.withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			return a.recipe(cmd, recipe, &model.RecipeRequest{Target: targets.request()})
		}),
	}
	targets.register(cmd)

	return cmd
}

func newInstallCmd(r *root) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install packages on the nodes",
	}
	cmd.AddCommand(
		targetedRecipeCmd(r, "deps", "Install the base packages and tooling", "install-deps"),
		targetedRecipeCmd(r, "docker", "Install Docker Engine from the upstream repository", "install-docker"),
	)
	return cmd
}

func newRebootCmd(r *root) *cobra.Command {
	return targetedRecipeCmd(r, "reboot", "Reboot the selected nodes", "reboot")
}

func newPowerCmd(r *root) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "power",
		Short: "Tune CPU power management",
	}
	cmd.AddCommand(
		newGovernorCmd(r),
		newFrequencyCmd(r),
		newToggleCmd(r, "turbo", "Enable or disable turbo boost", "turbo"),
		newToggleCmd(r, "hyperthreading", "Enable or disable simultaneous multithreading", "hyperthreading"),
	)
	return cmd
}

func newGovernorCmd(r *root) *cobra.Command {
	var targets targetFlags

	cmd := &cobra.Command{
		Use:     "governor <name>",
		Short:   "Set the cpufreq governor",
		Example: `  agent power governor performance --nodes node-2,node-3`,
		Args:    cobra.ExactArgs(1),
		RunE: r.withApp(func(cmd *cobra.Command, a *app, args []string) error {
			return a.recipe(cmd, "power-governor", &model.RecipeRequest{
				Target:   targets.request(),
				Governor: args[0],
			})
		}),
	}
	targets.register(cmd)

	return cmd
}

func newFrequencyCmd(r *root) *cobra.Command {
	var (
		targets targetFlags
		cpus    string
	)

	cmd := &cobra.Command{
		Use:     "frequency <frequency>",
		Short:   "Pin the CPU frequency",
		Example: `  agent power frequency 2.4GHz --cpus 0-7`,
		Args:    cobra.ExactArgs(1),
		RunE: r.withApp(func(cmd *cobra.Command, a *app, args []string) error {
			return a.recipe(cmd, "cpu-frequency", &model.RecipeRequest{
				Target:    targets.request(),
				CPUs:      cpus,
				Frequency: args[0],
			})
		}),
	}
	targets.register(cmd)
	cmd.Flags().StringVar(&cpus, "cpus", "all", "CPU list, e.g. 0-3,8")

	return cmd
}

func newToggleCmd(r *root, use, short, recipe string) *cobra.Command {
	var targets targetFlags

	cmd := &cobra.Command{
		Use:       use + " on|off",
		Short:     short,
		ValidArgs: []string{"on", "off"},
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.ExactArgs(1)(cmd, args); err != nil {
				return err
			}
			_, err := parseSwitch(args[0])
			return err
		},
		RunE: r.withApp(func(cmd *cobra.Command, a *app, args []string) error {
			enabled, _ := parseSwitch(args[0])
			return a.recipe(cmd, recipe, &model.RecipeRequest{
				Target:  targets.request(),
				Enabled: &enabled,
			})
		}),
	}
	targets.register(cmd)

	return cmd
}
