package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eegprep/eegprep/cmd/datasets"
	"github.com/eegprep/eegprep/cmd/events"
	"github.com/eegprep/eegprep/cmd/extract"
	"github.com/eegprep/eegprep/cmd/inspect"
	"github.com/eegprep/eegprep/cmd/version"
	"github.com/eegprep/eegprep/internal/conf"
)

// RootCommand creates and returns the root command
func RootCommand(ctx *conf.Context) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "eegprep",
		Short:         "Motor imagery epoch extraction for BCI EEG datasets",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Set up the global flags for the root command.
	if err := setupFlags(rootCmd, ctx); err != nil {
		// flag names are static, a failure is a programming error
		panic(err)
	}

	datasetsCmd := datasets.Command()
	versionCmd := version.Command()

	rootCmd.AddCommand(
		extract.Command(ctx),
		inspect.Command(ctx),
		events.Command(ctx),
		datasetsCmd,
		versionCmd,
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// Skip setup for commands that need neither settings nor a logger
		if cmd.Name() == datasetsCmd.Name() || cmd.Name() == versionCmd.Name() {
			return nil
		}
		return ctx.Init()
	}

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, ctx *conf.Context) error {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&ctx.ConfigFile, "config", "", "Path to config file")
	flags.BoolP("debug", "d", false, "Enable debug output")
	flags.String("data", conf.DefaultDataRoot, "Directory holding one subdirectory per raw dataset")
	flags.String("output", conf.DefaultOutputRoot, "Directory receiving one subdirectory per dataset")

	for key, name := range map[string]string{
		"debug":       "debug",
		"data.root":   "data",
		"output.root": "output",
	} {
		if err := ctx.Viper.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", name, err)
		}
	}

	return nil
}
