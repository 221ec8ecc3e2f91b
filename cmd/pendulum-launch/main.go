package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "pendulum-launch",
		Short: "Launch a local relay chain and its collators",
		Long: "Start every validator and collator in the launch config, keep them running " +
			"until interrupted, then stop them all. Run without a subcommand to launch.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			verbose, _ := cmd.Flags().GetBool("verbose")
			setupLogging(cmd.ErrOrStderr(), verbose)
		},
		RunE: runLaunch,
	}

	root.PersistentFlags().StringP("config", "c", "", "Launch config (.json, .toml, .yaml); default: launch.* in the project root")
	root.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
	addLaunchFlags(root)

	root.AddCommand(
		newCheckCmd(),
		newExportGenesisCmd(),
		newGenerateSpecsCmd(),
		newGenerateDockerCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error:"), err)
		os.Exit(1)
	}
}
