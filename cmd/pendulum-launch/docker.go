package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/benaskins/pendulum-launch/internal/compose"
)

func newGenerateDockerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate-docker",
		Short: "Write a docker-compose file for the launch config",
		Long: "Render every node in the launch config as a docker-compose service. " +
			"Binaries are not checked; ports must be unique.",
		Args: cobra.NoArgs,
		RunE: runGenerateDocker,
	}
	cmd.Flags().String("outdir", "", "Output directory (default: project root)")
	cmd.Flags().Bool("enable-volume", false, "Mount ./volumes/<name> as each node's base path")
	cmd.Flags().String("relay-image", "", "Image for validators (overrides docker.relay_image)")
	cmd.Flags().String("collator-image", "", "Image for collators (overrides docker.collator_image)")
	return cmd
}

func runGenerateDocker(cmd *cobra.Command, args []string) error {
	path, err := configPath(cmd)
	if err != nil {
		return err
	}
	desc, err := loadFleet(path)
	if err != nil {
		return err
	}

	outDir, err := outDirFlag(cmd)
	if err != nil {
		return err
	}
	volume, _ := cmd.Flags().GetBool("enable-volume")
	relayImage, _ := cmd.Flags().GetString("relay-image")
	collatorImage, _ := cmd.Flags().GetString("collator-image")

	out, err := compose.Generate(desc, compose.Options{
		OutDir:        outDir,
		EnableVolume:  volume,
		RelayImage:    relayImage,
		CollatorImage: collatorImage,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", okStyle.Render("wrote"), out)
	return nil
}
