package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/benaskins/pendulum-launch/internal/fleet"
)

// configPath returns the --config flag, or the launch config discovered in
// the project root.
func configPath(cmd *cobra.Command) (string, error) {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		return path, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return fleet.FindConfig(wd)
}

// loadFleet loads and structurally checks the launch config.
func loadFleet(path string) (*fleet.Descriptor, error) {
	cfg, err := fleet.Load(path)
	if err != nil {
		return nil, err
	}
	return fleet.FromConfig(cfg)
}

// defaultOutDir is the project root containing the working directory.
func defaultOutDir() (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return fleet.ProjectRoot(wd)
}
