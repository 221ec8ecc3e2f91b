package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/benaskins/pendulum-launch/internal/chain"
)

func newExportGenesisCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export-genesis",
		Short: "Export genesis wasm and state from a collator binary",
		Args:  cobra.NoArgs,
		RunE:  runExportGenesis,
	}
	cmd.Flags().String("bin", "", "Collator binary")
	cmd.Flags().String("chain", "", "Chain spec passed to --chain")
	cmd.Flags().String("name", chain.DefaultName, "Output file prefix")
	cmd.Flags().String("outdir", "", "Output directory (default: project root)")
	cmd.MarkFlagRequired("bin")
	cmd.MarkFlagRequired("chain")
	return cmd
}

func runExportGenesis(cmd *cobra.Command, args []string) error {
	bin, _ := cmd.Flags().GetString("bin")
	chainSpec, _ := cmd.Flags().GetString("chain")
	name, _ := cmd.Flags().GetString("name")
	outDir, err := outDirFlag(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	files, err := chain.ExportGenesis(ctx, chain.ExecRunner{}, chain.GenesisOptions{
		Bin: bin, Chain: chainSpec, Name: name, OutDir: outDir,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n%s %s\n", okStyle.Render("wasm: "), files.Wasm, okStyle.Render("state:"), files.State)
	return nil
}

func newGenerateSpecsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate-specs",
		Short: "Generate plain and raw chain specs from a collator binary",
		Args:  cobra.NoArgs,
		RunE:  runGenerateSpecs,
	}
	cmd.Flags().String("bin", "", "Collator binary")
	cmd.Flags().String("name", chain.DefaultName, "Output file prefix")
	cmd.Flags().Uint32("para-id", chain.DefaultParaID, "Parachain id written into the spec")
	cmd.Flags().String("outdir", "", "Output directory (default: project root)")
	cmd.MarkFlagRequired("bin")
	return cmd
}

func runGenerateSpecs(cmd *cobra.Command, args []string) error {
	bin, _ := cmd.Flags().GetString("bin")
	name, _ := cmd.Flags().GetString("name")
	paraID, _ := cmd.Flags().GetUint32("para-id")
	outDir, err := outDirFlag(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	files, err := chain.GenerateSpecs(ctx, chain.ExecRunner{}, chain.SpecOptions{
		Bin: bin, Name: name, ParaID: paraID, OutDir: outDir,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n%s %s\n", okStyle.Render("plain:"), files.Plain, okStyle.Render("raw:  "), files.Raw)
	return nil
}

func outDirFlag(cmd *cobra.Command) (string, error) {
	if dir, _ := cmd.Flags().GetString("outdir"); dir != "" {
		return dir, nil
	}
	return defaultOutDir()
}
