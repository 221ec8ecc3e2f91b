package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

type checkResult struct {
	Path  string      `json:"path"`
	Name  string      `json:"name,omitempty"`
	Nodes int         `json:"nodes,omitempty"`
	Ports []portUsage `json:"ports,omitempty"`
	Valid bool        `json:"valid"`
	Error string      `json:"error,omitempty"`
}

type portUsage struct {
	Node    string `json:"node"`
	Purpose string `json:"purpose"`
	Port    int    `json:"port"`
}

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [config]",
		Short: "Validate a launch config",
		Long:  "Parse a launch config and check that every binary is executable and no port is declared twice.",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runCheck,
	}
	cmd.Flags().Bool("json", false, "Print the result as JSON")
	return cmd
}

func runCheck(cmd *cobra.Command, args []string) error {
	jsonOut, _ := cmd.Flags().GetBool("json")

	var path string
	if len(args) > 0 {
		path = args[0]
	} else {
		var err error
		if path, err = configPath(cmd); err != nil {
			return err
		}
	}

	res := check(path)
	if jsonOut {
		if err := printJSON(cmd.OutOrStdout(), res); err != nil {
			return err
		}
	} else {
		printCheck(cmd.OutOrStdout(), cmd.ErrOrStderr(), res)
	}

	if !res.Valid {
		return fmt.Errorf("%s failed validation", path)
	}
	return nil
}

func check(path string) checkResult {
	res := checkResult{Path: path}
	desc, err := loadFleet(path)
	if err == nil {
		err = desc.Validate()
	}
	if err != nil {
		res.Error = err.Error()
		return res
	}
	claims, err := desc.Ports()
	if err != nil {
		res.Error = err.Error()
		return res
	}
	for _, c := range claims {
		res.Ports = append(res.Ports, portUsage{Node: c.Owner, Purpose: c.Purpose, Port: c.Port})
	}
	res.Name = desc.Name()
	res.Nodes = desc.Len()
	res.Valid = true
	return res
}

func printCheck(out, errOut io.Writer, r checkResult) {
	if r.Valid {
		fmt.Fprintf(out, "%s %s (%s, %d nodes)\n", okStyle.Render("OK  "), r.Path, r.Name, r.Nodes)
		return
	}
	fmt.Fprintf(errOut, "%s %s\n      %s\n", errorStyle.Render("FAIL"), r.Path, r.Error)
}
