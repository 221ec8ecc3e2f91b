// Package chain wraps the node binary's chain-spec and genesis export
// subcommands.
package chain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Runner runs a binary and returns its standard output.
type Runner interface {
	Output(ctx context.Context, bin string, args ...string) ([]byte, error)
}

// ExecRunner runs binaries with os/exec.
type ExecRunner struct{}

func (ExecRunner) Output(ctx context.Context, bin string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("%s %s: exit code %d: %s", bin, strings.Join(args, " "),
				exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
		}
		return nil, fmt.Errorf("%s %s: %w", bin, strings.Join(args, " "), err)
	}
	return out, nil
}
