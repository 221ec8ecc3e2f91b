package fleet

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/benaskins/pendulum-launch/internal/port"
)

// ErrInvalidConfig matches every configuration and validation error.
var ErrInvalidConfig = errors.New("invalid config")

// ValidationError is a configuration error, optionally tied to one member.
type ValidationError struct {
	Member string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Member == "" {
		return fmt.Sprintf("invalid config: %v", e.Err)
	}
	return fmt.Sprintf("invalid config: node %q: %v", e.Member, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidConfig }

// Validate runs the pre-launch checks in order: binaries, then ports.
func (d *Descriptor) Validate() error {
	if err := d.CheckBinaries(); err != nil {
		return err
	}
	return d.CheckPorts()
}

// CheckBinaries verifies that each member's binary resolves to a regular file
// the current user may execute.
func (d *Descriptor) CheckBinaries() error {
	for _, n := range d.members {
		if _, err := ResolveBinary(n); err != nil {
			return &ValidationError{Member: n.Name, Err: err}
		}
	}
	return nil
}

// CheckPorts verifies that no port number is declared twice across the whole
// fleet. It has no side effects.
func (d *Descriptor) CheckPorts() error {
	_, err := d.Ports()
	return err
}

// Ports returns every declared port in start order, or the first collision.
func (d *Descriptor) Ports() ([]port.Claim, error) {
	reg := port.NewRegistry()
	for _, n := range d.members {
		for _, p := range n.Ports {
			if err := reg.Claim(n.Name, p.Purpose, p.Number); err != nil {
				return nil, &ValidationError{Member: n.Name, Err: err}
			}
		}
	}
	return reg.Claims(), nil
}

// ResolveBinary returns the path the node's binary would be executed from.
// Names without a separator are looked up in $PATH; relative paths are
// resolved against the node's working directory, as os/exec does.
func ResolveBinary(n Node) (string, error) {
	path := n.Bin
	if !strings.ContainsRune(path, filepath.Separator) {
		found, err := exec.LookPath(path)
		if err != nil {
			return "", fmt.Errorf("binary %q not found in PATH: %w", n.Bin, err)
		}
		path = found
	} else if !filepath.IsAbs(path) && n.WorkingDir != "" {
		path = filepath.Join(n.WorkingDir, path)
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("binary %q: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("binary %q is not a regular file", path)
	}
	if err := unix.Access(path, unix.X_OK); err != nil {
		return "", fmt.Errorf("binary %q is not executable: %w", path, err)
	}
	return path, nil
}
