package process

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/benaskins/pendulum-launch/internal/logbuf"
)

// ErrOutputConflict is returned when quiet mode and a log directory are both requested.
var ErrOutputConflict = errors.New("cannot use quiet mode and a log directory together")

// OutputMode selects where child output goes.
type OutputMode int

const (
	// OutputConsole writes child output to the launcher's own stdout/stderr,
	// each line prefixed with the node name.
	OutputConsole OutputMode = iota
	// OutputQuiet discards child output.
	OutputQuiet
	// OutputLogDir writes each child's output to <dir>/<name>.log.
	OutputLogDir
)

func (m OutputMode) String() string {
	switch m {
	case OutputQuiet:
		return "quiet"
	case OutputLogDir:
		return "log-dir"
	default:
		return "console"
	}
}

// Output describes the output destination for every process in a fleet.
type Output struct {
	Mode OutputMode
	Dir  string

	// Console destinations; nil means os.Stdout and os.Stderr.
	Stdout io.Writer
	Stderr io.Writer
}

// NewOutput resolves the operator's quiet/log flags into an Output. It has no
// side effects; call Prepare to create the log directory.
func NewOutput(quiet bool, logDir string) (Output, error) {
	switch {
	case quiet && logDir != "":
		return Output{}, ErrOutputConflict
	case quiet:
		return Output{Mode: OutputQuiet}, nil
	case logDir != "":
		return Output{Mode: OutputLogDir, Dir: logDir}, nil
	default:
		return Output{Mode: OutputConsole}, nil
	}
}

// Prepare creates the log directory when logging to files.
func (o Output) Prepare() error {
	if o.Mode != OutputLogDir {
		return nil
	}
	if o.Dir == "" {
		return fmt.Errorf("log directory is empty")
	}
	if err := os.MkdirAll(o.Dir, 0755); err != nil {
		return fmt.Errorf("creating log directory: %w", err)
	}
	return nil
}

// LogPath returns the log file for the named process, or "" when not logging to files.
func (o Output) LogPath(name string) string {
	if o.Mode != OutputLogDir {
		return ""
	}
	return filepath.Join(o.Dir, name+".log")
}

// sink is the opened destination for one process.
type sink struct {
	stdout io.Writer
	stderr io.Writer
	close  func() error
}

func (o Output) open(name string) (*sink, error) {
	switch o.Mode {
	case OutputQuiet:
		return &sink{stdout: io.Discard, stderr: io.Discard, close: func() error { return nil }}, nil

	case OutputLogDir:
		f, err := os.OpenFile(o.LogPath(name), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("creating log file: %w", err)
		}
		return &sink{stdout: f, stderr: f, close: f.Close}, nil

	default:
		stdout, stderr := o.Stdout, o.Stderr
		if stdout == nil {
			stdout = os.Stdout
		}
		if stderr == nil {
			stderr = os.Stderr
		}
		out := logbuf.NewPrefixWriter(name, stdout)
		errw := logbuf.NewPrefixWriter(name, stderr)
		return &sink{
			stdout: out,
			stderr: errw,
			close: func() error {
				return errors.Join(out.Flush(), errw.Flush())
			},
		}, nil
	}
}
