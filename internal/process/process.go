// Package process wraps a single fleet member's OS process: spawning it with
// the right output destination, and terminating it exactly once.
package process

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"syscall"
	"time"

	"github.com/benaskins/pendulum-launch/internal/fleet"
	"github.com/benaskins/pendulum-launch/internal/logbuf"
)

const (
	// tailLines is how many lines of recent output are kept in memory per process.
	tailLines = 50

	// defaultReapTimeout bounds the wait for a killed child to be reaped.
	defaultReapTimeout = 5 * time.Second
)

// State is the lifecycle state of a managed process.
type State string

const (
	StateNotStarted State = "not-started"
	StateRunning    State = "running"
	StateStopped    State = "stopped"
)

// Outcome records how a process ended. It is only meaningful once the
// process is stopped.
type Outcome struct {
	ExitCode int
	// Exited is true when the child had already exited before Kill.
	Exited bool
	// Killed is true when Kill delivered a termination signal.
	Killed bool
	// Err is a termination or output error, if any.
	Err error
}

// ErrSpawnFailed matches every SpawnError.
var ErrSpawnFailed = errors.New("spawn failed")

// SpawnError reports that a process could not be started.
type SpawnError struct {
	Name string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawning %q: %v", e.Name, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

func (e *SpawnError) Is(target error) bool { return target == ErrSpawnFailed }

// KillError reports that a process could not be terminated cleanly.
type KillError struct {
	Name string
	Err  error
}

func (e *KillError) Error() string {
	return fmt.Sprintf("stopping %q: %v", e.Name, e.Err)
}

func (e *KillError) Unwrap() error { return e.Err }

// Option configures a Process.
type Option func(*Process)

// WithGracePeriod sends SIGTERM and waits up to d before SIGKILL.
// Zero (the default) sends SIGKILL immediately.
func WithGracePeriod(d time.Duration) Option {
	return func(p *Process) { p.grace = d }
}

// WithReapTimeout bounds the wait for the child to exit after SIGKILL.
func WithReapTimeout(d time.Duration) Option {
	return func(p *Process) { p.reapTimeout = d }
}

// WithLogger sets the logger; the node name is added as an attribute.
func WithLogger(l *slog.Logger) Option {
	return func(p *Process) { p.logger = l }
}

// Process is one managed fleet member. It is not safe for concurrent use:
// Spawn, Kill and the accessors are called from the launcher's control path.
type Process struct {
	node    fleet.Node
	output  Output
	spawner Spawner
	logger  *slog.Logger

	grace       time.Duration
	reapTimeout time.Duration

	state     State
	handle    Handle
	sink      *sink
	tail      *logbuf.Ring
	startedAt time.Time
	outcome   Outcome
}

// New creates a process in the not-started state.
func New(node fleet.Node, output Output, spawner Spawner, opts ...Option) *Process {
	p := &Process{
		node:        node,
		output:      output,
		spawner:     spawner,
		logger:      slog.Default(),
		reapTimeout: defaultReapTimeout,
		state:       StateNotStarted,
		tail:        logbuf.New(tailLines),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("node", node.Name)
	return p
}

// Name returns the node name.
func (p *Process) Name() string { return p.node.Name }

// State returns the current lifecycle state.
func (p *Process) State() State { return p.state }

// Pid returns the OS process id while running, 0 otherwise.
func (p *Process) Pid() int {
	if p.state != StateRunning || p.handle == nil {
		return 0
	}
	return p.handle.Pid()
}

// StartedAt returns when the process was spawned.
func (p *Process) StartedAt() time.Time { return p.startedAt }

// Outcome returns how the process ended; zero until stopped.
func (p *Process) Outcome() Outcome { return p.outcome }

// Tail returns up to n of the most recent complete output lines.
func (p *Process) Tail(n int) []string { return p.tail.Last(n) }

// Exited reports whether a running child has exited on its own.
func (p *Process) Exited() bool {
	if p.state != StateRunning {
		return false
	}
	select {
	case <-p.handle.Done():
		return true
	default:
		return false
	}
}

// Spawn starts the OS process. It may only be called once.
func (p *Process) Spawn() error {
	if p.state != StateNotStarted {
		return &SpawnError{Name: p.node.Name, Err: fmt.Errorf("process is %s", p.state)}
	}

	s, err := p.output.open(p.node.Name)
	if err != nil {
		return &SpawnError{Name: p.node.Name, Err: err}
	}

	h, err := p.spawner.Spawn(Command{
		Name:   p.node.Name,
		Path:   p.node.Bin,
		Args:   p.node.Args,
		Dir:    p.node.WorkingDir,
		Stdout: io.MultiWriter(s.stdout, p.tail.Stream()),
		Stderr: io.MultiWriter(s.stderr, p.tail.Stream()),
	})
	if err != nil {
		s.close()
		return &SpawnError{Name: p.node.Name, Err: err}
	}

	p.handle = h
	p.sink = s
	p.startedAt = time.Now()
	p.state = StateRunning
	p.logger.Info("spawned node", "pid", h.Pid(), "bin", p.node.Bin)
	return nil
}

// Kill terminates the process if it is running and moves it to stopped.
// Calling Kill on a stopped process is a no-op. The process ends up stopped
// even when termination fails; the failure is recorded in the Outcome and
// returned as a *KillError.
func (p *Process) Kill() error {
	switch p.state {
	case StateStopped:
		return nil
	case StateNotStarted:
		p.state = StateStopped
		return nil
	}

	var out Outcome
	select {
	case <-p.handle.Done():
		out.Exited = true
		// Anything the node forked may still be running in its group.
		out.Err = p.signal(syscall.SIGKILL)
	default:
		out.Killed = true
		out.Err = p.terminate()
	}

	if out.Err == nil {
		out.Err = p.handle.Err()
	}
	out.ExitCode = p.handle.ExitCode()

	if err := p.sink.close(); err != nil && out.Err == nil {
		out.Err = fmt.Errorf("closing output: %w", err)
	}

	p.state = StateStopped
	p.outcome = out

	if out.Err != nil {
		p.logger.Warn("node did not stop cleanly", "error", out.Err)
		return &KillError{Name: p.node.Name, Err: out.Err}
	}
	p.logger.Info("stopped node", "exit_code", out.ExitCode, "already_exited", out.Exited)
	return nil
}

func (p *Process) terminate() error {
	if p.grace > 0 {
		if err := p.signal(syscall.SIGTERM); err != nil {
			return err
		}
		select {
		case <-p.handle.Done():
			return nil
		case <-time.After(p.grace):
			p.logger.Warn("grace period expired, killing node", "grace", p.grace)
		}
	}

	if err := p.signal(syscall.SIGKILL); err != nil {
		return err
	}

	select {
	case <-p.handle.Done():
		return nil
	case <-time.After(p.reapTimeout):
		return fmt.Errorf("process %d not reaped %s after SIGKILL", p.handle.Pid(), p.reapTimeout)
	}
}

// signal treats "no such process" as success: the child is already gone and
// Done will close once it is reaped.
func (p *Process) signal(sig syscall.Signal) error {
	err := p.handle.Signal(sig)
	if err == nil || errors.Is(err, syscall.ESRCH) {
		return nil
	}
	return fmt.Errorf("sending %s: %w", sig, err)
}
