// Package launcher starts a fleet of node processes in order, keeps them
// running until interrupted, and tears them down in reverse order.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/benaskins/pendulum-launch/internal/fleet"
	"github.com/benaskins/pendulum-launch/internal/metrics"
	"github.com/benaskins/pendulum-launch/internal/process"
)

// DefaultPollInterval is how often the idle loop checks the liveness flag.
const DefaultPollInterval = 50 * time.Millisecond

// exitTailLines is how much output is logged for a node that exits on its own.
const exitTailLines = 10

// State is the launcher lifecycle state.
type State string

const (
	StateCreated      State = "created"
	StateStarting     State = "starting"
	StateRunning      State = "running"
	StateShuttingDown State = "shutting-down"
	StateStopped      State = "stopped"
)

// ShutdownError lists the nodes that could not be stopped cleanly.
type ShutdownError struct {
	Errs []error
}

func (e *ShutdownError) Error() string {
	msgs := make([]string, len(e.Errs))
	for i, err := range e.Errs {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("%d node(s) did not stop cleanly: %s", len(e.Errs), strings.Join(msgs, "; "))
}

func (e *ShutdownError) Unwrap() []error { return e.Errs }

// Nodes returns the names of the nodes that failed to stop.
func (e *ShutdownError) Nodes() []string {
	var names []string
	for _, err := range e.Errs {
		var kerr *process.KillError
		if errors.As(err, &kerr) {
			names = append(names, kerr.Name)
		}
	}
	return names
}

// Launcher owns every process in the fleet.
type Launcher struct {
	procs []*process.Process

	output       process.Output
	spawner      process.Spawner
	grace        time.Duration
	pollInterval time.Duration
	configPath   string
	recorder     metrics.Recorder
	logger       *slog.Logger
	notify       func(chan<- os.Signal)
	stopNotify   func(chan<- os.Signal)

	// active is the liveness flag: the signal goroutine clears it, the idle
	// loop reads it.
	active atomic.Bool

	mu        sync.Mutex
	state     State
	startedAt time.Time
}

// Option configures a Launcher.
type Option func(*Launcher)

// WithOutput sets where child output goes. Default: console.
func WithOutput(out process.Output) Option {
	return func(l *Launcher) { l.output = out }
}

// WithSpawner replaces the OS process backend.
func WithSpawner(s process.Spawner) Option {
	return func(l *Launcher) { l.spawner = s }
}

// WithGracePeriod makes Kill send SIGTERM and wait d before SIGKILL.
func WithGracePeriod(d time.Duration) Option {
	return func(l *Launcher) { l.grace = d }
}

// WithPollInterval sets how often the idle loop checks for shutdown.
func WithPollInterval(d time.Duration) Option {
	return func(l *Launcher) {
		if d > 0 {
			l.pollInterval = d
		}
	}
}

// WithMetrics sets the lifecycle event recorder.
func WithMetrics(r metrics.Recorder) Option {
	return func(l *Launcher) { l.recorder = r }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Launcher) { l.logger = logger }
}

// WithSignalNotify replaces signal.Notify and signal.Stop.
func WithSignalNotify(notify, stop func(chan<- os.Signal)) Option {
	return func(l *Launcher) {
		l.notify = notify
		l.stopNotify = stop
	}
}

// WithConfigWatch logs a warning whenever the config file at path changes
// while the fleet is running.
func WithConfigWatch(path string) Option {
	return func(l *Launcher) { l.configPath = path }
}

// New creates a launcher with one process per fleet member, in start order.
// When logging to a directory, the directory is created here.
func New(desc *fleet.Descriptor, opts ...Option) (*Launcher, error) {
	l := &Launcher{
		spawner:      process.ExecSpawner{},
		pollInterval: DefaultPollInterval,
		recorder:     metrics.Nop{},
		logger:       slog.With("component", "launcher"),
		notify: func(c chan<- os.Signal) {
			signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		},
		stopNotify: func(c chan<- os.Signal) { signal.Stop(c) },
		state:      StateCreated,
	}
	for _, opt := range opts {
		opt(l)
	}

	if err := l.output.Prepare(); err != nil {
		return nil, err
	}

	for _, n := range desc.Members() {
		l.procs = append(l.procs, process.New(n, l.output, l.spawner,
			process.WithGracePeriod(l.grace),
			process.WithLogger(l.logger),
		))
	}

	l.active.Store(true)
	l.recorder.LauncherState(string(StateCreated))
	return l, nil
}

// Processes returns the managed processes in start order.
func (l *Launcher) Processes() []*process.Process {
	return slices.Clone(l.procs)
}

// State returns the launcher state.
func (l *Launcher) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Launcher) setState(s State) {
	l.mu.Lock()
	l.state = s
	l.mu.Unlock()
	l.recorder.LauncherState(string(s))
}

// Uptime returns the time elapsed since Start was called, or zero before.
func (l *Launcher) Uptime() time.Duration {
	l.mu.Lock()
	started := l.startedAt
	l.mu.Unlock()
	if started.IsZero() {
		return 0
	}
	return time.Since(started)
}

// Interrupt clears the liveness flag. It is the only thing the signal
// handler does, and is safe to call from any goroutine.
func (l *Launcher) Interrupt() {
	l.active.Store(false)
}

// Active reports whether the liveness flag is still set.
func (l *Launcher) Active() bool {
	return l.active.Load()
}

// Start spawns every process in fleet order. If any spawn fails, the
// processes already started are killed in reverse order and the spawn error
// is returned; no partially running fleet is left behind.
func (l *Launcher) Start() error {
	l.mu.Lock()
	l.startedAt = time.Now()
	l.mu.Unlock()
	l.setState(StateStarting)

	l.logger.Info("starting fleet", "nodes", len(l.procs), "output", l.output.Mode.String())

	started := make([]*process.Process, 0, len(l.procs))
	for _, p := range l.procs {
		err := p.Spawn()
		l.recorder.Spawned(p.Name(), err)
		if err != nil {
			l.logger.Error("failed to spawn node, rolling back", "node", p.Name(), "error", err, "started", len(started))
			l.rollback(started)
			l.setState(StateStopped)
			return err
		}
		started = append(started, p)
	}

	l.setState(StateRunning)
	l.logger.Info("fleet running", "nodes", len(l.procs))
	return nil
}

func (l *Launcher) rollback(started []*process.Process) {
	for i := len(started) - 1; i >= 0; i-- {
		p := started[i]
		err := p.Kill()
		l.recorder.Killed(p.Name(), err)
		if err != nil {
			l.logger.Warn("rollback kill failed", "node", p.Name(), "error", err)
		}
	}
}

// Run starts the fleet, waits until interrupted (by SIGINT/SIGTERM, a call
// to Interrupt, or ctx being done), then shuts the fleet down. A start
// failure is returned as-is; otherwise the result of Shutdown is returned.
// Signals are caught from before the first spawn, so an interrupt during
// start still ends in a full shutdown.
func (l *Launcher) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	l.notify(sigCh)
	defer l.stopNotify(sigCh)

	go func() {
		select {
		case sig := <-sigCh:
			l.logger.Info("received signal, shutting down", "signal", sig)
			l.Interrupt()
		case <-runCtx.Done():
		}
	}()

	if err := l.Start(); err != nil {
		return err
	}

	if l.configPath != "" {
		go func() {
			if err := l.watchConfig(runCtx, l.configPath); err != nil {
				l.logger.Warn("config watcher failed", "error", err)
			}
		}()
	}

	l.idle(runCtx)
	return l.Shutdown()
}

func (l *Launcher) idle(ctx context.Context) {
	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	reported := make(map[string]bool)
	for l.active.Load() {
		select {
		case <-ctx.Done():
			l.logger.Info("context done, shutting down", "reason", ctx.Err())
			l.Interrupt()
		case <-ticker.C:
			for _, p := range l.procs {
				if reported[p.Name()] || !p.Exited() {
					continue
				}
				reported[p.Name()] = true
				l.logger.Warn("node exited unexpectedly; it will not be restarted",
					"node", p.Name(),
					"ran_for", time.Since(p.StartedAt()).Round(time.Millisecond),
					"last_output", p.Tail(exitTailLines))
			}
		}
	}
}

// Shutdown kills every process in reverse start order. Individual failures do
// not stop the remaining kills; they are returned together as a
// *ShutdownError. The launcher is stopped afterwards regardless.
func (l *Launcher) Shutdown() error {
	l.setState(StateShuttingDown)
	l.logger.Info("stopping fleet", "uptime", l.Uptime().Round(time.Millisecond))

	var errs []error
	for i := len(l.procs) - 1; i >= 0; i-- {
		p := l.procs[i]
		err := p.Kill()
		l.recorder.Killed(p.Name(), err)
		if err != nil {
			errs = append(errs, err)
		}
	}

	l.setState(StateStopped)
	if len(errs) > 0 {
		l.logger.Warn("fleet stopped with errors", "failed", len(errs))
		return &ShutdownError{Errs: errs}
	}
	l.logger.Info("fleet stopped")
	return nil
}
