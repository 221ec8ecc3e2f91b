package process

import (
	"errors"
	"io"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// Command is everything a Spawner needs to start one child.
type Command struct {
	Name   string
	Path   string
	Args   []string
	Dir    string
	Stdout io.Writer
	Stderr io.Writer
}

// Handle is a started child process.
type Handle interface {
	Pid() int
	// Signal delivers sig to the child and everything in its process group.
	Signal(sig syscall.Signal) error
	// Done is closed once the child has exited and been reaped.
	Done() <-chan struct{}
	// ExitCode is valid after Done is closed; -1 if the child was killed by a signal.
	ExitCode() int
	// Err is the wait error, if any, after Done is closed.
	Err() error
}

// Spawner starts child processes.
type Spawner interface {
	Spawn(cmd Command) (Handle, error)
}

// ExecSpawner starts real OS processes, each in its own process group so a
// signal reaches the whole tree the node may fork.
type ExecSpawner struct {
	// WaitDelay bounds how long reaping waits for output pipes to drain
	// after the child exits. Zero means 2s.
	WaitDelay time.Duration
}

// Spawn implements Spawner.
func (s ExecSpawner) Spawn(c Command) (Handle, error) {
	cmd := exec.Command(c.Path, c.Args...)
	cmd.Dir = c.Dir
	cmd.Stdout = c.Stdout
	cmd.Stderr = c.Stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.WaitDelay = s.WaitDelay
	if cmd.WaitDelay <= 0 {
		cmd.WaitDelay = 2 * time.Second
	}

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	h := &execHandle{cmd: cmd, done: make(chan struct{})}
	go h.wait()
	return h, nil
}

type execHandle struct {
	cmd  *exec.Cmd
	done chan struct{}

	mu       sync.Mutex
	exitCode int
	err      error
}

func (h *execHandle) wait() {
	err := h.cmd.Wait()

	h.mu.Lock()
	h.exitCode = h.cmd.ProcessState.ExitCode()
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		// Non-exit errors are output copy failures or WaitDelay expiry.
		h.err = err
	}
	h.mu.Unlock()

	close(h.done)
}

func (h *execHandle) Pid() int { return h.cmd.Process.Pid }

func (h *execHandle) Signal(sig syscall.Signal) error {
	return unix.Kill(-h.cmd.Process.Pid, sig)
}

func (h *execHandle) Done() <-chan struct{} { return h.done }

func (h *execHandle) ExitCode() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exitCode
}

func (h *execHandle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}
