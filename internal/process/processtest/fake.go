// Package processtest provides an in-memory process.Spawner that records
// every spawn and signal, for testing launch and shutdown ordering.
package processtest

import (
	"fmt"
	"sync"
	"syscall"

	"github.com/benaskins/pendulum-launch/internal/process"
)

// Event is one recorded call.
type Event struct {
	Op   string // "spawn" or "signal"
	Name string
	Sig  syscall.Signal
}

func (e Event) String() string {
	if e.Op == "signal" {
		return fmt.Sprintf("signal:%s:%s", e.Name, e.Sig)
	}
	return e.Op + ":" + e.Name
}

// Spawner is a fake process.Spawner. The zero value is not usable; use NewSpawner.
type Spawner struct {
	mu      sync.Mutex
	events  []Event
	handles map[string]*Handle
	nextPid int

	// SpawnErr makes Spawn fail for the named process.
	SpawnErr map[string]error
	// SignalErr makes every signal to the named process fail.
	SignalErr map[string]error
	// IgnoreTerm makes the named process survive SIGTERM.
	IgnoreTerm map[string]bool
}

// NewSpawner returns an empty fake spawner.
func NewSpawner() *Spawner {
	return &Spawner{
		handles:    make(map[string]*Handle),
		nextPid:    1000,
		SpawnErr:   make(map[string]error),
		SignalErr:  make(map[string]error),
		IgnoreTerm: make(map[string]bool),
	}
}

// Spawn implements process.Spawner.
func (s *Spawner) Spawn(c process.Command) (process.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err, ok := s.SpawnErr[c.Name]; ok {
		return nil, err
	}

	s.nextPid++
	h := &Handle{s: s, name: c.Name, pid: s.nextPid, done: make(chan struct{}), exitCode: -1}
	s.handles[c.Name] = h
	s.events = append(s.events, Event{Op: "spawn", Name: c.Name})
	if c.Stdout != nil {
		fmt.Fprintf(c.Stdout, "%s started\n", c.Name)
	}
	return h, nil
}

// Events returns all recorded events in order.
func (s *Spawner) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

// Spawned returns the names of spawned processes, in order.
func (s *Spawner) Spawned() []string {
	return s.names("spawn")
}

// Signaled returns the names of processes that were sent a signal, in order of
// their first signal.
func (s *Spawner) Signaled() []string {
	return s.names("signal")
}

func (s *Spawner) names(op string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range s.Events() {
		if e.Op == op && !seen[e.Name] {
			seen[e.Name] = true
			out = append(out, e.Name)
		}
	}
	return out
}

// Handle returns the handle for a spawned process, or nil.
func (s *Spawner) Handle(name string) *Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handles[name]
}

// Handle is a fake process.Handle.
type Handle struct {
	s    *Spawner
	name string
	pid  int

	mu       sync.Mutex
	done     chan struct{}
	closed   bool
	exitCode int
}

// Exit simulates the child exiting on its own with code.
func (h *Handle) Exit(code int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.exit(code)
}

func (h *Handle) exit(code int) {
	if h.closed {
		return
	}
	h.closed = true
	h.exitCode = code
	close(h.done)
}

func (h *Handle) Pid() int { return h.pid }

func (h *Handle) Signal(sig syscall.Signal) error {
	h.s.mu.Lock()
	h.s.events = append(h.s.events, Event{Op: "signal", Name: h.name, Sig: sig})
	err := h.s.SignalErr[h.name]
	ignore := h.s.IgnoreTerm[h.name]
	h.s.mu.Unlock()

	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return syscall.ESRCH
	}
	if sig == syscall.SIGTERM && ignore {
		return nil
	}
	h.exit(-1)
	return nil
}

func (h *Handle) Done() <-chan struct{} { return h.done }

func (h *Handle) ExitCode() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exitCode
}

func (h *Handle) Err() error { return nil }
