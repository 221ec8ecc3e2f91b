package process_test

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"syscall"
	"testing"
	"time"

	"github.com/benaskins/pendulum-launch/internal/fleet"
	"github.com/benaskins/pendulum-launch/internal/process"
	"github.com/benaskins/pendulum-launch/internal/process/processtest"
)

func quiet() process.Output { return process.Output{Mode: process.OutputQuiet} }

func node(name string) fleet.Node {
	return fleet.Node{Name: name, Bin: "/fake/" + name}
}

func TestSpawnTransitionsToRunning(t *testing.T) {
	sp := processtest.NewSpawner()
	p := process.New(node("relay-a"), quiet(), sp)

	if p.State() != process.StateNotStarted {
		t.Fatalf("expected not-started, got %v", p.State())
	}
	if err := p.Spawn(); err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	if p.State() != process.StateRunning {
		t.Errorf("expected running, got %v", p.State())
	}
	if p.Pid() <= 0 {
		t.Errorf("expected positive pid, got %d", p.Pid())
	}
	if p.StartedAt().IsZero() {
		t.Error("expected StartedAt to be set")
	}
}

func TestSpawnFailure(t *testing.T) {
	sp := processtest.NewSpawner()
	sp.SpawnErr["relay-a"] = os.ErrNotExist
	p := process.New(node("relay-a"), quiet(), sp)

	err := p.Spawn()
	if !errors.Is(err, process.ErrSpawnFailed) {
		t.Fatalf("expected ErrSpawnFailed, got %v", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected OS cause to be wrapped, got %v", err)
	}
	var serr *process.SpawnError
	if !errors.As(err, &serr) || serr.Name != "relay-a" {
		t.Errorf("expected SpawnError naming relay-a, got %v", err)
	}
	if p.State() != process.StateNotStarted {
		t.Errorf("expected not-started after failed spawn, got %v", p.State())
	}
}

func TestSpawnTwice(t *testing.T) {
	sp := processtest.NewSpawner()
	p := process.New(node("relay-a"), quiet(), sp)
	if err := p.Spawn(); err != nil {
		t.Fatal(err)
	}
	if err := p.Spawn(); err == nil {
		t.Error("expected error on second spawn")
	}
	if got := sp.Spawned(); len(got) != 1 {
		t.Errorf("expected one spawn, got %v", got)
	}
}

func TestKillIdempotent(t *testing.T) {
	sp := processtest.NewSpawner()
	p := process.New(node("relay-a"), quiet(), sp)
	if err := p.Spawn(); err != nil {
		t.Fatal(err)
	}

	if err := p.Kill(); err != nil {
		t.Fatalf("first Kill: %v", err)
	}
	first := p.Outcome()
	if p.State() != process.StateStopped {
		t.Fatalf("expected stopped, got %v", p.State())
	}

	if err := p.Kill(); err != nil {
		t.Errorf("second Kill returned %v", err)
	}
	if p.State() != process.StateStopped {
		t.Errorf("expected stopped after second kill, got %v", p.State())
	}
	if p.Outcome() != first {
		t.Errorf("outcome changed: %+v -> %+v", first, p.Outcome())
	}

	signals := 0
	for _, e := range sp.Events() {
		if e.Op == "signal" {
			signals++
		}
	}
	if signals != 1 {
		t.Errorf("expected exactly one signal, got %d", signals)
	}
}

func TestKillNotStarted(t *testing.T) {
	sp := processtest.NewSpawner()
	p := process.New(node("relay-a"), quiet(), sp)

	if err := p.Kill(); err != nil {
		t.Fatalf("Kill: %v", err)
	}
	if p.State() != process.StateStopped {
		t.Errorf("expected stopped, got %v", p.State())
	}
	if len(sp.Events()) != 0 {
		t.Errorf("expected no events, got %v", sp.Events())
	}
}

func TestKillAfterSelfExit(t *testing.T) {
	sp := processtest.NewSpawner()
	p := process.New(node("relay-a"), quiet(), sp)
	if err := p.Spawn(); err != nil {
		t.Fatal(err)
	}

	sp.Handle("relay-a").Exit(3)
	if !p.Exited() {
		t.Fatal("expected Exited to report the self-exit")
	}

	if err := p.Kill(); err != nil {
		t.Fatalf("Kill: %v", err)
	}
	out := p.Outcome()
	if !out.Exited || out.Killed || out.ExitCode != 3 {
		t.Errorf("unexpected outcome: %+v", out)
	}
	want := []processtest.Event{
		{Op: "spawn", Name: "relay-a"},
		{Op: "signal", Name: "relay-a", Sig: syscall.SIGKILL},
	}
	if got := sp.Events(); !slices.Equal(got, want) {
		t.Errorf("events = %v, want the group killed once", got)
	}
}

func TestKillFailureStillStops(t *testing.T) {
	sp := processtest.NewSpawner()
	sp.SignalErr["relay-a"] = syscall.EPERM
	p := process.New(node("relay-a"), quiet(), sp)
	if err := p.Spawn(); err != nil {
		t.Fatal(err)
	}

	err := p.Kill()
	var kerr *process.KillError
	if !errors.As(err, &kerr) {
		t.Fatalf("expected KillError, got %v", err)
	}
	if !errors.Is(err, syscall.EPERM) {
		t.Errorf("expected EPERM cause, got %v", err)
	}
	if p.State() != process.StateStopped {
		t.Errorf("expected stopped, got %v", p.State())
	}
	if p.Outcome().Err == nil {
		t.Error("expected failure recorded in outcome")
	}
	if err := p.Kill(); err != nil {
		t.Errorf("second Kill after failure returned %v", err)
	}
}

func TestKillAlreadyReaped(t *testing.T) {
	sp := processtest.NewSpawner()
	sp.SignalErr["relay-a"] = syscall.ESRCH
	p := process.New(node("relay-a"), quiet(), sp, process.WithReapTimeout(50*time.Millisecond))
	if err := p.Spawn(); err != nil {
		t.Fatal(err)
	}

	// The fake never closes Done when the signal fails, so the reap wait times out.
	err := p.Kill()
	if err == nil {
		t.Fatal("expected reap timeout error")
	}
	if p.State() != process.StateStopped {
		t.Errorf("expected stopped, got %v", p.State())
	}
}

func TestKillGracePeriod(t *testing.T) {
	sp := processtest.NewSpawner()
	p := process.New(node("relay-a"), quiet(), sp, process.WithGracePeriod(time.Second))
	if err := p.Spawn(); err != nil {
		t.Fatal(err)
	}
	if err := p.Kill(); err != nil {
		t.Fatal(err)
	}

	var sigs []syscall.Signal
	for _, e := range sp.Events() {
		if e.Op == "signal" {
			sigs = append(sigs, e.Sig)
		}
	}
	if !slices.Equal(sigs, []syscall.Signal{syscall.SIGTERM}) {
		t.Errorf("expected only SIGTERM, got %v", sigs)
	}
}

func TestKillGracePeriodEscalates(t *testing.T) {
	sp := processtest.NewSpawner()
	sp.IgnoreTerm["relay-a"] = true
	p := process.New(node("relay-a"), quiet(), sp, process.WithGracePeriod(20*time.Millisecond))
	if err := p.Spawn(); err != nil {
		t.Fatal(err)
	}
	if err := p.Kill(); err != nil {
		t.Fatal(err)
	}

	var sigs []syscall.Signal
	for _, e := range sp.Events() {
		if e.Op == "signal" {
			sigs = append(sigs, e.Sig)
		}
	}
	want := []syscall.Signal{syscall.SIGTERM, syscall.SIGKILL}
	if !slices.Equal(sigs, want) {
		t.Errorf("signals = %v, want %v", sigs, want)
	}
}

func TestSpawnCreatesOneLogFile(t *testing.T) {
	dir := t.TempDir()
	sp := processtest.NewSpawner()
	p := process.New(node("relay-a"), process.Output{Mode: process.OutputLogDir, Dir: dir}, sp)

	if err := p.Spawn(); err != nil {
		t.Fatal(err)
	}
	if err := p.Kill(); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "relay-a.log" {
		t.Fatalf("expected only relay-a.log, got %v", entries)
	}
	data, err := os.ReadFile(filepath.Join(dir, "relay-a.log"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "relay-a started\n" {
		t.Errorf("log contents = %q", data)
	}
	if tail := p.Tail(5); len(tail) != 1 || tail[0] != "relay-a started" {
		t.Errorf("tail = %v", tail)
	}
}

func TestSpawnLogFileError(t *testing.T) {
	sp := processtest.NewSpawner()
	out := process.Output{Mode: process.OutputLogDir, Dir: filepath.Join(t.TempDir(), "missing")}
	p := process.New(node("relay-a"), out, sp)

	if err := p.Spawn(); !errors.Is(err, process.ErrSpawnFailed) {
		t.Fatalf("expected spawn failure, got %v", err)
	}
	if len(sp.Spawned()) != 0 {
		t.Error("spawner must not be called when the log file cannot be created")
	}
}
