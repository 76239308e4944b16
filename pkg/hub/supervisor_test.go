package hub

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/modoterra/cmdhub/pkg/transport/wire"
)

func testSpec() WatcherSpec {
	return WatcherSpec{
		Instance: "7171",
		Control:  wire.MustParseEndpoint("tcp://127.0.0.1:5559"),
		Ingest:   wire.MustParseEndpoint("unix:///tmp/ingest.sock"),
	}
}

func TestSupervisorArgs(t *testing.T) {
	s := NewSupervisor([]string{"/usr/bin/cmdhubd", "watch"}, quietLogger())
	want := []string{
		"watch",
		"--instance", "7171",
		"--control", "tcp://127.0.0.1:5559",
		"--ingest", "unix:///tmp/ingest.sock",
	}
	if diff := cmp.Diff(want, s.Args(testSpec())); diff != "" {
		t.Errorf("args (-want +got):\n%s", diff)
	}
}

func TestSupervisorArgsAddr(t *testing.T) {
	s := NewSupervisor([]string{"/usr/bin/cmdhubd", "watch"}, quietLogger())
	spec := testSpec()
	spec.Addr = "10.0.0.5:6380"
	args := s.Args(spec)
	if diff := cmp.Diff([]string{"--addr", "10.0.0.5:6380"}, args[len(args)-2:]); diff != "" {
		t.Errorf("trailing args (-want +got):\n%s", diff)
	}
}

func TestSupervisorEmptyCommand(t *testing.T) {
	s := NewSupervisor(nil, quietLogger())
	if _, err := s.Spawn(testSpec()); err == nil {
		t.Error("expected error for empty command")
	}
}

func TestSupervisorExitObserved(t *testing.T) {
	s := NewSupervisor([]string{"sh", "-c", "echo started; exit 3", "watcher"}, quietLogger())
	h, err := s.Spawn(testSpec())
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	p := h.(*Process)
	select {
	case <-p.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit")
	}
	if p.ExitCode() != 3 {
		t.Errorf("exit code = %d, want 3", p.ExitCode())
	}
	if err := s.Terminate(h); err != nil {
		t.Errorf("terminate exited process: %v", err)
	}
}

func TestSupervisorTerminate(t *testing.T) {
	s := NewSupervisor([]string{"sh", "-c", "sleep 30", "watcher"}, quietLogger())
	h, err := s.Spawn(testSpec())
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if s.Running() != 1 {
		t.Errorf("running = %d, want 1", s.Running())
	}
	if err := s.Terminate(h); err != nil {
		t.Fatalf("terminate: %v", err)
	}
	select {
	case <-h.(*Process).Done():
	default:
		t.Fatal("process still running after terminate")
	}
	if s.Running() != 0 {
		t.Errorf("running = %d, want 0", s.Running())
	}
}

func TestSupervisorKillsAfterGrace(t *testing.T) {
	s := NewSupervisor([]string{"sh", "-c", "trap '' TERM; while :; do sleep 0.05; done", "watcher"}, quietLogger())
	s.SetGrace(200 * time.Millisecond)
	h, err := s.Spawn(testSpec())
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	// Let the shell install its trap.
	time.Sleep(100 * time.Millisecond)

	start := time.Now()
	if err := s.Terminate(h); err != nil {
		t.Fatalf("terminate: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 200*time.Millisecond {
		t.Errorf("terminated after %v, expected to wait for the grace period", elapsed)
	}
}

func TestSupervisorTerminateAll(t *testing.T) {
	s := NewSupervisor([]string{"sh", "-c", "sleep 30", "watcher"}, quietLogger())
	for i := 0; i < 3; i++ {
		if _, err := s.Spawn(testSpec()); err != nil {
			t.Fatalf("spawn: %v", err)
		}
	}
	s.TerminateAll()
	if s.Running() != 0 {
		t.Errorf("running = %d after TerminateAll", s.Running())
	}
}

func TestSupervisorDrainsLongLines(t *testing.T) {
	script := `head -c 2097152 /dev/zero | tr '\0' x >&2; echo >&2; echo done`
	s := NewSupervisor([]string{"sh", "-c", script, "watcher"}, quietLogger())
	h, err := s.Spawn(testSpec())
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	select {
	case <-h.(*Process).Done():
	case <-time.After(5 * time.Second):
		s.Terminate(h)
		t.Fatal("watcher blocked writing a long line")
	}
	if code := h.(*Process).ExitCode(); code != 0 {
		t.Errorf("exit code = %d", code)
	}
}
