package hub

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/modoterra/cmdhub/pkg/core"
	"github.com/modoterra/cmdhub/pkg/transport/wire"
)

// WatcherSpec is everything a watcher process needs to start.
type WatcherSpec struct {
	Instance core.InstanceID
	Control  wire.Endpoint
	Ingest   wire.Endpoint

	// Addr is the store address resolved by the hub. Empty leaves the
	// choice to the watcher.
	Addr string
}

// Handle refers to a spawned watcher.
type Handle interface {
	Instance() core.InstanceID
}

// Spawner starts and stops watcher processes.
type Spawner interface {
	Spawn(spec WatcherSpec) (Handle, error)
	Terminate(h Handle) error
}

// Process is a watcher child process started by a Supervisor.
type Process struct {
	spec      WatcherSpec
	cmd       *exec.Cmd
	pid       int
	startedAt time.Time
	done      chan struct{}
	exitCode  int
}

// Instance returns the instance the process watches.
func (p *Process) Instance() core.InstanceID { return p.spec.Instance }

// PID returns the process id.
func (p *Process) PID() int { return p.pid }

// Done is closed once the process has exited.
func (p *Process) Done() <-chan struct{} { return p.done }

// ExitCode is valid after Done is closed.
func (p *Process) ExitCode() int { return p.exitCode }

// Supervisor runs watchers as child processes. Each child gets its own
// process group so terminating it also stops anything it started.
type Supervisor struct {
	command []string
	env     []string
	grace   time.Duration
	logger  *slog.Logger

	mu    sync.Mutex
	procs map[*Process]struct{}
}

// NewSupervisor creates a supervisor that launches command followed by
// --instance, --control, --ingest and, when known, --addr flags for each
// watcher.
func NewSupervisor(command []string, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{
		command: command,
		env:     os.Environ(),
		grace:   5 * time.Second,
		logger:  logger,
		procs:   make(map[*Process]struct{}),
	}
}

// SetGrace sets how long Terminate waits after SIGTERM before SIGKILL.
func (s *Supervisor) SetGrace(d time.Duration) { s.grace = d }

// Args returns the argument list used for spec.
func (s *Supervisor) Args(spec WatcherSpec) []string {
	args := append([]string{}, s.command[1:]...)
	args = append(args,
		"--instance", string(spec.Instance),
		"--control", spec.Control.String(),
		"--ingest", spec.Ingest.String(),
	)
	if spec.Addr != "" {
		args = append(args, "--addr", spec.Addr)
	}
	return args
}

// Spawn starts a watcher for spec.
func (s *Supervisor) Spawn(spec WatcherSpec) (Handle, error) {
	if len(s.command) == 0 {
		return nil, errors.New("empty watcher command")
	}

	cmd := exec.Command(s.command[0], s.Args(spec)...)
	cmd.Env = s.env
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start watcher %s: %w", spec.Instance, err)
	}

	p := &Process{
		spec:      spec,
		cmd:       cmd,
		pid:       cmd.Process.Pid,
		startedAt: time.Now(),
		done:      make(chan struct{}),
	}
	s.mu.Lock()
	s.procs[p] = struct{}{}
	s.mu.Unlock()

	s.logger.Info("watcher started", "instance", spec.Instance, "pid", p.pid)

	log := s.logger.With("instance", spec.Instance, "pid", p.pid)
	var pipes sync.WaitGroup
	pipes.Add(2)
	go func() {
		defer pipes.Done()
		relay(stdoutPipe, log, slog.LevelInfo)
	}()
	go func() {
		defer pipes.Done()
		relay(stderrPipe, log, slog.LevelWarn)
	}()

	go s.wait(p, &pipes)
	return p, nil
}

// wait reaps p. The hub does not restart or re-register a dead watcher.
func (s *Supervisor) wait(p *Process, pipes *sync.WaitGroup) {
	pipes.Wait()
	err := p.cmd.Wait()

	p.exitCode = -1
	if p.cmd.ProcessState != nil {
		p.exitCode = p.cmd.ProcessState.ExitCode()
	}
	s.mu.Lock()
	delete(s.procs, p)
	s.mu.Unlock()
	close(p.done)

	s.logger.Info("watcher exited",
		"instance", p.spec.Instance,
		"pid", p.pid,
		"exit_code", p.exitCode,
		"uptime", time.Since(p.startedAt).Round(time.Millisecond),
		"err", err)
}

// Terminate sends SIGTERM to the watcher's process group and SIGKILL if it
// is still alive after the grace period.
func (s *Supervisor) Terminate(h Handle) error {
	p, ok := h.(*Process)
	if !ok {
		return fmt.Errorf("terminate: foreign handle %T", h)
	}

	select {
	case <-p.done:
		return nil
	default:
	}

	if err := syscall.Kill(-p.pid, syscall.SIGTERM); err != nil && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("signal watcher %s: %w", p.spec.Instance, err)
	}

	select {
	case <-p.done:
	case <-time.After(s.grace):
		s.logger.Warn("watcher ignored SIGTERM, killing", "instance", p.spec.Instance, "pid", p.pid)
		syscall.Kill(-p.pid, syscall.SIGKILL)
		<-p.done
	}
	return nil
}

// TerminateAll stops every running watcher.
func (s *Supervisor) TerminateAll() {
	s.mu.Lock()
	procs := make([]*Process, 0, len(s.procs))
	for p := range s.procs {
		procs = append(procs, p)
	}
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, p := range procs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Terminate(p); err != nil {
				s.logger.Warn("terminate watcher", "instance", p.spec.Instance, "err", err)
			}
		}()
	}
	wg.Wait()
}

// Running returns the number of live watcher processes.
func (s *Supervisor) Running() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.procs)
}

// maxRelayLine caps how much of one output line reaches the log.
const maxRelayLine = 4096

// relay logs every line a watcher writes to r until EOF. Long lines are cut
// in the log but always read in full, so the child never blocks on a full
// pipe.
func relay(r io.Reader, log *slog.Logger, level slog.Level) {
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if line = strings.TrimRight(line, "\r\n"); line != "" {
			if len(line) > maxRelayLine {
				line = line[:maxRelayLine] + "..."
			}
			log.Log(context.Background(), level, "watcher: "+line)
		}
		if err != nil {
			return
		}
	}
}
