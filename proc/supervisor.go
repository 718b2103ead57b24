package proc

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/acarl005/stripansi"
	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/sync/errgroup"
)

// State tracks the lifecycle of a supervised process.
type State int

const (
	StateNotStarted State = iota
	StateStarting
	StateRunning
	StateStopping
	StateStopped
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not-started"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Defaults mirroring the startup and teardown windows of the localnet.
const (
	DefaultSettleDelay = 2 * time.Second
	DefaultTermGrace   = 3 * time.Second
	DefaultKillGrace   = 2 * time.Second
	DefaultTailLines   = 30
)

// Lines containing any of these are forwarded from the service's combined
// output to the harness log while the process runs.
var diagnosticKeywords = []string{"error", "fatal", "panic", "failed", "listening"}

// SupervisorConfig describes the long-running background process to own.
type SupervisorConfig struct {
	Name string // label used in log lines
	Bin  string
	Args []string
	Dir  string
	Env  []string // appended to the current environment
	Log  log.Logger

	// ReadyPorts are probed after startup; the supervisor is operationally
	// ready only once every port accepts connections.
	ReadyPorts    []int
	ReadyTimeout  time.Duration
	ProbeInterval time.Duration

	SettleDelay time.Duration
	TermGrace   time.Duration
	KillGrace   time.Duration
	TailLines   int
}

// Supervisor owns the lifecycle of one long-running background process:
// start, liveness, streamed output capture and two-stage termination. The
// owning scope must drive it to a terminal state before returning.
type Supervisor struct {
	cfg SupervisorConfig
	log log.Logger

	mu    sync.Mutex
	state State
	cmd   *exec.Cmd

	exited    chan struct{}
	exitCode  int
	tail      *lineTail
	drainDone chan struct{}
}

// NewSupervisor creates a supervisor for the given process; the process is
// not started until Start is called.
func NewSupervisor(cfg SupervisorConfig) *Supervisor {
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = DefaultSettleDelay
	}
	if cfg.TermGrace <= 0 {
		cfg.TermGrace = DefaultTermGrace
	}
	if cfg.KillGrace <= 0 {
		cfg.KillGrace = DefaultKillGrace
	}
	if cfg.TailLines <= 0 {
		cfg.TailLines = DefaultTailLines
	}
	if cfg.ProbeInterval <= 0 {
		cfg.ProbeInterval = DefaultProbeInterval
	}
	logger := cfg.Log
	if logger == nil {
		logger = log.New()
	}
	return &Supervisor{
		cfg:       cfg,
		log:       logger,
		state:     StateNotStarted,
		exited:    make(chan struct{}),
		drainDone: make(chan struct{}),
		tail:      newLineTail(cfg.TailLines),
	}
}

// Start spawns the process, waits for it to settle, begins draining its
// combined output and probes every configured ready port. If the process
// exits early or any probe times out, Start fails with the process already
// torn down.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateNotStarted {
		s.mu.Unlock()
		return fmt.Errorf("cannot start %s: state is %s", s.cfg.Name, s.state)
	}
	s.state = StateStarting

	pr, pw := io.Pipe()
	cmd := exec.Command(s.cfg.Bin, s.cfg.Args...)
	cmd.Dir = s.cfg.Dir
	if len(s.cfg.Env) > 0 {
		cmd.Env = append(os.Environ(), s.cfg.Env...)
	}
	cmd.Stdout = pw
	cmd.Stderr = pw
	setProcessGroup(cmd)

	s.log.Info("Starting background service", "name", s.cfg.Name, "bin", s.cfg.Bin, "args", strings.Join(s.cfg.Args, " "))
	if err := cmd.Start(); err != nil {
		s.state = StateFailed
		s.mu.Unlock()
		_ = pw.Close()
		_ = pr.Close()
		return fmt.Errorf("starting %s: %w", s.cfg.Name, err)
	}
	s.cmd = cmd
	s.mu.Unlock()

	go func() {
		err := cmd.Wait()
		// Written before the close; readers gate on exited, so no lock is
		// needed and the wait path can never block behind a held s.mu.
		s.exitCode = cmd.ProcessState.ExitCode()
		if err != nil {
			s.log.Debug("Service process exited", "name", s.cfg.Name, "error", err)
		}
		_ = pw.Close()
		close(s.exited)
	}()

	go s.drainOutput(pr)

	// Let the process settle before judging liveness.
	select {
	case <-time.After(s.cfg.SettleDelay):
	case <-s.exited:
		return s.failEarlyExit()
	case <-ctx.Done():
		s.Stop()
		return ctx.Err()
	}

	select {
	case <-s.exited:
		return s.failEarlyExit()
	default:
	}
	s.log.Info("Service process started, waiting for readiness", "name", s.cfg.Name, "pid", cmd.Process.Pid)

	if err := s.waitReady(ctx); err != nil {
		s.log.Error("Service failed to become ready", "name", s.cfg.Name, "error", err)
		s.Stop()
		s.mu.Lock()
		s.state = StateFailed
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateStarting {
		return fmt.Errorf("%s stopped during startup", s.cfg.Name)
	}
	s.state = StateRunning
	s.log.Info("Service is ready", "name", s.cfg.Name, "ports", s.cfg.ReadyPorts)
	return nil
}

// waitReady probes all configured ports concurrently; every port must accept
// connections for the service to count as operationally ready.
func (s *Supervisor) waitReady(ctx context.Context) error {
	if len(s.cfg.ReadyPorts) == 0 {
		return nil
	}
	g, ctx := errgroup.WithContext(ctx)
	for _, port := range s.cfg.ReadyPorts {
		port := port
		g.Go(func() error {
			if !WaitForPort(ctx, s.log, "localhost", port, s.cfg.ReadyTimeout, s.cfg.ProbeInterval) {
				return NewTimeoutError(fmt.Sprintf("%s port %d readiness", s.cfg.Name, port), s.cfg.ReadyTimeout)
			}
			return nil
		})
	}
	return g.Wait()
}

// drainOutput reads the combined output stream for the lifetime of the
// process, keeping a diagnostic tail and forwarding interesting lines.
func (s *Supervisor) drainOutput(r io.Reader) {
	defer close(s.drainDone)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(stripansi.Strip(scanner.Text()))
		if line == "" {
			continue
		}
		s.tail.Append(line)
		lower := strings.ToLower(line)
		for _, keyword := range diagnosticKeywords {
			if strings.Contains(lower, keyword) {
				s.log.Debug(fmt.Sprintf("[%s] %s", s.cfg.Name, line))
				break
			}
		}
	}
}

// failEarlyExit records a Failed state and returns an error carrying the
// trailing output for diagnostics.
func (s *Supervisor) failEarlyExit() error {
	// Give the drain a moment to flush the last lines.
	select {
	case <-s.drainDone:
	case <-time.After(time.Second):
	}

	s.mu.Lock()
	s.state = StateFailed
	code := s.exitCode
	s.mu.Unlock()

	tail := s.tail.Lines()
	s.log.Error("Service process exited early", "name", s.cfg.Name, "code", code)
	for _, line := range tail {
		s.log.Error(fmt.Sprintf("  [%s] %s", s.cfg.Name, line))
	}
	return fmt.Errorf("%s exited early with code %d", s.cfg.Name, code)
}

// Stop terminates the process: graceful signal, grace window, forced kill,
// second window. A process that survives both windows is logged as an
// anomaly, never an error; supervision must not hang the pipeline. Stop is
// idempotent; calling it on a stopped supervisor is a no-op.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	switch s.state {
	case StateNotStarted, StateStopping, StateStopped:
		s.mu.Unlock()
		return
	case StateFailed:
		// Process already reached a terminal state.
		s.state = StateStopped
		s.mu.Unlock()
		return
	}
	s.state = StateStopping
	cmd := s.cmd
	s.mu.Unlock()

	// Terminate blocks on the exit notification; it must run unlocked so the
	// graceful window can actually observe the exit.
	Terminate(s.log, s.cfg.Name, cmd, s.exited, s.cfg.TermGrace, s.cfg.KillGrace)

	s.mu.Lock()
	s.state = StateStopped
	s.mu.Unlock()
}

// Alive reports whether the supervised process has been started and has not
// yet exited.
func (s *Supervisor) Alive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd == nil {
		return false
	}
	select {
	case <-s.exited:
		return false
	default:
		return true
	}
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ExitCode returns the process exit code once it has exited, -1 otherwise.
func (s *Supervisor) ExitCode() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.exited:
		return s.exitCode
	default:
		return -1
	}
}

// TailLines returns the most recent output lines for diagnostics.
func (s *Supervisor) TailLines() []string {
	return s.tail.Lines()
}

// lineTail keeps only the last N output lines so early-exit diagnostics can
// show a representative snippet without retaining the full log in memory.
type lineTail struct {
	mu    sync.Mutex
	max   int
	lines []string
}

func newLineTail(max int) *lineTail {
	return &lineTail{max: max, lines: make([]string, 0, max)}
}

func (t *lineTail) Append(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = append(t.lines, line)
	if len(t.lines) > t.max {
		t.lines = t.lines[len(t.lines)-t.max:]
	}
}

func (t *lineTail) Lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	cp := make([]string, len(t.lines))
	copy(cp, t.lines)
	return cp
}
