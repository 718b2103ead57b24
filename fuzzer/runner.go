// Package fuzzer executes one fuzz worker subprocess per configured test
// case, scanning its combined output in real time for violation markers and
// enforcing the per-case timeout.
package fuzzer

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/acarl005/stripansi"
	"github.com/ethereum/go-ethereum/log"
	"github.com/google/shlex"

	"github.com/movefuzz/fuzz-acceptor/proc"
	"github.com/movefuzz/fuzz-acceptor/types"
)

const (
	// DefaultViolationMarker is the substring in worker output signaling
	// that the condition under test was detected. Matched case-insensitively;
	// presence latches the violation flag, repeats are not counted.
	DefaultViolationMarker = "SHIFT VIOLATION DETECTED"

	// SharedObjectFunction is the contract function that operates on the
	// shared object created during setup; its configured args are replaced
	// by the shared object's identifier.
	SharedObjectFunction = "mutable_shared_struct_shl"

	termGrace = 5 * time.Second
	killGrace = 2 * time.Second
)

// Lines containing any of these are forwarded to the log while a case runs.
var interestingKeywords = []string{"iteration", "shift", "violation", "detected", "error", "failed"}

// RunEnv carries the shared context resolved during pipeline setup.
type RunEnv struct {
	RPCURL         string
	PackageID      string
	Module         string
	SharedObjectID string
}

// Config holds configuration for creating a new case runner.
type Config struct {
	Binary          string // fuzzer worker binary
	WorkDir         string
	ViolationMarker string // defaults to DefaultViolationMarker
	Log             log.Logger
}

// Runner executes fuzz cases one at a time; no two worker processes are ever
// concurrently alive.
type Runner struct {
	binary  string
	workDir string
	marker  string
	log     log.Logger
}

// NewRunner creates a case runner.
func NewRunner(cfg Config) *Runner {
	marker := cfg.ViolationMarker
	if marker == "" {
		marker = DefaultViolationMarker
	}
	logger := cfg.Log
	if logger == nil {
		logger = log.New()
	}
	return &Runner{
		binary:  cfg.Binary,
		workDir: cfg.WorkDir,
		marker:  strings.ToUpper(marker),
		log:     logger,
	}
}

// Run executes one test case and always returns a TestResult; every failure
// path resolves into a result with Completed=false rather than an error.
func (r *Runner) Run(ctx context.Context, tc types.TestCase, env RunEnv) types.TestResult {
	result := types.TestResult{
		Name:            tc.Name,
		Function:        tc.Function,
		ExpectViolation: tc.ExpectViolation,
		Iterations:      tc.Iterations,
	}
	start := time.Now()
	defer func() {
		result.Duration = time.Since(start)
	}()

	args, err := r.buildWorkerArgs(tc, env)
	if err != nil {
		r.log.Error("Failed to resolve case arguments", "case", tc.Name, "error", err)
		result.Err = err
		return result
	}

	r.log.Info("Running test", "case", tc.Name, "function", tc.Function, "iterations", tc.Iterations)
	r.log.Debug("Worker command", "bin", r.binary, "args", strings.Join(args, " "))

	pr, pw := io.Pipe()
	cmd := exec.Command(r.binary, args...)
	cmd.Dir = r.workDir
	cmd.Env = append(os.Environ(), "RUST_LOG=info")
	cmd.Stdout = pw
	cmd.Stderr = pw
	proc.SetProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		_ = pw.Close()
		_ = pr.Close()
		r.log.Error("Failed to start worker", "case", tc.Name, "error", err)
		result.Err = err
		return result
	}

	// Reader task: scans lines as they stream so violation detection is
	// real-time, not post-hoc. Ends when the stream closes.
	var violation atomic.Bool
	scanDone := make(chan struct{})
	go func() {
		defer close(scanDone)
		r.scanOutput(pr, tc.Name, &violation)
	}()

	// Waiter task: reaps the process and releases the stream.
	exited := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		_ = pw.Close()
		close(exited)
	}()

	select {
	case <-exited:
		<-scanDone
		exitCode := cmd.ProcessState.ExitCode()
		result.ViolationFound = violation.Load()
		// A non-zero exit correlated with a detected violation is a clean
		// completion: violation-triggering paths may abort the worker.
		result.Completed = exitCode == 0 || result.ViolationFound
		if !result.Completed {
			result.Err = fmt.Errorf("worker exited with code %d", exitCode)
		}

	case <-time.After(tc.Timeout):
		r.log.Warn("Test timed out, terminating worker", "case", tc.Name, "timeout", tc.Timeout)
		proc.Terminate(r.log, "worker "+tc.Name, cmd, exited, termGrace, killGrace)
		<-scanDone
		result.Completed = false
		result.ViolationFound = false
		result.Err = proc.NewTimeoutError("test "+tc.Name, tc.Timeout)

	case <-ctx.Done():
		r.log.Warn("Run canceled, terminating worker", "case", tc.Name)
		proc.Terminate(r.log, "worker "+tc.Name, cmd, exited, termGrace, killGrace)
		<-scanDone
		result.Completed = false
		result.Err = ctx.Err()
	}

	return result
}

// scanOutput reads the worker's combined output line by line, forwarding
// interesting lines and latching the violation flag on the first marker hit.
func (r *Runner) scanOutput(stream io.Reader, caseName string, violation *atomic.Bool) {
	scanner := bufio.NewScanner(stream)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(stripansi.Strip(scanner.Text()))
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)

		for _, keyword := range interestingKeywords {
			if strings.Contains(lower, keyword) {
				r.log.Debug(fmt.Sprintf("[fuzzer] %s", line))
				break
			}
		}
		// Surface progress on round iteration counts.
		if strings.Contains(lower, "iteration") && (strings.Contains(line, "10000") || strings.Contains(line, "000000")) {
			r.log.Info(fmt.Sprintf("[fuzzer] %s", line))
		}

		if strings.Contains(strings.ToUpper(line), r.marker) {
			if violation.CompareAndSwap(false, true) {
				r.log.Info("Violation found", "case", caseName, "line", line)
			}
		}
	}
}

// buildWorkerArgs assembles the worker CLI invocation for a case.
func (r *Runner) buildWorkerArgs(tc types.TestCase, env RunEnv) ([]string, error) {
	args := []string{
		"sui",
		"--rpc-url", env.RPCURL,
		"--package", env.PackageID,
		"--module", env.Module,
		"--function", tc.Function,
	}

	caseArgs, err := resolveCaseArgs(tc, env)
	if err != nil {
		return nil, err
	}
	if len(caseArgs) > 0 {
		args = append(args, "--args")
		args = append(args, caseArgs...)
	}

	args = append(args, "--iterations", strconv.Itoa(tc.Iterations))

	if tc.TypeArgs != "" {
		typeArgs, err := shlex.Split(tc.TypeArgs)
		if err != nil {
			return nil, fmt.Errorf("splitting type args %q: %w", tc.TypeArgs, err)
		}
		args = append(args, "--type-args")
		args = append(args, typeArgs...)
	}

	return args, nil
}

// resolveCaseArgs turns the case's raw argument string into worker argv
// tokens. The shared-object function always receives the shared object
// identifier; a bracket-delimited literal passes through as one token;
// anything else splits shell-style.
func resolveCaseArgs(tc types.TestCase, env RunEnv) ([]string, error) {
	raw := tc.Args
	if tc.Function == SharedObjectFunction {
		raw = env.SharedObjectID
	}
	if raw == "" {
		return nil, nil
	}
	if strings.HasPrefix(raw, "[") && strings.HasSuffix(raw, "]") {
		return []string{raw}, nil
	}
	tokens, err := shlex.Split(raw)
	if err != nil {
		return nil, fmt.Errorf("splitting args %q: %w", raw, err)
	}
	return tokens, nil
}
