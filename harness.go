// Package harness orchestrates one full integration pass of the move fuzzer:
// it provisions a throwaway localnet, deploys the demo contract, drives every
// configured fuzz case through the worker binary and reconciles the outcomes
// into a verdict, a console table and a markdown report.
package harness

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/movefuzz/fuzz-acceptor/exitcodes"
	"github.com/movefuzz/fuzz-acceptor/fuzzer"
	"github.com/movefuzz/fuzz-acceptor/proc"
	"github.com/movefuzz/fuzz-acceptor/registry"
	"github.com/movefuzz/fuzz-acceptor/results"
	"github.com/movefuzz/fuzz-acceptor/suiclient"
	"github.com/movefuzz/fuzz-acceptor/types"
)

// Harness is the integration test orchestrator. It runs once: Start executes
// the full pipeline, reports, then triggers application shutdown.
type Harness struct {
	ctx        context.Context
	config     *Config
	version    string
	registry   *registry.Registry
	sui        *suiclient.Client
	caseRunner *fuzzer.Runner
	summary    *results.Summary
	tracer     trace.Tracer

	mu       sync.Mutex
	localnet *proc.Supervisor

	running     atomic.Bool
	cleanupOnce sync.Once
	done        chan struct{}
}

// New creates a harness from the given config. The localnet is not started
// and no process is spawned until Start is called.
func New(ctx context.Context, config *Config, version string) (*Harness, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if config.RPCPort == 0 {
		config.RPCPort = DefaultRPCPort
	}
	if config.FaucetPort == 0 {
		config.FaucetPort = DefaultFaucetPort
	}

	config.Log.Debug("Creating harness with config",
		"testCases", config.TestCases,
		"workDir", config.WorkDir,
		"suiBinary", config.SuiBinary,
		"fuzzerBinary", config.FuzzerBinary,
		"contractDir", config.ContractDir,
		"skipBuild", config.SkipBuild)

	reg, err := registry.NewRegistry(registry.Config{
		Log:            config.Log,
		CaseConfigFile: config.TestCases,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create registry: %w", err)
	}

	return &Harness{
		ctx:      ctx,
		config:   config,
		version:  version,
		registry: reg,
		sui:      suiclient.New(config.SuiBinary, config.WorkDir, config.Log),
		caseRunner: fuzzer.NewRunner(fuzzer.Config{
			Binary:  config.FuzzerBinary,
			WorkDir: config.WorkDir,
			Log:     config.Log,
		}),
		tracer: otel.Tracer("fuzz harness"),
		done:   make(chan struct{}),
	}, nil
}

// Start runs the full pipeline once and triggers shutdown when done. The
// returned error determines the process exit code: nil for success, a
// TestFailureError when cases failed, a RuntimeError for everything else.
func (h *Harness) Start(ctx context.Context) error {
	// Panics anywhere in the pipeline are runtime errors, not test failures.
	defer func() {
		if r := recover(); r != nil {
			h.config.Log.Error("Runtime error occurred", "error", r)
			h.Cleanup()
			os.Exit(exitcodes.RuntimeErr)
		}
	}()

	h.ctx = ctx
	h.running.Store(true)
	h.config.Log.Info("Starting fuzz-acceptor", "version", h.version)

	summary, err := h.run(ctx)
	h.Cleanup()
	if err != nil {
		h.config.Log.Error("Runtime error running pipeline", "error", err)
		return NewRuntimeError(err)
	}
	h.summary = summary

	h.printResultsTable()
	fmt.Println(summary.String())
	h.config.Log.Info("Run completed", "run_id", summary.RunID, "all_passed", summary.AllPassed)

	if !summary.AllPassed {
		return NewTestFailureError(fmt.Sprintf("%d of %d cases failed",
			summary.Stats.Failed, summary.Stats.Total))
	}
	return nil
}

// Stop stops the harness and tears down anything it still owns.
func (h *Harness) Stop(ctx context.Context) error {
	h.config.Log.Info("Stopping fuzz-acceptor")

	// Swap-and-close so racing Stop calls cannot close done twice.
	if !h.running.CompareAndSwap(true, false) {
		h.config.Log.Debug("Service already stopped, nothing to do")
		return nil
	}
	close(h.done)

	h.Cleanup()
	h.config.Log.Info("fuzz-acceptor stopped successfully")
	return nil
}

// Stopped returns true if the harness is stopped.
func (h *Harness) Stopped() bool {
	return !h.running.Load()
}

// Cleanup tears down the localnet and clears its well-known ports. It runs
// exactly once regardless of how many exit paths reach it; every path through
// Start and Stop does.
func (h *Harness) Cleanup() {
	h.cleanupOnce.Do(func() {
		h.config.Log.Info("Cleaning up")

		h.mu.Lock()
		localnet := h.localnet
		h.mu.Unlock()
		if localnet != nil {
			localnet.Stop()
		}

		// The node forks helper processes that can outlive the supervised
		// parent; sweep the ports regardless.
		proc.KillPort(h.config.Log, h.config.RPCPort)
		proc.KillPort(h.config.Log, h.config.FaucetPort)
		h.config.Log.Info("Cleanup completed")
	})
}

// Summary returns the result of the completed run, nil before completion.
func (h *Harness) Summary() *results.Summary {
	return h.summary
}

// printResultsTable prints the per-case outcomes to the console.
func (h *Harness) printResultsTable() {
	s := h.summary
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle(fmt.Sprintf("Fuzz Integration Results (%.1fs)", s.Duration.Seconds()))

	t.AppendHeader(table.Row{
		"Test", "Function", "Duration", "Iterations", "Violation", "Expected", "Status", "Error",
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Test", WidthMax: 40, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Duration", Align: text.AlignRight},
		{Name: "Iterations", Align: text.AlignRight},
		{Name: "Error", WidthMax: 60, WidthMaxEnforcer: text.WrapSoft},
	})

	for i := range s.Results {
		r := &s.Results[i]
		errMsg := ""
		if r.Err != nil {
			errMsg = r.Err.Error()
		}
		t.AppendRow(table.Row{
			r.Name,
			r.Function,
			fmt.Sprintf("%.1fs", r.Duration.Seconds()),
			r.Iterations,
			yesNo(r.ViolationFound),
			yesNo(r.ExpectViolation),
			statusString(r),
			errMsg,
		})
	}

	if s.AllPassed {
		t.SetStyle(table.StyleColoredBlackOnGreenWhite)
	} else {
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	}

	t.AppendFooter(table.Row{
		"TOTAL", "", fmt.Sprintf("%.1fs", s.Duration.Seconds()), "",
		s.Stats.Passed, s.Stats.Failed, overallString(s.AllPassed), "",
	})
	t.Render()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func statusString(r *types.TestResult) string {
	if r.Passed() {
		return "✓ pass"
	}
	return "✗ fail"
}

func overallString(allPassed bool) string {
	if allPassed {
		return "✓ pass"
	}
	return "✗ fail"
}
