package harness

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/movefuzz/fuzz-acceptor/extract"
	"github.com/movefuzz/fuzz-acceptor/fuzzer"
	"github.com/movefuzz/fuzz-acceptor/metrics"
	"github.com/movefuzz/fuzz-acceptor/proc"
	"github.com/movefuzz/fuzz-acceptor/reporting"
	"github.com/movefuzz/fuzz-acceptor/results"
	"github.com/movefuzz/fuzz-acceptor/suiclient"
	"github.com/movefuzz/fuzz-acceptor/types"
)

// Fixed identifiers of the demo contract exercised by every run.
const (
	ContractModule       = "shl_demo"
	sharedObjectFunction = "create_shared_demo_struct"

	walletAlias = "move-fuzzer"
	envAlias    = "local"
)

// Delays observed to be necessary between provisioning steps: the localnet
// needs a moment after its ports open before accepting transactions, and
// faucet transfers take a few seconds to land.
const (
	portReleaseDelay  = 2 * time.Second
	rpcStabilityDelay = 3 * time.Second
	fundSettleDelay   = 3 * time.Second
	interCasePause    = 1 * time.Second
)

// Environment for the localnet node. Node logs stay on so readiness problems
// are diagnosable; everything else is noise at this volume.
var localnetEnv = []string{"RUST_LOG=off,sui_node=info"}

// run executes one full integration pass: build, localnet, wallet, contract,
// shared object, then every configured case in declaration order. It returns
// the run summary on success and an error for any provisioning failure; case
// failures are not errors, they are recorded in the summary.
func (h *Harness) run(ctx context.Context) (*results.Summary, error) {
	runID := uuid.New().String()
	start := time.Now()
	h.config.Log.Info("Starting fuzz run", "run_id", runID)

	if err := h.buildWorker(ctx); err != nil {
		return nil, NewSetupError("worker build", err)
	}
	if err := h.startLocalnet(ctx); err != nil {
		return nil, NewSetupError("localnet startup", err)
	}
	if err := h.setupWallet(ctx); err != nil {
		return nil, NewSetupError("wallet setup", err)
	}
	packageID, err := h.deployContract(ctx)
	if err != nil {
		return nil, NewSetupError("contract deployment", err)
	}
	sharedObjectID, err := h.createSharedObject(ctx, packageID)
	if err != nil {
		return nil, NewSetupError("shared object creation", err)
	}

	caseResults, err := h.runCases(ctx, runID, fuzzer.RunEnv{
		RPCURL:         h.config.RPCURL(),
		PackageID:      packageID,
		Module:         ContractModule,
		SharedObjectID: sharedObjectID,
	})
	if err != nil {
		return nil, err
	}

	summary := results.Summarize(runID, packageID, caseResults, time.Since(start))
	metrics.RecordRun(runID, summary.AllPassed,
		summary.Stats.Total, summary.Stats.Passed, summary.Stats.Failed, summary.Duration)

	if err := reporting.WriteMarkdown(h.config.ReportFile, summary); err != nil {
		h.config.Log.Error("Failed to write report", "path", h.config.ReportFile, "error", err)
	} else {
		h.config.Log.Info("Report written", "path", h.config.ReportFile)
	}
	return summary, nil
}

// buildWorker compiles the fuzzer worker binary unless the build is skipped.
func (h *Harness) buildWorker(ctx context.Context) error {
	ctx, span := h.tracer.Start(ctx, "worker build")
	defer span.End()

	if h.config.SkipBuild {
		h.config.Log.Info("Skipping worker build")
		return nil
	}
	h.config.Log.Info("Building fuzzer worker", "dir", h.config.WorkDir)
	_, err := proc.Run(ctx, h.config.Log, proc.Command{
		Bin:     "cargo",
		Args:    []string{"build", "--release"},
		Dir:     h.config.WorkDir,
		Timeout: h.config.BuildTimeout,
	})
	if err != nil {
		return fmt.Errorf("building worker: %w", err)
	}
	h.config.Log.Info("Worker build completed")
	return nil
}

// startLocalnet clears the well-known ports, launches a fresh localnet and
// waits for both the RPC and faucet endpoints to accept connections.
func (h *Harness) startLocalnet(ctx context.Context) error {
	ctx, span := h.tracer.Start(ctx, "localnet startup")
	defer span.End()

	// A previous run may have leaked a node; the ports must be free before
	// a fresh regenesis can bind them.
	proc.KillPort(h.config.Log, h.config.RPCPort)
	proc.KillPort(h.config.Log, h.config.FaucetPort)
	time.Sleep(portReleaseDelay)

	localnet := proc.NewSupervisor(proc.SupervisorConfig{
		Name:         "localnet",
		Bin:          h.config.SuiBinary,
		Args:         []string{"start", "--with-faucet", "--force-regenesis"},
		Dir:          h.config.WorkDir,
		Env:          localnetEnv,
		Log:          h.config.Log,
		ReadyPorts:   []int{h.config.RPCPort, h.config.FaucetPort},
		ReadyTimeout: h.config.StartupTimeout,
	})

	h.mu.Lock()
	h.localnet = localnet
	h.mu.Unlock()

	if err := localnet.Start(ctx); err != nil {
		return err
	}

	// Ports accepting connections does not yet mean the node serves
	// transactions; give it a moment before the first wallet command.
	select {
	case <-time.After(rpcStabilityDelay):
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// setupWallet provisions the fuzzing identity: address, environment, funds.
// Address and environment creation tolerate pre-existing aliases; switching
// to them and ending up funded must succeed.
func (h *Harness) setupWallet(ctx context.Context) error {
	ctx, span := h.tracer.Start(ctx, "wallet setup")
	defer span.End()

	h.config.Log.Info("Setting up wallet", "alias", walletAlias)

	h.sui.NewAddress(ctx, walletAlias)
	if err := h.sui.SwitchAddress(ctx, walletAlias); err != nil {
		return err
	}
	h.sui.NewEnv(ctx, envAlias, fmt.Sprintf("http://127.0.0.1:%d", h.config.RPCPort))
	if err := h.sui.SwitchEnv(ctx, envAlias); err != nil {
		return err
	}

	address, err := h.sui.ActiveAddress(ctx)
	if err != nil {
		return err
	}

	if err := h.sui.Faucet(ctx); err != nil {
		h.config.Log.Warn("Faucet command failed, falling back to HTTP API", "error", err)
		if err := suiclient.RequestFaucetHTTP(ctx, h.config.Log, h.config.FaucetURL(), address); err != nil {
			return fmt.Errorf("both faucet methods failed: %w", err)
		}
	}

	// Faucet transfers are asynchronous.
	select {
	case <-time.After(fundSettleDelay):
	case <-ctx.Done():
		return ctx.Err()
	}

	funded, err := h.sui.HasGas(ctx)
	if err != nil {
		return err
	}
	if !funded {
		return fmt.Errorf("no gas objects available after faucet")
	}
	h.config.Log.Info("Wallet setup completed", "address", address)
	return nil
}

// deployContract builds and publishes the demo contract, returning its
// package identifier extracted from the publish output.
func (h *Harness) deployContract(ctx context.Context) (string, error) {
	ctx, span := h.tracer.Start(ctx, "contract deployment")
	defer span.End()

	h.config.Log.Info("Deploying contract", "dir", h.config.ContractDir)
	if err := h.sui.MoveBuild(ctx, h.config.ContractDir); err != nil {
		return "", err
	}
	output, err := h.sui.Publish(ctx, h.config.ContractDir)
	if err != nil {
		return "", err
	}

	packageID, pattern, ok := extract.First(output, suiclient.PackageIDPatterns)
	if !ok {
		h.config.Log.Error("No package ID in publish output", "output", truncate(output, 500))
		return "", NewExtractionError("package ID")
	}
	h.config.Log.Info("Contract deployed", "package_id", packageID, "pattern", pattern)
	return packageID, nil
}

// createSharedObject creates the shared demo struct the shared-object cases
// mutate, returning its object identifier from the call output.
func (h *Harness) createSharedObject(ctx context.Context, packageID string) (string, error) {
	ctx, span := h.tracer.Start(ctx, "shared object creation")
	defer span.End()

	output, err := h.sui.Call(ctx, packageID, ContractModule, sharedObjectFunction, "12", "2")
	if err != nil {
		return "", err
	}

	objectID, pattern, ok := extract.First(output, suiclient.CreatedObjectPatterns)
	if !ok {
		h.config.Log.Error("No object ID in call output", "output", truncate(output, 500))
		return "", NewExtractionError("shared object ID")
	}
	h.config.Log.Info("Shared object created", "object_id", objectID, "pattern", pattern)
	return objectID, nil
}

// runCases executes every registered case sequentially in declaration order,
// pausing briefly between cases so the localnet settles between workloads.
func (h *Harness) runCases(ctx context.Context, runID string, env fuzzer.RunEnv) ([]types.TestResult, error) {
	ctx, span := h.tracer.Start(ctx, "case execution")
	defer span.End()

	cases := h.registry.GetCases()
	h.config.Log.Info("Running cases", "count", len(cases))

	caseResults := make([]types.TestResult, 0, len(cases))
	for i := range cases {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tc := cases[i]

		caseCtx, caseSpan := h.tracer.Start(ctx, fmt.Sprintf("case %s", tc.Name))
		result := h.caseRunner.Run(caseCtx, tc, env)
		caseSpan.End()

		metrics.RecordCase(runID, &result)
		caseResults = append(caseResults, result)
		h.config.Log.Info("Case finished",
			"case", result.Name,
			"status", result.Status(),
			"violation", result.ViolationFound,
			"duration", result.Duration)

		if i < len(cases)-1 {
			select {
			case <-time.After(interCasePause):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return caseResults, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
