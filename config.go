package harness

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/ethereum/go-ethereum/log"
	"github.com/movefuzz/fuzz-acceptor/flags"
)

// Ports the sui localnet binds by default. Tests point the harness at
// ephemeral stand-ins instead.
const (
	DefaultRPCPort    = 9000
	DefaultFaucetPort = 9123
)

// Config holds the application configuration
type Config struct {
	TestCases      string        // Path to the test case config file
	WorkDir        string        // Repository root containing the fuzzer workspace
	SuiBinary      string        // Path to the sui binary
	FuzzerBinary   string        // Path to the fuzzer worker binary
	ContractDir    string        // Path to the demo contract package
	SkipBuild      bool          // Skip the worker build stage
	BuildTimeout   time.Duration // Timeout for the worker build
	StartupTimeout time.Duration // Timeout for each localnet port probe
	RPCPort        int           // Localnet JSON-RPC port
	FaucetPort     int           // Localnet faucet port
	ReportFile     string        // Path of the generated markdown report
	Log            log.Logger
}

// RPCURL returns the localnet JSON-RPC endpoint.
func (c *Config) RPCURL() string {
	return fmt.Sprintf("http://localhost:%d", c.RPCPort)
}

// FaucetURL returns the localnet faucet HTTP endpoint.
func (c *Config) FaucetURL() string {
	return fmt.Sprintf("http://localhost:%d", c.FaucetPort)
}

// NewConfig creates a new Config from cli context
func NewConfig(ctx *cli.Context, logger log.Logger) (*Config, error) {
	if err := flags.CheckRequired(ctx); err != nil {
		return nil, fmt.Errorf("missing required flags: %w", err)
	}

	testCases := ctx.String(flags.TestCases.Name)
	if testCases == "" {
		return nil, errors.New("test case config file is required")
	}
	absTestCases, err := filepath.Abs(testCases)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for test case file '%s': %w", testCases, err)
	}

	workDir := ctx.String(flags.WorkDir.Name)
	absWorkDir, err := filepath.Abs(workDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for workdir '%s': %w", workDir, err)
	}

	fuzzerBinary := ctx.String(flags.FuzzerBinary.Name)
	if !filepath.IsAbs(fuzzerBinary) {
		fuzzerBinary = filepath.Join(absWorkDir, fuzzerBinary)
	}
	contractDir := ctx.String(flags.ContractDir.Name)
	if !filepath.IsAbs(contractDir) {
		contractDir = filepath.Join(absWorkDir, contractDir)
	}
	reportFile := ctx.String(flags.ReportFile.Name)
	if !filepath.IsAbs(reportFile) {
		reportFile = filepath.Join(absWorkDir, reportFile)
	}

	return &Config{
		TestCases:      absTestCases,
		WorkDir:        absWorkDir,
		SuiBinary:      ctx.String(flags.SuiBinary.Name),
		FuzzerBinary:   fuzzerBinary,
		ContractDir:    contractDir,
		SkipBuild:      ctx.Bool(flags.SkipBuild.Name),
		BuildTimeout:   ctx.Duration(flags.BuildTimeout.Name),
		StartupTimeout: ctx.Duration(flags.StartupTimeout.Name),
		RPCPort:        DefaultRPCPort,
		FaucetPort:     DefaultFaucetPort,
		ReportFile:     reportFile,
		Log:            logger,
	}, nil
}
