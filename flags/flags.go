package flags

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"
)

const EnvVarPrefix = "FUZZ_ACCEPTOR"

func prefixEnvVars(name string) []string {
	return []string{EnvVarPrefix + "_" + name}
}

var (
	TestCases = &cli.StringFlag{
		Name:     "testcases",
		Value:    "",
		Required: true,
		EnvVars:  prefixEnvVars("TESTCASES"),
		Usage:    "Path to the test case config file (eg. 'test_cases.toml')",
	}
	WorkDir = &cli.StringFlag{
		Name:    "workdir",
		Value:   ".",
		EnvVars: prefixEnvVars("WORKDIR"),
		Usage:   "Repository root containing the fuzzer workspace and contracts",
	}
	SuiBinary = &cli.StringFlag{
		Name:    "sui-binary",
		Value:   "sui",
		EnvVars: prefixEnvVars("SUI_BINARY"),
		Usage:   "Path to the sui binary used for the localnet and admin commands",
	}
	FuzzerBinary = &cli.StringFlag{
		Name:    "fuzzer-binary",
		Value:   "target/release/fuzzer",
		EnvVars: prefixEnvVars("FUZZER_BINARY"),
		Usage:   "Path to the fuzzer worker binary, relative to the workdir",
	}
	ContractDir = &cli.StringFlag{
		Name:    "contract-dir",
		Value:   "contracts/sui-demo",
		EnvVars: prefixEnvVars("CONTRACT_DIR"),
		Usage:   "Path to the demo contract package, relative to the workdir",
	}
	SkipBuild = &cli.BoolFlag{
		Name:    "skip-build",
		Value:   false,
		EnvVars: prefixEnvVars("SKIP_BUILD"),
		Usage:   "Skip building the fuzzer worker before running cases",
	}
	BuildTimeout = &cli.DurationFlag{
		Name:    "build-timeout",
		Value:   time.Hour,
		EnvVars: prefixEnvVars("BUILD_TIMEOUT"),
		Usage:   "Timeout for building the fuzzer worker",
	}
	StartupTimeout = &cli.DurationFlag{
		Name:    "startup-timeout",
		Value:   30 * time.Second,
		EnvVars: prefixEnvVars("STARTUP_TIMEOUT"),
		Usage:   "Timeout for each localnet port to become reachable",
	}
	ReportFile = &cli.StringFlag{
		Name:    "report-file",
		Value:   "test-report.md",
		EnvVars: prefixEnvVars("REPORT_FILE"),
		Usage:   "Path of the generated markdown report, relative to the workdir",
	}
	LogLevel = &cli.StringFlag{
		Name:    "log.level",
		Value:   "info",
		EnvVars: prefixEnvVars("LOG_LEVEL"),
		Usage:   "The lowest log level that will be output (trace|debug|info|warn|error|crit)",
	}
)

var requiredFlags = []cli.Flag{
	TestCases,
}

var optionalFlags = []cli.Flag{
	WorkDir,
	SuiBinary,
	FuzzerBinary,
	ContractDir,
	SkipBuild,
	BuildTimeout,
	StartupTimeout,
	ReportFile,
	LogLevel,
}

var Flags []cli.Flag

func init() {
	Flags = append(requiredFlags, optionalFlags...)
}

func CheckRequired(ctx *cli.Context) error {
	for _, f := range requiredFlags {
		if !ctx.IsSet(f.Names()[0]) {
			return fmt.Errorf("flag %s is required", f.Names()[0])
		}
	}
	return nil
}
