package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/log"
	"github.com/honeycombio/otel-config-go/otelconfig"
	"github.com/urfave/cli/v2"

	harness "github.com/movefuzz/fuzz-acceptor"
	"github.com/movefuzz/fuzz-acceptor/flags"
	"github.com/movefuzz/fuzz-acceptor/service"
)

var (
	Version   = "v0.1.0"
	GitCommit = ""
	GitDate   = ""
)

func main() {
	app := cli.NewApp()
	app.Version = fmt.Sprintf("%s-%s-%s", Version, GitCommit, GitDate)
	app.Name = "fuzz-acceptor"
	app.Usage = "Move Fuzzer Integration Test Harness"
	app.Description = "fuzz-acceptor provisions a localnet and runs fuzz cases against it"
	app.Flags = flags.Flags
	app.Action = run
	app.ExitErrHandler = func(c *cli.Context, err error) {
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			cli.HandleExitCoder(exitErr)
		} else if err != nil {
			if harness.IsRuntimeError(err) {
				cli.HandleExitCoder(cli.Exit(err.Error(), 2))
			} else if harness.IsTestFailureError(err) {
				cli.HandleExitCoder(cli.Exit(err.Error(), 1))
			} else {
				cli.HandleExitCoder(cli.Exit(err.Error(), 1))
			}
		}
	}

	// Start telemetry
	otelShutdown, err := otelconfig.ConfigureOpenTelemetry(
		otelconfig.WithServiceName(app.Name),
		otelconfig.WithServiceVersion(app.Version),
	)
	if err != nil {
		log.Crit("Failed to setup open telemetry", "message", err)
	}
	defer otelShutdown()

	if err := app.Run(os.Args); err != nil {
		log.Crit("Application failed", "message", err)
	}
}

func run(cliCtx *cli.Context) error {
	logger, err := newLogger(cliCtx.String(flags.LogLevel.Name))
	if err != nil {
		return harness.NewRuntimeError(err)
	}
	log.SetDefault(logger)

	cfg, err := harness.NewConfig(cliCtx, logger)
	if err != nil {
		return harness.NewRuntimeError(fmt.Errorf("failed to create config: %w", err))
	}
	cfg.Log.Debug("Config", "config", cfg)

	// Sidecar servers for health and metrics scraping.
	svc := service.New()
	svc.Start(cliCtx.Context)
	defer svc.Shutdown()

	// A signal cancels the run context: the pipeline aborts at the next
	// stage boundary and cleanup still runs on the way out.
	ctx, stop := signal.NotifyContext(cliCtx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	h, err := harness.New(ctx, cfg, Version)
	if err != nil {
		return harness.NewRuntimeError(fmt.Errorf("failed to create harness: %w", err))
	}
	defer h.Cleanup()

	return h.Start(ctx)
}

func newLogger(level string) (log.Logger, error) {
	lvl, err := lvlFromString(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return log.NewLogger(log.NewTerminalHandlerWithLevel(os.Stdout, lvl, true)), nil
}

// lvlFromString maps the level names accepted by --log.level
// (trace|debug|info|warn|error|crit) to slog levels; the log package no
// longer ships a string parser.
func lvlFromString(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "trace":
		return log.LevelTrace, nil
	case "debug":
		return log.LevelDebug, nil
	case "info":
		return log.LevelInfo, nil
	case "warn":
		return log.LevelWarn, nil
	case "error":
		return log.LevelError, nil
	case "crit":
		return log.LevelCrit, nil
	default:
		return 0, fmt.Errorf("unknown level: %v", level)
	}
}
