package proc

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
)

// Command describes one short-lived administrative subprocess.
type Command struct {
	Bin  string
	Args []string
	Dir  string
	Env  []string // appended to the current environment

	// Timeout bounds the full run; zero means no deadline beyond ctx.
	Timeout time.Duration

	// TolerateError suppresses the ProcessError on non-zero exit. Used for
	// idempotent setup steps where "already exists" is an expected outcome.
	TolerateError bool
}

// Result holds the captured output of a completed command.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Run executes cmd to completion, capturing stdout and stderr separately.
// It returns a TimeoutError if the deadline fires first and a ProcessError on
// non-zero exit unless the caller tolerates it. The subprocess is fully
// reaped before Run returns; there is no residual state.
func Run(ctx context.Context, logger log.Logger, cmd Command) (*Result, error) {
	if cmd.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cmd.Timeout)
		defer cancel()
	}

	execCmd := exec.CommandContext(ctx, cmd.Bin, cmd.Args...)
	execCmd.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		execCmd.Env = append(os.Environ(), cmd.Env...)
	}
	setProcessGroup(execCmd)

	var stdout, stderr bytes.Buffer
	execCmd.Stdout = &stdout
	execCmd.Stderr = &stderr

	logger.Debug("Running command", "bin", cmd.Bin, "args", strings.Join(cmd.Args, " "), "dir", cmd.Dir, "timeout", cmd.Timeout)

	err := execCmd.Run()

	exitCode := -1
	if execCmd.ProcessState != nil {
		exitCode = execCmd.ProcessState.ExitCode()
	}
	result := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: exitCode,
	}

	if ctx.Err() == context.DeadlineExceeded {
		logger.Error("Command timed out", "bin", cmd.Bin, "args", strings.Join(cmd.Args, " "), "timeout", cmd.Timeout)
		return result, NewTimeoutError(commandName(cmd), cmd.Timeout)
	}

	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			// Spawn failure: binary missing, permission denied.
			logger.Error("Command failed to start", "bin", cmd.Bin, "error", err)
			return result, err
		}
		if cmd.TolerateError {
			logger.Debug("Command exited non-zero (tolerated)",
				"bin", cmd.Bin, "args", strings.Join(cmd.Args, " "), "code", result.ExitCode)
			return result, nil
		}
		logger.Error("Command failed",
			"bin", cmd.Bin,
			"args", strings.Join(cmd.Args, " "),
			"code", result.ExitCode,
			"stderr", strings.TrimSpace(result.Stderr),
			"stdout", strings.TrimSpace(result.Stdout))
		return result, &ProcessError{
			Cmd:      commandName(cmd),
			ExitCode: result.ExitCode,
			Stdout:   result.Stdout,
			Stderr:   result.Stderr,
		}
	}

	return result, nil
}

func commandName(cmd Command) string {
	if len(cmd.Args) == 0 {
		return cmd.Bin
	}
	return cmd.Bin + " " + strings.Join(cmd.Args, " ")
}
