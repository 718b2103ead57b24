package proc

import (
	"os/exec"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/log"
)

// SetProcessGroup configures cmd so termination signals reach the whole
// process group. Must be called before the command starts.
func SetProcessGroup(cmd *exec.Cmd) {
	setProcessGroup(cmd)
}

// Terminate performs two-stage termination of a running process: graceful
// signal, grace window, forced kill, second window. exited must close when
// the process has been reaped. Returns true once the process is confirmed
// dead; a process surviving both windows is logged as an anomaly and left to
// the OS so that termination never hangs the caller.
func Terminate(logger log.Logger, name string, cmd *exec.Cmd, exited <-chan struct{}, termGrace, killGrace time.Duration) bool {
	select {
	case <-exited:
		return true
	default:
	}

	logger.Info("Terminating process", "name", name)
	signalProcessGroup(cmd, syscall.SIGTERM)
	select {
	case <-exited:
		logger.Info("Process terminated gracefully", "name", name)
		return true
	case <-time.After(termGrace):
	}

	logger.Info("Force killing process", "name", name)
	signalProcessGroup(cmd, syscall.SIGKILL)
	select {
	case <-exited:
		logger.Info("Process killed", "name", name)
		return true
	case <-time.After(killGrace):
		logger.Warn("Process may still be running", "name", name)
		return false
	}
}
