package proc

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/ethereum/go-ethereum/log"
)

// KillPort force-kills any process holding a TCP listener on port. Used by
// the cleanup path to release the well-known localnet ports; enumeration and
// permission errors are tolerated, a stale listener the harness cannot kill
// is a logged anomaly rather than a failure.
func KillPort(logger log.Logger, port int) {
	inodes, err := listenerInodes(port)
	if err != nil {
		logger.Debug("Cannot enumerate listeners", "port", port, "error", err)
		return
	}
	if len(inodes) == 0 {
		return
	}

	inodeSet := make(map[string]struct{}, len(inodes))
	for _, inode := range inodes {
		inodeSet[fmt.Sprintf("socket:[%s]", inode)] = struct{}{}
	}

	for _, pid := range pidsHoldingSockets(inodeSet) {
		logger.Info("Killing process on port", "pid", pid, "port", port)
		if err := syscall.Kill(pid, syscall.SIGKILL); err != nil {
			logger.Debug("Kill failed", "pid", pid, "error", err)
		}
	}
}

// pidsHoldingSockets scans /proc/<pid>/fd for descriptors pointing at the
// given socket inodes. Processes we cannot inspect are skipped.
func pidsHoldingSockets(inodeSet map[string]struct{}) []int {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return nil
	}

	var pids []int
	for _, entry := range entries {
		pid, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}
		fdDir := filepath.Join("/proc", entry.Name(), "fd")
		fds, err := os.ReadDir(fdDir)
		if err != nil {
			continue
		}
		for _, fd := range fds {
			target, err := os.Readlink(filepath.Join(fdDir, fd.Name()))
			if err != nil {
				continue
			}
			if _, ok := inodeSet[target]; ok {
				pids = append(pids, pid)
				break
			}
		}
	}
	return pids
}
