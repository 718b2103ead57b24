package proc

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
)

const (
	DefaultProbeInterval = time.Second
	dialTimeout          = time.Second
)

// WaitForPort polls until host:port accepts TCP connections, bounded by
// timeout. Each attempt first consults the kernel listener table and then
// falls back to a direct connect; failures of the listing method are
// discounted, only exhausting the timeout makes the probe fail.
func WaitForPort(ctx context.Context, logger log.Logger, host string, port int, timeout, interval time.Duration) bool {
	if interval <= 0 {
		interval = DefaultProbeInterval
	}
	logger.Debug("Checking port", "host", host, "port", port, "timeout", timeout)

	deadline := time.Now().Add(timeout)
	for {
		if listening, err := portListening(port); err != nil {
			// Permission or enumeration errors are not probe failures.
			logger.Debug("Listener table check failed", "port", port, "error", err)
		} else if listening {
			logger.Debug("Port is open (listener table)", "port", port)
			return true
		}

		conn, err := net.DialTimeout("tcp", net.JoinHostPort(host, strconv.Itoa(port)), dialTimeout)
		if err == nil {
			_ = conn.Close()
			logger.Debug("Port is open (connect)", "port", port)
			return true
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			logger.Warn("Port is not open", "port", port, "waited", timeout)
			return false
		}
		wait := interval
		if wait > remaining {
			wait = remaining
		}
		select {
		case <-ctx.Done():
			logger.Debug("Port probe canceled", "port", port)
			return false
		case <-time.After(wait):
		}
	}
}

// portListening reports whether any local TCP socket is in LISTEN state on
// port, by parsing the procfs socket tables.
func portListening(port int) (bool, error) {
	inodes, err := listenerInodes(port)
	if err != nil {
		return false, err
	}
	return len(inodes) > 0, nil
}

const tcpStateListen = "0A"

// listenerInodes returns the socket inodes of LISTEN-state TCP sockets bound
// to port, from /proc/net/tcp and /proc/net/tcp6.
func listenerInodes(port int) ([]string, error) {
	var inodes []string
	var lastErr error
	for _, path := range []string{"/proc/net/tcp", "/proc/net/tcp6"} {
		f, err := os.Open(path)
		if err != nil {
			lastErr = err
			continue
		}
		scanner := bufio.NewScanner(f)
		scanner.Scan() // header
		for scanner.Scan() {
			fields := strings.Fields(scanner.Text())
			// sl local_address rem_address st ... inode
			if len(fields) < 10 || fields[3] != tcpStateListen {
				continue
			}
			local := fields[1]
			idx := strings.LastIndex(local, ":")
			if idx < 0 {
				continue
			}
			p, err := strconv.ParseUint(local[idx+1:], 16, 32)
			if err != nil || int(p) != port {
				continue
			}
			inodes = append(inodes, fields[9])
		}
		_ = f.Close()
	}
	if inodes == nil && lastErr != nil {
		return nil, fmt.Errorf("reading socket tables: %w", lastErr)
	}
	return inodes, nil
}
