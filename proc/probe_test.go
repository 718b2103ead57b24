package proc

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listenerPort(t *testing.T) (net.Listener, int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })
	return ln, ln.Addr().(*net.TCPAddr).Port
}

func TestWaitForPort(t *testing.T) {
	logger := log.New()

	t.Run("open port reports ready immediately", func(t *testing.T) {
		_, port := listenerPort(t)
		start := time.Now()
		ok := WaitForPort(context.Background(), logger, "localhost", port, 5*time.Second, 100*time.Millisecond)
		assert.True(t, ok)
		assert.Less(t, time.Since(start), 3*time.Second)
	})

	t.Run("closed port fails after timeout", func(t *testing.T) {
		ln, port := listenerPort(t)
		require.NoError(t, ln.Close())

		start := time.Now()
		ok := WaitForPort(context.Background(), logger, "localhost", port, 500*time.Millisecond, 100*time.Millisecond)
		assert.False(t, ok)
		elapsed := time.Since(start)
		assert.GreaterOrEqual(t, elapsed, 400*time.Millisecond)
		assert.Less(t, elapsed, 5*time.Second)
	})

	t.Run("port opening mid-wait is detected", func(t *testing.T) {
		ln, port := listenerPort(t)
		require.NoError(t, ln.Close())

		lateCh := make(chan net.Listener, 1)
		go func() {
			time.Sleep(300 * time.Millisecond)
			late, _ := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
			lateCh <- late
		}()

		ok := WaitForPort(context.Background(), logger, "localhost", port, 10*time.Second, 100*time.Millisecond)
		assert.True(t, ok)
		if late := <-lateCh; late != nil {
			_ = late.Close()
		}
	})

	t.Run("canceled context aborts the wait", func(t *testing.T) {
		ln, port := listenerPort(t)
		require.NoError(t, ln.Close())

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(200 * time.Millisecond)
			cancel()
		}()

		start := time.Now()
		ok := WaitForPort(ctx, logger, "localhost", port, 30*time.Second, 100*time.Millisecond)
		assert.False(t, ok)
		assert.Less(t, time.Since(start), 5*time.Second)
	})
}

func TestPortListening(t *testing.T) {
	_, port := listenerPort(t)

	listening, err := portListening(port)
	require.NoError(t, err)
	assert.True(t, listening)
}
