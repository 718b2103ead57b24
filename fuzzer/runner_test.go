package fuzzer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/movefuzz/fuzz-acceptor/proc"
	"github.com/movefuzz/fuzz-acceptor/types"
)

var testEnv = RunEnv{
	RPCURL:         "http://localhost:9000",
	PackageID:      "0xpkg",
	Module:         "shl_demo",
	SharedObjectID: "0xshared",
}

func writeWorker(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "worker.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func newTestRunner(t *testing.T, workerBody string) *Runner {
	t.Helper()
	return NewRunner(Config{
		Binary: writeWorker(t, workerBody),
		Log:    log.New(),
	})
}

func testCase(name string) types.TestCase {
	tc := types.TestCase{
		Name:       name,
		Function:   "test_shl_u8",
		Args:       "255 1",
		Iterations: 100,
	}
	tc.ApplyDefaults()
	return tc
}

func TestRunCleanCompletion(t *testing.T) {
	r := newTestRunner(t, `echo "iteration 100 done"; exit 0`)

	result := r.Run(context.Background(), testCase("clean"), testEnv)
	assert.True(t, result.Completed)
	assert.False(t, result.ViolationFound)
	assert.True(t, result.Passed())
	assert.NoError(t, result.Err)
	assert.Equal(t, "clean", result.Name)
	assert.Equal(t, 100, result.Iterations)
}

func TestRunViolationDetected(t *testing.T) {
	// A violation-triggering path may abort the worker; a non-zero exit
	// paired with the marker still counts as a completed run.
	r := newTestRunner(t, `echo "SHIFT VIOLATION DETECTED at iteration 42"; exit 1`)

	tc := testCase("violation")
	tc.ExpectViolation = true
	result := r.Run(context.Background(), tc, testEnv)
	assert.True(t, result.Completed)
	assert.True(t, result.ViolationFound)
	assert.True(t, result.Passed())
}

func TestRunViolationMarkerCaseInsensitive(t *testing.T) {
	r := newTestRunner(t, `echo "shift violation detected"; exit 0`)

	result := r.Run(context.Background(), testCase("lowercase"), testEnv)
	assert.True(t, result.ViolationFound)
}

func TestRunUnexpectedViolationFails(t *testing.T) {
	r := newTestRunner(t, `echo "SHIFT VIOLATION DETECTED"; exit 0`)

	result := r.Run(context.Background(), testCase("unexpected"), testEnv)
	assert.True(t, result.Completed)
	assert.True(t, result.ViolationFound)
	assert.False(t, result.Passed())
}

func TestRunWorkerCrash(t *testing.T) {
	r := newTestRunner(t, `echo "something broke"; exit 2`)

	result := r.Run(context.Background(), testCase("crash"), testEnv)
	assert.False(t, result.Completed)
	assert.False(t, result.ViolationFound)
	assert.False(t, result.Passed())
	require.Error(t, result.Err)
	assert.Contains(t, result.Err.Error(), "exited with code 2")
}

func TestRunTimeout(t *testing.T) {
	r := newTestRunner(t, `sleep 30`)

	tc := testCase("slow")
	tc.Timeout = time.Second
	start := time.Now()
	result := r.Run(context.Background(), tc, testEnv)

	assert.False(t, result.Completed)
	assert.False(t, result.ViolationFound)
	var timeoutErr *proc.TimeoutError
	assert.True(t, errors.As(result.Err, &timeoutErr))
	// Run must come back within the timeout plus the termination windows.
	assert.Less(t, time.Since(start), 15*time.Second)
}

func TestRunCanceled(t *testing.T) {
	r := newTestRunner(t, `sleep 30`)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(300 * time.Millisecond)
		cancel()
	}()

	result := r.Run(ctx, testCase("canceled"), testEnv)
	assert.False(t, result.Completed)
	assert.ErrorIs(t, result.Err, context.Canceled)
}

func TestRunMissingBinary(t *testing.T) {
	r := NewRunner(Config{Binary: "/nonexistent/worker", Log: log.New()})

	result := r.Run(context.Background(), testCase("missing"), testEnv)
	assert.False(t, result.Completed)
	require.Error(t, result.Err)
}

func TestRunPassesArgsToWorker(t *testing.T) {
	dir := t.TempDir()
	argsFile := filepath.Join(dir, "argv.txt")
	worker := filepath.Join(dir, "worker.sh")
	script := "#!/bin/sh\nprintf '%s\\n' \"$@\" > " + argsFile + "\nexit 0\n"
	require.NoError(t, os.WriteFile(worker, []byte(script), 0o755))

	r := NewRunner(Config{Binary: worker, Log: log.New()})
	tc := testCase("argv")
	result := r.Run(context.Background(), tc, testEnv)
	require.True(t, result.Completed)

	data, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	assert.Equal(t, "sui\n--rpc-url\nhttp://localhost:9000\n--package\n0xpkg\n--module\nshl_demo\n--function\ntest_shl_u8\n--args\n255\n1\n--iterations\n100\n", string(data))
}

func TestBuildWorkerArgs(t *testing.T) {
	r := NewRunner(Config{Binary: "fuzzer", Log: log.New()})

	t.Run("plain args split shell-style", func(t *testing.T) {
		tc := testCase("plain")
		args, err := r.buildWorkerArgs(tc, testEnv)
		require.NoError(t, err)
		assert.Equal(t, []string{
			"sui",
			"--rpc-url", "http://localhost:9000",
			"--package", "0xpkg",
			"--module", "shl_demo",
			"--function", "test_shl_u8",
			"--args", "255", "1",
			"--iterations", "100",
		}, args)
	})

	t.Run("bracketed literal stays one token", func(t *testing.T) {
		tc := testCase("vector")
		tc.Args = "[1,2,3]"
		args, err := r.buildWorkerArgs(tc, testEnv)
		require.NoError(t, err)
		assert.Contains(t, args, "[1,2,3]")
		idx := indexOf(args, "--args")
		require.GreaterOrEqual(t, idx, 0)
		assert.Equal(t, "[1,2,3]", args[idx+1])
		assert.Equal(t, "--iterations", args[idx+2])
	})

	t.Run("shared object function gets the shared object id", func(t *testing.T) {
		tc := testCase("shared")
		tc.Function = SharedObjectFunction
		tc.Args = "ignored"
		args, err := r.buildWorkerArgs(tc, testEnv)
		require.NoError(t, err)
		idx := indexOf(args, "--args")
		require.GreaterOrEqual(t, idx, 0)
		assert.Equal(t, "0xshared", args[idx+1])
		assert.NotContains(t, args, "ignored")
	})

	t.Run("empty args omit the flag", func(t *testing.T) {
		tc := testCase("noargs")
		tc.Args = ""
		args, err := r.buildWorkerArgs(tc, testEnv)
		require.NoError(t, err)
		assert.NotContains(t, args, "--args")
	})

	t.Run("type args are split and appended", func(t *testing.T) {
		tc := testCase("typed")
		tc.TypeArgs = "u8 u64"
		args, err := r.buildWorkerArgs(tc, testEnv)
		require.NoError(t, err)
		idx := indexOf(args, "--type-args")
		require.GreaterOrEqual(t, idx, 0)
		assert.Equal(t, []string{"u8", "u64"}, args[idx+1:idx+3])
	})
}

func indexOf(args []string, want string) int {
	for i, a := range args {
		if a == want {
			return i
		}
	}
	return -1
}
