package proc

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	logger := log.New()
	ctx := context.Background()

	t.Run("captures stdout and stderr separately", func(t *testing.T) {
		res, err := Run(ctx, logger, Command{
			Bin:  "sh",
			Args: []string{"-c", "echo out; echo err >&2"},
		})
		require.NoError(t, err)
		assert.Equal(t, "out\n", res.Stdout)
		assert.Equal(t, "err\n", res.Stderr)
		assert.Equal(t, 0, res.ExitCode)
	})

	t.Run("non-zero exit returns ProcessError", func(t *testing.T) {
		res, err := Run(ctx, logger, Command{
			Bin:  "sh",
			Args: []string{"-c", "echo partial; exit 3"},
		})
		require.Error(t, err)
		var procErr *ProcessError
		require.True(t, errors.As(err, &procErr))
		assert.Equal(t, 3, procErr.ExitCode)
		assert.Equal(t, 3, res.ExitCode)
		assert.Equal(t, "partial\n", res.Stdout)
	})

	t.Run("non-zero exit tolerated", func(t *testing.T) {
		res, err := Run(ctx, logger, Command{
			Bin:           "sh",
			Args:          []string{"-c", "exit 1"},
			TolerateError: true,
		})
		require.NoError(t, err)
		assert.Equal(t, 1, res.ExitCode)
	})

	t.Run("timeout returns TimeoutError", func(t *testing.T) {
		start := time.Now()
		_, err := Run(ctx, logger, Command{
			Bin:     "sleep",
			Args:    []string{"10"},
			Timeout: 200 * time.Millisecond,
		})
		require.Error(t, err)
		var timeoutErr *TimeoutError
		assert.True(t, errors.As(err, &timeoutErr))
		assert.Less(t, time.Since(start), 5*time.Second)
	})

	t.Run("missing binary fails without panicking", func(t *testing.T) {
		res, err := Run(ctx, logger, Command{
			Bin: "/nonexistent/binary",
		})
		require.Error(t, err)
		assert.Equal(t, -1, res.ExitCode)
	})

	t.Run("runs in the given directory", func(t *testing.T) {
		dir := t.TempDir()
		res, err := Run(ctx, logger, Command{
			Bin:  "pwd",
			Dir:  dir,
			Args: nil,
		})
		require.NoError(t, err)
		assert.Contains(t, res.Stdout, dir)
	})

	t.Run("environment is appended", func(t *testing.T) {
		res, err := Run(ctx, logger, Command{
			Bin:  "sh",
			Args: []string{"-c", "echo $PROBE_VAR"},
			Env:  []string{"PROBE_VAR=hello"},
		})
		require.NoError(t, err)
		assert.Equal(t, "hello\n", res.Stdout)
	})
}
