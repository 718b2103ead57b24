package reporting

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/movefuzz/fuzz-acceptor/results"
	"github.com/movefuzz/fuzz-acceptor/types"
)

func TestWriteMarkdown(t *testing.T) {
	summary := results.Summarize("run-1", "0xabc123", []types.TestResult{
		{Name: "basic_shl", Completed: true, Duration: 1500 * time.Millisecond},
		{Name: "vector_shl", Completed: false, Duration: 30 * time.Second, Err: errors.New("timed out")},
	}, 35*time.Second)

	path := filepath.Join(t.TempDir(), "report.md")
	require.NoError(t, WriteMarkdown(path, summary))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	report := string(data)

	assert.Contains(t, report, "0xabc123")
	assert.Contains(t, report, "FAILED")
	assert.Contains(t, report, "| basic_shl | ✓ | 1.5s |")
	assert.Contains(t, report, "| vector_shl | ✗ | 30.0s |")
}

func TestWriteMarkdownAllPassed(t *testing.T) {
	summary := results.Summarize("run-2", "0xabc123", []types.TestResult{
		{Name: "basic_shl", Completed: true, Duration: time.Second},
	}, time.Second)

	path := filepath.Join(t.TempDir(), "report.md")
	require.NoError(t, WriteMarkdown(path, summary))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "PASSED")
	assert.NotContains(t, string(data), "FAILED")
}

func TestWriteMarkdownBadPath(t *testing.T) {
	summary := results.Summarize("run-3", "0x", nil, 0)
	err := WriteMarkdown("/nonexistent/dir/report.md", summary)
	require.Error(t, err)
}
