package harness

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const e2eCaseFile = `
[[test_cases]]
name = "alpha_shl"
function = "test_shl_u8"
args = "255 1"
iterations = 10
timeout = 10

[[test_cases]]
name = "beta_vector"
function = "vector_shl"
args = "[1,2,3] 2"
iterations = 10
timeout = 10

[[test_cases]]
name = "gamma_shared"
function = "mutable_shared_struct_shl"
iterations = 10
timeout = 10
`

// e2eSuiStub keeps a long-lived process alive for "start" and answers the
// administrative subcommands with realistic output.
const e2eSuiStub = `#!/bin/sh
if [ "$1" = "start" ]; then
  exec sleep 60
fi
case "$1 $2" in
  "client active-address") echo "0xc0ffee" ;;
  "client gas") echo "gasCoinId: 0xabc balance: 10000" ;;
  "client publish") echo "PackageID: 0xABCDEF" ;;
  "client call")
    echo "Created Objects:"
    echo "ObjectID: 0x6789fedc"
    ;;
  *) echo ok ;;
esac
exit 0
`

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

// Full pass over the pipeline: service process starts and both configured
// ports become reachable, the package ID is extracted from publish output,
// and all three cases land in the report in declaration order.
func TestRunEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping end-to-end run in short mode")
	}

	dir := t.TempDir()
	caseFile := filepath.Join(dir, "test_cases.toml")
	require.NoError(t, os.WriteFile(caseFile, []byte(e2eCaseFile), 0o644))
	worker := writeExecutable(t, dir, "worker.sh", "#!/bin/sh\necho \"iteration done\"\nexit 0\n")

	rpcPort := freePort(t)
	faucetPort := freePort(t)

	cfg := &Config{
		TestCases:      caseFile,
		WorkDir:        dir,
		SuiBinary:      writeExecutable(t, dir, "sui", e2eSuiStub),
		FuzzerBinary:   worker,
		ContractDir:    dir,
		SkipBuild:      true,
		BuildTimeout:   time.Minute,
		StartupTimeout: 10 * time.Second,
		RPCPort:        rpcPort,
		FaucetPort:     faucetPort,
		ReportFile:     filepath.Join(dir, "report.md"),
		Log:            log.New(),
	}
	h, err := New(context.Background(), cfg, "test")
	require.NoError(t, err)

	// The stub node binds nothing itself; listeners opened during the
	// port-release pause stand in for its endpoints. They must not exist
	// before the pipeline's initial port sweep runs.
	listeners := make(chan []net.Listener, 1)
	go func() {
		time.Sleep(time.Second)
		var lns []net.Listener
		for _, port := range []int{rpcPort, faucetPort} {
			if ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port)); err == nil {
				lns = append(lns, ln)
			}
		}
		listeners <- lns
	}()

	summary, err := h.run(context.Background())

	for _, ln := range <-listeners {
		_ = ln.Close()
	}
	h.Cleanup()

	require.NoError(t, err)
	require.NotNil(t, summary)
	assert.True(t, summary.AllPassed)
	assert.Equal(t, "0xABCDEF", summary.PackageID)

	require.Len(t, summary.Results, 3)
	assert.Equal(t, "alpha_shl", summary.Results[0].Name)
	assert.Equal(t, "beta_vector", summary.Results[1].Name)
	assert.Equal(t, "gamma_shared", summary.Results[2].Name)
	for i := range summary.Results {
		assert.True(t, summary.Results[i].Passed())
	}

	data, err := os.ReadFile(cfg.ReportFile)
	require.NoError(t, err)
	report := string(data)
	assert.Contains(t, report, "0xABCDEF")
	assert.Contains(t, report, "PASSED")

	alpha := strings.Index(report, "| alpha_shl |")
	beta := strings.Index(report, "| beta_vector |")
	gamma := strings.Index(report, "| gamma_shared |")
	require.GreaterOrEqual(t, alpha, 0)
	require.GreaterOrEqual(t, beta, 0)
	require.GreaterOrEqual(t, gamma, 0)
	assert.Less(t, alpha, beta)
	assert.Less(t, beta, gamma)
}
