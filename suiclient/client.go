// Package suiclient wraps the sui CLI's administrative subcommands and the
// localnet faucet HTTP API. The CLI emits unstructured text, so identifier
// extraction goes through ordered fallback patterns (see patterns.go).
package suiclient

import (
	"context"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"

	"github.com/movefuzz/fuzz-acceptor/proc"
)

// DefaultCommandTimeout bounds each administrative command.
const DefaultCommandTimeout = 30 * time.Second

// PublishGasBudget is the gas budget passed to contract publication.
const PublishGasBudget = "100000000"

// Client runs sui administrative commands against the localnet.
type Client struct {
	bin     string
	dir     string
	timeout time.Duration
	log     log.Logger
}

// New creates a client invoking bin with dir as the default working
// directory.
func New(bin, dir string, logger log.Logger) *Client {
	return &Client{
		bin:     bin,
		dir:     dir,
		timeout: DefaultCommandTimeout,
		log:     logger,
	}
}

func (c *Client) run(ctx context.Context, tolerate bool, dir string, args ...string) (*proc.Result, error) {
	if dir == "" {
		dir = c.dir
	}
	return proc.Run(ctx, c.log, proc.Command{
		Bin:           c.bin,
		Args:          args,
		Dir:           dir,
		Timeout:       c.timeout,
		TolerateError: tolerate,
	})
}

// NewAddress creates a keypair under the given alias. Failure is tolerated:
// an existing alias is an expected steady-state.
func (c *Client) NewAddress(ctx context.Context, alias string) {
	if _, err := c.run(ctx, true, "", "client", "new-address", "ed25519", alias); err != nil {
		c.log.Debug("new-address failed (ignored)", "alias", alias, "error", err)
	}
}

// SwitchAddress makes alias the active address. This must succeed.
func (c *Client) SwitchAddress(ctx context.Context, alias string) error {
	if _, err := c.run(ctx, false, "", "client", "switch", "--address", alias); err != nil {
		return errors.Wrapf(err, "switching to address %q", alias)
	}
	return nil
}

// NewEnv registers an RPC environment under alias. Failure is tolerated.
func (c *Client) NewEnv(ctx context.Context, alias, rpc string) {
	if _, err := c.run(ctx, true, "", "client", "new-env", "--alias", alias, "--rpc", rpc); err != nil {
		c.log.Debug("new-env failed (ignored)", "alias", alias, "error", err)
	}
}

// SwitchEnv makes alias the active environment. This must succeed.
func (c *Client) SwitchEnv(ctx context.Context, alias string) error {
	if _, err := c.run(ctx, false, "", "client", "switch", "--env", alias); err != nil {
		return errors.Wrapf(err, "switching to env %q", alias)
	}
	return nil
}

// ActiveAddress returns the currently active address.
func (c *Client) ActiveAddress(ctx context.Context) (string, error) {
	res, err := c.run(ctx, false, "", "client", "active-address")
	if err != nil {
		return "", errors.Wrap(err, "querying active address")
	}
	address := strings.TrimSpace(res.Stdout)
	if address == "" {
		return "", errors.New("active-address returned empty output")
	}
	c.log.Debug("Active address", "address", address)
	return address, nil
}

// Faucet requests funds via the CLI faucet command.
func (c *Client) Faucet(ctx context.Context) error {
	res, err := c.run(ctx, false, "", "client", "faucet")
	if err != nil {
		return errors.Wrap(err, "faucet command")
	}
	c.log.Debug("Faucet command output", "output", strings.TrimSpace(res.Stdout))
	return nil
}

// HasGas verifies at least one gas object is owned by the active address.
func (c *Client) HasGas(ctx context.Context) (bool, error) {
	res, err := c.run(ctx, false, "", "client", "gas")
	if err != nil {
		return false, errors.Wrap(err, "querying gas objects")
	}
	output := strings.TrimSpace(res.Stdout)
	c.log.Debug("Gas check output", "output", output)
	if output == "" || strings.Contains(output, "No gas coins are owned") {
		return false, nil
	}
	return true, nil
}

// MoveBuild compiles the contract package in contractDir.
func (c *Client) MoveBuild(ctx context.Context, contractDir string) error {
	if _, err := c.run(ctx, false, contractDir, "move", "build"); err != nil {
		return errors.Wrapf(err, "building contract in %s", contractDir)
	}
	return nil
}

// Publish deploys the contract package and returns the raw publish output
// for identifier extraction.
func (c *Client) Publish(ctx context.Context, contractDir string) (string, error) {
	res, err := c.run(ctx, false, contractDir, "client", "publish", "--gas-budget", PublishGasBudget)
	if err != nil {
		return "", errors.Wrapf(err, "publishing contract in %s", contractDir)
	}
	return res.Stdout, nil
}

// Call invokes a contract function and returns the raw output.
func (c *Client) Call(ctx context.Context, packageID, module, function string, args ...string) (string, error) {
	cmdArgs := []string{
		"client", "call",
		"--package", packageID,
		"--module", module,
		"--function", function,
	}
	if len(args) > 0 {
		cmdArgs = append(cmdArgs, "--args")
		cmdArgs = append(cmdArgs, args...)
	}
	res, err := c.run(ctx, false, "", cmdArgs...)
	if err != nil {
		return "", errors.Wrapf(err, "calling %s::%s", module, function)
	}
	return res.Stdout, nil
}
