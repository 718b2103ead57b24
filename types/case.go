package types

import "time"

// Default values applied to test cases that omit the optional fields.
const (
	DefaultIterations  = 100000
	DefaultCaseTimeout = 30 * time.Second
)

// TestCase describes a single fuzzer invocation against the deployed contract.
// Cases are loaded once from the case configuration file and never mutated;
// Name is the identity used in results and reports.
type TestCase struct {
	Name            string `toml:"name"`
	Function        string `toml:"function"`
	Args            string `toml:"args"`
	TypeArgs        string `toml:"type_args"`
	Iterations      int    `toml:"iterations"`
	TimeoutSeconds  int    `toml:"timeout"`
	ExpectViolation bool   `toml:"expected_violations"`

	// Timeout is derived from TimeoutSeconds by ApplyDefaults.
	Timeout time.Duration `toml:"-"`
}

// ApplyDefaults fills in the iteration count and timeout for fields the case
// file left unset and converts the configured timeout into a duration.
func (tc *TestCase) ApplyDefaults() {
	if tc.Iterations <= 0 {
		tc.Iterations = DefaultIterations
	}
	if tc.TimeoutSeconds > 0 {
		tc.Timeout = time.Duration(tc.TimeoutSeconds) * time.Second
	}
	if tc.Timeout <= 0 {
		tc.Timeout = DefaultCaseTimeout
	}
}
