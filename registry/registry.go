// Package registry loads the declarative test case configuration.
package registry

import (
	"fmt"
	"os"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/log"

	"github.com/movefuzz/fuzz-acceptor/types"
)

// Registry manages the configured fuzz cases.
type Registry struct {
	config Config
	cases  []types.TestCase
	mu     sync.RWMutex
}

// Config contains registry configuration
type Config struct {
	Log            log.Logger
	CaseConfigFile string
}

// caseFile mirrors the on-disk TOML layout.
type caseFile struct {
	TestCases []types.TestCase `toml:"test_cases"`
}

// NewRegistry creates a registry and loads the case file. Declaration order
// is preserved: results and reports follow it.
func NewRegistry(cfg Config) (*Registry, error) {
	if cfg.CaseConfigFile == "" {
		return nil, fmt.Errorf("case config file is required")
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}

	r := &Registry{config: cfg}
	if err := r.loadCases(cfg.CaseConfigFile); err != nil {
		return nil, fmt.Errorf("failed to load case config: %w", err)
	}

	cfg.Log.Debug("Registry loaded", "len(cases)", len(r.cases))
	return r, nil
}

func (r *Registry) loadCases(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading case file: %w", err)
	}

	var cf caseFile
	if err := toml.Unmarshal(data, &cf); err != nil {
		return fmt.Errorf("parsing case file: %w", err)
	}
	if len(cf.TestCases) == 0 {
		return fmt.Errorf("no test cases defined in %s", path)
	}

	seen := make(map[string]struct{}, len(cf.TestCases))
	for i := range cf.TestCases {
		tc := &cf.TestCases[i]
		if tc.Name == "" {
			return fmt.Errorf("test case %d has no name", i)
		}
		if tc.Function == "" {
			return fmt.Errorf("test case %q has no function", tc.Name)
		}
		if _, dup := seen[tc.Name]; dup {
			return fmt.Errorf("duplicate test case name %q", tc.Name)
		}
		seen[tc.Name] = struct{}{}
		tc.ApplyDefaults()
	}

	r.cases = cf.TestCases
	return nil
}

// GetCases returns the configured cases in declaration order.
func (r *Registry) GetCases() []types.TestCase {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cases
}

// GetConfig returns the registry configuration
func (r *Registry) GetConfig() Config {
	return r.config
}
