// Package exitcodes defines the standard exit codes used by fuzz-acceptor.
package exitcodes

// Exit code constants used by the harness:
//
// * Success (0): every configured fuzz case passed
// * TestFailure (1): one or more fuzz cases failed their expectation
// * RuntimeErr (2): setup or runtime errors (localnet startup, provisioning,
//   deployment, panics)
const (
	Success     = 0
	TestFailure = 1
	RuntimeErr  = 2
)
