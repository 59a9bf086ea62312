// Package checks defines the verification collaborator contract and a
// command-driven built-in implementation.
package checks

import "context"

// TestReport is the result of one test-run pass.
type TestReport struct {
	UnitPassed bool   `json:"unit_passed"`
	E2EPassed  bool   `json:"e2e_passed"`
	Details    string `json:"details,omitempty"`
}

// Passed reports whether every test category is green.
func (r TestReport) Passed() bool {
	return r.UnitPassed && r.E2EPassed
}

// VisualReport is the result of one visual-check pass.
type VisualReport struct {
	Passed  bool   `json:"passed"`
	Details string `json:"details,omitempty"`
}

// Verifier runs the verify phase's checks. A failing check is reported
// data, never an error; errors are reserved for the verifier itself
// breaking (a command that cannot be started, a crashed harness).
type Verifier interface {
	RunTests(ctx context.Context) (TestReport, error)
	RunVisualChecks(ctx context.Context) (VisualReport, error)
	// AutoFix attempts to repair the failures described in details.
	// Best-effort: implementations without fix capability return nil.
	AutoFix(ctx context.Context, details string) error
}
