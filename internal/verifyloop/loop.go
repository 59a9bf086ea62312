// Package verifyloop repeats a check-then-fix cycle until the project's
// tests and visual checks all pass or the iteration budget runs out.
package verifyloop

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/yensi-aiorg/nc-dev-system-sub001/internal/checks"
)

// State names one position in the verification state machine.
type State string

const (
	StateChecking  State = "checking"
	StateFixing    State = "fixing"
	StatePassed    State = "passed"
	StateExhausted State = "exhausted"
)

// DefaultMaxIterations is the fix-iteration budget when none is configured.
const DefaultMaxIterations = 3

// Report is the terminal result of one loop run. Iterations counts check
// rounds actually performed, so "passed on iteration 1" and "passed on
// iteration 3" are distinguishable, as is "still failing after M+1 rounds".
type Report struct {
	State      State               `json:"state"`
	Iterations int                 `json:"iterations"`
	Tests      checks.TestReport   `json:"tests"`
	Visual     checks.VisualReport `json:"visual"`
}

// Passed reports whether the loop ended green.
func (r *Report) Passed() bool {
	return r.State == StatePassed
}

// Loop drives the CHECKING -> FIXING cycle. Check failures are expected,
// recorded data; only the verifier itself crashing returns an error.
type Loop struct {
	Verifier      checks.Verifier
	MaxIterations int

	log zerolog.Logger
}

// New creates a loop with the given fix-iteration budget (values < 1 fall
// back to the default).
func New(v checks.Verifier, maxIterations int, log zerolog.Logger) *Loop {
	if maxIterations < 1 {
		maxIterations = DefaultMaxIterations
	}
	return &Loop{
		Verifier:      v,
		MaxIterations: maxIterations,
		log:           log.With().Str("component", "verifyloop").Logger(),
	}
}

// Run executes the state machine: at most MaxIterations+1 check rounds with
// a fix pass between consecutive rounds.
func (l *Loop) Run(ctx context.Context) (*Report, error) {
	iteration := 1
	state := StateChecking

	var tests checks.TestReport
	var visual checks.VisualReport

	for {
		switch state {
		case StateChecking:
			// Both checks run independently; both must complete before the
			// round is evaluated.
			g, checkCtx := errgroup.WithContext(ctx)
			g.Go(func() error {
				var err error
				tests, err = l.Verifier.RunTests(checkCtx)
				return err
			})
			g.Go(func() error {
				var err error
				visual, err = l.Verifier.RunVisualChecks(checkCtx)
				return err
			})
			if err := g.Wait(); err != nil {
				return nil, err
			}

			switch {
			case tests.Passed() && visual.Passed:
				state = StatePassed
			case iteration > l.MaxIterations:
				state = StateExhausted
			default:
				state = StateFixing
			}

		case StateFixing:
			details := failureDetails(tests, visual)
			l.log.Info().Int("iteration", iteration).Msg("checks failed, attempting auto-fix")
			if err := l.Verifier.AutoFix(ctx, details); err != nil {
				// Auto-fix is best-effort; a broken fixer should not end the loop.
				l.log.Warn().Err(err).Msg("auto-fix failed")
			}
			iteration++
			state = StateChecking

		case StatePassed, StateExhausted:
			report := &Report{
				State:      state,
				Iterations: iteration,
				Tests:      tests,
				Visual:     visual,
			}
			l.log.Info().Str("state", string(state)).Int("iterations", iteration).Msg("verification finished")
			return report, nil
		}
	}
}

func failureDetails(tests checks.TestReport, visual checks.VisualReport) string {
	var parts []string
	if !tests.Passed() {
		parts = append(parts, "tests: "+tests.Details)
	}
	if !visual.Passed {
		parts = append(parts, "visual: "+visual.Details)
	}
	return strings.Join(parts, "\n")
}
