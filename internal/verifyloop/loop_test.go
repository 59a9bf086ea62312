package verifyloop

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/yensi-aiorg/nc-dev-system-sub001/internal/checks"
)

// scriptedVerifier fails the first failUntil check rounds, then passes.
type scriptedVerifier struct {
	mu        sync.Mutex
	failUntil int
	round     int
	fixes     int
	fixErr    error
	testErr   error
}

func (v *scriptedVerifier) RunTests(ctx context.Context) (checks.TestReport, error) {
	if v.testErr != nil {
		return checks.TestReport{}, v.testErr
	}
	v.mu.Lock()
	v.round++
	pass := v.round > v.failUntil
	v.mu.Unlock()
	return checks.TestReport{UnitPassed: pass, E2EPassed: pass, Details: "assertion failed in auth_test"}, nil
}

func (v *scriptedVerifier) RunVisualChecks(ctx context.Context) (checks.VisualReport, error) {
	return checks.VisualReport{Passed: true}, nil
}

func (v *scriptedVerifier) AutoFix(ctx context.Context, details string) error {
	v.mu.Lock()
	v.fixes++
	v.mu.Unlock()
	return v.fixErr
}

func (v *scriptedVerifier) fixCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.fixes
}

func TestLoop_PassesImmediately(t *testing.T) {
	v := &scriptedVerifier{failUntil: 0}
	loop := New(v, 3, zerolog.Nop())

	report, err := loop.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.State != StatePassed {
		t.Errorf("State = %s, want %s", report.State, StatePassed)
	}
	if report.Iterations != 1 {
		t.Errorf("Iterations = %d, want 1", report.Iterations)
	}
	if v.fixCount() != 0 {
		t.Errorf("AutoFix ran %d times, want 0", v.fixCount())
	}
}

func TestLoop_FixesThenPasses(t *testing.T) {
	v := &scriptedVerifier{failUntil: 2}
	loop := New(v, 3, zerolog.Nop())

	report, err := loop.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.State != StatePassed {
		t.Errorf("State = %s, want %s", report.State, StatePassed)
	}
	if report.Iterations != 3 {
		t.Errorf("Iterations = %d, want 3", report.Iterations)
	}
	if v.fixCount() != 2 {
		t.Errorf("AutoFix ran %d times, want 2", v.fixCount())
	}
}

func TestLoop_Exhausts(t *testing.T) {
	v := &scriptedVerifier{failUntil: 100}
	loop := New(v, 3, zerolog.Nop())

	report, err := loop.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.State != StateExhausted {
		t.Errorf("State = %s, want %s", report.State, StateExhausted)
	}
	// Budget of 3 fix iterations means at most 4 check rounds.
	if v.round != 4 {
		t.Errorf("Check rounds = %d, want 4", v.round)
	}
	if v.fixCount() != 3 {
		t.Errorf("AutoFix ran %d times, want 3", v.fixCount())
	}
	if report.Passed() {
		t.Error("Exhausted report must not claim a pass")
	}
}

func TestLoop_PassOnLastRound(t *testing.T) {
	// Failing all budgeted rounds but passing the final one is still a pass.
	v := &scriptedVerifier{failUntil: 3}
	loop := New(v, 3, zerolog.Nop())

	report, err := loop.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.State != StatePassed {
		t.Errorf("State = %s, want %s", report.State, StatePassed)
	}
	if report.Iterations != 4 {
		t.Errorf("Iterations = %d, want 4", report.Iterations)
	}
}

func TestLoop_BrokenFixerDoesNotAbort(t *testing.T) {
	v := &scriptedVerifier{failUntil: 1, fixErr: errors.New("fixer crashed")}
	loop := New(v, 3, zerolog.Nop())

	report, err := loop.Run(context.Background())
	if err != nil {
		t.Fatalf("A failing AutoFix must not end the loop: %v", err)
	}
	if report.State != StatePassed {
		t.Errorf("State = %s, want %s", report.State, StatePassed)
	}
}

func TestLoop_VerifierErrorPropagates(t *testing.T) {
	v := &scriptedVerifier{testErr: errors.New("harness could not start")}
	loop := New(v, 3, zerolog.Nop())

	if _, err := loop.Run(context.Background()); err == nil {
		t.Fatal("A broken verifier must surface as an error")
	}
}

func TestLoop_DefaultsIterationBudget(t *testing.T) {
	loop := New(&scriptedVerifier{}, 0, zerolog.Nop())
	if loop.MaxIterations != DefaultMaxIterations {
		t.Errorf("MaxIterations = %d, want default %d", loop.MaxIterations, DefaultMaxIterations)
	}
}
