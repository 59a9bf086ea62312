package statestore

import "time"

// PhaseState is the persisted checkpoint for one pipeline run. It is owned
// and mutated exclusively by the orchestrator; the pool and verification
// loop hand results back by return value.
type PhaseState struct {
	StartedAt       *time.Time     `json:"started_at,omitempty"`
	FinishedAt      *time.Time     `json:"finished_at,omitempty"`
	UpdatedAt       *time.Time     `json:"updated_at,omitempty"`
	ElapsedSeconds  float64        `json:"elapsed_secs,omitempty"`
	PhasesCompleted []int          `json:"phases_completed"`
	PhasesFailed    []int          `json:"phases_failed"`
	Success         bool           `json:"success"`
	Results         map[int]any    `json:"results"`
	Errors          map[int]string `json:"errors"`
}

// NewPhaseState returns a fresh state with empty sequences and success=false.
func NewPhaseState() *PhaseState {
	return &PhaseState{
		PhasesCompleted: []int{},
		PhasesFailed:    []int{},
		Results:         make(map[int]any),
		Errors:          make(map[int]string),
	}
}

// Merge folds a prior run's persisted state into s. Prior values win over
// freshly-initialized defaults, but the current run's StartedAt is kept so a
// resumed run reports its own start time.
func (s *PhaseState) Merge(prior *PhaseState) {
	if prior == nil {
		return
	}
	if len(prior.PhasesCompleted) > 0 {
		s.PhasesCompleted = append([]int{}, prior.PhasesCompleted...)
	}
	if len(prior.PhasesFailed) > 0 {
		s.PhasesFailed = append([]int{}, prior.PhasesFailed...)
	}
	for phase, result := range prior.Results {
		s.Results[phase] = result
	}
	for phase, msg := range prior.Errors {
		s.Errors[phase] = msg
	}
	if prior.FinishedAt != nil {
		s.FinishedAt = prior.FinishedAt
	}
	s.Success = prior.Success
}

// Completed reports whether the phase number is recorded as completed.
func (s *PhaseState) Completed(phase int) bool {
	for _, n := range s.PhasesCompleted {
		if n == phase {
			return true
		}
	}
	return false
}

// Failed reports whether the phase number is recorded as failed.
func (s *PhaseState) Failed(phase int) bool {
	for _, n := range s.PhasesFailed {
		if n == phase {
			return true
		}
	}
	return false
}

// RecordCompleted marks a phase as completed, clearing any failure recorded
// for it by an earlier run. A phase number lives in at most one of the two
// sequences.
func (s *PhaseState) RecordCompleted(phase int, result any) {
	s.PhasesFailed = remove(s.PhasesFailed, phase)
	delete(s.Errors, phase)
	if !s.Completed(phase) {
		s.PhasesCompleted = append(s.PhasesCompleted, phase)
	}
	if result != nil {
		s.Results[phase] = result
	}
	s.touch()
}

// RecordFailed marks a phase as failed with the given error text.
func (s *PhaseState) RecordFailed(phase int, msg string) {
	s.PhasesCompleted = remove(s.PhasesCompleted, phase)
	delete(s.Results, phase)
	if !s.Failed(phase) {
		s.PhasesFailed = append(s.PhasesFailed, phase)
	}
	s.Errors[phase] = msg
	s.touch()
}

func (s *PhaseState) touch() {
	now := time.Now()
	s.UpdatedAt = &now
}

func remove(nums []int, n int) []int {
	out := nums[:0]
	for _, v := range nums {
		if v != n {
			out = append(out, v)
		}
	}
	return out
}
