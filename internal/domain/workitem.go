package domain

import "time"

// Feature is one unit of buildable functionality extracted from the
// requirements document during the understand phase.
type Feature struct {
	Name        string `json:"name" yaml:"name"`
	Summary     string `json:"summary" yaml:"summary"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// WorkItem is one independent unit of work submitted to the build pool.
// The input half is immutable; the outcome is set exactly once by the
// runner that owns the item.
type WorkItem struct {
	ID      string
	Feature Feature
}

// Outcome records the final result of one work item. Attempts counts every
// worker invocation made for the item, including the one that succeeded.
type Outcome struct {
	ItemID       string        `json:"item_id"`
	Succeeded    bool          `json:"succeeded"`
	Attempts     int           `json:"attempts"`
	Error        string        `json:"error,omitempty"`
	Duration     time.Duration `json:"duration_ns"`
	TokensInput  int           `json:"tokens_input,omitempty"`
	TokensOutput int           `json:"tokens_output,omitempty"`
}
