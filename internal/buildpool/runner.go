// Package buildpool runs the build phase's independent work items under a
// bounded concurrency cap, with a per-item retry policy around the worker.
package buildpool

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/yensi-aiorg/nc-dev-system-sub001/internal/domain"
	"github.com/yensi-aiorg/nc-dev-system-sub001/internal/worker"
)

// Retry policy defaults; both are configurable, both must stay >= 1.
const (
	DefaultMaxAttempts    = 2
	DefaultAttemptTimeout = 600 * time.Second
)

// ItemStore persists per-item run records for later inspection. The runner
// treats persistence as best-effort and never fails an item over it.
type ItemStore interface {
	InsertItemRun(rec ItemRun) error
	UpdateItemRun(id string, outcome domain.Outcome) error
}

// ItemRun is the persisted record of one work item's execution.
type ItemRun struct {
	ID          string
	RunID       string
	ItemID      string
	FeatureName string
	OrderPath   string
	Status      string
	Attempts    int
	Error       string
	StartedAt   time.Time
	FinishedAt  *time.Time
	TokensIn    int
	TokensOut   int
}

// Runner executes one work item: a work-order artifact write, then up to
// MaxAttempts sequential worker invocations, each bounded by AttemptTimeout.
type Runner struct {
	Worker         worker.Worker
	MaxAttempts    int
	AttemptTimeout time.Duration
	// OrdersDir receives one work-order YAML per item, written exactly once
	// before the first attempt so any item can be inspected or replayed.
	OrdersDir   string
	ProjectRoot string
	RunID       string
	Store       ItemStore

	log zerolog.Logger
}

// NewRunner creates a Runner, clamping the retry policy to valid values.
func NewRunner(w worker.Worker, maxAttempts int, attemptTimeout time.Duration, log zerolog.Logger) *Runner {
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	if attemptTimeout <= 0 {
		attemptTimeout = DefaultAttemptTimeout
	}
	return &Runner{
		Worker:         w,
		MaxAttempts:    maxAttempts,
		AttemptTimeout: attemptTimeout,
		log:            log.With().Str("component", "buildpool").Logger(),
	}
}

// Run executes one item to a final outcome. It never returns an error: a
// failed item is recorded data, not a pool failure.
func (r *Runner) Run(ctx context.Context, item domain.WorkItem) domain.Outcome {
	start := time.Now()

	order := worker.Order{
		OrderID:     uuid.New().String(),
		ItemID:      item.ID,
		FeatureName: item.Feature.Name,
		Prompt:      BuildPrompt(item.Feature),
		ProjectRoot: r.ProjectRoot,
	}

	orderPath, err := r.writeOrder(order)
	if err != nil {
		// Without the work order there is nothing to hand the worker.
		return domain.Outcome{
			ItemID:   item.ID,
			Attempts: 0,
			Error:    fmt.Sprintf("writing work order: %v", err),
			Duration: time.Since(start),
		}
	}

	rec := ItemRun{
		ID:          order.OrderID,
		RunID:       r.RunID,
		ItemID:      item.ID,
		FeatureName: item.Feature.Name,
		OrderPath:   orderPath,
		Status:      "running",
		StartedAt:   start,
	}
	if r.Store != nil {
		if err := r.Store.InsertItemRun(rec); err != nil {
			r.log.Warn().Err(err).Str("item", item.ID).Msg("recording item run failed")
		}
	}

	var lastFailure string
	var lastResult *worker.Result

	attempts := 0
	for attempts < r.MaxAttempts {
		attempts++

		attemptCtx, cancel := context.WithTimeout(ctx, r.AttemptTimeout)
		result, err := r.Worker.Build(attemptCtx, order)
		cancel()

		switch {
		case err != nil:
			lastFailure = err.Error()
		case !result.Success:
			lastFailure = result.Detail
			if lastFailure == "" {
				lastFailure = "worker reported failure"
			}
			lastResult = result
		default:
			outcome := domain.Outcome{
				ItemID:       item.ID,
				Succeeded:    true,
				Attempts:     attempts,
				Duration:     time.Since(start),
				TokensInput:  result.TokensInput,
				TokensOutput: result.TokensOutput,
			}
			r.finish(order.OrderID, outcome)
			return outcome
		}

		if attempts < r.MaxAttempts {
			r.log.Warn().
				Str("item", item.ID).
				Int("attempt", attempts).
				Str("reason", lastFailure).
				Msg("attempt failed, retrying")
		}
	}

	outcome := domain.Outcome{
		ItemID:   item.ID,
		Attempts: attempts,
		Error:    fmt.Sprintf("all %d attempts failed, last: %s", attempts, lastFailure),
		Duration: time.Since(start),
	}
	if lastResult != nil {
		outcome.TokensInput = lastResult.TokensInput
		outcome.TokensOutput = lastResult.TokensOutput
	}
	r.finish(order.OrderID, outcome)
	return outcome
}

// writeOrder persists the work-order artifact. One write per item, before
// the first attempt, regardless of how many attempts follow.
func (r *Runner) writeOrder(order worker.Order) (string, error) {
	if r.OrdersDir == "" {
		return "", nil
	}
	if err := os.MkdirAll(r.OrdersDir, 0o755); err != nil {
		return "", err
	}
	data, err := yaml.Marshal(order)
	if err != nil {
		return "", err
	}
	path := filepath.Join(r.OrdersDir, order.ItemID+".yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func (r *Runner) finish(orderID string, outcome domain.Outcome) {
	if r.Store == nil {
		return
	}
	if err := r.Store.UpdateItemRun(orderID, outcome); err != nil {
		r.log.Warn().Err(err).Str("item", outcome.ItemID).Msg("updating item run failed")
	}
}

// BuildPrompt renders the instruction handed to the coding agent for one
// feature.
func BuildPrompt(f domain.Feature) string {
	prompt := fmt.Sprintf("Implement the feature %q.", f.Name)
	if f.Summary != "" {
		prompt += "\n\nSummary: " + f.Summary
	}
	if f.Description != "" {
		prompt += "\n\nDetails:\n" + f.Description
	}
	prompt += "\n\nWork within the existing project structure and keep the build green."
	return prompt
}
