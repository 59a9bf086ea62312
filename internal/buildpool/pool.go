package buildpool

import (
	"context"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/yensi-aiorg/nc-dev-system-sub001/internal/domain"
)

// DefaultConcurrency is the build cap used when the caller passes a
// non-positive value.
const DefaultConcurrency = 3

// Pool fans work items out to the runner under a fixed concurrency cap.
type Pool struct {
	runner *Runner
	log    zerolog.Logger
}

// NewPool creates a pool around the given runner.
func NewPool(runner *Runner, log zerolog.Logger) *Pool {
	return &Pool{
		runner: runner,
		log:    log.With().Str("component", "buildpool").Logger(),
	}
}

// RunAll executes every item and returns exactly one outcome per input item,
// indexed to match the input order. Items are independent: one item's
// failure never blocks or aborts the others. An empty input returns
// immediately with no work done.
func (p *Pool) RunAll(ctx context.Context, items []domain.WorkItem, maxConcurrency int) []domain.Outcome {
	if len(items) == 0 {
		return nil
	}
	if maxConcurrency < 1 {
		maxConcurrency = DefaultConcurrency
	}

	p.log.Info().Int("items", len(items)).Int("concurrency", maxConcurrency).Msg("starting build pool")

	outcomes := make([]domain.Outcome, len(items))

	var g errgroup.Group
	g.SetLimit(maxConcurrency)
	for i, item := range items {
		g.Go(func() error {
			outcomes[i] = p.runner.Run(ctx, item)
			return nil
		})
	}
	g.Wait() // runner never returns an error; failures live in the outcomes

	return outcomes
}
