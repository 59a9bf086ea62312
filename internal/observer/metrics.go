package observer

import (
	"sync"
	"time"

	"github.com/yensi-aiorg/nc-dev-system-sub001/internal/domain"
)

// Metrics aggregates outcomes across the builds a watch session has run.
type Metrics struct {
	TotalCompleted    int
	TotalFailed       int
	TotalTokensInput  int
	TotalTokensOutput int
	AvgDuration       time.Duration
}

// Collector accumulates work item outcomes. Safe for concurrent use.
type Collector struct {
	mu       sync.RWMutex
	outcomes []domain.Outcome
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Record adds an outcome to the running totals.
func (c *Collector) Record(out domain.Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outcomes = append(c.outcomes, out)
}

// Metrics returns the aggregated view of everything recorded so far.
func (c *Collector) Metrics() Metrics {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var m Metrics
	var total time.Duration
	for _, out := range c.outcomes {
		if out.Succeeded {
			m.TotalCompleted++
		} else {
			m.TotalFailed++
		}
		m.TotalTokensInput += out.TokensInput
		m.TotalTokensOutput += out.TokensOutput
		total += out.Duration
	}
	if n := len(c.outcomes); n > 0 {
		m.AvgDuration = total / time.Duration(n)
	}
	return m
}
