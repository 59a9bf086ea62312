// Package worker invokes an external coding agent to populate one feature of
// the generated project. Implementations cover a local subprocess agent and a
// remote build agent reached over WebSocket.
package worker

import "context"

// Order is the payload handed to a worker for one build attempt. The same
// order is written to disk as a work-order artifact before the first attempt
// so a human can inspect or replay it.
type Order struct {
	OrderID     string `json:"order_id" yaml:"order_id"`
	ItemID      string `json:"item_id" yaml:"item_id"`
	FeatureName string `json:"feature_name" yaml:"feature_name"`
	Prompt      string `json:"prompt" yaml:"prompt"`
	ProjectRoot string `json:"project_root" yaml:"project_root"`
}

// Result is the outcome of a single worker invocation.
type Result struct {
	Success      bool
	Detail       string
	TokensInput  int
	TokensOutput int
	CostUSD      float64
}

// Worker builds one feature. A non-nil error means the attempt itself could
// not be carried out; Success=false with a nil error means the agent ran and
// reported failure. Both count as failed attempts for the retry policy.
type Worker interface {
	Build(ctx context.Context, order Order) (*Result, error)
}

// Preparer is implemented by workers that need a slow one-time setup step,
// such as pulling a large model artifact. Pre-flight calls it with a long
// timeout; failures are warnings, not fatal.
type Preparer interface {
	Prepare(ctx context.Context) error
}
