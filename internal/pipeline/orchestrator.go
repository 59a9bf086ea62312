package pipeline

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/yensi-aiorg/nc-dev-system-sub001/internal/buildpool"
	"github.com/yensi-aiorg/nc-dev-system-sub001/internal/checks"
	"github.com/yensi-aiorg/nc-dev-system-sub001/internal/domain"
	"github.com/yensi-aiorg/nc-dev-system-sub001/internal/notify"
	"github.com/yensi-aiorg/nc-dev-system-sub001/internal/planner"
	"github.com/yensi-aiorg/nc-dev-system-sub001/internal/scaffold"
	"github.com/yensi-aiorg/nc-dev-system-sub001/internal/statestore"
	"github.com/yensi-aiorg/nc-dev-system-sub001/internal/verifyloop"
	"github.com/yensi-aiorg/nc-dev-system-sub001/internal/worker"
)

// workDirName holds the run's checkpoint, plan and work orders inside the
// output directory.
const workDirName = ".forge"

// Options configures a pipeline run.
type Options struct {
	RequirementsPath string
	OutputDir        string
	ProjectName      string // overrides the name derived from requirements

	MaxConcurrency   int
	MaxAttempts      int
	AttemptTimeout   time.Duration
	ModelPullTimeout time.Duration
	MaxFixIterations int

	// TestCommand and VisualCommand back up the plan's test plan when the
	// understand phase produced no commands of its own.
	TestCommand   string
	VisualCommand string
	FixCommand    string

	// ItemStore receives per-item run records for the status command.
	// Nil disables recording.
	ItemStore buildpool.ItemStore
}

// Collaborators are the pluggable phase implementations. Nil fields fall
// back to the built-in ones, except Worker, which has no meaningful default
// and causes the build phase to fail with a recoverable error.
type Collaborators struct {
	Planner    planner.Planner
	Scaffolder scaffold.Scaffolder
	Worker     worker.Worker
	Verifier   checks.Verifier
	Hardener   Hardener
	Deliverer  Deliverer
	Notifier   notify.Notifier
}

type phaseHandler func(ctx context.Context) (any, error)

// Orchestrator drives the six-phase pipeline: each requested phase runs in
// ascending order, the checkpoint is persisted after every phase attempt,
// and the first failing phase stops the run.
type Orchestrator struct {
	opts     Options
	collab   Collaborators
	reporter Reporter
	log      zerolog.Logger

	runID    string
	workDir  string
	store    *statestore.Store
	state    *statestore.PhaseState
	handlers map[domain.Phase]phaseHandler
}

// New builds an orchestrator. Zero option values take the package defaults.
func New(opts Options, collab Collaborators, reporter Reporter, log zerolog.Logger) *Orchestrator {
	if opts.MaxConcurrency < 1 {
		opts.MaxConcurrency = buildpool.DefaultConcurrency
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = buildpool.DefaultMaxAttempts
	}
	if opts.AttemptTimeout <= 0 {
		opts.AttemptTimeout = buildpool.DefaultAttemptTimeout
	}
	if opts.ModelPullTimeout <= 0 {
		opts.ModelPullTimeout = 1800 * time.Second
	}
	if opts.MaxFixIterations < 1 {
		opts.MaxFixIterations = verifyloop.DefaultMaxIterations
	}
	if collab.Planner == nil {
		collab.Planner = &planner.HeadingPlanner{NameOverride: opts.ProjectName}
	}
	if collab.Scaffolder == nil {
		collab.Scaffolder = scaffold.DirScaffolder{}
	}
	if collab.Hardener == nil {
		collab.Hardener = checklistHardener{}
	}
	if collab.Deliverer == nil {
		collab.Deliverer = reportDeliverer{}
	}
	if collab.Notifier == nil {
		collab.Notifier = notify.NoopNotifier{}
	}
	if reporter == nil {
		reporter = &ConsoleReporter{Out: os.Stdout}
	}

	o := &Orchestrator{
		opts:     opts,
		collab:   collab,
		reporter: reporter,
		log:      log,
		runID:    uuid.New().String()[:8],
		workDir:  filepath.Join(opts.OutputDir, workDirName),
	}
	o.handlers = map[domain.Phase]phaseHandler{
		domain.PhaseUnderstand: o.runUnderstand,
		domain.PhaseScaffold:   o.runScaffold,
		domain.PhaseBuild:      o.runBuild,
		domain.PhaseVerify:     o.runVerify,
		domain.PhaseHarden:     o.runHarden,
		domain.PhaseDeliver:    o.runDeliver,
	}
	return o
}

// RunID identifies this run in logs, the item store and notifications.
func (o *Orchestrator) RunID() string {
	return o.runID
}

// Run executes the requested phase numbers in ascending order and returns
// the final state. Unknown numbers are skipped with a log line. The only
// error Run itself returns is a failure to create the output directories;
// everything that goes wrong inside a phase is recorded in the state.
func (o *Orchestrator) Run(ctx context.Context, requested []int) (*statestore.PhaseState, error) {
	if err := os.MkdirAll(o.workDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating work directory: %w", err)
	}
	o.store = statestore.New(o.workDir, o.log)

	o.state = statestore.NewPhaseState()
	now := time.Now()
	o.state.StartedAt = &now

	prior, err := o.store.Load()
	if err != nil {
		o.log.Warn().Err(err).Msg("could not read prior state, starting fresh")
	}
	o.state.Merge(prior)
	if prior != nil {
		o.log.Info().Ints("completed", prior.PhasesCompleted).Msg("resuming from checkpoint")
	}
	// A resumed run gets a fresh verdict.
	o.state.FinishedAt = nil
	o.state.ElapsedSeconds = 0

	phases := normalize(requested)
	o.reporter.RunStarted(o.runID, phases)
	o.preflight(ctx)

	for _, n := range phases {
		phase := domain.Phase(n)
		if !phase.Valid() {
			o.log.Warn().Int("phase", n).Msg("unknown phase number, skipping")
			o.reporter.PhaseSkipped(n)
			continue
		}
		if err := o.runOne(ctx, phase); err != nil {
			break
		}
	}

	return o.finish(now), nil
}

// runOne executes a single phase and persists the checkpoint regardless of
// outcome. A returned error means the run must stop.
func (o *Orchestrator) runOne(ctx context.Context, phase domain.Phase) error {
	o.reporter.PhaseStarted(phase)
	o.log.Info().Stringer("phase", phase).Msg("phase started")
	start := time.Now()

	payload, err := o.handlers[phase](ctx)
	if err != nil {
		o.state.RecordFailed(int(phase), failureText(err))
		if payload != nil {
			o.state.Results[int(phase)] = payload
		}
		o.persist()
		o.reporter.PhaseFailed(phase, err)
		o.log.Error().Err(err).Stringer("phase", phase).Msg("phase failed")
		return err
	}

	o.state.RecordCompleted(int(phase), payload)
	o.persist()
	elapsed := time.Since(start)
	o.reporter.PhaseCompleted(phase, elapsed)
	o.log.Info().Stringer("phase", phase).Dur("elapsed", elapsed).Msg("phase completed")
	return nil
}

func (o *Orchestrator) finish(started time.Time) *statestore.PhaseState {
	now := time.Now()
	o.state.FinishedAt = &now
	o.state.ElapsedSeconds = now.Sub(started).Seconds()
	o.state.Success = len(o.state.PhasesFailed) == 0
	o.persist()
	o.reporter.RunFinished(o.state)
	o.sendSummary()
	return o.state
}

func (o *Orchestrator) persist() {
	if err := o.store.Save(o.state); err != nil {
		o.log.Error().Err(err).Msg("persisting checkpoint failed")
	}
}

// preflight probes the environment before the first phase. Nothing here is
// fatal: problems are surfaced and the run proceeds.
func (o *Orchestrator) preflight(ctx context.Context) {
	if prep, ok := o.collab.Worker.(worker.Preparer); ok {
		pctx, cancel := context.WithTimeout(ctx, o.opts.ModelPullTimeout)
		defer cancel()
		if err := prep.Prepare(pctx); err != nil {
			o.log.Warn().Err(err).Msg("worker preparation failed, builds may be slow or fail")
		}
	}
	if plan, err := o.loadPlan(); err == nil {
		for _, port := range plan.Architecture.Ports {
			ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
			if err != nil {
				o.log.Warn().Int("port", port).Msg("port already in use, generated services may conflict")
				continue
			}
			ln.Close()
		}
	}
}

func (o *Orchestrator) sendSummary() {
	kind := notify.NotifySuccess
	msg := fmt.Sprintf("completed %d phase(s)", len(o.state.PhasesCompleted))
	if !o.state.Success {
		kind = notify.NotifyError
		msg = fmt.Sprintf("failed at phase(s) %v", o.state.PhasesFailed)
	}
	err := o.collab.Notifier.Send(notify.Notification{
		Title:   "Forge run finished",
		Message: msg,
		Type:    kind,
		RunID:   o.runID,
	})
	if err != nil {
		o.log.Warn().Err(err).Msg("notification failed")
	}
}

// normalize sorts the requested phase numbers ascending and drops
// duplicates. Unknown numbers are kept so the run loop can log the skip.
func normalize(requested []int) []int {
	seen := make(map[int]bool, len(requested))
	out := make([]int, 0, len(requested))
	for _, n := range requested {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	sort.Ints(out)
	return out
}
