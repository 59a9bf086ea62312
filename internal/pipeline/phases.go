package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/yensi-aiorg/nc-dev-system-sub001/internal/buildpool"
	"github.com/yensi-aiorg/nc-dev-system-sub001/internal/checks"
	"github.com/yensi-aiorg/nc-dev-system-sub001/internal/domain"
	"github.com/yensi-aiorg/nc-dev-system-sub001/internal/planner"
	"github.com/yensi-aiorg/nc-dev-system-sub001/internal/verifyloop"
)

// planFileName is the phase-1 artefact consumed by later phases. Phases
// hand results to each other through the work directory, not through
// in-process state, so a resumed run picks up exactly where it stopped.
const planFileName = "plan.yaml"

func (o *Orchestrator) planPath() string {
	return filepath.Join(o.workDir, planFileName)
}

func (o *Orchestrator) savePlan(plan *planner.Plan) error {
	data, err := yaml.Marshal(plan)
	if err != nil {
		return fmt.Errorf("encoding plan: %w", err)
	}
	return os.WriteFile(o.planPath(), data, 0o644)
}

func (o *Orchestrator) loadPlan() (*planner.Plan, error) {
	data, err := os.ReadFile(o.planPath())
	if err != nil {
		return nil, err
	}
	var plan planner.Plan
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("decoding plan: %w", err)
	}
	return &plan, nil
}

func (o *Orchestrator) projectRoot(plan *planner.Plan) string {
	return filepath.Join(o.opts.OutputDir, plan.ProjectName)
}

func (o *Orchestrator) runUnderstand(ctx context.Context) (any, error) {
	phase := domain.PhaseUnderstand
	if _, err := os.Stat(o.opts.RequirementsPath); err != nil {
		return nil, Recoverable(phase, "requirements file not found: %s", o.opts.RequirementsPath)
	}
	plan, err := o.collab.Planner.Parse(o.opts.RequirementsPath)
	if err != nil {
		return nil, Recoverable(phase, "analysing requirements: %v", err)
	}
	if err := o.savePlan(plan); err != nil {
		return nil, err
	}
	names := make([]string, len(plan.Features))
	for i, f := range plan.Features {
		names[i] = f.Name
	}
	return &UnderstandResult{
		ProjectName:  plan.ProjectName,
		Language:     plan.Architecture.Language,
		FeatureCount: len(plan.Features),
		Features:     names,
		PlanPath:     o.planPath(),
	}, nil
}

func (o *Orchestrator) runScaffold(ctx context.Context) (any, error) {
	phase := domain.PhaseScaffold
	plan, err := o.loadPlan()
	if err != nil {
		return nil, Recoverable(phase, "no project plan found, run phase %d first", int(domain.PhaseUnderstand))
	}
	root, err := o.collab.Scaffolder.Generate(plan.Architecture, o.opts.OutputDir)
	if err != nil {
		return nil, err
	}
	components := make([]string, len(plan.Architecture.Components))
	for i, c := range plan.Architecture.Components {
		components[i] = c.Name
	}
	return &ScaffoldResult{ProjectRoot: root, Components: components}, nil
}

func (o *Orchestrator) runBuild(ctx context.Context) (any, error) {
	phase := domain.PhaseBuild
	plan, err := o.loadPlan()
	if err != nil {
		return nil, Recoverable(phase, "no project plan found, run phase %d first", int(domain.PhaseUnderstand))
	}
	root := o.projectRoot(plan)
	if _, err := os.Stat(root); err != nil {
		return nil, Recoverable(phase, "project skeleton missing at %s, run phase %d first", root, int(domain.PhaseScaffold))
	}
	if o.collab.Worker == nil {
		return nil, Recoverable(phase, "no build worker configured")
	}

	items := make([]domain.WorkItem, len(plan.Features))
	for i, f := range plan.Features {
		items[i] = domain.WorkItem{
			ID:      fmt.Sprintf("item-%02d-%s", i+1, planner.Slugify(f.Name)),
			Feature: f,
		}
	}

	runner := buildpool.NewRunner(o.collab.Worker, o.opts.MaxAttempts, o.opts.AttemptTimeout, o.log)
	runner.OrdersDir = filepath.Join(o.workDir, "orders")
	runner.ProjectRoot = root
	runner.RunID = o.runID
	runner.Store = o.opts.ItemStore

	pool := buildpool.NewPool(runner, o.log)
	outcomes := pool.RunAll(ctx, items, o.opts.MaxConcurrency)

	res := &BuildResult{Outcomes: outcomes}
	for _, out := range outcomes {
		o.reporter.ItemFinished(out)
		if out.Succeeded {
			res.Built++
		} else {
			res.Failed++
		}
	}
	return res, nil
}

func (o *Orchestrator) runVerify(ctx context.Context) (any, error) {
	phase := domain.PhaseVerify
	verifier := o.collab.Verifier
	if verifier == nil {
		plan, err := o.loadPlan()
		if err != nil {
			return nil, Recoverable(phase, "no project plan found, run phase %d first", int(domain.PhaseUnderstand))
		}
		testCmd := plan.TestPlan.UnitCommand
		if testCmd == "" {
			testCmd = o.opts.TestCommand
		}
		visualCmd := plan.TestPlan.VisualCommand
		if visualCmd == "" {
			visualCmd = o.opts.VisualCommand
		}
		verifier = checks.NewCommandVerifier(o.projectRoot(plan), testCmd, visualCmd, o.opts.FixCommand, o.log)
	}

	loop := verifyloop.New(verifier, o.opts.MaxFixIterations, o.log)
	report, err := loop.Run(ctx)
	if err != nil {
		return nil, err
	}
	res := &VerifyResult{State: string(report.State), Iterations: report.Iterations}
	if !report.Passed() {
		res.Details = report.Tests.Details + report.Visual.Details
		// A red build must not flow into hardening or delivery. The report
		// is still returned so the iteration count lands in the state file.
		return res, Recoverable(phase, "checks still failing after %d fix iteration(s)", report.Iterations)
	}
	return res, nil
}

func (o *Orchestrator) runHarden(ctx context.Context) (any, error) {
	phase := domain.PhaseHarden
	plan, err := o.loadPlan()
	if err != nil {
		return nil, Recoverable(phase, "no project plan found, run phase %d first", int(domain.PhaseUnderstand))
	}
	root := o.projectRoot(plan)
	if _, err := os.Stat(root); err != nil {
		return nil, Recoverable(phase, "project missing at %s", root)
	}
	return o.collab.Hardener.Harden(ctx, root)
}

func (o *Orchestrator) runDeliver(ctx context.Context) (any, error) {
	phase := domain.PhaseDeliver
	plan, err := o.loadPlan()
	if err != nil {
		return nil, Recoverable(phase, "no project plan found, run phase %d first", int(domain.PhaseUnderstand))
	}
	root := o.projectRoot(plan)
	if _, err := os.Stat(root); err != nil {
		return nil, Recoverable(phase, "project missing at %s", root)
	}
	return o.collab.Deliverer.Deliver(ctx, root, o.state)
}
