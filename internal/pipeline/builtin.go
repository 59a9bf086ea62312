package pipeline

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/yensi-aiorg/nc-dev-system-sub001/internal/statestore"
)

// Hardener runs security and robustness work against a generated project.
type Hardener interface {
	Harden(ctx context.Context, projectRoot string) (*HardenResult, error)
}

// Deliverer packages the run outcome into a consumable deliverable.
type Deliverer interface {
	Deliver(ctx context.Context, projectRoot string, state *statestore.PhaseState) (*DeliverResult, error)
}

// checklistHardener is the built-in fallback when no agent-backed hardener
// is wired in. It walks the project tree and reports obvious problems
// instead of fixing them.
type checklistHardener struct{}

func (checklistHardener) Harden(ctx context.Context, projectRoot string) (*HardenResult, error) {
	res := &HardenResult{}
	err := filepath.WalkDir(projectRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if d.Name() == ".git" || d.Name() == "node_modules" {
				return filepath.SkipDir
			}
			return nil
		}
		res.FilesScanned++
		rel, _ := filepath.Rel(projectRoot, path)
		name := d.Name()
		if name == ".env" || strings.HasSuffix(name, ".pem") || strings.HasSuffix(name, ".key") {
			res.Warnings = append(res.Warnings, fmt.Sprintf("possible secret material checked in: %s", rel))
		}
		if info, err := d.Info(); err == nil && info.Mode().Perm()&0o002 != 0 {
			res.Warnings = append(res.Warnings, fmt.Sprintf("world-writable file: %s", rel))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(filepath.Join(projectRoot, ".gitignore")); err != nil {
		res.Warnings = append(res.Warnings, "no .gitignore present")
	}
	return res, nil
}

// reportDeliverer is the built-in fallback deliverer. It writes a markdown
// run report next to the project.
type reportDeliverer struct{}

func (reportDeliverer) Deliver(_ context.Context, projectRoot string, state *statestore.PhaseState) (*DeliverResult, error) {
	var b strings.Builder
	b.WriteString("# Build Report\n\n")
	fmt.Fprintf(&b, "Project: %s\n\n", filepath.Base(projectRoot))
	fmt.Fprintf(&b, "Generated: %s\n\n", time.Now().Format(time.RFC3339))
	b.WriteString("## Phases\n\n")
	for _, n := range state.PhasesCompleted {
		fmt.Fprintf(&b, "- phase %d: completed\n", n)
	}
	for _, n := range state.PhasesFailed {
		fmt.Fprintf(&b, "- phase %d: failed (%s)\n", n, state.Errors[n])
	}
	b.WriteString("\n## Next steps\n\nReview the generated code, run the test suite, and commit.\n")

	path := filepath.Join(projectRoot, "BUILD_REPORT.md")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return nil, fmt.Errorf("writing report: %w", err)
	}
	return &DeliverResult{ReportPath: path}, nil
}
