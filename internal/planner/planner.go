// Package planner turns a requirements document into the feature list,
// architecture record, and test plan consumed by the later phases. The
// heading-based fallback planner is always available; a semantic planner
// collaborator can be swapped in at construction time.
package planner

import (
	"github.com/yensi-aiorg/nc-dev-system-sub001/internal/domain"
)

// Plan is the phase-1 artifact set.
type Plan struct {
	ProjectName  string           `json:"project_name" yaml:"project_name"`
	Features     []domain.Feature `json:"features" yaml:"features"`
	Architecture Architecture     `json:"architecture" yaml:"architecture"`
	TestPlan     TestPlan         `json:"test_plan" yaml:"test_plan"`
}

// Architecture describes the project skeleton the scaffold phase generates.
type Architecture struct {
	ProjectName string      `json:"project_name" yaml:"project_name"`
	Language    string      `json:"language" yaml:"language"`
	Components  []Component `json:"components" yaml:"components"`
	Ports       []int       `json:"ports,omitempty" yaml:"ports,omitempty"`
}

// Component is one structural element of the generated project.
type Component struct {
	Name string `json:"name" yaml:"name"`
	Kind string `json:"kind" yaml:"kind"` // "service", "frontend", "storage"
}

// TestPlan carries the commands the verify phase runs.
type TestPlan struct {
	UnitCommand   string   `json:"unit_command,omitempty" yaml:"unit_command,omitempty"`
	E2ECommand    string   `json:"e2e_command,omitempty" yaml:"e2e_command,omitempty"`
	VisualCommand string   `json:"visual_command,omitempty" yaml:"visual_command,omitempty"`
	Cases         []string `json:"cases,omitempty" yaml:"cases,omitempty"`
}

// Planner parses a requirements document into a Plan.
type Planner interface {
	Parse(requirementsPath string) (*Plan, error)
}
