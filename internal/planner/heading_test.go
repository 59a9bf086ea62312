package planner

import (
	"os"
	"path/filepath"
	"testing"
)

func writeRequirements(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "requirements.md")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestHeadingPlanner_TitleAndSections(t *testing.T) {
	doc := `# Task Management App

## User accounts

Users can register and log in.
Passwords are hashed.

## Task lists

Tasks can be created, completed and deleted.
`
	p := &HeadingPlanner{}
	plan, err := p.Parse(writeRequirements(t, doc))
	if err != nil {
		t.Fatal(err)
	}

	if plan.ProjectName != "task-management-app" {
		t.Errorf("ProjectName = %q, want task-management-app", plan.ProjectName)
	}
	if len(plan.Features) != 2 {
		t.Fatalf("Features = %d, want 2", len(plan.Features))
	}
	if plan.Features[0].Name != "User accounts" {
		t.Errorf("Features[0].Name = %q", plan.Features[0].Name)
	}
	if plan.Features[0].Summary != "Users can register and log in." {
		t.Errorf("Features[0].Summary = %q", plan.Features[0].Summary)
	}
	if plan.Features[1].Name != "Task lists" {
		t.Errorf("Features[1].Name = %q", plan.Features[1].Name)
	}
	if len(plan.TestPlan.Cases) != 2 {
		t.Errorf("TestPlan.Cases = %d, want one per feature", len(plan.TestPlan.Cases))
	}
}

func TestHeadingPlanner_Frontmatter(t *testing.T) {
	doc := `---
name: Invoice Service
language: go
---
# Ignored Title

## Billing
Generates invoices.
`
	p := &HeadingPlanner{}
	plan, err := p.Parse(writeRequirements(t, doc))
	if err != nil {
		t.Fatal(err)
	}
	if plan.ProjectName != "invoice-service" {
		t.Errorf("ProjectName = %q, want invoice-service", plan.ProjectName)
	}
	if plan.Architecture.Language != "go" {
		t.Errorf("Language = %q, want go", plan.Architecture.Language)
	}
}

func TestHeadingPlanner_NameOverrideWins(t *testing.T) {
	doc := "# Whatever\n\n## A feature\nDoes things.\n"
	p := &HeadingPlanner{NameOverride: "My CRM"}
	plan, err := p.Parse(writeRequirements(t, doc))
	if err != nil {
		t.Fatal(err)
	}
	if plan.ProjectName != "my-crm" {
		t.Errorf("ProjectName = %q, want my-crm", plan.ProjectName)
	}
}

func TestHeadingPlanner_TitleOnly(t *testing.T) {
	p := &HeadingPlanner{}
	plan, err := p.Parse(writeRequirements(t, "# Tiny Tool\n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(plan.Features) != 1 {
		t.Fatalf("Features = %d, want one synthetic feature", len(plan.Features))
	}
	if plan.Features[0].Name != "Tiny Tool" {
		t.Errorf("Synthetic feature name = %q", plan.Features[0].Name)
	}
}

func TestHeadingPlanner_NoTitle(t *testing.T) {
	p := &HeadingPlanner{}
	if _, err := p.Parse(writeRequirements(t, "just some text\n")); err == nil {
		t.Fatal("Expected error for a document without a title")
	}
}

func TestHeadingPlanner_MissingFile(t *testing.T) {
	p := &HeadingPlanner{}
	if _, err := p.Parse(filepath.Join(t.TempDir(), "nope.md")); err == nil {
		t.Fatal("Expected error for a missing file")
	}
}

func TestHeadingPlanner_ExtractsPorts(t *testing.T) {
	doc := `# Shop

## API
The backend listens on port 8080.

## Frontend
Served on port 3000.
`
	p := &HeadingPlanner{}
	plan, err := p.Parse(writeRequirements(t, doc))
	if err != nil {
		t.Fatal(err)
	}
	if len(plan.Architecture.Ports) != 2 || plan.Architecture.Ports[0] != 8080 || plan.Architecture.Ports[1] != 3000 {
		t.Errorf("Ports = %v, want [8080 3000]", plan.Architecture.Ports)
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Task Management App", "task-management-app"},
		{"  spaced  out  ", "spaced-out"},
		{"C++ & Go!", "c-go"},
		{"already-a-slug", "already-a-slug"},
	}
	for _, tt := range tests {
		if got := Slugify(tt.in); got != tt.want {
			t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
