package scaffold

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yensi-aiorg/nc-dev-system-sub001/internal/planner"
)

func testArch() planner.Architecture {
	return planner.Architecture{
		ProjectName: "task-management-app",
		Language:    "typescript",
		Components: []planner.Component{
			{Name: "app", Kind: "service"},
			{Name: "web", Kind: "frontend"},
		},
		Ports: []int{8080},
	}
}

func TestGenerate_CreatesLayout(t *testing.T) {
	out := t.TempDir()
	root, err := DirScaffolder{}.Generate(testArch(), out)
	if err != nil {
		t.Fatal(err)
	}
	if root != filepath.Join(out, "task-management-app") {
		t.Errorf("Root = %s", root)
	}

	for _, dir := range []string{"app", "web"} {
		info, err := os.Stat(filepath.Join(root, dir))
		if err != nil || !info.IsDir() {
			t.Errorf("Component dir %s missing: %v", dir, err)
		}
	}

	readme, err := os.ReadFile(filepath.Join(root, "README.md"))
	if err != nil {
		t.Fatal(err)
	}
	text := string(readme)
	if !strings.Contains(text, "# task-management-app") {
		t.Error("README missing project title")
	}
	if !strings.Contains(text, "`app/`") || !strings.Contains(text, "service") {
		t.Error("README missing component layout")
	}
	if !strings.Contains(text, "8080") {
		t.Error("README missing port list")
	}
}

func TestGenerate_Idempotent(t *testing.T) {
	out := t.TempDir()
	if _, err := (DirScaffolder{}).Generate(testArch(), out); err != nil {
		t.Fatal(err)
	}
	if _, err := (DirScaffolder{}).Generate(testArch(), out); err != nil {
		t.Errorf("Second generate over an existing skeleton failed: %v", err)
	}
}

func TestGenerate_RequiresName(t *testing.T) {
	arch := testArch()
	arch.ProjectName = ""
	if _, err := (DirScaffolder{}).Generate(arch, t.TempDir()); err == nil {
		t.Fatal("Expected error for architecture without a project name")
	}
}

func TestGenerate_ComponentNamesStayInside(t *testing.T) {
	out := t.TempDir()
	arch := testArch()
	arch.Components = []planner.Component{{Name: "../../escape", Kind: "service"}}

	root, err := DirScaffolder{}.Generate(arch, out)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(root, "escape")); err != nil {
		t.Error("Traversing component name should be flattened into the root")
	}
	if _, err := os.Stat(filepath.Join(out, "..", "escape")); err == nil {
		t.Error("Component escaped the output directory")
	}
}
