// Package scaffold materializes the phase-1 architecture record into a
// project skeleton on disk.
package scaffold

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/yensi-aiorg/nc-dev-system-sub001/internal/planner"
)

// Scaffolder generates a project root from an architecture record.
type Scaffolder interface {
	Generate(arch planner.Architecture, outputDir string) (string, error)
}

// DirScaffolder is the built-in scaffolder: one directory per component plus
// a README describing the layout. Worker agents fill the directories in
// during the build phase.
type DirScaffolder struct{}

var readmeTemplate = template.Must(template.New("readme").Parse(`# {{.ProjectName}}

Generated project skeleton ({{.Language}}).

## Layout
{{range .Components}}
- ` + "`{{.Name}}/`" + `: {{.Kind}}
{{- end}}
{{if .Ports}}
## Ports
{{range .Ports}}
- {{.}}
{{- end}}
{{end}}`))

// Generate creates the skeleton and returns the project root path.
func (DirScaffolder) Generate(arch planner.Architecture, outputDir string) (string, error) {
	if arch.ProjectName == "" {
		return "", fmt.Errorf("architecture has no project name")
	}

	root := filepath.Join(outputDir, arch.ProjectName)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", fmt.Errorf("creating project root: %w", err)
	}

	for _, comp := range arch.Components {
		dir := filepath.Join(root, safeName(comp.Name))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("creating component %s: %w", comp.Name, err)
		}
	}

	var readme strings.Builder
	if err := readmeTemplate.Execute(&readme, arch); err != nil {
		return "", fmt.Errorf("rendering README: %w", err)
	}
	if err := os.WriteFile(filepath.Join(root, "README.md"), []byte(readme.String()), 0o644); err != nil {
		return "", err
	}

	return root, nil
}

// safeName keeps component directories inside the project root.
func safeName(name string) string {
	name = filepath.Base(name)
	if name == "." || name == ".." || name == string(filepath.Separator) {
		return "component"
	}
	return name
}
