package planner

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yensi-aiorg/nc-dev-system-sub001/internal/domain"
)

var (
	titleRegex   = regexp.MustCompile(`^#\s+(.+)$`)
	sectionRegex = regexp.MustCompile(`^##\s+(.+)$`)
	slugStrip    = regexp.MustCompile(`[^a-z0-9]+`)
	portRegex    = regexp.MustCompile(`(?i)\bports?\s+(\d{2,5})\b`)
)

// HeadingPlanner is the built-in fallback planner. It derives the project
// name from frontmatter or the first top-level heading and treats each
// second-level section as one feature.
type HeadingPlanner struct {
	// NameOverride, when set, wins over anything found in the document.
	NameOverride string
}

// frontmatter is the optional YAML block at the top of a requirements doc.
type frontmatter struct {
	Name     string `yaml:"name"`
	Language string `yaml:"language"`
}

// Parse reads the requirements document and synthesizes a minimal plan.
func (p *HeadingPlanner) Parse(requirementsPath string) (*Plan, error) {
	content, err := os.ReadFile(requirementsPath)
	if err != nil {
		return nil, fmt.Errorf("reading requirements: %w", err)
	}

	fm, body := splitFrontmatter(content)

	name := p.NameOverride
	if name == "" {
		name = fm.Name
	}

	var features []domain.Feature
	var currentFeature *domain.Feature
	var ports []int

	for _, line := range strings.Split(string(body), "\n") {
		if name == "" {
			if m := titleRegex.FindStringSubmatch(line); m != nil {
				name = m[1]
				continue
			}
		}
		if m := sectionRegex.FindStringSubmatch(line); m != nil {
			if currentFeature != nil {
				features = append(features, *currentFeature)
			}
			currentFeature = &domain.Feature{Name: strings.TrimSpace(m[1])}
			continue
		}
		if m := portRegex.FindStringSubmatch(line); m != nil {
			port, _ := strconv.Atoi(m[1]) // regex guarantees digits
			ports = append(ports, port)
		}
		if currentFeature != nil {
			text := strings.TrimSpace(line)
			if text == "" {
				continue
			}
			if currentFeature.Summary == "" {
				currentFeature.Summary = text
			} else {
				currentFeature.Description += text + "\n"
			}
		}
	}
	if currentFeature != nil {
		features = append(features, *currentFeature)
	}

	if name == "" {
		return nil, fmt.Errorf("requirements document has no title heading and no name override")
	}

	slug := Slugify(name)
	if len(features) == 0 {
		// A document with only a title still yields one buildable unit.
		features = []domain.Feature{{Name: name, Summary: "core functionality"}}
	}

	language := fm.Language
	if language == "" {
		language = "typescript"
	}

	return &Plan{
		ProjectName: slug,
		Features:    features,
		Architecture: Architecture{
			ProjectName: slug,
			Language:    language,
			Components:  defaultComponents(),
			Ports:       ports,
		},
		TestPlan: TestPlan{
			Cases: testCases(features),
		},
	}, nil
}

// Slugify lowercases a title and collapses non-alphanumerics to hyphens.
func Slugify(name string) string {
	slug := slugStrip.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(slug, "-")
}

func splitFrontmatter(content []byte) (frontmatter, []byte) {
	var fm frontmatter
	text := string(content)
	if !strings.HasPrefix(text, "---\n") {
		return fm, content
	}
	rest := text[4:]
	end := strings.Index(rest, "\n---")
	if end == -1 {
		return fm, content
	}
	if err := yaml.Unmarshal([]byte(rest[:end]), &fm); err != nil {
		// Malformed frontmatter is not fatal; the body still parses.
		return frontmatter{}, content
	}
	return fm, []byte(rest[end+4:])
}

func defaultComponents() []Component {
	return []Component{
		{Name: "app", Kind: "service"},
		{Name: "web", Kind: "frontend"},
		{Name: "store", Kind: "storage"},
	}
}

func testCases(features []domain.Feature) []string {
	cases := make([]string, 0, len(features))
	for _, f := range features {
		cases = append(cases, fmt.Sprintf("feature %q behaves as described", f.Name))
	}
	return cases
}
