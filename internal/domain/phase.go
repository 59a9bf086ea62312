package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Phase identifies one stage of the build pipeline. Phases always execute in
// ascending numeric order.
type Phase int

const (
	PhaseUnderstand Phase = iota + 1
	PhaseScaffold
	PhaseBuild
	PhaseVerify
	PhaseHarden
	PhaseDeliver
)

// AllPhases returns the six known phases in execution order.
func AllPhases() []Phase {
	return []Phase{PhaseUnderstand, PhaseScaffold, PhaseBuild, PhaseVerify, PhaseHarden, PhaseDeliver}
}

// Valid reports whether p is one of the six known phases.
func (p Phase) Valid() bool {
	return p >= PhaseUnderstand && p <= PhaseDeliver
}

// String returns the phase's display name.
func (p Phase) String() string {
	switch p {
	case PhaseUnderstand:
		return "understand"
	case PhaseScaffold:
		return "scaffold"
	case PhaseBuild:
		return "build"
	case PhaseVerify:
		return "verify"
	case PhaseHarden:
		return "harden"
	case PhaseDeliver:
		return "deliver"
	default:
		return fmt.Sprintf("phase-%d", int(p))
	}
}

// ParsePhases parses a comma-separated list like "1,3,2" into phase numbers.
// Numbers outside 1..6 are returned as-is; the orchestrator logs and skips
// them rather than failing the run. Duplicates are collapsed, order preserved.
func ParsePhases(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}

	seen := make(map[int]bool)
	var phases []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid phase number %q", part)
		}
		if seen[n] {
			continue
		}
		seen[n] = true
		phases = append(phases, n)
	}
	return phases, nil
}
