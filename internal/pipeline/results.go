package pipeline

import "github.com/yensi-aiorg/nc-dev-system-sub001/internal/domain"

// Typed per-phase result payloads. These end up in the results map of the
// persisted state, so every field must survive a JSON round trip.

type UnderstandResult struct {
	ProjectName  string   `json:"project_name"`
	Language     string   `json:"language"`
	FeatureCount int      `json:"feature_count"`
	Features     []string `json:"features"`
	PlanPath     string   `json:"plan_path"`
}

type ScaffoldResult struct {
	ProjectRoot string   `json:"project_root"`
	Components  []string `json:"components"`
}

type BuildResult struct {
	Built    int              `json:"built"`
	Failed   int              `json:"failed"`
	Outcomes []domain.Outcome `json:"outcomes"`
}

type VerifyResult struct {
	State      string `json:"state"`
	Iterations int    `json:"iterations"`
	Details    string `json:"details,omitempty"`
}

type HardenResult struct {
	FilesScanned int      `json:"files_scanned"`
	Warnings     []string `json:"warnings,omitempty"`
}

type DeliverResult struct {
	ReportPath string `json:"report_path"`
}
