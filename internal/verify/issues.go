package verify

// Severity taxonomy shared by all tiers. Critical blocks downstream use,
// warning is surfaced but not blocking, info is logged only.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// Issue is a single verification finding.
type Issue struct {
	Check       string   `json:"check"`
	Severity    Severity `json:"severity"`
	Message     string   `json:"message"`
	Location    string   `json:"location,omitempty"`
	Suggestion  string   `json:"suggestion,omitempty"`
	AutoFixable bool     `json:"auto_fixable,omitempty"`
}

// Tier names the escalation level a result came from.
type Tier string

const (
	TierFast   Tier = "fast"
	TierMedium Tier = "medium"
	TierSlow   Tier = "slow"
)

// Status is the terminal state of a verification run.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusDegraded  Status = "degraded"
	StatusFailed    Status = "failed"
)

// Result is the verification result format consumers receive.
type Result struct {
	Tier       Tier     `json:"tier"`
	Status     Status   `json:"status"`
	Passed     bool     `json:"passed"`
	Issues     []Issue  `json:"issues"`
	Skipped    []string `json:"skipped,omitempty"` // checks that did not run
	Partial    bool     `json:"partial,omitempty"`
	DurationMs int64    `json:"duration_ms"`
}

// Request is one piece of newly produced content to verify.
type Request struct {
	SceneRef string `json:"scene_ref"`
	Content  string `json:"content"`
	POV      string `json:"pov,omitempty"` // point-of-view character name
}

func passed(issues []Issue) bool {
	for _, i := range issues {
		if i.Severity == SeverityCritical {
			return false
		}
	}
	return true
}
