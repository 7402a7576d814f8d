package model

import "time"

// Default schema pointers applied when no explicit values are configured.
const (
	DefaultV1SchemaURI     = "https://pageaudit.dev/schemas/summary.v1.json"
	DefaultV1SchemaVersion = "1.0.0"
	DefaultV2SchemaURI     = "https://pageaudit.dev/schemas/summary.v2.json"
	DefaultV2SchemaVersion = "2.0.0"
)

// TargetInfo identifies the page a per-target envelope describes.
type TargetInfo struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
	URL   string `json:"url"`
}

// Artifacts lists files produced for a page or a run, relative to the run root.
type Artifacts struct {
	Summary             string   `json:"summary"`
	SummaryV2           string   `json:"summaryV2"`
	Report              string   `json:"report"`
	Screenshots         []string `json:"screenshots,omitempty"`
	AccessibilityReport string   `json:"accessibilityReport,omitempty"`
	PerformanceReport   string   `json:"performanceReport,omitempty"`
	VisualDiffs         []string `json:"visualDiffs,omitempty"`
}

// Results bundles the category results of one page. Absent categories are nil.
type Results struct {
	Accessibility *AccessibilityResult `json:"accessibility,omitempty"`
	Performance   *PerformanceResult   `json:"performance,omitempty"`
	Visual        *VisualResult        `json:"visual,omitempty"`
	Screenshots   []Screenshot         `json:"screenshots,omitempty"`
}

// Diagnostics carries timing details for a per-target run.
type Diagnostics struct {
	StepDurationsMs map[string]int64 `json:"stepDurationsMs"`
}

// PageMetrics is the metric snapshot of one page consumed by rollups and trends.
type PageMetrics struct {
	A11yViolations            int      `json:"a11yViolations"`
	PerformanceScore          *float64 `json:"performanceScore"`
	PerformanceBudgetFailures int      `json:"performanceBudgetFailures"`
	MaxMismatchRatio          *float64 `json:"maxMismatchRatio"`
	VisualFailed              bool     `json:"visualFailed"`
}

// PageSummary is the per-target entry of a run envelope.
type PageSummary struct {
	Index         int         `json:"index"`
	Name          string      `json:"name"`
	URL           string      `json:"url"`
	StartedAt     time.Time   `json:"startedAt"`
	CompletedAt   time.Time   `json:"completedAt"`
	DurationMs    int64       `json:"durationMs"`
	OverallStatus StepStatus  `json:"overallStatus"`
	Steps         Steps       `json:"steps"`
	Artifacts     Artifacts   `json:"artifacts"`
	Metrics       PageMetrics `json:"metrics"`
	Details       *Envelope   `json:"details,omitempty"`
}

// Rollup aggregates page results. It is always derived from the pages array.
type Rollup struct {
	PageCount                 int `json:"pageCount"`
	FailedPages               int `json:"failedPages"`
	A11yViolations            int `json:"a11yViolations"`
	PerformanceBudgetFailures int `json:"performanceBudgetFailures"`
	VisualFailures            int `json:"visualFailures"`
}

// Envelope is the versioned summary document. Run-level v2 envelopes carry
// mode, rollup, pages, and trend; per-target v2 envelopes carry target,
// results, runtime signals, and diagnostics. The v1 view is a projection.
type Envelope struct {
	Schema         string             `json:"$schema"`
	SchemaVersion  string             `json:"schemaVersion"`
	RunID          string             `json:"runId,omitempty"`
	Mode           Mode               `json:"mode,omitempty"`
	Target         *TargetInfo        `json:"target,omitempty"`
	StartedAt      time.Time          `json:"startedAt"`
	CompletedAt    time.Time          `json:"completedAt"`
	DurationMs     int64              `json:"durationMs"`
	OverallStatus  StepStatus         `json:"overallStatus"`
	Steps          Steps              `json:"steps"`
	Artifacts      Artifacts          `json:"artifacts"`
	Results        *Results           `json:"results,omitempty"`
	Rollup         *Rollup            `json:"rollup,omitempty"`
	Pages          []PageSummary      `json:"pages,omitempty"`
	RuntimeSignals *RuntimeSignals    `json:"runtimeSignals,omitempty"`
	Diagnostics    *Diagnostics       `json:"diagnostics,omitempty"`
	Trend          *TrendDeltaSummary `json:"trend,omitempty"`
}
