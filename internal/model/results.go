package model

// AccessibilityResult is reported by the accessibility scan collaborator.
type AccessibilityResult struct {
	ViolationCount   int            `json:"violationCount"`
	CountsBySeverity map[string]int `json:"countsBySeverity"`
	ReportPath       string         `json:"reportPath"`
}

// PerformanceBudgets lists the thresholds a performance audit must satisfy.
// Nil thresholds are not evaluated.
type PerformanceBudgets struct {
	MinScore *float64 `json:"minScore,omitempty" mapstructure:"min_score"`
	MaxLCPMs *float64 `json:"maxLcpMs,omitempty" mapstructure:"max_lcp_ms"`
	MaxCLS   *float64 `json:"maxCls,omitempty" mapstructure:"max_cls"`
	MaxTBTMs *float64 `json:"maxTbtMs,omitempty" mapstructure:"max_tbt_ms"`
}

// PerformanceResult is reported by the performance audit collaborator.
type PerformanceResult struct {
	Metrics          map[string]float64 `json:"metrics"`
	Budgets          PerformanceBudgets `json:"budgets"`
	PerDimensionPass map[string]bool    `json:"perDimensionPass"`
	ReportPath       string             `json:"reportPath"`
}

// Performance metric keys populated by performance collaborators.
const (
	PerformanceMetricScore = "score"
	PerformanceMetricLCPMs = "lcpMs"
	PerformanceMetricCLS   = "cls"
	PerformanceMetricTBTMs = "tbtMs"
)

// Score returns the performance score when the collaborator reported one.
func (result PerformanceResult) Score() (float64, bool) {
	score, present := result.Metrics[PerformanceMetricScore]
	return score, present
}

// FailedBudgetCount counts budget dimensions that did not pass.
func (result PerformanceResult) FailedBudgetCount() int {
	failed := 0
	for _, passed := range result.PerDimensionPass {
		if !passed {
			failed++
		}
	}
	return failed
}

// Screenshot describes a captured page image.
type Screenshot struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	FullPage bool   `json:"fullPage"`
}

// ShotComparison holds the visual comparison outcome for one screenshot.
type ShotComparison struct {
	Name            string  `json:"name"`
	ScreenshotPath  string  `json:"screenshotPath"`
	BaselinePath    string  `json:"baselinePath"`
	DiffPath        string  `json:"diffPath,omitempty"`
	MismatchRatio   float64 `json:"mismatchRatio"`
	Failed          bool    `json:"failed"`
	BaselineCreated bool    `json:"baselineCreated"`
}

// VisualResult is reported by the visual regression collaborator.
type VisualResult struct {
	Threshold       float64          `json:"threshold"`
	PerShotResults  []ShotComparison `json:"perShotResults"`
	AggregateFailed bool             `json:"aggregateFailed"`
}

// MaxMismatchRatio returns the largest mismatch ratio across all compared shots.
func (result VisualResult) MaxMismatchRatio() float64 {
	maximum := 0.0
	for _, shot := range result.PerShotResults {
		if shot.MismatchRatio > maximum {
			maximum = shot.MismatchRatio
		}
	}
	return maximum
}

// ConsoleMessage is one console entry recorded while the page was open.
type ConsoleMessage struct {
	Level string `json:"level"`
	Text  string `json:"text"`
}

// FailedRequest is a network request that did not complete.
type FailedRequest struct {
	URL    string `json:"url"`
	Reason string `json:"reason"`
}

// RuntimeSignals summarizes console, error, and network activity of a page.
type RuntimeSignals struct {
	ConsoleMessages []ConsoleMessage `json:"consoleMessages"`
	PageErrors      []string         `json:"pageErrors"`
	FailedRequests  []FailedRequest  `json:"failedRequests"`
	RequestCount    int              `json:"requestCount"`
}
