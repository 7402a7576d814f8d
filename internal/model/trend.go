package model

// TrendStatus enumerates the closed set of trend engine outcomes.
type TrendStatus string

// Supported trend statuses.
const (
	TrendStatusDisabled             TrendStatus = "disabled"
	TrendStatusNoPrevious           TrendStatus = "no_previous"
	TrendStatusIncompatiblePrevious TrendStatus = "incompatible_previous"
	TrendStatusCorruptPrevious      TrendStatus = "corrupt_previous"
	TrendStatusReady                TrendStatus = "ready"
)

// NumericDelta compares a current value against an optional previous value.
// Delta is nil whenever Previous is nil.
type NumericDelta struct {
	Current  float64  `json:"current"`
	Previous *float64 `json:"previous"`
	Delta    *float64 `json:"delta"`
}

// TrendMetrics holds run-level deltas against the previous snapshot.
type TrendMetrics struct {
	OverallStatusChanged      bool         `json:"overallStatusChanged"`
	PreviousOverallStatus     StepStatus   `json:"previousOverallStatus"`
	DurationMs                NumericDelta `json:"durationMs"`
	FailedPages               NumericDelta `json:"failedPages"`
	A11yViolations            NumericDelta `json:"a11yViolations"`
	PerformanceBudgetFailures NumericDelta `json:"performanceBudgetFailures"`
	VisualFailures            NumericDelta `json:"visualFailures"`
}

// PageDelta holds per-page deltas matched by name and URL.
type PageDelta struct {
	Key              string       `json:"key"`
	Name             string       `json:"name"`
	URL              string       `json:"url"`
	CurrentStatus    StepStatus   `json:"currentStatus"`
	PreviousStatus   StepStatus   `json:"previousStatus,omitempty"`
	StatusChanged    bool         `json:"statusChanged"`
	A11yViolations   NumericDelta `json:"a11yViolations"`
	PerformanceScore NumericDelta `json:"performanceScore"`
	MaxMismatchRatio NumericDelta `json:"maxMismatchRatio"`
}

// TrendDeltaSummary is the trend block embedded in run-level v2 envelopes.
// Metrics is non-nil only when Status is TrendStatusReady.
type TrendDeltaSummary struct {
	Status               TrendStatus   `json:"status"`
	HistoryDir           string        `json:"historyDir"`
	PreviousSnapshotPath *string       `json:"previousSnapshotPath"`
	Message              string        `json:"message"`
	Metrics              *TrendMetrics `json:"metrics"`
	Pages                []PageDelta   `json:"pages"`
}
