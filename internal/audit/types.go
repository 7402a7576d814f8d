package audit

import (
	"time"

	"github.com/temirov/pageaudit/internal/model"
)

// Clock abstracts time-dependent functionality for deterministic testing.
type Clock interface {
	Now() time.Time
}

// SystemClock implements Clock using the standard library.
type SystemClock struct{}

// Now returns the current system time.
func (SystemClock) Now() time.Time {
	return time.Now()
}

// TargetDefinition is a named URL declared in configuration.
type TargetDefinition struct {
	Name string `mapstructure:"name" yaml:"name"`
	URL  string `mapstructure:"url" yaml:"url"`
}

// AuditTarget is one resolved page to audit. Index is the 0-based configuration order.
type AuditTarget struct {
	Index             int
	Name              string
	URL               string
	OutputDirectory   string
	BaselineDirectory string
}

// ScreenshotDefinition describes a screenshot captured for every target.
type ScreenshotDefinition struct {
	Name     string
	FullPage bool
}

// FailSwitches toggle whether a category may fail the run.
type FailSwitches struct {
	Accessibility bool
	Performance   bool
	Visual        bool
}

// BrowserOptions configures the browser session opened for a target.
type BrowserOptions struct {
	ViewportWidth     int
	ViewportHeight    int
	NavigationTimeout time.Duration
	UserAgent         string
}

// AccessibilityOptions configures the accessibility step.
type AccessibilityOptions struct {
	Enabled bool
}

// PerformanceOptions configures the performance step.
type PerformanceOptions struct {
	Enabled bool
	Budgets model.PerformanceBudgets
}

// VisualOptions configures the visual regression step.
type VisualOptions struct {
	Enabled         bool
	Threshold       float64
	UpdateBaselines bool
}

// TrendOptions configures trend computation and snapshot retention.
type TrendOptions struct {
	Enabled          bool
	HistoryDirectory string
	MaxSnapshots     int
}

// RunOptions captures every resolved parameter of an audit run.
type RunOptions struct {
	URL               string
	Targets           []TargetDefinition
	OutputDirectory   string
	BaselineDirectory string
	PermittedRoot     string
	Browser           BrowserOptions
	Accessibility     AccessibilityOptions
	Performance       PerformanceOptions
	Visual            VisualOptions
	Screenshots       []ScreenshotDefinition
	FailSwitches      FailSwitches
	Trend             TrendOptions
	Envelope          EnvelopeOptions
}

// VisualRequest carries the inputs of a visual comparison for one target.
type VisualRequest struct {
	Screenshots       []model.Screenshot
	BaselineDirectory string
	DiffDirectory     string
	Threshold         float64
	OverwriteBaseline bool
}

// RunOutcome reports the result of a completed run.
type RunOutcome struct {
	Envelope      model.Envelope
	SummaryPath   string
	SummaryV2Path string
	ReportPath    string
	SnapshotPath  string
}
