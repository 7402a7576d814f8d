package audit

import (
	"context"
	"io"
	"time"

	"github.com/temirov/pageaudit/internal/model"
)

// PageHandle exposes the page operations collaborators rely on.
type PageHandle interface {
	Evaluate(executionContext context.Context, script string, awaitPromise bool) ([]byte, error)
	Screenshot(executionContext context.Context, fullPage bool) ([]byte, error)
}

// RuntimeSignalRecorder accumulates console, error, and network activity of a page.
type RuntimeSignalRecorder interface {
	Snapshot() model.RuntimeSignals
}

// BrowserSession is an opened page together with its release handle and signal recorder.
type BrowserSession struct {
	Page    PageHandle
	Closer  io.Closer
	Signals RuntimeSignalRecorder
}

// BrowserLauncher opens browser sessions navigated to a URL.
type BrowserLauncher interface {
	Open(executionContext context.Context, targetURL string, options BrowserOptions) (BrowserSession, error)
}

// AccessibilityScanner evaluates accessibility rules against an open page.
type AccessibilityScanner interface {
	Scan(executionContext context.Context, page PageHandle, outputDirectory string) (model.AccessibilityResult, error)
}

// PerformanceAuditor measures page performance against budgets.
type PerformanceAuditor interface {
	Audit(executionContext context.Context, targetURL string, budgets model.PerformanceBudgets, outputDirectory string) (model.PerformanceResult, error)
}

// VisualComparator compares screenshots against baselines.
type VisualComparator interface {
	Compare(executionContext context.Context, request VisualRequest) (model.VisualResult, error)
}

// ReportRenderer renders the human-readable report for an envelope.
type ReportRenderer interface {
	Render(envelope model.Envelope) ([]byte, error)
}

// StepObserver receives lifecycle notifications for audit steps.
type StepObserver interface {
	StepStarted(target AuditTarget, step string)
	StepCompleted(target AuditTarget, step string, duration time.Duration)
	StepFailed(target AuditTarget, step string, failure error)
}

type noopStepObserver struct{}

func (noopStepObserver) StepStarted(AuditTarget, string)                  {}
func (noopStepObserver) StepCompleted(AuditTarget, string, time.Duration) {}
func (noopStepObserver) StepFailed(AuditTarget, string, error)            {}
