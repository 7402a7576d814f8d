package audit

import (
	"context"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/temirov/pageaudit/internal/model"
)

// Step names reported to observers, errors, and diagnostics.
const (
	StepBrowser       = "browser"
	StepAccessibility = "accessibility"
	StepScreenshots   = "screenshots"
	StepPerformance   = "performance"
	StepVisual        = "visual"
	StepArtifacts     = "artifacts"
)

const (
	screenshotsDirectoryNameConstant = "screenshots"
	diffsDirectoryNameConstant       = "diffs"
	screenshotExtensionConstant      = ".png"
	sessionCloseFailedMessage        = "Failed to close browser session"
	targetCompletedMessage           = "Audited target"
	statusLogFieldConstant           = "status"
	durationLogFieldConstant         = "duration_ms"
)

// Runner drives a single target through every audit step.
type Runner struct {
	browser        BrowserLauncher
	accessibility  AccessibilityScanner
	performance    PerformanceAuditor
	visual         VisualComparator
	reportRenderer ReportRenderer
	observer       StepObserver
	clock          Clock
	logger         *zap.Logger
}

// RunTarget audits one target and writes its summary.json, summary.v2.json, and
// report.html. Any step error aborts and is returned as a StepError. The browser
// session is closed exactly once on every path.
func (runner *Runner) RunTarget(executionContext context.Context, target AuditTarget, runRoot string, options RunOptions) (model.PageSummary, error) {
	startedAt := runner.clock.Now()
	stepDurations := make(map[string]int64)

	var session BrowserSession
	openError := runner.runStep(target, StepBrowser, stepDurations, func() error {
		var stepError error
		session, stepError = runner.browser.Open(executionContext, target.URL, options.Browser)
		return stepError
	})
	if openError != nil {
		return model.PageSummary{}, openError
	}

	sessionClosed := false
	closeSession := func() {
		if sessionClosed {
			return
		}
		sessionClosed = true
		if session.Closer == nil {
			return
		}
		if closeError := session.Closer.Close(); closeError != nil {
			runner.logger.Warn(sessionCloseFailedMessage, zap.String(targetNameLogFieldConstant, target.Name), zap.Error(closeError))
		}
	}
	defer closeSession()

	var accessibilityResult *model.AccessibilityResult
	if options.Accessibility.Enabled {
		stepError := runner.runStep(target, StepAccessibility, stepDurations, func() error {
			result, scanError := runner.accessibility.Scan(executionContext, session.Page, target.OutputDirectory)
			if scanError != nil {
				return scanError
			}
			accessibilityResult = &result
			return nil
		})
		if stepError != nil {
			return model.PageSummary{}, stepError
		}
	}

	var screenshots []model.Screenshot
	screenshotError := runner.runStep(target, StepScreenshots, stepDurations, func() error {
		var captureError error
		screenshots, captureError = captureScreenshots(executionContext, session.Page, target.OutputDirectory, options.Screenshots)
		return captureError
	})
	if screenshotError != nil {
		return model.PageSummary{}, screenshotError
	}

	var performanceResult *model.PerformanceResult
	if options.Performance.Enabled {
		stepError := runner.runStep(target, StepPerformance, stepDurations, func() error {
			result, auditError := runner.performance.Audit(executionContext, target.URL, options.Performance.Budgets, target.OutputDirectory)
			if auditError != nil {
				return auditError
			}
			performanceResult = &result
			return nil
		})
		if stepError != nil {
			return model.PageSummary{}, stepError
		}
	}

	var visualResult *model.VisualResult
	if options.Visual.Enabled {
		stepError := runner.runStep(target, StepVisual, stepDurations, func() error {
			result, compareError := runner.visual.Compare(executionContext, VisualRequest{
				Screenshots:       screenshots,
				BaselineDirectory: target.BaselineDirectory,
				DiffDirectory:     filepath.Join(target.OutputDirectory, diffsDirectoryNameConstant),
				Threshold:         options.Visual.Threshold,
				OverwriteBaseline: options.Visual.UpdateBaselines,
			})
			if compareError != nil {
				return compareError
			}
			visualResult = &result
			return nil
		})
		if stepError != nil {
			return model.PageSummary{}, stepError
		}
	}

	signals := model.RuntimeSignals{}
	if session.Signals != nil {
		signals = session.Signals.Snapshot()
	}
	closeSession()

	statusOutcome := ComputeStatus(StatusInputs{
		Accessibility: accessibilityResult,
		Performance:   performanceResult,
		Visual:        visualResult,
		FailSwitches:  options.FailSwitches,
	})

	envelopeV2 := buildPageEnvelope(pageEnvelopeInput{
		target:          target,
		runRoot:         runRoot,
		startedAt:       startedAt,
		completedAt:     runner.clock.Now(),
		status:          statusOutcome,
		accessibility:   accessibilityResult,
		performance:     performanceResult,
		visual:          visualResult,
		screenshots:     screenshots,
		signals:         signals,
		stepDurationsMs: stepDurations,
		options:         options.Envelope,
	})

	artifactError := runner.runStep(target, StepArtifacts, stepDurations, func() error {
		_, writeError := writeEnvelopeArtifacts(target.OutputDirectory, envelopeV2, options.Envelope, runner.reportRenderer)
		return writeError
	})
	if artifactError != nil {
		return model.PageSummary{}, artifactError
	}

	runner.logger.Info(targetCompletedMessage,
		zap.String(targetNameLogFieldConstant, target.Name),
		zap.String(targetURLLogFieldConstant, target.URL),
		zap.String(statusLogFieldConstant, string(statusOutcome.Overall)),
		zap.Int64(durationLogFieldConstant, envelopeV2.DurationMs),
	)

	return pageSummaryFromEnvelope(envelopeV2), nil
}

func (runner *Runner) runStep(target AuditTarget, step string, stepDurations map[string]int64, operation func() error) error {
	runner.observer.StepStarted(target, step)
	stepStartedAt := runner.clock.Now()
	if operationError := operation(); operationError != nil {
		runner.observer.StepFailed(target, step, operationError)
		return StepError{Step: step, Target: target.Name, Cause: operationError}
	}
	stepDuration := runner.clock.Now().Sub(stepStartedAt)
	stepDurations[step] = stepDuration.Milliseconds()
	runner.observer.StepCompleted(target, step, stepDuration)
	return nil
}

func captureScreenshots(executionContext context.Context, page PageHandle, outputDirectory string, definitions []ScreenshotDefinition) ([]model.Screenshot, error) {
	screenshots := make([]model.Screenshot, 0, len(definitions))
	for _, definition := range definitions {
		content, captureError := page.Screenshot(executionContext, definition.FullPage)
		if captureError != nil {
			return nil, captureError
		}
		screenshotPath := filepath.Join(outputDirectory, screenshotsDirectoryNameConstant, definition.Name+screenshotExtensionConstant)
		if writeError := writeBinaryArtifact(screenshotPath, content); writeError != nil {
			return nil, writeError
		}
		screenshots = append(screenshots, model.Screenshot{Name: definition.Name, Path: screenshotPath, FullPage: definition.FullPage})
	}
	return screenshots, nil
}
