package audit_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/temirov/pageaudit/internal/audit"
	"github.com/temirov/pageaudit/internal/model"
)

const (
	landingURLConstant  = "https://example.com/"
	checkoutURLConstant = "https://example.com/checkout"
)

type steppingClock struct {
	mutex   sync.Mutex
	current time.Time
}

func newSteppingClock() *steppingClock {
	return &steppingClock{current: time.Date(2026, time.February, 3, 4, 5, 6, 0, time.UTC)}
}

func (clock *steppingClock) Now() time.Time {
	clock.mutex.Lock()
	defer clock.mutex.Unlock()
	now := clock.current
	clock.current = clock.current.Add(250 * time.Millisecond)
	return now
}

type stubPage struct {
	url string
}

func (page stubPage) Evaluate(context.Context, string, bool) ([]byte, error) {
	return []byte("null"), nil
}

func (page stubPage) Screenshot(context.Context, bool) ([]byte, error) {
	return []byte("image:" + page.url), nil
}

type countingCloser struct {
	closes *int
}

func (closer countingCloser) Close() error {
	*closer.closes++
	return nil
}

type stubSignals struct{}

func (stubSignals) Snapshot() model.RuntimeSignals {
	return model.RuntimeSignals{RequestCount: 5, PageErrors: []string{"boom"}}
}

type stubLauncher struct {
	failingURL   string
	openedURLs   []string
	closesPerURL map[string]*int
}

func newStubLauncher() *stubLauncher {
	return &stubLauncher{closesPerURL: map[string]*int{}}
}

func (launcher *stubLauncher) Open(_ context.Context, targetURL string, _ audit.BrowserOptions) (audit.BrowserSession, error) {
	launcher.openedURLs = append(launcher.openedURLs, targetURL)
	if targetURL == launcher.failingURL {
		return audit.BrowserSession{}, errors.New("navigation timed out")
	}
	closes := new(int)
	launcher.closesPerURL[targetURL] = closes
	return audit.BrowserSession{Page: stubPage{url: targetURL}, Closer: countingCloser{closes: closes}, Signals: stubSignals{}}, nil
}

type stubScanner struct {
	violationsByURL map[string]int
	failure         error
}

func (scanner stubScanner) Scan(_ context.Context, page audit.PageHandle, outputDirectory string) (model.AccessibilityResult, error) {
	if scanner.failure != nil {
		return model.AccessibilityResult{}, scanner.failure
	}
	violations := scanner.violationsByURL[page.(stubPage).url]
	return model.AccessibilityResult{
		ViolationCount:   violations,
		CountsBySeverity: map[string]int{"serious": violations},
		ReportPath:       filepath.Join(outputDirectory, "axe.json"),
	}, nil
}

type stubAuditor struct {
	score float64
}

func (auditor stubAuditor) Audit(_ context.Context, _ string, budgets model.PerformanceBudgets, outputDirectory string) (model.PerformanceResult, error) {
	passes := map[string]bool{}
	if budgets.MinScore != nil {
		passes[model.PerformanceMetricScore] = auditor.score >= *budgets.MinScore
	}
	return model.PerformanceResult{
		Metrics:          map[string]float64{model.PerformanceMetricScore: auditor.score},
		Budgets:          budgets,
		PerDimensionPass: passes,
		ReportPath:       filepath.Join(outputDirectory, "lighthouse.json"),
	}, nil
}

type recordingObserver struct {
	events []string
}

func (observer *recordingObserver) StepStarted(target audit.AuditTarget, step string) {
	observer.events = append(observer.events, target.Name+":"+step+":start")
}

func (observer *recordingObserver) StepCompleted(target audit.AuditTarget, step string, _ time.Duration) {
	observer.events = append(observer.events, target.Name+":"+step+":done")
}

func (observer *recordingObserver) StepFailed(target audit.AuditTarget, step string, _ error) {
	observer.events = append(observer.events, target.Name+":"+step+":failed")
}

func twoTargetOptions(outputDirectory string) audit.RunOptions {
	minimumScore := 0.9
	return audit.RunOptions{
		Targets: []audit.TargetDefinition{
			{Name: "Landing", URL: landingURLConstant},
			{Name: "Checkout/Flow", URL: checkoutURLConstant},
		},
		OutputDirectory:   outputDirectory,
		BaselineDirectory: filepath.Join(outputDirectory, "baselines"),
		PermittedRoot:     filepath.Dir(outputDirectory),
		Accessibility:     audit.AccessibilityOptions{Enabled: true},
		Performance:       audit.PerformanceOptions{Enabled: true, Budgets: model.PerformanceBudgets{MinScore: &minimumScore}},
		Screenshots:       []audit.ScreenshotDefinition{{Name: "page", FullPage: true}},
		FailSwitches:      audit.FailSwitches{Accessibility: true, Performance: true, Visual: true},
		Trend:             audit.TrendOptions{Enabled: true, HistoryDirectory: filepath.Join(outputDirectory, "history"), MaxSnapshots: 5},
	}
}

func readEnvelope(testInstance *testing.T, path string) (model.Envelope, map[string]any) {
	testInstance.Helper()
	content, readError := os.ReadFile(path)
	require.NoError(testInstance, readError)
	var envelope model.Envelope
	require.NoError(testInstance, json.Unmarshal(content, &envelope))
	var document map[string]any
	require.NoError(testInstance, json.Unmarshal(content, &document))
	return envelope, document
}

func TestServiceRunAuditsTargetsAndComputesTrend(testInstance *testing.T) {
	outputDirectory := filepath.Join(testInstance.TempDir(), "out")
	launcher := newStubLauncher()
	observer := &recordingObserver{}
	runIdentifiers := []string{"run-1", "run-2"}

	service := audit.NewService(audit.Dependencies{
		Logger:        zap.NewNop(),
		Browser:       launcher,
		Accessibility: stubScanner{violationsByURL: map[string]int{checkoutURLConstant: 2}},
		Performance:   stubAuditor{score: 0.95},
		Observer:      observer,
		Clock:         newSteppingClock(),
		RunIdentifierGenerator: func() string {
			identifier := runIdentifiers[0]
			runIdentifiers = runIdentifiers[1:]
			return identifier
		},
	})

	options := twoTargetOptions(outputDirectory)
	outcome, runError := service.Run(context.Background(), options)
	require.NoError(testInstance, runError)

	envelope := outcome.Envelope
	require.Equal(testInstance, "run-1", envelope.RunID)
	require.Equal(testInstance, model.ModeMulti, envelope.Mode)
	require.Equal(testInstance, model.StepStatusFail, envelope.OverallStatus)
	require.Empty(testInstance, cmp.Diff(model.Rollup{PageCount: 2, FailedPages: 1, A11yViolations: 2}, *envelope.Rollup))
	require.Empty(testInstance, cmp.Diff(model.Steps{
		Browser:       model.StepStatusPass,
		Accessibility: model.StepStatusFail,
		Performance:   model.StepStatusPass,
		Visual:        model.StepStatusSkipped,
	}, envelope.Steps))
	require.Equal(testInstance, model.TrendStatusNoPrevious, envelope.Trend.Status)

	require.Len(testInstance, envelope.Pages, 2)
	require.Equal(testInstance, model.StepStatusPass, envelope.Pages[0].OverallStatus)
	require.Regexp(testInstance, `^pages/01-landing/`, envelope.Pages[0].Artifacts.Summary)
	require.Regexp(testInstance, `^pages/02-checkout-flow/`, envelope.Pages[1].Artifacts.Summary)
	checkout := envelope.Pages[1]
	require.Equal(testInstance, 1, checkout.Index)
	require.Equal(testInstance, "Checkout/Flow", checkout.Name)
	require.Equal(testInstance, model.StepStatusFail, checkout.OverallStatus)
	require.Equal(testInstance, "pages/02-checkout-flow/report.html", checkout.Artifacts.Report)
	require.Equal(testInstance, []string{"pages/02-checkout-flow/screenshots/page.png"}, checkout.Artifacts.Screenshots)
	require.Equal(testInstance, "pages/02-checkout-flow/axe.json", checkout.Artifacts.AccessibilityReport)
	require.NotNil(testInstance, checkout.Metrics.PerformanceScore)
	require.Equal(testInstance, 0.95, *checkout.Metrics.PerformanceScore)
	require.Nil(testInstance, checkout.Metrics.MaxMismatchRatio)

	require.Equal(testInstance, []string{landingURLConstant, checkoutURLConstant}, launcher.openedURLs)
	for _, closes := range launcher.closesPerURL {
		require.Equal(testInstance, 1, *closes)
	}
	require.Equal(testInstance, []string{
		"Landing:browser:start", "Landing:browser:done",
		"Landing:accessibility:start", "Landing:accessibility:done",
		"Landing:screenshots:start", "Landing:screenshots:done",
		"Landing:performance:start", "Landing:performance:done",
		"Landing:artifacts:start", "Landing:artifacts:done",
	}, observer.events[:10])

	require.Equal(testInstance, filepath.Join(outputDirectory, "summary.json"), outcome.SummaryPath)
	require.FileExists(testInstance, outcome.ReportPath)
	require.FileExists(testInstance, outcome.SnapshotPath)
	require.FileExists(testInstance, filepath.Join(outputDirectory, "pages", "01-landing", "summary.v2.json"))
	require.FileExists(testInstance, filepath.Join(outputDirectory, "pages", "02-checkout-flow", "screenshots", "page.png"))

	_, v1Document := readEnvelope(testInstance, outcome.SummaryPath)
	require.Equal(testInstance, model.DefaultV1SchemaVersion, v1Document["schemaVersion"])
	for _, droppedField := range []string{"pages", "rollup", "trend", "runId", "mode"} {
		require.NotContains(testInstance, v1Document, droppedField)
	}

	pageEnvelope, _ := readEnvelope(testInstance, filepath.Join(outputDirectory, "pages", "02-checkout-flow", "summary.v2.json"))
	require.Equal(testInstance, &model.TargetInfo{Index: 1, Name: "Checkout/Flow", URL: checkoutURLConstant}, pageEnvelope.Target)
	require.Equal(testInstance, 5, pageEnvelope.RuntimeSignals.RequestCount)
	require.Contains(testInstance, pageEnvelope.Diagnostics.StepDurationsMs, audit.StepAccessibility)
	require.Equal(testInstance, "pages/02-checkout-flow/screenshots/page.png", pageEnvelope.Results.Screenshots[0].Path)

	secondOutcome, secondRunError := service.Run(context.Background(), options)
	require.NoError(testInstance, secondRunError)
	secondTrend := secondOutcome.Envelope.Trend
	require.Equal(testInstance, model.TrendStatusReady, secondTrend.Status)
	require.Equal(testInstance, outcome.SnapshotPath, *secondTrend.PreviousSnapshotPath)
	require.Zero(testInstance, *secondTrend.Metrics.FailedPages.Delta)
	require.Len(testInstance, secondTrend.Pages, 2)
	require.Equal(testInstance, "Checkout/Flow::"+checkoutURLConstant, secondTrend.Pages[1].Key)
	require.NotEqual(testInstance, outcome.SnapshotPath, secondOutcome.SnapshotPath)
}

func TestServiceRunSingleTargetUsesRunDirectory(testInstance *testing.T) {
	outputDirectory := testInstance.TempDir()
	service := audit.NewService(audit.Dependencies{
		Browser:                newStubLauncher(),
		Accessibility:          stubScanner{violationsByURL: map[string]int{landingURLConstant: 2}},
		Clock:                  newSteppingClock(),
		RunIdentifierGenerator: func() string { return "single" },
	})

	outcome, runError := service.Run(context.Background(), audit.RunOptions{
		URL:             landingURLConstant,
		OutputDirectory: outputDirectory,
		Accessibility:   audit.AccessibilityOptions{Enabled: true},
		Screenshots:     []audit.ScreenshotDefinition{{Name: "viewport"}},
	})
	require.NoError(testInstance, runError)
	require.Equal(testInstance, model.ModeSingle, outcome.Envelope.Mode)
	require.Equal(testInstance, model.StepStatusPass, outcome.Envelope.OverallStatus)
	require.Equal(testInstance, model.TrendStatusDisabled, outcome.Envelope.Trend.Status)
	require.Empty(testInstance, outcome.SnapshotPath)
	require.Equal(testInstance, "report.html", outcome.Envelope.Pages[0].Artifacts.Report)
	require.FileExists(testInstance, filepath.Join(outputDirectory, "screenshots", "viewport.png"))
	require.NoDirExists(testInstance, filepath.Join(outputDirectory, "history"))

	summaryV1, documentV1 := readEnvelope(testInstance, filepath.Join(outputDirectory, "summary.json"))
	require.NotNil(testInstance, summaryV1.Target)
	require.Equal(testInstance, landingURLConstant, summaryV1.Target.URL)
	require.NotNil(testInstance, summaryV1.Results)
	require.NotNil(testInstance, summaryV1.Results.Accessibility)
	require.Equal(testInstance, 2, summaryV1.Results.Accessibility.ViolationCount)
	require.Equal(testInstance, "axe.json", summaryV1.Artifacts.AccessibilityReport)
	require.Equal(testInstance, []string{"screenshots/viewport.png"}, summaryV1.Artifacts.Screenshots)
	require.NotContains(testInstance, documentV1, "pages")

	summaryV2, _ := readEnvelope(testInstance, filepath.Join(outputDirectory, "summary.v2.json"))
	require.Equal(testInstance, model.ModeSingle, summaryV2.Mode)
	require.Len(testInstance, summaryV2.Pages, 1)
	require.NotNil(testInstance, summaryV2.Results)
	require.Equal(testInstance, 2, summaryV2.Results.Accessibility.ViolationCount)
	require.NotNil(testInstance, summaryV2.RuntimeSignals)
	require.Equal(testInstance, 5, summaryV2.RuntimeSignals.RequestCount)
	require.NotNil(testInstance, summaryV2.Diagnostics)
}

func TestServiceRunAbortsOnStepFailure(testInstance *testing.T) {
	testCases := []struct {
		name            string
		launcher        *stubLauncher
		scanner         stubScanner
		expectedStep    string
		expectedTarget  string
		expectedOpened  []string
		landingComplete bool
	}{
		{
			name:            "browser_failure_on_second_target",
			launcher:        &stubLauncher{failingURL: checkoutURLConstant, closesPerURL: map[string]*int{}},
			expectedStep:    audit.StepBrowser,
			expectedTarget:  "Checkout/Flow",
			expectedOpened:  []string{landingURLConstant, checkoutURLConstant},
			landingComplete: true,
		},
		{
			name:           "accessibility_failure_closes_session",
			launcher:       newStubLauncher(),
			scanner:        stubScanner{failure: errors.New("axe crashed")},
			expectedStep:   audit.StepAccessibility,
			expectedTarget: "Landing",
			expectedOpened: []string{landingURLConstant},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			outputDirectory := filepath.Join(testInstance.TempDir(), "out")
			service := audit.NewService(audit.Dependencies{
				Browser:       testCase.launcher,
				Accessibility: testCase.scanner,
				Performance:   stubAuditor{score: 1},
				Clock:         newSteppingClock(),
			})

			outcome, runError := service.Run(context.Background(), twoTargetOptions(outputDirectory))
			require.Error(testInstance, runError)
			require.Equal(testInstance, audit.RunOutcome{}, outcome)

			var stepError audit.StepError
			require.True(testInstance, errors.As(runError, &stepError))
			require.Equal(testInstance, testCase.expectedStep, stepError.Step)
			require.Equal(testInstance, testCase.expectedTarget, stepError.Target)

			require.Equal(testInstance, testCase.expectedOpened, testCase.launcher.openedURLs)
			for _, closes := range testCase.launcher.closesPerURL {
				require.Equal(testInstance, 1, *closes)
			}

			require.NoFileExists(testInstance, filepath.Join(outputDirectory, "summary.json"))
			require.NoDirExists(testInstance, filepath.Join(outputDirectory, "history"))
			landingSummary := filepath.Join(outputDirectory, "pages", "01-landing", "summary.json")
			if testCase.landingComplete {
				require.FileExists(testInstance, landingSummary)
			} else {
				require.NoFileExists(testInstance, landingSummary)
			}
		})
	}
}

func TestServiceRunRejectsMissingCollaborators(testInstance *testing.T) {
	testCases := []struct {
		name         string
		dependencies audit.Dependencies
		expectedStep string
	}{
		{name: "browser", dependencies: audit.Dependencies{}, expectedStep: audit.StepBrowser},
		{name: "accessibility", dependencies: audit.Dependencies{Browser: newStubLauncher()}, expectedStep: audit.StepAccessibility},
		{name: "performance", dependencies: audit.Dependencies{Browser: newStubLauncher(), Accessibility: stubScanner{}}, expectedStep: audit.StepPerformance},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			_, runError := audit.NewService(testCase.dependencies).Run(context.Background(), twoTargetOptions(filepath.Join(testInstance.TempDir(), "out")))

			var configurationError audit.ConfigurationError
			require.True(testInstance, errors.As(runError, &configurationError))
			require.Contains(testInstance, configurationError.Reason, testCase.expectedStep)
		})
	}
}
