package audit

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/temirov/pageaudit/internal/model"
	"github.com/temirov/pageaudit/internal/report"
	"github.com/temirov/pageaudit/internal/trend"
)

const (
	runStartedMessageConstant          = "Starting audit run"
	runCompletedMessageConstant        = "Completed audit run"
	snapshotWriteFailedMessageConstant = "Failed to write trend snapshot"
	snapshotPruneFailedMessageConstant = "Failed to prune trend snapshots"
	snapshotPrunedMessageConstant      = "Pruned trend snapshots"
	runIdentifierLogFieldConstant      = "run_id"
	targetCountLogFieldConstant        = "target_count"
	modeLogFieldConstant               = "mode"
	failedPagesLogFieldConstant        = "failed_pages"
	trendLogFieldConstant              = "trend_status"
	prunedCountLogFieldConstant        = "pruned_count"
	historyDirectoryLogFieldConstant   = "history_dir"
	resolveOutputReasonTemplate        = "unable to resolve output directory %q: %v"
	runLevelArtifactsTargetConstant    = "run"
)

// Dependencies enumerates the collaborators required by Service.
type Dependencies struct {
	Logger                 *zap.Logger
	Browser                BrowserLauncher
	Accessibility          AccessibilityScanner
	Performance            PerformanceAuditor
	Visual                 VisualComparator
	ReportRenderer         ReportRenderer
	Observer               StepObserver
	Clock                  Clock
	RunIdentifierGenerator func() string
}

// Service coordinates target resolution, per-target audits, rollup, trend
// computation, run-level artifacts, and snapshot retention.
type Service struct {
	dependencies Dependencies
}

// NewService constructs a Service using the provided dependencies.
func NewService(dependencies Dependencies) *Service {
	if dependencies.Logger == nil {
		dependencies.Logger = zap.NewNop()
	}
	if dependencies.ReportRenderer == nil {
		dependencies.ReportRenderer = report.NewHTMLRenderer()
	}
	if dependencies.Observer == nil {
		dependencies.Observer = noopStepObserver{}
	}
	if dependencies.Clock == nil {
		dependencies.Clock = SystemClock{}
	}
	if dependencies.RunIdentifierGenerator == nil {
		dependencies.RunIdentifierGenerator = uuid.NewString
	}
	return &Service{dependencies: dependencies}
}

// Run audits every resolved target sequentially and writes the run-level
// artifacts. A step failure aborts the run without writing run-level summaries;
// artifacts of targets that already completed remain on disk.
func (service *Service) Run(executionContext context.Context, options RunOptions) (RunOutcome, error) {
	logger := service.dependencies.Logger

	runRoot := strings.TrimSpace(options.OutputDirectory)
	if len(runRoot) > 0 {
		absoluteRoot, rootError := filepath.Abs(runRoot)
		if rootError != nil {
			return RunOutcome{}, UsageError{Reason: fmt.Sprintf(resolveOutputReasonTemplate, options.OutputDirectory, rootError)}
		}
		runRoot = absoluteRoot
	}

	targets, resolveError := ResolveTargets(TargetResolutionInput{
		URL:               options.URL,
		Targets:           options.Targets,
		OutputDirectory:   runRoot,
		BaselineDirectory: options.BaselineDirectory,
		PermittedRoot:     options.PermittedRoot,
	}, logger)
	if resolveError != nil {
		return RunOutcome{}, resolveError
	}

	if collaboratorError := service.validateCollaborators(options); collaboratorError != nil {
		return RunOutcome{}, collaboratorError
	}

	runIdentifier := service.dependencies.RunIdentifierGenerator()
	logger.Info(runStartedMessageConstant, zap.String(runIdentifierLogFieldConstant, runIdentifier), zap.Int(targetCountLogFieldConstant, len(targets)))

	runner := &Runner{
		browser:        service.dependencies.Browser,
		accessibility:  service.dependencies.Accessibility,
		performance:    service.dependencies.Performance,
		visual:         service.dependencies.Visual,
		reportRenderer: service.dependencies.ReportRenderer,
		observer:       service.dependencies.Observer,
		clock:          service.dependencies.Clock,
		logger:         logger,
	}

	startedAt := service.dependencies.Clock.Now()
	pages := make([]model.PageSummary, 0, len(targets))
	for _, target := range targets {
		page, targetError := runner.RunTarget(executionContext, target, runRoot, options)
		if targetError != nil {
			return RunOutcome{}, targetError
		}
		pages = append(pages, page)
	}

	envelope := buildRunEnvelope(runIdentifier, startedAt, service.dependencies.Clock.Now(), pages, options.Envelope)

	trendEngine := trend.NewEngine(trend.Options{Enabled: options.Trend.Enabled, HistoryDirectory: options.Trend.HistoryDirectory}, logger)
	trendSummary := trendEngine.Compute(envelope)
	envelope.Trend = &trendSummary

	artifactPaths, writeError := writeEnvelopeArtifacts(runRoot, envelope, options.Envelope, service.dependencies.ReportRenderer)
	if writeError != nil {
		return RunOutcome{}, StepError{Step: StepArtifacts, Target: runLevelArtifactsTargetConstant, Cause: writeError}
	}

	outcome := RunOutcome{
		Envelope:      envelope,
		SummaryPath:   artifactPaths.Summary,
		SummaryV2Path: artifactPaths.SummaryV2,
		ReportPath:    artifactPaths.Report,
	}

	if options.Trend.Enabled {
		outcome.SnapshotPath = service.persistSnapshot(envelope, options.Trend)
	}

	logger.Info(runCompletedMessageConstant,
		zap.String(runIdentifierLogFieldConstant, runIdentifier),
		zap.String(modeLogFieldConstant, string(envelope.Mode)),
		zap.String(statusLogFieldConstant, string(envelope.OverallStatus)),
		zap.Int(failedPagesLogFieldConstant, envelope.Rollup.FailedPages),
		zap.String(trendLogFieldConstant, string(trendSummary.Status)),
	)

	return outcome, nil
}

// persistSnapshot writes and prunes history. Failures are logged and never fail the run.
func (service *Service) persistSnapshot(envelope model.Envelope, trendOptions TrendOptions) string {
	logger := service.dependencies.Logger
	store := trend.NewStore(trendOptions.HistoryDirectory, trendOptions.MaxSnapshots, service.dependencies.Clock)

	snapshotPath, snapshotError := store.Write(envelope)
	if snapshotError != nil {
		logger.Warn(snapshotWriteFailedMessageConstant, zap.String(historyDirectoryLogFieldConstant, trendOptions.HistoryDirectory), zap.Error(snapshotError))
		return ""
	}

	removedPaths, pruneError := store.Prune()
	if pruneError != nil {
		logger.Warn(snapshotPruneFailedMessageConstant, zap.String(historyDirectoryLogFieldConstant, trendOptions.HistoryDirectory), zap.Error(pruneError))
		return snapshotPath
	}
	if len(removedPaths) > 0 {
		logger.Debug(snapshotPrunedMessageConstant, zap.Int(prunedCountLogFieldConstant, len(removedPaths)))
	}
	return snapshotPath
}

func (service *Service) validateCollaborators(options RunOptions) error {
	if service.dependencies.Browser == nil {
		return ConfigurationError{Reason: fmt.Sprintf(missingCollaboratorReasonTemplateConstant, StepBrowser)}
	}
	if options.Accessibility.Enabled && service.dependencies.Accessibility == nil {
		return ConfigurationError{Reason: fmt.Sprintf(missingCollaboratorReasonTemplateConstant, StepAccessibility)}
	}
	if options.Performance.Enabled && service.dependencies.Performance == nil {
		return ConfigurationError{Reason: fmt.Sprintf(missingCollaboratorReasonTemplateConstant, StepPerformance)}
	}
	if options.Visual.Enabled && service.dependencies.Visual == nil {
		return ConfigurationError{Reason: fmt.Sprintf(missingCollaboratorReasonTemplateConstant, StepVisual)}
	}
	return nil
}
