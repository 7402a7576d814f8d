package audit

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/temirov/pageaudit/internal/model"
)

const (
	summaryFileNameConstant   = "summary.json"
	summaryV2FileNameConstant = "summary.v2.json"
	reportFileNameConstant    = "report.html"
)

// EnvelopeOptions carries the schema pointers stamped onto envelopes. Empty
// fields fall back to the model.Default* schema constants.
type EnvelopeOptions struct {
	V1SchemaURI     string
	V1SchemaVersion string
	V2SchemaURI     string
	V2SchemaVersion string
}

// DefaultEnvelopeOptions returns the documented schema defaults.
func DefaultEnvelopeOptions() EnvelopeOptions {
	return EnvelopeOptions{
		V1SchemaURI:     model.DefaultV1SchemaURI,
		V1SchemaVersion: model.DefaultV1SchemaVersion,
		V2SchemaURI:     model.DefaultV2SchemaURI,
		V2SchemaVersion: model.DefaultV2SchemaVersion,
	}
}

func (options EnvelopeOptions) withDefaults() EnvelopeOptions {
	defaults := DefaultEnvelopeOptions()
	resolved := options
	if len(strings.TrimSpace(resolved.V1SchemaURI)) == 0 {
		resolved.V1SchemaURI = defaults.V1SchemaURI
	}
	if len(strings.TrimSpace(resolved.V1SchemaVersion)) == 0 {
		resolved.V1SchemaVersion = defaults.V1SchemaVersion
	}
	if len(strings.TrimSpace(resolved.V2SchemaURI)) == 0 {
		resolved.V2SchemaURI = defaults.V2SchemaURI
	}
	if len(strings.TrimSpace(resolved.V2SchemaVersion)) == 0 {
		resolved.V2SchemaVersion = defaults.V2SchemaVersion
	}
	return resolved
}

// ProjectV1 derives the v1-compatible view of a v2 envelope. Fields introduced by
// v2 are dropped; status, steps, artifacts, and results are preserved.
func ProjectV1(envelope model.Envelope, options EnvelopeOptions) model.Envelope {
	resolvedOptions := options.withDefaults()
	return model.Envelope{
		Schema:        resolvedOptions.V1SchemaURI,
		SchemaVersion: resolvedOptions.V1SchemaVersion,
		Target:        envelope.Target,
		StartedAt:     envelope.StartedAt,
		CompletedAt:   envelope.CompletedAt,
		DurationMs:    envelope.DurationMs,
		OverallStatus: envelope.OverallStatus,
		Steps:         envelope.Steps,
		Artifacts:     envelope.Artifacts,
		Results:       envelope.Results,
	}
}

// pageEnvelopeInput gathers everything needed to build a per-target v2 envelope.
type pageEnvelopeInput struct {
	target          AuditTarget
	runRoot         string
	startedAt       time.Time
	completedAt     time.Time
	status          StatusOutcome
	accessibility   *model.AccessibilityResult
	performance     *model.PerformanceResult
	visual          *model.VisualResult
	screenshots     []model.Screenshot
	signals         model.RuntimeSignals
	stepDurationsMs map[string]int64
	options         EnvelopeOptions
}

func buildPageEnvelope(input pageEnvelopeInput) model.Envelope {
	resolvedOptions := input.options.withDefaults()
	signals := input.signals

	results := relativizeResults(input.runRoot, model.Results{
		Accessibility: input.accessibility,
		Performance:   input.performance,
		Visual:        input.visual,
		Screenshots:   input.screenshots,
	})

	return model.Envelope{
		Schema:        resolvedOptions.V2SchemaURI,
		SchemaVersion: resolvedOptions.V2SchemaVersion,
		Target: &model.TargetInfo{
			Index: input.target.Index,
			Name:  input.target.Name,
			URL:   input.target.URL,
		},
		StartedAt:      input.startedAt,
		CompletedAt:    input.completedAt,
		DurationMs:     durationMilliseconds(input.startedAt, input.completedAt),
		OverallStatus:  input.status.Overall,
		Steps:          input.status.Steps,
		Artifacts:      pageArtifacts(input.runRoot, input.target.OutputDirectory, results),
		Results:        &results,
		RuntimeSignals: &signals,
		Diagnostics:    &model.Diagnostics{StepDurationsMs: input.stepDurationsMs},
	}
}

// pageSummaryFromEnvelope condenses a per-target v2 envelope into its page entry.
func pageSummaryFromEnvelope(envelope model.Envelope) model.PageSummary {
	details := envelope
	summary := model.PageSummary{
		StartedAt:     envelope.StartedAt,
		CompletedAt:   envelope.CompletedAt,
		DurationMs:    envelope.DurationMs,
		OverallStatus: envelope.OverallStatus,
		Steps:         envelope.Steps,
		Artifacts:     envelope.Artifacts,
		Details:       &details,
	}
	if envelope.Target != nil {
		summary.Index = envelope.Target.Index
		summary.Name = envelope.Target.Name
		summary.URL = envelope.Target.URL
	}
	if envelope.Results != nil {
		summary.Metrics = pageMetrics(*envelope.Results)
	}
	return summary
}

func pageMetrics(results model.Results) model.PageMetrics {
	metrics := model.PageMetrics{}
	if results.Accessibility != nil {
		metrics.A11yViolations = results.Accessibility.ViolationCount
	}
	if results.Performance != nil {
		if score, present := results.Performance.Score(); present {
			metrics.PerformanceScore = &score
		}
		metrics.PerformanceBudgetFailures = results.Performance.FailedBudgetCount()
	}
	if results.Visual != nil {
		maximumRatio := results.Visual.MaxMismatchRatio()
		metrics.MaxMismatchRatio = &maximumRatio
		metrics.VisualFailed = results.Visual.AggregateFailed
	}
	return metrics
}

// buildRunEnvelope assembles the run-level v2 envelope from ordered page summaries.
func buildRunEnvelope(runIdentifier string, startedAt time.Time, completedAt time.Time, pages []model.PageSummary, options EnvelopeOptions) model.Envelope {
	resolvedOptions := options.withDefaults()
	mode := model.ModeSingle
	if len(pages) > 1 {
		mode = model.ModeMulti
	}
	rollup := ComputeRollup(pages)

	envelope := model.Envelope{
		Schema:        resolvedOptions.V2SchemaURI,
		SchemaVersion: resolvedOptions.V2SchemaVersion,
		RunID:         runIdentifier,
		Mode:          mode,
		StartedAt:     startedAt,
		CompletedAt:   completedAt,
		DurationMs:    durationMilliseconds(startedAt, completedAt),
		OverallStatus: OverallStatus(pages),
		Steps:         FoldSteps(pages),
		Artifacts: model.Artifacts{
			Summary:   summaryFileNameConstant,
			SummaryV2: summaryV2FileNameConstant,
			Report:    reportFileNameConstant,
		},
		Rollup: &rollup,
		Pages:  pages,
	}
	if len(pages) == 1 {
		envelope = mergeSinglePageDetails(envelope, pages[0])
	}
	return envelope
}

// mergeSinglePageDetails copies the sole page's details into the run envelope. Both
// envelopes share a directory in single mode, so the run-level files must stay a
// superset of the per-target files.
func mergeSinglePageDetails(envelope model.Envelope, page model.PageSummary) model.Envelope {
	envelope.Artifacts = page.Artifacts
	if page.Details == nil {
		return envelope
	}
	envelope.Target = page.Details.Target
	envelope.Results = page.Details.Results
	envelope.RuntimeSignals = page.Details.RuntimeSignals
	envelope.Diagnostics = page.Details.Diagnostics
	return envelope
}

func pageArtifacts(runRoot string, outputDirectory string, results model.Results) model.Artifacts {
	artifacts := model.Artifacts{
		Summary:   relativeArtifactPath(runRoot, filepath.Join(outputDirectory, summaryFileNameConstant)),
		SummaryV2: relativeArtifactPath(runRoot, filepath.Join(outputDirectory, summaryV2FileNameConstant)),
		Report:    relativeArtifactPath(runRoot, filepath.Join(outputDirectory, reportFileNameConstant)),
	}
	for _, screenshot := range results.Screenshots {
		artifacts.Screenshots = append(artifacts.Screenshots, screenshot.Path)
	}
	if results.Accessibility != nil {
		artifacts.AccessibilityReport = results.Accessibility.ReportPath
	}
	if results.Performance != nil {
		artifacts.PerformanceReport = results.Performance.ReportPath
	}
	if results.Visual != nil {
		for _, shot := range results.Visual.PerShotResults {
			if len(shot.DiffPath) > 0 {
				artifacts.VisualDiffs = append(artifacts.VisualDiffs, shot.DiffPath)
			}
		}
	}
	return artifacts
}

// relativizeResults copies results with every artifact path made relative to the run root.
func relativizeResults(runRoot string, results model.Results) model.Results {
	relativized := model.Results{}
	if results.Accessibility != nil {
		accessibility := *results.Accessibility
		accessibility.ReportPath = relativeArtifactPath(runRoot, accessibility.ReportPath)
		relativized.Accessibility = &accessibility
	}
	if results.Performance != nil {
		performance := *results.Performance
		performance.ReportPath = relativeArtifactPath(runRoot, performance.ReportPath)
		relativized.Performance = &performance
	}
	if results.Visual != nil {
		visual := *results.Visual
		visual.PerShotResults = make([]model.ShotComparison, 0, len(results.Visual.PerShotResults))
		for _, shot := range results.Visual.PerShotResults {
			shot.ScreenshotPath = relativeArtifactPath(runRoot, shot.ScreenshotPath)
			shot.BaselinePath = relativeArtifactPath(runRoot, shot.BaselinePath)
			shot.DiffPath = relativeArtifactPath(runRoot, shot.DiffPath)
			visual.PerShotResults = append(visual.PerShotResults, shot)
		}
		relativized.Visual = &visual
	}
	for _, screenshot := range results.Screenshots {
		screenshot.Path = relativeArtifactPath(runRoot, screenshot.Path)
		relativized.Screenshots = append(relativized.Screenshots, screenshot)
	}
	return relativized
}

// relativeArtifactPath expresses path relative to runRoot using forward slashes.
// Paths that cannot be made relative are returned unchanged.
func relativeArtifactPath(runRoot string, path string) string {
	if len(path) == 0 {
		return path
	}
	relativePath, relativeError := filepath.Rel(runRoot, path)
	if relativeError != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(relativePath)
}

func durationMilliseconds(startedAt time.Time, completedAt time.Time) int64 {
	return completedAt.Sub(startedAt).Milliseconds()
}
