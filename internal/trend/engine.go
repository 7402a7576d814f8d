package trend

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/temirov/pageaudit/internal/model"
)

const (
	pageKeySeparatorConstant               = "::"
	disabledMessageConstant                = "Trend analysis is disabled."
	noPreviousMessageTemplateConstant      = "No previous snapshot found in %s."
	listFailedMessageTemplateConstant      = "Unable to list history in %s: %v"
	corruptPreviousMessageTemplateConstant = "No valid previous snapshot found; skipped %d unreadable snapshot(s)."
	incompatibleMessageTemplateConstant    = "No compatible previous snapshot found; skipped %d snapshot(s) with an incompatible schema."
	readyMessageTemplateConstant           = "Compared against %s."
	trendComputedLogMessageConstant        = "Computed trend"
	trendStatusLogFieldConstant            = "trend_status"
	historyDirectoryLogFieldConstant       = "history_dir"
	corruptSightingsLogFieldConstant       = "corrupt_snapshots"
	incompatibleSightingsLogFieldConstant  = "incompatible_snapshots"
)

// Options configures the trend engine.
type Options struct {
	Enabled          bool
	HistoryDirectory string
}

// Engine computes trend deltas against the newest valid snapshot.
type Engine struct {
	options       Options
	readSnapshot  SnapshotReader
	listSnapshots func(directory string) ([]string, error)
	logger        *zap.Logger
}

// NewEngine constructs an Engine reading snapshots from the filesystem.
func NewEngine(options Options, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		options:       options,
		readSnapshot:  os.ReadFile,
		listSnapshots: ListSnapshots,
		logger:        logger,
	}
}

// Compute classifies the history directory and, when a valid previous snapshot
// exists, returns run-level and per-page deltas for the current run envelope.
// History problems degrade to a non-ready status and are never returned as errors.
func (engine *Engine) Compute(current model.Envelope) model.TrendDeltaSummary {
	if !engine.options.Enabled {
		return model.TrendDeltaSummary{
			Status:  model.TrendStatusDisabled,
			Message: disabledMessageConstant,
			Pages:   []model.PageDelta{},
		}
	}

	historyDirectory := engine.options.HistoryDirectory
	summary := model.TrendDeltaSummary{
		HistoryDir: historyDirectory,
		Pages:      []model.PageDelta{},
	}

	ascendingPaths, listError := engine.listSnapshots(historyDirectory)
	if listError != nil {
		summary.Status = model.TrendStatusNoPrevious
		summary.Message = fmt.Sprintf(listFailedMessageTemplateConstant, historyDirectory, listError)
		engine.logOutcome(summary, scanResult{})
		return summary
	}

	scanned := scanSnapshots(reversed(ascendingPaths), engine.readSnapshot)
	switch {
	case scanned.match != nil:
		previousPath := scanned.match.path
		summary.Status = model.TrendStatusReady
		summary.PreviousSnapshotPath = &previousPath
		summary.Message = fmt.Sprintf(readyMessageTemplateConstant, previousPath)
		metrics := computeRunMetrics(current, scanned.match.envelope)
		summary.Metrics = &metrics
		summary.Pages = computePageDeltas(current.Pages, scanned.match.envelope.Pages)
	case scanned.corruptSightings > 0:
		summary.Status = model.TrendStatusCorruptPrevious
		summary.Message = fmt.Sprintf(corruptPreviousMessageTemplateConstant, scanned.corruptSightings)
	case scanned.incompatibleSightings > 0:
		summary.Status = model.TrendStatusIncompatiblePrevious
		summary.Message = fmt.Sprintf(incompatibleMessageTemplateConstant, scanned.incompatibleSightings)
	default:
		summary.Status = model.TrendStatusNoPrevious
		summary.Message = fmt.Sprintf(noPreviousMessageTemplateConstant, historyDirectory)
	}

	engine.logOutcome(summary, scanned)
	return summary
}

func (engine *Engine) logOutcome(summary model.TrendDeltaSummary, scanned scanResult) {
	engine.logger.Debug(trendComputedLogMessageConstant,
		zap.String(trendStatusLogFieldConstant, string(summary.Status)),
		zap.String(historyDirectoryLogFieldConstant, summary.HistoryDir),
		zap.Int(corruptSightingsLogFieldConstant, scanned.corruptSightings),
		zap.Int(incompatibleSightingsLogFieldConstant, scanned.incompatibleSightings),
	)
}

func computeRunMetrics(current model.Envelope, previous model.Envelope) model.TrendMetrics {
	currentRollup := rollupOrEmpty(current.Rollup)
	previousRollup := rollupOrEmpty(previous.Rollup)

	return model.TrendMetrics{
		OverallStatusChanged:      current.OverallStatus != previous.OverallStatus,
		PreviousOverallStatus:     previous.OverallStatus,
		DurationMs:                NewNumericDelta(float64(current.DurationMs), floatPointer(float64(previous.DurationMs))),
		FailedPages:               NewNumericDelta(float64(currentRollup.FailedPages), floatPointer(float64(previousRollup.FailedPages))),
		A11yViolations:            NewNumericDelta(float64(currentRollup.A11yViolations), floatPointer(float64(previousRollup.A11yViolations))),
		PerformanceBudgetFailures: NewNumericDelta(float64(currentRollup.PerformanceBudgetFailures), floatPointer(float64(previousRollup.PerformanceBudgetFailures))),
		VisualFailures:            NewNumericDelta(float64(currentRollup.VisualFailures), floatPointer(float64(previousRollup.VisualFailures))),
	}
}

func computePageDeltas(currentPages []model.PageSummary, previousPages []model.PageSummary) []model.PageDelta {
	previousByKey := make(map[string]model.PageSummary, len(previousPages))
	for _, previousPage := range previousPages {
		previousByKey[PageKey(previousPage.Name, previousPage.URL)] = previousPage
	}

	deltas := make([]model.PageDelta, 0, len(currentPages))
	for _, currentPage := range currentPages {
		key := PageKey(currentPage.Name, currentPage.URL)
		delta := model.PageDelta{
			Key:           key,
			Name:          currentPage.Name,
			URL:           currentPage.URL,
			CurrentStatus: currentPage.OverallStatus,
		}

		currentViolations := float64(currentPage.Metrics.A11yViolations)
		currentScore := valueOrZero(currentPage.Metrics.PerformanceScore)
		currentMismatch := valueOrZero(currentPage.Metrics.MaxMismatchRatio)

		previousPage, matched := previousByKey[key]
		if !matched {
			delta.A11yViolations = unmatchedNumericDelta(currentViolations)
			delta.PerformanceScore = unmatchedNumericDelta(currentScore)
			delta.MaxMismatchRatio = unmatchedNumericDelta(currentMismatch)
			deltas = append(deltas, delta)
			continue
		}

		delta.PreviousStatus = previousPage.OverallStatus
		delta.StatusChanged = currentPage.OverallStatus != previousPage.OverallStatus
		delta.A11yViolations = NewNumericDelta(currentViolations, floatPointer(float64(previousPage.Metrics.A11yViolations)))
		delta.PerformanceScore = NewNumericDelta(currentScore, floatPointer(valueOrZero(previousPage.Metrics.PerformanceScore)))
		delta.MaxMismatchRatio = NewNumericDelta(currentMismatch, floatPointer(valueOrZero(previousPage.Metrics.MaxMismatchRatio)))
		deltas = append(deltas, delta)
	}
	return deltas
}

// PageKey is the composite key used to match pages across runs.
func PageKey(name string, url string) string {
	return name + pageKeySeparatorConstant + url
}

func rollupOrEmpty(rollup *model.Rollup) model.Rollup {
	if rollup == nil {
		return model.Rollup{}
	}
	return *rollup
}

func reversed(paths []string) []string {
	reversedPaths := make([]string, len(paths))
	for pathIndex, path := range paths {
		reversedPaths[len(paths)-1-pathIndex] = path
	}
	return reversedPaths
}
