package performance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/temirov/pageaudit/internal/execshell"
	"github.com/temirov/pageaudit/internal/model"
	"github.com/temirov/pageaudit/internal/retry"
)

const (
	reportFileNameConstant              = "lighthouse.json"
	outputFormatArgumentConstant        = "--output=json"
	outputPathArgumentTemplateConstant  = "--output-path=%s"
	onlyCategoriesArgumentConstant      = "--only-categories=performance"
	quietArgumentConstant               = "--quiet"
	chromeFlagsArgumentTemplateConstant = "--chrome-flags=%s"
	chromeFlagsSeparatorConstant        = " "
	reportDirectoryPermissionsConstant  = 0o755
	lighthouseOperationNameConstant     = "lighthouse audit"
	performanceCategoryKeyConstant      = "performance"
	largestContentfulPaintAuditConstant = "largest-contentful-paint"
	cumulativeLayoutShiftAuditConstant  = "cumulative-layout-shift"
	totalBlockingTimeAuditConstant      = "total-blocking-time"
	createDirectoryErrorTemplate        = "unable to create performance output directory %s: %w"
	readReportErrorTemplateConstant     = "unable to read lighthouse report %s: %w"
	parseReportErrorTemplateConstant    = "unable to parse lighthouse report: %w"
	missingScoreErrorMessageConstant    = "lighthouse report has no performance score"
)

// LighthouseExecutor runs the Lighthouse CLI.
type LighthouseExecutor interface {
	ExecuteLighthouse(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// Configuration tunes the Lighthouse invocation.
type Configuration struct {
	ChromeFlags []string
}

// LighthouseAuditor audits a URL with Lighthouse.
type LighthouseAuditor struct {
	executor      LighthouseExecutor
	configuration Configuration
	retryPolicy   *retry.Policy
}

// NewLighthouseAuditor constructs a LighthouseAuditor. A nil retry policy performs a single attempt.
func NewLighthouseAuditor(executor LighthouseExecutor, configuration Configuration, retryPolicy *retry.Policy) *LighthouseAuditor {
	if retryPolicy == nil {
		retryPolicy = retry.NewPolicy(retry.ConstantStrategy{}, 1, nil)
	}
	return &LighthouseAuditor{executor: executor, configuration: configuration, retryPolicy: retryPolicy}
}

// Audit runs Lighthouse against targetURL, writes lighthouse.json into
// outputDirectory, and evaluates the extracted metrics against budgets.
func (auditor *LighthouseAuditor) Audit(executionContext context.Context, targetURL string, budgets model.PerformanceBudgets, outputDirectory string) (model.PerformanceResult, error) {
	if directoryError := os.MkdirAll(outputDirectory, reportDirectoryPermissionsConstant); directoryError != nil {
		return model.PerformanceResult{}, fmt.Errorf(createDirectoryErrorTemplate, outputDirectory, directoryError)
	}
	reportPath := filepath.Join(outputDirectory, reportFileNameConstant)

	arguments := []string{
		targetURL,
		outputFormatArgumentConstant,
		fmt.Sprintf(outputPathArgumentTemplateConstant, reportPath),
		onlyCategoriesArgumentConstant,
		quietArgumentConstant,
	}
	if len(auditor.configuration.ChromeFlags) > 0 {
		arguments = append(arguments, fmt.Sprintf(chromeFlagsArgumentTemplateConstant, strings.Join(auditor.configuration.ChromeFlags, chromeFlagsSeparatorConstant)))
	}

	runError := auditor.retryPolicy.Do(executionContext, lighthouseOperationNameConstant, func(attemptContext context.Context) error {
		_, executionError := auditor.executor.ExecuteLighthouse(attemptContext, execshell.CommandDetails{Arguments: arguments})
		return executionError
	})
	if runError != nil {
		return model.PerformanceResult{}, runError
	}

	reportContent, readError := os.ReadFile(reportPath)
	if readError != nil {
		return model.PerformanceResult{}, fmt.Errorf(readReportErrorTemplateConstant, reportPath, readError)
	}
	metrics, parseError := ParseReport(reportContent)
	if parseError != nil {
		return model.PerformanceResult{}, parseError
	}

	return model.PerformanceResult{
		Metrics:          metrics,
		Budgets:          budgets,
		PerDimensionPass: EvaluateBudgets(metrics, budgets),
		ReportPath:       reportPath,
	}, nil
}

type lighthouseReport struct {
	Categories map[string]struct {
		Score *float64 `json:"score"`
	} `json:"categories"`
	Audits map[string]struct {
		NumericValue *float64 `json:"numericValue"`
	} `json:"audits"`
}

// ParseReport extracts the performance score (0 to 1) and core metrics from a
// Lighthouse JSON report. Metrics absent from the report are omitted.
func ParseReport(content []byte) (map[string]float64, error) {
	var report lighthouseReport
	if decodeError := json.Unmarshal(content, &report); decodeError != nil {
		return nil, fmt.Errorf(parseReportErrorTemplateConstant, decodeError)
	}

	category, categoryPresent := report.Categories[performanceCategoryKeyConstant]
	if !categoryPresent || category.Score == nil {
		return nil, fmt.Errorf(parseReportErrorTemplateConstant, errors.New(missingScoreErrorMessageConstant))
	}

	metrics := map[string]float64{model.PerformanceMetricScore: *category.Score}
	auditMetrics := map[string]string{
		largestContentfulPaintAuditConstant: model.PerformanceMetricLCPMs,
		cumulativeLayoutShiftAuditConstant:  model.PerformanceMetricCLS,
		totalBlockingTimeAuditConstant:      model.PerformanceMetricTBTMs,
	}
	for auditName, metricName := range auditMetrics {
		auditEntry, auditPresent := report.Audits[auditName]
		if auditPresent && auditEntry.NumericValue != nil {
			metrics[metricName] = *auditEntry.NumericValue
		}
	}
	return metrics, nil
}

// EvaluateBudgets reports pass or fail for every configured budget dimension.
// Unset budgets are not evaluated; a configured budget with a missing metric fails.
func EvaluateBudgets(metrics map[string]float64, budgets model.PerformanceBudgets) map[string]bool {
	results := make(map[string]bool)
	if budgets.MinScore != nil {
		score, present := metrics[model.PerformanceMetricScore]
		results[model.PerformanceMetricScore] = present && score >= *budgets.MinScore
	}
	evaluateMaximum := func(metricName string, maximum *float64) {
		if maximum == nil {
			return
		}
		value, present := metrics[metricName]
		results[metricName] = present && value <= *maximum
	}
	evaluateMaximum(model.PerformanceMetricLCPMs, budgets.MaxLCPMs)
	evaluateMaximum(model.PerformanceMetricCLS, budgets.MaxCLS)
	evaluateMaximum(model.PerformanceMetricTBTMs, budgets.MaxTBTMs)
	return results
}
