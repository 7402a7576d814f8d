package accessibility

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/temirov/pageaudit/internal/audit"
	"github.com/temirov/pageaudit/internal/model"
)

const (
	reportFileNameConstant             = "accessibility.json"
	reportDirectoryPermissionsConstant = 0o755
	reportFilePermissionsConstant      = 0o644
	unknownImpactConstant              = "unknown"
	injectionScriptTemplateConstant    = "() => {\n%s\n;return typeof window.axe !== 'undefined';\n}"
	runScriptConstant                  = "() => window.axe.run(document, { resultTypes: ['violations'] }).then(results => ({ violations: results.violations }))"
	missingScriptMessageConstant       = "axe-core script path is not configured"
	readScriptErrorTemplateConstant    = "unable to read axe-core script %s: %w"
	injectErrorTemplateConstant        = "unable to inject axe-core: %w"
	injectionFailedMessageConstant     = "axe-core did not register on the page"
	runErrorTemplateConstant           = "unable to run axe-core: %w"
	decodeErrorTemplateConstant        = "unable to decode axe-core results: %w"
	writeReportErrorTemplateConstant   = "unable to write accessibility report %s: %w"
	reportJSONIndentConstant           = "  "
)

// ErrScriptNotConfigured indicates that no axe-core script path was supplied.
var ErrScriptNotConfigured = errors.New(missingScriptMessageConstant)

// Violation is the subset of an axe-core violation kept in reports.
type Violation struct {
	ID          string            `json:"id"`
	Impact      string            `json:"impact"`
	Description string            `json:"description"`
	HelpURL     string            `json:"helpUrl"`
	Nodes       []json.RawMessage `json:"nodes"`
}

type axeResults struct {
	Violations []Violation `json:"violations"`
}

// AxeScanner injects axe-core into a page and runs it.
type AxeScanner struct {
	script string
}

// NewAxeScanner loads the axe-core script from scriptPath.
func NewAxeScanner(scriptPath string) (*AxeScanner, error) {
	trimmedPath := strings.TrimSpace(scriptPath)
	if len(trimmedPath) == 0 {
		return nil, ErrScriptNotConfigured
	}
	content, readError := os.ReadFile(trimmedPath)
	if readError != nil {
		return nil, fmt.Errorf(readScriptErrorTemplateConstant, trimmedPath, readError)
	}
	return NewAxeScannerFromSource(string(content)), nil
}

// NewAxeScannerFromSource constructs a scanner from axe-core source text.
func NewAxeScannerFromSource(script string) *AxeScanner {
	return &AxeScanner{script: script}
}

// Scan injects axe-core, runs it against the document, writes accessibility.json
// into outputDirectory, and returns violation counts grouped by impact.
func (scanner *AxeScanner) Scan(executionContext context.Context, page audit.PageHandle, outputDirectory string) (model.AccessibilityResult, error) {
	injected, injectError := page.Evaluate(executionContext, fmt.Sprintf(injectionScriptTemplateConstant, scanner.script), false)
	if injectError != nil {
		return model.AccessibilityResult{}, fmt.Errorf(injectErrorTemplateConstant, injectError)
	}
	var registered bool
	if decodeError := json.Unmarshal(injected, &registered); decodeError != nil || !registered {
		return model.AccessibilityResult{}, errors.New(injectionFailedMessageConstant)
	}

	rawResults, runError := page.Evaluate(executionContext, runScriptConstant, true)
	if runError != nil {
		return model.AccessibilityResult{}, fmt.Errorf(runErrorTemplateConstant, runError)
	}

	var results axeResults
	if decodeError := json.Unmarshal(rawResults, &results); decodeError != nil {
		return model.AccessibilityResult{}, fmt.Errorf(decodeErrorTemplateConstant, decodeError)
	}

	reportPath := filepath.Join(outputDirectory, reportFileNameConstant)
	if writeError := writeReport(reportPath, results); writeError != nil {
		return model.AccessibilityResult{}, writeError
	}

	return Summarize(results.Violations, reportPath), nil
}

// Summarize counts violations by impact.
func Summarize(violations []Violation, reportPath string) model.AccessibilityResult {
	countsBySeverity := make(map[string]int)
	for _, violation := range violations {
		impact := strings.TrimSpace(violation.Impact)
		if len(impact) == 0 {
			impact = unknownImpactConstant
		}
		countsBySeverity[impact]++
	}
	return model.AccessibilityResult{
		ViolationCount:   len(violations),
		CountsBySeverity: countsBySeverity,
		ReportPath:       reportPath,
	}
}

func writeReport(reportPath string, results axeResults) error {
	if directoryError := os.MkdirAll(filepath.Dir(reportPath), reportDirectoryPermissionsConstant); directoryError != nil {
		return fmt.Errorf(writeReportErrorTemplateConstant, reportPath, directoryError)
	}
	encoded, encodeError := json.MarshalIndent(results, "", reportJSONIndentConstant)
	if encodeError != nil {
		return fmt.Errorf(writeReportErrorTemplateConstant, reportPath, encodeError)
	}
	if writeError := os.WriteFile(reportPath, encoded, reportFilePermissionsConstant); writeError != nil {
		return fmt.Errorf(writeReportErrorTemplateConstant, reportPath, writeError)
	}
	return nil
}
