package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/temirov/pageaudit/internal/model"
)

const (
	passLabelConstant       = "PASS"
	failLabelConstant       = "FAIL"
	verdictTemplateConstant = " %d page(s), %d failed, %d accessibility violation(s), %d budget failure(s), %d visual failure(s)\n"
	summaryTemplateConstant = "Summary: %s\n"
	trendTemplateConstant   = "Trend: %s. %s\n"
)

// VerdictPrinter writes the closing pass or fail line of a run.
type VerdictPrinter struct {
	writer       io.Writer
	colorEnabled bool
}

// NewVerdictPrinter constructs a printer. Pass IsTerminal(writer) as colorEnabled
// unless the writer wraps a terminal indirectly.
func NewVerdictPrinter(writer io.Writer, colorEnabled bool) *VerdictPrinter {
	return &VerdictPrinter{writer: writer, colorEnabled: colorEnabled}
}

// Print writes the verdict, the summary location, and the trend status.
func (printer *VerdictPrinter) Print(envelope model.Envelope, summaryPath string) error {
	label := passLabelConstant
	labelColor := color.New(color.FgGreen, color.Bold)
	if envelope.OverallStatus == model.StepStatusFail {
		label = failLabelConstant
		labelColor = color.New(color.FgRed, color.Bold)
	}
	if printer.colorEnabled {
		labelColor.EnableColor()
	} else {
		labelColor.DisableColor()
	}

	rollup := model.Rollup{PageCount: len(envelope.Pages)}
	if envelope.Rollup != nil {
		rollup = *envelope.Rollup
	}

	if _, writeError := labelColor.Fprint(printer.writer, label); writeError != nil {
		return writeError
	}
	if _, writeError := fmt.Fprintf(printer.writer, verdictTemplateConstant, rollup.PageCount, rollup.FailedPages, rollup.A11yViolations, rollup.PerformanceBudgetFailures, rollup.VisualFailures); writeError != nil {
		return writeError
	}
	if _, writeError := fmt.Fprintf(printer.writer, summaryTemplateConstant, summaryPath); writeError != nil {
		return writeError
	}
	if envelope.Trend != nil {
		if _, writeError := fmt.Fprintf(printer.writer, trendTemplateConstant, envelope.Trend.Status, envelope.Trend.Message); writeError != nil {
			return writeError
		}
	}
	return nil
}

// IsTerminal reports whether writer is a terminal, including Cygwin and MSYS terminals.
func IsTerminal(writer io.Writer) bool {
	file, isFile := writer.(*os.File)
	if !isFile {
		return false
	}
	return isatty.IsTerminal(file.Fd()) || isatty.IsCygwinTerminal(file.Fd())
}
