package report

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/temirov/pageaudit/internal/model"
)

const (
	documentTemplateConstant         = "<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n<meta charset=\"utf-8\">\n<title>%s</title>\n<style>body{font-family:sans-serif;max-width:960px;margin:2rem auto;padding:0 1rem}table{border-collapse:collapse}td,th{border:1px solid #ccc;padding:.25rem .5rem}.pass{color:#1a7f37}.fail{color:#cf222e}.skipped{color:#6e7781}</style>\n</head>\n<body>\n%s</body>\n</html>\n"
	runTitleConstant                 = "Page audit report"
	targetTitleTemplateConstant      = "Page audit report: %s"
	convertMarkdownErrorTemplate     = "unable to convert report markdown: %w"
	tableCellPipeReplacementConstant = "\\|"
	notAvailableConstant             = "n/a"
	floatFormatConstant              = "%.4f"
)

// HTMLRenderer renders envelopes to standalone HTML documents.
type HTMLRenderer struct {
	markdown goldmark.Markdown
}

// NewHTMLRenderer constructs a renderer with GitHub-flavored Markdown tables enabled.
func NewHTMLRenderer() *HTMLRenderer {
	return &HTMLRenderer{markdown: goldmark.New(goldmark.WithExtensions(extension.GFM))}
}

// Render converts the envelope into an HTML report.
func (renderer *HTMLRenderer) Render(envelope model.Envelope) ([]byte, error) {
	title := runTitleConstant
	if envelope.Target != nil {
		title = fmt.Sprintf(targetTitleTemplateConstant, envelope.Target.Name)
	}

	markdownSource := BuildMarkdown(title, envelope)
	var body bytes.Buffer
	if convertError := renderer.markdown.Convert([]byte(markdownSource), &body); convertError != nil {
		return nil, fmt.Errorf(convertMarkdownErrorTemplate, convertError)
	}

	return []byte(fmt.Sprintf(documentTemplateConstant, html.EscapeString(title), body.String())), nil
}

// BuildMarkdown composes the Markdown source of a report.
func BuildMarkdown(title string, envelope model.Envelope) string {
	var builder strings.Builder
	fmt.Fprintf(&builder, "# %s\n\n", title)
	if envelope.Target != nil {
		fmt.Fprintf(&builder, "Target: <%s>\n\n", envelope.Target.URL)
	}
	fmt.Fprintf(&builder, "**Overall status:** %s\n\n", envelope.OverallStatus)
	fmt.Fprintf(&builder, "Started %s, completed %s (%d ms).\n\n", envelope.StartedAt.UTC().Format("2006-01-02 15:04:05 MST"), envelope.CompletedAt.UTC().Format("2006-01-02 15:04:05 MST"), envelope.DurationMs)

	writeSteps(&builder, envelope.Steps)
	if envelope.Rollup != nil {
		writeRollup(&builder, *envelope.Rollup)
	}
	if len(envelope.Pages) > 0 {
		writePages(&builder, envelope.Pages)
	}
	if envelope.Results != nil {
		writeResults(&builder, *envelope.Results)
	}
	if envelope.RuntimeSignals != nil {
		writeRuntimeSignals(&builder, *envelope.RuntimeSignals)
	}
	if envelope.Trend != nil {
		writeTrend(&builder, *envelope.Trend)
	}
	return builder.String()
}

func writeSteps(builder *strings.Builder, steps model.Steps) {
	builder.WriteString("## Steps\n\n| Step | Status |\n| --- | --- |\n")
	fmt.Fprintf(builder, "| Browser | %s |\n", steps.Browser)
	fmt.Fprintf(builder, "| Accessibility | %s |\n", steps.Accessibility)
	fmt.Fprintf(builder, "| Performance | %s |\n", steps.Performance)
	fmt.Fprintf(builder, "| Visual | %s |\n\n", steps.Visual)
}

func writeRollup(builder *strings.Builder, rollup model.Rollup) {
	builder.WriteString("## Rollup\n\n| Metric | Value |\n| --- | --- |\n")
	fmt.Fprintf(builder, "| Pages | %d |\n", rollup.PageCount)
	fmt.Fprintf(builder, "| Failed pages | %d |\n", rollup.FailedPages)
	fmt.Fprintf(builder, "| Accessibility violations | %d |\n", rollup.A11yViolations)
	fmt.Fprintf(builder, "| Performance budget failures | %d |\n", rollup.PerformanceBudgetFailures)
	fmt.Fprintf(builder, "| Visual failures | %d |\n\n", rollup.VisualFailures)
}

func writePages(builder *strings.Builder, pages []model.PageSummary) {
	builder.WriteString("## Pages\n\n| # | Name | URL | Status | A11y violations | Performance score | Max mismatch | Report |\n| --- | --- | --- | --- | --- | --- | --- | --- |\n")
	for _, page := range pages {
		fmt.Fprintf(builder, "| %d | %s | %s | %s | %d | %s | %s | [report](%s) |\n",
			page.Index+1,
			escapeCell(page.Name),
			escapeCell(page.URL),
			page.OverallStatus,
			page.Metrics.A11yViolations,
			formatOptional(page.Metrics.PerformanceScore),
			formatOptional(page.Metrics.MaxMismatchRatio),
			page.Artifacts.Report,
		)
	}
	builder.WriteString("\n")
}

func writeResults(builder *strings.Builder, results model.Results) {
	if results.Accessibility != nil {
		fmt.Fprintf(builder, "## Accessibility\n\n%d violation(s).\n\n", results.Accessibility.ViolationCount)
		if len(results.Accessibility.CountsBySeverity) > 0 {
			builder.WriteString("| Severity | Count |\n| --- | --- |\n")
			for _, severity := range sortedKeys(results.Accessibility.CountsBySeverity) {
				fmt.Fprintf(builder, "| %s | %d |\n", escapeCell(severity), results.Accessibility.CountsBySeverity[severity])
			}
			builder.WriteString("\n")
		}
	}
	if results.Performance != nil {
		builder.WriteString("## Performance\n\n| Metric | Value |\n| --- | --- |\n")
		for _, metricName := range sortedKeys(results.Performance.Metrics) {
			fmt.Fprintf(builder, "| %s | "+floatFormatConstant+" |\n", escapeCell(metricName), results.Performance.Metrics[metricName])
		}
		builder.WriteString("\n")
		if len(results.Performance.PerDimensionPass) > 0 {
			builder.WriteString("| Budget | Passed |\n| --- | --- |\n")
			for _, dimension := range sortedKeys(results.Performance.PerDimensionPass) {
				fmt.Fprintf(builder, "| %s | %t |\n", escapeCell(dimension), results.Performance.PerDimensionPass[dimension])
			}
			builder.WriteString("\n")
		}
	}
	if results.Visual != nil {
		fmt.Fprintf(builder, "## Visual regression\n\nThreshold "+floatFormatConstant+".\n\n| Shot | Mismatch | Failed | Baseline created |\n| --- | --- | --- | --- |\n", results.Visual.Threshold)
		for _, shot := range results.Visual.PerShotResults {
			fmt.Fprintf(builder, "| %s | "+floatFormatConstant+" | %t | %t |\n", escapeCell(shot.Name), shot.MismatchRatio, shot.Failed, shot.BaselineCreated)
		}
		builder.WriteString("\n")
	}
}

func writeRuntimeSignals(builder *strings.Builder, signals model.RuntimeSignals) {
	builder.WriteString("## Runtime signals\n\n")
	fmt.Fprintf(builder, "- Requests: %d\n- Console messages: %d\n- Page errors: %d\n- Failed requests: %d\n\n",
		signals.RequestCount, len(signals.ConsoleMessages), len(signals.PageErrors), len(signals.FailedRequests))
}

func writeTrend(builder *strings.Builder, trendSummary model.TrendDeltaSummary) {
	fmt.Fprintf(builder, "## Trend\n\nStatus: `%s`. %s\n\n", trendSummary.Status, trendSummary.Message)
	if trendSummary.Metrics == nil {
		return
	}
	metrics := trendSummary.Metrics
	builder.WriteString("| Metric | Current | Previous | Delta |\n| --- | --- | --- | --- |\n")
	writeDeltaRow(builder, "Duration (ms)", metrics.DurationMs)
	writeDeltaRow(builder, "Failed pages", metrics.FailedPages)
	writeDeltaRow(builder, "Accessibility violations", metrics.A11yViolations)
	writeDeltaRow(builder, "Performance budget failures", metrics.PerformanceBudgetFailures)
	writeDeltaRow(builder, "Visual failures", metrics.VisualFailures)
	builder.WriteString("\n")
}

func writeDeltaRow(builder *strings.Builder, label string, delta model.NumericDelta) {
	fmt.Fprintf(builder, "| %s | %g | %s | %s |\n", label, delta.Current, formatOptional(delta.Previous), formatOptional(delta.Delta))
}

func formatOptional(value *float64) string {
	if value == nil {
		return notAvailableConstant
	}
	return fmt.Sprintf("%g", *value)
}

func escapeCell(value string) string {
	return strings.ReplaceAll(value, "|", tableCellPipeReplacementConstant)
}
