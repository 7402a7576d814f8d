package audit

import "github.com/temirov/pageaudit/internal/model"

// ComputeRollup aggregates page summaries into run-level counts.
func ComputeRollup(pages []model.PageSummary) model.Rollup {
	rollup := model.Rollup{PageCount: len(pages)}
	for _, page := range pages {
		if page.OverallStatus == model.StepStatusFail {
			rollup.FailedPages++
		}
		rollup.A11yViolations += page.Metrics.A11yViolations
		rollup.PerformanceBudgetFailures += page.Metrics.PerformanceBudgetFailures
		if page.Steps.Visual == model.StepStatusFail {
			rollup.VisualFailures++
		}
	}
	return rollup
}

// FoldSteps reduces per-page step statuses to one status per category: fail if
// any page failed it, skipped if every page skipped it, pass otherwise.
func FoldSteps(pages []model.PageSummary) model.Steps {
	collect := func(selector func(model.Steps) model.StepStatus) []model.StepStatus {
		statuses := make([]model.StepStatus, 0, len(pages))
		for _, page := range pages {
			statuses = append(statuses, selector(page.Steps))
		}
		return statuses
	}

	return model.Steps{
		Browser:       foldStatuses(collect(func(steps model.Steps) model.StepStatus { return steps.Browser })),
		Accessibility: foldStatuses(collect(func(steps model.Steps) model.StepStatus { return steps.Accessibility })),
		Performance:   foldStatuses(collect(func(steps model.Steps) model.StepStatus { return steps.Performance })),
		Visual:        foldStatuses(collect(func(steps model.Steps) model.StepStatus { return steps.Visual })),
	}
}

// OverallStatus is fail when any page failed and pass otherwise.
func OverallStatus(pages []model.PageSummary) model.StepStatus {
	for _, page := range pages {
		if page.OverallStatus == model.StepStatusFail {
			return model.StepStatusFail
		}
	}
	return model.StepStatusPass
}

func foldStatuses(statuses []model.StepStatus) model.StepStatus {
	allSkipped := true
	for _, status := range statuses {
		if status == model.StepStatusFail {
			return model.StepStatusFail
		}
		if status != model.StepStatusSkipped {
			allSkipped = false
		}
	}
	if allSkipped {
		return model.StepStatusSkipped
	}
	return model.StepStatusPass
}
