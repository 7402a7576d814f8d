package audit

import "github.com/temirov/pageaudit/internal/model"

// StatusInputs carries the optional category results and fail switches of one target.
type StatusInputs struct {
	Accessibility *model.AccessibilityResult
	Performance   *model.PerformanceResult
	Visual        *model.VisualResult
	FailSwitches  FailSwitches
}

// StatusOutcome holds the derived step statuses and the overall status.
type StatusOutcome struct {
	Overall model.StepStatus
	Steps   model.Steps
}

// ComputeStatus derives step statuses from category results. A category fails only
// when it is present, its fail switch is on, and its predicate holds. Absent
// categories are skipped and never influence the overall status.
func ComputeStatus(inputs StatusInputs) StatusOutcome {
	accessibilityStatus := categoryStatus(inputs.Accessibility != nil, inputs.FailSwitches.Accessibility, func() bool {
		return inputs.Accessibility.ViolationCount > 0
	})
	performanceStatus := categoryStatus(inputs.Performance != nil, inputs.FailSwitches.Performance, func() bool {
		return inputs.Performance.FailedBudgetCount() > 0
	})
	visualStatus := categoryStatus(inputs.Visual != nil, inputs.FailSwitches.Visual, func() bool {
		return inputs.Visual.AggregateFailed
	})

	overall := model.StepStatusPass
	for _, status := range []model.StepStatus{accessibilityStatus, performanceStatus, visualStatus} {
		if status == model.StepStatusFail {
			overall = model.StepStatusFail
		}
	}

	return StatusOutcome{
		Overall: overall,
		Steps: model.Steps{
			Browser:       model.StepStatusPass,
			Accessibility: accessibilityStatus,
			Performance:   performanceStatus,
			Visual:        visualStatus,
		},
	}
}

func categoryStatus(present bool, failSwitch bool, predicate func() bool) model.StepStatus {
	if !present {
		return model.StepStatusSkipped
	}
	if failSwitch && predicate() {
		return model.StepStatusFail
	}
	return model.StepStatusPass
}
