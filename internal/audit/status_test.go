package audit_test

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/temirov/pageaudit/internal/audit"
	"github.com/temirov/pageaudit/internal/model"
)

func TestComputeStatus(testInstance *testing.T) {
	allSwitches := audit.FailSwitches{Accessibility: true, Performance: true, Visual: true}
	violations := &model.AccessibilityResult{ViolationCount: 2}
	clean := &model.AccessibilityResult{}
	overBudget := &model.PerformanceResult{PerDimensionPass: map[string]bool{"score": true, "lcpMs": false}}
	withinBudget := &model.PerformanceResult{PerDimensionPass: map[string]bool{"score": true}}
	visualFailure := &model.VisualResult{AggregateFailed: true}

	testCases := []struct {
		name            string
		inputs          audit.StatusInputs
		expectedOverall model.StepStatus
		expectedSteps   model.Steps
	}{
		{
			name:            "nothing_enabled",
			inputs:          audit.StatusInputs{FailSwitches: allSwitches},
			expectedOverall: model.StepStatusPass,
			expectedSteps:   model.Steps{Browser: model.StepStatusPass, Accessibility: model.StepStatusSkipped, Performance: model.StepStatusSkipped, Visual: model.StepStatusSkipped},
		},
		{
			name:            "accessibility_violations_fail",
			inputs:          audit.StatusInputs{Accessibility: violations, FailSwitches: allSwitches},
			expectedOverall: model.StepStatusFail,
			expectedSteps:   model.Steps{Browser: model.StepStatusPass, Accessibility: model.StepStatusFail, Performance: model.StepStatusSkipped, Visual: model.StepStatusSkipped},
		},
		{
			name:            "accessibility_switch_off",
			inputs:          audit.StatusInputs{Accessibility: violations, FailSwitches: audit.FailSwitches{Performance: true, Visual: true}},
			expectedOverall: model.StepStatusPass,
			expectedSteps:   model.Steps{Browser: model.StepStatusPass, Accessibility: model.StepStatusPass, Performance: model.StepStatusSkipped, Visual: model.StepStatusSkipped},
		},
		{
			name:            "performance_budget_failure",
			inputs:          audit.StatusInputs{Accessibility: clean, Performance: overBudget, FailSwitches: allSwitches},
			expectedOverall: model.StepStatusFail,
			expectedSteps:   model.Steps{Browser: model.StepStatusPass, Accessibility: model.StepStatusPass, Performance: model.StepStatusFail, Visual: model.StepStatusSkipped},
		},
		{
			name:            "visual_failure",
			inputs:          audit.StatusInputs{Performance: withinBudget, Visual: visualFailure, FailSwitches: allSwitches},
			expectedOverall: model.StepStatusFail,
			expectedSteps:   model.Steps{Browser: model.StepStatusPass, Accessibility: model.StepStatusSkipped, Performance: model.StepStatusPass, Visual: model.StepStatusFail},
		},
		{
			name:            "all_switches_off",
			inputs:          audit.StatusInputs{Accessibility: violations, Performance: overBudget, Visual: visualFailure},
			expectedOverall: model.StepStatusPass,
			expectedSteps:   model.Steps{Browser: model.StepStatusPass, Accessibility: model.StepStatusPass, Performance: model.StepStatusPass, Visual: model.StepStatusPass},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			outcome := audit.ComputeStatus(testCase.inputs)
			require.Equal(testInstance, testCase.expectedOverall, outcome.Overall)
			require.Empty(testInstance, cmp.Diff(testCase.expectedSteps, outcome.Steps))
		})
	}
}

type categoryState int

const (
	categoryAbsent categoryState = iota
	categoryPredicateFalse
	categoryPredicateTrue
)

var categoryStates = []categoryState{categoryAbsent, categoryPredicateFalse, categoryPredicateTrue}

func (state categoryState) String() string {
	switch state {
	case categoryPredicateFalse:
		return "clean"
	case categoryPredicateTrue:
		return "failing"
	default:
		return "absent"
	}
}

func accessibilityFor(state categoryState) *model.AccessibilityResult {
	switch state {
	case categoryPredicateFalse:
		return &model.AccessibilityResult{}
	case categoryPredicateTrue:
		return &model.AccessibilityResult{ViolationCount: 1}
	default:
		return nil
	}
}

func performanceFor(state categoryState) *model.PerformanceResult {
	switch state {
	case categoryPredicateFalse:
		return &model.PerformanceResult{PerDimensionPass: map[string]bool{"score": true}}
	case categoryPredicateTrue:
		return &model.PerformanceResult{PerDimensionPass: map[string]bool{"score": false}}
	default:
		return nil
	}
}

func visualFor(state categoryState) *model.VisualResult {
	switch state {
	case categoryPredicateFalse:
		return &model.VisualResult{}
	case categoryPredicateTrue:
		return &model.VisualResult{AggregateFailed: true}
	default:
		return nil
	}
}

func expectedCategoryStatus(state categoryState, failSwitch bool) model.StepStatus {
	switch {
	case state == categoryAbsent:
		return model.StepStatusSkipped
	case state == categoryPredicateTrue && failSwitch:
		return model.StepStatusFail
	default:
		return model.StepStatusPass
	}
}

func TestComputeStatusAcrossAllCombinations(testInstance *testing.T) {
	switchStates := []bool{false, true}
	for _, accessibilityState := range categoryStates {
		for _, performanceState := range categoryStates {
			for _, visualState := range categoryStates {
				for _, accessibilitySwitch := range switchStates {
					for _, performanceSwitch := range switchStates {
						for _, visualSwitch := range switchStates {
							name := fmt.Sprintf("a11y_%s_%t/perf_%s_%t/visual_%s_%t",
								accessibilityState, accessibilitySwitch,
								performanceState, performanceSwitch,
								visualState, visualSwitch)
							inputs := audit.StatusInputs{
								Accessibility: accessibilityFor(accessibilityState),
								Performance:   performanceFor(performanceState),
								Visual:        visualFor(visualState),
								FailSwitches: audit.FailSwitches{
									Accessibility: accessibilitySwitch,
									Performance:   performanceSwitch,
									Visual:        visualSwitch,
								},
							}
							expectedSteps := model.Steps{
								Browser:       model.StepStatusPass,
								Accessibility: expectedCategoryStatus(accessibilityState, accessibilitySwitch),
								Performance:   expectedCategoryStatus(performanceState, performanceSwitch),
								Visual:        expectedCategoryStatus(visualState, visualSwitch),
							}
							expectedOverall := model.StepStatusPass
							if (accessibilityState == categoryPredicateTrue && accessibilitySwitch) ||
								(performanceState == categoryPredicateTrue && performanceSwitch) ||
								(visualState == categoryPredicateTrue && visualSwitch) {
								expectedOverall = model.StepStatusFail
							}

							testInstance.Run(name, func(testInstance *testing.T) {
								outcome := audit.ComputeStatus(inputs)
								require.Equal(testInstance, expectedOverall, outcome.Overall)
								require.Empty(testInstance, cmp.Diff(expectedSteps, outcome.Steps))
							})
						}
					}
				}
			}
		}
	}
}

func TestRollupAndFoldedSteps(testInstance *testing.T) {
	pages := []model.PageSummary{
		{
			OverallStatus: model.StepStatusFail,
			Steps:         model.Steps{Browser: model.StepStatusPass, Accessibility: model.StepStatusFail, Performance: model.StepStatusSkipped, Visual: model.StepStatusFail},
			Metrics:       model.PageMetrics{A11yViolations: 3, PerformanceBudgetFailures: 0},
		},
		{
			OverallStatus: model.StepStatusPass,
			Steps:         model.Steps{Browser: model.StepStatusPass, Accessibility: model.StepStatusPass, Performance: model.StepStatusSkipped, Visual: model.StepStatusPass},
			Metrics:       model.PageMetrics{A11yViolations: 1, PerformanceBudgetFailures: 2},
		},
	}

	expectedRollup := model.Rollup{PageCount: 2, FailedPages: 1, A11yViolations: 4, PerformanceBudgetFailures: 2, VisualFailures: 1}
	require.Empty(testInstance, cmp.Diff(expectedRollup, audit.ComputeRollup(pages)))

	expectedSteps := model.Steps{Browser: model.StepStatusPass, Accessibility: model.StepStatusFail, Performance: model.StepStatusSkipped, Visual: model.StepStatusFail}
	require.Empty(testInstance, cmp.Diff(expectedSteps, audit.FoldSteps(pages)))
	require.Equal(testInstance, model.StepStatusFail, audit.OverallStatus(pages))
	require.Equal(testInstance, model.StepStatusPass, audit.OverallStatus(pages[1:]))
	require.Equal(testInstance, model.Rollup{}, audit.ComputeRollup(nil))
}

func TestProjectV1DropsRunLevelFields(testInstance *testing.T) {
	rollup := model.Rollup{PageCount: 1}
	envelope := model.Envelope{
		Schema:         model.DefaultV2SchemaURI,
		SchemaVersion:  model.DefaultV2SchemaVersion,
		RunID:          "run-1",
		Mode:           model.ModeSingle,
		Target:         &model.TargetInfo{Name: "Landing", URL: "https://example.com/"},
		DurationMs:     42,
		OverallStatus:  model.StepStatusFail,
		Steps:          model.Steps{Browser: model.StepStatusPass, Accessibility: model.StepStatusFail},
		Artifacts:      model.Artifacts{Summary: "summary.json", SummaryV2: "summary.v2.json", Report: "report.html"},
		Results:        &model.Results{Accessibility: &model.AccessibilityResult{ViolationCount: 1}},
		Rollup:         &rollup,
		Pages:          []model.PageSummary{{Name: "Landing"}},
		RuntimeSignals: &model.RuntimeSignals{RequestCount: 4},
		Diagnostics:    &model.Diagnostics{},
		Trend:          &model.TrendDeltaSummary{Status: model.TrendStatusNoPrevious},
	}

	projected := audit.ProjectV1(envelope, audit.EnvelopeOptions{V1SchemaVersion: "1.2.0"})

	expected := model.Envelope{
		Schema:        model.DefaultV1SchemaURI,
		SchemaVersion: "1.2.0",
		Target:        envelope.Target,
		DurationMs:    42,
		OverallStatus: model.StepStatusFail,
		Steps:         envelope.Steps,
		Artifacts:     envelope.Artifacts,
		Results:       envelope.Results,
	}
	require.Empty(testInstance, cmp.Diff(expected, projected))
}
