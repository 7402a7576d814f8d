package model

// StepStatus enumerates the closed set of outcomes for an audit step.
type StepStatus string

// Supported step statuses.
const (
	StepStatusPass    StepStatus = "pass"
	StepStatusFail    StepStatus = "fail"
	StepStatusSkipped StepStatus = "skipped"
)

// Mode distinguishes single-page runs from multi-page runs.
type Mode string

// Supported run modes.
const (
	ModeSingle Mode = "single"
	ModeMulti  Mode = "multi"
)

// Steps captures the status of every audit category.
type Steps struct {
	Browser       StepStatus `json:"browser"`
	Accessibility StepStatus `json:"accessibility"`
	Performance   StepStatus `json:"performance"`
	Visual        StepStatus `json:"visual"`
}
