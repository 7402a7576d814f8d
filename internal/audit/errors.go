package audit

import (
	"errors"
	"fmt"
)

const (
	usageErrorTemplateConstant                  = "usage error: %s"
	configurationErrorTemplateConstant          = "configuration error: %s"
	configurationErrorWithCauseTemplateConstant = "configuration error: %s: %v"
	stepErrorTemplateConstant                   = "audit step %s failed for %s: %v"
	auditFailedMessageConstant                  = "audit failed"
	missingCollaboratorReasonTemplateConstant   = "%s step is enabled but no collaborator is configured"
)

// ErrAuditFailed indicates that the run completed with an overall fail status.
var ErrAuditFailed = errors.New(auditFailedMessageConstant)

// UsageError reports invalid invocation input detected before any audit work starts.
type UsageError struct {
	Reason string
}

// Error describes the usage failure.
func (usageError UsageError) Error() string {
	return fmt.Sprintf(usageErrorTemplateConstant, usageError.Reason)
}

// ConfigurationError reports unreadable or invalid configuration.
type ConfigurationError struct {
	Reason string
	Cause  error
}

// Error describes the configuration failure.
func (configurationError ConfigurationError) Error() string {
	if configurationError.Cause == nil {
		return fmt.Sprintf(configurationErrorTemplateConstant, configurationError.Reason)
	}
	return fmt.Sprintf(configurationErrorWithCauseTemplateConstant, configurationError.Reason, configurationError.Cause)
}

// Unwrap exposes the underlying cause.
func (configurationError ConfigurationError) Unwrap() error {
	return configurationError.Cause
}

// StepError reports a collaborator failure that aborted the run.
type StepError struct {
	Step   string
	Target string
	Cause  error
}

// Error describes the failing step and target.
func (stepError StepError) Error() string {
	return fmt.Sprintf(stepErrorTemplateConstant, stepError.Step, stepError.Target, stepError.Cause)
}

// Unwrap exposes the collaborator error.
func (stepError StepError) Unwrap() error {
	return stepError.Cause
}
