package ui

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/temirov/pageaudit/internal/audit"
)

const (
	stepStartedTemplateConstant   = "[%d] %s: %s"
	stepCompletedTemplateConstant = "[%d] %s: %s done in %s"
	stepFailedTemplateConstant    = "[%d] %s: %s failed: %v"
)

// ConsoleStepLogger renders audit step lifecycle events through a console zap logger.
type ConsoleStepLogger struct {
	logger *zap.Logger
}

// NewConsoleStepLogger constructs a ConsoleStepLogger.
func NewConsoleStepLogger(logger *zap.Logger) *ConsoleStepLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsoleStepLogger{logger: logger}
}

// StepStarted implements audit.StepObserver.
func (stepLogger *ConsoleStepLogger) StepStarted(target audit.AuditTarget, step string) {
	stepLogger.logger.Info(fmt.Sprintf(stepStartedTemplateConstant, target.Index+1, target.Name, step))
}

// StepCompleted implements audit.StepObserver.
func (stepLogger *ConsoleStepLogger) StepCompleted(target audit.AuditTarget, step string, duration time.Duration) {
	stepLogger.logger.Info(fmt.Sprintf(stepCompletedTemplateConstant, target.Index+1, target.Name, step, duration.Round(time.Millisecond)))
}

// StepFailed implements audit.StepObserver.
func (stepLogger *ConsoleStepLogger) StepFailed(target audit.AuditTarget, step string, failure error) {
	stepLogger.logger.Error(fmt.Sprintf(stepFailedTemplateConstant, target.Index+1, target.Name, step, failure))
}
