package retry

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	attemptFailedMessageConstant   = "Retrying after failed attempt"
	exhaustedErrorTemplateConstant = "%s failed after %d attempt(s): %w"
	operationLogFieldConstant      = "operation"
	attemptLogFieldConstant        = "attempt"
	delayLogFieldConstant          = "delay"
)

// Configuration mirrors the audit.retry configuration block.
type Configuration struct {
	Strategy    string        `mapstructure:"strategy"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

// Sleeper waits for the delay or until the context is done.
type Sleeper func(executionContext context.Context, delay time.Duration) error

// Policy executes operations with bounded attempts.
type Policy struct {
	strategy    Strategy
	maxAttempts int
	sleep       Sleeper
	logger      *zap.Logger
}

// NewPolicy constructs a Policy. Fewer than one attempt is treated as one.
func NewPolicy(strategy Strategy, maxAttempts int, logger *zap.Logger) *Policy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Policy{strategy: strategy, maxAttempts: maxAttempts, sleep: contextSleep, logger: logger}
}

// NewPolicyFromConfiguration builds the strategy and policy described by configuration.
func NewPolicyFromConfiguration(configuration Configuration, logger *zap.Logger) (*Policy, error) {
	strategy, strategyError := NewStrategy(StrategyName(configuration.Strategy), configuration.BaseDelay, configuration.MaxDelay)
	if strategyError != nil {
		return nil, strategyError
	}
	return NewPolicy(strategy, configuration.MaxAttempts, logger), nil
}

// WithSleeper returns a copy of the policy using the provided sleeper.
func (policy *Policy) WithSleeper(sleeper Sleeper) *Policy {
	copied := *policy
	copied.sleep = sleeper
	return &copied
}

// Do runs operation until it succeeds, the attempts are exhausted, or the
// context is done. The last operation error is wrapped on exhaustion.
func (policy *Policy) Do(executionContext context.Context, operationName string, operation func(context.Context) error) error {
	var lastError error
	var previousDelay time.Duration
	for attempt := 1; attempt <= policy.maxAttempts; attempt++ {
		if contextError := executionContext.Err(); contextError != nil {
			return contextError
		}

		lastError = operation(executionContext)
		if lastError == nil {
			return nil
		}
		if attempt == policy.maxAttempts {
			break
		}

		delay := policy.strategy.Delay(attempt, previousDelay)
		previousDelay = delay
		policy.logger.Debug(attemptFailedMessageConstant,
			zap.String(operationLogFieldConstant, operationName),
			zap.Int(attemptLogFieldConstant, attempt),
			zap.Duration(delayLogFieldConstant, delay),
			zap.Error(lastError),
		)
		if sleepError := policy.sleep(executionContext, delay); sleepError != nil {
			return sleepError
		}
	}
	return fmt.Errorf(exhaustedErrorTemplateConstant, operationName, policy.maxAttempts, lastError)
}

func contextSleep(executionContext context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-executionContext.Done():
		return executionContext.Err()
	case <-timer.C:
		return nil
	}
}
