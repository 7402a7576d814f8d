package retry

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"
)

// StrategyName enumerates the supported backoff strategies.
type StrategyName string

// Supported strategy names.
const (
	StrategyConstant           StrategyName = "constant"
	StrategyExponential        StrategyName = "exponential"
	StrategyDecorrelatedJitter StrategyName = "decorrelated_jitter"
)

const (
	jitterGrowthFactorConstant        = 3
	unsupportedStrategyErrorTemplate  = "unsupported retry strategy %q; expected constant, exponential, or decorrelated_jitter"
	nonPositiveBaseDelayErrorTemplate = "retry base delay must be positive, got %s"
)

// Strategy computes the delay before the next attempt. attempt starts at 1 for
// the delay following the first failure; previous is the last delay returned.
type Strategy interface {
	Delay(attempt int, previous time.Duration) time.Duration
}

// ConstantStrategy waits the same duration between attempts.
type ConstantStrategy struct {
	Interval time.Duration
}

// Delay returns the constant interval.
func (strategy ConstantStrategy) Delay(int, time.Duration) time.Duration {
	return strategy.Interval
}

// ExponentialStrategy doubles the delay on every attempt up to Cap.
type ExponentialStrategy struct {
	Base time.Duration
	Cap  time.Duration
}

// Delay returns Base * 2^(attempt-1) limited to Cap.
func (strategy ExponentialStrategy) Delay(attempt int, _ time.Duration) time.Duration {
	delay := strategy.Base
	for step := 1; step < attempt; step++ {
		delay *= 2
		if strategy.Cap > 0 && delay >= strategy.Cap {
			return strategy.Cap
		}
	}
	if strategy.Cap > 0 && delay > strategy.Cap {
		return strategy.Cap
	}
	return delay
}

// DecorrelatedJitterStrategy picks min(Cap, random(Base, previous*3)).
type DecorrelatedJitterStrategy struct {
	Base   time.Duration
	Cap    time.Duration
	Random func() float64
}

// Delay returns a jittered delay bounded below by Base and above by Cap.
func (strategy DecorrelatedJitterStrategy) Delay(_ int, previous time.Duration) time.Duration {
	random := strategy.Random
	if random == nil {
		random = rand.Float64
	}
	if previous < strategy.Base {
		previous = strategy.Base
	}

	upperBound := previous * jitterGrowthFactorConstant
	delay := strategy.Base + time.Duration(random()*float64(upperBound-strategy.Base))
	if strategy.Cap > 0 && delay > strategy.Cap {
		return strategy.Cap
	}
	return delay
}

// NewStrategy constructs the named strategy.
func NewStrategy(name StrategyName, base time.Duration, maximum time.Duration) (Strategy, error) {
	if base <= 0 {
		return nil, fmt.Errorf(nonPositiveBaseDelayErrorTemplate, base)
	}
	switch StrategyName(strings.ToLower(strings.TrimSpace(string(name)))) {
	case StrategyConstant:
		return ConstantStrategy{Interval: base}, nil
	case StrategyExponential:
		return ExponentialStrategy{Base: base, Cap: maximum}, nil
	case StrategyDecorrelatedJitter:
		return DecorrelatedJitterStrategy{Base: base, Cap: maximum}, nil
	default:
		return nil, fmt.Errorf(unsupportedStrategyErrorTemplate, name)
	}
}
