package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/temirov/pageaudit/internal/retry"
)

func TestExponentialStrategyDelay(testInstance *testing.T) {
	strategy := retry.ExponentialStrategy{Base: 100 * time.Millisecond, Cap: time.Second}
	expectedDelays := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		time.Second,
		time.Second,
	}
	for attemptIndex, expectedDelay := range expectedDelays {
		require.Equal(testInstance, expectedDelay, strategy.Delay(attemptIndex+1, 0))
	}
}

func TestDecorrelatedJitterStrategyStaysWithinBounds(testInstance *testing.T) {
	base := 50 * time.Millisecond
	capDelay := 2 * time.Second

	testCases := []struct {
		name          string
		random        float64
		previous      time.Duration
		expectedDelay time.Duration
	}{
		{name: "lower_bound", random: 0, previous: time.Second, expectedDelay: base},
		{name: "upper_bound_below_cap", random: 1, previous: 100 * time.Millisecond, expectedDelay: 300 * time.Millisecond},
		{name: "previous_below_base", random: 1, previous: 0, expectedDelay: 150 * time.Millisecond},
		{name: "capped", random: 1, previous: time.Second, expectedDelay: capDelay},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			randomValue := testCase.random
			strategy := retry.DecorrelatedJitterStrategy{Base: base, Cap: capDelay, Random: func() float64 { return randomValue }}
			require.Equal(testInstance, testCase.expectedDelay, strategy.Delay(1, testCase.previous))
		})
	}

	unseeded := retry.DecorrelatedJitterStrategy{Base: base, Cap: capDelay}
	previous := time.Duration(0)
	for attempt := 1; attempt <= 50; attempt++ {
		delay := unseeded.Delay(attempt, previous)
		require.GreaterOrEqual(testInstance, delay, base)
		require.LessOrEqual(testInstance, delay, capDelay)
		previous = delay
	}
}

func TestNewStrategy(testInstance *testing.T) {
	testCases := []struct {
		name          string
		strategyName  retry.StrategyName
		base          time.Duration
		expected      retry.Strategy
		errorFragment string
	}{
		{name: "constant", strategyName: retry.StrategyConstant, base: time.Second, expected: retry.ConstantStrategy{Interval: time.Second}},
		{name: "exponential_mixed_case", strategyName: " Exponential ", base: time.Second, expected: retry.ExponentialStrategy{Base: time.Second, Cap: 5 * time.Second}},
		{name: "unsupported", strategyName: "linear", base: time.Second, errorFragment: "unsupported retry strategy"},
		{name: "non_positive_base", strategyName: retry.StrategyConstant, errorFragment: "must be positive"},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			strategy, strategyError := retry.NewStrategy(testCase.strategyName, testCase.base, 5*time.Second)
			if len(testCase.errorFragment) > 0 {
				require.ErrorContains(testInstance, strategyError, testCase.errorFragment)
				return
			}
			require.NoError(testInstance, strategyError)
			require.Equal(testInstance, testCase.expected, strategy)
		})
	}
}

func TestPolicyDo(testInstance *testing.T) {
	operationFailure := errors.New("transient")

	testCases := []struct {
		name             string
		maxAttempts      int
		failuresBefore   int
		expectedCalls    int
		expectedSleeps   []time.Duration
		expectExhaustion bool
	}{
		{name: "first_attempt_succeeds", maxAttempts: 3, expectedCalls: 1},
		{name: "succeeds_after_retries", maxAttempts: 3, failuresBefore: 2, expectedCalls: 3, expectedSleeps: []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}},
		{name: "exhausted", maxAttempts: 2, failuresBefore: 5, expectedCalls: 2, expectedSleeps: []time.Duration{10 * time.Millisecond}, expectExhaustion: true},
		{name: "zero_attempts_runs_once", maxAttempts: 0, failuresBefore: 5, expectedCalls: 1, expectExhaustion: true},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			var sleeps []time.Duration
			policy := retry.NewPolicy(retry.ExponentialStrategy{Base: 10 * time.Millisecond}, testCase.maxAttempts, nil).
				WithSleeper(func(_ context.Context, delay time.Duration) error {
					sleeps = append(sleeps, delay)
					return nil
				})

			calls := 0
			doError := policy.Do(context.Background(), "lighthouse", func(context.Context) error {
				calls++
				if calls <= testCase.failuresBefore {
					return operationFailure
				}
				return nil
			})

			require.Equal(testInstance, testCase.expectedCalls, calls)
			require.Equal(testInstance, testCase.expectedSleeps, sleeps)
			if testCase.expectExhaustion {
				require.ErrorIs(testInstance, doError, operationFailure)
				require.ErrorContains(testInstance, doError, "lighthouse failed after")
				return
			}
			require.NoError(testInstance, doError)
		})
	}
}

func TestPolicyStopsWhenContextIsCancelled(testInstance *testing.T) {
	executionContext, cancel := context.WithCancel(context.Background())
	policy := retry.NewPolicy(retry.ConstantStrategy{Interval: time.Hour}, 5, nil)

	calls := 0
	doError := policy.Do(executionContext, "compare", func(context.Context) error {
		calls++
		cancel()
		return errors.New("failed")
	})

	require.ErrorIs(testInstance, doError, context.Canceled)
	require.Equal(testInstance, 1, calls)
}

func TestNewPolicyFromConfiguration(testInstance *testing.T) {
	_, policyError := retry.NewPolicyFromConfiguration(retry.Configuration{Strategy: "bogus", MaxAttempts: 3, BaseDelay: time.Second}, nil)
	require.Error(testInstance, policyError)

	policy, policyError := retry.NewPolicyFromConfiguration(retry.Configuration{Strategy: "constant", MaxAttempts: 1, BaseDelay: time.Millisecond}, nil)
	require.NoError(testInstance, policyError)
	require.NotNil(testInstance, policy)
}
