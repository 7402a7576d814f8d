package run_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	runcmd "github.com/temirov/pageaudit/cmd/cli/run"
	"github.com/temirov/pageaudit/internal/audit"
	"github.com/temirov/pageaudit/internal/model"
)

const (
	testLandingURLConstant   = "https://example.com/"
	testCheckoutURLConstant  = "https://example.com/checkout"
	testRunIdentifier        = "run-0001"
	testOutputDirectoryName  = "out"
	testSummaryFileName      = "summary.json"
	testSummaryV2FileName    = "summary.v2.json"
	testReportFileName       = "report.html"
	testHistoryDirectoryName = "history"
)

func accessibilityOnlyConfiguration(outputDirectory string) runcmd.CommandConfiguration {
	configuration := runcmd.DefaultCommandConfiguration()
	configuration.OutputDirectory = outputDirectory
	configuration.Performance.Enabled = false
	configuration.Visual.Enabled = false
	configuration.Trend.Enabled = true
	return configuration
}

func buildCommand(testInstance *testing.T, builder *runcmd.CommandBuilder, arguments []string) (*cobra.Command, *bytes.Buffer) {
	testInstance.Helper()
	command, buildError := builder.Build()
	require.NoError(testInstance, buildError)
	outputBuffer := &bytes.Buffer{}
	command.SetOut(outputBuffer)
	command.SetErr(outputBuffer)
	command.SetArgs(arguments)
	return command, outputBuffer
}

func TestRunCommandAuditsConfiguredTargetsEndToEnd(testInstance *testing.T) {
	workingDirectory := testInstance.TempDir()
	outputDirectory := filepath.Join(workingDirectory, testOutputDirectoryName)

	configuration := accessibilityOnlyConfiguration(outputDirectory)
	configuration.Targets = []audit.TargetDefinition{
		{Name: "Landing", URL: testLandingURLConstant},
		{Name: "Checkout/Flow", URL: testCheckoutURLConstant},
	}

	launcher := &fakeBrowserLauncher{}
	builder := &runcmd.CommandBuilder{
		LoggerProvider:        func() *zap.Logger { return zap.NewNop() },
		ConfigurationProvider: func() runcmd.CommandConfiguration { return configuration },
		WorkingDirectory:      workingDirectory,
		Browser:               launcher,
		Accessibility: &fakeAccessibilityScanner{violationsByURL: map[string]int{
			testLandingURLConstant:  0,
			testCheckoutURLConstant: 2,
		}},
		Clock:                  &steppingClock{current: time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)},
		RunIdentifierGenerator: func() string { return testRunIdentifier },
	}

	command, outputBuffer := buildCommand(testInstance, builder, nil)
	executionError := command.Execute()
	require.ErrorIs(testInstance, executionError, audit.ErrAuditFailed)

	summaryContent, readError := os.ReadFile(filepath.Join(outputDirectory, testSummaryV2FileName))
	require.NoError(testInstance, readError)

	var envelope model.Envelope
	require.NoError(testInstance, json.Unmarshal(summaryContent, &envelope))

	require.Equal(testInstance, model.StepStatusFail, envelope.OverallStatus)
	require.Equal(testInstance, model.ModeMulti, envelope.Mode)
	require.Equal(testInstance, testRunIdentifier, envelope.RunID)
	require.Len(testInstance, envelope.Pages, 2)
	require.Equal(testInstance, model.StepStatusPass, envelope.Pages[0].OverallStatus)
	require.Equal(testInstance, model.StepStatusFail, envelope.Pages[1].OverallStatus)
	require.Regexp(testInstance, regexp.MustCompile(`^pages/01-landing/`), envelope.Pages[0].Artifacts.Summary)
	require.Regexp(testInstance, regexp.MustCompile(`^pages/02-checkout-flow/`), envelope.Pages[1].Artifacts.Summary)
	require.NotNil(testInstance, envelope.Rollup)
	require.Equal(testInstance, 2, envelope.Rollup.PageCount)
	require.Equal(testInstance, 1, envelope.Rollup.FailedPages)
	require.Equal(testInstance, 2, envelope.Rollup.A11yViolations)
	require.NotNil(testInstance, envelope.Trend)
	require.Equal(testInstance, model.TrendStatusNoPrevious, envelope.Trend.Status)

	for _, fileName := range []string{testSummaryFileName, testReportFileName} {
		require.FileExists(testInstance, filepath.Join(outputDirectory, fileName))
	}
	require.FileExists(testInstance, filepath.Join(outputDirectory, "pages", "02-checkout-flow", testSummaryV2FileName))

	historyEntries, historyError := os.ReadDir(filepath.Join(outputDirectory, testHistoryDirectoryName))
	require.NoError(testInstance, historyError)
	require.Len(testInstance, historyEntries, 1)

	require.Equal(testInstance, []string{testLandingURLConstant, testCheckoutURLConstant}, launcher.openedURLs)
	require.Equal(testInstance, 2, launcher.closedCount)
	require.Contains(testInstance, outputBuffer.String(), "FAIL 2 page(s), 1 failed, 2 accessibility violation(s)")
}

func TestRunCommandFlagsOverrideConfiguration(testInstance *testing.T) {
	testCases := []struct {
		name              string
		arguments         []string
		expectError       error
		expectedSubstring string
	}{
		{
			name:              "violations_fail_by_default",
			arguments:         []string{testCheckoutURLConstant},
			expectError:       audit.ErrAuditFailed,
			expectedSubstring: "FAIL 1 page(s)",
		},
		{
			name:              "fail_switch_disabled_by_flag",
			arguments:         []string{testCheckoutURLConstant, "--fail-on-a11y=false"},
			expectedSubstring: "PASS 1 page(s)",
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			workingDirectory := testInstance.TempDir()
			configuration := accessibilityOnlyConfiguration(filepath.Join(workingDirectory, "configured"))
			configuration.Trend.Enabled = false

			builder := &runcmd.CommandBuilder{
				ConfigurationProvider: func() runcmd.CommandConfiguration { return configuration },
				WorkingDirectory:      workingDirectory,
				Browser:               &fakeBrowserLauncher{},
				Accessibility:         &fakeAccessibilityScanner{violationsByURL: map[string]int{testCheckoutURLConstant: 1}},
			}
			flagOutputDirectory := filepath.Join(workingDirectory, "flagged")
			command, outputBuffer := buildCommand(testInstance, builder, append(testCase.arguments, "--output-dir", flagOutputDirectory))

			executionError := command.Execute()
			if testCase.expectError != nil {
				require.ErrorIs(testInstance, executionError, testCase.expectError)
			} else {
				require.NoError(testInstance, executionError)
			}
			require.Contains(testInstance, outputBuffer.String(), testCase.expectedSubstring)
			require.FileExists(testInstance, filepath.Join(flagOutputDirectory, testSummaryV2FileName))
			require.NoFileExists(testInstance, filepath.Join(workingDirectory, "configured", testSummaryV2FileName))
		})
	}
}

func TestRunCommandRejectsInvalidInvocations(testInstance *testing.T) {
	testCases := []struct {
		name      string
		arguments []string
		mutate    func(configuration *runcmd.CommandConfiguration, workingDirectory string)
		assertErr func(testInstance *testing.T, executionError error)
	}{
		{
			name:      "unsupported_scheme",
			arguments: []string{"ftp://example.com/"},
			assertErr: func(testInstance *testing.T, executionError error) {
				var usageError audit.UsageError
				require.ErrorAs(testInstance, executionError, &usageError)
			},
		},
		{
			name:      "too_many_arguments",
			arguments: []string{testLandingURLConstant, testCheckoutURLConstant},
			assertErr: func(testInstance *testing.T, executionError error) {
				var usageError audit.UsageError
				require.ErrorAs(testInstance, executionError, &usageError)
			},
		},
		{
			name: "missing_target",
			assertErr: func(testInstance *testing.T, executionError error) {
				var usageError audit.UsageError
				require.ErrorAs(testInstance, executionError, &usageError)
			},
		},
		{
			name:      "output_outside_permitted_root",
			arguments: []string{testLandingURLConstant},
			mutate: func(configuration *runcmd.CommandConfiguration, workingDirectory string) {
				configuration.OutputDirectory = filepath.Join(filepath.Dir(workingDirectory), "elsewhere")
			},
			assertErr: func(testInstance *testing.T, executionError error) {
				var usageError audit.UsageError
				require.ErrorAs(testInstance, executionError, &usageError)
			},
		},
		{
			name:      "threshold_out_of_range",
			arguments: []string{testLandingURLConstant},
			mutate: func(configuration *runcmd.CommandConfiguration, _ string) {
				configuration.Visual.Threshold = 1.5
			},
			assertErr: func(testInstance *testing.T, executionError error) {
				var configurationError audit.ConfigurationError
				require.ErrorAs(testInstance, executionError, &configurationError)
			},
		},
		{
			name:      "zero_max_snapshots",
			arguments: []string{testLandingURLConstant},
			mutate: func(configuration *runcmd.CommandConfiguration, _ string) {
				configuration.Trend.MaxSnapshots = 0
			},
			assertErr: func(testInstance *testing.T, executionError error) {
				var configurationError audit.ConfigurationError
				require.ErrorAs(testInstance, executionError, &configurationError)
				require.Contains(testInstance, configurationError.Reason, "max_snapshots must be at least 1")
			},
		},
		{
			name:      "unknown_retry_strategy",
			arguments: []string{testLandingURLConstant},
			mutate: func(configuration *runcmd.CommandConfiguration, _ string) {
				configuration.Retry.Strategy = "fibonacci"
			},
			assertErr: func(testInstance *testing.T, executionError error) {
				var configurationError audit.ConfigurationError
				require.ErrorAs(testInstance, executionError, &configurationError)
			},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			workingDirectory := testInstance.TempDir()
			configuration := accessibilityOnlyConfiguration(filepath.Join(workingDirectory, testOutputDirectoryName))
			if testCase.mutate != nil {
				testCase.mutate(&configuration, workingDirectory)
			}
			launcher := &fakeBrowserLauncher{}
			builder := &runcmd.CommandBuilder{
				ConfigurationProvider: func() runcmd.CommandConfiguration { return configuration },
				WorkingDirectory:      workingDirectory,
				Browser:               launcher,
				Accessibility:         &fakeAccessibilityScanner{},
			}
			command, _ := buildCommand(testInstance, builder, testCase.arguments)
			command.SilenceErrors = true
			command.SilenceUsage = true

			testCase.assertErr(testInstance, command.Execute())
			require.Empty(testInstance, launcher.openedURLs)
		})
	}
}

func TestRunCommandLoadsTargetsFile(testInstance *testing.T) {
	workingDirectory := testInstance.TempDir()
	targetsFilePath := filepath.Join(workingDirectory, "targets.yaml")
	targetsContent := "targets:\n  - name: Landing\n    url: " + testLandingURLConstant + "\n  - name: Checkout\n    url: " + testCheckoutURLConstant + "\n"
	require.NoError(testInstance, os.WriteFile(targetsFilePath, []byte(targetsContent), 0o600))

	configuration := accessibilityOnlyConfiguration(filepath.Join(workingDirectory, testOutputDirectoryName))
	configuration.Trend.Enabled = false
	configuration.TargetsFile = targetsFilePath
	configuration.FailOnAccessibility = false

	launcher := &fakeBrowserLauncher{}
	builder := &runcmd.CommandBuilder{
		ConfigurationProvider: func() runcmd.CommandConfiguration { return configuration },
		WorkingDirectory:      workingDirectory,
		Browser:               launcher,
		Accessibility:         &fakeAccessibilityScanner{},
	}
	command, _ := buildCommand(testInstance, builder, nil)

	require.NoError(testInstance, command.Execute())
	require.Equal(testInstance, []string{testLandingURLConstant, testCheckoutURLConstant}, launcher.openedURLs)
}
