package run

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/pageaudit/internal/accessibility"
	"github.com/temirov/pageaudit/internal/audit"
	"github.com/temirov/pageaudit/internal/browser"
	"github.com/temirov/pageaudit/internal/execshell"
	"github.com/temirov/pageaudit/internal/model"
	"github.com/temirov/pageaudit/internal/performance"
	"github.com/temirov/pageaudit/internal/retry"
	"github.com/temirov/pageaudit/internal/ui"
	"github.com/temirov/pageaudit/internal/utils"
	pathutils "github.com/temirov/pageaudit/internal/utils/path"
	"github.com/temirov/pageaudit/internal/visual"
)

const (
	commandUseConstant                   = "run [url]"
	commandShortDescriptionConstant      = "Audit web pages for accessibility, performance, and visual regressions"
	commandLongDescriptionConstant       = "run audits the URL argument, or every target listed under audit.targets, and writes summary.json, summary.v2.json, and report.html to the output directory. Trend history is compared and updated when enabled."
	outputDirectoryFlagNameConstant      = "output-dir"
	outputDirectoryFlagUsageConstant     = "Directory receiving audit artifacts"
	baselineDirectoryFlagNameConstant    = "baseline-dir"
	baselineDirectoryFlagUsageConstant   = "Directory holding visual baselines"
	updateBaselinesFlagNameConstant      = "update-baselines"
	updateBaselinesFlagUsageConstant     = "Overwrite visual baselines with the current screenshots"
	failOnAccessibilityFlagNameConstant  = "fail-on-a11y"
	failOnAccessibilityFlagUsageConstant = "Fail the run when accessibility violations are found"
	failOnPerformanceFlagNameConstant    = "fail-on-perf"
	failOnPerformanceFlagUsageConstant   = "Fail the run when a performance budget is exceeded"
	failOnVisualFlagNameConstant         = "fail-on-visual"
	failOnVisualFlagUsageConstant        = "Fail the run when a screenshot differs from its baseline beyond the threshold"
	// VerboseFlagName is read by the root command to force debug logging.
	VerboseFlagName                    = "verbose"
	verboseFlagShorthandConstant       = "v"
	verboseFlagUsageConstant           = "Enable debug logging"
	tooManyArgumentsReasonTemplate     = "run accepts at most one URL argument, received %d"
	accessibilityScannerReasonConstant = "unable to load the axe-core script"
	retryPolicyReasonConstant          = "unable to build the retry policy"
	commandExecutorReasonConstant      = "unable to construct the command executor"
	verdictOutputErrorTemplateConstant = "unable to print audit verdict: %w"
)

// CommandBuilder assembles the run command. Collaborator fields are optional;
// nil collaborators are replaced by the default go-rod, axe-core, Lighthouse,
// and ImageMagick adapters.
type CommandBuilder struct {
	LoggerProvider               LoggerProvider
	HumanReadableLoggingProvider func() bool
	ConfigurationProvider        func() CommandConfiguration
	WorkingDirectory             string
	HomeExpander                 *pathutils.HomeExpander
	Browser                      audit.BrowserLauncher
	Accessibility                audit.AccessibilityScanner
	Performance                  audit.PerformanceAuditor
	Visual                       audit.VisualComparator
	CommandRunner                execshell.CommandRunner
	Clock                        audit.Clock
	RunIdentifierGenerator       func() string
}

// Build constructs the run command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   commandUseConstant,
		Short: commandShortDescriptionConstant,
		Long:  commandLongDescriptionConstant,
		Args:  validateArguments,
		RunE:  builder.run,
	}

	command.Flags().String(outputDirectoryFlagNameConstant, "", outputDirectoryFlagUsageConstant)
	command.Flags().String(baselineDirectoryFlagNameConstant, "", baselineDirectoryFlagUsageConstant)
	command.Flags().Bool(updateBaselinesFlagNameConstant, false, updateBaselinesFlagUsageConstant)
	command.Flags().Bool(failOnAccessibilityFlagNameConstant, true, failOnAccessibilityFlagUsageConstant)
	command.Flags().Bool(failOnPerformanceFlagNameConstant, true, failOnPerformanceFlagUsageConstant)
	command.Flags().Bool(failOnVisualFlagNameConstant, true, failOnVisualFlagUsageConstant)
	command.Flags().BoolP(VerboseFlagName, verboseFlagShorthandConstant, false, verboseFlagUsageConstant)

	return command, nil
}

func validateArguments(command *cobra.Command, arguments []string) error {
	if len(arguments) > 1 {
		return audit.UsageError{Reason: fmt.Sprintf(tooManyArgumentsReasonTemplate, len(arguments))}
	}
	return nil
}

func (builder *CommandBuilder) run(command *cobra.Command, arguments []string) error {
	logger := resolveLogger(builder.LoggerProvider)

	configuration := builder.resolveConfiguration()
	configuration = applyCommandOverrides(command, arguments, configuration)

	contextAccessor := utils.NewCommandContextAccessor()
	expander := builder.resolveHomeExpander()
	if len(configuration.Targets) == 0 && len(configuration.TargetsFile) > 0 {
		targetsFilePath := contextAccessor.ResolveRelativeToConfiguration(command.Context(), expander.Expand(configuration.TargetsFile))
		fileTargets, targetsError := LoadTargetsFile(targetsFilePath)
		if targetsError != nil {
			return targetsError
		}
		configuration.Targets = fileTargets
		configuration = configuration.Sanitize()
	}

	if len(configuration.Targets) == 0 && len(configuration.URL) == 0 {
		if helpError := displayCommandHelp(command); helpError != nil {
			return helpError
		}
	}

	if validationError := configuration.Validate(); validationError != nil {
		return validationError
	}

	runOptions, optionsError := configuration.RunOptions(expander, builder.WorkingDirectory)
	if optionsError != nil {
		return optionsError
	}

	dependencies, dependenciesError := builder.resolveDependencies(command, logger, configuration, runOptions)
	if dependenciesError != nil {
		return dependenciesError
	}

	outcome, runError := audit.NewService(dependencies).Run(command.Context(), runOptions)
	if runError != nil {
		return runError
	}

	output := command.OutOrStdout()
	verdictPrinter := ui.NewVerdictPrinter(output, ui.IsTerminal(output))
	if printError := verdictPrinter.Print(outcome.Envelope, outcome.SummaryPath); printError != nil {
		return fmt.Errorf(verdictOutputErrorTemplateConstant, printError)
	}

	if outcome.Envelope.OverallStatus == model.StepStatusFail {
		return audit.ErrAuditFailed
	}
	return nil
}

func (builder *CommandBuilder) resolveConfiguration() CommandConfiguration {
	if builder.ConfigurationProvider == nil {
		return DefaultCommandConfiguration()
	}
	return builder.ConfigurationProvider().Sanitize()
}

func (builder *CommandBuilder) resolveHomeExpander() *pathutils.HomeExpander {
	if builder.HomeExpander != nil {
		return builder.HomeExpander
	}
	return pathutils.NewHomeExpander()
}

func (builder *CommandBuilder) humanReadableLogging() bool {
	if builder.HumanReadableLoggingProvider == nil {
		return false
	}
	return builder.HumanReadableLoggingProvider()
}

// applyCommandOverrides lets the URL argument and changed flags take precedence over configuration.
func applyCommandOverrides(command *cobra.Command, arguments []string, configuration CommandConfiguration) CommandConfiguration {
	overridden := configuration
	if len(arguments) > 0 && len(strings.TrimSpace(arguments[0])) > 0 {
		overridden.URL = strings.TrimSpace(arguments[0])
		overridden.Targets = nil
		overridden.TargetsFile = ""
	}
	if command == nil {
		return overridden
	}

	flagSet := command.Flags()
	if flagSet.Changed(outputDirectoryFlagNameConstant) {
		value, _ := flagSet.GetString(outputDirectoryFlagNameConstant)
		overridden.OutputDirectory = strings.TrimSpace(value)
	}
	if flagSet.Changed(baselineDirectoryFlagNameConstant) {
		value, _ := flagSet.GetString(baselineDirectoryFlagNameConstant)
		overridden.BaselineDirectory = strings.TrimSpace(value)
	}
	if flagSet.Changed(updateBaselinesFlagNameConstant) {
		overridden.Visual.UpdateBaselines, _ = flagSet.GetBool(updateBaselinesFlagNameConstant)
	}
	if flagSet.Changed(failOnAccessibilityFlagNameConstant) {
		overridden.FailOnAccessibility, _ = flagSet.GetBool(failOnAccessibilityFlagNameConstant)
	}
	if flagSet.Changed(failOnPerformanceFlagNameConstant) {
		overridden.FailOnPerformance, _ = flagSet.GetBool(failOnPerformanceFlagNameConstant)
	}
	if flagSet.Changed(failOnVisualFlagNameConstant) {
		overridden.FailOnVisual, _ = flagSet.GetBool(failOnVisualFlagNameConstant)
	}
	return overridden.Sanitize()
}

func (builder *CommandBuilder) resolveDependencies(command *cobra.Command, logger *zap.Logger, configuration CommandConfiguration, runOptions audit.RunOptions) (audit.Dependencies, error) {
	dependencies := audit.Dependencies{
		Logger:                 logger,
		Browser:                builder.Browser,
		Accessibility:          builder.Accessibility,
		Performance:            builder.Performance,
		Visual:                 builder.Visual,
		Clock:                  builder.Clock,
		RunIdentifierGenerator: builder.RunIdentifierGenerator,
	}
	humanReadable := builder.humanReadableLogging()
	if humanReadable {
		dependencies.Observer = ui.NewConsoleStepLogger(logger)
	}

	retryPolicy, retryError := retry.NewPolicyFromConfiguration(configuration.Retry, logger)
	if retryError != nil {
		return audit.Dependencies{}, audit.ConfigurationError{Reason: retryPolicyReasonConstant, Cause: retryError}
	}

	if dependencies.Browser == nil {
		dependencies.Browser = browser.NewLauncher(browser.Configuration{
			ControlURL: strings.TrimSpace(configuration.Browser.ControlURL),
			BinaryPath: builder.resolveHomeExpander().Expand(strings.TrimSpace(configuration.Browser.BinaryPath)),
			Headless:   configuration.Browser.Headless,
		}, retryPolicy, logger)
	}

	if dependencies.Accessibility == nil && runOptions.Accessibility.Enabled {
		contextAccessor := utils.NewCommandContextAccessor()
		scriptPath := contextAccessor.ResolveRelativeToConfiguration(command.Context(), builder.resolveHomeExpander().Expand(configuration.Accessibility.ScriptPath))
		scanner, scannerError := accessibility.NewAxeScanner(scriptPath)
		if scannerError != nil {
			return audit.Dependencies{}, audit.ConfigurationError{Reason: accessibilityScannerReasonConstant, Cause: scannerError}
		}
		dependencies.Accessibility = scanner
	}

	needsShell := (dependencies.Performance == nil && runOptions.Performance.Enabled) || (dependencies.Visual == nil && runOptions.Visual.Enabled)
	if !needsShell {
		return dependencies, nil
	}

	commandRunner := builder.CommandRunner
	if commandRunner == nil {
		commandRunner = execshell.NewOSCommandRunner()
	}
	shellExecutor, executorError := execshell.NewShellExecutor(logger, commandRunner)
	if executorError != nil {
		return audit.Dependencies{}, audit.ConfigurationError{Reason: commandExecutorReasonConstant, Cause: executorError}
	}
	if humanReadable {
		shellExecutor = shellExecutor.WithObserver(ui.NewConsoleCommandEventLogger(logger))
	}

	if dependencies.Performance == nil && runOptions.Performance.Enabled {
		dependencies.Performance = performance.NewLighthouseAuditor(shellExecutor, performance.Configuration{ChromeFlags: configuration.Performance.ChromeFlags}, retryPolicy)
	}
	if dependencies.Visual == nil && runOptions.Visual.Enabled {
		dependencies.Visual = visual.NewImageMagickComparator(shellExecutor, visual.Configuration{FuzzPercent: configuration.Visual.FuzzPercent}, logger)
	}
	return dependencies, nil
}
