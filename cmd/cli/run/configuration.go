package run

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/temirov/pageaudit/internal/audit"
	"github.com/temirov/pageaudit/internal/model"
	"github.com/temirov/pageaudit/internal/retry"
	pathutils "github.com/temirov/pageaudit/internal/utils/path"
)

const (
	defaultOutputDirectoryConstant          = "pageaudit-output"
	baselinesDirectoryNameConstant          = "baselines"
	historyDirectoryNameConstant            = "history"
	defaultScreenshotNameConstant           = "page"
	defaultAxeScriptPathConstant            = "node_modules/axe-core/axe.min.js"
	defaultVisualThresholdConstant          = 0.01
	defaultMaxSnapshotsConstant             = 200
	defaultViewportWidthConstant            = 1366
	defaultViewportHeightConstant           = 768
	defaultNavigationTimeoutConstant        = 30 * time.Second
	defaultRetryStrategyConstant            = string(retry.StrategyExponential)
	defaultRetryAttemptsConstant            = 3
	defaultRetryBaseDelayConstant           = 500 * time.Millisecond
	defaultRetryMaxDelayConstant            = 5 * time.Second
	thresholdOutOfRangeReasonTemplate       = "audit.visual.threshold must be between 0 and 1, got %g"
	invalidMaxSnapshotsReasonTemplate       = "audit.trend.max_snapshots must be at least 1, got %d"
	invalidViewportReasonTemplate           = "audit.browser viewport must be positive, got %dx%d"
	duplicateScreenshotReasonTemplate       = "audit.screenshots contains duplicate name %q"
	targetsFileReadReasonTemplate           = "unable to read targets file %s"
	targetsFileParseReasonTemplate          = "unable to parse targets file %s"
	workingDirectoryReasonConstant          = "unable to determine working directory"
	invalidRetryConfigurationReasonConstant = "invalid audit.retry configuration"
)

// CommandConfiguration captures the audit configuration block.
type CommandConfiguration struct {
	URL                 string                     `mapstructure:"url"`
	Targets             []audit.TargetDefinition   `mapstructure:"targets"`
	TargetsFile         string                     `mapstructure:"targets_file"`
	OutputDirectory     string                     `mapstructure:"output_dir"`
	BaselineDirectory   string                     `mapstructure:"baseline_dir"`
	PermittedRoot       string                     `mapstructure:"permitted_root"`
	FailOnAccessibility bool                       `mapstructure:"fail_on_a11y"`
	FailOnPerformance   bool                       `mapstructure:"fail_on_perf"`
	FailOnVisual        bool                       `mapstructure:"fail_on_visual"`
	Accessibility       AccessibilityConfiguration `mapstructure:"accessibility"`
	Performance         PerformanceConfiguration   `mapstructure:"performance"`
	Visual              VisualConfiguration        `mapstructure:"visual"`
	Screenshots         []ScreenshotConfiguration  `mapstructure:"screenshots"`
	Browser             BrowserConfiguration       `mapstructure:"browser"`
	Retry               retry.Configuration        `mapstructure:"retry"`
	Trend               TrendConfiguration         `mapstructure:"trend"`
	Schemas             SchemaConfiguration        `mapstructure:"schemas"`
}

// AccessibilityConfiguration configures the axe-core scan.
type AccessibilityConfiguration struct {
	Enabled    bool   `mapstructure:"enabled"`
	ScriptPath string `mapstructure:"script_path"`
}

// PerformanceConfiguration configures the Lighthouse audit.
type PerformanceConfiguration struct {
	Enabled     bool                     `mapstructure:"enabled"`
	Budgets     model.PerformanceBudgets `mapstructure:"budgets"`
	ChromeFlags []string                 `mapstructure:"chrome_flags"`
}

// VisualConfiguration configures baseline comparison.
type VisualConfiguration struct {
	Enabled         bool    `mapstructure:"enabled"`
	Threshold       float64 `mapstructure:"threshold"`
	FuzzPercent     float64 `mapstructure:"fuzz_percent"`
	UpdateBaselines bool    `mapstructure:"update_baselines"`
}

// ScreenshotConfiguration declares one screenshot captured per target.
type ScreenshotConfiguration struct {
	Name     string `mapstructure:"name"`
	FullPage bool   `mapstructure:"full_page"`
}

// BrowserConfiguration selects and tunes the Chrome session.
type BrowserConfiguration struct {
	ControlURL        string        `mapstructure:"control_url"`
	BinaryPath        string        `mapstructure:"binary_path"`
	Headless          bool          `mapstructure:"headless"`
	ViewportWidth     int           `mapstructure:"viewport_width"`
	ViewportHeight    int           `mapstructure:"viewport_height"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout"`
	UserAgent         string        `mapstructure:"user_agent"`
}

// TrendConfiguration configures history comparison and retention.
type TrendConfiguration struct {
	Enabled          bool   `mapstructure:"enabled"`
	HistoryDirectory string `mapstructure:"history_dir"`
	MaxSnapshots     int    `mapstructure:"max_snapshots"`
}

// SchemaConfiguration overrides the schema identifiers stamped into envelopes.
type SchemaConfiguration struct {
	V1URI     string `mapstructure:"v1_uri"`
	V1Version string `mapstructure:"v1_version"`
	V2URI     string `mapstructure:"v2_uri"`
	V2Version string `mapstructure:"v2_version"`
}

type targetsFileDocument struct {
	Targets []audit.TargetDefinition `yaml:"targets"`
}

// DefaultCommandConfiguration provides the settings used when no configuration is supplied.
func DefaultCommandConfiguration() CommandConfiguration {
	envelopeDefaults := audit.DefaultEnvelopeOptions()
	return CommandConfiguration{
		OutputDirectory:     defaultOutputDirectoryConstant,
		FailOnAccessibility: true,
		FailOnPerformance:   true,
		FailOnVisual:        true,
		Accessibility:       AccessibilityConfiguration{Enabled: true, ScriptPath: defaultAxeScriptPathConstant},
		Performance:         PerformanceConfiguration{Enabled: true},
		Visual:              VisualConfiguration{Enabled: true, Threshold: defaultVisualThresholdConstant},
		Screenshots:         []ScreenshotConfiguration{{Name: defaultScreenshotNameConstant, FullPage: true}},
		Browser: BrowserConfiguration{
			Headless:          true,
			ViewportWidth:     defaultViewportWidthConstant,
			ViewportHeight:    defaultViewportHeightConstant,
			NavigationTimeout: defaultNavigationTimeoutConstant,
		},
		Retry: retry.Configuration{
			Strategy:    defaultRetryStrategyConstant,
			MaxAttempts: defaultRetryAttemptsConstant,
			BaseDelay:   defaultRetryBaseDelayConstant,
			MaxDelay:    defaultRetryMaxDelayConstant,
		},
		Trend: TrendConfiguration{Enabled: true, MaxSnapshots: defaultMaxSnapshotsConstant},
		Schemas: SchemaConfiguration{
			V1URI:     envelopeDefaults.V1SchemaURI,
			V1Version: envelopeDefaults.V1SchemaVersion,
			V2URI:     envelopeDefaults.V2SchemaURI,
			V2Version: envelopeDefaults.V2SchemaVersion,
		},
	}
}

// DefaultConfigurationValues exposes scalar defaults keyed for the configuration loader.
func DefaultConfigurationValues(prefix string) map[string]any {
	defaults := DefaultCommandConfiguration()
	key := func(name string) string {
		if len(prefix) == 0 {
			return name
		}
		return prefix + "." + name
	}
	return map[string]any{
		key("output_dir"):                 defaults.OutputDirectory,
		key("fail_on_a11y"):               defaults.FailOnAccessibility,
		key("fail_on_perf"):               defaults.FailOnPerformance,
		key("fail_on_visual"):             defaults.FailOnVisual,
		key("accessibility.enabled"):      defaults.Accessibility.Enabled,
		key("accessibility.script_path"):  defaults.Accessibility.ScriptPath,
		key("performance.enabled"):        defaults.Performance.Enabled,
		key("visual.enabled"):             defaults.Visual.Enabled,
		key("visual.threshold"):           defaults.Visual.Threshold,
		key("browser.headless"):           defaults.Browser.Headless,
		key("browser.viewport_width"):     defaults.Browser.ViewportWidth,
		key("browser.viewport_height"):    defaults.Browser.ViewportHeight,
		key("browser.navigation_timeout"): defaults.Browser.NavigationTimeout.String(),
		key("retry.strategy"):             defaults.Retry.Strategy,
		key("retry.max_attempts"):         defaults.Retry.MaxAttempts,
		key("retry.base_delay"):           defaults.Retry.BaseDelay.String(),
		key("retry.max_delay"):            defaults.Retry.MaxDelay.String(),
		key("trend.enabled"):              defaults.Trend.Enabled,
		key("trend.max_snapshots"):        defaults.Trend.MaxSnapshots,
	}
}

// Sanitize trims textual settings and fills blanks with defaults.
func (configuration CommandConfiguration) Sanitize() CommandConfiguration {
	defaults := DefaultCommandConfiguration()
	sanitized := configuration

	sanitized.URL = strings.TrimSpace(configuration.URL)
	sanitized.TargetsFile = strings.TrimSpace(configuration.TargetsFile)
	sanitized.OutputDirectory = strings.TrimSpace(configuration.OutputDirectory)
	if len(sanitized.OutputDirectory) == 0 {
		sanitized.OutputDirectory = defaults.OutputDirectory
	}
	sanitized.BaselineDirectory = strings.TrimSpace(configuration.BaselineDirectory)
	sanitized.PermittedRoot = strings.TrimSpace(configuration.PermittedRoot)
	sanitized.Accessibility.ScriptPath = strings.TrimSpace(configuration.Accessibility.ScriptPath)
	if len(sanitized.Accessibility.ScriptPath) == 0 {
		sanitized.Accessibility.ScriptPath = defaults.Accessibility.ScriptPath
	}
	sanitized.Trend.HistoryDirectory = strings.TrimSpace(configuration.Trend.HistoryDirectory)

	sanitized.Targets = make([]audit.TargetDefinition, 0, len(configuration.Targets))
	for _, definition := range configuration.Targets {
		sanitized.Targets = append(sanitized.Targets, audit.TargetDefinition{
			Name: strings.TrimSpace(definition.Name),
			URL:  strings.TrimSpace(definition.URL),
		})
	}

	sanitized.Screenshots = make([]ScreenshotConfiguration, 0, len(configuration.Screenshots))
	for _, screenshot := range configuration.Screenshots {
		name := strings.TrimSpace(screenshot.Name)
		if len(name) == 0 {
			continue
		}
		sanitized.Screenshots = append(sanitized.Screenshots, ScreenshotConfiguration{Name: name, FullPage: screenshot.FullPage})
	}
	if len(sanitized.Screenshots) == 0 {
		sanitized.Screenshots = defaults.Screenshots
	}

	if sanitized.Browser.ViewportWidth == 0 {
		sanitized.Browser.ViewportWidth = defaults.Browser.ViewportWidth
	}
	if sanitized.Browser.ViewportHeight == 0 {
		sanitized.Browser.ViewportHeight = defaults.Browser.ViewportHeight
	}
	if sanitized.Browser.NavigationTimeout <= 0 {
		sanitized.Browser.NavigationTimeout = defaults.Browser.NavigationTimeout
	}

	sanitized.Retry.Strategy = strings.ToLower(strings.TrimSpace(configuration.Retry.Strategy))
	if len(sanitized.Retry.Strategy) == 0 {
		sanitized.Retry.Strategy = defaults.Retry.Strategy
	}
	if sanitized.Retry.MaxAttempts == 0 {
		sanitized.Retry.MaxAttempts = defaults.Retry.MaxAttempts
	}
	if sanitized.Retry.BaseDelay == 0 {
		sanitized.Retry.BaseDelay = defaults.Retry.BaseDelay
	}
	if sanitized.Retry.MaxDelay == 0 {
		sanitized.Retry.MaxDelay = defaults.Retry.MaxDelay
	}

	if len(strings.TrimSpace(sanitized.Schemas.V1URI)) == 0 {
		sanitized.Schemas.V1URI = defaults.Schemas.V1URI
	}
	if len(strings.TrimSpace(sanitized.Schemas.V1Version)) == 0 {
		sanitized.Schemas.V1Version = defaults.Schemas.V1Version
	}
	if len(strings.TrimSpace(sanitized.Schemas.V2URI)) == 0 {
		sanitized.Schemas.V2URI = defaults.Schemas.V2URI
	}
	if len(strings.TrimSpace(sanitized.Schemas.V2Version)) == 0 {
		sanitized.Schemas.V2Version = defaults.Schemas.V2Version
	}

	return sanitized
}

// Validate rejects settings no run could honor.
func (configuration CommandConfiguration) Validate() error {
	if configuration.Visual.Threshold < 0 || configuration.Visual.Threshold > 1 {
		return audit.ConfigurationError{Reason: fmt.Sprintf(thresholdOutOfRangeReasonTemplate, configuration.Visual.Threshold)}
	}
	if configuration.Trend.MaxSnapshots < 1 {
		return audit.ConfigurationError{Reason: fmt.Sprintf(invalidMaxSnapshotsReasonTemplate, configuration.Trend.MaxSnapshots)}
	}
	if configuration.Browser.ViewportWidth < 0 || configuration.Browser.ViewportHeight < 0 {
		return audit.ConfigurationError{Reason: fmt.Sprintf(invalidViewportReasonTemplate, configuration.Browser.ViewportWidth, configuration.Browser.ViewportHeight)}
	}
	seenScreenshots := make(map[string]struct{}, len(configuration.Screenshots))
	for _, screenshot := range configuration.Screenshots {
		if _, duplicate := seenScreenshots[screenshot.Name]; duplicate {
			return audit.ConfigurationError{Reason: fmt.Sprintf(duplicateScreenshotReasonTemplate, screenshot.Name)}
		}
		seenScreenshots[screenshot.Name] = struct{}{}
	}
	if _, strategyError := retry.NewStrategy(retry.StrategyName(configuration.Retry.Strategy), configuration.Retry.BaseDelay, configuration.Retry.MaxDelay); strategyError != nil {
		return audit.ConfigurationError{Reason: invalidRetryConfigurationReasonConstant, Cause: strategyError}
	}
	return nil
}

// LoadTargetsFile reads a YAML target list. The document is either a bare
// sequence of {name, url} entries or a mapping with a targets key.
func LoadTargetsFile(path string) ([]audit.TargetDefinition, error) {
	content, readError := os.ReadFile(path)
	if readError != nil {
		return nil, audit.ConfigurationError{Reason: fmt.Sprintf(targetsFileReadReasonTemplate, path), Cause: readError}
	}

	var definitions []audit.TargetDefinition
	if sequenceError := yaml.Unmarshal(content, &definitions); sequenceError == nil {
		return definitions, nil
	}

	var document targetsFileDocument
	if documentError := yaml.Unmarshal(content, &document); documentError != nil {
		return nil, audit.ConfigurationError{Reason: fmt.Sprintf(targetsFileParseReasonTemplate, path), Cause: documentError}
	}
	return document.Targets, nil
}

// RunOptions converts the configuration into audit.RunOptions. Directories have
// "~" expanded; the baseline and history directories default to subdirectories
// of the output directory and the permitted root defaults to workingDirectory.
func (configuration CommandConfiguration) RunOptions(expander *pathutils.HomeExpander, workingDirectory string) (audit.RunOptions, error) {
	if len(workingDirectory) == 0 {
		resolvedWorkingDirectory, workingDirectoryError := os.Getwd()
		if workingDirectoryError != nil {
			return audit.RunOptions{}, audit.ConfigurationError{Reason: workingDirectoryReasonConstant, Cause: workingDirectoryError}
		}
		workingDirectory = resolvedWorkingDirectory
	}

	outputDirectory := anchorDirectory(expander.Expand(configuration.OutputDirectory), workingDirectory)

	baselineDirectory := expander.Expand(configuration.BaselineDirectory)
	if len(baselineDirectory) == 0 {
		baselineDirectory = filepath.Join(outputDirectory, baselinesDirectoryNameConstant)
	}
	historyDirectory := expander.Expand(configuration.Trend.HistoryDirectory)
	if len(historyDirectory) == 0 {
		historyDirectory = filepath.Join(outputDirectory, historyDirectoryNameConstant)
	}
	permittedRoot := expander.Expand(configuration.PermittedRoot)
	if len(permittedRoot) == 0 {
		permittedRoot = workingDirectory
	}

	screenshots := make([]audit.ScreenshotDefinition, 0, len(configuration.Screenshots))
	for _, screenshot := range configuration.Screenshots {
		screenshots = append(screenshots, audit.ScreenshotDefinition{Name: screenshot.Name, FullPage: screenshot.FullPage})
	}

	return audit.RunOptions{
		URL:               configuration.URL,
		Targets:           append([]audit.TargetDefinition(nil), configuration.Targets...),
		OutputDirectory:   outputDirectory,
		BaselineDirectory: anchorDirectory(baselineDirectory, workingDirectory),
		PermittedRoot:     anchorDirectory(permittedRoot, workingDirectory),
		Browser: audit.BrowserOptions{
			ViewportWidth:     configuration.Browser.ViewportWidth,
			ViewportHeight:    configuration.Browser.ViewportHeight,
			NavigationTimeout: configuration.Browser.NavigationTimeout,
			UserAgent:         strings.TrimSpace(configuration.Browser.UserAgent),
		},
		Accessibility: audit.AccessibilityOptions{Enabled: configuration.Accessibility.Enabled},
		Performance:   audit.PerformanceOptions{Enabled: configuration.Performance.Enabled, Budgets: configuration.Performance.Budgets},
		Visual: audit.VisualOptions{
			Enabled:         configuration.Visual.Enabled,
			Threshold:       configuration.Visual.Threshold,
			UpdateBaselines: configuration.Visual.UpdateBaselines,
		},
		Screenshots: screenshots,
		FailSwitches: audit.FailSwitches{
			Accessibility: configuration.FailOnAccessibility,
			Performance:   configuration.FailOnPerformance,
			Visual:        configuration.FailOnVisual,
		},
		Trend: audit.TrendOptions{
			Enabled:          configuration.Trend.Enabled,
			HistoryDirectory: anchorDirectory(historyDirectory, workingDirectory),
			MaxSnapshots:     configuration.Trend.MaxSnapshots,
		},
		Envelope: audit.EnvelopeOptions{
			V1SchemaURI:     configuration.Schemas.V1URI,
			V1SchemaVersion: configuration.Schemas.V1Version,
			V2SchemaURI:     configuration.Schemas.V2URI,
			V2SchemaVersion: configuration.Schemas.V2Version,
		},
	}, nil
}

func anchorDirectory(directory string, workingDirectory string) string {
	if len(directory) == 0 || filepath.IsAbs(directory) {
		return directory
	}
	return filepath.Join(workingDirectory, directory)
}
