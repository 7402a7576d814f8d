package visual

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/png"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/pageaudit/internal/audit"
	"github.com/temirov/pageaudit/internal/execshell"
	"github.com/temirov/pageaudit/internal/model"
)

const (
	imageExtensionConstant               = ".png"
	diffSuffixConstant                   = ".diff.png"
	metricFlagConstant                   = "-metric"
	absoluteErrorMetricConstant          = "AE"
	fuzzFlagConstant                     = "-fuzz"
	fuzzValueTemplateConstant            = "%g%%"
	directoryPermissionsConstant         = 0o755
	filePermissionsConstant              = 0o644
	compareDissimilarExitCodeConstant    = 1
	compareErrorExitCodeConstant         = 2
	dimensionMismatchMarkerConstant      = "differ"
	fullMismatchRatioConstant            = 1.0
	baselineCreatedMessageConstant       = "Stored visual baseline"
	shotComparedMessageConstant          = "Compared screenshot with baseline"
	shotNameLogFieldConstant             = "shot"
	baselinePathLogFieldConstant         = "baseline"
	mismatchRatioLogFieldConstant        = "mismatch_ratio"
	createDirectoryErrorTemplateConstant = "unable to create directory %s: %w"
	copyBaselineErrorTemplateConstant    = "unable to store baseline %s: %w"
	inspectBaselineErrorTemplateConstant = "unable to inspect baseline %s: %w"
	decodeImageErrorTemplateConstant     = "unable to read image dimensions of %s: %w"
	parseMetricErrorTemplateConstant     = "unable to parse compare metric %q: %w"
	emptyMetricMessageConstant           = "compare produced no metric"
	emptyImageErrorTemplateConstant      = "image %s has no pixels"
)

// CompareExecutor runs ImageMagick compare.
type CompareExecutor interface {
	ExecuteImageMagickCompare(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// Configuration tunes the comparison.
type Configuration struct {
	FuzzPercent float64
}

// ImageMagickComparator compares screenshots with compare -metric AE.
type ImageMagickComparator struct {
	executor      CompareExecutor
	configuration Configuration
	logger        *zap.Logger
}

// NewImageMagickComparator constructs an ImageMagickComparator.
func NewImageMagickComparator(executor CompareExecutor, configuration Configuration, logger *zap.Logger) *ImageMagickComparator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImageMagickComparator{executor: executor, configuration: configuration, logger: logger}
}

// Compare checks every screenshot against its baseline. Missing baselines, or all
// baselines when OverwriteBaseline is set, are created from the screenshot and
// count as a match. A shot fails when its mismatch ratio exceeds the threshold.
func (comparator *ImageMagickComparator) Compare(executionContext context.Context, request audit.VisualRequest) (model.VisualResult, error) {
	result := model.VisualResult{
		Threshold:      request.Threshold,
		PerShotResults: make([]model.ShotComparison, 0, len(request.Screenshots)),
	}

	for _, screenshot := range request.Screenshots {
		comparison, compareError := comparator.compareShot(executionContext, screenshot, request)
		if compareError != nil {
			return model.VisualResult{}, compareError
		}
		if comparison.Failed {
			result.AggregateFailed = true
		}
		result.PerShotResults = append(result.PerShotResults, comparison)
	}
	return result, nil
}

func (comparator *ImageMagickComparator) compareShot(executionContext context.Context, screenshot model.Screenshot, request audit.VisualRequest) (model.ShotComparison, error) {
	baselinePath := filepath.Join(request.BaselineDirectory, screenshot.Name+imageExtensionConstant)
	comparison := model.ShotComparison{
		Name:           screenshot.Name,
		ScreenshotPath: screenshot.Path,
		BaselinePath:   baselinePath,
	}

	baselineExists, inspectError := fileExists(baselinePath)
	if inspectError != nil {
		return model.ShotComparison{}, fmt.Errorf(inspectBaselineErrorTemplateConstant, baselinePath, inspectError)
	}
	if request.OverwriteBaseline || !baselineExists {
		if copyError := copyFile(screenshot.Path, baselinePath); copyError != nil {
			return model.ShotComparison{}, fmt.Errorf(copyBaselineErrorTemplateConstant, baselinePath, copyError)
		}
		comparator.logger.Info(baselineCreatedMessageConstant, zap.String(shotNameLogFieldConstant, screenshot.Name), zap.String(baselinePathLogFieldConstant, baselinePath))
		comparison.BaselineCreated = true
		return comparison, nil
	}

	if directoryError := os.MkdirAll(request.DiffDirectory, directoryPermissionsConstant); directoryError != nil {
		return model.ShotComparison{}, fmt.Errorf(createDirectoryErrorTemplateConstant, request.DiffDirectory, directoryError)
	}
	diffPath := filepath.Join(request.DiffDirectory, screenshot.Name+diffSuffixConstant)

	mismatchRatio, ratioError := comparator.measureMismatch(executionContext, screenshot.Path, baselinePath, diffPath)
	if ratioError != nil {
		return model.ShotComparison{}, ratioError
	}

	comparison.DiffPath = diffPath
	comparison.MismatchRatio = mismatchRatio
	comparison.Failed = mismatchRatio > request.Threshold
	comparator.logger.Debug(shotComparedMessageConstant, zap.String(shotNameLogFieldConstant, screenshot.Name), zap.Float64(mismatchRatioLogFieldConstant, mismatchRatio))
	return comparison, nil
}

func (comparator *ImageMagickComparator) measureMismatch(executionContext context.Context, screenshotPath string, baselinePath string, diffPath string) (float64, error) {
	arguments := []string{metricFlagConstant, absoluteErrorMetricConstant}
	if comparator.configuration.FuzzPercent > 0 {
		arguments = append(arguments, fuzzFlagConstant, fmt.Sprintf(fuzzValueTemplateConstant, comparator.configuration.FuzzPercent))
	}
	arguments = append(arguments, screenshotPath, baselinePath, diffPath)

	executionResult, executionError := comparator.executor.ExecuteImageMagickCompare(executionContext, execshell.CommandDetails{Arguments: arguments})
	if executionError != nil {
		var failedError execshell.CommandFailedError
		if !errors.As(executionError, &failedError) {
			return 0, executionError
		}
		switch {
		case failedError.Result.ExitCode == compareDissimilarExitCodeConstant:
			executionResult = failedError.Result
		case failedError.Result.ExitCode == compareErrorExitCodeConstant && strings.Contains(failedError.Result.StandardError, dimensionMismatchMarkerConstant):
			return fullMismatchRatioConstant, nil
		default:
			return 0, executionError
		}
	}

	differentPixels, parseError := ParseAbsoluteErrorMetric(executionResult.StandardError)
	if parseError != nil {
		return 0, parseError
	}
	width, height, dimensionError := imageDimensions(screenshotPath)
	if dimensionError != nil {
		return 0, dimensionError
	}
	return MismatchRatio(differentPixels, width, height), nil
}

// ParseAbsoluteErrorMetric reads the differing pixel count compare writes to
// standard error. Both "1234" and "1234 (0.0188)" forms are accepted.
func ParseAbsoluteErrorMetric(output string) (float64, error) {
	fields := strings.Fields(output)
	if len(fields) == 0 {
		return 0, errors.New(emptyMetricMessageConstant)
	}
	value, parseError := strconv.ParseFloat(fields[0], 64)
	if parseError != nil {
		return 0, fmt.Errorf(parseMetricErrorTemplateConstant, fields[0], parseError)
	}
	return value, nil
}

// MismatchRatio converts a differing pixel count into a ratio of the image area,
// clamped to [0, 1].
func MismatchRatio(differentPixels float64, width int, height int) float64 {
	totalPixels := float64(width) * float64(height)
	if totalPixels <= 0 {
		return fullMismatchRatioConstant
	}
	ratio := differentPixels / totalPixels
	if ratio < 0 {
		return 0
	}
	if ratio > fullMismatchRatioConstant {
		return fullMismatchRatioConstant
	}
	return ratio
}

func imageDimensions(path string) (int, int, error) {
	file, openError := os.Open(path)
	if openError != nil {
		return 0, 0, fmt.Errorf(decodeImageErrorTemplateConstant, path, openError)
	}
	defer file.Close()

	configuration, _, decodeError := image.DecodeConfig(file)
	if decodeError != nil {
		return 0, 0, fmt.Errorf(decodeImageErrorTemplateConstant, path, decodeError)
	}
	if configuration.Width == 0 || configuration.Height == 0 {
		return 0, 0, fmt.Errorf(emptyImageErrorTemplateConstant, path)
	}
	return configuration.Width, configuration.Height, nil
}

func fileExists(path string) (bool, error) {
	_, statError := os.Stat(path)
	if statError == nil {
		return true, nil
	}
	if errors.Is(statError, fs.ErrNotExist) {
		return false, nil
	}
	return false, statError
}

func copyFile(sourcePath string, destinationPath string) error {
	content, readError := os.ReadFile(sourcePath)
	if readError != nil {
		return readError
	}
	if directoryError := os.MkdirAll(filepath.Dir(destinationPath), directoryPermissionsConstant); directoryError != nil {
		return directoryError
	}
	return os.WriteFile(destinationPath, content, filePermissionsConstant)
}
