package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/temirov/pageaudit/internal/model"
)

const (
	artifactDirectoryPermissionsConstant = 0o755
	artifactFilePermissionsConstant      = 0o644
	jsonIndentConstant                   = "  "
	createDirectoryErrorTemplateConstant = "unable to create directory %s: %w"
	writeArtifactErrorTemplateConstant   = "unable to write artifact %s: %w"
	encodeArtifactErrorTemplateConstant  = "unable to encode artifact %s: %w"
	renderReportErrorTemplateConstant    = "unable to render report %s: %w"
)

// envelopeArtifactPaths lists the three files written for an envelope.
type envelopeArtifactPaths struct {
	Summary   string
	SummaryV2 string
	Report    string
}

func artifactPathsFor(directory string) envelopeArtifactPaths {
	return envelopeArtifactPaths{
		Summary:   filepath.Join(directory, summaryFileNameConstant),
		SummaryV2: filepath.Join(directory, summaryV2FileNameConstant),
		Report:    filepath.Join(directory, reportFileNameConstant),
	}
}

// writeEnvelopeArtifacts persists summary.json, summary.v2.json, and report.html.
func writeEnvelopeArtifacts(directory string, envelopeV2 model.Envelope, options EnvelopeOptions, renderer ReportRenderer) (envelopeArtifactPaths, error) {
	paths := artifactPathsFor(directory)
	if directoryError := os.MkdirAll(directory, artifactDirectoryPermissionsConstant); directoryError != nil {
		return paths, fmt.Errorf(createDirectoryErrorTemplateConstant, directory, directoryError)
	}

	if writeError := writeJSON(paths.Summary, ProjectV1(envelopeV2, options)); writeError != nil {
		return paths, writeError
	}
	if writeError := writeJSON(paths.SummaryV2, envelopeV2); writeError != nil {
		return paths, writeError
	}

	reportContent, renderError := renderer.Render(envelopeV2)
	if renderError != nil {
		return paths, fmt.Errorf(renderReportErrorTemplateConstant, paths.Report, renderError)
	}
	if writeError := os.WriteFile(paths.Report, reportContent, artifactFilePermissionsConstant); writeError != nil {
		return paths, fmt.Errorf(writeArtifactErrorTemplateConstant, paths.Report, writeError)
	}
	return paths, nil
}

func writeJSON(path string, value any) error {
	content, encodeError := json.MarshalIndent(value, "", jsonIndentConstant)
	if encodeError != nil {
		return fmt.Errorf(encodeArtifactErrorTemplateConstant, path, encodeError)
	}
	if writeError := os.WriteFile(path, append(content, '\n'), artifactFilePermissionsConstant); writeError != nil {
		return fmt.Errorf(writeArtifactErrorTemplateConstant, path, writeError)
	}
	return nil
}

func writeBinaryArtifact(path string, content []byte) error {
	if directoryError := os.MkdirAll(filepath.Dir(path), artifactDirectoryPermissionsConstant); directoryError != nil {
		return fmt.Errorf(createDirectoryErrorTemplateConstant, filepath.Dir(path), directoryError)
	}
	if writeError := os.WriteFile(path, content, artifactFilePermissionsConstant); writeError != nil {
		return fmt.Errorf(writeArtifactErrorTemplateConstant, path, writeError)
	}
	return nil
}
