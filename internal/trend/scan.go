package trend

import (
	"encoding/json"
	"strings"

	"github.com/temirov/pageaudit/internal/model"
)

const (
	schemaVersionFieldConstant     = "schemaVersion"
	pagesFieldConstant             = "pages"
	rollupFieldConstant            = "rollup"
	pageCountFieldConstant         = "pageCount"
	supportedSchemaMajorConstant   = "2"
	schemaVersionSeparatorConstant = "."
)

type snapshotClassification int

const (
	snapshotClassificationValid snapshotClassification = iota
	snapshotClassificationCorrupt
	snapshotClassificationIncompatible
)

// SnapshotReader loads snapshot content by path.
type SnapshotReader func(path string) ([]byte, error)

type previousSnapshot struct {
	path     string
	envelope model.Envelope
}

// scanResult is the accumulator of the history fold.
type scanResult struct {
	match                 *previousSnapshot
	corruptSightings      int
	incompatibleSightings int
}

// scanSnapshots folds over candidate paths, newest first, and stops at the first
// snapshot that parses and matches the v2 run envelope shape. Unreadable or
// unparseable files are corruption sightings; parseable files of another shape are
// incompatibility sightings.
func scanSnapshots(candidatePaths []string, readSnapshot SnapshotReader) scanResult {
	accumulator := scanResult{}
	for _, candidatePath := range candidatePaths {
		if accumulator.match != nil {
			break
		}
		accumulator = foldSnapshot(accumulator, candidatePath, readSnapshot)
	}
	return accumulator
}

func foldSnapshot(accumulator scanResult, candidatePath string, readSnapshot SnapshotReader) scanResult {
	content, readError := readSnapshot(candidatePath)
	if readError != nil {
		accumulator.corruptSightings++
		return accumulator
	}

	envelope, classification := classifySnapshot(content)
	switch classification {
	case snapshotClassificationCorrupt:
		accumulator.corruptSightings++
	case snapshotClassificationIncompatible:
		accumulator.incompatibleSightings++
	default:
		accumulator.match = &previousSnapshot{path: candidatePath, envelope: envelope}
	}
	return accumulator
}

func classifySnapshot(content []byte) (model.Envelope, snapshotClassification) {
	var decoded any
	if decodeError := json.Unmarshal(content, &decoded); decodeError != nil {
		return model.Envelope{}, snapshotClassificationCorrupt
	}
	document, isObject := decoded.(map[string]any)
	if !isObject || !hasRunEnvelopeShape(document) {
		return model.Envelope{}, snapshotClassificationIncompatible
	}

	var envelope model.Envelope
	if decodeError := json.Unmarshal(content, &envelope); decodeError != nil {
		return model.Envelope{}, snapshotClassificationIncompatible
	}
	return envelope, snapshotClassificationValid
}

func hasRunEnvelopeShape(document map[string]any) bool {
	schemaVersion, isString := document[schemaVersionFieldConstant].(string)
	if !isString {
		return false
	}
	major, _, _ := strings.Cut(strings.TrimSpace(schemaVersion), schemaVersionSeparatorConstant)
	if major != supportedSchemaMajorConstant {
		return false
	}

	if _, isArray := document[pagesFieldConstant].([]any); !isArray {
		return false
	}

	rollup, isObject := document[rollupFieldConstant].(map[string]any)
	if !isObject {
		return false
	}
	_, isNumber := rollup[pageCountFieldConstant].(float64)
	return isNumber
}
