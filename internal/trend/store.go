package trend

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/temirov/pageaudit/internal/model"
)

const (
	// SnapshotSuffix terminates every snapshot filename.
	SnapshotSuffix = ".summary.v2.json"

	snapshotTimestampLayoutConstant       = "2006-01-02T15:04:05.000Z"
	historyDirectoryPermissionsConstant   = 0o755
	snapshotFilePermissionsConstant       = 0o644
	stagingFilePatternConstant            = ".snapshot-*.tmp"
	snapshotJSONIndentConstant            = "  "
	createHistoryErrorTemplateConstant    = "unable to create history directory %s: %w"
	writeSnapshotErrorTemplateConstant    = "unable to write snapshot %s: %w"
	listHistoryErrorTemplateConstant      = "unable to list history directory %s: %w"
	removeSnapshotErrorTemplateConstant   = "unable to remove snapshot %s: %w"
	defaultMaxSnapshotsConstant           = 200
	timestampSeparatorReplacementConstant = "-"
)

var snapshotTimestampReplacer = strings.NewReplacer(":", timestampSeparatorReplacementConstant, ".", timestampSeparatorReplacementConstant)

// Clock abstracts time-dependent functionality for deterministic testing.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

// Store persists run envelopes as timestamped snapshots and enforces a retention cap.
// Two writes within the same millisecond share a filename and the later one wins.
type Store struct {
	directory    string
	maxSnapshots int
	clock        Clock
}

// NewStore constructs a Store. A non-positive cap falls back to 200 snapshots.
func NewStore(directory string, maxSnapshots int, clock Clock) *Store {
	if clock == nil {
		clock = systemClock{}
	}
	if maxSnapshots <= 0 {
		maxSnapshots = defaultMaxSnapshotsConstant
	}
	return &Store{directory: directory, maxSnapshots: maxSnapshots, clock: clock}
}

// SnapshotFileName formats the snapshot name for an instant: ISO-8601 UTC with
// milliseconds, colons and periods replaced by hyphens.
func SnapshotFileName(instant time.Time) string {
	formatted := instant.UTC().Format(snapshotTimestampLayoutConstant)
	return snapshotTimestampReplacer.Replace(formatted) + SnapshotSuffix
}

// Write persists the envelope as a new snapshot and returns its path.
func (store *Store) Write(envelope model.Envelope) (string, error) {
	if directoryError := os.MkdirAll(store.directory, historyDirectoryPermissionsConstant); directoryError != nil {
		return "", fmt.Errorf(createHistoryErrorTemplateConstant, store.directory, directoryError)
	}

	snapshotPath := filepath.Join(store.directory, SnapshotFileName(store.clock.Now()))
	content, encodeError := json.MarshalIndent(envelope, "", snapshotJSONIndentConstant)
	if encodeError != nil {
		return "", fmt.Errorf(writeSnapshotErrorTemplateConstant, snapshotPath, encodeError)
	}
	if writeError := writeFileAtomically(store.directory, snapshotPath, append(content, '\n')); writeError != nil {
		return "", fmt.Errorf(writeSnapshotErrorTemplateConstant, snapshotPath, writeError)
	}
	return snapshotPath, nil
}

// writeFileAtomically stages content in a temporary file that never matches the
// snapshot suffix and renames it into place, so a failed write leaves no partial
// snapshot behind.
func writeFileAtomically(directory string, targetPath string, content []byte) error {
	stagingFile, createError := os.CreateTemp(directory, stagingFilePatternConstant)
	if createError != nil {
		return createError
	}
	stagingPath := stagingFile.Name()

	_, writeError := stagingFile.Write(content)
	closeError := stagingFile.Close()
	if writeError == nil {
		writeError = closeError
	}
	if writeError == nil {
		writeError = os.Chmod(stagingPath, snapshotFilePermissionsConstant)
	}
	if writeError == nil {
		writeError = os.Rename(stagingPath, targetPath)
	}
	if writeError != nil {
		_ = os.Remove(stagingPath)
		return writeError
	}
	return nil
}

// Prune deletes the oldest snapshots until at most the configured cap remain and
// returns the removed paths.
func (store *Store) Prune() ([]string, error) {
	snapshotPaths, listError := ListSnapshots(store.directory)
	if listError != nil {
		return nil, listError
	}

	removed := make([]string, 0)
	for len(snapshotPaths) > store.maxSnapshots {
		oldestPath := snapshotPaths[0]
		if removeError := os.Remove(oldestPath); removeError != nil && !errors.Is(removeError, fs.ErrNotExist) {
			return removed, fmt.Errorf(removeSnapshotErrorTemplateConstant, oldestPath, removeError)
		}
		removed = append(removed, oldestPath)
		snapshotPaths = snapshotPaths[1:]
	}
	return removed, nil
}

// ListSnapshots returns snapshot paths in the directory sorted ascending by name,
// which is chronological by construction. A missing directory yields no snapshots.
func ListSnapshots(directory string) ([]string, error) {
	entries, readError := os.ReadDir(directory)
	if readError != nil {
		if errors.Is(readError, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf(listHistoryErrorTemplateConstant, directory, readError)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), SnapshotSuffix) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	paths := make([]string, 0, len(names))
	for _, name := range names {
		paths = append(paths, filepath.Join(directory, name))
	}
	return paths, nil
}
