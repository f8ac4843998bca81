package marker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/runtime-bootstrap/internal/config"
	domain "github.com/oshokin/runtime-bootstrap/internal/domain/install"
)

// Tracker answers whether an install completed and records when it does.
type Tracker interface {
	IsInstalled(ctx context.Context) bool
	TargetState(ctx context.Context) (domain.TargetState, error)
	MarkSuccess(ctx context.Context, record *domain.Record) error
}

// FileTracker keeps the install fact as a sentinel file inside the target directory.
// Only the file's existence matters; its content is an informational Record.
type FileTracker struct {
	// targetDir is the root of the installed state.
	targetDir string
	// path is the location of the sentinel file.
	path string
}

var (
	// ErrNotFound is returned by Load when no marker exists.
	ErrNotFound = errors.New("success marker not found")
	// errTargetNotDirectory is returned when the target path is a regular file.
	errTargetNotDirectory = errors.New("install target exists but is not a directory")
)

// NewFileTracker creates a tracker for the marker fileName directly under targetDir.
func NewFileTracker(targetDir, fileName string) *FileTracker {
	return &FileTracker{
		targetDir: filepath.Clean(targetDir),
		path:      filepath.Join(filepath.Clean(targetDir), filepath.FromSlash(fileName)),
	}
}

// Path returns the sentinel file location.
func (t *FileTracker) Path() string {
	return t.path
}

// IsInstalled reports whether the marker file exists. Content is not inspected.
func (t *FileTracker) IsInstalled(_ context.Context) bool {
	_, err := os.Stat(t.path)

	return err == nil
}

// TargetState classifies the target directory as absent, incomplete or installed.
func (t *FileTracker) TargetState(ctx context.Context) (domain.TargetState, error) {
	info, err := os.Stat(t.targetDir)
	if errors.Is(err, os.ErrNotExist) {
		return domain.TargetAbsent, nil
	}

	if err != nil {
		return domain.TargetAbsent, fmt.Errorf("stat install target: %w", err)
	}

	if !info.IsDir() {
		return domain.TargetIncomplete, fmt.Errorf("%s: %w", t.targetDir, errTargetNotDirectory)
	}

	if t.IsInstalled(ctx) {
		return domain.TargetInstalled, nil
	}

	return domain.TargetIncomplete, nil
}

// MarkSuccess writes the marker, creating or truncating it.
// A nil record produces an empty marker.
func (t *FileTracker) MarkSuccess(_ context.Context, record *domain.Record) error {
	var data []byte

	if record != nil {
		encoded, err := yaml.Marshal(record)
		if err != nil {
			return fmt.Errorf("encode marker: %w", err)
		}

		data = encoded
	}

	if err := os.WriteFile(t.path, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write marker: %w", err)
	}

	return nil
}

// Load reads the informational record from the marker.
// An empty marker yields an empty record.
func (t *FileTracker) Load(_ context.Context) (*domain.Record, error) {
	contents, err := os.ReadFile(t.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read marker: %w", err)
	}

	record := new(domain.Record)
	if err = yaml.Unmarshal(contents, record); err != nil {
		return nil, fmt.Errorf("decode marker: %w", err)
	}

	return record, nil
}
