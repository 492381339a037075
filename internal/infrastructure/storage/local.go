package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/johnquangdev/meetbot/internal/domain/entities"
)

// ErrOutputNotFound is returned when a session's output does not exist (yet)
var ErrOutputNotFound = errors.New("output not found")

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// OutputFileName builds "<session>_<YYYYmmdd_HHMMSS>.<ext>" with the session ID made path safe
func OutputFileName(sessionID string, at time.Time, extension string) string {
	return fmt.Sprintf("%s_%s.%s", unsafeName.ReplaceAllString(sessionID, "_"), at.UTC().Format("20060102_150405"), extension)
}

// LocalStorage keeps session outputs under a directory on the local filesystem
type LocalStorage struct {
	dir       string
	extension string
	now       func() time.Time
}

// NewLocalStorage creates dir if needed
func NewLocalStorage(dir, extension string) (*LocalStorage, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", dir, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", abs, err)
	}
	return &LocalStorage{dir: abs, extension: extension, now: time.Now}, nil
}

// AllocateOutputPath reserves a file path for the session
func (s *LocalStorage) AllocateOutputPath(_ context.Context, sessionID string) (entities.OutputLocation, error) {
	return entities.OutputLocation{
		Store: s.dir,
		Path:  OutputFileName(sessionID, s.now(), s.extension),
	}, nil
}

// Delete removes the session's file. A missing file is not an error.
func (s *LocalStorage) Delete(_ context.Context, loc entities.OutputLocation) error {
	full, err := s.resolve(loc)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete %s: %w", full, err)
	}
	return nil
}

// URL returns a file URL once the file exists
func (s *LocalStorage) URL(_ context.Context, loc entities.OutputLocation, _ time.Duration) (string, error) {
	full, err := s.resolve(loc)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(full); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrOutputNotFound
		}
		return "", fmt.Errorf("failed to stat %s: %w", full, err)
	}
	return "file://" + full, nil
}

// resolve maps a location to a file inside dir
func (s *LocalStorage) resolve(loc entities.OutputLocation) (string, error) {
	full := filepath.Join(s.dir, filepath.Clean("/"+loc.Path))
	if rel, err := filepath.Rel(s.dir, full); err != nil || rel == "." {
		return "", fmt.Errorf("invalid output path %q", loc.Path)
	}
	return full, nil
}
