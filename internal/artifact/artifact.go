// Package artifact is the Artifact Store: a single flat directory of
// immutable Opus files named by opaque identifier. Created by the Fetcher,
// read-only to the Streaming Server, deleted by the Eviction Engine (or by
// the Fetcher when it cannot record an artifact it just wrote).
package artifact

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrTraversal is returned when a requested file name resolves outside Dir,
// or contains a path separator.
var ErrTraversal = errors.New("artifact: path escapes cache directory")

// Store resolves and guards access to files under Dir.
type Store struct {
	Dir string
}

// New returns a Store rooted at dir, creating it if necessary.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	return &Store{Dir: abs}, nil
}

// NewFileName generates an opaque "<uuid>.opus" basename for a fresh artifact.
func NewFileName() string {
	return uuid.NewString() + ".opus"
}

// Path resolves fileName (a pure basename, no separators) to an absolute
// path guaranteed to be a descendant of Dir. Rejects traversal per spec
// §4.5.1: the parameter must not contain path separators and the resolved
// path must remain under Dir.
func (s *Store) Path(fileName string) (string, error) {
	if fileName == "" || strings.ContainsAny(fileName, "/\\") || fileName == "." || fileName == ".." {
		return "", ErrTraversal
	}
	candidate := filepath.Join(s.Dir, fileName)
	rel, err := filepath.Rel(s.Dir, candidate)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrTraversal
	}
	return candidate, nil
}

// TempPath returns "<id>.tmp" under Dir, a working path for a
// not-yet-finalized artifact derived from id (the UUID portion, without
// ".opus"). The Fetcher does not call it: its extractor writes
// "<id>.<ext>" under Dir directly.
func (s *Store) TempPath(id string) string {
	return filepath.Join(s.Dir, id+".tmp")
}

// Stat resolves fileName and stats it, honoring the same traversal guard as Path.
func (s *Store) Stat(fileName string) (os.FileInfo, error) {
	p, err := s.Path(fileName)
	if err != nil {
		return nil, err
	}
	return os.Stat(p)
}

// Exists reports whether fileName resolves to a regular file that is
// present on disk. A traversal attempt reports false, not an error.
func (s *Store) Exists(fileName string) bool {
	info, err := s.Stat(fileName)
	return err == nil && !info.IsDir()
}

// Delete removes fileName's artifact. The Eviction Engine calls this, and so
// does the Fetcher when recording a freshly written artifact fails.
func (s *Store) Delete(fileName string) error {
	p, err := s.Path(fileName)
	if err != nil {
		return err
	}
	return os.Remove(p)
}

// Size returns the artifact's size in bytes.
func (s *Store) Size(fileName string) (int64, error) {
	info, err := s.Stat(fileName)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// TotalSize sums the size of every regular file directly under Dir (the
// flat layout means no subdirectory walk is needed).
func (s *Store) TotalSize() (int64, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		total += info.Size()
	}
	return total, nil
}
