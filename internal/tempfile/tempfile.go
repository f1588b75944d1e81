// Package tempfile stages uploaded audio on local disk for the lifetime of a
// single request.
package tempfile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// maxBaseLen caps the client filename kept in a staged name so that
// "temp_<uuid>_" plus the base stays under the common 255-byte limit.
const maxBaseLen = 200

var (
	// ErrWrite is returned when the staged file cannot be created or written.
	ErrWrite = errors.New("temporary file write failed")
	// ErrMissing is returned when a staged file is not on disk after writing.
	ErrMissing = errors.New("temporary file was not created successfully")
)

// File is one staged upload.
type File struct {
	Path    string
	Name    string // client-supplied filename
	Size    int64
	removed atomic.Bool
}

// Manager creates and removes staged files under a single directory.
type Manager struct {
	dir    string
	active atomic.Int64
	log    zerolog.Logger
}

// NewManager returns a manager rooted at dir. The directory is created if needed.
func NewManager(dir string, log zerolog.Logger) (*Manager, error) {
	if dir == "" {
		dir = "."
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve temp dir %s: %w", dir, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", abs, err)
	}
	m := &Manager{
		dir: abs,
		log: log.With().Str("component", "tempfile").Logger(),
	}
	m.log.Info().Str("dir", abs).Msg("staging directory ready")
	return m, nil
}

// Dir returns the absolute staging directory.
func (m *Manager) Dir() string { return m.dir }

// Active returns the number of staged files not yet removed.
func (m *Manager) Active() int { return int(m.active.Load()) }

// Write copies r into a new uniquely named file and returns it.
// The name embeds a random UUID so concurrent uploads of the same filename
// never share a path. Returned errors wrap ErrWrite and the underlying cause
// but never name the staging path; it is logged instead.
func (m *Manager) Write(name string, r io.Reader) (*File, error) {
	path := filepath.Join(m.dir, fmt.Sprintf("temp_%s_%s", uuid.NewString(), safeBase(name)))

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		m.log.Error().Err(err).Str("path", path).Msg("temp file create failed")
		return nil, fmt.Errorf("%w: create: %w", ErrWrite, stripPath(err))
	}
	n, err := io.Copy(f, r)
	if err != nil {
		f.Close()
		os.Remove(path)
		m.log.Warn().Err(err).Str("path", path).Msg("temp file write failed")
		return nil, fmt.Errorf("%w: write: %w", ErrWrite, stripPath(err))
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		m.log.Error().Err(err).Str("path", path).Msg("temp file close failed")
		return nil, fmt.Errorf("%w: close: %w", ErrWrite, stripPath(err))
	}

	m.active.Add(1)
	m.log.Debug().Str("path", path).Int64("bytes", n).Msg("temp file written")
	return &File{Path: path, Name: name, Size: n}, nil
}

// Stat verifies that f is still on disk.
func (m *Manager) Stat(f *File) error {
	if _, err := os.Stat(f.Path); err != nil {
		m.log.Error().Err(err).Str("path", f.Path).Msg("staged file missing")
		return ErrMissing
	}
	return nil
}

// Remove deletes f. Calling it more than once is a no-op.
func (m *Manager) Remove(f *File) {
	if f == nil || !f.removed.CompareAndSwap(false, true) {
		return
	}
	m.active.Add(-1)

	err := os.Remove(f.Path)
	switch {
	case err == nil:
		m.log.Debug().Str("path", f.Path).Msg("temp file removed")
	case errors.Is(err, os.ErrNotExist):
		m.log.Warn().Str("path", f.Path).Msg("temp file not found for cleanup")
	default:
		m.log.Error().Err(err).Str("path", f.Path).Msg("temp file cleanup failed")
	}
}

// With stages r, verifies the file exists, and runs fn with its path.
// The file is removed on every exit path, including a panic in fn.
func (m *Manager) With(name string, r io.Reader, fn func(path string) error) error {
	f, err := m.Write(name, r)
	if err != nil {
		return err
	}
	defer m.Remove(f)

	if err := m.Stat(f); err != nil {
		return err
	}
	return fn(f.Path)
}

// safeBase reduces a client filename to a base name that cannot escape the
// staging directory, truncated to maxBaseLen bytes with its extension kept.
func safeBase(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	base := filepath.Base(name)
	if base == "." || base == "/" || base == ".." || base == "" {
		return "upload"
	}
	if len(base) <= maxBaseLen {
		return base
	}
	ext := filepath.Ext(base)
	if len(ext) > maxBaseLen/4 {
		ext = ""
	}
	return truncateUTF8(strings.TrimSuffix(base, ext), maxBaseLen-len(ext)) + ext
}

// truncateUTF8 shortens s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	for len(s) > n {
		_, size := utf8.DecodeLastRuneInString(s)
		s = s[:len(s)-size]
	}
	return s
}

// stripPath drops the file path from *os.PathError so error text can be
// shown to clients.
func stripPath(err error) error {
	var pe *os.PathError
	if errors.As(err, &pe) {
		return fmt.Errorf("%s: %w", pe.Op, pe.Err)
	}
	return err
}
