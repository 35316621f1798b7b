// Package artifact manages the on-disk lifecycle of run output files.
//
// Every file lives under a single output root. Handles can only be obtained
// from Create or Validate and are re-checked against the root on every
// access, so a handle never reaches outside it even if the directory tree
// changes underneath the store.
package artifact

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/hostaudit/hostaudit/pkg/defaults"
	"github.com/hostaudit/hostaudit/pkg/iohelper"
	"github.com/hostaudit/hostaudit/pkg/logging"
)

// Kind tags what an artifact holds.
type Kind int

const (
	// RawText is the inspection script's output.
	RawText Kind = iota + 1
	// Report is the rendered PDF.
	Report
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case RawText:
		return "raw"
	case Report:
		return "report"
	default:
		return "unknown"
	}
}

// Ext returns the file extension for the kind.
func (k Kind) Ext() string {
	switch k {
	case RawText:
		return ".txt"
	case Report:
		return ".pdf"
	default:
		return ""
	}
}

const (
	namePrefix  = "audit_"
	tempPattern = ".audit-*.tmp"
	probePrefix = ".write-probe-"
)

var (
	runIDRe    = regexp.MustCompile(`^[A-Za-z0-9-]{1,64}$`)
	artifactRe = regexp.MustCompile(`^audit_([A-Za-z0-9-]{1,64})\.(txt|pdf)$`)
)

// Handle is a validated, root-confined artifact path plus its kind.
type Handle struct {
	path  string
	kind  Kind
	runID string
}

// Path returns the absolute path of the artifact.
func (h Handle) Path() string { return h.path }

// Name returns the file name of the artifact, safe to log.
func (h Handle) Name() string { return filepath.Base(h.path) }

// Kind returns the artifact kind.
func (h Handle) Kind() Kind { return h.kind }

// RunID returns the run the artifact belongs to.
func (h Handle) RunID() string { return h.runID }

// IsZero reports whether h was never assigned.
func (h Handle) IsZero() bool { return h.path == "" }

// Store confines artifacts to one root directory.
type Store struct {
	root   string
	logger *slog.Logger
}

// New returns a Store rooted at root. The directory does not need to exist
// yet; call Init before first use.
func New(root string, logger *slog.Logger) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("%w: empty output root", ErrArtifactIO)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve root: %w", ErrArtifactIO, err)
	}
	s := &Store{root: filepath.Clean(abs), logger: logging.OrDefault(logger)}
	if resolved, err := filepath.EvalSymlinks(s.root); err == nil {
		s.root = resolved
	}
	return s, nil
}

// Root returns the canonical output root.
func (s *Store) Root() string { return s.root }

// Init creates the output root if needed and proves it is writable by
// creating and removing a probe file.
func (s *Store) Init() error {
	if err := os.MkdirAll(s.root, defaults.DirPerm); err != nil {
		return fmt.Errorf("%w: create root: %w", ErrArtifactIO, err)
	}
	resolved, err := filepath.EvalSymlinks(s.root)
	if err != nil {
		return fmt.Errorf("%w: resolve root: %w", ErrArtifactIO, err)
	}
	s.root = resolved

	probe, err := os.CreateTemp(s.root, probePrefix+"*")
	if err != nil {
		return fmt.Errorf("%w: root not writable: %w", ErrArtifactIO, err)
	}
	name := probe.Name()
	_, werr := probe.WriteString("ok")
	cerr := probe.Close()
	rerr := os.Remove(name)
	if err := errors.Join(werr, cerr, rerr); err != nil {
		return fmt.Errorf("%w: write probe: %w", ErrArtifactIO, err)
	}
	return nil
}

// Create allocates a new, empty artifact for runID. The file is created
// exclusively, so a run id can own at most one file of each kind.
func (s *Store) Create(runID string, kind Kind) (Handle, error) {
	if !runIDRe.MatchString(runID) {
		return Handle{}, fmt.Errorf("%w: %q", ErrInvalidRunID, runID)
	}
	if kind.Ext() == "" {
		return Handle{}, ErrUnknownKind
	}
	h := Handle{
		path:  filepath.Join(s.root, namePrefix+runID+kind.Ext()),
		kind:  kind,
		runID: runID,
	}
	f, err := os.OpenFile(h.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, defaults.FilePerm)
	if err != nil {
		return Handle{}, fmt.Errorf("%w: create %s: %w", ErrArtifactIO, h.Name(), err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(h.path)
		return Handle{}, fmt.Errorf("%w: create %s: %w", ErrArtifactIO, h.Name(), err)
	}
	return h, nil
}

// Open returns the artifact for reading. The handle is re-validated and the
// target must be a regular file, not a symlink.
func (s *Store) Open(h Handle) (*os.File, error) {
	if err := s.recheck(h); err != nil {
		return nil, err
	}
	fi, err := os.Lstat(h.path)
	if err != nil {
		return nil, fmt.Errorf("%w: stat %s: %w", ErrArtifactIO, h.Name(), err)
	}
	if !fi.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s is not a regular file", ErrPathEscape, h.Name())
	}
	f, err := os.Open(h.path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrArtifactIO, h.Name(), err)
	}
	return f, nil
}

// Read returns the artifact contents, failing if it is larger than max bytes.
func (s *Store) Read(h Handle, max int64) ([]byte, error) {
	f, err := s.Open(h)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := iohelper.ReadAll(f, max)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrArtifactIO, h.Name(), err)
	}
	return data, nil
}

// Write replaces the artifact contents atomically: data goes to a temp file
// in the root which is then renamed over the target.
func (s *Store) Write(h Handle, data []byte) error {
	return s.WriteFrom(h, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// WriteFrom is Write for producers that stream their output.
func (s *Store) WriteFrom(h Handle, produce func(io.Writer) error) error {
	if err := s.recheck(h); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.root, tempPattern)
	if err != nil {
		return fmt.Errorf("%w: temp for %s: %w", ErrArtifactIO, h.Name(), err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if err := produce(tmp); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("%w: write %s: %w", ErrArtifactIO, h.Name(), err)
	}
	if err := tmp.Chmod(defaults.FilePerm); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("%w: chmod %s: %w", ErrArtifactIO, h.Name(), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("%w: sync %s: %w", ErrArtifactIO, h.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("%w: close %s: %w", ErrArtifactIO, h.Name(), err)
	}
	if err := os.Rename(tmpName, h.path); err != nil {
		cleanup()
		return fmt.Errorf("%w: rename %s: %w", ErrArtifactIO, h.Name(), err)
	}
	return nil
}

// Size returns the artifact size in bytes.
func (s *Store) Size(h Handle) (int64, error) {
	if err := s.recheck(h); err != nil {
		return 0, err
	}
	fi, err := os.Lstat(h.path)
	if err != nil {
		return 0, fmt.Errorf("%w: stat %s: %w", ErrArtifactIO, h.Name(), err)
	}
	return fi.Size(), nil
}

// Delete removes the artifact. Deleting a missing artifact is not an error.
func (s *Store) Delete(h Handle) error {
	if err := s.recheck(h); err != nil {
		return err
	}
	if err := os.Remove(h.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: delete %s: %w", ErrArtifactIO, h.Name(), err)
	}
	return nil
}

// Validate turns an externally supplied path into a Handle. Both slash
// styles are accepted; relative paths are taken relative to the root. The
// path is cleaned and its parent directory resolved through symlinks before
// the containment check, and the final element may not itself be a symlink.
// Only names the store could have created, directly under the root, pass.
func (s *Store) Validate(p string) (Handle, error) {
	if strings.TrimSpace(p) == "" || strings.ContainsRune(p, 0) {
		return Handle{}, fmt.Errorf("%w: empty or malformed path", ErrPathEscape)
	}
	p = filepath.FromSlash(strings.ReplaceAll(p, `\`, "/"))
	if !filepath.IsAbs(p) {
		p = filepath.Join(s.root, p)
	}
	clean := filepath.Clean(p)
	if !s.within(clean) {
		return Handle{}, fmt.Errorf("%w: %s", ErrPathEscape, filepath.Base(clean))
	}

	resolved := clean
	if dir, err := filepath.EvalSymlinks(filepath.Dir(clean)); err == nil {
		resolved = filepath.Join(dir, filepath.Base(clean))
	} else if !errors.Is(err, fs.ErrNotExist) {
		return Handle{}, fmt.Errorf("%w: resolve %s: %w", ErrArtifactIO, filepath.Base(clean), err)
	}
	if !s.within(resolved) {
		return Handle{}, fmt.Errorf("%w: %s", ErrPathEscape, filepath.Base(clean))
	}
	if fi, err := os.Lstat(resolved); err == nil && fi.Mode()&fs.ModeSymlink != 0 {
		return Handle{}, fmt.Errorf("%w: %s is a symlink", ErrPathEscape, filepath.Base(resolved))
	}
	if filepath.Dir(resolved) != s.root {
		// Artifacts are only ever created directly under the root.
		return Handle{}, fmt.Errorf("%w: %s is not a top-level artifact", ErrUnknownKind, filepath.Base(resolved))
	}

	m := artifactRe.FindStringSubmatch(filepath.Base(resolved))
	if m == nil {
		return Handle{}, fmt.Errorf("%w: %s", ErrUnknownKind, filepath.Base(resolved))
	}
	kind := RawText
	if m[2] == "pdf" {
		kind = Report
	}
	return Handle{path: resolved, kind: kind, runID: m[1]}, nil
}

// HandleFor returns the handle an artifact of the given kind for runID
// would have, without touching the filesystem.
func (s *Store) HandleFor(runID string, kind Kind) (Handle, error) {
	if !runIDRe.MatchString(runID) {
		return Handle{}, fmt.Errorf("%w: %q", ErrInvalidRunID, runID)
	}
	if kind.Ext() == "" {
		return Handle{}, ErrUnknownKind
	}
	return s.Validate(namePrefix + runID + kind.Ext())
}

// Sweep removes artifacts and leftover temp files last modified more than
// olderThan ago. It returns the number of files removed.
func (s *Store) Sweep(olderThan time.Duration) (int, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: list root: %w", ErrArtifactIO, err)
	}

	cutoff := time.Now().Add(-olderThan)
	removed := 0
	var errs []error
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || !isSweepable(name) {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.root, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		removed++
		s.logger.Debug("swept stale artifact", slog.String("name", name))
	}
	if len(errs) > 0 {
		return removed, fmt.Errorf("%w: sweep: %w", ErrArtifactIO, errors.Join(errs...))
	}
	return removed, nil
}

func isSweepable(name string) bool {
	if artifactRe.MatchString(name) {
		return true
	}
	if strings.HasPrefix(name, probePrefix) {
		return true
	}
	return strings.HasPrefix(name, ".audit-") && strings.HasSuffix(name, ".tmp")
}

// recheck re-validates a handle against the current filesystem.
func (s *Store) recheck(h Handle) error {
	if h.IsZero() {
		return fmt.Errorf("%w: zero handle", ErrPathEscape)
	}
	v, err := s.Validate(h.path)
	if err != nil {
		return err
	}
	if v.path != h.path || v.kind != h.kind {
		return fmt.Errorf("%w: handle %s moved", ErrPathEscape, h.Name())
	}
	return nil
}

// within reports whether p is strictly inside the root. Uses filepath.Rel
// rather than a string prefix so "/out-other" is not inside "/out".
func (s *Store) within(p string) bool {
	rel, err := filepath.Rel(s.root, p)
	if err != nil || rel == "." {
		return false
	}
	if filepath.IsAbs(rel) || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	return true
}
