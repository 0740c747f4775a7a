// Package download detects when the browser has finished writing an export
// into the download directory.
package download

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultExtension is the extension of the finished export.
	DefaultExtension = ".xls"
	// DefaultPollInterval is how often the directory is listed.
	DefaultPollInterval = 1 * time.Second
	// DefaultTimeout is how long an export may take to land on disk.
	DefaultTimeout = 240 * time.Second
)

// DefaultMarkers are the suffixes browsers give files that are still being
// written (Chromium/Edge, Firefox, Safari and generic partials).
var DefaultMarkers = []string{".crdownload", ".part", ".partial", ".download"}

// ErrTimeout matches any *TimeoutError.
var ErrTimeout = errors.New("download did not complete before deadline")

// Dir is the read-only filesystem view the Detector polls. Entries may
// disappear between ReadDir and Stat.
type Dir interface {
	ReadDir(name string) ([]fs.DirEntry, error)
	Stat(name string) (fs.FileInfo, error)
}

type osDir struct{}

func (osDir) ReadDir(name string) ([]fs.DirEntry, error) { return os.ReadDir(name) }
func (osDir) Stat(name string) (fs.FileInfo, error)      { return os.Stat(name) }

// Candidate is a finished file that was modified at or after the cutoff.
type Candidate struct {
	Path    string
	ModTime time.Time
}

// TimeoutError is returned when no qualifying file appeared before the
// deadline. Busy tells whether the last poll still saw a partial download,
// which separates "export never started" from "export is slow".
type TimeoutError struct {
	Dir      string
	Cutoff   time.Time
	Deadline time.Time
	Polls    int
	Busy     bool
	// LastErr is the last directory listing error, if any.
	LastErr error
}

func (e *TimeoutError) Error() string {
	state := "no new file"
	if e.Busy {
		state = "download still in progress"
	}
	msg := fmt.Sprintf("%s: %s in %s (cutoff %s, deadline %s, %d polls)",
		ErrTimeout, state, e.Dir,
		e.Cutoff.Format(time.RFC3339), e.Deadline.Format(time.RFC3339), e.Polls)
	if e.LastErr != nil {
		msg += fmt.Sprintf(": last listing error: %v", e.LastErr)
	}
	return msg
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// Detector polls a directory for a completed download.
type Detector struct {
	dir       Dir
	extension string
	markers   []string
	now       func() time.Time
	sleep     func(context.Context, time.Duration) error
	logger    *zap.Logger
}

// Option customises a Detector.
type Option func(*Detector)

// WithDir replaces the filesystem view.
func WithDir(dir Dir) Option {
	return func(d *Detector) { d.dir = dir }
}

// WithExtension sets the extension of a finished file, e.g. ".xls".
func WithExtension(ext string) Option {
	return func(d *Detector) {
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if ext != "" {
			d.extension = ext
		}
	}
}

// WithMarkers sets the suffixes that mark a file as still being written.
func WithMarkers(markers ...string) Option {
	return func(d *Detector) {
		if len(markers) > 0 {
			d.markers = markers
		}
	}
}

// WithClock replaces time.Now and the sleep between polls.
func WithClock(now func() time.Time, sleep func(context.Context, time.Duration) error) Option {
	return func(d *Detector) {
		d.now = now
		d.sleep = sleep
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Detector) { d.logger = logger }
}

// NewDetector returns a Detector reading the real filesystem.
func NewDetector(opts ...Option) *Detector {
	d := &Detector{
		dir:       osDir{},
		extension: DefaultExtension,
		markers:   DefaultMarkers,
		now:       time.Now,
		sleep:     sleepContext,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// watch is the state of one AwaitFile call.
type watch struct {
	dir      string
	cutoff   time.Time
	deadline time.Time
	polls    int
	busy     bool
	lastErr  error
}

// AwaitFile polls dir every pollInterval until a file with the configured
// extension and a modification time at or after cutoff is present while no
// partial download exists anywhere in dir. It returns the path of the most
// recently modified such file, or a *TimeoutError once now() passes deadline.
// It never modifies the directory.
func (d *Detector) AwaitFile(ctx context.Context, dir string, cutoff time.Time, pollInterval time.Duration, deadline time.Time) (string, error) {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	w := &watch{dir: dir, cutoff: cutoff, deadline: deadline}

	d.logger.Info("Waiting for download",
		zap.String("dir", dir),
		zap.String("extension", d.extension),
		zap.Time("cutoff", cutoff),
		zap.Time("deadline", deadline))

	for !d.now().After(deadline) {
		w.polls++
		cand := d.poll(w)
		if cand != nil {
			d.logger.Info("Download finished",
				zap.String("path", cand.Path),
				zap.Time("mtime", cand.ModTime),
				zap.Int("polls", w.polls))
			return cand.Path, nil
		}

		if err := d.sleep(ctx, pollInterval); err != nil {
			return "", fmt.Errorf("waiting for download in %s: %w", dir, err)
		}
	}

	return "", &TimeoutError{
		Dir:      dir,
		Cutoff:   cutoff,
		Deadline: deadline,
		Polls:    w.polls,
		Busy:     w.busy,
		LastErr:  w.lastErr,
	}
}

// poll performs one observation of the directory.
func (d *Detector) poll(w *watch) *Candidate {
	entries, err := d.dir.ReadDir(w.dir)
	if err != nil {
		w.lastErr = err
		d.logger.Debug("Listing download directory failed", zap.String("dir", w.dir), zap.Error(err))
		return nil
	}
	w.lastErr = nil

	for _, e := range entries {
		if d.isPartial(e.Name()) {
			if !w.busy {
				d.logger.Info("Download in progress", zap.String("partial", e.Name()))
			}
			w.busy = true
			return nil
		}
	}
	w.busy = false

	return d.newest(w, entries)
}

// newest returns the finished file with the greatest mtime not older than
// the cutoff. Equal mtimes resolve to the lexicographically smallest path.
func (d *Detector) newest(w *watch, entries []fs.DirEntry) *Candidate {
	var best *Candidate
	for _, e := range entries {
		if e.IsDir() || !d.isFinished(e.Name()) {
			continue
		}

		path := filepath.Join(w.dir, e.Name())
		info, err := d.dir.Stat(path)
		if err != nil {
			// Renamed or removed by the browser since the listing.
			d.logger.Debug("Candidate vanished", zap.String("path", path), zap.Error(err))
			continue
		}
		if info.IsDir() {
			continue
		}

		mtime := info.ModTime()
		if mtime.Before(w.cutoff) {
			continue
		}
		if best == nil || mtime.After(best.ModTime) || (mtime.Equal(best.ModTime) && path < best.Path) {
			best = &Candidate{Path: path, ModTime: mtime}
		}
	}
	return best
}

func (d *Detector) isPartial(name string) bool {
	lower := strings.ToLower(name)
	for _, m := range d.markers {
		if strings.HasSuffix(lower, strings.ToLower(m)) {
			return true
		}
	}
	return false
}

func (d *Detector) isFinished(name string) bool {
	return strings.EqualFold(filepath.Ext(name), d.extension)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
