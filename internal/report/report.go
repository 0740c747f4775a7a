// Package report provides the end-of-run export report.
package report

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// ErrorEntry represents a single error that occurred during the run.
type ErrorEntry struct {
	Timestamp time.Time
	Stage     string // "navigation", "download", ...
	Message   string
}

// Stats holds everything collected during one export run.
type Stats struct {
	RunID          string
	StartTime      time.Time
	EndTime        time.Time
	StepsTotal     int
	StepsCompleted int
	FailedStep     string
	Cutoff         time.Time
	DownloadDir    string
	FilePath       string
	FileSize       int64
	Polls          int
	Errors         []ErrorEntry

	now func() time.Time
}

// New creates a Stats instance with StartTime set to now.
func New(runID string, stepsTotal int) *Stats {
	return newWithClock(runID, stepsTotal, time.Now)
}

func newWithClock(runID string, stepsTotal int, now func() time.Time) *Stats {
	return &Stats{
		RunID:      runID,
		StartTime:  now(),
		StepsTotal: stepsTotal,
		now:        now,
	}
}

// AddError records an error that occurred during stage.
func (s *Stats) AddError(stage string, err error) {
	s.Errors = append(s.Errors, ErrorEntry{
		Timestamp: s.now(),
		Stage:     stage,
		Message:   err.Error(),
	})
}

// SetFile records the finished export and its size on disk.
func (s *Stats) SetFile(path string) {
	s.FilePath = path
	if info, err := os.Stat(path); err == nil {
		s.FileSize = info.Size()
	}
}

// Succeeded reports whether the run produced a file without errors.
func (s *Stats) Succeeded() bool {
	return s.FilePath != "" && len(s.Errors) == 0
}

// Finish marks the end time of the run. Later calls keep the first time.
func (s *Stats) Finish() {
	if s.EndTime.IsZero() {
		s.EndTime = s.now()
	}
}

// Duration returns the total run duration.
func (s *Stats) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return s.now().Sub(s.StartTime)
	}
	return s.EndTime.Sub(s.StartTime)
}

// formatBytes formats bytes into human-readable format.
func formatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d bytes", bytes)
	}
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

const (
	boxWidth   = 56
	labelWidth = 16
	maxErrors  = 5
)

// Print writes the final report to w.
func (s *Stats) Print(w io.Writer) {
	s.Finish()

	fmt.Fprintln(w)
	rule(w, "=")
	title := "EXPORT REPORT"
	fmt.Fprintf(w, "%s%s%s%s\n", strings.Repeat(" ", (boxWidth-len(title))/2), colorBold, title, colorReset)
	rule(w, "-")

	row(w, "Run", s.RunID, "")
	if s.Succeeded() {
		row(w, "Result", "exported", colorGreen)
	} else {
		row(w, "Result", "failed", colorRed)
	}
	row(w, "Duration", formatDuration(s.Duration()), "")

	stepsColor := colorGreen
	steps := fmt.Sprintf("%d/%d", s.StepsCompleted, s.StepsTotal)
	if s.StepsCompleted < s.StepsTotal {
		stepsColor = colorYellow
		if s.FailedStep != "" {
			steps += " (stopped at " + s.FailedStep + ")"
		}
	}
	row(w, "Steps", steps, stepsColor)

	if !s.Cutoff.IsZero() {
		row(w, "Export clicked", s.Cutoff.Format("2006-01-02 15:04:05"), "")
	}
	if s.DownloadDir != "" {
		row(w, "Directory", s.DownloadDir, "")
	}
	if s.FilePath != "" {
		row(w, "File", s.FilePath, colorGreen)
		row(w, "Size", formatBytes(s.FileSize), "")
	}
	if s.Polls > 0 {
		row(w, "Polls", fmt.Sprintf("%d", s.Polls), "")
	}

	rule(w, "-")
	if len(s.Errors) == 0 {
		row(w, "Errors", "none", colorGreen)
	} else {
		row(w, "Errors", fmt.Sprintf("%d", len(s.Errors)), colorRed)
		for i, e := range s.Errors {
			if i >= maxErrors {
				fmt.Fprintf(w, "    %s... and %d more errors%s\n", colorRed, len(s.Errors)-maxErrors, colorReset)
				break
			}
			fmt.Fprintf(w, "    %s- [%s] %s%s\n", colorRed, e.Stage, e.Message, colorReset)
		}
	}
	rule(w, "=")
	fmt.Fprintln(w)
}

func rule(w io.Writer, ch string) {
	fmt.Fprintf(w, "%s%s%s\n", colorCyan, strings.Repeat(ch, boxWidth), colorReset)
}

func row(w io.Writer, label, value, color string) {
	if color != "" {
		value = color + value + colorReset
	}
	fmt.Fprintf(w, "  %-*s %s\n", labelWidth, label, value)
}

// Summary returns a brief one-line summary of the stats.
func (s *Stats) Summary() string {
	outcome := "no file"
	if s.FilePath != "" {
		outcome = fmt.Sprintf("%s (%s)", s.FilePath, formatBytes(s.FileSize))
	}
	return fmt.Sprintf(
		"%d/%d steps, %s, %d errors in %s",
		s.StepsCompleted,
		s.StepsTotal,
		outcome,
		len(s.Errors),
		formatDuration(s.Duration()),
	)
}
