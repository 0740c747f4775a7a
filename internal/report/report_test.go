package report

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func steppingClock(start time.Time, step time.Duration) func() time.Time {
	cur := start.Add(-step)
	return func() time.Time {
		cur = cur.Add(step)
		return cur
	}
}

func TestSuccessfulRun(t *testing.T) {
	s := newWithClock("run-1", 9, steppingClock(time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC), 90*time.Second))

	path := filepath.Join(t.TempDir(), "export.xls")
	require.NoError(t, os.WriteFile(path, make([]byte, 2048), 0o644))

	s.StepsCompleted = 9
	s.SetFile(path)
	s.Finish()

	assert.True(t, s.Succeeded())
	assert.Equal(t, int64(2048), s.FileSize)
	assert.Equal(t, 90*time.Second, s.Duration())
	assert.Equal(t, "9/9 steps, "+path+" (2.00 KB), 0 errors in 1m 30s", s.Summary())

	var buf bytes.Buffer
	s.Print(&buf)
	out := buf.String()
	assert.Contains(t, out, "EXPORT REPORT")
	assert.Contains(t, out, "run-1")
	assert.Contains(t, out, path)
	assert.Contains(t, out, "exported")
	assert.NotContains(t, out, "failed")
	assert.Contains(t, out, "none")
}

func TestFailedRun(t *testing.T) {
	s := newWithClock("run-2", 9, steppingClock(time.Now(), time.Second))
	s.StepsCompleted = 5
	s.FailedStep = "open download page"
	for i := 0; i < 7; i++ {
		s.AddError("navigation", errors.New("element not ready"))
	}

	assert.False(t, s.Succeeded())

	var buf bytes.Buffer
	s.Print(&buf)
	out := buf.String()
	assert.Contains(t, out, "failed")
	assert.NotContains(t, out, "exported")
	assert.Contains(t, out, "5/9 (stopped at open download page)")
	assert.Contains(t, out, "[navigation] element not ready")
	assert.Contains(t, out, "... and 2 more errors")
	assert.Contains(t, s.Summary(), "no file")
}

func TestFinishIsIdempotent(t *testing.T) {
	s := newWithClock("r", 1, steppingClock(time.Now(), time.Second))
	s.Finish()
	end := s.EndTime
	s.Finish()
	assert.Equal(t, end, s.EndTime)
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "512 bytes", formatBytes(512))
	assert.Equal(t, "1.50 MB", formatBytes(1536*1024))
	assert.Equal(t, "1.00 GB", formatBytes(1<<30))

	assert.Equal(t, "45s", formatDuration(45*time.Second))
	assert.Equal(t, "2m 5s", formatDuration(125*time.Second))
	assert.Equal(t, "1h 0m 1s", formatDuration(time.Hour+time.Second))
}
