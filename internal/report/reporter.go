package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Summary renders the four counters
func (s *Stats) Summary() string {
	return fmt.Sprintf(`
Successful Uploads: %d
Skipped Existing: %d
Failed Conversions: %d
Upload Errors: %d
`, s.SuccessfulUploads, s.SkippedFiles, s.FailedConversions, s.FailedUploads)
}

// Details renders the itemized error section
func (s *Stats) Details() string {
	if len(s.Errors) == 0 {
		return "\nNo errors logged.\n"
	}
	return "\n--- Error Details ---\n" + strings.Join(s.Errors, "\n") + "\n"
}

// LogFileName returns the run log name for a run started at t
func LogFileName(t time.Time, runID string) string {
	if len(runID) > 8 {
		runID = runID[:8]
	}
	return fmt.Sprintf("upload-log-%d-%s.txt", t.UnixMilli(), runID)
}

// WriteLog writes the summary and error details to a new file in dir and
// returns its path.
func WriteLog(dir string, stats *Stats, runID string, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create logs directory: %w", err)
	}

	path := filepath.Join(dir, LogFileName(now, runID))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to create run log: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(stats.Summary() + stats.Details()); err != nil {
		return "", fmt.Errorf("failed to write run log: %w", err)
	}
	return path, nil
}
