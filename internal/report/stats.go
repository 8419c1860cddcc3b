package report

import "fmt"

// Stats accumulates the outcome of one task or of a whole run. Each task owns
// its own Stats; the orchestrator merges them.
type Stats struct {
	SuccessfulUploads int      `json:"successful_uploads"`
	SkippedFiles      int      `json:"skipped_files"`
	FailedUploads     int      `json:"failed_uploads"`
	FailedConversions int      `json:"failed_conversions"`
	Errors            []string `json:"errors,omitempty"`
}

// Uploaded records a successful upload
func (s *Stats) Uploaded() {
	s.SuccessfulUploads++
}

// Skipped records an artifact that already existed remotely
func (s *Stats) Skipped() {
	s.SkippedFiles++
}

// UploadFailed records a failed upload
func (s *Stats) UploadFailed(format string, args ...any) {
	s.FailedUploads++
	s.Errors = append(s.Errors, fmt.Sprintf(format, args...))
}

// ConversionFailed records a codec or colorizer failure
func (s *Stats) ConversionFailed(format string, args ...any) {
	s.FailedConversions++
	s.Errors = append(s.Errors, fmt.Sprintf(format, args...))
}

// Merge adds other into s
func (s *Stats) Merge(other *Stats) {
	if other == nil {
		return
	}
	s.SuccessfulUploads += other.SuccessfulUploads
	s.SkippedFiles += other.SkippedFiles
	s.FailedUploads += other.FailedUploads
	s.FailedConversions += other.FailedConversions
	s.Errors = append(s.Errors, other.Errors...)
}

// Clean reports whether nothing failed
func (s *Stats) Clean() bool {
	return s.FailedUploads == 0 && s.FailedConversions == 0
}
