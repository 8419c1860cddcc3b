package ledger

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/tendant/cdn-asset-pipeline/pkg/pipeline"
)

// DefaultSentinelSuffix is appended to a source file once it is processed
const DefaultSentinelSuffix = ".done"

// SentinelLedger marks sources by renaming them with a suffix
type SentinelLedger struct {
	suffix string
}

// NewSentinelLedger creates a ledger using suffix (DefaultSentinelSuffix when empty)
func NewSentinelLedger(suffix string) *SentinelLedger {
	if suffix == "" {
		suffix = DefaultSentinelSuffix
	}
	return &SentinelLedger{suffix: suffix}
}

// Suffix returns the sentinel suffix
func (l *SentinelLedger) Suffix() string {
	return l.suffix
}

// Processed reports whether the file already carries the sentinel suffix
func (l *SentinelLedger) Processed(_ context.Context, src pipeline.Source) (bool, error) {
	return strings.HasSuffix(src.Path, l.suffix), nil
}

// MarkProcessed renames the source file in place
func (l *SentinelLedger) MarkProcessed(_ context.Context, src pipeline.Source) error {
	if err := os.Rename(src.Path, src.Path+l.suffix); err != nil {
		return fmt.Errorf("failed to mark %s processed: %w", src.Path, err)
	}
	return nil
}

var _ Ledger = (*SentinelLedger)(nil)
