package workflows

import (
	"context"
	"time"

	"github.com/tendant/cdn-asset-pipeline/internal/report"
	"github.com/tendant/cdn-asset-pipeline/pkg/pipeline"
)

// WorkflowContext contains context for processing one source file
type WorkflowContext struct {
	Ctx     context.Context
	RunID   string
	Version string
	DryRun  bool
	Source  pipeline.Source
	Colors  []pipeline.ColorVariant // icons only
}

// Workflow turns one source file into its uploaded variants
type Workflow interface {
	// Execute processes the source and returns the task's own stats.
	// Failures are recorded in the stats, never returned.
	Execute(wctx *WorkflowContext) *report.Stats

	// Name returns the workflow name
	Name() string
}

// Mode names a run selection
type Mode string

// Mode constants
const (
	ModeFull      Mode = "full"
	ModeIconsOnly Mode = "icons"
	ModeFlagsOnly Mode = "flags"
	ModeRedoOnly  Mode = "redo"
)

// ModeOf validates opts and returns the selected mode
func ModeOf(opts pipeline.RunOptions) (Mode, error) {
	selected := 0
	mode := ModeFull
	if opts.IconsOnly {
		selected++
		mode = ModeIconsOnly
	}
	if opts.FlagsOnly {
		selected++
		mode = ModeFlagsOnly
	}
	if opts.RedoOnly {
		selected++
		mode = ModeRedoOnly
	}
	if selected > 1 {
		return "", ErrConflictingModes
	}
	return mode, nil
}

// RunResult summarises a finished pipeline run
type RunResult struct {
	RunID     string
	Version   string
	Mode      Mode
	DryRun    bool
	Files     int
	Stats     *report.Stats
	StartedAt time.Time
	Duration  time.Duration
}
