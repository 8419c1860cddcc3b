package workflows

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/tendant/cdn-asset-pipeline/internal/assets"
	"github.com/tendant/cdn-asset-pipeline/internal/colorize"
	"github.com/tendant/cdn-asset-pipeline/internal/ledger"
	"github.com/tendant/cdn-asset-pipeline/internal/metrics"
	"github.com/tendant/cdn-asset-pipeline/internal/report"
	"github.com/tendant/cdn-asset-pipeline/internal/version"
	"github.com/tendant/cdn-asset-pipeline/pkg/logger"
	"github.com/tendant/cdn-asset-pipeline/pkg/pipeline"
)

// DefaultConcurrency is the number of file tasks run at once
const DefaultConcurrency = 5

// RedoDir is the icons subdirectory holding icons to re-process
const RedoDir = "redo"

// Config holds the orchestrator configuration
type Config struct {
	AssetsDir   string // contains images/, flags/, icons/ and icons/redo/
	ColorsPath  string // icon colour configuration
	Concurrency int
}

// Orchestrator discovers source files and runs one workflow task per file
// under a global concurrency cap
type Orchestrator struct {
	workflows   map[pipeline.Category]Workflow
	resolver    *version.Resolver
	ledger      ledger.Ledger
	recorder    metrics.Recorder
	assetsDir   string
	colorsPath  string
	concurrency int
}

// NewOrchestrator creates a new orchestrator
func NewOrchestrator(cfg Config, resolver *version.Resolver, l ledger.Ledger, recorder metrics.Recorder) *Orchestrator {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &Orchestrator{
		workflows:   make(map[pipeline.Category]Workflow),
		resolver:    resolver,
		ledger:      l,
		recorder:    recorder,
		assetsDir:   cfg.AssetsDir,
		colorsPath:  cfg.ColorsPath,
		concurrency: cfg.Concurrency,
	}
}

// Register registers the workflow handling a category
func (o *Orchestrator) Register(category pipeline.Category, workflow Workflow) {
	o.workflows[category] = workflow
}

// Run resolves the version, schedules every pending source file and waits
// for all of them. Task failures are counted in the returned stats; only
// setup errors are returned.
func (o *Orchestrator) Run(ctx context.Context, opts pipeline.RunOptions) (*RunResult, error) {
	mode, err := ModeOf(opts)
	if err != nil {
		return nil, err
	}

	startedAt := time.Now()
	runID := uuid.New().String()
	log := logger.Log.With().Str("run_id", runID).Logger()

	ver, err := o.resolver.Resolve(ctx, opts.VersionOverride)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve version: %w", err)
	}
	log.Info().Str("version", ver).Str("mode", string(mode)).Bool("dry_run", opts.DryRun).Msg("Starting asset pipeline")

	sources, err := o.discover(mode)
	if err != nil {
		return nil, err
	}

	var colors []pipeline.ColorVariant
	if hasCategory(sources, pipeline.CategoryIcons) {
		colors, err = colorize.LoadColors(o.colorsPath)
		if err != nil {
			return nil, err
		}
	}

	planned := 0
	for _, src := range sources {
		planned += plannedArtifacts(src, colors)
	}
	log.Info().Int("files", len(sources)).Int("artifacts", planned).Int("concurrency", o.concurrency).Msg("Scheduled source files")

	total := &report.Stats{}
	var mu sync.Mutex

	g := &errgroup.Group{}
	g.SetLimit(o.concurrency)
	for _, src := range sources {
		wctx := &WorkflowContext{
			Ctx:     ctx,
			RunID:   runID,
			Version: ver,
			DryRun:  opts.DryRun,
			Source:  src,
			Colors:  colors,
		}
		g.Go(func() error {
			stats := o.runTask(wctx)
			mu.Lock()
			total.Merge(stats)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	duration := time.Since(startedAt)
	o.recorder.RecordRun(string(mode), duration)
	log.Info().
		Int("uploaded", total.SuccessfulUploads).
		Int("skipped", total.SkippedFiles).
		Int("failed_uploads", total.FailedUploads).
		Int("failed_conversions", total.FailedConversions).
		Dur("duration", duration).
		Msg("Pipeline finished")

	return &RunResult{
		RunID:     runID,
		Version:   ver,
		Mode:      mode,
		DryRun:    opts.DryRun,
		Files:     len(sources),
		Stats:     total,
		StartedAt: startedAt,
		Duration:  duration,
	}, nil
}

// runTask reads one source, consults the ledger, runs its workflow and
// marks it processed when every artifact went through
func (o *Orchestrator) runTask(wctx *WorkflowContext) *report.Stats {
	src := &wctx.Source
	log := logger.Log.With().Str("run_id", wctx.RunID).Str("category", string(src.Category)).Str("file", src.File).Logger()

	data, err := os.ReadFile(src.Path)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read source")
		stats := &report.Stats{}
		stats.ConversionFailed("Failed to read: %s", src.File)
		o.recorder.RecordConversionFailure(string(src.Category))
		return stats
	}
	src.Data = data
	src.Hash = assets.Hash(data)

	done, err := o.ledger.Processed(wctx.Ctx, *src)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to check ledger, processing anyway")
	} else if done {
		log.Debug().Msg("Source already processed")
		return &report.Stats{}
	}

	workflow, ok := o.workflows[src.Category]
	if !ok {
		log.Error().Err(ErrWorkflowNotFound).Msg("No workflow registered")
		stats := &report.Stats{}
		stats.ConversionFailed("Failed to convert: %s", src.File)
		return stats
	}

	stats := workflow.Execute(wctx)

	if wctx.DryRun || !stats.Clean() {
		return stats
	}
	if err := o.ledger.MarkProcessed(wctx.Ctx, *src); err != nil {
		log.Error().Err(err).Msg("Failed to mark source processed")
		return stats
	}
	log.Debug().Msg("Marked source processed")
	return stats
}

// discover lists the pending source files for a mode. A missing directory
// contributes no files.
func (o *Orchestrator) discover(mode Mode) ([]pipeline.Source, error) {
	type dir struct {
		category pipeline.Category
		sub      string
		svgOnly  bool
	}

	var dirs []dir
	switch mode {
	case ModeIconsOnly:
		dirs = []dir{{pipeline.CategoryIcons, "", true}}
	case ModeFlagsOnly:
		dirs = []dir{{pipeline.CategoryFlags, "", false}}
	case ModeRedoOnly:
		dirs = []dir{{pipeline.CategoryIcons, RedoDir, true}}
	default:
		dirs = []dir{
			{pipeline.CategoryImages, "", false},
			{pipeline.CategoryFlags, "", false},
			{pipeline.CategoryIcons, "", true},
		}
	}

	var sources []pipeline.Source
	for _, d := range dirs {
		root := filepath.Join(o.assetsDir, string(d.category), d.sub)
		entries, err := os.ReadDir(root)
		if os.IsNotExist(err) {
			logger.Log.Debug().Str("dir", root).Msg("Source directory missing, skipping")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", root, err)
		}

		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			name := entry.Name()
			ext := strings.ToLower(filepath.Ext(name))
			if !assets.Supported(name) || (d.svgOnly && ext != ".svg") {
				continue
			}

			file := name
			if d.sub != "" {
				file = d.sub + "/" + name
			}
			sources = append(sources, pipeline.Source{
				Category: d.category,
				Path:     filepath.Join(root, name),
				File:     file,
				Name:     strings.TrimSuffix(name, filepath.Ext(name)),
				Ext:      ext,
			})
		}
	}
	return sources, nil
}

func hasCategory(sources []pipeline.Source, category pipeline.Category) bool {
	for _, src := range sources {
		if src.Category == category {
			return true
		}
	}
	return false
}

func plannedArtifacts(src pipeline.Source, colors []pipeline.ColorVariant) int {
	switch {
	case src.Category == pipeline.CategoryIcons:
		return len(assets.ExpandIcon(colors))
	case src.Category == pipeline.CategoryFlags && src.Ext == ".svg":
		return len(assets.Expand(nil)) + 1
	default:
		return len(assets.Expand(nil))
	}
}
