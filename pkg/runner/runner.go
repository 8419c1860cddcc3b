package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/tendant/cdn-asset-pipeline/internal/codec"
	"github.com/tendant/cdn-asset-pipeline/internal/config"
	"github.com/tendant/cdn-asset-pipeline/internal/ledger"
	"github.com/tendant/cdn-asset-pipeline/internal/manifest"
	"github.com/tendant/cdn-asset-pipeline/internal/metrics"
	"github.com/tendant/cdn-asset-pipeline/internal/report"
	"github.com/tendant/cdn-asset-pipeline/internal/storage"
	"github.com/tendant/cdn-asset-pipeline/internal/uploader"
	"github.com/tendant/cdn-asset-pipeline/internal/version"
	"github.com/tendant/cdn-asset-pipeline/internal/workflows"
	"github.com/tendant/cdn-asset-pipeline/pkg/logger"
	"github.com/tendant/cdn-asset-pipeline/pkg/pipeline"
)

// MetricsJob is the Pushgateway job name
const MetricsJob = "cdn_asset_pipeline"

// Runner provides a high-level API over the asset pipeline
type Runner struct {
	cfg          *config.Config
	store        storage.ObjectStore
	ledger       ledger.Ledger
	recorder     *metrics.PrometheusRecorder
	resolver     *version.Resolver
	orchestrator *workflows.Orchestrator
	manifest     *manifest.Builder
	now          func() time.Time
}

// New creates the storage backend and ledger selected by cfg and wires the pipeline
func New(ctx context.Context, cfg *config.Config) (*Runner, error) {
	store, err := NewStore(cfg.Storage)
	if err != nil {
		return nil, err
	}

	l, err := NewLedger(ctx, cfg.Ledger)
	if err != nil {
		return nil, err
	}

	return NewWithStore(cfg, store, l, codec.New()), nil
}

// NewStore creates the configured object store
func NewStore(cfg config.StorageConfig) (storage.ObjectStore, error) {
	switch cfg.Backend {
	case config.BackendFilesystem:
		store, err := storage.NewFilesystemStorage(cfg.Dir)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize filesystem storage: %w", err)
		}
		logger.Log.Info().Str("dir", cfg.Dir).Msg("Using filesystem storage")
		return store, nil
	case config.BackendS3:
		store, err := storage.NewS3Store(storage.S3Config{
			Endpoint:  cfg.Endpoint,
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			UseSSL:    true,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize s3 storage: %w", err)
		}
		logger.Log.Info().Str("endpoint", cfg.Endpoint).Str("bucket", cfg.Bucket).Msg("Using s3 storage")
		return store, nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownBackend, cfg.Backend)
	}
}

// NewLedger creates the configured processed-source ledger
func NewLedger(ctx context.Context, cfg config.LedgerConfig) (ledger.Ledger, error) {
	switch cfg.Kind {
	case config.LedgerPostgres:
		l, err := ledger.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize postgres ledger: %w", err)
		}
		return l, nil
	case config.LedgerSentinel, "":
		return ledger.NewSentinelLedger(cfg.SentinelSuffix), nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownLedger, cfg.Kind)
	}
}

// NewWithStore wires the pipeline over an existing store, ledger and codec
func NewWithStore(cfg *config.Config, store storage.ObjectStore, l ledger.Ledger, c codec.Codec) *Runner {
	recorder := metrics.NewPrometheusRecorder()
	resolver := version.NewResolver(store)
	up := uploader.New(store, cfg.CDN.BaseURL, recorder)

	orchestrator := workflows.NewOrchestrator(workflows.Config{
		AssetsDir:   cfg.Pipeline.AssetsDir,
		ColorsPath:  cfg.Pipeline.ColorsPath,
		Concurrency: cfg.Pipeline.Concurrency,
	}, resolver, l, recorder)

	imageWorkflow := workflows.NewImageWorkflow(c, up, recorder)
	orchestrator.Register(pipeline.CategoryImages, imageWorkflow)
	orchestrator.Register(pipeline.CategoryFlags, imageWorkflow)
	orchestrator.Register(pipeline.CategoryIcons, workflows.NewIconWorkflow(c, up, recorder))

	return &Runner{
		cfg:          cfg,
		store:        store,
		ledger:       l,
		recorder:     recorder,
		resolver:     resolver,
		orchestrator: orchestrator,
		manifest: manifest.NewBuilder(store, manifest.Config{
			BaseURL:     cfg.CDN.BaseURL,
			OutputPath:  cfg.Manifest.OutputPath,
			SettleDelay: cfg.Manifest.SettleDelay,
		}),
		now: time.Now,
	}
}

// Run processes every pending source file, prints the summary and writes
// the run log
func (r *Runner) Run(ctx context.Context, opts pipeline.RunOptions) (*workflows.RunResult, error) {
	result, err := r.orchestrator.Run(ctx, opts)
	if err != nil {
		return nil, err
	}

	fmt.Print(result.Stats.Summary())

	path, err := report.WriteLog(r.cfg.Pipeline.LogsDir, result.Stats, result.RunID, r.now())
	if err != nil {
		logger.Log.Error().Err(err).Msg("Failed to write run log")
	} else {
		logger.Log.Info().Str("path", path).Msg("Run log written")
	}

	r.pushMetrics(ctx)
	return result, nil
}

// GenerateManifest rebuilds and publishes the manifest of version
func (r *Runner) GenerateManifest(ctx context.Context, version string) (*pipeline.Manifest, *manifest.Published, error) {
	return r.manifest.Generate(ctx, version)
}

// ClearVersion deletes every object under <version>/
func (r *Runner) ClearVersion(ctx context.Context, version string) (int, error) {
	if version == "" {
		return 0, fmt.Errorf("%w: empty version", storage.ErrInvalidKey)
	}
	total, err := storage.ClearPrefix(ctx, r.store, version+"/")
	if err != nil {
		return total, err
	}
	logger.Log.Info().Int("total", total).Str("version", version).Msg("Cleared version")
	return total, nil
}

// NextVersion returns the version a run without an override would use
func (r *Runner) NextVersion(ctx context.Context) (string, error) {
	return r.resolver.Resolve(ctx, "")
}

// Close releases the ledger
func (r *Runner) Close() error {
	if closer, ok := r.ledger.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

func (r *Runner) pushMetrics(ctx context.Context) {
	url := r.cfg.Metrics.PushgatewayURL
	if url == "" {
		return
	}
	if err := r.recorder.Push(ctx, url, MetricsJob); err != nil {
		logger.Log.Warn().Err(err).Str("url", url).Msg("Failed to push metrics")
	}
}
