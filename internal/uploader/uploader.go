package uploader

import (
	"context"

	"github.com/dustin/go-humanize"

	"github.com/tendant/cdn-asset-pipeline/internal/metrics"
	"github.com/tendant/cdn-asset-pipeline/internal/report"
	"github.com/tendant/cdn-asset-pipeline/internal/storage"
	"github.com/tendant/cdn-asset-pipeline/pkg/logger"
	"github.com/tendant/cdn-asset-pipeline/pkg/pipeline"
)

// Outcome is the result of EnsureUploaded
type Outcome string

// Outcome constants
const (
	OutcomeUploaded Outcome = "uploaded"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeDryRun   Outcome = "dry_run"
	OutcomeFailed   Outcome = "failed"
)

// Upload describes one artifact ready to be stored
type Upload struct {
	Key         string
	Data        []byte
	ContentType string
	Category    pipeline.Category
}

// Uploader uploads content-addressed artifacts only when they are missing
type Uploader struct {
	store    storage.ObjectStore
	baseURL  string
	recorder metrics.Recorder
}

// New creates an uploader; baseURL prefixes keys in log messages
func New(store storage.ObjectStore, baseURL string, recorder metrics.Recorder) *Uploader {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &Uploader{
		store:    store,
		baseURL:  baseURL,
		recorder: recorder,
	}
}

// URL returns the public URL of key
func (u *Uploader) URL(key string) string {
	return u.baseURL + key
}

// EnsureUploaded checks whether key exists and uploads data only if it does
// not. The outcome is recorded in stats. A failed existence check is treated
// as absent, which at worst re-uploads identical bytes.
func (u *Uploader) EnsureUploaded(ctx context.Context, up Upload, dryRun bool, stats *report.Stats) Outcome {
	url := u.URL(up.Key)
	log := logger.Log.With().Str("key", up.Key).Logger()

	exists, err := u.store.Exists(ctx, up.Key)
	if err != nil {
		log.Warn().Err(err).Msg("Existence check failed, attempting upload")
	} else if exists {
		stats.Skipped()
		u.recorder.RecordArtifact(string(up.Category), string(OutcomeSkipped))
		log.Debug().Msg("Skipped existing")
		return OutcomeSkipped
	}

	if dryRun {
		log.Info().Str("url", url).Str("bytes", humanize.Bytes(uint64(len(up.Data)))).Msg("(dry) Would upload")
		u.recorder.RecordArtifact(string(up.Category), string(OutcomeDryRun))
		return OutcomeDryRun
	}

	err = u.store.Put(ctx, up.Key, up.Data, storage.PutOptions{ContentType: up.ContentType})
	if err != nil {
		stats.UploadFailed("Upload failed: %s", url)
		u.recorder.RecordArtifact(string(up.Category), string(OutcomeFailed))
		log.Error().Err(err).Str("url", url).Msg("Upload failed")
		return OutcomeFailed
	}

	stats.Uploaded()
	u.recorder.RecordArtifact(string(up.Category), string(OutcomeUploaded))
	log.Info().Str("url", url).Str("bytes", humanize.Bytes(uint64(len(up.Data)))).Msg("Uploaded")
	return OutcomeUploaded
}
