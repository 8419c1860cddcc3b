package workflows

import (
	"github.com/tendant/cdn-asset-pipeline/internal/assets"
	"github.com/tendant/cdn-asset-pipeline/internal/codec"
	"github.com/tendant/cdn-asset-pipeline/internal/metrics"
	"github.com/tendant/cdn-asset-pipeline/internal/report"
	"github.com/tendant/cdn-asset-pipeline/internal/uploader"
	"github.com/tendant/cdn-asset-pipeline/pkg/logger"
	"github.com/tendant/cdn-asset-pipeline/pkg/pipeline"
)

// ImageWorkflow renders images and flags at every size and format
type ImageWorkflow struct {
	codec    codec.Codec
	uploader *uploader.Uploader
	recorder metrics.Recorder
}

// NewImageWorkflow creates a new image workflow
func NewImageWorkflow(c codec.Codec, u *uploader.Uploader, recorder metrics.Recorder) *ImageWorkflow {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &ImageWorkflow{
		codec:    c,
		uploader: u,
		recorder: recorder,
	}
}

// Name returns the workflow name
func (w *ImageWorkflow) Name() string {
	return "ImageWorkflow"
}

// Execute decodes the source once, then encodes and uploads each variant.
// A failed variant does not stop its siblings. Vector flags are published
// as-is before decoding, so a source that fails to rasterise still ships.
func (w *ImageWorkflow) Execute(wctx *WorkflowContext) *report.Stats {
	src := wctx.Source
	stats := &report.Stats{}
	log := logger.Log.With().Str("run_id", wctx.RunID).Str("category", string(src.Category)).Str("file", src.File).Logger()

	// Vector flags are also published as-is
	if src.Category == pipeline.CategoryFlags && src.Ext == ".svg" {
		key := assets.Key(pipeline.Artifact{
			Version:  wctx.Version,
			Category: src.Category,
			Name:     src.Name,
			Format:   pipeline.FormatSVG,
		})
		w.uploader.EnsureUploaded(wctx.Ctx, uploader.Upload{
			Key:         key,
			Data:        src.Data,
			ContentType: pipeline.FormatSVG.ContentType(),
			Category:    src.Category,
		}, wctx.DryRun, stats)
	}

	img, err := w.codec.Decode(src.Data, src.Ext, pipeline.IconRasterSize)
	if err != nil {
		log.Error().Err(err).Msg("Failed to decode source")
		stats.ConversionFailed("Failed to convert: %s", src.File)
		w.recorder.RecordConversionFailure(string(src.Category))
		return stats
	}

	for _, v := range assets.Expand(nil) {
		data, err := w.codec.Encode(w.codec.Resize(img, v.Size), v.Format)
		if err != nil {
			log.Error().Err(err).Int("size", v.Size).Str("format", string(v.Format)).Msg("Failed to convert variant")
			stats.ConversionFailed("Failed to convert: %s (%d %s)", src.File, v.Size, v.Format)
			w.recorder.RecordConversionFailure(string(src.Category))
			continue
		}

		key := assets.Key(pipeline.Artifact{
			Version:  wctx.Version,
			Category: src.Category,
			Name:     src.Name,
			Size:     v.Size,
			Hash:     assets.Hash(data),
			Format:   v.Format,
		})
		w.uploader.EnsureUploaded(wctx.Ctx, uploader.Upload{
			Key:         key,
			Data:        data,
			ContentType: v.Format.ContentType(),
			Category:    src.Category,
		}, wctx.DryRun, stats)
	}

	return stats
}

var _ Workflow = (*ImageWorkflow)(nil)
