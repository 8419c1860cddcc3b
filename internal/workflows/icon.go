package workflows

import (
	"image"

	"github.com/tendant/cdn-asset-pipeline/internal/assets"
	"github.com/tendant/cdn-asset-pipeline/internal/codec"
	"github.com/tendant/cdn-asset-pipeline/internal/colorize"
	"github.com/tendant/cdn-asset-pipeline/internal/metrics"
	"github.com/tendant/cdn-asset-pipeline/internal/report"
	"github.com/tendant/cdn-asset-pipeline/internal/uploader"
	"github.com/tendant/cdn-asset-pipeline/pkg/logger"
	"github.com/tendant/cdn-asset-pipeline/pkg/pipeline"
)

// IconWorkflow renders an SVG icon in every configured colour
type IconWorkflow struct {
	codec    codec.Codec
	uploader *uploader.Uploader
	recorder metrics.Recorder
}

// NewIconWorkflow creates a new icon workflow
func NewIconWorkflow(c codec.Codec, u *uploader.Uploader, recorder metrics.Recorder) *IconWorkflow {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &IconWorkflow{
		codec:    c,
		uploader: u,
		recorder: recorder,
	}
}

// Name returns the workflow name
func (w *IconWorkflow) Name() string {
	return "IconWorkflow"
}

// Execute styles the icon once per colour, uploads the styled SVG, then
// rasterises the outline in that colour and uploads every size and format. A failed colour is
// skipped and the remaining colours still run.
func (w *IconWorkflow) Execute(wctx *WorkflowContext) *report.Stats {
	src := wctx.Source
	stats := &report.Stats{}
	log := logger.Log.With().Str("run_id", wctx.RunID).Str("icon", src.Name).Logger()

	for i := range wctx.Colors {
		color := &wctx.Colors[i]

		styled, err := colorize.Colorize(src.Data, color.Hex)
		if err != nil {
			log.Error().Err(err).Str("color", color.Slug).Msg("Failed to style icon")
			w.conversionFailed(stats, src.Name, color.Slug)
			continue
		}

		svgKey := assets.Key(pipeline.Artifact{
			Version:  wctx.Version,
			Category: pipeline.CategoryIcons,
			Name:     src.Name,
			Color:    color.Slug,
			Hash:     assets.Hash(styled),
			Format:   pipeline.FormatSVG,
		})
		w.uploader.EnsureUploaded(wctx.Ctx, uploader.Upload{
			Key:         svgKey,
			Data:        styled,
			ContentType: pipeline.FormatSVG.ContentType(),
			Category:    pipeline.CategoryIcons,
		}, wctx.DryRun, stats)

		base, err := w.rasterize(src.Data, color.Hex)
		if err != nil {
			log.Error().Err(err).Str("color", color.Slug).Msg("Failed to rasterise icon")
			w.conversionFailed(stats, src.Name, color.Slug)
			continue
		}

		for _, v := range assets.Expand(color) {
			data, err := w.codec.Encode(w.codec.Resize(base, v.Size), v.Format)
			if err != nil {
				log.Error().Err(err).Str("color", color.Slug).Int("size", v.Size).Str("format", string(v.Format)).Msg("Failed to convert icon variant")
				w.conversionFailed(stats, src.Name, color.Slug)
				continue
			}

			key := assets.Key(pipeline.Artifact{
				Version:  wctx.Version,
				Category: pipeline.CategoryIcons,
				Name:     src.Name,
				Color:    color.Slug,
				Size:     v.Size,
				Hash:     assets.Hash(data),
				Format:   v.Format,
			})
			w.uploader.EnsureUploaded(wctx.Ctx, uploader.Upload{
				Key:         key,
				Data:        data,
				ContentType: v.Format.ContentType(),
				Category:    pipeline.CategoryIcons,
			}, wctx.DryRun, stats)
		}
	}

	return stats
}

// rasterize strokes the source paths directly since the rasteriser does not
// apply the injected style block
func (w *IconWorkflow) rasterize(svg []byte, hex string) (image.Image, error) {
	stroke, err := colorize.ParseHex(hex)
	if err != nil {
		return nil, err
	}
	opts := codec.Stroke{Color: stroke, Width: colorize.StrokeWidth}
	if colorize.NeedsBackground(hex) {
		opts.Background = colorize.Background
	}
	return w.codec.RasterizeStroked(svg, pipeline.IconRasterSize, opts)
}

func (w *IconWorkflow) conversionFailed(stats *report.Stats, icon, color string) {
	stats.ConversionFailed("Icon conversion failed: %s (%s)", icon, color)
	w.recorder.RecordConversionFailure(string(pipeline.CategoryIcons))
}

var _ Workflow = (*IconWorkflow)(nil)
