package assets

import "github.com/tendant/cdn-asset-pipeline/pkg/pipeline"

// Expand returns every raster variant required for one source, or for one
// colour of an icon when color is non-nil.
func Expand(color *pipeline.ColorVariant) []pipeline.Variant {
	variants := make([]pipeline.Variant, 0, len(pipeline.Sizes)*len(pipeline.Formats))
	for _, size := range pipeline.Sizes {
		for _, format := range pipeline.Formats {
			variants = append(variants, pipeline.Variant{
				Color:  color,
				Size:   size,
				Format: format,
			})
		}
	}
	return variants
}

// ExpandIcon returns the full icon matrix: per colour one styled SVG plus
// every raster variant.
func ExpandIcon(colors []pipeline.ColorVariant) []pipeline.Variant {
	variants := make([]pipeline.Variant, 0, len(colors)*(len(pipeline.Sizes)*len(pipeline.Formats)+1))
	for i := range colors {
		color := &colors[i]
		variants = append(variants, pipeline.Variant{Color: color, Format: pipeline.FormatSVG})
		variants = append(variants, Expand(color)...)
	}
	return variants
}
