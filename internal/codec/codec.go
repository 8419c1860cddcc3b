package codec

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	// Register decoders beyond the ones imaging pulls in
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/avif"
	"github.com/gen2brain/webp"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/tendant/cdn-asset-pipeline/pkg/pipeline"
)

// ErrUnsupportedFormat is returned for output formats the codec cannot encode
var ErrUnsupportedFormat = errors.New("unsupported format")

// Codec resizes and re-encodes images
type Codec interface {
	// Decode reads a source file; SVG sources are rasterised at svgWidth
	Decode(data []byte, ext string, svgWidth int) (image.Image, error)

	// RasterizeStroked renders every path of svg as an outline in stroke.Color
	RasterizeStroked(svg []byte, width int, stroke Stroke) (image.Image, error)

	// Resize scales img to width, preserving aspect ratio
	Resize(img image.Image, width int) image.Image

	// Encode writes img in format
	Encode(img image.Image, format pipeline.Format) ([]byte, error)
}

// Stroke overrides the paint of every path during rasterisation. Width is in
// viewBox units. A nil Background leaves the canvas transparent.
type Stroke struct {
	Color      color.Color
	Width      float64
	Background color.Color
}

// ImagingCodec implements Codec with imaging, gen2brain encoders and oksvg
type ImagingCodec struct{}

// New returns the default codec
func New() *ImagingCodec {
	return &ImagingCodec{}
}

// Decode decodes a raster image, or rasterises an SVG
func (c *ImagingCodec) Decode(data []byte, ext string, svgWidth int) (image.Image, error) {
	if ext == ".svg" {
		return c.RasterizeSVG(data, svgWidth)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("image decode failed: %w", err)
	}
	return img, nil
}

// RasterizeSVG renders svg at width; height follows the viewBox aspect ratio
func (c *ImagingCodec) RasterizeSVG(svg []byte, width int) (image.Image, error) {
	icon, height, err := readIcon(svg, width)
	if err != nil {
		return nil, err
	}
	return render(icon, width, height, nil), nil
}

// RasterizeStroked renders svg at width with fills removed and every path
// stroked in stroke.Color. oksvg ignores <style> blocks, so colour styling
// has to be applied to the parsed paths.
func (c *ImagingCodec) RasterizeStroked(svg []byte, width int, stroke Stroke) (image.Image, error) {
	if stroke.Color == nil {
		return nil, errors.New("stroke colour is required")
	}
	icon, height, err := readIcon(svg, width)
	if err != nil {
		return nil, err
	}

	// Line widths are applied after the viewBox transform
	scale := 1.0
	if icon.ViewBox.W > 0 {
		scale = float64(width) / icon.ViewBox.W
	}
	for i := range icon.SVGPaths {
		path := &icon.SVGPaths[i]
		path.SetFillColor(nil)
		path.SetLineColor(stroke.Color)
		path.LineWidth = stroke.Width * scale
	}

	return render(icon, width, height, stroke.Background), nil
}

func readIcon(svg []byte, width int) (*oksvg.SvgIcon, int, error) {
	if width <= 0 {
		return nil, 0, fmt.Errorf("invalid raster width: %d", width)
	}

	icon, err := oksvg.ReadIconStream(bytes.NewReader(svg), oksvg.WarnErrorMode)
	if err != nil {
		return nil, 0, fmt.Errorf("svg parse failed: %w", err)
	}

	height := width
	if icon.ViewBox.W > 0 && icon.ViewBox.H > 0 {
		height = int(math.Round(float64(width) * icon.ViewBox.H / icon.ViewBox.W))
		if height < 1 {
			height = 1
		}
	}
	return icon, height, nil
}

func render(icon *oksvg.SvgIcon, width, height int, background color.Color) *image.RGBA {
	icon.SetTarget(0, 0, float64(width), float64(height))
	rgba := image.NewRGBA(image.Rect(0, 0, width, height))
	if background != nil {
		draw.Draw(rgba, rgba.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)
	}
	scanner := rasterx.NewScannerGV(width, height, rgba, rgba.Bounds())
	raster := rasterx.NewDasher(width, height, scanner)
	icon.Draw(raster, 1.0)
	return rgba
}

// Resize scales img to width using Lanczos resampling
func (c *ImagingCodec) Resize(img image.Image, width int) image.Image {
	return imaging.Resize(img, width, 0, imaging.Lanczos)
}

// Encode encodes img as png, webp or avif
func (c *ImagingCodec) Encode(img image.Image, format pipeline.Format) ([]byte, error) {
	var buf bytes.Buffer

	switch format {
	case pipeline.FormatPNG:
		if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
			return nil, fmt.Errorf("PNG encode failed: %w", err)
		}
	case pipeline.FormatWebP:
		if err := webp.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("WebP encode failed: %w", err)
		}
	case pipeline.FormatAVIF:
		if err := avif.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("AVIF encode failed: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	return buf.Bytes(), nil
}

var _ Codec = (*ImagingCodec)(nil)
