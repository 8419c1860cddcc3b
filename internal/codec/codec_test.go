package codec

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/cdn-asset-pipeline/pkg/pipeline"
)

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

const squareSVG = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 24 12"><rect x="2" y="2" width="20" height="8" fill="#ff0000"/></svg>`

func TestImagingCodec_DecodeResizeEncodePNG(t *testing.T) {
	c := New()

	img, err := c.Decode(testPNG(t, 200, 100), ".png", 0)
	require.NoError(t, err)
	assert.Equal(t, 200, img.Bounds().Dx())

	resized := c.Resize(img, 64)
	assert.Equal(t, 64, resized.Bounds().Dx())
	assert.Equal(t, 32, resized.Bounds().Dy())

	data, err := c.Encode(resized, pipeline.FormatPNG)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")))

	again, err := c.Encode(resized, pipeline.FormatPNG)
	require.NoError(t, err)
	assert.Equal(t, data, again, "encoding must be deterministic for content addressing")
}

func TestImagingCodec_DecodeInvalid(t *testing.T) {
	_, err := New().Decode([]byte("not an image"), ".png", 0)
	assert.Error(t, err)
}

func TestImagingCodec_RasterizeSVG(t *testing.T) {
	c := New()

	img, err := c.RasterizeSVG([]byte(squareSVG), 128)
	require.NoError(t, err)
	assert.Equal(t, 128, img.Bounds().Dx())
	assert.Equal(t, 64, img.Bounds().Dy())

	img, err = c.Decode([]byte(squareSVG), ".svg", 256)
	require.NoError(t, err)
	assert.Equal(t, 256, img.Bounds().Dx())
}

func TestImagingCodec_RasterizeSVGInvalidWidth(t *testing.T) {
	_, err := New().RasterizeSVG([]byte(squareSVG), 0)
	assert.Error(t, err)
}

func TestImagingCodec_EncodeUnsupported(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	_, err := New().Encode(img, pipeline.FormatSVG)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestImagingCodec_EncodeWebP(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	data, err := New().Encode(img, pipeline.FormatWebP)
	require.NoError(t, err)
	require.Greater(t, len(data), 12)
	assert.Equal(t, "RIFF", string(data[:4]))
	assert.Equal(t, "WEBP", string(data[8:12]))
}

const lineSVG = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 24 24"><path d="M2 12 L22 12"/></svg>`

func rgbaAt(img image.Image, x, y int) color.RGBA {
	return color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
}

func TestImagingCodec_RasterizeStroked(t *testing.T) {
	c := New()
	red := color.NRGBA{R: 0xff, A: 0xff}
	blue := color.NRGBA{B: 0xff, A: 0xff}

	redImg, err := c.RasterizeStroked([]byte(lineSVG), 64, Stroke{Color: red, Width: 2})
	require.NoError(t, err)
	blueImg, err := c.RasterizeStroked([]byte(lineSVG), 64, Stroke{Color: blue, Width: 2})
	require.NoError(t, err)

	redData, err := c.Encode(redImg, pipeline.FormatPNG)
	require.NoError(t, err)
	blueData, err := c.Encode(blueImg, pipeline.FormatPNG)
	require.NoError(t, err)
	assert.NotEqual(t, redData, blueData)

	// The line runs across the middle, about 5px thick at this scale
	onLine := rgbaAt(redImg, 32, 32)
	assert.Greater(t, onLine.R, uint8(0xf0))
	assert.Less(t, onLine.G, uint8(0x10))
	assert.Less(t, onLine.B, uint8(0x10))
	assert.Greater(t, onLine.A, uint8(0xf0))

	onLine = rgbaAt(blueImg, 32, 32)
	assert.Greater(t, onLine.B, uint8(0xf0))
	assert.Less(t, onLine.R, uint8(0x10))

	assert.Zero(t, rgbaAt(redImg, 32, 5).A, "fills are removed and the canvas stays transparent")
}

func TestImagingCodec_RasterizeStrokedIgnoresFill(t *testing.T) {
	img, err := New().RasterizeStroked([]byte(squareSVG), 96, Stroke{Color: color.NRGBA{G: 0xff, A: 0xff}, Width: 1})
	require.NoError(t, err)

	assert.Zero(t, rgbaAt(img, 48, 24).A, "the rect interior is not filled")
	edge := rgbaAt(img, 48, 8)
	assert.Greater(t, edge.G, uint8(0xf0), "the rect outline is stroked")
	assert.Less(t, edge.R, uint8(0x10))
}

func TestImagingCodec_RasterizeStrokedBackground(t *testing.T) {
	white := color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	img, err := New().RasterizeStroked([]byte(lineSVG), 64, Stroke{
		Color:      white,
		Width:      2,
		Background: color.NRGBA{A: 0xff},
	})
	require.NoError(t, err)

	assert.Equal(t, color.RGBA{A: 0xff}, rgbaAt(img, 32, 5))
	line := rgbaAt(img, 32, 32)
	assert.Greater(t, line.R, uint8(0xf0))
	assert.Greater(t, line.G, uint8(0xf0))
	assert.Greater(t, line.B, uint8(0xf0))
}

func TestImagingCodec_RasterizeStrokedNeedsColour(t *testing.T) {
	_, err := New().RasterizeStroked([]byte(lineSVG), 64, Stroke{Width: 2})
	assert.Error(t, err)
}
