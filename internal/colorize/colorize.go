package colorize

import (
	"encoding/hex"
	"errors"
	"fmt"
	"image/color"
	"regexp"
	"strings"
)

// ErrNoSVGTag is returned when the markup has no opening <svg> tag
var ErrNoSVGTag = errors.New("no opening <svg> tag")

var openingSVGTag = regexp.MustCompile(`<svg([^>]*)>`)

// StrokeWidth is the outline width in viewBox units
const StrokeWidth = 2

const backgroundRect = `<rect width="100%" height="100%" fill="#000000"/>`

// Background is painted behind strokes that need it
var Background = color.NRGBA{A: 0xff}

// ParseHex converts #rgb, #rrggbb or #rrggbbaa to a colour
func ParseHex(s string) (color.NRGBA, error) {
	if !hexColor.MatchString(s) {
		return color.NRGBA{}, fmt.Errorf("invalid hex colour %q", s)
	}
	digits := s[1:]
	if len(digits) == 3 {
		digits = string([]byte{digits[0], digits[0], digits[1], digits[1], digits[2], digits[2]})
	}
	if len(digits) == 6 {
		digits += "ff"
	}
	b, err := hex.DecodeString(digits)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid hex colour %q: %w", s, err)
	}
	return color.NRGBA{R: b[0], G: b[1], B: b[2], A: b[3]}, nil
}

// NeedsBackground reports whether stroke would be invisible on a light background
func NeedsBackground(stroke string) bool {
	return strings.EqualFold(stroke, "#ffffff")
}

// Colorize returns a copy of svg with a stroke-only style block for stroke
// injected right after the first opening <svg> tag. White strokes also get an
// opaque black background rectangle.
func Colorize(svg []byte, stroke string) ([]byte, error) {
	loc := openingSVGTag.FindIndex(svg)
	if loc == nil {
		return nil, ErrNoSVGTag
	}

	var injected strings.Builder
	injected.WriteString("\n    ")
	if NeedsBackground(stroke) {
		injected.WriteString(backgroundRect)
	}
	fmt.Fprintf(&injected, "\n    <style>\n      * { fill: none; stroke: %s; stroke-width: %d; }\n    </style>", stroke, StrokeWidth)

	end := loc[1]
	out := make([]byte, 0, len(svg)+injected.Len())
	out = append(out, svg[:end]...)
	out = append(out, injected.String()...)
	out = append(out, svg[end:]...)
	return out, nil
}
