package assets

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/tendant/cdn-asset-pipeline/pkg/pipeline"
)

// SupportedExtensions are the source file extensions the pipeline reads
var SupportedExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
	".tiff": true,
	".gif":  true,
	".svg":  true,
}

// Supported reports whether a source file name has a readable extension
func Supported(file string) bool {
	return SupportedExtensions[strings.ToLower(filepath.Ext(file))]
}

// Key builds the storage key of an artifact.
//
//	raster image/flag: <version>/<category>/<name>-<size>-<hash>.<format>
//	vector flag:       <version>/flags/<name>.svg
//	icon:              <version>/icons/<name>/<name>-<color>[-<size>]-<hash>.<format>
func Key(a pipeline.Artifact) string {
	if a.Category == pipeline.CategoryIcons {
		if a.Size == 0 {
			return fmt.Sprintf("%s/icons/%s/%s-%s-%s.%s", a.Version, a.Name, a.Name, a.Color, a.Hash, a.Format)
		}
		return fmt.Sprintf("%s/icons/%s/%s-%s-%d-%s.%s", a.Version, a.Name, a.Name, a.Color, a.Size, a.Hash, a.Format)
	}
	if a.Size == 0 {
		return fmt.Sprintf("%s/%s/%s.%s", a.Version, a.Category, a.Name, a.Format)
	}
	return fmt.Sprintf("%s/%s/%s-%d-%s.%s", a.Version, a.Category, a.Name, a.Size, a.Hash, a.Format)
}

// FileMeta is what can be recovered from a published file name
type FileMeta struct {
	Name   string
	Color  string
	Size   int
	Hash   string
	Format string
}

var (
	rasterFilename   = regexp.MustCompile(`^(.+)-(\d+)-([a-f0-9]{8})\.(\w+)$`)
	iconFilename     = regexp.MustCompile(`^(.+?)-([^-]+)-(\d+)-([a-f0-9]{8})\.(\w+)$`)
	iconTailFilename = regexp.MustCompile(`^(.+)-(\d+)-([a-f0-9]{8})\.(\w+)$`)
	svgFilename      = regexp.MustCompile(`^(.+)\.svg$`)
)

// ParseImageFilename parses <name>-<size>-<hash>.<format>
func ParseImageFilename(filename string) (FileMeta, bool) {
	m := rasterFilename.FindStringSubmatch(filename)
	if m == nil {
		return FileMeta{}, false
	}
	size, err := strconv.Atoi(m[2])
	if err != nil {
		return FileMeta{}, false
	}
	return FileMeta{Name: m[1], Size: size, Hash: m[3], Format: m[4]}, true
}

// ParseFlagFilename accepts the vector passthrough <name>.svg as well as the
// raster pattern.
func ParseFlagFilename(filename string) (FileMeta, bool) {
	if m := svgFilename.FindStringSubmatch(filename); m != nil {
		return FileMeta{Name: m[1], Format: string(pipeline.FormatSVG)}, true
	}
	return ParseImageFilename(filename)
}

// ParseIconFilename parses <icon>-<color>-<size>-<hash>.<format>. When the
// icon name is known the whole remainder before the size is the colour slug,
// so group-qualified slugs such as "brand-red" survive intact. Styled SVGs
// are never raster variants, even when a colour segment looks like a size.
func ParseIconFilename(iconName, filename string) (FileMeta, bool) {
	if strings.EqualFold(filepath.Ext(filename), "."+string(pipeline.FormatSVG)) {
		return FileMeta{}, false
	}
	if rest, ok := strings.CutPrefix(filename, iconName+"-"); ok && iconName != "" {
		if m := iconTailFilename.FindStringSubmatch(rest); m != nil {
			size, err := strconv.Atoi(m[2])
			if err != nil {
				return FileMeta{}, false
			}
			return FileMeta{Name: iconName, Color: m[1], Size: size, Hash: m[3], Format: m[4]}, true
		}
		return FileMeta{}, false
	}

	m := iconFilename.FindStringSubmatch(filename)
	if m == nil {
		return FileMeta{}, false
	}
	size, err := strconv.Atoi(m[3])
	if err != nil {
		return FileMeta{}, false
	}
	return FileMeta{Name: m[1], Color: m[2], Size: size, Hash: m[4], Format: m[5]}, true
}
