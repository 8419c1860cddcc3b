package pipeline

// Category is the source directory an asset was discovered in
type Category string

// Category constants (also the second path segment of every storage key)
const (
	CategoryImages Category = "images"
	CategoryFlags  Category = "flags"
	CategoryIcons  Category = "icons"
)

// Format is an output encoding
type Format string

// Format constants
const (
	FormatPNG  Format = "png"
	FormatWebP Format = "webp"
	FormatAVIF Format = "avif"
	FormatSVG  Format = "svg"
)

// ContentType returns the MIME type uploaded with the format
func (f Format) ContentType() string {
	switch f {
	case FormatSVG:
		return "image/svg+xml"
	case "jpg":
		return "image/jpeg"
	default:
		return "image/" + string(f)
	}
}

// Sizes and Formats are the uniform output contract for every raster variant
var (
	Sizes   = []int{64, 128, 256, 512, 1024}
	Formats = []Format{FormatPNG, FormatWebP, FormatAVIF}
)

// IconRasterSize is the width styled icons are rasterised at before resizing
const IconRasterSize = 1024

// ColorVariant is one flattened entry of the icon colour configuration
type ColorVariant struct {
	Slug string `json:"slug" yaml:"slug"` // "<group>-<name>"
	Hex  string `json:"hex" yaml:"hex"`
}

// Source is a file discovered in one of the asset directories
type Source struct {
	Category Category
	Path     string // path on disk
	File     string // file name relative to the category directory
	Name     string // base name without extension
	Ext      string // lower-cased extension including the dot
	Data     []byte
	Hash     string // content hash of Data, filled once the file is read
}

// Variant is one (size, format[, color]) rendering of a source
type Variant struct {
	Color  *ColorVariant
	Size   int // 0 for vector output
	Format Format
}

// Artifact is the unit of upload
type Artifact struct {
	Version  string
	Category Category
	Name     string
	Color    string // colour slug, icons only
	Size     int    // 0 for vector output
	Hash     string // empty for the vector flag passthrough
	Format   Format
}

// Manifest is the published description of everything under a version prefix
type Manifest struct {
	Version string       `json:"version"`
	Images  []AssetGroup `json:"images"`
	Flags   []AssetGroup `json:"flags"`
	Icons   []IconGroup  `json:"icons"`
}

// AssetGroup lists every variant of one image or flag
type AssetGroup struct {
	Name     string         `json:"name"`
	Variants []AssetVariant `json:"variants"`
}

// AssetVariant is one published file
type AssetVariant struct {
	Size   int    `json:"size,omitempty"`
	Format string `json:"format"`
	URL    string `json:"url"`
}

// IconGroup lists every colour of one icon
type IconGroup struct {
	Name     string      `json:"name"`
	Variants []IconColor `json:"variants"`
}

// IconColor lists the files of one icon colour
type IconColor struct {
	Color  string         `json:"color"`
	Assets []AssetVariant `json:"assets"`
}

// RunOptions selects what a pipeline run processes
type RunOptions struct {
	VersionOverride string `json:"version_override,omitempty"`
	DryRun          bool   `json:"dry_run"`
	IconsOnly       bool   `json:"icons_only"`
	FlagsOnly       bool   `json:"flags_only"`
	RedoOnly        bool   `json:"redo_only"`
}
