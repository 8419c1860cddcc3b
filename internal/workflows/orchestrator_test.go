package workflows

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/cdn-asset-pipeline/internal/codec"
	"github.com/tendant/cdn-asset-pipeline/internal/ledger"
	"github.com/tendant/cdn-asset-pipeline/internal/report"
	"github.com/tendant/cdn-asset-pipeline/internal/storage"
	"github.com/tendant/cdn-asset-pipeline/internal/uploader"
	"github.com/tendant/cdn-asset-pipeline/internal/version"
	"github.com/tendant/cdn-asset-pipeline/pkg/pipeline"
)

const iconSVG = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 24 24"><path d="M12 2l3 7h7l-6 4 2 7-6-4-6 4 2-7-6-4h7z"/></svg>`

// taggedImage carries the bytes it was decoded from so encoded output is
// deterministic and differs between sources
type taggedImage struct {
	image.Image
	tag   string
	width int
}

type fakeCodec struct {
	failFormat pipeline.Format
	failDecode bool
}

func (c *fakeCodec) Decode(data []byte, ext string, svgWidth int) (image.Image, error) {
	if c.failDecode {
		return nil, fmt.Errorf("decode %s: boom", ext)
	}
	return taggedImage{tag: string(data), width: svgWidth}, nil
}

func (c *fakeCodec) RasterizeStroked(svg []byte, width int, stroke codec.Stroke) (image.Image, error) {
	tag := fmt.Sprintf("%s|stroke=%v|bg=%v", svg, stroke.Color, stroke.Background)
	return taggedImage{tag: tag, width: width}, nil
}

func (c *fakeCodec) Resize(img image.Image, width int) image.Image {
	t := img.(taggedImage)
	t.width = width
	return t
}

func (c *fakeCodec) Encode(img image.Image, format pipeline.Format) ([]byte, error) {
	if format == c.failFormat {
		return nil, fmt.Errorf("encode %s: boom", format)
	}
	t := img.(taggedImage)
	return []byte(fmt.Sprintf("%s|%d|%s", t.tag, t.width, format)), nil
}

// neverProcessed is a ledger that remembers nothing
type neverProcessed struct{}

func (neverProcessed) Processed(context.Context, pipeline.Source) (bool, error) { return false, nil }
func (neverProcessed) MarkProcessed(context.Context, pipeline.Source) error      { return nil }

type fixture struct {
	assetsDir string
	store     *storage.MemoryStore
	codec     *fakeCodec
	orch      *Orchestrator
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func newFixture(t *testing.T, l ledger.Ledger) *fixture {
	t.Helper()
	root := t.TempDir()
	assetsDir := filepath.Join(root, "originals")
	colorsPath := filepath.Join(root, "icon-colors.json")
	writeFile(t, colorsPath, `{"brand": {"red": "#ff0000", "white": "#FFFFFF"}}`)

	f := &fixture{
		assetsDir: assetsDir,
		store:     storage.NewMemoryStore(0),
		codec:     &fakeCodec{},
	}
	f.orch = f.newOrchestrator(l, colorsPath, 0)
	return f
}

func (f *fixture) newOrchestrator(l ledger.Ledger, colorsPath string, concurrency int) *Orchestrator {
	up := uploader.New(f.store, "https://cdn.example.com/", nil)
	o := NewOrchestrator(Config{
		AssetsDir:   f.assetsDir,
		ColorsPath:  colorsPath,
		Concurrency: concurrency,
	}, version.NewResolver(f.store), l, nil)
	o.Register(pipeline.CategoryImages, NewImageWorkflow(f.codec, up, nil))
	o.Register(pipeline.CategoryFlags, NewImageWorkflow(f.codec, up, nil))
	o.Register(pipeline.CategoryIcons, NewIconWorkflow(f.codec, up, nil))
	return o
}

func (f *fixture) seed(t *testing.T) {
	t.Helper()
	writeFile(t, filepath.Join(f.assetsDir, "images", "logo.png"), "logo-bytes")
	writeFile(t, filepath.Join(f.assetsDir, "flags", "us.svg"), `<svg viewBox="0 0 10 10"></svg>`)
	writeFile(t, filepath.Join(f.assetsDir, "icons", "star.svg"), iconSVG)
}

func keysWithPrefix(store *storage.MemoryStore, prefix string) []string {
	var out []string
	for _, k := range store.Keys() {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out
}

func TestOrchestrator_FullRun(t *testing.T) {
	f := newFixture(t, ledger.NewSentinelLedger(""))
	f.seed(t)

	result, err := f.orch.Run(context.Background(), pipeline.RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, "v1", result.Version)
	assert.Equal(t, ModeFull, result.Mode)
	assert.Equal(t, 3, result.Files)
	assert.NotEmpty(t, result.RunID)

	// 15 image variants, 15 flag variants plus the vector copy, 2 colours x 16 icon variants
	assert.Equal(t, 63, result.Stats.SuccessfulUploads)
	assert.True(t, result.Stats.Clean())
	assert.Len(t, keysWithPrefix(f.store, "v1/images/logo-"), 15)
	assert.Len(t, keysWithPrefix(f.store, "v1/flags/us"), 16)
	assert.Len(t, keysWithPrefix(f.store, "v1/icons/star/star-brand-red-"), 16)
	assert.Len(t, keysWithPrefix(f.store, "v1/icons/star/star-brand-white-"), 16)

	obj, ok := f.store.Get("v1/flags/us.svg")
	require.True(t, ok)
	assert.Equal(t, "image/svg+xml", obj.ContentType)
	assert.Equal(t, `<svg viewBox="0 0 10 10"></svg>`, string(obj.Data))

	for _, rel := range []string{"images/logo.png", "flags/us.svg", "icons/star.svg"} {
		assert.NoFileExists(t, filepath.Join(f.assetsDir, rel))
		assert.FileExists(t, filepath.Join(f.assetsDir, rel+".done"))
	}
}

func TestOrchestrator_SecondRunUploadsNothing(t *testing.T) {
	f := newFixture(t, neverProcessed{})
	f.seed(t)
	opts := pipeline.RunOptions{VersionOverride: "v1"}

	first, err := f.orch.Run(context.Background(), opts)
	require.NoError(t, err)
	require.Equal(t, 63, first.Stats.SuccessfulUploads)
	puts := f.store.Puts()

	second, err := f.orch.Run(context.Background(), opts)
	require.NoError(t, err)

	assert.Zero(t, second.Stats.SuccessfulUploads)
	assert.Equal(t, 63, second.Stats.SkippedFiles)
	assert.Equal(t, puts, f.store.Puts())
}

func TestOrchestrator_ProcessedFilesAreSkipped(t *testing.T) {
	f := newFixture(t, ledger.NewSentinelLedger(""))
	f.seed(t)

	_, err := f.orch.Run(context.Background(), pipeline.RunOptions{})
	require.NoError(t, err)

	result, err := f.orch.Run(context.Background(), pipeline.RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, "v2", result.Version)
	assert.Zero(t, result.Files)
	assert.Empty(t, keysWithPrefix(f.store, "v2/"))
}

func TestOrchestrator_DryRun(t *testing.T) {
	f := newFixture(t, ledger.NewSentinelLedger(""))
	f.seed(t)

	result, err := f.orch.Run(context.Background(), pipeline.RunOptions{DryRun: true})
	require.NoError(t, err)

	assert.Zero(t, f.store.Puts())
	assert.Equal(t, report.Stats{}, *result.Stats)
	assert.FileExists(t, filepath.Join(f.assetsDir, "images", "logo.png"))
	assert.NoFileExists(t, filepath.Join(f.assetsDir, "images", "logo.png.done"))
}

func TestOrchestrator_ConflictingModes(t *testing.T) {
	f := newFixture(t, neverProcessed{})

	tests := []pipeline.RunOptions{
		{IconsOnly: true, FlagsOnly: true},
		{IconsOnly: true, RedoOnly: true},
		{FlagsOnly: true, RedoOnly: true},
	}
	for _, opts := range tests {
		_, err := f.orch.Run(context.Background(), opts)
		assert.ErrorIs(t, err, ErrConflictingModes)
	}
	assert.Zero(t, f.store.Puts())
}

func TestOrchestrator_Modes(t *testing.T) {
	tests := []struct {
		name     string
		opts     pipeline.RunOptions
		mode     Mode
		files    int
		prefixes []string
	}{
		{"icons only", pipeline.RunOptions{IconsOnly: true}, ModeIconsOnly, 1, []string{"v1/icons/star/"}},
		{"flags only", pipeline.RunOptions{FlagsOnly: true}, ModeFlagsOnly, 1, []string{"v1/flags/"}},
		{"redo only", pipeline.RunOptions{RedoOnly: true}, ModeRedoOnly, 1, []string{"v1/icons/heart/"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, ledger.NewSentinelLedger(""))
			f.seed(t)
			writeFile(t, filepath.Join(f.assetsDir, "icons", "redo", "heart.svg"), iconSVG)

			result, err := f.orch.Run(context.Background(), tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.mode, result.Mode)
			assert.Equal(t, tt.files, result.Files)

			total := 0
			for _, prefix := range tt.prefixes {
				total += len(keysWithPrefix(f.store, prefix))
			}
			assert.Equal(t, len(f.store.Keys()), total, "only the selected directory is processed")
		})
	}
}

func TestOrchestrator_RedoMarksFileInRedoDir(t *testing.T) {
	f := newFixture(t, ledger.NewSentinelLedger(""))
	writeFile(t, filepath.Join(f.assetsDir, "icons", "redo", "heart.svg"), iconSVG)

	result, err := f.orch.Run(context.Background(), pipeline.RunOptions{RedoOnly: true})
	require.NoError(t, err)

	assert.Equal(t, 32, result.Stats.SuccessfulUploads)
	assert.FileExists(t, filepath.Join(f.assetsDir, "icons", "redo", "heart.svg.done"))
}

func TestOrchestrator_IgnoresUnsupportedEntries(t *testing.T) {
	f := newFixture(t, neverProcessed{})
	writeFile(t, filepath.Join(f.assetsDir, "images", "notes.txt"), "not an image")
	writeFile(t, filepath.Join(f.assetsDir, "images", "old.png.done"), "processed")
	writeFile(t, filepath.Join(f.assetsDir, "images", "nested", "deep.png"), "nested")
	writeFile(t, filepath.Join(f.assetsDir, "icons", "raster.png"), "icons are svg only")
	writeFile(t, filepath.Join(f.assetsDir, "images", "LOGO.PNG"), "upper")

	result, err := f.orch.Run(context.Background(), pipeline.RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Files)
	assert.Len(t, keysWithPrefix(f.store, "v1/images/LOGO-"), 15)
	assert.Len(t, f.store.Keys(), 15)
}

func TestOrchestrator_MissingDirectories(t *testing.T) {
	f := newFixture(t, neverProcessed{})

	result, err := f.orch.Run(context.Background(), pipeline.RunOptions{})
	require.NoError(t, err)
	assert.Zero(t, result.Files)
	assert.Equal(t, report.Stats{}, *result.Stats)
}

func TestOrchestrator_ConversionFailureContinues(t *testing.T) {
	f := newFixture(t, ledger.NewSentinelLedger(""))
	f.codec.failFormat = pipeline.FormatAVIF
	writeFile(t, filepath.Join(f.assetsDir, "images", "logo.png"), "logo-bytes")
	writeFile(t, filepath.Join(f.assetsDir, "images", "banner.png"), "banner-bytes")

	result, err := f.orch.Run(context.Background(), pipeline.RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, 20, result.Stats.SuccessfulUploads)
	assert.Equal(t, 10, result.Stats.FailedConversions)
	assert.Contains(t, result.Stats.Errors, "Failed to convert: logo.png (64 avif)")
	assert.FileExists(t, filepath.Join(f.assetsDir, "images", "logo.png"), "failed sources stay pending")
	assert.FileExists(t, filepath.Join(f.assetsDir, "images", "banner.png"))
}

func TestOrchestrator_VectorFlagShipsWhenDecodeFails(t *testing.T) {
	f := newFixture(t, ledger.NewSentinelLedger(""))
	f.codec.failDecode = true
	writeFile(t, filepath.Join(f.assetsDir, "flags", "us.svg"), `<svg viewBox="0 0 10 10"></svg>`)

	result, err := f.orch.Run(context.Background(), pipeline.RunOptions{FlagsOnly: true})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Stats.SuccessfulUploads)
	assert.Equal(t, 1, result.Stats.FailedConversions)
	assert.Equal(t, []string{"Failed to convert: us.svg"}, result.Stats.Errors)
	assert.Equal(t, []string{"v1/flags/us.svg"}, f.store.Keys())
	assert.FileExists(t, filepath.Join(f.assetsDir, "flags", "us.svg"), "failed sources stay pending")
}

func TestOrchestrator_IconRastersUseStrokeColour(t *testing.T) {
	f := newFixture(t, neverProcessed{})
	writeFile(t, filepath.Join(f.assetsDir, "icons", "star.svg"), iconSVG)

	_, err := f.orch.Run(context.Background(), pipeline.RunOptions{IconsOnly: true})
	require.NoError(t, err)

	raster := func(prefix string) string {
		for _, key := range keysWithPrefix(f.store, prefix) {
			if strings.HasSuffix(key, ".png") {
				obj, ok := f.store.Get(key)
				require.True(t, ok)
				return string(obj.Data)
			}
		}
		t.Fatalf("no png under %s", prefix)
		return ""
	}

	red := raster("v1/icons/star/star-brand-red-")
	assert.True(t, strings.HasPrefix(red, iconSVG+"|"), "rasters are drawn from the unstyled source")
	assert.Contains(t, red, "stroke={255 0 0 255}|bg=<nil>")

	white := raster("v1/icons/star/star-brand-white-")
	assert.Contains(t, white, "stroke={255 255 255 255}|bg={0 0 0 255}")
}

func TestOrchestrator_IconWithoutSVGTag(t *testing.T) {
	f := newFixture(t, ledger.NewSentinelLedger(""))
	writeFile(t, filepath.Join(f.assetsDir, "icons", "broken.svg"), `<path d="M0 0"/>`)
	writeFile(t, filepath.Join(f.assetsDir, "icons", "star.svg"), iconSVG)

	result, err := f.orch.Run(context.Background(), pipeline.RunOptions{IconsOnly: true})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Stats.FailedConversions)
	assert.ElementsMatch(t, []string{
		"Icon conversion failed: broken (brand-red)",
		"Icon conversion failed: broken (brand-white)",
	}, result.Stats.Errors)
	assert.Equal(t, 32, result.Stats.SuccessfulUploads)
	assert.FileExists(t, filepath.Join(f.assetsDir, "icons", "broken.svg"))
	assert.FileExists(t, filepath.Join(f.assetsDir, "icons", "star.svg.done"))
}

func TestOrchestrator_MissingColorsFile(t *testing.T) {
	f := newFixture(t, neverProcessed{})
	writeFile(t, filepath.Join(f.assetsDir, "icons", "star.svg"), iconSVG)
	f.orch = f.newOrchestrator(neverProcessed{}, filepath.Join(t.TempDir(), "missing.json"), 0)

	_, err := f.orch.Run(context.Background(), pipeline.RunOptions{})
	assert.Error(t, err)
	assert.Zero(t, f.store.Puts())
}

// countingWorkflow tracks how many tasks run at once
type countingWorkflow struct {
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	mu       sync.Mutex
	seen     []string
}

func (w *countingWorkflow) Name() string { return "countingWorkflow" }

func (w *countingWorkflow) Execute(wctx *WorkflowContext) *report.Stats {
	n := w.inFlight.Add(1)
	for {
		prev := w.maxSeen.Load()
		if n <= prev || w.maxSeen.CompareAndSwap(prev, n) {
			break
		}
	}
	time.Sleep(20 * time.Millisecond)
	w.inFlight.Add(-1)

	w.mu.Lock()
	w.seen = append(w.seen, wctx.Source.File)
	w.mu.Unlock()
	return &report.Stats{SuccessfulUploads: 1}
}

func TestOrchestrator_ConcurrencyCap(t *testing.T) {
	f := newFixture(t, neverProcessed{})
	for i := 0; i < 8; i++ {
		writeFile(t, filepath.Join(f.assetsDir, "images", fmt.Sprintf("img%d.png", i)), fmt.Sprintf("bytes-%d", i))
	}
	f.orch = f.newOrchestrator(neverProcessed{}, "", 2)
	wf := &countingWorkflow{}
	f.orch.Register(pipeline.CategoryImages, wf)

	result, err := f.orch.Run(context.Background(), pipeline.RunOptions{VersionOverride: "v3"})
	require.NoError(t, err)

	assert.Equal(t, "v3", result.Version)
	assert.Equal(t, 8, result.Stats.SuccessfulUploads)
	assert.Len(t, wf.seen, 8)
	assert.LessOrEqual(t, wf.maxSeen.Load(), int32(2))
}
