package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tendant/cdn-asset-pipeline/internal/assets"
	"github.com/tendant/cdn-asset-pipeline/internal/storage"
	"github.com/tendant/cdn-asset-pipeline/pkg/logger"
	"github.com/tendant/cdn-asset-pipeline/pkg/pipeline"
)

// ErrNoIcons is returned when a listing contains no icons. Publishing is
// skipped so a good manifest is never replaced by an incomplete one.
var ErrNoIcons = errors.New("no icons found in manifest")

// Manifest object names under a version prefix
const (
	CanonicalName  = "assets-manifest.json"
	snapshotFormat = "assets-manifest.%d.json"
)

// DefaultSettleDelay is how long Generate waits for recent uploads to show up in listings
const DefaultSettleDelay = 3 * time.Second

// CanonicalKey returns the key consumers read the manifest from
func CanonicalKey(version string) string {
	return version + "/" + CanonicalName
}

// SnapshotKey returns the key of the immutable copy published at t
func SnapshotKey(version string, t time.Time) string {
	return version + "/" + fmt.Sprintf(snapshotFormat, t.UnixMilli())
}

// Config holds the manifest builder configuration
type Config struct {
	BaseURL     string        // prefix of every variant URL
	OutputPath  string        // local copy, skipped when empty
	SettleDelay time.Duration // wait before listing in Generate
}

// Builder rebuilds the manifest of a version from the storage listing
type Builder struct {
	store       storage.ObjectStore
	baseURL     string
	outputPath  string
	settleDelay time.Duration
	now         func() time.Time
}

// NewBuilder creates a new manifest builder
func NewBuilder(store storage.ObjectStore, cfg Config) *Builder {
	return &Builder{
		store:       store,
		baseURL:     cfg.BaseURL,
		outputPath:  cfg.OutputPath,
		settleDelay: cfg.SettleDelay,
		now:         time.Now,
	}
}

// Published describes where a manifest was written
type Published struct {
	LocalPath    string
	SnapshotKey  string
	CanonicalKey string
	Bytes        int
}

// Generate waits for the settle delay, builds the manifest for version and
// publishes it
func (b *Builder) Generate(ctx context.Context, version string) (*pipeline.Manifest, *Published, error) {
	if b.settleDelay > 0 {
		logger.Log.Info().Dur("delay", b.settleDelay).Msg("Waiting briefly to ensure keys are indexed")
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-time.After(b.settleDelay):
		}
	}

	m, err := b.Build(ctx, version)
	if err != nil {
		return nil, nil, err
	}

	published, err := b.Publish(ctx, m)
	return m, published, err
}

// Build lists every key under version and groups the ones it can parse.
// Keys that match no pattern are ignored. Groups keep listing order.
func (b *Builder) Build(ctx context.Context, version string) (*pipeline.Manifest, error) {
	prefix := version + "/"
	keys, err := storage.ListAll(ctx, b.store, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
	}

	images := newAssetGroups()
	flags := newAssetGroups()
	icons := newIconGroups()
	skipped := 0

	for _, key := range keys {
		relative := strings.TrimPrefix(key, prefix)
		url := b.baseURL + key

		category, rest, _ := strings.Cut(relative, "/")
		switch pipeline.Category(category) {
		case pipeline.CategoryImages:
			meta, ok := assets.ParseImageFilename(rest)
			if !ok {
				skipped++
				continue
			}
			images.add(meta, url)

		case pipeline.CategoryFlags:
			meta, ok := assets.ParseFlagFilename(rest)
			if !ok {
				skipped++
				continue
			}
			flags.add(meta, url)

		case pipeline.CategoryIcons:
			parts := strings.Split(rest, "/")
			if len(parts) != 2 {
				skipped++
				continue
			}
			meta, ok := assets.ParseIconFilename(parts[0], parts[1])
			if !ok {
				skipped++
				continue
			}
			icons.add(parts[0], meta, url)

		default:
			skipped++
		}
	}

	logger.Log.Info().
		Str("version", version).
		Int("keys", len(keys)).
		Int("skipped", skipped).
		Int("images", len(images.groups)).
		Int("flags", len(flags.groups)).
		Int("icons", len(icons.groups)).
		Msg("Built manifest")

	return &pipeline.Manifest{
		Version: version,
		Images:  images.groups,
		Flags:   flags.groups,
		Icons:   icons.result(),
	}, nil
}

// Publish writes the local copy and uploads the snapshot and canonical
// objects with the same bytes. Returns ErrNoIcons without writing anything
// when the manifest has no icons.
func (b *Builder) Publish(ctx context.Context, m *pipeline.Manifest) (*Published, error) {
	if len(m.Icons) == 0 {
		logger.Log.Warn().Str("version", m.Version).Msg("No icons found in manifest, skipping upload")
		return nil, ErrNoIcons
	}

	data, err := Marshal(m)
	if err != nil {
		return nil, err
	}

	published := &Published{
		SnapshotKey:  SnapshotKey(m.Version, b.now()),
		CanonicalKey: CanonicalKey(m.Version),
		Bytes:        len(data),
	}

	if b.outputPath != "" {
		if err := os.MkdirAll(filepath.Dir(b.outputPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create manifest directory: %w", err)
		}
		if err := os.WriteFile(b.outputPath, data, 0644); err != nil {
			return nil, fmt.Errorf("failed to write manifest: %w", err)
		}
		published.LocalPath = b.outputPath
	}

	opts := storage.PutOptions{
		ContentType:  "application/json",
		CacheControl: "no-cache",
	}
	var errs []error
	for _, key := range []string{published.SnapshotKey, published.CanonicalKey} {
		if err := b.store.Put(ctx, key, data, opts); err != nil {
			logger.Log.Error().Err(err).Str("key", key).Msg("Failed to upload manifest")
			errs = append(errs, fmt.Errorf("failed to upload %s: %w", key, err))
			continue
		}
		logger.Log.Info().Str("url", b.baseURL+key).Msg("Uploaded manifest")
	}

	return published, errors.Join(errs...)
}

// Marshal encodes a manifest the way it is published
func Marshal(m *pipeline.Manifest) ([]byte, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode manifest: %w", err)
	}
	return data, nil
}
