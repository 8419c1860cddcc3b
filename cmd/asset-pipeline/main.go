package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/tendant/cdn-asset-pipeline/internal/config"
	"github.com/tendant/cdn-asset-pipeline/internal/manifest"
	"github.com/tendant/cdn-asset-pipeline/pkg/logger"
	"github.com/tendant/cdn-asset-pipeline/pkg/pipeline"
	"github.com/tendant/cdn-asset-pipeline/pkg/runner"
)

type runnerKey struct{}

// newRunner is replaced in tests
var newRunner = runner.New

func initRunner(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid configuration: %v", err), 1)
	}
	logger.SetLevel(cfg.LogLevel)

	r, err := newRunner(c.Context, cfg)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	// Store the runner in the context
	c.Context = context.WithValue(c.Context, runnerKey{}, r)
	return nil
}

func closeRunner(c *cli.Context) {
	r, ok := c.Context.Value(runnerKey{}).(*runner.Runner)
	if !ok || r == nil {
		return
	}
	if err := r.Close(); err != nil {
		logger.Log.Error().Err(err).Msg("Failed to close runner")
	}
}

func runnerFrom(c *cli.Context) *runner.Runner {
	return c.Context.Value(runnerKey{}).(*runner.Runner)
}

func runPipeline(c *cli.Context) error {
	tag := c.String("tag")
	if tag == "" {
		return cli.Exit("--tag is required (e.g. --tag v3)", 1)
	}
	if err := initRunner(c); err != nil {
		return err
	}
	defer closeRunner(c)
	r := runnerFrom(c)

	if c.Bool("clear-all") {
		total, err := r.ClearVersion(c.Context, tag)
		if err != nil {
			logger.Log.Error().Err(err).Str("version", tag).Int("deleted", total).Msg("Clear aborted")
			return nil
		}
		fmt.Printf("Deleted %d objects under %s/\n", total, tag)
		return nil
	}

	result, err := r.Run(c.Context, pipeline.RunOptions{
		VersionOverride: tag,
		DryRun:          c.Bool("dry"),
		IconsOnly:       c.Bool("icons-only"),
		FlagsOnly:       c.Bool("flags-only"),
		RedoOnly:        c.Bool("redo-only"),
	})
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	logger.Log.Info().
		Str("run_id", result.RunID).
		Str("version", result.Version).
		Int("files", result.Files).
		Dur("duration", result.Duration).
		Msg("Pipeline complete")
	return nil
}

func generateManifest(c *cli.Context) error {
	tag := c.String("tag")
	if tag == "" {
		return cli.Exit("--tag or CDN_VERSION is required", 1)
	}
	if err := initRunner(c); err != nil {
		return err
	}
	defer closeRunner(c)

	_, published, err := runnerFrom(c).GenerateManifest(c.Context, tag)
	if errors.Is(err, manifest.ErrNoIcons) {
		logger.Log.Warn().Str("version", tag).Msg("Manifest not published")
		return nil
	}
	if err != nil {
		logger.Log.Error().Err(err).Str("version", tag).Msg("Manifest generation aborted")
		return nil
	}

	logger.Log.Info().
		Str("canonical", published.CanonicalKey).
		Str("snapshot", published.SnapshotKey).
		Int("bytes", published.Bytes).
		Msg("Manifest published")
	return nil
}

func nextVersion(c *cli.Context) error {
	if err := initRunner(c); err != nil {
		return err
	}
	defer closeRunner(c)

	next, err := runnerFrom(c).NextVersion(c.Context)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	fmt.Println(next)
	return nil
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "asset-pipeline",
		Usage: "Generate and upload versioned CDN image, flag and icon assets",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "tag",
				Aliases: []string{"t"},
				Usage:   "Version tag to upload under (e.g. v3)",
			},
			&cli.BoolFlag{
				Name:    "dry",
				Aliases: []string{"d"},
				Usage:   "Log what would be uploaded without writing anything",
			},
			&cli.BoolFlag{
				Name:  "icons-only",
				Usage: "Only process icons",
			},
			&cli.BoolFlag{
				Name:  "flags-only",
				Usage: "Only process flags",
			},
			&cli.BoolFlag{
				Name:  "redo-only",
				Usage: "Only process icons in the icons/redo directory",
			},
			&cli.BoolFlag{
				Name:  "clear-all",
				Usage: "Delete every object under the version tag",
			},
		},
		Action: runPipeline,
		Commands: []*cli.Command{
			{
				Name:  "manifest",
				Usage: "Rebuild and publish the asset manifest of a version",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "tag",
						Aliases: []string{"t"},
						Usage:   "Version tag to build the manifest for",
						EnvVars: []string{"CDN_VERSION"},
					},
				},
				Action: generateManifest,
			},
			{
				Name:   "next-version",
				Usage:  "Print the next unused version tag",
				Action: nextVersion,
			},
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		logger.Log.Fatal().Err(err).Msg("asset-pipeline failed")
	}
}
