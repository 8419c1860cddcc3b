package storage

import (
	"context"
	"fmt"

	"github.com/tendant/cdn-asset-pipeline/pkg/logger"
)

// MaxDeleteBatch is the largest batch accepted by S3 DeleteObjects
const MaxDeleteBatch = 1000

// ClearPrefix deletes every object under prefix and returns how many were removed
func ClearPrefix(ctx context.Context, store ObjectStore, prefix string) (int, error) {
	log := logger.Log.With().Str("prefix", prefix).Logger()
	log.Info().Msg("Deleting all objects under prefix")

	total := 0
	token := ""
	for {
		page, err := store.List(ctx, prefix, "", token)
		if err != nil {
			return total, fmt.Errorf("failed to list %q: %w", prefix, err)
		}

		for start := 0; start < len(page.Keys); start += MaxDeleteBatch {
			end := min(start+MaxDeleteBatch, len(page.Keys))
			batch := page.Keys[start:end]
			if err := store.DeleteMany(ctx, batch); err != nil {
				return total, fmt.Errorf("failed to delete objects under %q: %w", prefix, err)
			}
			total += len(batch)
			log.Info().Int("count", len(batch)).Msg("Deleted objects")
		}

		if !page.IsTruncated || page.NextToken == "" {
			break
		}
		token = page.NextToken
	}

	log.Info().Int("total", total).Msg("Finished clearing prefix")
	return total, nil
}
