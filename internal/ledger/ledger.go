package ledger

import (
	"context"

	"github.com/tendant/cdn-asset-pipeline/pkg/pipeline"
)

// Ledger remembers which sources have had their full variant set produced
type Ledger interface {
	// Processed reports whether src should be skipped
	Processed(ctx context.Context, src pipeline.Source) (bool, error)

	// MarkProcessed records src as done
	MarkProcessed(ctx context.Context, src pipeline.Source) error
}
