package version

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/tendant/cdn-asset-pipeline/internal/storage"
	"github.com/tendant/cdn-asset-pipeline/pkg/logger"
)

var versionSegment = regexp.MustCompile(`^v(\d+)$`)

// Resolver picks the version namespace for a run
type Resolver struct {
	store storage.ObjectStore
}

// NewResolver creates a resolver over store
func NewResolver(store storage.ObjectStore) *Resolver {
	return &Resolver{store: store}
}

// Resolve returns override unchanged when set, otherwise v<max+1> over every
// exact v<digits> root segment in the bucket (v1 when there are none). Only
// the top level is listed.
func (r *Resolver) Resolve(ctx context.Context, override string) (string, error) {
	if override != "" {
		return override, nil
	}

	keys, err := storage.ListEntries(ctx, r.store, "v", "/")
	if err != nil {
		return "", fmt.Errorf("failed to list versions: %w", err)
	}

	next := Next(keys)
	logger.Log.Info().Str("version", next).Msg("Resolved CDN version")
	return next, nil
}

// Next computes the next version from a set of keys
func Next(keys []string) string {
	highest := 0
	for _, key := range keys {
		if n, ok := Parse(strings.SplitN(key, "/", 2)[0]); ok && n > highest {
			highest = n
		}
	}
	return fmt.Sprintf("v%d", highest+1)
}

// Parse returns the integer of a v<digits> segment
func Parse(segment string) (int, bool) {
	m := versionSegment.FindStringSubmatch(segment)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}
