package version

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/cdn-asset-pipeline/internal/storage"
)

func storeWith(t *testing.T, pageSize int, keys ...string) *storage.MemoryStore {
	t.Helper()
	store := storage.NewMemoryStore(pageSize)
	for _, key := range keys {
		require.NoError(t, store.Put(context.Background(), key, []byte("x"), storage.PutOptions{}))
	}
	return store
}

func TestResolver_Resolve(t *testing.T) {
	tests := []struct {
		name     string
		keys     []string
		override string
		expected string
	}{
		{
			name:     "no versions",
			expected: "v1",
		},
		{
			name:     "numeric maximum not lexical",
			keys:     []string{"v1/images/a.png", "v2/images/a.png", "v9/assets-manifest.json"},
			expected: "v10",
		},
		{
			name:     "non standard prefixes ignored",
			keys:     []string{"v3/a.png", "v10-redo/x", "v10-beta/x", "vnext/x", "v/x", "v12"},
			expected: "v13",
		},
		{
			name:     "suffixed root segment ignored",
			keys:     []string{"v10-redo/x"},
			expected: "v1",
		},
		{
			name:     "override bypasses scan",
			keys:     []string{"v1/a.png", "v7/a.png"},
			override: "v3-hotfix",
			expected: "v3-hotfix",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver := NewResolver(storeWith(t, 0, tt.keys...))

			got, err := resolver.Resolve(context.Background(), tt.override)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestResolver_ResolvePaginates(t *testing.T) {
	store := storeWith(t, 1, "v1/a", "v2/a", "v3/a", "v4/a")

	got, err := NewResolver(store).Resolve(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "v5", got)
}

// listCounter records how the resolver lists the store
type listCounter struct {
	*storage.MemoryStore
	calls      int
	delimiters []string
}

func (c *listCounter) List(ctx context.Context, prefix, delimiter, token string) (*storage.ListPage, error) {
	c.calls++
	c.delimiters = append(c.delimiters, delimiter)
	return c.MemoryStore.List(ctx, prefix, delimiter, token)
}

func TestResolver_ListsTopLevelOnly(t *testing.T) {
	mem := storage.NewMemoryStore(10)
	for _, version := range []string{"v1", "v2", "v3"} {
		for i := 0; i < 200; i++ {
			require.NoError(t, mem.Put(context.Background(), fmt.Sprintf("%s/images/img%03d-64-abcdef12.png", version, i), []byte("x"), storage.PutOptions{}))
		}
	}
	store := &listCounter{MemoryStore: mem}

	got, err := NewResolver(store).Resolve(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, "v4", got)
	assert.Equal(t, 1, store.calls, "600 objects fit in one page of version prefixes")
	assert.Equal(t, []string{"/"}, store.delimiters)
}

func TestParse(t *testing.T) {
	n, ok := Parse("v42")
	assert.True(t, ok)
	assert.Equal(t, 42, n)

	for _, bad := range []string{"v", "42", "V4", "v4a", "v-4", "v99999999999999999999999"} {
		_, ok := Parse(bad)
		assert.False(t, ok, bad)
	}
}
