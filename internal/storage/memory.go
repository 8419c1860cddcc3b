package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// DefaultPageSize matches the S3 ListObjectsV2 default
const DefaultPageSize = 1000

// MemoryObject is a stored object with its metadata
type MemoryObject struct {
	Data         []byte
	ContentType  string
	CacheControl string
}

// MemoryStore is an in-memory ObjectStore used by tests and dry local runs
type MemoryStore struct {
	mu       sync.RWMutex
	objects  map[string]MemoryObject
	pageSize int
	puts     int
}

// NewMemoryStore creates an empty store that lists pageSize keys per page
func NewMemoryStore(pageSize int) *MemoryStore {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &MemoryStore{
		objects:  make(map[string]MemoryObject),
		pageSize: pageSize,
	}
}

// List returns keys in lexical order; the token is the last entry of the previous page
func (m *MemoryStore) List(ctx context.Context, prefix, delimiter, token string) (*ListPage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.objects))
	for key := range m.objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	return paginate(keys, prefix, delimiter, token, m.pageSize), nil
}

// Exists reports whether key is stored
func (m *MemoryStore) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.objects[key]
	return ok, nil
}

// Put stores a copy of data
func (m *MemoryStore) Put(ctx context.Context, key string, data []byte, opts PutOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if key == "" {
		return ErrInvalidKey
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)
	m.objects[key] = MemoryObject{
		Data:         dataCopy,
		ContentType:  opts.ContentType,
		CacheControl: opts.CacheControl,
	}
	m.puts++
	return nil
}

// DeleteMany removes keys; missing keys are ignored like S3 does
func (m *MemoryStore) DeleteMany(ctx context.Context, keys []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, key := range keys {
		delete(m.objects, key)
	}
	return nil
}

// Get returns the stored object
func (m *MemoryStore) Get(key string) (MemoryObject, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, ok := m.objects[key]
	return obj, ok
}

// Keys returns every stored key in lexical order
func (m *MemoryStore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.objects))
	for key := range m.objects {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Puts returns how many uploads the store has accepted
func (m *MemoryStore) Puts() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.puts
}

var _ ObjectStore = (*MemoryStore)(nil)
