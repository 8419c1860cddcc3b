package storage

import (
	"context"
	"errors"
	"strings"
)

// ErrInvalidKey is returned for keys that escape the store root or are empty
var ErrInvalidKey = errors.New("invalid key")

// ListPage is one page of a prefix listing. With a delimiter, keys that
// continue past it are rolled up into Prefixes.
type ListPage struct {
	Keys        []string
	Prefixes    []string
	IsTruncated bool
	NextToken   string
}

// PutOptions carries object metadata for uploads
type PutOptions struct {
	ContentType  string
	CacheControl string
}

// ObjectStore is the object storage capability the pipeline consumes
type ObjectStore interface {
	// List returns one page of keys under prefix, starting after token.
	// A non-empty delimiter groups keys into common prefixes.
	List(ctx context.Context, prefix, delimiter, token string) (*ListPage, error)

	// Exists performs a metadata-only lookup of key
	Exists(ctx context.Context, key string) (bool, error)

	// Put uploads data at key
	Put(ctx context.Context, key string, data []byte, opts PutOptions) error

	// DeleteMany removes keys in a single batch
	DeleteMany(ctx context.Context, keys []string) error
}

// ListAll follows continuation tokens until the listing is exhausted
func ListAll(ctx context.Context, store ObjectStore, prefix string) ([]string, error) {
	var keys []string
	token := ""
	for {
		page, err := store.List(ctx, prefix, "", token)
		if err != nil {
			return nil, err
		}
		keys = append(keys, page.Keys...)
		if !page.IsTruncated || page.NextToken == "" {
			return keys, nil
		}
		token = page.NextToken
	}
}

// ListEntries returns the keys and common prefixes directly under prefix,
// e.g. "v1/" and "v2/" for prefix "v" and delimiter "/"
func ListEntries(ctx context.Context, store ObjectStore, prefix, delimiter string) ([]string, error) {
	var entries []string
	token := ""
	for {
		page, err := store.List(ctx, prefix, delimiter, token)
		if err != nil {
			return nil, err
		}
		entries = append(entries, page.Keys...)
		entries = append(entries, page.Prefixes...)
		if !page.IsTruncated || page.NextToken == "" {
			return entries, nil
		}
		token = page.NextToken
	}
}

// paginate builds one listing page from sorted keys the way S3 does:
// entries after token, common prefixes rolled up, at most pageSize entries
func paginate(sorted []string, prefix, delimiter, token string, pageSize int) *ListPage {
	page := &ListPage{Keys: []string{}}
	count, last := 0, ""

	for _, key := range sorted {
		if !strings.HasPrefix(key, prefix) {
			continue
		}

		entry, rolledUp := key, false
		if delimiter != "" {
			if i := strings.Index(key[len(prefix):], delimiter); i >= 0 {
				entry = key[:len(prefix)+i+len(delimiter)]
				rolledUp = true
			}
		}
		if entry <= token || entry == last {
			continue
		}

		if count == pageSize {
			page.IsTruncated = true
			page.NextToken = last
			break
		}
		if rolledUp {
			page.Prefixes = append(page.Prefixes, entry)
		} else {
			page.Keys = append(page.Keys, entry)
		}
		count++
		last = entry
	}
	return page
}
