package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Config holds configuration for S3-compatible storage (R2, MinIO, AWS)
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// S3Store implements ObjectStore for S3-compatible storage
type S3Store struct {
	core     *minio.Core
	bucket   string
	pageSize int
}

// NewS3Store creates a new S3-compatible object store
func NewS3Store(cfg S3Config) (*S3Store, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("s3 endpoint must be provided")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket must be provided")
	}

	host, secure := splitEndpoint(cfg.Endpoint, cfg.UseSSL)

	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "auto"
	}

	core, err := minio.NewCore(host, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:       secure,
		Region:       region,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 client: %w", err)
	}

	return &S3Store{
		core:     core,
		bucket:   cfg.Bucket,
		pageSize: DefaultPageSize,
	}, nil
}

// splitEndpoint strips an optional scheme; an explicit scheme wins over useSSL
func splitEndpoint(endpoint string, useSSL bool) (string, bool) {
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		return strings.TrimSuffix(strings.TrimPrefix(endpoint, "https://"), "/"), true
	case strings.HasPrefix(endpoint, "http://"):
		return strings.TrimSuffix(strings.TrimPrefix(endpoint, "http://"), "/"), false
	default:
		return strings.TrimSuffix(strings.TrimPrefix(endpoint, "//"), "/"), useSSL
	}
}

// List returns one ListObjectsV2 page
func (s *S3Store) List(ctx context.Context, prefix, delimiter, token string) (*ListPage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res, err := s.core.ListObjectsV2(s.bucket, prefix, "", token, delimiter, s.pageSize)
	if err != nil {
		return nil, fmt.Errorf("s3 list failed: %w", err)
	}

	page := &ListPage{
		Keys:        make([]string, 0, len(res.Contents)),
		IsTruncated: res.IsTruncated,
		NextToken:   res.NextContinuationToken,
	}
	for _, obj := range res.Contents {
		page.Keys = append(page.Keys, obj.Key)
	}
	for _, cp := range res.CommonPrefixes {
		page.Prefixes = append(page.Prefixes, cp.Prefix)
	}
	return page, nil
}

// Exists issues a HEAD request for key
func (s *S3Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.core.Client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}

	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	return false, fmt.Errorf("s3 head failed: %w", err)
}

// Put uploads data at key
func (s *S3Store) Put(ctx context.Context, key string, data []byte, opts PutOptions) error {
	_, err := s.core.Client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:  opts.ContentType,
		CacheControl: opts.CacheControl,
	})
	if err != nil {
		return fmt.Errorf("s3 upload failed: %w", err)
	}
	return nil
}

// DeleteMany removes keys with a single DeleteObjects call
func (s *S3Store) DeleteMany(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	objectsCh := make(chan minio.ObjectInfo, len(keys))
	for _, key := range keys {
		objectsCh <- minio.ObjectInfo{Key: key}
	}
	close(objectsCh)

	var errs []error
	for rerr := range s.core.Client.RemoveObjects(ctx, s.bucket, objectsCh, minio.RemoveObjectsOptions{}) {
		errs = append(errs, fmt.Errorf("delete %s: %w", rerr.ObjectName, rerr.Err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("s3 delete failed: %w", errors.Join(errs...))
	}
	return nil
}

var _ ObjectStore = (*S3Store)(nil)
