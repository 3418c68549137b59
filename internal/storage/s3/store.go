// Package s3 keeps Cricsheet match archives and table exports in an
// S3-compatible bucket. Keys handed to the Store are relative to an optional
// bucket prefix such as "cricsheet/wpl".
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"sort"
	"strings"

	"github.com/boundarybytes/boundarybytes/internal/storage"
)

// ErrInvalidKey is returned for empty keys and keys that climb out of the
// bucket prefix.
var ErrInvalidKey = errors.New("invalid object key")

type Config struct {
	Endpoint         string
	Region           string
	Bucket           string
	AccessKeyID      string
	SecretAccessKey  string
	UseSSL           bool
	Prefix           string
	AutoCreateBucket bool
}

// bucketAPI is the slice of the S3 API the store needs. Keys are absolute
// within the bucket.
type bucketAPI interface {
	Put(ctx context.Context, bucket, key string, reader io.Reader, size int64, contentType string) (storage.ObjectInfo, error)
	Get(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	Stat(ctx context.Context, bucket, key string) (storage.ObjectInfo, error)
	List(ctx context.Context, bucket, prefix string) ([]storage.ObjectInfo, error)
	BucketExists(ctx context.Context, bucket string) (bool, error)
	CreateBucket(ctx context.Context, bucket, region string) error
}

// Store implements storage.ObjectStore over one bucket.
type Store struct {
	api    bucketAPI
	bucket string
	root   string
}

func New(ctx context.Context, cfg Config) (*Store, error) {
	bucket := strings.TrimSpace(cfg.Bucket)
	switch {
	case strings.TrimSpace(cfg.Endpoint) == "":
		return nil, errors.New("object store endpoint is required")
	case bucket == "":
		return nil, errors.New("object store bucket is required")
	}

	api, err := dialMinio(cfg)
	if err != nil {
		return nil, err
	}
	s := &Store{api: api, bucket: bucket, root: rootPrefix(cfg.Prefix)}
	if !cfg.AutoCreateBucket {
		return s, nil
	}
	if err := s.ensureBucket(ctx, strings.TrimSpace(cfg.Region)); err != nil {
		return nil, err
	}
	return s, nil
}

// NewWithClient builds a Store over an existing bucket API, mainly for tests.
func NewWithClient(bucket, prefix string, api bucketAPI) (*Store, error) {
	if api == nil {
		return nil, errors.New("bucket client is required")
	}
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, errors.New("object store bucket is required")
	}
	return &Store{api: api, bucket: bucket, root: rootPrefix(prefix)}, nil
}

func (s *Store) Put(ctx context.Context, key string, body io.Reader, size int64, opts storage.PutOptions) (storage.ObjectInfo, error) {
	abs, err := s.resolve(key)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	obj, err := s.api.Put(ctx, s.bucket, abs, body, size, opts.ContentType)
	if err != nil {
		return storage.ObjectInfo{}, fmt.Errorf("upload s3://%s/%s: %w", s.bucket, abs, err)
	}
	return obj, nil
}

func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	abs, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	rc, err := s.api.Get(ctx, s.bucket, abs)
	if err != nil {
		return nil, s.wrap("download", abs, err)
	}
	return rc, nil
}

func (s *Store) Stat(ctx context.Context, key string) (storage.ObjectInfo, error) {
	abs, err := s.resolve(key)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	obj, err := s.api.Stat(ctx, s.bucket, abs)
	if err != nil {
		return storage.ObjectInfo{}, s.wrap("stat", abs, err)
	}
	return obj, nil
}

// List returns the objects under prefix, sorted by key, with keys relative to
// the store root. Folder placeholder objects are skipped.
func (s *Store) List(ctx context.Context, prefix string) ([]storage.ObjectInfo, error) {
	scope := s.root
	if sub := strings.Trim(strings.TrimSpace(prefix), "/"); sub != "" {
		abs, err := s.resolve(sub)
		if err != nil {
			return nil, err
		}
		scope = abs
	}
	if scope != "" {
		scope += "/"
	}

	listed, err := s.api.List(ctx, s.bucket, scope)
	if err != nil {
		return nil, fmt.Errorf("list s3://%s/%s: %w", s.bucket, scope, err)
	}
	objects := listed[:0]
	for _, obj := range listed {
		if strings.HasSuffix(obj.Key, "/") {
			continue
		}
		obj.Key = s.relative(obj.Key)
		objects = append(objects, obj)
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, nil
}

func (s *Store) ensureBucket(ctx context.Context, region string) error {
	ok, err := s.api.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("look up bucket %s: %w", s.bucket, err)
	}
	if ok {
		return nil
	}
	if err := s.api.CreateBucket(ctx, s.bucket, region); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	slog.InfoContext(ctx, "object store bucket created", "bucket", s.bucket, "region", region)
	return nil
}

// wrap keeps storage.ErrObjectNotFound unwrapped so callers can compare it
// directly, and adds the object location to anything else.
func (s *Store) wrap(op, abs string, err error) error {
	if errors.Is(err, storage.ErrObjectNotFound) {
		return storage.ErrObjectNotFound
	}
	return fmt.Errorf("%s s3://%s/%s: %w", op, s.bucket, abs, err)
}

// resolve maps a store-relative key to its absolute key in the bucket.
func (s *Store) resolve(key string) (string, error) {
	key = strings.TrimSpace(strings.TrimPrefix(key, "/"))
	if key == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidKey)
	}
	clean := path.Clean(key)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") || strings.Contains(clean, "/../") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	if s.root == "" {
		return clean, nil
	}
	return s.root + "/" + clean, nil
}

func (s *Store) relative(abs string) string {
	if s.root == "" {
		return abs
	}
	return strings.TrimPrefix(abs, s.root+"/")
}

func rootPrefix(prefix string) string {
	prefix = strings.TrimSpace(strings.TrimPrefix(prefix, "/"))
	if prefix == "" {
		return ""
	}
	if clean := path.Clean(prefix); clean != "." {
		return clean
	}
	return ""
}
