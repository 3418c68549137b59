package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/boundarybytes/boundarybytes/internal/storage"
)

// minioBucket adapts minio-go to bucketAPI.
type minioBucket struct {
	mc *minio.Client
}

func dialMinio(cfg Config) (*minioBucket, error) {
	host, secure, err := parseEndpoint(cfg.Endpoint, cfg.UseSSL)
	if err != nil {
		return nil, err
	}
	mc, err := minio.New(host, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: secure,
		Region: strings.TrimSpace(cfg.Region),
	})
	if err != nil {
		return nil, fmt.Errorf("connect object store %s: %w", host, err)
	}
	return &minioBucket{mc: mc}, nil
}

// parseEndpoint accepts either host[:port] or a URL. An https URL forces TLS
// on; otherwise useSSL decides.
func parseEndpoint(raw string, useSSL bool) (string, bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false, errors.New("object store endpoint is required")
	}
	if !strings.Contains(raw, "://") {
		return raw, useSSL, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", false, fmt.Errorf("object store endpoint: %w", err)
	}
	switch {
	case u.Scheme != "http" && u.Scheme != "https":
		return "", false, fmt.Errorf("object store endpoint: unsupported scheme %q", u.Scheme)
	case u.Host == "":
		return "", false, errors.New("object store endpoint: missing host")
	}
	return u.Host, useSSL || u.Scheme == "https", nil
}

func (b *minioBucket) Put(ctx context.Context, bucket, key string, reader io.Reader, size int64, contentType string) (storage.ObjectInfo, error) {
	up, err := b.mc.PutObject(ctx, bucket, key, reader, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return storage.ObjectInfo{}, notFound(err)
	}
	return storage.ObjectInfo{Key: up.Key, Size: up.Size, ETag: up.ETag}, nil
}

// Get stats the object before returning it because GetObject is lazy and a
// missing key would otherwise surface on the first Read.
func (b *minioBucket) Get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	obj, err := b.mc.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, notFound(err)
	}
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		return nil, notFound(err)
	}
	return obj, nil
}

func (b *minioBucket) Stat(ctx context.Context, bucket, key string) (storage.ObjectInfo, error) {
	st, err := b.mc.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return storage.ObjectInfo{}, notFound(err)
	}
	return objectInfo(st), nil
}

func (b *minioBucket) List(ctx context.Context, bucket, prefix string) ([]storage.ObjectInfo, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var objects []storage.ObjectInfo
	for st := range b.mc.ListObjects(ctx, bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if st.Err != nil {
			return nil, notFound(st.Err)
		}
		objects = append(objects, objectInfo(st))
	}
	return objects, nil
}

func (b *minioBucket) BucketExists(ctx context.Context, bucket string) (bool, error) {
	ok, err := b.mc.BucketExists(ctx, bucket)
	return ok, notFound(err)
}

func (b *minioBucket) CreateBucket(ctx context.Context, bucket, region string) error {
	return notFound(b.mc.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region}))
}

func objectInfo(st minio.ObjectInfo) storage.ObjectInfo {
	return storage.ObjectInfo{Key: st.Key, Size: st.Size, ETag: st.ETag, LastModified: st.LastModified}
}

// notFound translates S3 "no such key/bucket" responses into
// storage.ErrObjectNotFound and passes every other error through.
func notFound(err error) error {
	var resp minio.ErrorResponse
	if errors.As(err, &resp) {
		switch resp.Code {
		case "NoSuchKey", "NoSuchBucket", "NotFound":
			return storage.ErrObjectNotFound
		}
	}
	return err
}
