package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/boundarybytes/boundarybytes/internal/storage"
)

func TestPutUsesPrefixAndNormalizedKey(t *testing.T) {
	fake := &fakeClient{}
	store, err := NewWithClient("bucket-a", "cricsheet/wpl", fake)
	if err != nil {
		t.Fatalf("NewWithClient() error = %v", err)
	}

	_, err = store.Put(context.Background(), "/exports/wpl_delivery.csv", bytes.NewBufferString("abc"), 3, storage.PutOptions{ContentType: "text/csv"})
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if fake.lastPutBucket != "bucket-a" {
		t.Fatalf("bucket = %q", fake.lastPutBucket)
	}
	if fake.lastPutKey != "cricsheet/wpl/exports/wpl_delivery.csv" {
		t.Fatalf("key = %q", fake.lastPutKey)
	}
}

func TestGetRejectsPathTraversal(t *testing.T) {
	store, err := NewWithClient("bucket-a", "", &fakeClient{})
	if err != nil {
		t.Fatalf("NewWithClient() error = %v", err)
	}
	for _, key := range []string{"../secrets.txt", "exports/../../secrets.txt", "  ", ".."} {
		if _, err := store.Get(context.Background(), key); !errors.Is(err, ErrInvalidKey) {
			t.Fatalf("Get(%q) error = %v, want ErrInvalidKey", key, err)
		}
	}
}

func TestGetMapsMissingObject(t *testing.T) {
	store, err := NewWithClient("bucket-a", "", &fakeClient{getErr: storage.ErrObjectNotFound})
	if err != nil {
		t.Fatalf("NewWithClient() error = %v", err)
	}
	if _, err := store.Get(context.Background(), "1358026_info.csv"); !errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("Get() error = %v, want ErrObjectNotFound", err)
	}
}

func TestStatMapsMissingObject(t *testing.T) {
	store, err := NewWithClient("bucket-a", "cricsheet/wpl", &fakeClient{statErr: storage.ErrObjectNotFound})
	if err != nil {
		t.Fatalf("NewWithClient() error = %v", err)
	}
	if _, err := store.Stat(context.Background(), "1358026_info.csv"); !errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("Stat() error = %v, want ErrObjectNotFound", err)
	}

	store, err = NewWithClient("bucket-a", "", &fakeClient{statErr: errors.New("access denied")})
	if err != nil {
		t.Fatalf("NewWithClient() error = %v", err)
	}
	_, err = store.Stat(context.Background(), "1358026_info.csv")
	if err == nil || errors.Is(err, storage.ErrObjectNotFound) || !strings.Contains(err.Error(), "s3://bucket-a/1358026_info.csv") {
		t.Fatalf("Stat() error = %v", err)
	}
}

func TestListStripsPrefixAndSkipsFolders(t *testing.T) {
	fake := &fakeClient{objects: []storage.ObjectInfo{
		{Key: "cricsheet/wpl/1358027.csv", Size: 20},
		{Key: "cricsheet/wpl/", Size: 0},
		{Key: "cricsheet/wpl/1358026.csv", Size: 10},
		{Key: "cricsheet/wpl/1358026_info.csv", Size: 5},
	}}
	store, err := NewWithClient("bucket-a", "cricsheet/wpl", fake)
	if err != nil {
		t.Fatalf("NewWithClient() error = %v", err)
	}

	got, err := store.List(context.Background(), "")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if fake.lastListPrefix != "cricsheet/wpl/" {
		t.Fatalf("list prefix = %q", fake.lastListPrefix)
	}
	keys := make([]string, 0, len(got))
	for _, obj := range got {
		keys = append(keys, obj.Key)
	}
	if diff := cmp.Diff([]string{"1358026.csv", "1358026_info.csv", "1358027.csv"}, keys); diff != "" {
		t.Fatalf("List() keys mismatch (-want +got):\n%s", diff)
	}
}

func TestListWithSubPrefix(t *testing.T) {
	fake := &fakeClient{}
	store, err := NewWithClient("bucket-a", "", fake)
	if err != nil {
		t.Fatalf("NewWithClient() error = %v", err)
	}
	if _, err := store.List(context.Background(), "/2024/"); err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if fake.lastListPrefix != "2024/" {
		t.Fatalf("list prefix = %q", fake.lastListPrefix)
	}
}

func TestEnsureBucketCreatesWhenMissing(t *testing.T) {
	fake := &fakeClient{bucketExists: false}
	store, err := NewWithClient("bucket-a", "", fake)
	if err != nil {
		t.Fatalf("NewWithClient() error = %v", err)
	}

	if err := store.ensureBucket(context.Background(), "us-east-1"); err != nil {
		t.Fatalf("ensureBucket() error = %v", err)
	}
	if !fake.createBucketCalled {
		t.Fatal("expected CreateBucket to be called")
	}
}

func TestParseEndpoint(t *testing.T) {
	tests := []struct {
		raw        string
		useSSL     bool
		wantHost   string
		wantSecure bool
		wantErr    bool
	}{
		{raw: "https://minio.example.com", wantHost: "minio.example.com", wantSecure: true},
		{raw: "http://localhost:9000", wantHost: "localhost:9000"},
		{raw: "http://localhost:9000", useSSL: true, wantHost: "localhost:9000", wantSecure: true},
		{raw: "minio:9000", wantHost: "minio:9000"},
		{raw: "ftp://minio", wantErr: true},
		{raw: "https://", wantErr: true},
		{raw: " ", wantErr: true},
	}
	for _, tc := range tests {
		host, secure, err := parseEndpoint(tc.raw, tc.useSSL)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("parseEndpoint(%q) expected error", tc.raw)
			}
			continue
		}
		if err != nil {
			t.Fatalf("parseEndpoint(%q) error = %v", tc.raw, err)
		}
		if host != tc.wantHost || secure != tc.wantSecure {
			t.Fatalf("parseEndpoint(%q) = %q/%v, want %q/%v", tc.raw, host, secure, tc.wantHost, tc.wantSecure)
		}
	}
}

type fakeClient struct {
	lastPutBucket      string
	lastPutKey         string
	lastListPrefix     string
	objects            []storage.ObjectInfo
	bucketExists       bool
	createBucketCalled bool
	getErr             error
	statErr            error
}

func (f *fakeClient) Put(_ context.Context, bucket, key string, reader io.Reader, size int64, _ string) (storage.ObjectInfo, error) {
	f.lastPutBucket = bucket
	f.lastPutKey = key
	_, _ = io.Copy(io.Discard, reader)
	return storage.ObjectInfo{Key: key, Size: size, ETag: "etag-1"}, nil
}

func (f *fakeClient) Get(_ context.Context, _, key string) (io.ReadCloser, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return io.NopCloser(strings.NewReader(key)), nil
}

func (f *fakeClient) Stat(_ context.Context, _, key string) (storage.ObjectInfo, error) {
	if f.statErr != nil {
		return storage.ObjectInfo{}, f.statErr
	}
	return storage.ObjectInfo{Key: key, Size: 10, LastModified: time.Now().UTC()}, nil
}

func (f *fakeClient) List(_ context.Context, _, prefix string) ([]storage.ObjectInfo, error) {
	f.lastListPrefix = prefix
	return append([]storage.ObjectInfo(nil), f.objects...), nil
}

func (f *fakeClient) BucketExists(_ context.Context, _ string) (bool, error) {
	return f.bucketExists, nil
}

func (f *fakeClient) CreateBucket(_ context.Context, _, _ string) error {
	f.createBucketCalled = true
	return nil
}
