package ingest

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"sort"

	"github.com/boundarybytes/boundarybytes/internal/storage"
)

// Source lists Cricsheet matches and opens their files.
type Source interface {
	MatchIDs(ctx context.Context) ([]string, error)
	OpenDeliveries(ctx context.Context, matchID string) (io.ReadCloser, error)
	OpenInfo(ctx context.Context, matchID string) (io.ReadCloser, error)
}

// DirSource reads matches from a directory, usually os.DirFS of an unpacked
// Cricsheet archive.
type DirSource struct {
	fsys fs.FS
}

func NewDirSource(fsys fs.FS) *DirSource {
	return &DirSource{fsys: fsys}
}

func (s *DirSource) MatchIDs(_ context.Context) ([]string, error) {
	entries, err := fs.ReadDir(s.fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read match dir: %w", err)
	}
	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if id, ok := storage.MatchIDFromKey(entry.Name()); ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *DirSource) OpenDeliveries(_ context.Context, matchID string) (io.ReadCloser, error) {
	deliveries, _, err := storage.MatchKeys("", matchID)
	if err != nil {
		return nil, err
	}
	return s.fsys.Open(deliveries)
}

func (s *DirSource) OpenInfo(_ context.Context, matchID string) (io.ReadCloser, error) {
	_, info, err := storage.MatchKeys("", matchID)
	if err != nil {
		return nil, err
	}
	return s.fsys.Open(info)
}

// ObjectSource reads matches stored under a prefix of an object store.
type ObjectSource struct {
	store  storage.ObjectReader
	prefix string
}

func NewObjectSource(store storage.ObjectReader, prefix string) *ObjectSource {
	return &ObjectSource{store: store, prefix: prefix}
}

func (s *ObjectSource) MatchIDs(ctx context.Context) ([]string, error) {
	objects, err := s.store.List(ctx, s.prefix)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(objects))
	for _, obj := range objects {
		if storage.IsExportKey(obj.Key) {
			continue
		}
		if id, ok := storage.MatchIDFromKey(obj.Key); ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *ObjectSource) OpenDeliveries(ctx context.Context, matchID string) (io.ReadCloser, error) {
	deliveries, _, err := storage.MatchKeys(s.prefix, matchID)
	if err != nil {
		return nil, err
	}
	return s.open(ctx, matchID, deliveries)
}

func (s *ObjectSource) OpenInfo(ctx context.Context, matchID string) (io.ReadCloser, error) {
	_, info, err := storage.MatchKeys(s.prefix, matchID)
	if err != nil {
		return nil, err
	}
	return s.open(ctx, matchID, info)
}

// open checks the object before fetching it so a missing or truncated
// upload fails without a download.
func (s *ObjectSource) open(ctx context.Context, matchID, key string) (io.ReadCloser, error) {
	obj, err := s.store.Stat(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("match %s: stat %s: %w", matchID, key, err)
	}
	if obj.Size == 0 {
		return nil, fmt.Errorf("%w: match %s: %s is empty", ErrMalformedMatch, matchID, key)
	}
	return s.store.Get(ctx, key)
}
