package sync

import (
	"context"
	"path/filepath"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/mirrorlake/catapult/internal/inspect"
	"github.com/mirrorlake/catapult/pkg/catalog"
)

// fakeCatalog is an in-memory catalog.Client that records every call and
// can be primed with objects, collections and failures.
type fakeCatalog struct {
	collections mapset.Set[string]
	objects     map[string][]catalog.Replica

	createErr func(path string, recursive bool) error
	listErr   error
	statErr   error
	removeErr error
	putErr    error

	putDiscard  bool   // drop the object after a successful put
	putChecksum string // overrides the stored checksum when non-empty
	putSize     int64  // overrides the stored size when non-zero

	createCalls []string
	removeCalls []string
	putCalls    []catalog.PutRequest
	statCalls   map[string]int
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		collections: mapset.NewThreadUnsafeSet[string](),
		objects:     map[string][]catalog.Replica{},
		statCalls:   map[string]int{},
	}
}

func (f *fakeCatalog) CreateCollection(_ context.Context, path string, recursive bool) error {
	f.createCalls = append(f.createCalls, path)
	if f.createErr != nil {
		if err := f.createErr(path, recursive); err != nil {
			return err
		}
	}
	if f.collections.Contains(path) {
		return catalog.ErrCollectionExists
	}
	f.collections.Add(path)
	return nil
}

func (f *fakeCatalog) ListCollections(_ context.Context, prefix string) (mapset.Set[string], error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	set := mapset.NewThreadUnsafeSet[string]()
	for c := range f.collections.Iter() {
		if strings.HasPrefix(c, prefix+"/") {
			set.Add(c)
		}
	}
	return set, nil
}

func (f *fakeCatalog) StatObject(_ context.Context, collection, name string) ([]catalog.Replica, error) {
	path := collection + "/" + name
	f.statCalls[path]++
	if f.statErr != nil {
		return nil, f.statErr
	}
	return f.objects[path], nil
}

func (f *fakeCatalog) RemoveObject(_ context.Context, path string) error {
	f.removeCalls = append(f.removeCalls, path)
	if f.removeErr != nil {
		return f.removeErr
	}
	delete(f.objects, path)
	return nil
}

func (f *fakeCatalog) PutObject(_ context.Context, req *catalog.PutRequest) error {
	f.putCalls = append(f.putCalls, *req)
	if f.putErr != nil {
		return f.putErr
	}
	if f.putDiscard {
		return nil
	}
	replica := catalog.Replica{Checksum: req.Checksum, Size: req.Size}
	if f.putChecksum != "" {
		replica.Checksum = f.putChecksum
	}
	if f.putSize != 0 {
		replica.Size = f.putSize
	}
	f.objects[req.Path] = []catalog.Replica{replica}
	return nil
}

// totalStatCalls sums StatObject invocations across all paths.
func (f *fakeCatalog) totalStatCalls() int {
	total := 0
	for _, n := range f.statCalls {
		total += n
	}
	return total
}

// fakeInspector wraps the real filesystem inspector with injectable
// failures keyed by base name.
type fakeInspector struct {
	inspect.FS
	statErr map[string]error
	sumErr  map[string]error
}

func (f *fakeInspector) StatSize(path string) (int64, error) {
	if err := f.statErr[filepath.Base(path)]; err != nil {
		return 0, err
	}
	return f.FS.StatSize(path)
}

func (f *fakeInspector) Checksum(path string) (string, error) {
	if err := f.sumErr[filepath.Base(path)]; err != nil {
		return "", err
	}
	return f.FS.Checksum(path)
}
