package catalog

import (
	"context"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
)

// DryRunClient wraps a Client so mutating operations succeed without
// reaching the backend while queries reflect the mutations recorded so
// far. Callers run the exact same code path against a DryRunClient as
// against the real thing.
//
// Not safe for concurrent use; transfers are sequential.
type DryRunClient struct {
	inner   Client
	created mapset.Set[string]
	removed map[string]bool
	puts    map[string]Replica
}

// DryRun wraps inner in a recording decorator.
func DryRun(inner Client) *DryRunClient {
	return &DryRunClient{
		inner:   inner,
		created: mapset.NewThreadUnsafeSet[string](),
		removed: make(map[string]bool),
		puts:    make(map[string]Replica),
	}
}

func (c *DryRunClient) CreateCollection(ctx context.Context, path string, recursive bool) error {
	if c.created.Contains(path) {
		return ErrCollectionExists
	}
	c.created.Add(path)
	return nil
}

func (c *DryRunClient) ListCollections(ctx context.Context, prefix string) (mapset.Set[string], error) {
	existing, err := c.inner.ListCollections(ctx, prefix)
	if err != nil {
		return nil, err
	}
	for path := range c.created.Iter() {
		if strings.HasPrefix(path, prefix+"/") {
			existing.Add(path)
		}
	}
	return existing, nil
}

func (c *DryRunClient) StatObject(ctx context.Context, collection, name string) ([]Replica, error) {
	path := collection + "/" + name
	if replica, ok := c.puts[path]; ok {
		return []Replica{replica}, nil
	}
	if c.removed[path] {
		return nil, nil
	}
	return c.inner.StatObject(ctx, collection, name)
}

func (c *DryRunClient) RemoveObject(ctx context.Context, path string) error {
	c.removed[path] = true
	delete(c.puts, path)
	return nil
}

func (c *DryRunClient) PutObject(ctx context.Context, req *PutRequest) error {
	c.puts[req.Path] = Replica{Checksum: req.Checksum, Size: req.Size}
	delete(c.removed, req.Path)
	return nil
}
