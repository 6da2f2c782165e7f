// Package catalog defines the remote catalog contract: collections hold
// objects, objects have one or more replicas, and every operation returns
// typed results rather than free text.
package catalog

import (
	"context"
	"errors"

	mapset "github.com/deckarep/golang-set/v2"
)

// ErrCollectionExists reports a create against a collection path that is
// already present. Mirroring treats it as success.
var ErrCollectionExists = errors.New("collection already exists")

// Replica is one physical copy of an object. A healthy object reports
// the same checksum and size on every replica.
type Replica struct {
	Checksum string // base64-encoded SHA-256, empty if never registered
	Size     int64
}

// PutRequest describes one upload.
type PutRequest struct {
	LocalPath string // file to read
	Path      string // full object path in the catalog
	Size      int64
	Checksum  string // base64-encoded SHA-256, empty on simulated runs
	Overwrite bool
	ResumeID  string // keys partial-transfer state across runs
}

// Client is the remote side of a transfer.
type Client interface {
	// CreateCollection makes the collection at path. With recursive set,
	// missing parents are created as well. Returns ErrCollectionExists
	// when the collection is already present.
	CreateCollection(ctx context.Context, path string, recursive bool) error

	// ListCollections returns the paths of every existing collection
	// below prefix.
	ListCollections(ctx context.Context, prefix string) (mapset.Set[string], error)

	// StatObject returns all replicas of the object name inside
	// collection. An absent object yields an empty slice and no error.
	StatObject(ctx context.Context, collection, name string) ([]Replica, error)

	// RemoveObject deletes the object at path, all replicas included.
	RemoveObject(ctx context.Context, path string) error

	// PutObject uploads one file.
	PutObject(ctx context.Context, req *PutRequest) error
}

// DistinctReplicas collapses replicas that agree on checksum and size.
// More than one distinct entry means the catalog holds inconsistent
// copies of the object.
func DistinctReplicas(replicas []Replica) []Replica {
	seen := make(map[Replica]struct{}, len(replicas))
	distinct := make([]Replica, 0, 1)
	for _, r := range replicas {
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		distinct = append(distinct, r)
	}
	return distinct
}
