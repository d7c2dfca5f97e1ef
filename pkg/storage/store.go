// Package storage implements the BucketSource interface: reading and
// writing one bucket's files for a given key, behind a provider-agnostic
// API that BucketCache is oblivious to.
package storage

import (
	"github.com/cuemby/homeledger/pkg/types"
)

// FileRef is one file discovered under the data root, tagged with the
// bucket key decoded from its location.
type FileRef struct {
	Path string
	Key  types.BucketKey
}

// BucketSource reads and writes the files that make up one bucket.
// Implementations are JSONSource (directory-per-date) and BinarySource
// (one AES-256-GCM file per bucket).
type BucketSource interface {
	// ParseDate derives the bucket key from a discovered file path.
	ParseDate(path string) (types.BucketKey, error)

	// ListFilesForKey enumerates the files comprising one bucket.
	ListFilesForKey(root string, key types.BucketKey) ([]FileRef, error)

	// Load reads and merges files into one bucket. Each operation keeps
	// the Date read from its own record; it is not overwritten from the
	// file path.
	Load(files []FileRef) (*types.Bucket, error)

	// Save replaces the on-disk bucket for key under root, writing
	// through a temp file that is renamed into place.
	Save(bucket *types.Bucket, root string, key types.BucketKey) error

	// Scan walks root recursively and returns every distinct bucket key
	// found, without reading file contents.
	Scan(root string) (map[types.BucketKey][]FileRef, error)

	// Name identifies the provider for logging and metrics labels.
	Name() string
}
