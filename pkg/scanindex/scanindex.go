// Package scanindex records the result of the recursive bucket-key scan
// that cache.Open performs, using a single bbolt file per data root.
// Lookup returns a recorded scan only while every recorded file still has
// its recorded mtime; a miss or a mismatch reports no result. cache.Open
// writes to the index after each walk and does not read from it.
package scanindex

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cuemby/homeledger/pkg/errs"
	"github.com/cuemby/homeledger/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var bucketScan = []byte("scan")

// FileEntry is one file belonging to a bucket, along with the mtime
// observed the last time the scan ran.
type FileEntry struct {
	Path  string
	MTime int64
}

// ScanIndex is a bbolt-backed cache of directory-scan results, keyed by
// data root.
type ScanIndex struct {
	db *bolt.DB
}

// Open opens (creating if absent) the scan index file at
// <dataRoot>/.scanindex.db.
func Open(dataRoot string) (*ScanIndex, error) {
	dbPath := filepath.Join(dataRoot, ".scanindex.db")

	db, err := bolt.Open(dbPath, 0o600, nil)
	if err != nil {
		return nil, errs.Wrap(errs.IO, "open scan index", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketScan)
		return err
	})
	if err != nil {
		db.Close()
		return nil, errs.Wrap(errs.IO, "create scan index bucket", err)
	}

	return &ScanIndex{db: db}, nil
}

// Close closes the underlying bbolt file.
func (s *ScanIndex) Close() error {
	return s.db.Close()
}

type scanRecord struct {
	Key     int64       `json:"key"`
	Entries []FileEntry `json:"entries"`
}

func recordKey(root string) []byte {
	return []byte(root)
}

// Lookup returns the cached scan for root, if present and still valid.
// Validity is checked by a cheap os.Stat pass over every previously seen
// path; any mismatch in mtime (or a missing file) invalidates the whole
// entry, forcing the caller to fall back to a full scan.
func (s *ScanIndex) Lookup(root string) (map[types.BucketKey][]FileEntry, bool) {
	var records []scanRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketScan)
		data := b.Get(recordKey(root))
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &records)
	})
	if err != nil || records == nil {
		return nil, false
	}

	result := make(map[types.BucketKey][]FileEntry, len(records))
	for _, rec := range records {
		for _, entry := range rec.Entries {
			info, err := os.Stat(entry.Path)
			if err != nil || info.ModTime().Unix() != entry.MTime {
				return nil, false
			}
		}
		result[types.BucketKey(rec.Key)] = rec.Entries
	}
	return result, true
}

// Store persists scan as the cached result for root.
func (s *ScanIndex) Store(root string, scan map[types.BucketKey][]FileEntry) error {
	records := make([]scanRecord, 0, len(scan))
	for key, entries := range scan {
		records = append(records, scanRecord{Key: int64(key), Entries: entries})
	}

	data, err := json.Marshal(records)
	if err != nil {
		return errs.Wrap(errs.IO, "encode scan index record", err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketScan)
		if err := b.Put(recordKey(root), data); err != nil {
			return fmt.Errorf("put scan index record: %w", err)
		}
		return nil
	})
}
