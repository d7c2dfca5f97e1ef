package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/cuemby/homeledger/pkg/errs"
	"github.com/cuemby/homeledger/pkg/types"
	"github.com/google/uuid"
)

// JSONSource is the directory-per-date BucketSource: every bucket lives
// under <root>/dates/<key>/ as one or more files, each a JSON array of
// operations.
type JSONSource struct{}

// NewJSONSource returns a JSONSource ready to use.
func NewJSONSource() *JSONSource {
	return &JSONSource{}
}

func (s *JSONSource) Name() string { return "json" }

func (s *JSONSource) datesDir(root string) string {
	return filepath.Join(root, "dates")
}

// ParseDate interprets the parent directory name of path as a decimal
// bucket key.
func (s *JSONSource) ParseDate(path string) (types.BucketKey, error) {
	folder := filepath.Base(filepath.Dir(path))
	n, err := strconv.ParseInt(folder, 10, 64)
	if err != nil {
		return 0, errs.Wrap(errs.InvalidData, "parse bucket folder name", err)
	}
	return types.BucketKey(n), nil
}

// ListFilesForKey lists every regular file directly under
// <root>/dates/<key>/.
func (s *JSONSource) ListFilesForKey(root string, key types.BucketKey) ([]FileRef, error) {
	dir := filepath.Join(s.datesDir(root), strconv.FormatInt(int64(key), 10))
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errs.Wrap(errs.IO, "read bucket directory", err)
	}
	var refs []FileRef
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		refs = append(refs, FileRef{Path: filepath.Join(dir, e.Name()), Key: key})
	}
	return refs, nil
}

// Load reads and merges every file's JSON array of operations. Each
// operation keeps the day-level date decoded from its own date/id field;
// it is not overwritten from the file's bucket key, which only carries
// month granularity (see types.BucketKey). Instead each decoded
// operation's date is checked against f.Key and the load fails with
// InvalidData on a mismatch. The merged operations are sorted stably by
// date.
func (s *JSONSource) Load(files []FileRef) (*types.Bucket, error) {
	bucket := types.NewBucket()
	for _, f := range files {
		data, err := os.ReadFile(f.Path)
		if err != nil {
			return nil, errs.Wrap(errs.IO, "read bucket file", err)
		}
		var ops []types.Operation
		if err := json.Unmarshal(data, &ops); err != nil {
			return nil, errs.Wrap(errs.InvalidData, "decode bucket file "+f.Path, err)
		}
		for _, op := range ops {
			if types.MonthIndex(op.Date) != f.Key {
				return nil, errs.New(errs.InvalidData, "operation date "+strconv.FormatInt(int64(op.Date), 10)+" does not belong to bucket "+f.Path)
			}
		}
		bucket.Operations = append(bucket.Operations, ops...)
	}
	sort.SliceStable(bucket.Operations, func(i, j int) bool {
		return bucket.Operations[i].Date < bucket.Operations[j].Date
	})
	return bucket, nil
}

// Save writes bucket as a single operations.json under <root>/dates/<key>/.
// It first deletes every regular file already in that directory, then
// writes through a uuid-suffixed temp file renamed into place, so the
// replacement of the old files is not atomic.
func (s *JSONSource) Save(bucket *types.Bucket, root string, key types.BucketKey) error {
	dir := filepath.Join(s.datesDir(root), strconv.FormatInt(int64(key), 10))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errs.Wrap(errs.IO, "create bucket directory", err)
	}

	existing, err := os.ReadDir(dir)
	if err != nil {
		return errs.Wrap(errs.IO, "read bucket directory", err)
	}
	for _, e := range existing {
		if !e.IsDir() {
			if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
				return errs.Wrap(errs.IO, "remove stale bucket file", err)
			}
		}
	}

	data, err := json.Marshal(bucket.Operations)
	if err != nil {
		return errs.Wrap(errs.IO, "encode bucket", err)
	}

	tmpName := filepath.Join(dir, "."+uuid.New().String()+".tmp")
	f, err := os.Create(tmpName)
	if err != nil {
		return errs.Wrap(errs.IO, "create temp bucket file", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpName)
		return errs.Wrap(errs.IO, "write temp bucket file", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpName)
		return errs.Wrap(errs.IO, "sync temp bucket file", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpName)
		return errs.Wrap(errs.IO, "close temp bucket file", err)
	}

	finalName := filepath.Join(dir, "operations.json")
	if err := os.Rename(tmpName, finalName); err != nil {
		return errs.Wrap(errs.IO, "rename temp bucket file", err)
	}
	return nil
}

// Scan walks <root>/dates recursively, grouping discovered files by the
// bucket key decoded from their parent directory.
func (s *JSONSource) Scan(root string) (map[types.BucketKey][]FileRef, error) {
	dir := s.datesDir(root)
	result := make(map[types.BucketKey][]FileRef)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return result, nil
		}
		return nil, errs.Wrap(errs.IO, "read dates directory", err)
	}

	for _, keyEntry := range entries {
		if !keyEntry.IsDir() {
			continue
		}
		key, err := strconv.ParseInt(keyEntry.Name(), 10, 64)
		if err != nil {
			return nil, errs.Wrap(errs.InvalidData, "parse bucket folder name "+keyEntry.Name(), err)
		}
		if key < 0 {
			return nil, errs.New(errs.InvalidInput, "invalid date: negative bucket key")
		}
		bucketKey := types.BucketKey(key)
		files, err := s.ListFilesForKey(root, bucketKey)
		if err != nil {
			return nil, err
		}
		result[bucketKey] = files
	}
	return result, nil
}
