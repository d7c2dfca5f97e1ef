// Package cache implements BucketCache, a bounded LRU over buckets keyed
// by a sparse, monotonically increasing BucketKey. Resident entries hold
// a loaded *types.Bucket; evicted entries degrade to placeholders that
// remember a bucket exists on disk without holding its data, so a later
// access reloads it instead of reporting it missing.
package cache

import (
	"os"
	"sort"
	"sync"

	"github.com/cuemby/homeledger/pkg/errs"
	"github.com/cuemby/homeledger/pkg/log"
	"github.com/cuemby/homeledger/pkg/metrics"
	"github.com/cuemby/homeledger/pkg/scanindex"
	"github.com/cuemby/homeledger/pkg/storage"
	"github.com/cuemby/homeledger/pkg/types"
)

// cacheEntry is one node of the key-indexed doubly-linked LRU list.
// data is nil for a placeholder: a key known to exist on disk (or in the
// modified set) but not currently resident.
type cacheEntry struct {
	key  types.BucketKey
	data *types.Bucket
	prev *types.BucketKey
	next *types.BucketKey
}

// RangeItem is one (key, bucket) pair returned by Range.
type RangeItem struct {
	Key    types.BucketKey
	Bucket *types.Bucket
}

// BucketCache is a bounded LRU cache of buckets backed by a
// storage.BucketSource. All state is guarded by a single mutex: the
// store is single-writer, so there is no benefit to finer-grained
// locking and every real invariant (LRU order, dirty set, active count)
// spans more than one field at once.
type BucketCache struct {
	mu sync.Mutex

	root    string
	source  storage.BucketSource
	indexFn types.IndexFunc

	maxActiveItems int
	activeItems    int

	entries  map[types.BucketKey]*cacheEntry
	files    map[types.BucketKey][]storage.FileRef
	modified map[types.BucketKey]bool

	keys []types.BucketKey // entries' key set, kept sorted ascending

	head, tail *types.BucketKey
}

// New returns an empty cache with no known keys. Used directly in tests
// and by callers that populate the cache via Add rather than a disk scan.
func New(root string, source storage.BucketSource, indexFn types.IndexFunc, maxActiveItems int) *BucketCache {
	return &BucketCache{
		root:           root,
		source:         source,
		indexFn:        indexFn,
		maxActiveItems: maxActiveItems,
		entries:        make(map[types.BucketKey]*cacheEntry),
		files:          make(map[types.BucketKey][]storage.FileRef),
		modified:       make(map[types.BucketKey]bool),
	}
}

// Open scans the data root for existing buckets and seeds the cache with
// placeholders for every key found, deferring the actual load until the
// first Get/Range touches it. Every call walks the data root through
// source.Scan; a scanindex.ScanIndex, if provided, receives the result of
// that walk via Store but is not consulted to skip it.
func Open(root string, source storage.BucketSource, indexFn types.IndexFunc, maxActiveItems int, scan *scanindex.ScanIndex) (*BucketCache, error) {
	c := New(root, source, indexFn, maxActiveItems)

	fileMap, err := scannedFiles(root, source, scan)
	if err != nil {
		return nil, err
	}

	for key, files := range fileMap {
		c.files[key] = files
		c.entries[key] = &cacheEntry{key: key}
		c.insertKeySorted(key)
	}

	return c, nil
}

func scannedFiles(root string, source storage.BucketSource, scan *scanindex.ScanIndex) (map[types.BucketKey][]storage.FileRef, error) {
	found, err := source.Scan(root)
	if err != nil {
		return nil, err
	}
	if scan != nil {
		entries := make(map[types.BucketKey][]scanindex.FileEntry, len(found))
		for key, files := range found {
			fe := make([]scanindex.FileEntry, len(files))
			for i, f := range files {
				var mtime int64
				if info, err := os.Stat(f.Path); err == nil {
					mtime = info.ModTime().Unix()
				}
				fe[i] = scanindex.FileEntry{Path: f.Path, MTime: mtime}
			}
			entries[key] = fe
		}
		if err := scan.Store(root, entries); err != nil {
			log.Logger.Warn().Err(err).Msg("failed to persist scan index")
		}
	}
	return found, nil
}

// ActiveItems reports the current number of resident (loaded) entries.
func (c *BucketCache) ActiveItems() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeItems
}

// Add inserts a brand-new bucket at the front of the LRU, evicting as
// needed to respect maxActiveItems first. Used when the ledger creates a
// bucket for a key that has never existed on disk.
func (c *BucketCache) Add(key types.BucketKey, bucket *types.Bucket, markModified bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.cleanupLocked(); err != nil {
		return err
	}

	e, ok := c.entries[key]
	if !ok {
		e = &cacheEntry{key: key}
		c.entries[key] = e
		c.insertKeySorted(key)
	}
	wasResident := e.data != nil
	e.data = bucket
	if wasResident {
		c.moveToFrontLocked(key)
	} else {
		c.attachLocked(key)
		c.activeItems++
		metrics.ActiveItemsGauge.Set(float64(c.activeItems))
	}

	if markModified {
		c.modified[key] = true
	}
	return nil
}

// MarkModified flags key as dirty, so it is persisted on eviction or
// Flush even if the caller mutated its bucket in place.
func (c *BucketCache) MarkModified(key types.BucketKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.modified[key] = true
}

// Get returns the bucket whose key is the greatest known key not after
// date, or nil if no such bucket exists yet.
func (c *BucketCache) Get(date types.KeyDate) (*types.Bucket, error) {
	idx := c.indexFn(date)
	if idx < 0 {
		return nil, errs.New(errs.InvalidInput, "invalid date")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key, ok := c.floorKeyLocked(idx)
	if !ok {
		return nil, nil
	}
	return c.getLocked(key)
}

// Range returns every known bucket whose key falls in [indexFn(from),
// indexFn(to)], ascending by key, loading lazily as needed.
func (c *BucketCache) Range(from, to types.KeyDate) ([]RangeItem, error) {
	idx2 := c.indexFn(to)
	if idx2 < 0 {
		return nil, errs.New(errs.InvalidInput, "invalid date")
	}
	idx1 := c.indexFn(from)
	if idx1 < 0 {
		idx1 = 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.keys) == 0 {
		return nil, nil
	}
	if max := c.keys[len(c.keys)-1]; idx2 > max {
		idx2 = max
	}

	lo := sort.Search(len(c.keys), func(i int) bool { return c.keys[i] >= idx1 })
	var out []RangeItem
	for i := lo; i < len(c.keys) && c.keys[i] <= idx2; i++ {
		key := c.keys[i]
		bucket, err := c.getLocked(key)
		if err != nil {
			return nil, err
		}
		out = append(out, RangeItem{Key: key, Bucket: bucket})
	}
	return out, nil
}

// GetExact returns the bucket stored under exactly key, or nil if key is
// unknown. Unlike Get, it performs no floor-key search.
func (c *BucketCache) GetExact(key types.BucketKey) (*types.Bucket, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok {
		return nil, nil
	}
	return c.getLocked(key)
}

// Ensure returns the bucket for key, creating and attaching an empty one
// via Add if it does not exist yet.
func (c *BucketCache) Ensure(key types.BucketKey) (*types.Bucket, error) {
	bucket, err := c.GetExact(key)
	if err != nil {
		return nil, err
	}
	if bucket != nil {
		return bucket, nil
	}

	bucket = types.NewBucket()
	if err := c.Add(key, bucket, false); err != nil {
		return nil, err
	}
	return bucket, nil
}

// Flush persists every dirty resident bucket without evicting it.
func (c *BucketCache) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.modified {
		e, ok := c.entries[key]
		if !ok || e.data == nil {
			continue
		}
		if err := c.saveLocked(key, e.data); err != nil {
			return err
		}
		delete(c.modified, key)
		metrics.CacheWriteBacksTotal.Inc()
	}
	return nil
}

func (c *BucketCache) floorKeyLocked(idx types.BucketKey) (types.BucketKey, bool) {
	i := sort.Search(len(c.keys), func(i int) bool { return c.keys[i] > idx })
	if i == 0 {
		return 0, false
	}
	return c.keys[i-1], true
}

func (c *BucketCache) insertKeySorted(key types.BucketKey) {
	i := sort.Search(len(c.keys), func(i int) bool { return c.keys[i] >= key })
	if i < len(c.keys) && c.keys[i] == key {
		return
	}
	c.keys = append(c.keys, 0)
	copy(c.keys[i+1:], c.keys[i:])
	c.keys[i] = key
}

// getLocked returns key's bucket, loading it from the source if it is
// currently a placeholder, and moves it to the front of the LRU.
func (c *BucketCache) getLocked(key types.BucketKey) (*types.Bucket, error) {
	e := c.entries[key]
	if e.data != nil {
		metrics.CacheHitsTotal.Inc()
		c.moveToFrontLocked(key)
		return e.data, nil
	}

	metrics.CacheMissesTotal.Inc()
	if err := c.cleanupLocked(); err != nil {
		return nil, err
	}

	timer := metrics.NewTimer()
	bucket, err := c.source.Load(c.files[key])
	timer.ObserveDurationVec(metrics.BucketLoadDuration, c.source.Name())
	if err != nil {
		return nil, err
	}

	e.data = bucket
	c.attachLocked(key)
	c.activeItems++
	metrics.ActiveItemsGauge.Set(float64(c.activeItems))
	return bucket, nil
}

func (c *BucketCache) cleanupLocked() error {
	for c.activeItems >= c.maxActiveItems && c.tail != nil {
		if err := c.evictLRULocked(); err != nil {
			return err
		}
	}
	return nil
}

func (c *BucketCache) evictLRULocked() error {
	key := *c.tail
	e := c.entries[key]

	if c.modified[key] {
		if err := c.saveLocked(key, e.data); err != nil {
			return err
		}
		delete(c.modified, key)
		metrics.CacheWriteBacksTotal.Inc()
	}

	e.data = nil
	c.detachLocked(key)
	c.activeItems--
	metrics.CacheEvictionsTotal.Inc()
	metrics.ActiveItemsGauge.Set(float64(c.activeItems))
	return nil
}

func (c *BucketCache) saveLocked(key types.BucketKey, bucket *types.Bucket) error {
	timer := metrics.NewTimer()
	err := c.source.Save(bucket, c.root, key)
	timer.ObserveDurationVec(metrics.BucketSaveDuration, c.source.Name())
	return err
}

// attachLocked links key at the head of the LRU list. It does not touch
// activeItems; callers that are admitting a new resident entry must bump
// the count themselves.
func (c *BucketCache) attachLocked(key types.BucketKey) {
	e := c.entries[key]
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.entries[*c.head].prev = &e.key
	} else {
		c.tail = &e.key
	}
	c.head = &e.key
}

func (c *BucketCache) detachLocked(key types.BucketKey) {
	e := c.entries[key]
	if e.next != nil {
		c.entries[*e.next].prev = e.prev
	} else {
		c.tail = e.prev
	}
	if e.prev != nil {
		c.entries[*e.prev].next = e.next
	} else {
		c.head = e.next
	}
	e.prev = nil
	e.next = nil
}

func (c *BucketCache) moveToFrontLocked(key types.BucketKey) {
	if c.head != nil && *c.head == key {
		return
	}
	c.detachLocked(key)
	c.attachLocked(key)
}
