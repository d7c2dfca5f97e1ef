// Package ledgerdb wires BucketSource, BucketCache, ReferenceData and
// LedgerEngine into the single facade the CLI and API server operate
// against.
package ledgerdb

import (
	"time"

	"github.com/cuemby/homeledger/pkg/cache"
	"github.com/cuemby/homeledger/pkg/ledger"
	"github.com/cuemby/homeledger/pkg/log"
	"github.com/cuemby/homeledger/pkg/refdata"
	"github.com/cuemby/homeledger/pkg/scanindex"
	"github.com/cuemby/homeledger/pkg/storage"
	"github.com/cuemby/homeledger/pkg/types"
)

// Ledger is the top-level, single-writer store: one data root, one
// BucketSource, one cache, one set of reference data.
type Ledger struct {
	root   string
	source storage.BucketSource
	scan   *scanindex.ScanIndex

	Cache         *cache.BucketCache
	Engine        *ledger.Engine
	Accounts      *refdata.Accounts
	Categories    *refdata.Categories
	Subcategories *refdata.Subcategories
}

// Open loads reference data, scans the data root for existing buckets,
// and runs an initial full sweep to establish every bucket's opening
// totals.
func Open(root string, source storage.BucketSource, maxActiveItems int) (*Ledger, error) {
	start := time.Now()

	scan, err := scanindex.Open(root)
	if err != nil {
		log.Logger.Warn().Err(err).Msg("scan index unavailable, falling back to a full directory walk")
		scan = nil
	}

	bucketCache, err := cache.Open(root, source, types.MonthIndex, maxActiveItems, scan)
	if err != nil {
		return nil, err
	}

	accounts, err := refdata.LoadAccounts(root)
	if err != nil {
		return nil, err
	}
	categories, err := refdata.LoadCategories(root)
	if err != nil {
		return nil, err
	}
	subcategories, err := refdata.LoadSubcategories(root)
	if err != nil {
		return nil, err
	}

	engine := ledger.New(bucketCache, accounts, subcategories)
	log.Logger.Info().Dur("elapsed", time.Since(start)).Msg("ledger data loaded")

	sweepStart := time.Now()
	if err := engine.BuildTotals(0); err != nil {
		return nil, err
	}
	log.Logger.Info().Dur("elapsed", time.Since(sweepStart)).Msg("totals sweep finished")

	return &Ledger{
		root:          root,
		source:        source,
		scan:          scan,
		Cache:         bucketCache,
		Engine:        engine,
		Accounts:      accounts,
		Categories:    categories,
		Subcategories: subcategories,
	}, nil
}

// OpsAndChanges returns date's own operations and the balance changes in
// effect at that date.
func (l *Ledger) OpsAndChanges(date types.KeyDate) ([]types.Operation, *types.FinanceChanges, error) {
	return l.Engine.OpsAndChanges(date)
}

// Totals returns the per-account closing balance as of date.
func (l *Ledger) Totals(date types.KeyDate) (map[types.AccountID]int64, error) {
	_, changes, err := l.Engine.OpsAndChanges(date)
	if err != nil {
		return nil, err
	}
	return changes.BuildTotals(), nil
}

// ActiveItems reports the cache's current resident entry count.
func (l *Ledger) ActiveItems() int {
	return l.Cache.ActiveItems()
}

// InsertOperation appends op to its owning bucket, creating the bucket
// if this is its first operation, then re-sweeps totals forward from
// op's date.
func (l *Ledger) InsertOperation(op types.Operation) error {
	key := types.MonthIndex(op.Date)
	bucket, err := l.Cache.Ensure(key)
	if err != nil {
		return err
	}
	bucket.Operations = append(bucket.Operations, op.Copy())
	l.Cache.MarkModified(key)
	return l.Engine.BuildTotals(op.Date)
}

// Flush persists every dirty bucket currently resident in the cache.
func (l *Ledger) Flush() error {
	return l.Cache.Flush()
}

// Close flushes pending writes and releases the scan index handle.
func (l *Ledger) Close() error {
	if err := l.Flush(); err != nil {
		return err
	}
	if l.scan != nil {
		return l.scan.Close()
	}
	return nil
}

// Migrate loads every bucket known to this ledger and re-saves it
// through destSource under destRoot, re-encoding the whole store.
func (l *Ledger) Migrate(destRoot string, destSource storage.BucketSource) error {
	items, err := l.Cache.Range(0, ledger.MaxDate)
	if err != nil {
		return err
	}
	for _, item := range items {
		if err := destSource.Save(item.Bucket, destRoot, item.Key); err != nil {
			return err
		}
	}
	return nil
}
