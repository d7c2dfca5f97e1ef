package ledger

import (
	"github.com/cuemby/homeledger/pkg/cache"
	"github.com/cuemby/homeledger/pkg/metrics"
	"github.com/cuemby/homeledger/pkg/refdata"
	"github.com/cuemby/homeledger/pkg/types"
)

// MaxDate bounds an open-ended forward sweep; it is larger than any real
// YYYYMMDD date.
const MaxDate types.KeyDate = 99999999

// Engine sweeps buckets forward to keep opening totals current and
// answers point-in-time queries against them.
type Engine struct {
	Cache         *cache.BucketCache
	Accounts      *refdata.Accounts
	Subcategories *refdata.Subcategories
}

// New returns an Engine over an already-populated cache and reference data.
func New(c *cache.BucketCache, accounts *refdata.Accounts, subcategories *refdata.Subcategories) *Engine {
	return &Engine{Cache: c, Accounts: accounts, Subcategories: subcategories}
}

// BuildTotals recomputes every bucket's opening Totals from from forward,
// by carrying each bucket's closing balances into the next bucket's
// opening totals. The first bucket in range keeps whatever Totals it
// already has (its opening balance comes from the bucket before from,
// already correct from a prior sweep).
func (e *Engine) BuildTotals(from types.KeyDate) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.LedgerSweepDuration)

	items, err := e.Cache.Range(from, MaxDate)
	if err != nil {
		return err
	}

	var changes *types.FinanceChanges
	for _, item := range items {
		if changes != nil {
			item.Bucket.Totals = changes.BuildTotals()
		}
		changes, err = e.buildChanges(item.Bucket)
		if err != nil {
			return err
		}
	}
	return nil
}

// OpsAndChanges returns every operation dated exactly date and the
// per-account balance changes in effect at that date: prior-date
// operations establish the opening balances, same-date operations are
// reported separately so a caller can see the day's own activity.
func (e *Engine) OpsAndChanges(date types.KeyDate) ([]types.Operation, *types.FinanceChanges, error) {
	bucket, err := e.Cache.Get(date)
	if err != nil {
		return nil, nil, err
	}
	if bucket == nil {
		return nil, types.EmptyFinanceChanges(), nil
	}

	prior := types.NewFinanceChanges(bucket.Totals)
	if err := e.updateChanges(bucket, prior, 0, date-1); err != nil {
		return nil, nil, err
	}

	same := types.NewFinanceChanges(prior.BuildTotals())
	if err := e.updateChanges(bucket, same, date, date); err != nil {
		return nil, nil, err
	}

	return bucket.OpsForDate(date), same, nil
}

func (e *Engine) buildChanges(bucket *types.Bucket) (*types.FinanceChanges, error) {
	changes := types.NewFinanceChanges(bucket.Totals)
	for _, op := range bucket.Operations {
		if err := Apply(op, changes, e.Accounts, e.Subcategories); err != nil {
			return nil, err
		}
		metrics.LedgerOperationsAppliedTotal.Inc()
	}
	return changes, nil
}

func (e *Engine) updateChanges(bucket *types.Bucket, changes *types.FinanceChanges, from, to types.KeyDate) error {
	for _, op := range bucket.Operations {
		if op.Within(from, to) {
			if err := Apply(op, changes, e.Accounts, e.Subcategories); err != nil {
				return err
			}
			metrics.LedgerOperationsAppliedTotal.Inc()
		}
	}
	return nil
}
