package ledger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cuemby/homeledger/pkg/cache"
	"github.com/cuemby/homeledger/pkg/refdata"
	"github.com/cuemby/homeledger/pkg/storage"
	"github.com/cuemby/homeledger/pkg/types"
)

// noopSource is a storage.BucketSource that never reads or writes real
// files; engine tests populate the cache directly via Add.
type noopSource struct{}

func (noopSource) ParseDate(path string) (types.BucketKey, error) { return 0, nil }
func (noopSource) ListFilesForKey(root string, key types.BucketKey) ([]storage.FileRef, error) {
	return nil, nil
}
func (noopSource) Load(files []storage.FileRef) (*types.Bucket, error) { return types.NewBucket(), nil }
func (noopSource) Save(bucket *types.Bucket, root string, key types.BucketKey) error { return nil }
func (noopSource) Scan(root string) (map[types.BucketKey][]storage.FileRef, error)  { return nil, nil }
func (noopSource) Name() string                                                     { return "noop" }

func engineFixture(t *testing.T) *Engine {
	t.Helper()
	root := t.TempDir()

	if err := os.WriteFile(filepath.Join(root, "accounts.json"), []byte(`[
		{"id":1,"name":"Card","valutaCode":"USD","isCash":false},
		{"id":2,"name":"Cash","valutaCode":"USD","isCash":true}
	]`), 0o600); err != nil {
		t.Fatalf("WriteFile accounts.json: %v", err)
	}
	accounts, err := refdata.LoadAccounts(root)
	if err != nil {
		t.Fatalf("LoadAccounts: %v", err)
	}

	if err := os.WriteFile(filepath.Join(root, "subcategories.json"), []byte(`[
		{"id":1,"name":"Salary","code":"","operationCodeId":"INCM","categoryId":1},
		{"id":2,"name":"Rent","code":"","operationCodeId":"EXPN","categoryId":1}
	]`), 0o600); err != nil {
		t.Fatalf("WriteFile subcategories.json: %v", err)
	}
	subcategories, err := refdata.LoadSubcategories(root)
	if err != nil {
		t.Fatalf("LoadSubcategories: %v", err)
	}

	c := cache.New(root, noopSource{}, types.MonthIndex, 500)
	return New(c, accounts, subcategories)
}

func TestBuildTotalsCarriesClosingBalanceForward(t *testing.T) {
	e := engineFixture(t)

	jan := types.NewBucket()
	jan.Operations = []types.Operation{{Date: 20260105, Account: 1, Subcategory: 1, Summa: 1000}}
	if err := e.Cache.Add(types.MonthIndex(20260105), jan, false); err != nil {
		t.Fatalf("Add jan: %v", err)
	}

	feb := types.NewBucket()
	feb.Operations = []types.Operation{{Date: 20260210, Account: 1, Subcategory: 2, Summa: 300}}
	if err := e.Cache.Add(types.MonthIndex(20260210), feb, false); err != nil {
		t.Fatalf("Add feb: %v", err)
	}

	if err := e.BuildTotals(20260101); err != nil {
		t.Fatalf("BuildTotals: %v", err)
	}

	if feb.Totals[1] != 1000 {
		t.Fatalf("feb.Totals[1] = %d, want 1000 (January's closing balance)", feb.Totals[1])
	}
}

func TestOpsAndChangesSplitsPriorAndSameDate(t *testing.T) {
	e := engineFixture(t)

	bucket := types.NewBucket()
	bucket.Operations = []types.Operation{
		{Date: 20260105, Account: 1, Subcategory: 1, Summa: 1000}, // prior to the 10th
		{Date: 20260110, Account: 1, Subcategory: 2, Summa: 200},  // same date
	}
	if err := e.Cache.Add(types.MonthIndex(20260110), bucket, false); err != nil {
		t.Fatalf("Add: %v", err)
	}

	ops, changes, err := e.OpsAndChanges(20260110)
	if err != nil {
		t.Fatalf("OpsAndChanges: %v", err)
	}
	if len(ops) != 1 || ops[0].Date != 20260110 {
		t.Fatalf("ops = %+v, want one operation dated 20260110", ops)
	}

	c, ok := changes.Get(1)
	if !ok {
		t.Fatalf("changes.Get(1) missing")
	}
	if c.StartBalance != 1000 {
		t.Fatalf("StartBalance = %d, want 1000 (from the prior operation)", c.StartBalance)
	}
	if c.Expenditure != 200 {
		t.Fatalf("Expenditure = %d, want 200 (the same-date operation)", c.Expenditure)
	}
	if c.EndBalance() != 800 {
		t.Fatalf("EndBalance = %d, want 800", c.EndBalance())
	}
}

func TestOpsAndChangesMissingBucketReturnsEmpty(t *testing.T) {
	e := engineFixture(t)

	ops, changes, err := e.OpsAndChanges(20260110)
	if err != nil {
		t.Fatalf("OpsAndChanges: %v", err)
	}
	if ops != nil {
		t.Fatalf("ops = %v, want nil", ops)
	}
	if len(changes.All()) != 0 {
		t.Fatalf("changes.All() = %v, want empty", changes.All())
	}
}
