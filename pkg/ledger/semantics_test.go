package ledger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cuemby/homeledger/pkg/refdata"
	"github.com/cuemby/homeledger/pkg/types"
)

const (
	accountCard1 types.AccountID = 1
	accountCash1 types.AccountID = 2
	accountCard2 types.AccountID = 3
	accountCash2 types.AccountID = 4

	subIncome  types.SubcategoryID = 1
	subExpense types.SubcategoryID = 2
	subIncc    types.SubcategoryID = 3
	subExpc    types.SubcategoryID = 4
	subExch    types.SubcategoryID = 5
	subTrfr    types.SubcategoryID = 6
)

func writeRefdata(t *testing.T) (*refdata.Accounts, *refdata.Subcategories) {
	t.Helper()
	root := t.TempDir()

	accountsJSON := `[
		{"id":1,"name":"Card USD","valutaCode":"USD","isCash":false},
		{"id":2,"name":"Cash USD","valutaCode":"USD","isCash":true},
		{"id":3,"name":"Card EUR","valutaCode":"EUR","isCash":false},
		{"id":4,"name":"Cash EUR","valutaCode":"EUR","isCash":true}
	]`
	if err := os.WriteFile(filepath.Join(root, "accounts.json"), []byte(accountsJSON), 0o600); err != nil {
		t.Fatalf("WriteFile accounts.json: %v", err)
	}
	accounts, err := refdata.LoadAccounts(root)
	if err != nil {
		t.Fatalf("LoadAccounts: %v", err)
	}

	subcategoriesJSON := `[
		{"id":1,"name":"Salary","code":"","operationCodeId":"INCM","categoryId":1},
		{"id":2,"name":"Rent","code":"","operationCodeId":"EXPN","categoryId":1},
		{"id":3,"name":"Card top-up","code":"INCC","operationCodeId":"SPCL","categoryId":1},
		{"id":4,"name":"ATM withdrawal","code":"EXPC","operationCodeId":"SPCL","categoryId":1},
		{"id":5,"name":"Currency exchange","code":"EXCH","operationCodeId":"SPCL","categoryId":1},
		{"id":6,"name":"Card transfer","code":"TRFR","operationCodeId":"SPCL","categoryId":1}
	]`
	if err := os.WriteFile(filepath.Join(root, "subcategories.json"), []byte(subcategoriesJSON), 0o600); err != nil {
		t.Fatalf("WriteFile subcategories.json: %v", err)
	}
	subcategories, err := refdata.LoadSubcategories(root)
	if err != nil {
		t.Fatalf("LoadSubcategories: %v", err)
	}

	return accounts, subcategories
}

func TestApplyIncome(t *testing.T) {
	accounts, subcategories := writeRefdata(t)
	changes := types.EmptyFinanceChanges()
	op := types.Operation{Account: accountCard1, Subcategory: subIncome, Summa: 1000}

	if err := Apply(op, changes, accounts, subcategories); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	c, _ := changes.Get(accountCard1)
	if c.Income != 1000 || c.EndBalance() != 1000 {
		t.Fatalf("changes = %+v, want income 1000", c)
	}
}

func TestApplyExpenditure(t *testing.T) {
	accounts, subcategories := writeRefdata(t)
	changes := types.EmptyFinanceChanges()
	op := types.Operation{Account: accountCard1, Subcategory: subExpense, Summa: 400}

	if err := Apply(op, changes, accounts, subcategories); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	c, _ := changes.Get(accountCard1)
	if c.Expenditure != 400 || c.EndBalance() != -400 {
		t.Fatalf("changes = %+v, want expenditure 400", c)
	}
}

func TestApplyIncc(t *testing.T) {
	accounts, subcategories := writeRefdata(t)
	changes := types.EmptyFinanceChanges()
	op := types.Operation{Account: accountCard1, Subcategory: subIncc, Summa: 500}

	if err := Apply(op, changes, accounts, subcategories); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	card, _ := changes.Get(accountCard1)
	cash, _ := changes.Get(accountCash1)
	if card.Income != 500 {
		t.Fatalf("card.Income = %d, want 500", card.Income)
	}
	if cash.Expenditure != 500 {
		t.Fatalf("cash.Expenditure = %d, want 500", cash.Expenditure)
	}
}

func TestApplyInccOnCashAccountItselfIsNoOp(t *testing.T) {
	accounts, subcategories := writeRefdata(t)
	changes := types.EmptyFinanceChanges()
	op := types.Operation{Account: accountCash1, Subcategory: subIncc, Summa: 500}

	if err := Apply(op, changes, accounts, subcategories); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	cash, _ := changes.Get(accountCash1)
	if cash.Income != 500 || cash.Expenditure != 0 {
		t.Fatalf("cash = %+v, want income 500, expenditure 0", cash)
	}
}

func TestApplyExpc(t *testing.T) {
	accounts, subcategories := writeRefdata(t)
	changes := types.EmptyFinanceChanges()
	op := types.Operation{Account: accountCard1, Subcategory: subExpc, Summa: 300}

	if err := Apply(op, changes, accounts, subcategories); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	card, _ := changes.Get(accountCard1)
	cash, _ := changes.Get(accountCash1)
	if card.Expenditure != 300 {
		t.Fatalf("card.Expenditure = %d, want 300", card.Expenditure)
	}
	if cash.Income != 300 {
		t.Fatalf("cash.Income = %d, want 300", cash.Income)
	}
}

func TestApplyTrfrWithSecondAccount(t *testing.T) {
	accounts, subcategories := writeRefdata(t)
	changes := types.EmptyFinanceChanges()
	op := types.Operation{
		Account:     accountCard1,
		Subcategory: subTrfr,
		Summa:       700,
		Parameters:  []types.FinOpParameter{{Code: types.ParamSecondAcct, Numeric: uint64(accountCard2)}},
	}

	if err := Apply(op, changes, accounts, subcategories); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	src, _ := changes.Get(accountCard1)
	dst, _ := changes.Get(accountCard2)
	if src.Expenditure != 700 {
		t.Fatalf("src.Expenditure = %d, want 700", src.Expenditure)
	}
	if dst.Income != 700 {
		t.Fatalf("dst.Income = %d, want 700", dst.Income)
	}
}

func TestApplyTrfrWithoutSecondAccountOnlyDebits(t *testing.T) {
	accounts, subcategories := writeRefdata(t)
	changes := types.EmptyFinanceChanges()
	op := types.Operation{Account: accountCard1, Subcategory: subTrfr, Summa: 700}

	if err := Apply(op, changes, accounts, subcategories); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got, ok := changes.Get(accountCard2); ok {
		t.Fatalf("Get(accountCard2) = %+v, ok=%v, want untouched", got, ok)
	}
	src, _ := changes.Get(accountCard1)
	if src.Expenditure != 700 {
		t.Fatalf("src.Expenditure = %d, want 700", src.Expenditure)
	}
}

func TestApplyExchUsesAmountNotSummaForDebit(t *testing.T) {
	accounts, subcategories := writeRefdata(t)
	changes := types.EmptyFinanceChanges()
	amount := uint64(12340) // amount/10 = 1234
	op := types.Operation{
		Account:     accountCard1,
		Subcategory: subExch,
		Summa:       999, // credited to the second account verbatim, not scaled
		Amount:      &amount,
		Parameters:  []types.FinOpParameter{{Code: types.ParamSecondAcct, Numeric: uint64(accountCard2)}},
	}

	if err := Apply(op, changes, accounts, subcategories); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	src, _ := changes.Get(accountCard1)
	dst, _ := changes.Get(accountCard2)
	if src.Expenditure != 1234 {
		t.Fatalf("src.Expenditure = %d, want 1234", src.Expenditure)
	}
	if dst.Income != 999 {
		t.Fatalf("dst.Income = %d, want 999 (op.Summa, not the scaled amount)", dst.Income)
	}
}

func TestApplyExchWithoutAmountIsNoOp(t *testing.T) {
	accounts, subcategories := writeRefdata(t)
	changes := types.EmptyFinanceChanges()
	op := types.Operation{Account: accountCard1, Subcategory: subExch, Summa: 999}

	if err := Apply(op, changes, accounts, subcategories); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got, ok := changes.Get(accountCard1); ok {
		t.Fatalf("Get(accountCard1) = %+v, ok=%v, want untouched", got, ok)
	}
}

func TestApplyUnknownSubcategoryFails(t *testing.T) {
	accounts, subcategories := writeRefdata(t)
	changes := types.EmptyFinanceChanges()
	op := types.Operation{Account: accountCard1, Subcategory: 999, Summa: 1}

	if err := Apply(op, changes, accounts, subcategories); err == nil {
		t.Fatalf("Apply: expected error for unknown subcategory")
	}
}
