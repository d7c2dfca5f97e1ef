package refdata

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cuemby/homeledger/pkg/types"
)

func writeFile(t *testing.T, root, name, contents string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(root, name), []byte(contents), 0o600); err != nil {
		t.Fatalf("WriteFile(%s): %v", name, err)
	}
}

func TestLoadAccountsResolvesCashAccount(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "accounts.json", `[
		{"id":1,"name":"Wallet","valutaCode":"USD","isCash":true},
		{"id":2,"name":"Checking","valutaCode":"USD","isCash":false}
	]`)

	accounts, err := LoadAccounts(root)
	if err != nil {
		t.Fatalf("LoadAccounts: %v", err)
	}

	checking, err := accounts.Get(2)
	if err != nil {
		t.Fatalf("Get(2): %v", err)
	}
	if checking.CashAccount == nil || *checking.CashAccount != 1 {
		t.Fatalf("Checking.CashAccount = %v, want *1", checking.CashAccount)
	}

	wallet, err := accounts.Get(1)
	if err != nil {
		t.Fatalf("Get(1): %v", err)
	}
	if wallet.CashAccount != nil {
		t.Fatalf("Wallet.CashAccount = %v, want nil", wallet.CashAccount)
	}
}

func TestLoadAccountsMissingCashAccountFails(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "accounts.json", `[
		{"id":1,"name":"Checking","valutaCode":"EUR","isCash":false}
	]`)

	if _, err := LoadAccounts(root); err == nil {
		t.Fatalf("LoadAccounts: expected error when no cash account exists for currency")
	}
}

func TestAccountsGetMissingID(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "accounts.json", `[{"id":1,"name":"Wallet","valutaCode":"USD","isCash":true}]`)

	accounts, err := LoadAccounts(root)
	if err != nil {
		t.Fatalf("LoadAccounts: %v", err)
	}
	if _, err := accounts.Get(99); err == nil {
		t.Fatalf("Get(99): expected error for unknown account id")
	}
}

func TestLoadCategories(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "categories.json", `[{"id":1,"name":"Groceries"}]`)

	categories, err := LoadCategories(root)
	if err != nil {
		t.Fatalf("LoadCategories: %v", err)
	}
	cat, err := categories.Get(1)
	if err != nil {
		t.Fatalf("Get(1): %v", err)
	}
	if cat.Name != "Groceries" {
		t.Fatalf("cat.Name = %q, want Groceries", cat.Name)
	}
	if _, err := categories.Get(2); err == nil {
		t.Fatalf("Get(2): expected error for unknown category id")
	}
}

func TestLoadSubcategories(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "subcategories.json", `[
		{"id":1,"name":"Salary","code":"","operationCodeId":"INCM","categoryId":1}
	]`)

	subcategories, err := LoadSubcategories(root)
	if err != nil {
		t.Fatalf("LoadSubcategories: %v", err)
	}
	sub, err := subcategories.Get(1)
	if err != nil {
		t.Fatalf("Get(1): %v", err)
	}
	if sub.OperationCode != types.OpIncome {
		t.Fatalf("sub.OperationCode = %v, want OpIncome", sub.OperationCode)
	}
	if _, err := subcategories.Get(2); err == nil {
		t.Fatalf("Get(2): expected error for unknown subcategory id")
	}
}

func TestLoadAccountsMissingFile(t *testing.T) {
	if _, err := LoadAccounts(t.TempDir()); err == nil {
		t.Fatalf("LoadAccounts: expected error for missing file")
	}
}
