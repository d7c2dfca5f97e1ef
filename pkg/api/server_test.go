package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/cuemby/homeledger/pkg/ledgerdb"
	"github.com/cuemby/homeledger/pkg/storage"
	"github.com/cuemby/homeledger/pkg/types"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	root := t.TempDir()

	writeFile := func(name, contents string) {
		if err := os.WriteFile(filepath.Join(root, name), []byte(contents), 0o600); err != nil {
			t.Fatalf("WriteFile(%s): %v", name, err)
		}
	}
	writeFile("accounts.json", `[{"id":1,"name":"Checking","valutaCode":"USD","isCash":true}]`)
	writeFile("categories.json", `[{"id":1,"name":"General"}]`)
	writeFile("subcategories.json", `[{"id":1,"name":"Salary","code":"","operationCodeId":"INCM","categoryId":1}]`)

	l, err := ledgerdb.Open(root, storage.NewJSONSource(), 500)
	if err != nil {
		t.Fatalf("ledgerdb.Open: %v", err)
	}
	if err := l.InsertOperation(types.Operation{Date: 20260115, Account: 1, Subcategory: 1, Summa: 5000}); err != nil {
		t.Fatalf("InsertOperation: %v", err)
	}

	return New(l)
}

func TestHealthzReturnsOK(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestTotalsReturnsAccountBalances(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/totals?date=20260115", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", rec.Code, rec.Body.String())
	}

	var out map[string]accountBalance
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out["1"].Income != 5000 || out["1"].End != 5000 {
		t.Fatalf("totals = %+v, want income/end 5000", out["1"])
	}
}

func TestTotalsMissingDateParamIsBadRequest(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/totals", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestOpsReturnsOperationsForDate(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/ops?date=20260115", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", rec.Code, rec.Body.String())
	}

	var ops []types.Operation
	if err := json.Unmarshal(rec.Body.Bytes(), &ops); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(ops) != 1 || ops[0].Summa != 5000 {
		t.Fatalf("ops = %+v, want one operation with summa 5000", ops)
	}
}

func TestOpsEmptyDateReturnsEmptyArray(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/ops?date=20250101", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var ops []types.Operation
	if err := json.Unmarshal(rec.Body.Bytes(), &ops); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(ops) != 0 {
		t.Fatalf("ops = %+v, want empty", ops)
	}
}
