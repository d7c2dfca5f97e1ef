// Package refdata loads and indexes the static reference data an
// operation is interpreted against: accounts, categories, subcategories.
package refdata

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cuemby/homeledger/pkg/errs"
	"github.com/cuemby/homeledger/pkg/types"
)

// Accounts indexes every Account by id and resolves each cash-bearing
// account to its currency's canonical cash account.
type Accounts struct {
	byID map[types.AccountID]types.Account
}

// LoadAccounts reads <root>/accounts.json and resolves cash accounts.
func LoadAccounts(root string) (*Accounts, error) {
	var accounts []types.Account
	if err := loadJSONArray(filepath.Join(root, "accounts.json"), &accounts); err != nil {
		return nil, err
	}

	cashByCurrency := make(map[string]types.AccountID)
	for _, a := range accounts {
		if a.CashAccount == nil {
			cashByCurrency[a.Currency] = a.ID
		}
	}

	byID := make(map[types.AccountID]types.Account, len(accounts))
	for _, a := range accounts {
		if a.CashAccount != nil {
			resolved, ok := cashByCurrency[a.Currency]
			if !ok {
				return nil, errs.New(errs.InvalidData, "no cash account found for currency "+a.Currency)
			}
			a.CashAccount = &resolved
		}
		byID[a.ID] = a
	}

	return &Accounts{byID: byID}, nil
}

// Get returns the account with id, or InvalidData on miss.
func (a *Accounts) Get(id types.AccountID) (types.Account, error) {
	acc, ok := a.byID[id]
	if !ok {
		return types.Account{}, errs.New(errs.InvalidData, "invalid account id")
	}
	return acc, nil
}

// CashAccount returns account's resolved cash account: nil if the
// account is itself a cash account, or the canonical cash account id for
// its currency otherwise.
func (a *Accounts) CashAccount(id types.AccountID) (*types.AccountID, error) {
	acc, err := a.Get(id)
	if err != nil {
		return nil, err
	}
	return acc.CashAccount, nil
}

// Categories indexes every Category by id.
type Categories struct {
	byID map[types.CategoryID]types.Category
}

// LoadCategories reads <root>/categories.json.
func LoadCategories(root string) (*Categories, error) {
	var categories []types.Category
	if err := loadJSONArray(filepath.Join(root, "categories.json"), &categories); err != nil {
		return nil, err
	}
	byID := make(map[types.CategoryID]types.Category, len(categories))
	for _, c := range categories {
		byID[c.ID] = c
	}
	return &Categories{byID: byID}, nil
}

// Get returns the category with id, or InvalidData on miss.
func (c *Categories) Get(id types.CategoryID) (types.Category, error) {
	cat, ok := c.byID[id]
	if !ok {
		return types.Category{}, errs.New(errs.InvalidData, "invalid category id")
	}
	return cat, nil
}

// Subcategories indexes every Subcategory by id.
type Subcategories struct {
	byID map[types.SubcategoryID]types.Subcategory
}

// LoadSubcategories reads <root>/subcategories.json.
func LoadSubcategories(root string) (*Subcategories, error) {
	var subcategories []types.Subcategory
	if err := loadJSONArray(filepath.Join(root, "subcategories.json"), &subcategories); err != nil {
		return nil, err
	}
	byID := make(map[types.SubcategoryID]types.Subcategory, len(subcategories))
	for _, s := range subcategories {
		byID[s.ID] = s
	}
	return &Subcategories{byID: byID}, nil
}

// Get returns the subcategory with id, or InvalidData on miss.
func (s *Subcategories) Get(id types.SubcategoryID) (types.Subcategory, error) {
	sub, ok := s.byID[id]
	if !ok {
		return types.Subcategory{}, errs.New(errs.InvalidData, "invalid subcategory id")
	}
	return sub, nil
}

func loadJSONArray(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errs.Wrap(errs.IO, fmt.Sprintf("read %s", path), err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errs.Wrap(errs.InvalidData, fmt.Sprintf("decode %s", path), err)
	}
	return nil
}
