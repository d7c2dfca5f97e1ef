// Package ledger interprets operations against account balances
// (OperationSemantics) and sweeps buckets forward to keep every bucket's
// opening totals current (LedgerEngine).
package ledger

import (
	"github.com/cuemby/homeledger/pkg/errs"
	"github.com/cuemby/homeledger/pkg/refdata"
	"github.com/cuemby/homeledger/pkg/types"
)

// Apply interprets one operation against changes, branching on its
// subcategory's operation code and, for SPCL subcategories, its code.
func Apply(op types.Operation, changes *types.FinanceChanges, accounts *refdata.Accounts, subcategories *refdata.Subcategories) error {
	subcategory, err := subcategories.Get(op.Subcategory)
	if err != nil {
		return err
	}

	switch subcategory.OperationCode {
	case types.OpIncome:
		changes.HandleIncome(op.Account, op.Summa)
		return nil
	case types.OpExpenditure:
		changes.HandleExpenditure(op.Account, op.Summa)
		return nil
	case types.OpSpecial:
		return applySpecial(op, subcategory.Code, changes, accounts)
	default:
		return errs.New(errs.InvalidData, "invalid subcategory operation code")
	}
}

func applySpecial(op types.Operation, code types.SubcategoryCode, changes *types.FinanceChanges, accounts *refdata.Accounts) error {
	switch code {
	case types.CodeIncc:
		return handleIncc(op, changes, accounts)
	case types.CodeExpc:
		return handleExpc(op, changes, accounts)
	case types.CodeExch:
		return handleExch(op, changes)
	case types.CodeTrfr:
		return handleTrfr(op, changes)
	default:
		return errs.New(errs.InvalidData, "invalid subcategory code")
	}
}

// handleIncc is cash deposited into a card account: income on the card,
// expenditure on the cash account backing its currency.
func handleIncc(op types.Operation, changes *types.FinanceChanges, accounts *refdata.Accounts) error {
	changes.HandleIncome(op.Account, op.Summa)
	cashAccount, err := accounts.CashAccount(op.Account)
	if err != nil {
		return err
	}
	if cashAccount != nil {
		changes.HandleExpenditure(*cashAccount, op.Summa)
	}
	return nil
}

// handleExpc is cash withdrawn from a card account at an ATM.
func handleExpc(op types.Operation, changes *types.FinanceChanges, accounts *refdata.Accounts) error {
	changes.HandleExpenditure(op.Account, op.Summa)
	cashAccount, err := accounts.CashAccount(op.Account)
	if err != nil {
		return err
	}
	if cashAccount != nil {
		changes.HandleIncome(*cashAccount, op.Summa)
	}
	return nil
}

// handleExch is a currency exchange: Amount (thousandths of the source
// account's currency) divided by 10 is debited from the source account;
// the destination, if any, is credited with Summa.
func handleExch(op types.Operation, changes *types.FinanceChanges) error {
	if op.Amount == nil {
		return nil
	}
	return handleTrfrWithSumma(op, changes, int64(*op.Amount)/10)
}

// handleTrfr is a transfer between cards, moving Summa.
func handleTrfr(op types.Operation, changes *types.FinanceChanges) error {
	return handleTrfrWithSumma(op, changes, op.Summa)
}

// handleTrfrWithSumma debits the source account by summa. If the
// operation carries exactly one SECA parameter, the destination account
// is credited with the operation's own Summa, not the (possibly scaled)
// summa just debited.
func handleTrfrWithSumma(op types.Operation, changes *types.FinanceChanges, summa int64) error {
	changes.HandleExpenditure(op.Account, summa)
	if len(op.Parameters) == 1 {
		if second, ok := op.Parameters[0].SecondAccount(); ok {
			changes.HandleIncome(second, op.Summa)
		}
	}
	return nil
}
