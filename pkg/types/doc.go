/*
Package types defines the core data structures of the ledger store.

# Core Types

Reference data:
  - Account: a balance sheet line, resolved at load time to its canonical
    cash account.
  - Category, Subcategory: classification used to interpret an Operation.

Bucket contents:
  - Operation: a single ledger entry; Date doubles as its identifier.
  - FinOpParameter: a closed tagged union (AMOU/DIST/PPTO/SECA numeric,
    NETW/TYPE string).
  - Bucket: an ordered sequence of operations plus carried totals.

Sweep state:
  - BalanceChange: one account's (start, income, expenditure) within a
    sweep step.
  - FinanceChanges: the full per-account map for one sweep step.
*/
package types
