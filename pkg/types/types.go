package types

import (
	"encoding/json"
	"fmt"

	"github.com/cuemby/homeledger/pkg/errs"
)

// KeyDate is a calendar date encoded as an integer (YYYYMMDD).
type KeyDate int64

// BucketKey is the result of applying the index function to a KeyDate.
// Bucket keys are sparse: the default index function is date/100, which
// groups daily operations into monthly buckets.
type BucketKey int64

// IndexFunc maps a date to its bucket key. It must be monotonic
// non-decreasing in date. A negative result marks an invalid date.
type IndexFunc func(KeyDate) BucketKey

// MonthIndex is the default IndexFunc: YYYYMMDD -> YYYYMM.
func MonthIndex(d KeyDate) BucketKey {
	return BucketKey(d / 100)
}

// AccountID identifies an Account.
type AccountID uint64

// CategoryID identifies a Category.
type CategoryID uint64

// SubcategoryID identifies a Subcategory.
type SubcategoryID uint64

// Account is a named balance sheet line, denominated in one currency.
type Account struct {
	ID         AccountID
	Name       string
	Currency   string
	ActiveTo   *KeyDate
	CashAccount *AccountID // nil means this account is itself a cash account
}

// UnmarshalJSON decodes an Account from its on-disk JSON shape, resolving
// the isCash flag into the two-state CashAccount representation used by
// refdata.LoadAccounts.
func (a *Account) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID         AccountID `json:"id"`
		Name       string    `json:"name"`
		Currency   string    `json:"valutaCode"`
		ActiveTo   dateArray `json:"activeTo"`
		IsCash     bool      `json:"isCash"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return errs.Wrap(errs.InvalidData, "decode account", err)
	}
	a.ID = raw.ID
	a.Name = raw.Name
	a.Currency = raw.Currency
	a.ActiveTo = raw.ActiveTo.date
	if raw.IsCash {
		a.CashAccount = nil
	} else {
		placeholder := AccountID(0)
		a.CashAccount = &placeholder
	}
	return nil
}

// Category groups subcategories for reporting purposes.
type Category struct {
	ID   CategoryID `json:"id"`
	Name string     `json:"name"`
}

// SubcategoryOperationCode selects which branch of OperationSemantics
// applies to an operation referencing this subcategory.
type SubcategoryOperationCode string

const (
	OpIncome      SubcategoryOperationCode = "INCM"
	OpExpenditure SubcategoryOperationCode = "EXPN"
	OpSpecial     SubcategoryOperationCode = "SPCL"
)

// SubcategoryCode further disambiguates a SPCL operation.
type SubcategoryCode string

const (
	CodeComb  SubcategoryCode = "COMB"
	CodeComc  SubcategoryCode = "COMC"
	CodeFuel  SubcategoryCode = "FUEL"
	CodePrcn  SubcategoryCode = "PRCN"
	CodeIncc  SubcategoryCode = "INCC"
	CodeExpc  SubcategoryCode = "EXPC"
	CodeExch  SubcategoryCode = "EXCH"
	CodeTrfr  SubcategoryCode = "TRFR"
	CodeNone  SubcategoryCode = ""
)

// Subcategory classifies an Operation and drives OperationSemantics.
type Subcategory struct {
	ID            SubcategoryID
	Name          string
	Code          SubcategoryCode
	OperationCode SubcategoryOperationCode
	Category      CategoryID
}

// UnmarshalJSON decodes a Subcategory, validating code and operationCodeId
// against the closed sets above.
func (s *Subcategory) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID            SubcategoryID `json:"id"`
		Name          string        `json:"name"`
		Code          *string       `json:"code"`
		OperationCode string        `json:"operationCodeId"`
		Category      CategoryID    `json:"categoryId"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return errs.Wrap(errs.InvalidData, "decode subcategory", err)
	}
	code := CodeNone
	if raw.Code != nil {
		switch SubcategoryCode(*raw.Code) {
		case CodeNone, CodeComb, CodeComc, CodeFuel, CodePrcn, CodeIncc, CodeExpc, CodeExch, CodeTrfr:
			code = SubcategoryCode(*raw.Code)
		default:
			return errs.New(errs.InvalidData, fmt.Sprintf("invalid subcategory code %q", *raw.Code))
		}
	}
	switch SubcategoryOperationCode(raw.OperationCode) {
	case OpIncome, OpExpenditure, OpSpecial:
	default:
		return errs.New(errs.InvalidData, fmt.Sprintf("invalid subcategory operation code %q", raw.OperationCode))
	}
	s.ID = raw.ID
	s.Name = raw.Name
	s.Code = code
	s.OperationCode = SubcategoryOperationCode(raw.OperationCode)
	s.Category = raw.Category
	return nil
}

// ParamCode identifies the kind of value carried by a FinOpParameter.
type ParamCode string

const (
	ParamAmount     ParamCode = "AMOU"
	ParamDistance   ParamCode = "DIST"
	ParamPrepayment ParamCode = "PPTO"
	ParamSecondAcct ParamCode = "SECA"
	ParamNetwork    ParamCode = "NETW"
	ParamType       ParamCode = "TYPE"
)

// FinOpParameter is a closed tagged union: AMOU/DIST/PPTO/SECA carry a
// numeric value, NETW/TYPE carry a string value. Exactly one field is
// meaningful, selected by Code.
type FinOpParameter struct {
	Code    ParamCode
	Numeric uint64
	Text    string
}

// SecondAccount returns the referenced account for a SECA parameter and
// whether this parameter is in fact a SECA parameter.
func (p FinOpParameter) SecondAccount() (AccountID, bool) {
	if p.Code != ParamSecondAcct {
		return 0, false
	}
	return AccountID(p.Numeric), true
}

type finOpParameterJSON struct {
	Code         string  `json:"propertyCode"`
	NumericValue *uint64 `json:"numericValue"`
	StringValue  *string `json:"stringValue"`
}

func decodeParameter(raw finOpParameterJSON) (FinOpParameter, error) {
	switch ParamCode(raw.Code) {
	case ParamAmount, ParamDistance, ParamPrepayment, ParamSecondAcct:
		if raw.NumericValue == nil {
			return FinOpParameter{}, errs.New(errs.InvalidData, fmt.Sprintf("%s: numeric value expected", raw.Code))
		}
		return FinOpParameter{Code: ParamCode(raw.Code), Numeric: *raw.NumericValue}, nil
	case ParamNetwork, ParamType:
		if raw.StringValue == nil {
			return FinOpParameter{}, errs.New(errs.InvalidData, fmt.Sprintf("%s: string value expected", raw.Code))
		}
		return FinOpParameter{Code: ParamCode(raw.Code), Text: *raw.StringValue}, nil
	default:
		return FinOpParameter{}, errs.New(errs.InvalidData, fmt.Sprintf("invalid finOpParameter code %q", raw.Code))
	}
}

func encodeParameter(p FinOpParameter) finOpParameterJSON {
	switch p.Code {
	case ParamAmount, ParamDistance, ParamPrepayment, ParamSecondAcct:
		v := p.Numeric
		return finOpParameterJSON{Code: string(p.Code), NumericValue: &v}
	default:
		v := p.Text
		return finOpParameterJSON{Code: string(p.Code), StringValue: &v}
	}
}

// Operation is a single ledger entry. Date doubles as the record's
// identifier: the on-disk "id"/"Id" field is interpreted as the date the
// operation belongs to, per the loader's own convention.
type Operation struct {
	Date        KeyDate
	Account     AccountID
	Subcategory SubcategoryID
	Amount      *uint64 // thousandths of a unit; nil when absent
	Summa       int64   // hundredths of currency
	Parameters  []FinOpParameter
}

// Within reports whether the operation's date falls in [from, to].
func (op Operation) Within(from, to KeyDate) bool {
	return op.Date >= from && op.Date <= to
}

// Copy returns a value copy of op, including its Parameters slice.
func (op Operation) Copy() Operation {
	out := op
	if op.Parameters != nil {
		out.Parameters = append([]FinOpParameter(nil), op.Parameters...)
	}
	return out
}

// UnmarshalJSON decodes an Operation, applying the summa/amount unit
// conversions and the id-as-date alias.
func (op *Operation) UnmarshalJSON(data []byte) error {
	var raw struct {
		Date        *KeyDate          `json:"date"`
		ID          *KeyDate          `json:"id"`
		IDCap       *KeyDate          `json:"Id"`
		Account     AccountID         `json:"accountId"`
		Subcategory SubcategoryID     `json:"subcategoryId"`
		Amount      json.RawMessage   `json:"amount"`
		Summa       json.RawMessage   `json:"summa"`
		Parameters  []finOpParameterJSON `json:"finOpProperies"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return errs.Wrap(errs.InvalidData, "decode operation", err)
	}

	switch {
	case raw.Date != nil:
		op.Date = *raw.Date
	case raw.ID != nil:
		op.Date = *raw.ID
	case raw.IDCap != nil:
		op.Date = *raw.IDCap
	default:
		return errs.New(errs.InvalidData, "operation missing date/id")
	}
	op.Account = raw.Account
	op.Subcategory = raw.Subcategory

	summa, err := decodeSumma(raw.Summa)
	if err != nil {
		return err
	}
	op.Summa = summa

	amount, err := decodeAmount(raw.Amount)
	if err != nil {
		return err
	}
	op.Amount = amount

	op.Parameters = nil
	for _, p := range raw.Parameters {
		decoded, err := decodeParameter(p)
		if err != nil {
			return err
		}
		op.Parameters = append(op.Parameters, decoded)
	}
	return nil
}

type operationJSON struct {
	Date        KeyDate              `json:"date"`
	Account     AccountID            `json:"accountId"`
	Subcategory SubcategoryID        `json:"subcategoryId"`
	Amount      *uint64              `json:"amount"`
	Summa       int64                `json:"summa"`
	Parameters  []finOpParameterJSON `json:"finOpProperies"`
}

// MarshalJSON encodes an Operation back into the same schema UnmarshalJSON
// reads, so a save/reload round trip is lossless.
func (op Operation) MarshalJSON() ([]byte, error) {
	params := make([]finOpParameterJSON, 0, len(op.Parameters))
	for _, p := range op.Parameters {
		params = append(params, encodeParameter(p))
	}
	return json.Marshal(operationJSON{
		Date:        op.Date,
		Account:     op.Account,
		Subcategory: op.Subcategory,
		Amount:      op.Amount,
		Summa:       op.Summa,
		Parameters:  params,
	})
}

// decodeSumma applies the original's "float means hundredths, rounded;
// integer means verbatim" rule to the summa field.
func decodeSumma(raw json.RawMessage) (int64, error) {
	if len(raw) == 0 {
		return 0, errs.New(errs.InvalidData, "operation missing summa")
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		if isWholeJSONNumber(raw) {
			return int64(f), nil
		}
		return roundToInt64(f * 100.0), nil
	}
	return 0, errs.New(errs.InvalidData, "summa: a float or integer expected")
}

// decodeAmount applies the same rule at thousandths, with null meaning
// absent.
func decodeAmount(raw json.RawMessage) (*uint64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		if isWholeJSONNumber(raw) {
			v := uint64(f)
			return &v, nil
		}
		v := uint64(roundToInt64(f * 1000.0))
		return &v, nil
	}
	return nil, errs.New(errs.InvalidData, "amount: a float, integer, or null expected")
}

func isWholeJSONNumber(raw json.RawMessage) bool {
	for _, b := range raw {
		if b == '.' || b == 'e' || b == 'E' {
			return false
		}
	}
	return true
}

func roundToInt64(f float64) int64 {
	if f >= 0 {
		return int64(f + 0.5)
	}
	return -int64(-f + 0.5)
}

// dateArray decodes the on-disk [year, month, day] array shape into a
// KeyDate, per the store's date encoding convention.
type dateArray struct {
	date *KeyDate
}

func (d *dateArray) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		d.date = nil
		return nil
	}
	var parts []int64
	if err := json.Unmarshal(data, &parts); err != nil {
		return errs.Wrap(errs.InvalidData, "decode date array", err)
	}
	if len(parts) != 3 {
		return errs.New(errs.InvalidData, "date array must have exactly 3 elements")
	}
	v := KeyDate(parts[0]*10000 + parts[1]*100 + parts[2])
	d.date = &v
	return nil
}

// Bucket is the unit of storage: an ordered (by insertion, which follows
// date order on load) sequence of operations plus the per-account closing
// balances carried over from the previous bucket.
type Bucket struct {
	Operations []Operation
	Totals     map[AccountID]int64
}

// NewBucket returns an empty bucket ready to receive operations.
func NewBucket() *Bucket {
	return &Bucket{Totals: make(map[AccountID]int64)}
}

// OpsForDate returns copies of every operation dated exactly date.
func (b *Bucket) OpsForDate(date KeyDate) []Operation {
	var out []Operation
	for _, op := range b.Operations {
		if op.Date == date {
			out = append(out, op.Copy())
		}
	}
	return out
}

// BalanceChange tracks one account's running balance within a sweep.
type BalanceChange struct {
	StartBalance int64
	Income       int64
	Expenditure  int64
}

// EndBalance is the closing balance after all income and expenditure.
func (c BalanceChange) EndBalance() int64 {
	return c.StartBalance + c.Income - c.Expenditure
}

// FinanceChanges accumulates BalanceChange per account across one sweep
// step (the application of every operation in a bucket, or a date-bounded
// subset of them).
type FinanceChanges struct {
	changes map[AccountID]*BalanceChange
}

// NewFinanceChanges seeds one BalanceChange per account in totals.
func NewFinanceChanges(totals map[AccountID]int64) *FinanceChanges {
	changes := make(map[AccountID]*BalanceChange, len(totals))
	for account, start := range totals {
		changes[account] = &BalanceChange{StartBalance: start}
	}
	return &FinanceChanges{changes: changes}
}

// EmptyFinanceChanges returns a FinanceChanges with no seeded accounts.
func EmptyFinanceChanges() *FinanceChanges {
	return &FinanceChanges{changes: make(map[AccountID]*BalanceChange)}
}

// Get returns the BalanceChange for account, or a zero BalanceChange and
// false if never touched by NewFinanceChanges or HandleIncome/HandleExpenditure.
func (f *FinanceChanges) Get(account AccountID) (BalanceChange, bool) {
	c, ok := f.changes[account]
	if !ok {
		return BalanceChange{}, false
	}
	return *c, true
}

// All returns every tracked account's BalanceChange, keyed by account id.
func (f *FinanceChanges) All() map[AccountID]BalanceChange {
	out := make(map[AccountID]BalanceChange, len(f.changes))
	for account, c := range f.changes {
		out[account] = *c
	}
	return out
}

// BuildTotals collapses every tracked BalanceChange to its closing
// balance, ready to seed the next bucket's FinanceChanges.
func (f *FinanceChanges) BuildTotals() map[AccountID]int64 {
	out := make(map[AccountID]int64, len(f.changes))
	for account, c := range f.changes {
		out[account] = c.EndBalance()
	}
	return out
}

func (f *FinanceChanges) accountChanges(account AccountID) *BalanceChange {
	c, ok := f.changes[account]
	if !ok {
		c = &BalanceChange{}
		f.changes[account] = c
	}
	return c
}

// HandleIncome adds summa to account's income.
func (f *FinanceChanges) HandleIncome(account AccountID, summa int64) {
	f.accountChanges(account).Income += summa
}

// HandleExpenditure adds summa to account's expenditure.
func (f *FinanceChanges) HandleExpenditure(account AccountID, summa int64) {
	f.accountChanges(account).Expenditure += summa
}
