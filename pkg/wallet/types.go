package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Amount is a fixed-point monetary value with two decimal places.
// Amounts are never negative; direction is carried by EntryKind.
type Amount struct {
	value decimal.Decimal
}

// AccountID identifies a wallet account.
type AccountID struct {
	value string
}

// Reference scopes duplicate detection for externally-retried operations
// (payment provider session ids, toll references). The zero value means
// no reference.
type Reference struct {
	value string
}

// MetadataJSON stores arbitrary operation metadata.
type MetadataJSON struct {
	value string
}

// EntryKind is the direction of a ledger entry.
type EntryKind string

const (
	EntryCredit EntryKind = "credit"
	EntryDebit  EntryKind = "debit"
)

// AccountRole classifies the account owner.
type AccountRole string

const (
	RoleDriver AccountRole = "driver"
	RoleStaff  AccountRole = "staff"
	RoleAdmin  AccountRole = "admin"
)

// NewAmount validates a non-negative amount and normalizes it to two
// decimal places.
func NewAmount(value decimal.Decimal) (Amount, error) {
	if value.IsNegative() {
		return Amount{}, fmt.Errorf("%w: must not be negative", ErrInvalidAmount)
	}
	return Amount{value: value.Round(2)}, nil
}

// NewAmountFromString parses a decimal string into an Amount.
func NewAmountFromString(raw string) (Amount, error) {
	parsed, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	return NewAmount(parsed)
}

// ZeroAmount returns the zero monetary value.
func ZeroAmount() Amount {
	return Amount{value: decimal.Zero}
}

// Decimal returns the underlying decimal value.
func (amount Amount) Decimal() decimal.Decimal {
	return amount.value
}

// Add returns the sum of two amounts.
func (amount Amount) Add(other Amount) Amount {
	return Amount{value: amount.value.Add(other.value)}
}

// Sub returns amount minus other and fails when the result would be negative.
func (amount Amount) Sub(other Amount) (Amount, error) {
	result := amount.value.Sub(other.value)
	if result.IsNegative() {
		return Amount{}, fmt.Errorf("%w: negative result", ErrInvalidAmount)
	}
	return Amount{value: result}, nil
}

// LessThan reports whether amount is strictly below other.
func (amount Amount) LessThan(other Amount) bool {
	return amount.value.LessThan(other.value)
}

// Equal reports value equality.
func (amount Amount) Equal(other Amount) bool {
	return amount.value.Equal(other.value)
}

// IsPositive reports whether the amount is strictly greater than zero.
func (amount Amount) IsPositive() bool {
	return amount.value.IsPositive()
}

// IsZero reports whether the amount is exactly zero.
func (amount Amount) IsZero() bool {
	return amount.value.IsZero()
}

// String renders the amount with two decimal places.
func (amount Amount) String() string {
	return amount.value.StringFixed(2)
}

// NewAccountID validates and normalizes an account id.
func NewAccountID(raw string) (AccountID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return AccountID{}, fmt.Errorf("%w: empty value", ErrInvalidAccountID)
	}
	return AccountID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id AccountID) String() string {
	return id.value
}

// NewReference validates and normalizes a reference.
func NewReference(raw string) (Reference, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Reference{}, fmt.Errorf("%w: empty value", ErrInvalidReference)
	}
	return Reference{value: trimmed}, nil
}

// NoReference returns the empty reference.
func NoReference() Reference {
	return Reference{}
}

// IsZero reports whether no reference was supplied.
func (reference Reference) IsZero() bool {
	return reference.value == ""
}

// String returns the normalized reference.
func (reference Reference) String() string {
	return reference.value
}

// NewMetadataJSON validates metadata (defaulting to "{}" for empty inputs).
func NewMetadataJSON(raw string) (MetadataJSON, error) {
	normalized := strings.TrimSpace(raw)
	if normalized == "" {
		normalized = "{}"
	}
	if !json.Valid([]byte(normalized)) {
		return MetadataJSON{}, fmt.Errorf("%w: must be valid json", ErrInvalidMetadataJSON)
	}
	return MetadataJSON{value: normalized}, nil
}

// String returns the normalized JSON blob.
func (metadata MetadataJSON) String() string {
	return metadata.value
}

// ParseEntryKind validates a stored entry kind.
func ParseEntryKind(raw string) (EntryKind, error) {
	switch EntryKind(raw) {
	case EntryCredit, EntryDebit:
		return EntryKind(raw), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidEntryKind, raw)
}

// String returns the kind as stored.
func (kind EntryKind) String() string {
	return string(kind)
}

// Account is a user's wallet balance plus the identity used for toll
// eligibility. Accounts are deactivated, never deleted.
type Account struct {
	ID            string
	OwnerName     string
	LicenseNumber string
	Role          AccountRole
	Balance       Amount
	Active        bool
}

// Entry is a single immutable line in the ledger. BalanceAfter snapshots
// the account balance at insert time so history replay can be audited.
type Entry struct {
	ID           string
	AccountID    string
	Kind         EntryKind
	Amount       Amount
	BalanceAfter Amount
	Description  string
	Reference    Reference
	MetadataJSON MetadataJSON
	CreatedAt    time.Time
}

// SignedAmount returns the entry amount with its direction applied.
func (entry Entry) SignedAmount() decimal.Decimal {
	if entry.Kind == EntryDebit {
		return entry.Amount.Decimal().Neg()
	}
	return entry.Amount.Decimal()
}

// EntryInput carries the fields the Service supplies when appending an entry.
type EntryInput struct {
	AccountID    AccountID
	Kind         EntryKind
	Amount       Amount
	BalanceAfter Amount
	Description  string
	Reference    Reference
	MetadataJSON MetadataJSON
	CreatedAt    time.Time
}

// Store is the persistence contract used by Service. All mutating calls are
// expected to run inside WithTx; AccountForUpdate must hold a row lock for
// the remainder of the transaction.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error
	AccountByID(ctx context.Context, accountID AccountID) (Account, error)
	AccountForUpdate(ctx context.Context, accountID AccountID) (Account, error)
	UpdateAccountBalance(ctx context.Context, accountID AccountID, balance Amount) error
	InsertEntry(ctx context.Context, input EntryInput) (Entry, error)
	EntryByReference(ctx context.Context, reference Reference) (Entry, bool, error)
	ListEntries(ctx context.Context, accountID AccountID, limit int) ([]Entry, error)
}
