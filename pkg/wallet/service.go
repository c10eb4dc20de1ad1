package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Service contains the domain logic over a Store.
//
// Credit and Debit serialize concurrent mutations on the same account by
// locking the account row for the duration of the read-modify-write: the
// balance check, the balance update, and the entry insert happen in one
// atomic unit. Balances therefore never go negative and never lose updates.
type Service struct {
	store  Store
	nowFn  func() time.Time
	logger OperationLogger
}

// NewService wires a Service.
func NewService(store Store, now func() time.Time, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	service := &Service{store: store, nowFn: now}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	return service, nil
}

// Credit appends a credit entry and raises the account balance.
func (service *Service) Credit(ctx context.Context, accountID AccountID, amount Amount, description string, reference Reference, metadata MetadataJSON) (Entry, error) {
	var entry Entry
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		var err error
		entry, err = service.apply(ctx, transactionStore, accountID, EntryCredit, amount, description, reference, metadata)
		return err
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationCredit,
		AccountID: accountID,
		Amount:    amount,
		Reference: reference,
		Metadata:  metadata,
		Error:     operationError,
	})
	return entry, operationError
}

// Debit appends a debit entry and lowers the account balance. It fails with
// ErrInsufficientBalance when the balance cannot cover the amount; the check
// runs under the same row lock as the mutation.
func (service *Service) Debit(ctx context.Context, accountID AccountID, amount Amount, description string, reference Reference, metadata MetadataJSON) (Entry, error) {
	var entry Entry
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		var err error
		entry, err = service.apply(ctx, transactionStore, accountID, EntryDebit, amount, description, reference, metadata)
		return err
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationDebit,
		AccountID: accountID,
		Amount:    amount,
		Reference: reference,
		Metadata:  metadata,
		Error:     operationError,
	})
	return entry, operationError
}

// CreditTx performs a credit inside the caller's transaction store.
func (service *Service) CreditTx(ctx context.Context, transactionStore Store, accountID AccountID, amount Amount, description string, reference Reference, metadata MetadataJSON) (Entry, error) {
	return service.apply(ctx, transactionStore, accountID, EntryCredit, amount, description, reference, metadata)
}

// DebitTx performs a debit inside the caller's transaction store. The caller
// owns the transactional boundary; everything the debit writes commits or
// rolls back with it.
func (service *Service) DebitTx(ctx context.Context, transactionStore Store, accountID AccountID, amount Amount, description string, reference Reference, metadata MetadataJSON) (Entry, error) {
	return service.apply(ctx, transactionStore, accountID, EntryDebit, amount, description, reference, metadata)
}

// CreditOnce credits the account unless an entry with the reference already
// exists, in which case the existing entry is returned with created=false.
// This is the idempotency contract for payment-provider callbacks: replaying
// the same confirmation produces exactly one entry and one balance increment.
func (service *Service) CreditOnce(ctx context.Context, accountID AccountID, amount Amount, description string, reference Reference, metadata MetadataJSON) (Entry, bool, error) {
	if reference.IsZero() {
		return Entry{}, false, WrapError(operationCreditOnce, subjectReference, codeMissing, ErrInvalidReference)
	}
	var entry Entry
	created := false
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		existing, found, err := transactionStore.EntryByReference(ctx, reference)
		if err != nil {
			return err
		}
		if found {
			entry = existing
			return nil
		}
		entry, err = service.apply(ctx, transactionStore, accountID, EntryCredit, amount, description, reference, metadata)
		if err != nil {
			return err
		}
		created = true
		return nil
	})
	if operationError != nil && errors.Is(operationError, ErrDuplicateReference) {
		// A concurrent replay inserted the same reference between the lookup
		// and the insert. The failed transaction is aborted at this point, so
		// the winning entry is only visible on a fresh read outside it.
		existing, found, lookupErr := service.store.EntryByReference(ctx, reference)
		if lookupErr == nil && found {
			entry = existing
			operationError = nil
		}
	}
	status := ""
	if operationError == nil && !created {
		status = operationStatusSkipped
	}
	service.logOperation(ctx, OperationLog{
		Operation: operationCreditOnce,
		AccountID: accountID,
		Amount:    amount,
		Reference: reference,
		Metadata:  metadata,
		Status:    status,
		Error:     operationError,
	})
	return entry, created, operationError
}

// Balance returns the account's current balance.
func (service *Service) Balance(ctx context.Context, accountID AccountID) (Amount, error) {
	account, err := service.store.AccountByID(ctx, accountID)
	if err != nil {
		return Amount{}, err
	}
	return account.Balance, nil
}

// Account returns the full account record.
func (service *Service) Account(ctx context.Context, accountID AccountID) (Account, error) {
	return service.store.AccountByID(ctx, accountID)
}

// Entries lists the most recent ledger entries for an account.
func (service *Service) Entries(ctx context.Context, accountID AccountID, limit int) ([]Entry, error) {
	return service.store.ListEntries(ctx, accountID, limit)
}

func (service *Service) apply(ctx context.Context, transactionStore Store, accountID AccountID, kind EntryKind, amount Amount, description string, reference Reference, metadata MetadataJSON) (Entry, error) {
	if !amount.IsPositive() {
		return Entry{}, fmt.Errorf("%w: must be greater than zero", ErrInvalidAmount)
	}
	account, err := transactionStore.AccountForUpdate(ctx, accountID)
	if err != nil {
		return Entry{}, err
	}
	var balanceAfter Amount
	switch kind {
	case EntryCredit:
		balanceAfter = account.Balance.Add(amount)
	case EntryDebit:
		if account.Balance.LessThan(amount) {
			return Entry{}, ErrInsufficientBalance
		}
		balanceAfter, err = account.Balance.Sub(amount)
		if err != nil {
			return Entry{}, err
		}
	default:
		return Entry{}, fmt.Errorf("%w: %q", ErrInvalidEntryKind, kind)
	}
	if err := transactionStore.UpdateAccountBalance(ctx, accountID, balanceAfter); err != nil {
		return Entry{}, err
	}
	return transactionStore.InsertEntry(ctx, EntryInput{
		AccountID:    accountID,
		Kind:         kind,
		Amount:       amount,
		BalanceAfter: balanceAfter,
		Description:  description,
		Reference:    reference,
		MetadataJSON: metadata,
		CreatedAt:    service.nowFn().UTC(),
	})
}

func (service *Service) logOperation(ctx context.Context, entry OperationLog) {
	if service.logger == nil {
		return
	}
	if entry.Status == "" {
		if entry.Error != nil {
			entry.Status = operationStatusError
		} else {
			entry.Status = operationStatusOK
		}
	}
	service.logger.LogOperation(ctx, entry)
}

const (
	subjectReference = "reference"
	codeMissing      = "missing"
)
