package gormstore

import (
	"context"
	"errors"

	"github.com/openroads/tollgate/pkg/wallet"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WalletStore implements wallet.Store.
type WalletStore struct {
	db *gorm.DB
}

// WithTx executes fn within a transaction.
func (store *WalletStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore wallet.Store) error) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &WalletStore{db: transaction})
	})
}

func (store *WalletStore) AccountByID(ctx context.Context, accountID wallet.AccountID) (wallet.Account, error) {
	return store.account(ctx, accountID, false)
}

// AccountForUpdate reads the account under a row lock held until the
// surrounding transaction ends. SQLite has no FOR UPDATE; its single
// writer serializes the mutation instead.
func (store *WalletStore) AccountForUpdate(ctx context.Context, accountID wallet.AccountID) (wallet.Account, error) {
	return store.account(ctx, accountID, true)
}

func (store *WalletStore) account(ctx context.Context, accountID wallet.AccountID, forUpdate bool) (wallet.Account, error) {
	query := store.db.WithContext(ctx)
	if forUpdate && store.db.Dialector.Name() == dialectorPostgres {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var model Account
	err := query.Where("id = ?", accountID.String()).Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return wallet.Account{}, wrapStoreError(errorSubjectAccount, errorCodeGet, wallet.ErrUnknownAccount)
		}
		return wallet.Account{}, wrapStoreError(errorSubjectAccount, errorCodeGet, err)
	}
	return mapAccount(model)
}

func (store *WalletStore) UpdateAccountBalance(ctx context.Context, accountID wallet.AccountID, balance wallet.Amount) error {
	result := store.db.WithContext(ctx).
		Model(&Account{}).
		Where("id = ?", accountID.String()).
		Update("balance", balance.Decimal())
	if result.Error != nil {
		return wrapStoreError(errorSubjectAccount, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectAccount, errorCodeUpdate, wallet.ErrUnknownAccount)
	}
	return nil
}

func (store *WalletStore) InsertEntry(ctx context.Context, input wallet.EntryInput) (wallet.Entry, error) {
	model := LedgerEntry{
		AccountID:    input.AccountID.String(),
		Kind:         input.Kind.String(),
		Amount:       input.Amount.Decimal(),
		BalanceAfter: input.BalanceAfter.Decimal(),
		Description:  input.Description,
		Reference:    nullableString(input.Reference.String()),
		Metadata:     datatypesJSON(input.MetadataJSON.String()),
		CreatedAt:    input.CreatedAt,
	}
	err := store.db.WithContext(ctx).Create(&model).Error
	if isUniqueViolation(err, constraintLedgerReference) {
		return wallet.Entry{}, wrapStoreError(errorSubjectEntry, errorCodeDuplicate, wallet.ErrDuplicateReference)
	}
	if err != nil {
		return wallet.Entry{}, wrapStoreError(errorSubjectEntry, errorCodeInsert, err)
	}
	return mapLedgerEntry(model)
}

func (store *WalletStore) EntryByReference(ctx context.Context, reference wallet.Reference) (wallet.Entry, bool, error) {
	var model LedgerEntry
	err := store.db.WithContext(ctx).
		Where("reference = ?", reference.String()).
		Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return wallet.Entry{}, false, nil
		}
		return wallet.Entry{}, false, wrapStoreError(errorSubjectEntry, errorCodeLookup, err)
	}
	entry, mapErr := mapLedgerEntry(model)
	if mapErr != nil {
		return wallet.Entry{}, false, mapErr
	}
	return entry, true, nil
}

func (store *WalletStore) ListEntries(ctx context.Context, accountID wallet.AccountID, limit int) ([]wallet.Entry, error) {
	var rows []LedgerEntry
	err := store.db.WithContext(ctx).
		Where("account_id = ?", accountID.String()).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectEntry, errorCodeList, err)
	}
	entries := make([]wallet.Entry, 0, len(rows))
	for _, row := range rows {
		entry, mapErr := mapLedgerEntry(row)
		if mapErr != nil {
			return nil, mapErr
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// CreateAccount inserts an account row. Registration flows live outside the
// core; this exists for bootstrap and tests.
func (store *WalletStore) CreateAccount(ctx context.Context, account wallet.Account) (wallet.Account, error) {
	model := Account{
		ID:            account.ID,
		OwnerName:     account.OwnerName,
		LicenseNumber: account.LicenseNumber,
		Role:          string(account.Role),
		Balance:       account.Balance.Decimal(),
		Active:        account.Active,
	}
	if err := store.db.WithContext(ctx).Create(&model).Error; err != nil {
		return wallet.Account{}, wrapStoreError(errorSubjectAccount, errorCodeCreate, err)
	}
	return mapAccount(model)
}

func mapAccount(model Account) (wallet.Account, error) {
	balance, err := wallet.NewAmount(model.Balance)
	if err != nil {
		return wallet.Account{}, wrapStoreError(errorSubjectAccount, errorCodeInvalid, err)
	}
	return wallet.Account{
		ID:            model.ID,
		OwnerName:     model.OwnerName,
		LicenseNumber: model.LicenseNumber,
		Role:          wallet.AccountRole(model.Role),
		Balance:       balance,
		Active:        model.Active,
	}, nil
}

func mapLedgerEntry(model LedgerEntry) (wallet.Entry, error) {
	kind, err := wallet.ParseEntryKind(model.Kind)
	if err != nil {
		return wallet.Entry{}, wrapStoreError(errorSubjectEntry, errorCodeInvalid, err)
	}
	amount, err := wallet.NewAmount(model.Amount)
	if err != nil {
		return wallet.Entry{}, wrapStoreError(errorSubjectEntry, errorCodeInvalid, err)
	}
	balanceAfter, err := wallet.NewAmount(model.BalanceAfter)
	if err != nil {
		return wallet.Entry{}, wrapStoreError(errorSubjectEntry, errorCodeInvalid, err)
	}
	reference := wallet.NoReference()
	if model.Reference != nil {
		reference, err = wallet.NewReference(*model.Reference)
		if err != nil {
			return wallet.Entry{}, wrapStoreError(errorSubjectEntry, errorCodeInvalid, err)
		}
	}
	metadata, err := wallet.NewMetadataJSON(string(model.Metadata))
	if err != nil {
		return wallet.Entry{}, wrapStoreError(errorSubjectEntry, errorCodeInvalid, err)
	}
	return wallet.Entry{
		ID:           model.ID,
		AccountID:    model.AccountID,
		Kind:         kind,
		Amount:       amount,
		BalanceAfter: balanceAfter,
		Description:  model.Description,
		Reference:    reference,
		MetadataJSON: metadata,
		CreatedAt:    model.CreatedAt,
	}, nil
}
