// Package gormstore implements the wallet, toll, and shift persistence
// contracts over a single GORM database. The three sub-stores share one
// *gorm.DB so a WithTx closure on any of them can span all the tables.
package gormstore

import (
	"errors"
	"time"

	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/openroads/tollgate/pkg/wallet"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	constraintLedgerReference = "uniq_ledger_reference"
	constraintActiveShift     = "uniq_active_shift"
	defaultMetadataJSON       = "{}"
	pgUniqueViolationCode     = "23505"
	sqliteConstraintCode      = 19
	dialectorPostgres         = "postgres"

	errorOperationStore = "store"
	errorSubjectAccount = "account"
	errorSubjectEntry   = "entry"
	errorSubjectGate    = "gate"
	errorSubjectVehicle = "vehicle"
	errorSubjectPassage = "passage"
	errorSubjectManual  = "manual_transaction"
	errorSubjectShift   = "shift"
	errorSubjectNote    = "handover_note"
	errorCodeCreate     = "create"
	errorCodeDuplicate  = "duplicate"
	errorCodeGet        = "get"
	errorCodeInsert     = "insert"
	errorCodeInvalid    = "invalid"
	errorCodeList       = "list"
	errorCodeLookup     = "lookup"
	errorCodeUpdate     = "update"
)

// Store bundles the sub-stores over one database handle.
type Store struct {
	db *gorm.DB
}

// New returns a Store backed by gorm.DB.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Wallet returns the wallet.Store implementation.
func (store *Store) Wallet() *WalletStore {
	return &WalletStore{db: store.db}
}

// Toll returns the toll.Store implementation.
func (store *Store) Toll() *TollStore {
	return &TollStore{db: store.db}
}

// Shift returns the shift.Store implementation.
func (store *Store) Shift() *ShiftStore {
	return &ShiftStore{db: store.db}
}

// AutoMigrate creates the schema. Used for sqlite; postgres schemas are
// bootstrapped by the pgstore migrator.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Account{},
		&LedgerEntry{},
		&Vehicle{},
		&TollGate{},
		&PassageRecord{},
		&ShiftSession{},
		&HandoverNote{},
		&ManualTransaction{},
	)
}

func wrapStoreError(subject string, code string, err error) error {
	return wallet.WrapError(errorOperationStore, subject, code, err)
}

func datatypesJSON(raw string) datatypes.JSON {
	if raw == "" {
		return datatypes.JSON([]byte(defaultMetadataJSON))
	}
	return datatypes.JSON([]byte(raw))
}

func nullableString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func stringOrEmpty(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func timeOrZero(value *time.Time) time.Time {
	if value == nil {
		return time.Time{}
	}
	return *value
}

func isUniqueViolation(err error, pgConstraint string) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode && (pgConstraint == "" || pgErr.ConstraintName == pgConstraint)
	}
	var sqliteErr *gosqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()&0xFF == sqliteConstraintCode
	}
	return false
}
