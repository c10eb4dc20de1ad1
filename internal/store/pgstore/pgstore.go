// Package pgstore bootstraps the postgres schema. The gorm store owns all
// query traffic; this package only creates tables and indexes so that
// deployments do not rely on AutoMigrate against postgres.
package pgstore

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/openroads/tollgate/pkg/wallet"
)

const (
	errorOperationMigrate  = "migrate"
	errorSubjectSchema     = "schema"
	errorSubjectConnection = "connection"
	errorCodeBegin         = "begin"
	errorCodeCommit        = "commit"
	errorCodeExec          = "exec"
	errorCodePing          = "ping"

	sqlCreateAccounts = `
		create table if not exists accounts(
			id uuid primary key,
			owner_name text not null,
			license_number text not null default '',
			role text not null default 'driver',
			balance numeric(10,2) not null default 0,
			active boolean not null default true,
			created_at timestamptz not null,
			updated_at timestamptz not null
		)
	`

	sqlCreateLedgerEntries = `
		create table if not exists ledger_entries(
			id uuid primary key,
			account_id uuid not null references accounts(id),
			kind text not null,
			amount numeric(10,2) not null,
			balance_after numeric(10,2) not null,
			description text not null default '',
			reference text,
			metadata jsonb not null,
			created_at timestamptz not null,
			constraint uniq_ledger_reference unique (reference)
		)
	`

	sqlIndexLedgerAccountCreated = `
		create index if not exists idx_ledger_account_created
		on ledger_entries(account_id, created_at)
	`

	sqlCreateVehicles = `
		create table if not exists vehicles(
			id uuid primary key,
			owner_account_id uuid references accounts(id),
			registration text not null unique,
			tag text not null,
			weight_capacity_kg double precision not null default 0,
			active boolean not null default true,
			created_at timestamptz not null,
			updated_at timestamptz not null
		)
	`

	sqlIndexVehicleTag = `
		create index if not exists idx_vehicles_tag on vehicles(tag)
	`

	sqlCreateTollGates = `
		create table if not exists toll_gates(
			id uuid primary key,
			code text not null unique,
			name text not null,
			base_toll_rate numeric(10,2) not null default 0,
			overweight_fine_rate numeric(10,2) not null default 0,
			weight_limit_kg double precision not null default 0,
			active boolean not null default true,
			mechanism text not null default 'ok',
			rfid_scanner text not null default 'ok',
			weight_sensor text not null default 'ok',
			last_heartbeat_at timestamptz,
			created_at timestamptz not null,
			updated_at timestamptz not null
		)
	`

	sqlCreatePassageRecords = `
		create table if not exists passage_records(
			id uuid primary key,
			gate_id uuid not null references toll_gates(id),
			account_id uuid,
			vehicle_id uuid,
			staff_id text,
			tag text not null default '',
			status text not null,
			toll_amount numeric(10,2) not null default 0,
			fine_amount numeric(10,2) not null default 0,
			total_amount numeric(10,2) not null default 0,
			weight_kg double precision not null default 0,
			overweight boolean not null default false,
			method text not null default 'none',
			reason text not null default '',
			ledger_reference text,
			scanned_at timestamptz not null
		)
	`

	sqlIndexPassagesGateScanned = `
		create index if not exists idx_passages_gate_scanned
		on passage_records(gate_id, scanned_at)
	`

	sqlCreateShiftSessions = `
		create table if not exists shift_sessions(
			id uuid primary key,
			staff_id text not null,
			gate_id uuid not null references toll_gates(id),
			clock_in_at timestamptz not null,
			clock_out_at timestamptz,
			total_passages integer not null default 0,
			successful_passages integer not null default 0,
			rejected_passages integer not null default 0,
			overrides integer not null default 0,
			cash_payments integer not null default 0,
			total_revenue numeric(10,2) not null default 0,
			cash_collected numeric(10,2) not null default 0,
			notes text not null default '',
			created_at timestamptz not null,
			updated_at timestamptz not null
		)
	`

	sqlIndexActiveShift = `
		create unique index if not exists uniq_active_shift
		on shift_sessions(staff_id) where clock_out_at is null
	`

	sqlCreateHandoverNotes = `
		create table if not exists handover_notes(
			id uuid primary key,
			shift_id uuid not null references shift_sessions(id),
			from_staff_id text not null,
			to_staff_id text not null default '',
			body text not null,
			created_at timestamptz not null,
			read_at timestamptz
		)
	`

	sqlCreateManualTransactions = `
		create table if not exists manual_transactions(
			id uuid primary key,
			gate_id uuid not null references toll_gates(id),
			staff_id text not null,
			account_id uuid,
			kind text not null,
			amount numeric(10,2) not null default 0,
			reason text not null,
			notes text not null default '',
			metadata jsonb not null,
			created_at timestamptz not null
		)
	`
)

var schemaStatements = []string{
	sqlCreateAccounts,
	sqlCreateLedgerEntries,
	sqlIndexLedgerAccountCreated,
	sqlCreateVehicles,
	sqlIndexVehicleTag,
	sqlCreateTollGates,
	sqlCreatePassageRecords,
	sqlIndexPassagesGateScanned,
	sqlCreateShiftSessions,
	sqlIndexActiveShift,
	sqlCreateHandoverNotes,
	sqlCreateManualTransactions,
}

// Migrator applies the schema statements through a pgx connection pool.
type Migrator struct {
	pool *pgxpool.Pool
}

// NewMigrator returns a Migrator backed by a pgx pool.
func NewMigrator(pool *pgxpool.Pool) *Migrator {
	return &Migrator{pool: pool}
}

// Migrate creates all tables and indexes inside a single transaction.
// Statements are idempotent, so re-running on an existing schema is safe.
func (migrator *Migrator) Migrate(ctx context.Context) error {
	tx, err := migrator.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return wrapMigrateError(errorCodeBegin, err)
	}
	for _, statement := range schemaStatements {
		if _, err := tx.Exec(ctx, statement); err != nil {
			_ = tx.Rollback(ctx)
			return wrapMigrateError(errorCodeExec, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return wrapMigrateError(errorCodeCommit, err)
	}
	return nil
}

// Ping verifies the pool can reach the database.
func (migrator *Migrator) Ping(ctx context.Context) error {
	if err := migrator.pool.Ping(ctx); err != nil {
		return wallet.WrapError(errorOperationMigrate, errorSubjectConnection, errorCodePing, err)
	}
	return nil
}

func wrapMigrateError(code string, err error) error {
	return wallet.WrapError(errorOperationMigrate, errorSubjectSchema, code, err)
}
