package gormstore

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Account represents the accounts table. Balance is mutated only through
// the wallet store, under the row lock taken by AccountForUpdate.
type Account struct {
	ID            string          `gorm:"type:uuid;primaryKey"`
	OwnerName     string          `gorm:"not null"`
	LicenseNumber string          `gorm:"index"`
	Role          string          `gorm:"not null;default:driver"`
	Balance       decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0"`
	Active        bool            `gorm:"not null;default:true"`
	CreatedAt     time.Time       `gorm:"not null"`
	UpdatedAt     time.Time       `gorm:"not null"`
}

func (Account) TableName() string { return "accounts" }

func (account *Account) BeforeCreate(tx *gorm.DB) error {
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	return nil
}

// LedgerEntry mirrors the ledger_entries table. Rows are write-once; the
// unique reference index backs webhook idempotency.
type LedgerEntry struct {
	ID           string          `gorm:"type:uuid;primaryKey"`
	AccountID    string          `gorm:"type:uuid;not null;index:idx_ledger_account_created,priority:1"`
	Kind         string          `gorm:"not null"`
	Amount       decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	BalanceAfter decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	Description  string          `gorm:""`
	Reference    *string         `gorm:"uniqueIndex:uniq_ledger_reference"`
	Metadata     datatypes.JSON  `gorm:"not null"`
	CreatedAt    time.Time       `gorm:"not null;index:idx_ledger_account_created,priority:2"`
}

func (LedgerEntry) TableName() string { return "ledger_entries" }

func (entry *LedgerEntry) BeforeCreate(tx *gorm.DB) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	return nil
}

// Vehicle mirrors the vehicles table. The tag index is deliberately not
// unique; multiple vehicles can share a tag value in the field data.
type Vehicle struct {
	ID               string    `gorm:"type:uuid;primaryKey"`
	OwnerAccountID   *string   `gorm:"type:uuid;index"`
	Registration     string    `gorm:"not null;uniqueIndex"`
	Tag              string    `gorm:"index"`
	WeightCapacityKg float64   `gorm:"not null;default:0"`
	Active           bool      `gorm:"not null;default:true"`
	CreatedAt        time.Time `gorm:"not null"`
	UpdatedAt        time.Time `gorm:"not null"`
}

func (Vehicle) TableName() string { return "vehicles" }

func (vehicle *Vehicle) BeforeCreate(tx *gorm.DB) error {
	if vehicle.ID == "" {
		vehicle.ID = uuid.NewString()
	}
	return nil
}

// TollGate mirrors the toll_gates table: long-lived config plus the
// hardware sub-status flags mutated by heartbeats and staff updates.
type TollGate struct {
	ID                 string          `gorm:"type:uuid;primaryKey"`
	Code               string          `gorm:"not null;uniqueIndex"`
	Name               string          `gorm:"not null"`
	BaseTollRate       decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	OverweightFineRate decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	WeightLimitKg      float64         `gorm:"not null;default:0"`
	Active             bool            `gorm:"not null;default:true"`
	Mechanism          string          `gorm:"not null;default:ok"`
	RFIDScanner        string          `gorm:"column:rfid_scanner;not null;default:ok"`
	WeightSensor       string          `gorm:"not null;default:ok"`
	LastHeartbeatAt    *time.Time      `gorm:""`
	CreatedAt          time.Time       `gorm:"not null"`
	UpdatedAt          time.Time       `gorm:"not null"`
}

func (TollGate) TableName() string { return "toll_gates" }

func (gate *TollGate) BeforeCreate(tx *gorm.DB) error {
	if gate.ID == "" {
		gate.ID = uuid.NewString()
	}
	return nil
}

// PassageRecord mirrors the passage_records table, the append-only audit
// trail of physical gate events.
type PassageRecord struct {
	ID              string          `gorm:"type:uuid;primaryKey"`
	GateID          string          `gorm:"type:uuid;not null;index:idx_passages_gate_scanned,priority:1"`
	AccountID       *string         `gorm:"type:uuid;index"`
	VehicleID       *string         `gorm:"type:uuid"`
	StaffID         *string         `gorm:"index"`
	Tag             string          `gorm:""`
	Status          string          `gorm:"not null;index"`
	TollAmount      decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	FineAmount      decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	TotalAmount     decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	WeightKg        float64         `gorm:"not null;default:0"`
	Overweight      bool            `gorm:"not null;default:false"`
	Method          string          `gorm:"not null"`
	Reason          string          `gorm:""`
	LedgerReference *string         `gorm:""`
	ScannedAt       time.Time       `gorm:"not null;index:idx_passages_gate_scanned,priority:2"`
}

func (PassageRecord) TableName() string { return "passage_records" }

func (record *PassageRecord) BeforeCreate(tx *gorm.DB) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	return nil
}

// ShiftSession mirrors the shift_sessions table. The partial unique index
// enforces at most one open session per staff member.
type ShiftSession struct {
	ID                 string          `gorm:"type:uuid;primaryKey"`
	StaffID            string          `gorm:"not null;index:uniq_active_shift,unique,where:clock_out_at IS NULL"`
	GateID             string          `gorm:"type:uuid;not null;index"`
	ClockInAt          time.Time       `gorm:"not null"`
	ClockOutAt         *time.Time      `gorm:""`
	TotalPassages      int             `gorm:"not null;default:0"`
	SuccessfulPassages int             `gorm:"not null;default:0"`
	RejectedPassages   int             `gorm:"not null;default:0"`
	Overrides          int             `gorm:"not null;default:0"`
	CashPayments       int             `gorm:"not null;default:0"`
	TotalRevenue       decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0"`
	CashCollected      decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0"`
	Notes              string          `gorm:""`
	CreatedAt          time.Time       `gorm:"not null"`
	UpdatedAt          time.Time       `gorm:"not null"`
}

func (ShiftSession) TableName() string { return "shift_sessions" }

func (session *ShiftSession) BeforeCreate(tx *gorm.DB) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	return nil
}

// HandoverNote mirrors the handover_notes table.
type HandoverNote struct {
	ID          string     `gorm:"type:uuid;primaryKey"`
	ShiftID     string     `gorm:"type:uuid;not null;index"`
	FromStaffID string     `gorm:"not null"`
	ToStaffID   string     `gorm:"index"`
	Body        string     `gorm:"not null"`
	CreatedAt   time.Time  `gorm:"not null"`
	ReadAt      *time.Time `gorm:""`
}

func (HandoverNote) TableName() string { return "handover_notes" }

func (note *HandoverNote) BeforeCreate(tx *gorm.DB) error {
	if note.ID == "" {
		note.ID = uuid.NewString()
	}
	return nil
}

// ManualTransaction mirrors the manual_transactions table.
type ManualTransaction struct {
	ID        string          `gorm:"type:uuid;primaryKey"`
	GateID    string          `gorm:"type:uuid;not null;index"`
	StaffID   string          `gorm:"not null;index"`
	AccountID *string         `gorm:"type:uuid"`
	Kind      string          `gorm:"not null"`
	Amount    decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	Reason    string          `gorm:"not null"`
	Notes     string          `gorm:""`
	Metadata  datatypes.JSON  `gorm:"not null"`
	CreatedAt time.Time       `gorm:"not null"`
}

func (ManualTransaction) TableName() string { return "manual_transactions" }

func (manual *ManualTransaction) BeforeCreate(tx *gorm.DB) error {
	if manual.ID == "" {
		manual.ID = uuid.NewString()
	}
	return nil
}
