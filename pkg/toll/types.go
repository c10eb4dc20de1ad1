package toll

import (
	"context"
	"fmt"
	"time"

	"github.com/openroads/tollgate/pkg/wallet"
)

// GateAction is the physical instruction returned to the gate controller.
type GateAction string

const (
	ActionOpen  GateAction = "open"
	ActionClose GateAction = "close"
)

// PassageStatus is the terminal outcome of one gate event.
type PassageStatus string

const (
	StatusSuccess                   PassageStatus = "success"
	StatusRejectedUnregistered      PassageStatus = "rejected_unregistered"
	StatusRejectedInsufficientFunds PassageStatus = "rejected_insufficient_funds"
	StatusCashPayment               PassageStatus = "cash_payment"
	StatusManualOverride            PassageStatus = "manual_override"
)

// PaymentMethod records how a passage was settled.
type PaymentMethod string

const (
	MethodWallet                PaymentMethod = "wallet"
	MethodCash                  PaymentMethod = "cash"
	MethodGovernmentalExemption PaymentMethod = "governmental_exemption"
	MethodNone                  PaymentMethod = "none"
)

// HardwareState is the health of one gate sub-system.
type HardwareState string

const (
	StateOK    HardwareState = "ok"
	StateFault HardwareState = "fault"
)

// ParseHardwareState validates a hardware state value.
func ParseHardwareState(raw string) (HardwareState, error) {
	switch HardwareState(raw) {
	case StateOK, StateFault:
		return HardwareState(raw), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidState, raw)
}

// GateHardware holds the operational sub-status of a gate.
type GateHardware struct {
	Mechanism    HardwareState
	RFIDScanner  HardwareState
	WeightSensor HardwareState
}

// Healthy reports whether every sub-system is ok.
func (hardware GateHardware) Healthy() bool {
	return hardware.Mechanism == StateOK && hardware.RFIDScanner == StateOK && hardware.WeightSensor == StateOK
}

// Gate is a physical toll checkpoint with its charging policy and
// hardware health state.
type Gate struct {
	ID              string
	Code            string
	Name            string
	Policy          FeePolicy
	Active          bool
	Hardware        GateHardware
	LastHeartbeatAt time.Time
}

// Operational reports whether the gate may process scans: active, mechanism
// not in fault, and both sensors healthy.
func (gate Gate) Operational() bool {
	return gate.Active && gate.Hardware.Healthy()
}

// Vehicle is a registered vehicle. The RFID tag is not unique in the data
// set; resolution takes the first active match (see Engine.resolveVehicle).
type Vehicle struct {
	ID               string
	OwnerAccountID   string
	Registration     string
	Tag              string
	WeightCapacityKg float64
	Active           bool
	CreatedAt        time.Time
}

// PassageRecord is the immutable audit record of one attempt (or staff
// action) at a gate, regardless of payment outcome.
type PassageRecord struct {
	ID              string
	GateID          string
	AccountID       string
	VehicleID       string
	StaffID         string
	Tag             string
	Status          PassageStatus
	Toll            wallet.Amount
	Fine            wallet.Amount
	Total           wallet.Amount
	WeightKg        float64
	Overweight      bool
	Method          PaymentMethod
	Reason          string
	LedgerReference string
	ScannedAt       time.Time
}

// PassageInput carries the fields written when a passage is recorded.
type PassageInput struct {
	GateID          string
	AccountID       string
	VehicleID       string
	StaffID         string
	Tag             string
	Status          PassageStatus
	Toll            wallet.Amount
	Fine            wallet.Amount
	Total           wallet.Amount
	WeightKg        float64
	Overweight      bool
	Method          PaymentMethod
	Reason          string
	LedgerReference string
	ScannedAt       time.Time
}

// PassageFilter selects passages for monitoring and shift aggregation.
type PassageFilter struct {
	GateID  string
	Status  PassageStatus
	StaffID string
	From    time.Time
	To      time.Time
	Limit   int
}

// ManualKind enumerates staff-initiated transaction types.
type ManualKind string

const (
	ManualCashPayment    ManualKind = "cash_payment"
	ManualOverrideRecord ManualKind = "manual_override"
	ManualFineAdjustment ManualKind = "fine_adjustment"
)

// ManualTransaction is a staff-initiated cash payment, override, or fine
// adjustment. It is always paired with a PassageRecord.
type ManualTransaction struct {
	ID           string
	GateID       string
	StaffID      string
	AccountID    string
	Kind         ManualKind
	Amount       wallet.Amount
	Reason       string
	Notes        string
	MetadataJSON wallet.MetadataJSON
	CreatedAt    time.Time
}

// ManualTransactionInput carries the fields written for a manual transaction.
type ManualTransactionInput struct {
	GateID       string
	StaffID      string
	AccountID    string
	Kind         ManualKind
	Amount       wallet.Amount
	Reason       string
	Notes        string
	MetadataJSON wallet.MetadataJSON
	CreatedAt    time.Time
}

// ScanRequest is one decoded gate scan entering the decision engine.
type ScanRequest struct {
	GateCode string
	Tag      string
	WeightKg float64
	At       time.Time
	Basis    OverweightBasis
}

// Decision is the structured outcome of one scan or staff action.
type Decision struct {
	Granted    bool
	GateAction GateAction
	Status     PassageStatus
	Message    string
	Toll       wallet.Amount
	Fine       wallet.Amount
	Total      wallet.Amount
	Overweight bool
	NewBalance *wallet.Amount
	Passage    *PassageRecord
	Hardware   *GateHardware
}

// Store is the persistence contract used by Engine. WithTx shares one
// transaction across the toll tables and, via Wallet, the wallet tables:
// the debit and the passage insert of a granted scan commit or roll back
// together.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error
	Wallet() wallet.Store
	GateByCode(ctx context.Context, code string) (Gate, error)
	GateByID(ctx context.Context, id string) (Gate, error)
	VehiclesByTag(ctx context.Context, tag string) ([]Vehicle, error)
	InsertPassage(ctx context.Context, input PassageInput) (PassageRecord, error)
	ListPassages(ctx context.Context, filter PassageFilter) ([]PassageRecord, error)
	InsertManualTransaction(ctx context.Context, input ManualTransactionInput) (ManualTransaction, error)
	RecordHeartbeat(ctx context.Context, code string, at time.Time) error
	UpdateHardwareStatus(ctx context.Context, code string, hardware GateHardware) error
}
