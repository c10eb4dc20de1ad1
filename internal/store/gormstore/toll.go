package gormstore

import (
	"context"
	"errors"
	"time"

	"github.com/openroads/tollgate/pkg/toll"
	"github.com/openroads/tollgate/pkg/wallet"
	"gorm.io/gorm"
)

const defaultPassageListLimit = 100

// TollStore implements toll.Store.
type TollStore struct {
	db *gorm.DB
}

// WithTx executes fn within a transaction. The wallet store returned by
// Wallet inside the closure shares the same transaction.
func (store *TollStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore toll.Store) error) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &TollStore{db: transaction})
	})
}

// Wallet returns a wallet store bound to the same database handle (and
// transaction, when called inside WithTx).
func (store *TollStore) Wallet() wallet.Store {
	return &WalletStore{db: store.db}
}

func (store *TollStore) GateByCode(ctx context.Context, code string) (toll.Gate, error) {
	return store.gate(ctx, "code = ?", code)
}

func (store *TollStore) GateByID(ctx context.Context, id string) (toll.Gate, error) {
	return store.gate(ctx, "id = ?", id)
}

func (store *TollStore) gate(ctx context.Context, condition string, value string) (toll.Gate, error) {
	var model TollGate
	err := store.db.WithContext(ctx).Where(condition, value).Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return toll.Gate{}, wrapStoreError(errorSubjectGate, errorCodeGet, toll.ErrUnknownGate)
		}
		return toll.Gate{}, wrapStoreError(errorSubjectGate, errorCodeGet, err)
	}
	return mapGate(model)
}

// VehiclesByTag lists active vehicles carrying the tag, oldest first. The
// engine resolves ambiguity to the first match.
func (store *TollStore) VehiclesByTag(ctx context.Context, tag string) ([]toll.Vehicle, error) {
	var rows []Vehicle
	err := store.db.WithContext(ctx).
		Where("tag = ? AND active = ?", tag, true).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectVehicle, errorCodeList, err)
	}
	vehicles := make([]toll.Vehicle, 0, len(rows))
	for _, row := range rows {
		vehicles = append(vehicles, mapVehicle(row))
	}
	return vehicles, nil
}

func (store *TollStore) InsertPassage(ctx context.Context, input toll.PassageInput) (toll.PassageRecord, error) {
	model := PassageRecord{
		GateID:          input.GateID,
		AccountID:       nullableString(input.AccountID),
		VehicleID:       nullableString(input.VehicleID),
		StaffID:         nullableString(input.StaffID),
		Tag:             input.Tag,
		Status:          string(input.Status),
		TollAmount:      input.Toll.Decimal(),
		FineAmount:      input.Fine.Decimal(),
		TotalAmount:     input.Total.Decimal(),
		WeightKg:        input.WeightKg,
		Overweight:      input.Overweight,
		Method:          string(input.Method),
		Reason:          input.Reason,
		LedgerReference: nullableString(input.LedgerReference),
		ScannedAt:       input.ScannedAt,
	}
	if err := store.db.WithContext(ctx).Create(&model).Error; err != nil {
		return toll.PassageRecord{}, wrapStoreError(errorSubjectPassage, errorCodeInsert, err)
	}
	return mapPassage(model)
}

func (store *TollStore) ListPassages(ctx context.Context, filter toll.PassageFilter) ([]toll.PassageRecord, error) {
	query := store.db.WithContext(ctx).Model(&PassageRecord{})
	if filter.GateID != "" {
		query = query.Where("gate_id = ?", filter.GateID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	}
	if filter.StaffID != "" {
		query = query.Where("staff_id = ?", filter.StaffID)
	}
	if !filter.From.IsZero() {
		query = query.Where("scanned_at >= ?", filter.From)
	}
	if !filter.To.IsZero() {
		query = query.Where("scanned_at <= ?", filter.To)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultPassageListLimit
	}
	var rows []PassageRecord
	if err := query.Order("scanned_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, wrapStoreError(errorSubjectPassage, errorCodeList, err)
	}
	return mapPassages(rows)
}

func (store *TollStore) InsertManualTransaction(ctx context.Context, input toll.ManualTransactionInput) (toll.ManualTransaction, error) {
	model := ManualTransaction{
		GateID:    input.GateID,
		StaffID:   input.StaffID,
		AccountID: nullableString(input.AccountID),
		Kind:      string(input.Kind),
		Amount:    input.Amount.Decimal(),
		Reason:    input.Reason,
		Notes:     input.Notes,
		Metadata:  datatypesJSON(input.MetadataJSON.String()),
		CreatedAt: input.CreatedAt,
	}
	if err := store.db.WithContext(ctx).Create(&model).Error; err != nil {
		return toll.ManualTransaction{}, wrapStoreError(errorSubjectManual, errorCodeInsert, err)
	}
	return mapManualTransaction(model)
}

func (store *TollStore) RecordHeartbeat(ctx context.Context, code string, at time.Time) error {
	result := store.db.WithContext(ctx).
		Model(&TollGate{}).
		Where("code = ?", code).
		Update("last_heartbeat_at", at)
	if result.Error != nil {
		return wrapStoreError(errorSubjectGate, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectGate, errorCodeUpdate, toll.ErrUnknownGate)
	}
	return nil
}

func (store *TollStore) UpdateHardwareStatus(ctx context.Context, code string, hardware toll.GateHardware) error {
	result := store.db.WithContext(ctx).
		Model(&TollGate{}).
		Where("code = ?", code).
		Updates(map[string]interface{}{
			"mechanism":     string(hardware.Mechanism),
			"rfid_scanner":  string(hardware.RFIDScanner),
			"weight_sensor": string(hardware.WeightSensor),
		})
	if result.Error != nil {
		return wrapStoreError(errorSubjectGate, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectGate, errorCodeUpdate, toll.ErrUnknownGate)
	}
	return nil
}

// CreateGate and CreateVehicle seed reference data; admin CRUD lives
// outside the core.
func (store *TollStore) CreateGate(ctx context.Context, gate toll.Gate) (toll.Gate, error) {
	model := TollGate{
		ID:                 gate.ID,
		Code:               gate.Code,
		Name:               gate.Name,
		BaseTollRate:       gate.Policy.BaseTollRate.Decimal(),
		OverweightFineRate: gate.Policy.OverweightFineRate.Decimal(),
		WeightLimitKg:      gate.Policy.WeightLimitKg,
		Active:             gate.Active,
		Mechanism:          stateOrOK(gate.Hardware.Mechanism),
		RFIDScanner:        stateOrOK(gate.Hardware.RFIDScanner),
		WeightSensor:       stateOrOK(gate.Hardware.WeightSensor),
	}
	if err := store.db.WithContext(ctx).Create(&model).Error; err != nil {
		return toll.Gate{}, wrapStoreError(errorSubjectGate, errorCodeCreate, err)
	}
	return mapGate(model)
}

func (store *TollStore) CreateVehicle(ctx context.Context, vehicle toll.Vehicle) (toll.Vehicle, error) {
	model := Vehicle{
		ID:               vehicle.ID,
		OwnerAccountID:   nullableString(vehicle.OwnerAccountID),
		Registration:     vehicle.Registration,
		Tag:              vehicle.Tag,
		WeightCapacityKg: vehicle.WeightCapacityKg,
		Active:           vehicle.Active,
	}
	if err := store.db.WithContext(ctx).Create(&model).Error; err != nil {
		return toll.Vehicle{}, wrapStoreError(errorSubjectVehicle, errorCodeCreate, err)
	}
	return mapVehicle(model), nil
}

func stateOrOK(state toll.HardwareState) string {
	if state == "" {
		return string(toll.StateOK)
	}
	return string(state)
}

func mapGate(model TollGate) (toll.Gate, error) {
	baseRate, err := wallet.NewAmount(model.BaseTollRate)
	if err != nil {
		return toll.Gate{}, wrapStoreError(errorSubjectGate, errorCodeInvalid, err)
	}
	fineRate, err := wallet.NewAmount(model.OverweightFineRate)
	if err != nil {
		return toll.Gate{}, wrapStoreError(errorSubjectGate, errorCodeInvalid, err)
	}
	return toll.Gate{
		ID:   model.ID,
		Code: model.Code,
		Name: model.Name,
		Policy: toll.FeePolicy{
			BaseTollRate:       baseRate,
			OverweightFineRate: fineRate,
			WeightLimitKg:      model.WeightLimitKg,
		},
		Active: model.Active,
		Hardware: toll.GateHardware{
			Mechanism:    toll.HardwareState(model.Mechanism),
			RFIDScanner:  toll.HardwareState(model.RFIDScanner),
			WeightSensor: toll.HardwareState(model.WeightSensor),
		},
		LastHeartbeatAt: timeOrZero(model.LastHeartbeatAt),
	}, nil
}

func mapVehicle(model Vehicle) toll.Vehicle {
	return toll.Vehicle{
		ID:               model.ID,
		OwnerAccountID:   stringOrEmpty(model.OwnerAccountID),
		Registration:     model.Registration,
		Tag:              model.Tag,
		WeightCapacityKg: model.WeightCapacityKg,
		Active:           model.Active,
		CreatedAt:        model.CreatedAt,
	}
}

func mapPassages(rows []PassageRecord) ([]toll.PassageRecord, error) {
	records := make([]toll.PassageRecord, 0, len(rows))
	for _, row := range rows {
		record, err := mapPassage(row)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

func mapPassage(model PassageRecord) (toll.PassageRecord, error) {
	tollAmount, err := wallet.NewAmount(model.TollAmount)
	if err != nil {
		return toll.PassageRecord{}, wrapStoreError(errorSubjectPassage, errorCodeInvalid, err)
	}
	fineAmount, err := wallet.NewAmount(model.FineAmount)
	if err != nil {
		return toll.PassageRecord{}, wrapStoreError(errorSubjectPassage, errorCodeInvalid, err)
	}
	totalAmount, err := wallet.NewAmount(model.TotalAmount)
	if err != nil {
		return toll.PassageRecord{}, wrapStoreError(errorSubjectPassage, errorCodeInvalid, err)
	}
	return toll.PassageRecord{
		ID:              model.ID,
		GateID:          model.GateID,
		AccountID:       stringOrEmpty(model.AccountID),
		VehicleID:       stringOrEmpty(model.VehicleID),
		StaffID:         stringOrEmpty(model.StaffID),
		Tag:             model.Tag,
		Status:          toll.PassageStatus(model.Status),
		Toll:            tollAmount,
		Fine:            fineAmount,
		Total:           totalAmount,
		WeightKg:        model.WeightKg,
		Overweight:      model.Overweight,
		Method:          toll.PaymentMethod(model.Method),
		Reason:          model.Reason,
		LedgerReference: stringOrEmpty(model.LedgerReference),
		ScannedAt:       model.ScannedAt,
	}, nil
}

func mapManualTransaction(model ManualTransaction) (toll.ManualTransaction, error) {
	amount, err := wallet.NewAmount(model.Amount)
	if err != nil {
		return toll.ManualTransaction{}, wrapStoreError(errorSubjectManual, errorCodeInvalid, err)
	}
	metadata, err := wallet.NewMetadataJSON(string(model.Metadata))
	if err != nil {
		return toll.ManualTransaction{}, wrapStoreError(errorSubjectManual, errorCodeInvalid, err)
	}
	return toll.ManualTransaction{
		ID:           model.ID,
		GateID:       model.GateID,
		StaffID:      model.StaffID,
		AccountID:    stringOrEmpty(model.AccountID),
		Kind:         toll.ManualKind(model.Kind),
		Amount:       amount,
		Reason:       model.Reason,
		Notes:        model.Notes,
		MetadataJSON: metadata,
		CreatedAt:    model.CreatedAt,
	}, nil
}
