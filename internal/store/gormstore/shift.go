package gormstore

import (
	"context"
	"errors"
	"time"

	"github.com/openroads/tollgate/pkg/shift"
	"github.com/openroads/tollgate/pkg/toll"
	"github.com/openroads/tollgate/pkg/wallet"
	"gorm.io/gorm"
)

// ShiftStore implements shift.Store.
type ShiftStore struct {
	db *gorm.DB
}

// WithTx executes fn within a transaction.
func (store *ShiftStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore shift.Store) error) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &ShiftStore{db: transaction})
	})
}

func (store *ShiftStore) ActiveSessionByStaff(ctx context.Context, staffID string) (shift.Session, bool, error) {
	var model ShiftSession
	err := store.db.WithContext(ctx).
		Where("staff_id = ? AND clock_out_at IS NULL", staffID).
		Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return shift.Session{}, false, nil
		}
		return shift.Session{}, false, wrapStoreError(errorSubjectShift, errorCodeLookup, err)
	}
	session, mapErr := mapSession(model)
	if mapErr != nil {
		return shift.Session{}, false, mapErr
	}
	return session, true, nil
}

func (store *ShiftStore) SessionByID(ctx context.Context, id string) (shift.Session, error) {
	var model ShiftSession
	err := store.db.WithContext(ctx).Where("id = ?", id).Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return shift.Session{}, wrapStoreError(errorSubjectShift, errorCodeGet, shift.ErrUnknownShift)
		}
		return shift.Session{}, wrapStoreError(errorSubjectShift, errorCodeGet, err)
	}
	return mapSession(model)
}

func (store *ShiftStore) InsertSession(ctx context.Context, input shift.SessionInput) (shift.Session, error) {
	model := ShiftSession{
		StaffID:   input.StaffID,
		GateID:    input.GateID,
		ClockInAt: input.ClockInAt,
	}
	err := store.db.WithContext(ctx).Create(&model).Error
	if isUniqueViolation(err, constraintActiveShift) {
		return shift.Session{}, wrapStoreError(errorSubjectShift, errorCodeDuplicate, shift.ErrActiveShiftExists)
	}
	if err != nil {
		return shift.Session{}, wrapStoreError(errorSubjectShift, errorCodeCreate, err)
	}
	return mapSession(model)
}

func (store *ShiftStore) FinalizeSession(ctx context.Context, id string, summary shift.Summary, notes string, clockOutAt time.Time) error {
	result := store.db.WithContext(ctx).
		Model(&ShiftSession{}).
		Where("id = ? AND clock_out_at IS NULL", id).
		Updates(map[string]interface{}{
			"clock_out_at":        clockOutAt,
			"total_passages":      summary.TotalPassages,
			"successful_passages": summary.SuccessfulPassages,
			"rejected_passages":   summary.RejectedPassages,
			"overrides":           summary.Overrides,
			"cash_payments":       summary.CashPayments,
			"total_revenue":       summary.TotalRevenue.Decimal(),
			"cash_collected":      summary.CashCollected.Decimal(),
			"notes":               notes,
		})
	if result.Error != nil {
		return wrapStoreError(errorSubjectShift, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectShift, errorCodeUpdate, shift.ErrShiftClosed)
	}
	return nil
}

func (store *ShiftStore) PassagesInWindow(ctx context.Context, gateID string, from time.Time, to time.Time) ([]toll.PassageRecord, error) {
	var rows []PassageRecord
	err := store.db.WithContext(ctx).
		Where("gate_id = ? AND scanned_at >= ? AND scanned_at <= ?", gateID, from, to).
		Order("scanned_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectPassage, errorCodeList, err)
	}
	return mapPassages(rows)
}

func (store *ShiftStore) InsertHandoverNote(ctx context.Context, input shift.HandoverNoteInput) (shift.HandoverNote, error) {
	model := HandoverNote{
		ShiftID:     input.ShiftID,
		FromStaffID: input.FromStaffID,
		ToStaffID:   input.ToStaffID,
		Body:        input.Body,
		CreatedAt:   input.CreatedAt,
	}
	if err := store.db.WithContext(ctx).Create(&model).Error; err != nil {
		return shift.HandoverNote{}, wrapStoreError(errorSubjectNote, errorCodeInsert, err)
	}
	return mapHandoverNote(model), nil
}

func (store *ShiftStore) MarkHandoverNoteRead(ctx context.Context, noteID string, at time.Time) error {
	result := store.db.WithContext(ctx).
		Model(&HandoverNote{}).
		Where("id = ? AND read_at IS NULL", noteID).
		Update("read_at", at)
	if result.Error != nil {
		return wrapStoreError(errorSubjectNote, errorCodeUpdate, result.Error)
	}
	return nil
}

func mapSession(model ShiftSession) (shift.Session, error) {
	revenue, err := wallet.NewAmount(model.TotalRevenue)
	if err != nil {
		return shift.Session{}, wrapStoreError(errorSubjectShift, errorCodeInvalid, err)
	}
	cash, err := wallet.NewAmount(model.CashCollected)
	if err != nil {
		return shift.Session{}, wrapStoreError(errorSubjectShift, errorCodeInvalid, err)
	}
	return shift.Session{
		ID:         model.ID,
		StaffID:    model.StaffID,
		GateID:     model.GateID,
		ClockInAt:  model.ClockInAt,
		ClockOutAt: model.ClockOutAt,
		Summary: shift.Summary{
			TotalPassages:      model.TotalPassages,
			SuccessfulPassages: model.SuccessfulPassages,
			RejectedPassages:   model.RejectedPassages,
			Overrides:          model.Overrides,
			CashPayments:       model.CashPayments,
			TotalRevenue:       revenue,
			CashCollected:      cash,
		},
		Notes: model.Notes,
	}, nil
}

func mapHandoverNote(model HandoverNote) shift.HandoverNote {
	return shift.HandoverNote{
		ID:          model.ID,
		ShiftID:     model.ShiftID,
		FromStaffID: model.FromStaffID,
		ToStaffID:   model.ToStaffID,
		Body:        model.Body,
		CreatedAt:   model.CreatedAt,
		ReadAt:      model.ReadAt,
	}
}
