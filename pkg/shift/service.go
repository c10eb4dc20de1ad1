package shift

import (
	"context"
	"fmt"
	"time"

	"github.com/openroads/tollgate/pkg/toll"
	"github.com/openroads/tollgate/pkg/wallet"
)

// Service owns shift sessions and the clock-out reconciliation snapshot.
type Service struct {
	store Store
	nowFn func() time.Time
}

// NewService wires a Service.
func NewService(store Store, now func() time.Time) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	return &Service{store: store, nowFn: now}, nil
}

// ClockIn opens a session for the staff member. A staff member can hold at
// most one open session at a time.
func (service *Service) ClockIn(ctx context.Context, staffID string, gateID string) (Session, error) {
	if staffID == "" {
		return Session{}, ErrMissingStaff
	}
	if gateID == "" {
		return Session{}, ErrMissingGate
	}
	var session Session
	err := service.store.WithTx(ctx, func(ctx context.Context, txStore Store) error {
		_, active, txErr := txStore.ActiveSessionByStaff(ctx, staffID)
		if txErr != nil {
			return txErr
		}
		if active {
			return ErrActiveShiftExists
		}
		session, txErr = txStore.InsertSession(ctx, SessionInput{
			StaffID:   staffID,
			GateID:    gateID,
			ClockInAt: service.nowFn().UTC(),
		})
		return txErr
	})
	return session, err
}

// ClockOut finalizes the session: it aggregates every passage recorded at
// the shift's gate inside [clock_in_at, now], writes the summary snapshot,
// and optionally leaves a handover note for the next staff member. The
// totals are fixed at this point; corrected passages require a full
// recomputation elsewhere, not an incremental adjustment.
func (service *Service) ClockOut(ctx context.Context, shiftID string, notes string, handoverBody string, handoverToStaffID string) (Session, error) {
	var session Session
	err := service.store.WithTx(ctx, func(ctx context.Context, txStore Store) error {
		var txErr error
		session, txErr = txStore.SessionByID(ctx, shiftID)
		if txErr != nil {
			return txErr
		}
		if !session.Active() {
			return ErrShiftClosed
		}
		clockOutAt := service.nowFn().UTC()
		records, txErr := txStore.PassagesInWindow(ctx, session.GateID, session.ClockInAt, clockOutAt)
		if txErr != nil {
			return txErr
		}
		summary := Summarize(records)
		if txErr = txStore.FinalizeSession(ctx, session.ID, summary, notes, clockOutAt); txErr != nil {
			return txErr
		}
		if handoverBody != "" {
			if _, txErr = txStore.InsertHandoverNote(ctx, HandoverNoteInput{
				ShiftID:     session.ID,
				FromStaffID: session.StaffID,
				ToStaffID:   handoverToStaffID,
				Body:        handoverBody,
				CreatedAt:   clockOutAt,
			}); txErr != nil {
				return txErr
			}
		}
		session.Summary = summary
		session.Notes = notes
		session.ClockOutAt = &clockOutAt
		return nil
	})
	if err != nil {
		return Session{}, err
	}
	return session, nil
}

// ActiveShift returns the staff member's open session, if any.
func (service *Service) ActiveShift(ctx context.Context, staffID string) (Session, bool, error) {
	return service.store.ActiveSessionByStaff(ctx, staffID)
}

// MarkHandoverRead marks a handover note as read.
func (service *Service) MarkHandoverRead(ctx context.Context, noteID string) error {
	return service.store.MarkHandoverNoteRead(ctx, noteID, service.nowFn().UTC())
}

// Summarize folds passage records into shift counters. Revenue counts
// settled passages (wallet, exemption, cash); cash collected counts only
// the cash-method totals.
func Summarize(records []toll.PassageRecord) Summary {
	summary := Summary{
		TotalRevenue:  wallet.ZeroAmount(),
		CashCollected: wallet.ZeroAmount(),
	}
	for _, record := range records {
		summary.TotalPassages++
		switch record.Status {
		case toll.StatusSuccess:
			summary.SuccessfulPassages++
			summary.TotalRevenue = summary.TotalRevenue.Add(record.Total)
		case toll.StatusCashPayment:
			summary.CashPayments++
			summary.TotalRevenue = summary.TotalRevenue.Add(record.Total)
		case toll.StatusManualOverride:
			summary.Overrides++
		case toll.StatusRejectedUnregistered, toll.StatusRejectedInsufficientFunds:
			summary.RejectedPassages++
		}
		if record.Method == toll.MethodCash {
			summary.CashCollected = summary.CashCollected.Add(record.Total)
		}
	}
	return summary
}
