package toll

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/openroads/tollgate/pkg/wallet"
)

// CashPaymentRequest records a staff-collected cash toll. No driver wallet
// is involved; the amount is reconciled through the shift summary.
type CashPaymentRequest struct {
	GateID      string
	StaffID     string
	Amount      wallet.Amount
	WeightKg    float64
	VehicleText string
	Notes       string
	At          time.Time
}

// OverrideRequest records a staff-authorized pass with no charge. The
// justification is mandatory; the record exists for compliance only.
type OverrideRequest struct {
	GateID   string
	StaffID  string
	Reason   string
	Tag      string
	WeightKg float64
	At       time.Time
}

// FineAdjustmentRequest records a staff-levied fine. When a target account
// is given the fine is debited from its wallet; the whole operation fails
// with no partial state if the balance cannot cover it.
type FineAdjustmentRequest struct {
	GateID    string
	StaffID   string
	AccountID string
	Amount    wallet.Amount
	Reason    string
	At        time.Time
}

// RecordCashPayment writes the manual transaction and its passage record in
// one transaction and opens the gate.
func (engine *Engine) RecordCashPayment(ctx context.Context, request CashPaymentRequest) (Decision, error) {
	if request.StaffID == "" {
		return failClosed("staff id is required"), ErrMissingStaff
	}
	if !request.Amount.IsPositive() {
		return failClosed("amount must be positive"), wallet.ErrInvalidAmount
	}
	gate, err := engine.store.GateByID(ctx, request.GateID)
	if err != nil {
		return failClosed("unknown gate"), err
	}
	at := request.At
	if at.IsZero() {
		at = engine.nowFn().UTC()
	}
	metadata, err := manualMetadata(map[string]any{
		"vehicle": request.VehicleText,
		"staff":   request.StaffID,
	})
	if err != nil {
		return failClosed(genericFailureMessage), err
	}

	var passage PassageRecord
	err = engine.store.WithTx(ctx, func(ctx context.Context, txStore Store) error {
		if _, txErr := txStore.InsertManualTransaction(ctx, ManualTransactionInput{
			GateID:       gate.ID,
			StaffID:      request.StaffID,
			Kind:         ManualCashPayment,
			Amount:       request.Amount,
			Reason:       "cash toll payment",
			Notes:        request.Notes,
			MetadataJSON: metadata,
			CreatedAt:    at,
		}); txErr != nil {
			return txErr
		}
		var txErr error
		passage, txErr = txStore.InsertPassage(ctx, PassageInput{
			GateID:    gate.ID,
			StaffID:   request.StaffID,
			Status:    StatusCashPayment,
			Toll:      request.Amount,
			Fine:      wallet.ZeroAmount(),
			Total:     request.Amount,
			WeightKg:  request.WeightKg,
			Method:    MethodCash,
			Reason:    request.VehicleText,
			ScannedAt: at,
		})
		return txErr
	})
	if err != nil {
		return failClosed(genericFailureMessage), err
	}

	return Decision{
		Granted:    true,
		GateAction: ActionOpen,
		Status:     StatusCashPayment,
		Message:    "cash payment recorded",
		Toll:       request.Amount,
		Fine:       wallet.ZeroAmount(),
		Total:      request.Amount,
		Passage:    &passage,
	}, nil
}

// RecordManualOverride writes a zero-amount compliance record. The wallet
// is never touched.
func (engine *Engine) RecordManualOverride(ctx context.Context, request OverrideRequest) (Decision, error) {
	if request.StaffID == "" {
		return failClosed("staff id is required"), ErrMissingStaff
	}
	if request.Reason == "" {
		return failClosed("override reason is required"), ErrMissingReason
	}
	gate, err := engine.store.GateByID(ctx, request.GateID)
	if err != nil {
		return failClosed("unknown gate"), err
	}
	at := request.At
	if at.IsZero() {
		at = engine.nowFn().UTC()
	}
	metadata, err := manualMetadata(map[string]any{
		"tag":   request.Tag,
		"staff": request.StaffID,
	})
	if err != nil {
		return failClosed(genericFailureMessage), err
	}

	var passage PassageRecord
	err = engine.store.WithTx(ctx, func(ctx context.Context, txStore Store) error {
		if _, txErr := txStore.InsertManualTransaction(ctx, ManualTransactionInput{
			GateID:       gate.ID,
			StaffID:      request.StaffID,
			Kind:         ManualOverrideRecord,
			Amount:       wallet.ZeroAmount(),
			Reason:       request.Reason,
			MetadataJSON: metadata,
			CreatedAt:    at,
		}); txErr != nil {
			return txErr
		}
		var txErr error
		passage, txErr = txStore.InsertPassage(ctx, PassageInput{
			GateID:    gate.ID,
			StaffID:   request.StaffID,
			Tag:       request.Tag,
			Status:    StatusManualOverride,
			Toll:      wallet.ZeroAmount(),
			Fine:      wallet.ZeroAmount(),
			Total:     wallet.ZeroAmount(),
			WeightKg:  request.WeightKg,
			Method:    MethodNone,
			Reason:    request.Reason,
			ScannedAt: at,
		})
		return txErr
	})
	if err != nil {
		return failClosed(genericFailureMessage), err
	}

	return Decision{
		Granted:    true,
		GateAction: ActionOpen,
		Status:     StatusManualOverride,
		Message:    "manual override recorded",
		Toll:       wallet.ZeroAmount(),
		Fine:       wallet.ZeroAmount(),
		Total:      wallet.ZeroAmount(),
		Passage:    &passage,
	}, nil
}

// RecordFineAdjustment records a staff-levied fine and, when a target
// account is named, debits it. Insufficient balance aborts everything.
func (engine *Engine) RecordFineAdjustment(ctx context.Context, request FineAdjustmentRequest) (ManualTransaction, *wallet.Entry, error) {
	if request.StaffID == "" {
		return ManualTransaction{}, nil, ErrMissingStaff
	}
	if request.Reason == "" {
		return ManualTransaction{}, nil, ErrMissingReason
	}
	if !request.Amount.IsPositive() {
		return ManualTransaction{}, nil, wallet.ErrInvalidAmount
	}
	gate, err := engine.store.GateByID(ctx, request.GateID)
	if err != nil {
		return ManualTransaction{}, nil, err
	}
	at := request.At
	if at.IsZero() {
		at = engine.nowFn().UTC()
	}
	metadata, err := manualMetadata(map[string]any{
		"staff":  request.StaffID,
		"reason": request.Reason,
	})
	if err != nil {
		return ManualTransaction{}, nil, err
	}

	var manual ManualTransaction
	var entry *wallet.Entry
	err = engine.store.WithTx(ctx, func(ctx context.Context, txStore Store) error {
		if request.AccountID != "" {
			accountID, txErr := wallet.NewAccountID(request.AccountID)
			if txErr != nil {
				return txErr
			}
			reference, txErr := wallet.NewReference(fmt.Sprintf("FINE-%d", at.UnixNano()))
			if txErr != nil {
				return txErr
			}
			debited, txErr := engine.wallet.DebitTx(ctx, txStore.Wallet(), accountID, request.Amount,
				fmt.Sprintf("Fine adjustment at %s", gate.Name), reference, metadata)
			if txErr != nil {
				return txErr
			}
			entry = &debited
		}
		var txErr error
		manual, txErr = txStore.InsertManualTransaction(ctx, ManualTransactionInput{
			GateID:       gate.ID,
			StaffID:      request.StaffID,
			AccountID:    request.AccountID,
			Kind:         ManualFineAdjustment,
			Amount:       request.Amount,
			Reason:       request.Reason,
			MetadataJSON: metadata,
			CreatedAt:    at,
		})
		if txErr != nil {
			return txErr
		}
		_, txErr = txStore.InsertPassage(ctx, PassageInput{
			GateID:    gate.ID,
			StaffID:   request.StaffID,
			AccountID: request.AccountID,
			Status:    StatusManualOverride,
			Toll:      wallet.ZeroAmount(),
			Fine:      request.Amount,
			Total:     request.Amount,
			Method:    fineAdjustmentMethod(request.AccountID),
			Reason:    request.Reason,
			ScannedAt: at,
		})
		return txErr
	})
	if err != nil {
		return ManualTransaction{}, nil, err
	}
	return manual, entry, nil
}

func fineAdjustmentMethod(accountID string) PaymentMethod {
	if accountID == "" {
		return MethodNone
	}
	return MethodWallet
}

func manualMetadata(fields map[string]any) (wallet.MetadataJSON, error) {
	raw, err := json.Marshal(fields)
	if err != nil {
		return wallet.MetadataJSON{}, err
	}
	return wallet.NewMetadataJSON(string(raw))
}
