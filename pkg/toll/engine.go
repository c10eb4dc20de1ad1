package toll

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/openroads/tollgate/pkg/wallet"
	"go.uber.org/zap"
)

// Engine decides every gate event. It resolves the vehicle and owner,
// computes fees, performs the wallet debit, and records the passage. The
// debit and the passage insert of a granted scan form one atomic unit;
// anything indeterminate fails closed.
type Engine struct {
	store      Store
	wallet     *wallet.Service
	exemption  ExemptionRule
	dispatcher Dispatcher
	logger     *zap.Logger
	nowFn      func() time.Time
}

// EngineOption configures an Engine instance.
type EngineOption func(*Engine)

// WithExemptionRule overrides the exemption strategy.
func WithExemptionRule(rule ExemptionRule) EngineOption {
	return func(engine *Engine) {
		engine.exemption = rule
	}
}

// WithDispatcher wires the post-commit event dispatcher.
func WithDispatcher(dispatcher Dispatcher) EngineOption {
	return func(engine *Engine) {
		engine.dispatcher = dispatcher
	}
}

// WithLogger wires a structured logger.
func WithLogger(logger *zap.Logger) EngineOption {
	return func(engine *Engine) {
		engine.logger = logger
	}
}

// WithClock overrides the engine clock.
func WithClock(now func() time.Time) EngineOption {
	return func(engine *Engine) {
		engine.nowFn = now
	}
}

// NewEngine wires an Engine.
func NewEngine(store Store, walletService *wallet.Service, options ...EngineOption) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidEngineConfig)
	}
	if walletService == nil {
		return nil, fmt.Errorf("%w: wallet dependency is nil", ErrInvalidEngineConfig)
	}
	engine := &Engine{
		store:     store,
		wallet:    walletService,
		exemption: NoExemption{},
		logger:    zap.NewNop(),
		nowFn:     time.Now,
	}
	for _, option := range options {
		if option != nil {
			option(engine)
		}
	}
	return engine, nil
}

// HandleScan runs the full decision pipeline for one scan. Classified
// rejections come back as a Decision with the matching status; unexpected
// failures are logged with context and surfaced as a generic fail-closed
// outcome so the gate never opens on an indeterminate result.
func (engine *Engine) HandleScan(ctx context.Context, request ScanRequest) (Decision, error) {
	decision, err := engine.decide(ctx, request)
	if err != nil && !isClassifiedScanError(err) {
		engine.logger.Error("scan pipeline failed",
			zap.String("gate_code", request.GateCode),
			zap.String("tag", request.Tag),
			zap.Float64("weight_kg", request.WeightKg),
			zap.Error(err),
		)
		return failClosed(genericFailureMessage), ErrSystem
	}
	return decision, err
}

func (engine *Engine) decide(ctx context.Context, request ScanRequest) (Decision, error) {
	if request.Tag == "" {
		return failClosed("rfid tag is required"), ErrMissingTag
	}
	if request.WeightKg < 0 {
		return failClosed("weight must not be negative"), ErrInvalidWeight
	}
	at := request.At
	if at.IsZero() {
		at = engine.nowFn().UTC()
	}

	gate, err := engine.store.GateByCode(ctx, request.GateCode)
	if err != nil {
		return failClosed("unknown gate"), err
	}
	if !gate.Operational() {
		// Fail fast before resolving the vehicle; the hardware sub-statuses
		// travel back to the caller.
		hardware := gate.Hardware
		decision := failClosed("gate not operational")
		decision.Hardware = &hardware
		return decision, ErrGateNotOperational
	}

	vehicle, found, err := engine.resolveVehicle(ctx, request.Tag)
	if err != nil {
		return failClosed(genericFailureMessage), err
	}
	if !found {
		return engine.rejectUnregistered(ctx, gate, request, at, "", "unregistered rfid tag")
	}
	if vehicle.OwnerAccountID == "" {
		return engine.rejectUnregistered(ctx, gate, request, at, vehicle.ID, "vehicle has no linked account")
	}
	accountID, err := wallet.NewAccountID(vehicle.OwnerAccountID)
	if err != nil {
		return failClosed(genericFailureMessage), err
	}
	account, err := engine.wallet.Account(ctx, accountID)
	if err != nil {
		if errors.Is(err, wallet.ErrUnknownAccount) {
			return engine.rejectUnregistered(ctx, gate, request, at, vehicle.ID, "owner account not found")
		}
		return failClosed(genericFailureMessage), err
	}

	exempt := engine.exemption.Exempt(account, vehicle)
	fees := ComputeFees(gate.Policy, request.Basis, request.WeightKg, vehicle.WeightCapacityKg, exempt)

	if exempt {
		return engine.grantExempt(ctx, gate, vehicle, account, request, fees, at)
	}
	if account.Balance.LessThan(fees.Total) {
		return engine.rejectInsufficient(ctx, gate, vehicle, account, request, fees, at)
	}
	return engine.commit(ctx, gate, vehicle, account, request, fees, at)
}

// commit debits the wallet and records the passage in one transaction.
func (engine *Engine) commit(ctx context.Context, gate Gate, vehicle Vehicle, account wallet.Account, request ScanRequest, fees FeeBreakdown, at time.Time) (Decision, error) {
	accountID, err := wallet.NewAccountID(account.ID)
	if err != nil {
		return failClosed(genericFailureMessage), err
	}
	reference, err := wallet.NewReference(fmt.Sprintf("TOLL-%d", at.UnixNano()))
	if err != nil {
		return failClosed(genericFailureMessage), err
	}
	metadata, err := scanMetadata(gate, vehicle, request, fees)
	if err != nil {
		return failClosed(genericFailureMessage), err
	}

	var entry wallet.Entry
	var passage PassageRecord
	err = engine.store.WithTx(ctx, func(ctx context.Context, txStore Store) error {
		var txErr error
		entry, txErr = engine.wallet.DebitTx(ctx, txStore.Wallet(), accountID, fees.Total,
			fmt.Sprintf("Toll passage at %s", gate.Name), reference, metadata)
		if txErr != nil {
			return txErr
		}
		passage, txErr = txStore.InsertPassage(ctx, PassageInput{
			GateID:          gate.ID,
			AccountID:       account.ID,
			VehicleID:       vehicle.ID,
			Tag:             request.Tag,
			Status:          StatusSuccess,
			Toll:            fees.Toll,
			Fine:            fees.Fine,
			Total:           fees.Total,
			WeightKg:        request.WeightKg,
			Overweight:      fees.Overweight,
			Method:          MethodWallet,
			LedgerReference: reference.String(),
			ScannedAt:       at,
		})
		return txErr
	})
	if err != nil {
		// The balance can move between the pre-check and the locked debit;
		// a concurrent loser is still a clean insufficient-funds rejection.
		if errors.Is(err, wallet.ErrInsufficientBalance) {
			return engine.rejectInsufficient(ctx, gate, vehicle, account, request, fees, at)
		}
		return failClosed(genericFailureMessage), err
	}

	newBalance := entry.BalanceAfter
	events := []Event{{
		Type:      EventTollSuccess,
		AccountID: account.ID,
		GateName:  gate.Name,
		Toll:      fees.Toll,
		Fine:      fees.Fine,
		Total:     fees.Total,
		At:        at,
	}}
	if fees.Overweight && fees.Fine.IsPositive() {
		events = append(events, Event{
			Type:      EventOverweightFine,
			AccountID: account.ID,
			GateName:  gate.Name,
			Fine:      fees.Fine,
			Total:     fees.Total,
			At:        at,
		})
	}
	events = append(events, Event{
		Type:      EventEmailReceipt,
		AccountID: account.ID,
		GateName:  gate.Name,
		Toll:      fees.Toll,
		Fine:      fees.Fine,
		Total:     fees.Total,
		At:        at,
	})
	engine.dispatch(ctx, events)

	return Decision{
		Granted:    true,
		GateAction: ActionOpen,
		Status:     StatusSuccess,
		Message:    "passage granted",
		Toll:       fees.Toll,
		Fine:       fees.Fine,
		Total:      fees.Total,
		Overweight: fees.Overweight,
		NewBalance: &newBalance,
		Passage:    &passage,
	}, nil
}

// grantExempt records a zero-charge success without touching the wallet.
func (engine *Engine) grantExempt(ctx context.Context, gate Gate, vehicle Vehicle, account wallet.Account, request ScanRequest, fees FeeBreakdown, at time.Time) (Decision, error) {
	passage, err := engine.store.InsertPassage(ctx, PassageInput{
		GateID:     gate.ID,
		AccountID:  account.ID,
		VehicleID:  vehicle.ID,
		Tag:        request.Tag,
		Status:     StatusSuccess,
		Toll:       wallet.ZeroAmount(),
		Fine:       wallet.ZeroAmount(),
		Total:      wallet.ZeroAmount(),
		WeightKg:   request.WeightKg,
		Overweight: fees.Overweight,
		Method:     MethodGovernmentalExemption,
		Reason:     "governmental exemption",
		ScannedAt:  at,
	})
	if err != nil {
		return failClosed(genericFailureMessage), err
	}
	engine.dispatch(ctx, []Event{{
		Type:      EventTollSuccess,
		AccountID: account.ID,
		GateName:  gate.Name,
		At:        at,
	}})
	balance := account.Balance
	return Decision{
		Granted:    true,
		GateAction: ActionOpen,
		Status:     StatusSuccess,
		Message:    "passage granted (exempt)",
		Toll:       wallet.ZeroAmount(),
		Fine:       wallet.ZeroAmount(),
		Total:      wallet.ZeroAmount(),
		Overweight: fees.Overweight,
		NewBalance: &balance,
		Passage:    &passage,
	}, nil
}

func (engine *Engine) rejectInsufficient(ctx context.Context, gate Gate, vehicle Vehicle, account wallet.Account, request ScanRequest, fees FeeBreakdown, at time.Time) (Decision, error) {
	passage, err := engine.store.InsertPassage(ctx, PassageInput{
		GateID:     gate.ID,
		AccountID:  account.ID,
		VehicleID:  vehicle.ID,
		Tag:        request.Tag,
		Status:     StatusRejectedInsufficientFunds,
		Toll:       fees.Toll,
		Fine:       fees.Fine,
		Total:      fees.Total,
		WeightKg:   request.WeightKg,
		Overweight: fees.Overweight,
		Method:     MethodNone,
		Reason:     fmt.Sprintf("required %s, available %s", fees.Total, account.Balance),
		ScannedAt:  at,
	})
	if err != nil {
		return failClosed(genericFailureMessage), err
	}
	engine.dispatch(ctx, []Event{
		{
			Type:      EventLowBalance,
			AccountID: account.ID,
			GateName:  gate.Name,
			Required:  fees.Total,
			Available: account.Balance,
			At:        at,
		},
		{
			Type:      EventTollFailed,
			AccountID: account.ID,
			GateName:  gate.Name,
			Total:     fees.Total,
			At:        at,
		},
	})
	balance := account.Balance
	return Decision{
		Granted:    false,
		GateAction: ActionClose,
		Status:     StatusRejectedInsufficientFunds,
		Message:    "insufficient balance",
		Toll:       fees.Toll,
		Fine:       fees.Fine,
		Total:      fees.Total,
		Overweight: fees.Overweight,
		NewBalance: &balance,
		Passage:    &passage,
	}, nil
}

func (engine *Engine) rejectUnregistered(ctx context.Context, gate Gate, request ScanRequest, at time.Time, vehicleID string, reason string) (Decision, error) {
	passage, err := engine.store.InsertPassage(ctx, PassageInput{
		GateID:    gate.ID,
		VehicleID: vehicleID,
		Tag:       request.Tag,
		Status:    StatusRejectedUnregistered,
		Toll:      wallet.ZeroAmount(),
		Fine:      wallet.ZeroAmount(),
		Total:     wallet.ZeroAmount(),
		WeightKg:  request.WeightKg,
		Method:    MethodNone,
		Reason:    reason,
		ScannedAt: at,
	})
	if err != nil {
		return failClosed(genericFailureMessage), err
	}
	engine.dispatch(ctx, []Event{{
		Type:     EventTollFailed,
		GateName: gate.Name,
		At:       at,
	}})
	return Decision{
		Granted:    false,
		GateAction: ActionClose,
		Status:     StatusRejectedUnregistered,
		Message:    reason,
		Toll:       wallet.ZeroAmount(),
		Fine:       wallet.ZeroAmount(),
		Total:      wallet.ZeroAmount(),
		Passage:    &passage,
	}, nil
}

// resolveVehicle returns the first active vehicle carrying the tag. Tags
// are not unique in the data set; an ambiguous match is resolved to the
// oldest registration and logged for follow-up.
func (engine *Engine) resolveVehicle(ctx context.Context, tag string) (Vehicle, bool, error) {
	vehicles, err := engine.store.VehiclesByTag(ctx, tag)
	if err != nil {
		return Vehicle{}, false, err
	}
	if len(vehicles) == 0 {
		return Vehicle{}, false, nil
	}
	if len(vehicles) > 1 {
		engine.logger.Warn("ambiguous rfid tag",
			zap.String("tag", tag),
			zap.Int("active_matches", len(vehicles)),
			zap.String("resolved_vehicle_id", vehicles[0].ID),
		)
	}
	return vehicles[0], true, nil
}

// Passages lists passage records for monitoring and reconciliation.
func (engine *Engine) Passages(ctx context.Context, filter PassageFilter) ([]PassageRecord, error) {
	return engine.store.ListPassages(ctx, filter)
}

// Heartbeat records that a gate controller checked in.
func (engine *Engine) Heartbeat(ctx context.Context, gateCode string) error {
	return engine.store.RecordHeartbeat(ctx, gateCode, engine.nowFn().UTC())
}

// SetHardwareStatus updates a gate's sub-system health flags.
func (engine *Engine) SetHardwareStatus(ctx context.Context, gateCode string, hardware GateHardware) error {
	return engine.store.UpdateHardwareStatus(ctx, gateCode, hardware)
}

// Gate returns the gate configuration for a code.
func (engine *Engine) Gate(ctx context.Context, gateCode string) (Gate, error) {
	return engine.store.GateByCode(ctx, gateCode)
}

func (engine *Engine) dispatch(ctx context.Context, events []Event) {
	if engine.dispatcher == nil || len(events) == 0 {
		return
	}
	engine.dispatcher.Dispatch(ctx, events)
}

func failClosed(message string) Decision {
	return Decision{
		Granted:    false,
		GateAction: ActionClose,
		Message:    message,
		Toll:       wallet.ZeroAmount(),
		Fine:       wallet.ZeroAmount(),
		Total:      wallet.ZeroAmount(),
	}
}

func isClassifiedScanError(err error) bool {
	return errors.Is(err, ErrUnknownGate) ||
		errors.Is(err, ErrGateNotOperational) ||
		errors.Is(err, ErrMissingTag) ||
		errors.Is(err, ErrInvalidWeight)
}

func scanMetadata(gate Gate, vehicle Vehicle, request ScanRequest, fees FeeBreakdown) (wallet.MetadataJSON, error) {
	raw, err := json.Marshal(map[string]any{
		"gate_id":      gate.ID,
		"gate_code":    gate.Code,
		"vehicle_id":   vehicle.ID,
		"registration": vehicle.Registration,
		"tag":          request.Tag,
		"weight_kg":    request.WeightKg,
		"toll":         fees.Toll.String(),
		"fine":         fees.Fine.String(),
		"overweight":   fees.Overweight,
	})
	if err != nil {
		return wallet.MetadataJSON{}, err
	}
	return wallet.NewMetadataJSON(string(raw))
}

const genericFailureMessage = "unable to process scan"
