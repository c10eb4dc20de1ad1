package toll

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/openroads/tollgate/pkg/wallet"
)

func TestScanGrantsAndDebitsWallet(t *testing.T) {
	t.Parallel()
	fixture := newEngineFixture(t)
	fixture.addAccount(t, "acct-1", "CIV-100", "50.00")
	fixture.addVehicle("veh-1", "acct-1", "TAG-1", 4000)

	decision, err := fixture.engine.HandleScan(context.Background(), ScanRequest{
		GateCode: "G1", Tag: "TAG-1", WeightKg: 3000,
	})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if !decision.Granted || decision.GateAction != ActionOpen || decision.Status != StatusSuccess {
		t.Fatalf("expected granted open success, got %+v", decision)
	}
	if decision.Total.String() != "2.50" {
		t.Fatalf("expected total 2.50, got %s", decision.Total)
	}
	if decision.NewBalance == nil || decision.NewBalance.String() != "47.50" {
		t.Fatalf("expected new balance 47.50, got %v", decision.NewBalance)
	}
	if got := fixture.store.wallet.balance("acct-1"); got != "47.50" {
		t.Fatalf("expected stored balance 47.50, got %s", got)
	}
	passage := fixture.store.lastPassage(t)
	if passage.Status != StatusSuccess || passage.Method != MethodWallet {
		t.Fatalf("unexpected passage: %+v", passage)
	}
	if passage.LedgerReference == "" {
		t.Fatalf("expected a ledger reference on the passage")
	}
	fixture.dispatcher.expectTypes(t, EventTollSuccess, EventEmailReceipt)
}

func TestScanOverweightChargesFine(t *testing.T) {
	t.Parallel()
	fixture := newEngineFixture(t)
	fixture.addAccount(t, "acct-1", "CIV-100", "50.00")
	fixture.addVehicle("veh-1", "acct-1", "TAG-1", 4000)

	decision, err := fixture.engine.HandleScan(context.Background(), ScanRequest{
		GateCode: "G1", Tag: "TAG-1", WeightKg: 5500,
	})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if !decision.Granted || !decision.Overweight {
		t.Fatalf("expected granted overweight passage, got %+v", decision)
	}
	if decision.Toll.String() != "2.50" || decision.Fine.String() != "10.00" || decision.Total.String() != "12.50" {
		t.Fatalf("unexpected charges: %+v", decision)
	}
	if got := fixture.store.wallet.balance("acct-1"); got != "37.50" {
		t.Fatalf("expected balance 37.50, got %s", got)
	}
	fixture.dispatcher.expectTypes(t, EventTollSuccess, EventOverweightFine, EventEmailReceipt)
}

func TestScanInsufficientFundsRejects(t *testing.T) {
	t.Parallel()
	fixture := newEngineFixture(t)
	fixture.addAccount(t, "acct-1", "CIV-100", "1.00")
	fixture.addVehicle("veh-1", "acct-1", "TAG-1", 4000)

	decision, err := fixture.engine.HandleScan(context.Background(), ScanRequest{
		GateCode: "G1", Tag: "TAG-1", WeightKg: 3000,
	})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if decision.Granted || decision.GateAction != ActionClose || decision.Status != StatusRejectedInsufficientFunds {
		t.Fatalf("expected closed rejection, got %+v", decision)
	}
	if got := fixture.store.wallet.balance("acct-1"); got != "1.00" {
		t.Fatalf("expected balance untouched at 1.00, got %s", got)
	}
	passage := fixture.store.lastPassage(t)
	if passage.Status != StatusRejectedInsufficientFunds {
		t.Fatalf("expected a rejection passage, got %+v", passage)
	}

	events := fixture.dispatcher.snapshot()
	if len(events) != 2 || events[0].Type != EventLowBalance || events[1].Type != EventTollFailed {
		t.Fatalf("expected low_balance then toll_failed, got %+v", events)
	}
	if events[0].Required.String() != "2.50" || events[0].Available.String() != "1.00" {
		t.Fatalf("expected required/available amounts on the low balance event, got %+v", events[0])
	}
}

func TestScanUnregisteredTagRejects(t *testing.T) {
	t.Parallel()
	fixture := newEngineFixture(t)

	decision, err := fixture.engine.HandleScan(context.Background(), ScanRequest{
		GateCode: "G1", Tag: "TAG-unknown", WeightKg: 3000,
	})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if decision.Granted || decision.Status != StatusRejectedUnregistered {
		t.Fatalf("expected unregistered rejection, got %+v", decision)
	}
	passage := fixture.store.lastPassage(t)
	if passage.Status != StatusRejectedUnregistered || passage.Tag != "TAG-unknown" {
		t.Fatalf("expected the attempt recorded, got %+v", passage)
	}
	fixture.dispatcher.expectTypes(t, EventTollFailed)
}

func TestScanVehicleWithoutAccountRejects(t *testing.T) {
	t.Parallel()
	fixture := newEngineFixture(t)
	fixture.addVehicle("veh-1", "", "TAG-1", 4000)

	decision, err := fixture.engine.HandleScan(context.Background(), ScanRequest{
		GateCode: "G1", Tag: "TAG-1", WeightKg: 3000,
	})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if decision.Granted || decision.Status != StatusRejectedUnregistered {
		t.Fatalf("expected unregistered rejection, got %+v", decision)
	}
}

func TestScanExemptLicensePassesFree(t *testing.T) {
	t.Parallel()
	fixture := newEngineFixture(t, WithExemptionRule(GovernmentalPrefix{Prefix: "GOV-"}))
	fixture.addAccount(t, "acct-1", "GOV-7", "50.00")
	fixture.addVehicle("veh-1", "acct-1", "TAG-1", 4000)

	decision, err := fixture.engine.HandleScan(context.Background(), ScanRequest{
		GateCode: "G1", Tag: "TAG-1", WeightKg: 6000,
	})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if !decision.Granted || !decision.Total.IsZero() {
		t.Fatalf("expected a free passage, got %+v", decision)
	}
	if !decision.Overweight {
		t.Fatalf("expected the overweight flag preserved for the audit trail")
	}
	if got := fixture.store.wallet.balance("acct-1"); got != "50.00" {
		t.Fatalf("expected balance untouched, got %s", got)
	}
	passage := fixture.store.lastPassage(t)
	if passage.Method != MethodGovernmentalExemption {
		t.Fatalf("expected governmental exemption method, got %+v", passage)
	}
}

func TestScanUnknownGateFailsClosed(t *testing.T) {
	t.Parallel()
	fixture := newEngineFixture(t)

	decision, err := fixture.engine.HandleScan(context.Background(), ScanRequest{
		GateCode: "missing", Tag: "TAG-1", WeightKg: 3000,
	})
	if !errors.Is(err, ErrUnknownGate) {
		t.Fatalf("expected ErrUnknownGate, got %v", err)
	}
	if decision.Granted || decision.GateAction != ActionClose {
		t.Fatalf("expected fail-closed decision, got %+v", decision)
	}
}

func TestScanNonOperationalGateFailsClosed(t *testing.T) {
	t.Parallel()
	fixture := newEngineFixture(t)
	fixture.addAccount(t, "acct-1", "CIV-100", "50.00")
	fixture.addVehicle("veh-1", "acct-1", "TAG-1", 4000)
	fixture.store.setHardware("G1", GateHardware{Mechanism: StateFault, RFIDScanner: StateOK, WeightSensor: StateOK})

	decision, err := fixture.engine.HandleScan(context.Background(), ScanRequest{
		GateCode: "G1", Tag: "TAG-1", WeightKg: 3000,
	})
	if !errors.Is(err, ErrGateNotOperational) {
		t.Fatalf("expected ErrGateNotOperational, got %v", err)
	}
	if decision.Granted || decision.Hardware == nil {
		t.Fatalf("expected closed decision with hardware detail, got %+v", decision)
	}
	if decision.Hardware.Mechanism != StateFault {
		t.Fatalf("expected the faulted sub-system reported, got %+v", decision.Hardware)
	}
	if got := fixture.store.wallet.balance("acct-1"); got != "50.00" {
		t.Fatalf("expected no charge from a faulted gate, got %s", got)
	}
}

func TestScanStoreFailureNeverOpensGate(t *testing.T) {
	t.Parallel()
	fixture := newEngineFixture(t)
	fixture.addAccount(t, "acct-1", "CIV-100", "50.00")
	fixture.addVehicle("veh-1", "acct-1", "TAG-1", 4000)
	fixture.store.failPassageInsert = errors.New("disk full")

	decision, err := fixture.engine.HandleScan(context.Background(), ScanRequest{
		GateCode: "G1", Tag: "TAG-1", WeightKg: 3000,
	})
	if !errors.Is(err, ErrSystem) {
		t.Fatalf("expected ErrSystem, got %v", err)
	}
	if decision.Granted || decision.GateAction != ActionClose {
		t.Fatalf("expected fail-closed decision, got %+v", decision)
	}
	if got := fixture.store.wallet.balance("acct-1"); got != "50.00" {
		t.Fatalf("expected the debit rolled back with the passage, got %s", got)
	}
}

func TestScanMissingTagRejected(t *testing.T) {
	t.Parallel()
	fixture := newEngineFixture(t)

	_, err := fixture.engine.HandleScan(context.Background(), ScanRequest{GateCode: "G1", WeightKg: 100})
	if !errors.Is(err, ErrMissingTag) {
		t.Fatalf("expected ErrMissingTag, got %v", err)
	}

	_, err = fixture.engine.HandleScan(context.Background(), ScanRequest{GateCode: "G1", Tag: "TAG-1", WeightKg: -5})
	if !errors.Is(err, ErrInvalidWeight) {
		t.Fatalf("expected ErrInvalidWeight, got %v", err)
	}
}

func TestAmbiguousTagResolvesToOldestActiveVehicle(t *testing.T) {
	t.Parallel()
	fixture := newEngineFixture(t)
	fixture.addAccount(t, "acct-old", "CIV-1", "50.00")
	fixture.addAccount(t, "acct-new", "CIV-2", "50.00")
	fixture.addVehicle("veh-old", "acct-old", "TAG-dup", 4000)
	fixture.addVehicle("veh-new", "acct-new", "TAG-dup", 4000)

	decision, err := fixture.engine.HandleScan(context.Background(), ScanRequest{
		GateCode: "G1", Tag: "TAG-dup", WeightKg: 3000,
	})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if !decision.Granted {
		t.Fatalf("expected a granted passage, got %+v", decision)
	}
	if got := fixture.store.wallet.balance("acct-old"); got != "47.50" {
		t.Fatalf("expected the first registration charged, got %s", got)
	}
	if got := fixture.store.wallet.balance("acct-new"); got != "50.00" {
		t.Fatalf("expected the second registration untouched, got %s", got)
	}
}

func TestRecordCashPaymentOpensGate(t *testing.T) {
	t.Parallel()
	fixture := newEngineFixture(t)

	decision, err := fixture.engine.RecordCashPayment(context.Background(), CashPaymentRequest{
		GateID:      "gate-1",
		StaffID:     "staff-1",
		Amount:      mustTollAmount(t, "2.50"),
		VehicleText: "blue truck, no tag",
	})
	if err != nil {
		t.Fatalf("cash payment: %v", err)
	}
	if !decision.Granted || decision.Status != StatusCashPayment {
		t.Fatalf("expected granted cash payment, got %+v", decision)
	}
	passage := fixture.store.lastPassage(t)
	if passage.Method != MethodCash || passage.Total.String() != "2.50" || passage.StaffID != "staff-1" {
		t.Fatalf("unexpected passage: %+v", passage)
	}
	if len(fixture.store.manuals) != 1 || fixture.store.manuals[0].Kind != ManualCashPayment {
		t.Fatalf("expected one cash manual transaction, got %+v", fixture.store.manuals)
	}
}

func TestRecordManualOverrideRequiresReason(t *testing.T) {
	t.Parallel()
	fixture := newEngineFixture(t)

	_, err := fixture.engine.RecordManualOverride(context.Background(), OverrideRequest{
		GateID: "gate-1", StaffID: "staff-1",
	})
	if !errors.Is(err, ErrMissingReason) {
		t.Fatalf("expected ErrMissingReason, got %v", err)
	}
	if len(fixture.store.passages) != 0 {
		t.Fatalf("expected no passage without a reason")
	}

	decision, err := fixture.engine.RecordManualOverride(context.Background(), OverrideRequest{
		GateID: "gate-1", StaffID: "staff-1", Reason: "ambulance convoy",
	})
	if err != nil {
		t.Fatalf("override: %v", err)
	}
	if !decision.Granted || decision.Status != StatusManualOverride || !decision.Total.IsZero() {
		t.Fatalf("expected free override, got %+v", decision)
	}
}

func TestFineAdjustmentDebitsAtomically(t *testing.T) {
	t.Parallel()
	fixture := newEngineFixture(t)
	fixture.addAccount(t, "acct-1", "CIV-100", "30.00")

	manual, entry, err := fixture.engine.RecordFineAdjustment(context.Background(), FineAdjustmentRequest{
		GateID: "gate-1", StaffID: "staff-1", AccountID: "acct-1",
		Amount: mustTollAmount(t, "10.00"), Reason: "axle overload follow-up",
	})
	if err != nil {
		t.Fatalf("fine adjustment: %v", err)
	}
	if manual.Kind != ManualFineAdjustment {
		t.Fatalf("unexpected manual transaction: %+v", manual)
	}
	if entry == nil || entry.BalanceAfter.String() != "20.00" {
		t.Fatalf("expected wallet debit to 20.00, got %+v", entry)
	}
}

func TestFineAdjustmentInsufficientBalanceLeavesNoTrace(t *testing.T) {
	t.Parallel()
	fixture := newEngineFixture(t)
	fixture.addAccount(t, "acct-1", "CIV-100", "5.00")

	_, _, err := fixture.engine.RecordFineAdjustment(context.Background(), FineAdjustmentRequest{
		GateID: "gate-1", StaffID: "staff-1", AccountID: "acct-1",
		Amount: mustTollAmount(t, "10.00"), Reason: "axle overload follow-up",
	})
	if !errors.Is(err, wallet.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if got := fixture.store.wallet.balance("acct-1"); got != "5.00" {
		t.Fatalf("expected balance untouched, got %s", got)
	}
	if len(fixture.store.manuals) != 0 || len(fixture.store.passages) != 0 {
		t.Fatalf("expected no partial records after the rollback")
	}
}

func TestHeartbeatAndHardwareStatus(t *testing.T) {
	t.Parallel()
	fixture := newEngineFixture(t)

	if err := fixture.engine.Heartbeat(context.Background(), "G1"); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	if fixture.store.heartbeats["G1"].IsZero() {
		t.Fatalf("expected a heartbeat timestamp recorded")
	}

	faulted := GateHardware{Mechanism: StateOK, RFIDScanner: StateFault, WeightSensor: StateOK}
	if err := fixture.engine.SetHardwareStatus(context.Background(), "G1", faulted); err != nil {
		t.Fatalf("set hardware: %v", err)
	}
	gate, err := fixture.engine.Gate(context.Background(), "G1")
	if err != nil {
		t.Fatalf("gate: %v", err)
	}
	if gate.Operational() {
		t.Fatalf("expected the gate non-operational with a faulted scanner")
	}
}

// --- helpers ---

type engineFixture struct {
	store      *stubTollStore
	dispatcher *recordingDispatcher
	engine     *Engine
}

func newEngineFixture(t *testing.T, options ...EngineOption) *engineFixture {
	t.Helper()
	store := newStubTollStore(t)
	dispatcher := &recordingDispatcher{}
	walletService, err := wallet.NewService(store.wallet, time.Now)
	if err != nil {
		t.Fatalf("wallet service: %v", err)
	}
	options = append([]EngineOption{WithDispatcher(dispatcher)}, options...)
	engine, err := NewEngine(store, walletService, options...)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	return &engineFixture{store: store, dispatcher: dispatcher, engine: engine}
}

func (fixture *engineFixture) addAccount(t *testing.T, id string, license string, balance string) {
	t.Helper()
	amount, err := wallet.NewAmountFromString(balance)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	fixture.store.wallet.accounts[id] = wallet.Account{
		ID: id, OwnerName: "Owner " + id, LicenseNumber: license, Role: wallet.RoleDriver, Balance: amount, Active: true,
	}
}

func (fixture *engineFixture) addVehicle(id string, ownerAccountID string, tag string, capacityKg float64) {
	fixture.store.vehicleSeq++
	fixture.store.vehicles = append(fixture.store.vehicles, Vehicle{
		ID:               id,
		OwnerAccountID:   ownerAccountID,
		Registration:     "REG-" + id,
		Tag:              tag,
		WeightCapacityKg: capacityKg,
		Active:           true,
		CreatedAt:        time.Unix(int64(fixture.store.vehicleSeq), 0),
	})
}

// stubTollStore backs the engine with in-memory state. WithTx snapshots the
// wallet and record slices and restores them when the callback fails, which
// mirrors the transactional rollback of the real store.
type stubTollStore struct {
	wallet            *stubWalletStore
	gates             map[string]Gate
	vehicles          []Vehicle
	vehicleSeq        int
	passages          []PassageRecord
	manuals           []ManualTransaction
	heartbeats        map[string]time.Time
	failPassageInsert error
	passageSeq        int
}

func newStubTollStore(t *testing.T) *stubTollStore {
	t.Helper()
	policy := testPolicy(t, "2.50", "10.00", 5000)
	return &stubTollStore{
		wallet: newStubWalletStore(),
		gates: map[string]Gate{
			"G1": {
				ID: "gate-1", Code: "G1", Name: "North Gate", Policy: policy, Active: true,
				Hardware: GateHardware{Mechanism: StateOK, RFIDScanner: StateOK, WeightSensor: StateOK},
			},
		},
		heartbeats: make(map[string]time.Time),
	}
}

func (s *stubTollStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error {
	balances := s.wallet.snapshotBalances()
	entries := len(s.wallet.entries)
	passages := len(s.passages)
	manuals := len(s.manuals)
	if err := fn(ctx, s); err != nil {
		s.wallet.restoreBalances(balances, entries)
		s.passages = s.passages[:passages]
		s.manuals = s.manuals[:manuals]
		return err
	}
	return nil
}

func (s *stubTollStore) Wallet() wallet.Store {
	return s.wallet
}

func (s *stubTollStore) GateByCode(ctx context.Context, code string) (Gate, error) {
	gate, ok := s.gates[code]
	if !ok {
		return Gate{}, ErrUnknownGate
	}
	return gate, nil
}

func (s *stubTollStore) GateByID(ctx context.Context, id string) (Gate, error) {
	for _, gate := range s.gates {
		if gate.ID == id {
			return gate, nil
		}
	}
	return Gate{}, ErrUnknownGate
}

func (s *stubTollStore) VehiclesByTag(ctx context.Context, tag string) ([]Vehicle, error) {
	matches := make([]Vehicle, 0, 1)
	for _, vehicle := range s.vehicles {
		if vehicle.Tag == tag && vehicle.Active {
			matches = append(matches, vehicle)
		}
	}
	return matches, nil
}

func (s *stubTollStore) InsertPassage(ctx context.Context, input PassageInput) (PassageRecord, error) {
	if s.failPassageInsert != nil {
		return PassageRecord{}, s.failPassageInsert
	}
	s.passageSeq++
	record := PassageRecord{
		ID:              fmt.Sprintf("passage-%d", s.passageSeq),
		GateID:          input.GateID,
		AccountID:       input.AccountID,
		VehicleID:       input.VehicleID,
		StaffID:         input.StaffID,
		Tag:             input.Tag,
		Status:          input.Status,
		Toll:            input.Toll,
		Fine:            input.Fine,
		Total:           input.Total,
		WeightKg:        input.WeightKg,
		Overweight:      input.Overweight,
		Method:          input.Method,
		Reason:          input.Reason,
		LedgerReference: input.LedgerReference,
		ScannedAt:       input.ScannedAt,
	}
	s.passages = append(s.passages, record)
	return record, nil
}

func (s *stubTollStore) ListPassages(ctx context.Context, filter PassageFilter) ([]PassageRecord, error) {
	return append([]PassageRecord(nil), s.passages...), nil
}

func (s *stubTollStore) InsertManualTransaction(ctx context.Context, input ManualTransactionInput) (ManualTransaction, error) {
	manual := ManualTransaction{
		ID:           fmt.Sprintf("manual-%d", len(s.manuals)+1),
		GateID:       input.GateID,
		StaffID:      input.StaffID,
		AccountID:    input.AccountID,
		Kind:         input.Kind,
		Amount:       input.Amount,
		Reason:       input.Reason,
		Notes:        input.Notes,
		MetadataJSON: input.MetadataJSON,
		CreatedAt:    input.CreatedAt,
	}
	s.manuals = append(s.manuals, manual)
	return manual, nil
}

func (s *stubTollStore) RecordHeartbeat(ctx context.Context, code string, at time.Time) error {
	if _, ok := s.gates[code]; !ok {
		return ErrUnknownGate
	}
	s.heartbeats[code] = at
	return nil
}

func (s *stubTollStore) UpdateHardwareStatus(ctx context.Context, code string, hardware GateHardware) error {
	gate, ok := s.gates[code]
	if !ok {
		return ErrUnknownGate
	}
	gate.Hardware = hardware
	s.gates[code] = gate
	return nil
}

func (s *stubTollStore) setHardware(code string, hardware GateHardware) {
	gate := s.gates[code]
	gate.Hardware = hardware
	s.gates[code] = gate
}

func (s *stubTollStore) lastPassage(t *testing.T) PassageRecord {
	t.Helper()
	if len(s.passages) == 0 {
		t.Fatalf("no passage recorded")
	}
	return s.passages[len(s.passages)-1]
}

// stubWalletStore implements wallet.Store for the engine tests.
type stubWalletStore struct {
	accounts map[string]wallet.Account
	entries  []wallet.Entry
}

func newStubWalletStore() *stubWalletStore {
	return &stubWalletStore{accounts: make(map[string]wallet.Account)}
}

func (s *stubWalletStore) snapshotBalances() map[string]wallet.Account {
	snapshot := make(map[string]wallet.Account, len(s.accounts))
	for id, account := range s.accounts {
		snapshot[id] = account
	}
	return snapshot
}

func (s *stubWalletStore) restoreBalances(snapshot map[string]wallet.Account, entryCount int) {
	s.accounts = snapshot
	s.entries = s.entries[:entryCount]
}

func (s *stubWalletStore) balance(accountID string) string {
	return s.accounts[accountID].Balance.String()
}

func (s *stubWalletStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore wallet.Store) error) error {
	return fn(ctx, s)
}

func (s *stubWalletStore) AccountByID(ctx context.Context, accountID wallet.AccountID) (wallet.Account, error) {
	account, ok := s.accounts[accountID.String()]
	if !ok {
		return wallet.Account{}, wallet.ErrUnknownAccount
	}
	return account, nil
}

func (s *stubWalletStore) AccountForUpdate(ctx context.Context, accountID wallet.AccountID) (wallet.Account, error) {
	return s.AccountByID(ctx, accountID)
}

func (s *stubWalletStore) UpdateAccountBalance(ctx context.Context, accountID wallet.AccountID, balance wallet.Amount) error {
	account, ok := s.accounts[accountID.String()]
	if !ok {
		return wallet.ErrUnknownAccount
	}
	account.Balance = balance
	s.accounts[accountID.String()] = account
	return nil
}

func (s *stubWalletStore) InsertEntry(ctx context.Context, input wallet.EntryInput) (wallet.Entry, error) {
	entry := wallet.Entry{
		ID:           fmt.Sprintf("entry-%d", len(s.entries)+1),
		AccountID:    input.AccountID.String(),
		Kind:         input.Kind,
		Amount:       input.Amount,
		BalanceAfter: input.BalanceAfter,
		Description:  input.Description,
		Reference:    input.Reference,
		MetadataJSON: input.MetadataJSON,
		CreatedAt:    input.CreatedAt,
	}
	s.entries = append(s.entries, entry)
	return entry, nil
}

func (s *stubWalletStore) EntryByReference(ctx context.Context, reference wallet.Reference) (wallet.Entry, bool, error) {
	for _, entry := range s.entries {
		if entry.Reference.String() == reference.String() {
			return entry, true, nil
		}
	}
	return wallet.Entry{}, false, nil
}

func (s *stubWalletStore) ListEntries(ctx context.Context, accountID wallet.AccountID, limit int) ([]wallet.Entry, error) {
	return append([]wallet.Entry(nil), s.entries...), nil
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []Event
}

func (dispatcher *recordingDispatcher) Dispatch(_ context.Context, events []Event) {
	dispatcher.mu.Lock()
	defer dispatcher.mu.Unlock()
	dispatcher.events = append(dispatcher.events, events...)
}

func (dispatcher *recordingDispatcher) snapshot() []Event {
	dispatcher.mu.Lock()
	defer dispatcher.mu.Unlock()
	return append([]Event(nil), dispatcher.events...)
}

func (dispatcher *recordingDispatcher) expectTypes(t *testing.T, expected ...EventType) {
	t.Helper()
	events := dispatcher.snapshot()
	if len(events) != len(expected) {
		t.Fatalf("expected %d events %v, got %+v", len(expected), expected, events)
	}
	for index, eventType := range expected {
		if events[index].Type != eventType {
			t.Fatalf("expected event %d to be %s, got %s", index, eventType, events[index].Type)
		}
	}
}

func mustTollAmount(t *testing.T, raw string) wallet.Amount {
	t.Helper()
	amount, err := wallet.NewAmountFromString(raw)
	if err != nil {
		t.Fatalf("amount: %v", err)
	}
	return amount
}
