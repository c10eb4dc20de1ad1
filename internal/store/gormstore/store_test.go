package gormstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/openroads/tollgate/pkg/shift"
	"github.com/openroads/tollgate/pkg/toll"
	"github.com/openroads/tollgate/pkg/wallet"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestWalletStoreCreditDebitRoundTrip(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	seedAccount(t, store, "acct-1", "CIV-1", "10.00")

	service := mustWalletService(t, store.Wallet())
	accountID := mustAccountID(t, "acct-1")

	if _, err := service.Credit(context.Background(), accountID, mustAmount(t, "5.00"), "top-up", wallet.NoReference(), mustMetadata(t, "{}")); err != nil {
		t.Fatalf("credit: %v", err)
	}
	entry, err := service.Debit(context.Background(), accountID, mustAmount(t, "2.50"), "toll", wallet.NoReference(), mustMetadata(t, "{}"))
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if entry.BalanceAfter.String() != "12.50" {
		t.Fatalf("expected balance after 12.50, got %s", entry.BalanceAfter)
	}

	balance, err := service.Balance(context.Background(), accountID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.String() != "12.50" {
		t.Fatalf("expected stored balance 12.50, got %s", balance)
	}

	entries, err := service.Entries(context.Background(), accountID, 10)
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Kind != wallet.EntryDebit {
		t.Fatalf("expected newest entry first, got %+v", entries[0])
	}
}

func TestWalletStoreDuplicateReference(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	seedAccount(t, store, "acct-1", "CIV-1", "0.00")

	service := mustWalletService(t, store.Wallet())
	accountID := mustAccountID(t, "acct-1")
	reference := mustReference(t, "PAY-1")

	if _, err := service.Credit(context.Background(), accountID, mustAmount(t, "5.00"), "top-up", reference, mustMetadata(t, "{}")); err != nil {
		t.Fatalf("credit: %v", err)
	}
	_, err := service.Credit(context.Background(), accountID, mustAmount(t, "5.00"), "top-up", reference, mustMetadata(t, "{}"))
	if !errors.Is(err, wallet.ErrDuplicateReference) {
		t.Fatalf("expected ErrDuplicateReference, got %v", err)
	}
}

func TestWalletStoreCreditOnceReplay(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	seedAccount(t, store, "acct-1", "CIV-1", "0.00")

	service := mustWalletService(t, store.Wallet())
	accountID := mustAccountID(t, "acct-1")
	reference := mustReference(t, "PAY-session-9")

	_, created, err := service.CreditOnce(context.Background(), accountID, mustAmount(t, "20.00"), "top-up", reference, mustMetadata(t, "{}"))
	if err != nil || !created {
		t.Fatalf("first credit once: created=%v err=%v", created, err)
	}
	_, created, err = service.CreditOnce(context.Background(), accountID, mustAmount(t, "20.00"), "top-up", reference, mustMetadata(t, "{}"))
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if created {
		t.Fatalf("expected the replay skipped")
	}

	balance, err := service.Balance(context.Background(), accountID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.String() != "20.00" {
		t.Fatalf("expected a single increment to 20.00, got %s", balance)
	}
}

func TestTollStorePassageFiltering(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	gate := seedGate(t, store, "G1", "2.50", "10.00", 5000)
	other := seedGate(t, store, "G2", "3.00", "10.00", 5000)

	tollStore := store.Toll()
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	insertPassage(t, tollStore, gate.ID, toll.StatusSuccess, "staff-1", base)
	insertPassage(t, tollStore, gate.ID, toll.StatusRejectedInsufficientFunds, "", base.Add(time.Minute))
	insertPassage(t, tollStore, other.ID, toll.StatusSuccess, "", base.Add(2*time.Minute))

	byGate, err := tollStore.ListPassages(context.Background(), toll.PassageFilter{GateID: gate.ID})
	if err != nil {
		t.Fatalf("list by gate: %v", err)
	}
	if len(byGate) != 2 {
		t.Fatalf("expected 2 passages at %s, got %d", gate.ID, len(byGate))
	}

	byStatus, err := tollStore.ListPassages(context.Background(), toll.PassageFilter{Status: toll.StatusSuccess})
	if err != nil {
		t.Fatalf("list by status: %v", err)
	}
	if len(byStatus) != 2 {
		t.Fatalf("expected 2 successful passages, got %d", len(byStatus))
	}

	windowed, err := tollStore.ListPassages(context.Background(), toll.PassageFilter{
		From: base.Add(30 * time.Second),
		To:   base.Add(90 * time.Second),
	})
	if err != nil {
		t.Fatalf("list by window: %v", err)
	}
	if len(windowed) != 1 {
		t.Fatalf("expected 1 passage in the window, got %d", len(windowed))
	}
}

func TestTollStoreVehicleResolutionOrder(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	tollStore := store.Toll()

	first, err := tollStore.CreateVehicle(context.Background(), toll.Vehicle{Registration: "REG-1", Tag: "TAG-dup", Active: true})
	if err != nil {
		t.Fatalf("first vehicle: %v", err)
	}
	if _, err := tollStore.CreateVehicle(context.Background(), toll.Vehicle{Registration: "REG-2", Tag: "TAG-dup", Active: true}); err != nil {
		t.Fatalf("second vehicle: %v", err)
	}
	if _, err := tollStore.CreateVehicle(context.Background(), toll.Vehicle{Registration: "REG-3", Tag: "TAG-dup", Active: false}); err != nil {
		t.Fatalf("inactive vehicle: %v", err)
	}

	matches, err := tollStore.VehiclesByTag(context.Background(), "TAG-dup")
	if err != nil {
		t.Fatalf("vehicles by tag: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected only the 2 active vehicles, got %d", len(matches))
	}
	if matches[0].ID != first.ID {
		t.Fatalf("expected the oldest registration first, got %+v", matches[0])
	}
}

func TestTollStoreHeartbeatAndHardware(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	seedGate(t, store, "G1", "2.50", "10.00", 5000)
	tollStore := store.Toll()

	if err := tollStore.RecordHeartbeat(context.Background(), "G1", time.Now().UTC()); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	if err := tollStore.RecordHeartbeat(context.Background(), "missing", time.Now().UTC()); !errors.Is(err, toll.ErrUnknownGate) {
		t.Fatalf("expected ErrUnknownGate, got %v", err)
	}

	faulted := toll.GateHardware{Mechanism: toll.StateOK, RFIDScanner: toll.StateFault, WeightSensor: toll.StateOK}
	if err := tollStore.UpdateHardwareStatus(context.Background(), "G1", faulted); err != nil {
		t.Fatalf("hardware update: %v", err)
	}
	gate, err := tollStore.GateByCode(context.Background(), "G1")
	if err != nil {
		t.Fatalf("gate by code: %v", err)
	}
	if gate.Operational() {
		t.Fatalf("expected the gate non-operational after the fault")
	}
	if gate.LastHeartbeatAt.IsZero() {
		t.Fatalf("expected the heartbeat persisted")
	}
}

func TestShiftStoreSingleActiveSession(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	gate := seedGate(t, store, "G1", "2.50", "10.00", 5000)
	shiftStore := store.Shift()

	opened, err := shiftStore.InsertSession(context.Background(), shift.SessionInput{
		StaffID: "staff-1", GateID: gate.ID, ClockInAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("insert session: %v", err)
	}

	_, err = shiftStore.InsertSession(context.Background(), shift.SessionInput{
		StaffID: "staff-1", GateID: gate.ID, ClockInAt: time.Now().UTC(),
	})
	if !errors.Is(err, shift.ErrActiveShiftExists) {
		t.Fatalf("expected ErrActiveShiftExists from the partial index, got %v", err)
	}

	summary := shift.Summary{TotalRevenue: mustAmount(t, "0.00"), CashCollected: mustAmount(t, "0.00")}
	if err := shiftStore.FinalizeSession(context.Background(), opened.ID, summary, "", time.Now().UTC()); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	// The index only guards open sessions; after close a new one may start.
	if _, err := shiftStore.InsertSession(context.Background(), shift.SessionInput{
		StaffID: "staff-1", GateID: gate.ID, ClockInAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("reopen after close: %v", err)
	}
}

func TestShiftStoreFinalizeClosedSessionFails(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	gate := seedGate(t, store, "G1", "2.50", "10.00", 5000)
	shiftStore := store.Shift()

	opened, err := shiftStore.InsertSession(context.Background(), shift.SessionInput{
		StaffID: "staff-1", GateID: gate.ID, ClockInAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("insert session: %v", err)
	}
	summary := shift.Summary{TotalRevenue: mustAmount(t, "0.00"), CashCollected: mustAmount(t, "0.00")}
	if err := shiftStore.FinalizeSession(context.Background(), opened.ID, summary, "", time.Now().UTC()); err != nil {
		t.Fatalf("first finalize: %v", err)
	}
	err = shiftStore.FinalizeSession(context.Background(), opened.ID, summary, "", time.Now().UTC())
	if !errors.Is(err, shift.ErrShiftClosed) {
		t.Fatalf("expected ErrShiftClosed, got %v", err)
	}
}

func TestEngineScenarioOverSQLite(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	seedAccount(t, store, "acct-1", "CIV-1", "50.00")
	gate := seedGate(t, store, "G1", "2.50", "10.00", 5000)
	if _, err := store.Toll().CreateVehicle(context.Background(), toll.Vehicle{
		OwnerAccountID: "acct-1", Registration: "REG-1", Tag: "TAG-1", WeightCapacityKg: 4000, Active: true,
	}); err != nil {
		t.Fatalf("vehicle: %v", err)
	}

	walletService := mustWalletService(t, store.Wallet())
	engine, err := toll.NewEngine(store.Toll(), walletService)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}

	decision, err := engine.HandleScan(context.Background(), toll.ScanRequest{GateCode: "G1", Tag: "TAG-1", WeightKg: 3000})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if !decision.Granted || decision.NewBalance == nil || decision.NewBalance.String() != "47.50" {
		t.Fatalf("unexpected decision: %+v", decision)
	}

	passages, err := engine.Passages(context.Background(), toll.PassageFilter{GateID: gate.ID})
	if err != nil {
		t.Fatalf("passages: %v", err)
	}
	if len(passages) != 1 || passages[0].Status != toll.StatusSuccess || passages[0].LedgerReference == "" {
		t.Fatalf("unexpected passage log: %+v", passages)
	}

	shiftService, err := shift.NewService(store.Shift(), time.Now)
	if err != nil {
		t.Fatalf("shift service: %v", err)
	}
	session, err := shiftService.ClockIn(context.Background(), "staff-1", gate.ID)
	if err != nil {
		t.Fatalf("clock in: %v", err)
	}
	if _, err := engine.RecordCashPayment(context.Background(), toll.CashPaymentRequest{
		GateID: gate.ID, StaffID: "staff-1", Amount: mustAmount(t, "2.50"), VehicleText: "no tag",
	}); err != nil {
		t.Fatalf("cash payment: %v", err)
	}
	closed, err := shiftService.ClockOut(context.Background(), session.ID, "", "", "")
	if err != nil {
		t.Fatalf("clock out: %v", err)
	}
	// The scan predates the shift window, so only the cash payment counts.
	if closed.Summary.CashPayments != 1 || closed.Summary.CashCollected.String() != "2.50" {
		t.Fatalf("unexpected summary: %+v", closed.Summary)
	}
}

func TestConcurrentMutationsConserveBalanceOnSQLite(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	seedAccount(t, store, "acct-1", "CIV-1", "100.00")

	service := mustWalletService(t, store.Wallet())
	accountID := mustAccountID(t, "acct-1")
	unit := mustAmount(t, "1.00")
	metadata := mustMetadata(t, "{}")

	const workers = 4
	const rounds = 5
	failures := make(chan error, workers*rounds*2)
	var wg sync.WaitGroup
	for worker := 0; worker < workers; worker++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for round := 0; round < rounds; round++ {
				if _, err := service.Credit(context.Background(), accountID, unit, "credit", wallet.NoReference(), metadata); err != nil {
					failures <- err
				}
				if _, err := service.Debit(context.Background(), accountID, unit, "debit", wallet.NoReference(), metadata); err != nil {
					failures <- err
				}
			}
		}()
	}
	wg.Wait()
	close(failures)
	for err := range failures {
		t.Errorf("concurrent mutation: %v", err)
	}

	balance, err := service.Balance(context.Background(), accountID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.String() != "100.00" {
		t.Fatalf("expected balance conserved at 100.00, got %s", balance)
	}
	entries, err := service.Entries(context.Background(), accountID, workers*rounds*2+1)
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if len(entries) != workers*rounds*2 {
		t.Fatalf("expected %d entries, got %d", workers*rounds*2, len(entries))
	}
}

// --- helpers ---

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// Every pooled connection to :memory: opens its own database; a single
	// connection keeps one database and queues concurrent transactions.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return New(db)
}

func seedAccount(t *testing.T, store *Store, id string, license string, balance string) wallet.Account {
	t.Helper()
	account, err := store.Wallet().CreateAccount(context.Background(), wallet.Account{
		ID: id, OwnerName: "Owner " + id, LicenseNumber: license, Role: wallet.RoleDriver,
		Balance: mustAmount(t, balance), Active: true,
	})
	if err != nil {
		t.Fatalf("seed account: %v", err)
	}
	return account
}

func seedGate(t *testing.T, store *Store, code string, tollRate string, fineRate string, limitKg float64) toll.Gate {
	t.Helper()
	gate, err := store.Toll().CreateGate(context.Background(), toll.Gate{
		Code: code, Name: "Gate " + code, Active: true,
		Policy: toll.FeePolicy{
			BaseTollRate:       mustAmount(t, tollRate),
			OverweightFineRate: mustAmount(t, fineRate),
			WeightLimitKg:      limitKg,
		},
	})
	if err != nil {
		t.Fatalf("seed gate: %v", err)
	}
	return gate
}

func insertPassage(t *testing.T, store *TollStore, gateID string, status toll.PassageStatus, staffID string, at time.Time) {
	t.Helper()
	if _, err := store.InsertPassage(context.Background(), toll.PassageInput{
		GateID:    gateID,
		StaffID:   staffID,
		Status:    status,
		Toll:      mustAmount(t, "2.50"),
		Fine:      mustAmount(t, "0.00"),
		Total:     mustAmount(t, "2.50"),
		Method:    toll.MethodWallet,
		ScannedAt: at,
	}); err != nil {
		t.Fatalf("insert passage: %v", err)
	}
}

func mustWalletService(t *testing.T, store wallet.Store) *wallet.Service {
	t.Helper()
	service, err := wallet.NewService(store, time.Now)
	if err != nil {
		t.Fatalf("wallet service: %v", err)
	}
	return service
}

func mustAccountID(t *testing.T, raw string) wallet.AccountID {
	t.Helper()
	value, err := wallet.NewAccountID(raw)
	if err != nil {
		t.Fatalf("account id: %v", err)
	}
	return value
}

func mustAmount(t *testing.T, raw string) wallet.Amount {
	t.Helper()
	value, err := wallet.NewAmountFromString(raw)
	if err != nil {
		t.Fatalf("amount: %v", err)
	}
	return value
}

func mustReference(t *testing.T, raw string) wallet.Reference {
	t.Helper()
	value, err := wallet.NewReference(raw)
	if err != nil {
		t.Fatalf("reference: %v", err)
	}
	return value
}

func mustMetadata(t *testing.T, raw string) wallet.MetadataJSON {
	t.Helper()
	value, err := wallet.NewMetadataJSON(raw)
	if err != nil {
		t.Fatalf("metadata: %v", err)
	}
	return value
}
