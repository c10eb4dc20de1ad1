// Package httpserver exposes the toll platform over HTTP: hardware scan
// and kiosk adapters, staff operations behind JWT auth, the payment
// webhook, and wallet views.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/openroads/tollgate/pkg/shift"
	"github.com/openroads/tollgate/pkg/toll"
	"github.com/openroads/tollgate/pkg/wallet"
	"go.uber.org/zap"
)

// Server hosts the gin router over the domain services.
type Server struct {
	cfg     Config
	logger  *zap.Logger
	engine  *toll.Engine
	wallets *wallet.Service
	shifts  *shift.Service
}

// New validates the configuration and wires a Server.
func New(cfg Config, engine *toll.Engine, wallets *wallet.Service, shifts *shift.Service, logger *zap.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("http config: %w", err)
	}
	if engine == nil || wallets == nil || shifts == nil {
		return nil, fmt.Errorf("http server: nil service dependency")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{cfg: cfg, logger: logger, engine: engine, wallets: wallets, shifts: shifts}, nil
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (server *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    server.cfg.ListenAddr,
		Handler: server.setupRouter(),
	}

	errCh := make(chan error, 1)
	go func() {
		server.logger.Info("tollgate api listening", zap.String("addr", server.cfg.ListenAddr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
			server.logger.Warn("server shutdown error", zap.Error(shutdownErr))
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (server *Server) setupRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     server.cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Origin", "Accept", "Authorization", deviceKeyHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	hardware := router.Group("/api")
	hardware.Use(deviceAuth(server.cfg.DeviceKey))
	hardware.POST("/hardware/scan", server.handleScan)
	hardware.POST("/kiosk/verify", server.handleKioskVerify)
	hardware.POST("/gates/:code/heartbeat", server.handleHeartbeat)

	staff := router.Group("/api/staff")
	staff.Use(staffAuth([]byte(server.cfg.StaffSigningKey), server.cfg.StaffIssuer))
	staff.POST("/cash-payments", server.handleCashPayment)
	staff.POST("/overrides", server.handleOverride)
	staff.POST("/fine-adjustments", server.handleFineAdjustment)
	staff.POST("/shifts/clock-in", server.handleClockIn)
	staff.POST("/shifts/clock-out", server.handleClockOut)
	staff.GET("/passages", server.handlePassages)

	gates := router.Group("/api/gates")
	gates.Use(staffAuth([]byte(server.cfg.StaffSigningKey), server.cfg.StaffIssuer))
	gates.PUT("/:code/hardware", server.handleHardwareStatus)

	router.POST("/api/webhooks/payments", server.handlePaymentWebhook)
	router.GET("/api/wallet/:account_id", server.handleWallet)

	return router
}

func (server *Server) handleScan(ctx *gin.Context) {
	var request scanPayload
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	server.respondDecision(ctx, toll.ScanRequest{
		GateCode: request.GateCode,
		Tag:      request.RFIDTag,
		WeightKg: request.WeightKg,
		At:       unixOrZero(request.Timestamp),
		Basis:    toll.BasisGateLimit,
	})
}

// handleKioskVerify is the kiosk-side adapter over the same engine. Kiosks
// judge overweight against the vehicle's own capacity rather than the
// gate limit.
func (server *Server) handleKioskVerify(ctx *gin.Context) {
	var request kioskVerifyPayload
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	server.respondDecision(ctx, toll.ScanRequest{
		GateCode: request.GateCode,
		Tag:      request.RFIDUID,
		WeightKg: request.WeightKg,
		Basis:    toll.BasisVehicleCapacity,
	})
}

func (server *Server) respondDecision(ctx *gin.Context, request toll.ScanRequest) {
	requestCtx, cancel := context.WithTimeout(ctx.Request.Context(), server.cfg.RequestTimeout)
	defer cancel()

	decision, err := server.engine.HandleScan(requestCtx, request)
	if err != nil {
		ctx.JSON(scanErrorStatus(err), gin.H{
			"error":    scanErrorEnvelope(err),
			"decision": decisionBody(decision),
		})
		return
	}
	ctx.JSON(http.StatusOK, decisionBody(decision))
}

func (server *Server) handleHeartbeat(ctx *gin.Context) {
	requestCtx, cancel := context.WithTimeout(ctx.Request.Context(), server.cfg.RequestTimeout)
	defer cancel()

	if err := server.engine.Heartbeat(requestCtx, ctx.Param("code")); err != nil {
		if errors.Is(err, toll.ErrUnknownGate) {
			ctx.JSON(http.StatusNotFound, errorResponse("unknown_gate", "no gate with that code"))
			return
		}
		server.logger.Error("heartbeat failed", zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, errorResponse("internal", "heartbeat failed"))
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (server *Server) handleHardwareStatus(ctx *gin.Context) {
	var request hardwarePayload
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	hardware, err := parseHardware(request)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_state", err.Error()))
		return
	}

	requestCtx, cancel := context.WithTimeout(ctx.Request.Context(), server.cfg.RequestTimeout)
	defer cancel()

	if err := server.engine.SetHardwareStatus(requestCtx, ctx.Param("code"), hardware); err != nil {
		if errors.Is(err, toll.ErrUnknownGate) {
			ctx.JSON(http.StatusNotFound, errorResponse("unknown_gate", "no gate with that code"))
			return
		}
		server.logger.Error("hardware status update failed", zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, errorResponse("internal", "update failed"))
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (server *Server) handleCashPayment(ctx *gin.Context) {
	claims := getStaffClaims(ctx)
	var request cashPaymentPayload
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	amount, err := wallet.NewAmountFromString(request.Amount)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_amount", "amount must be a non-negative decimal"))
		return
	}

	requestCtx, cancel := context.WithTimeout(ctx.Request.Context(), server.cfg.RequestTimeout)
	defer cancel()

	decision, err := server.engine.RecordCashPayment(requestCtx, toll.CashPaymentRequest{
		GateID:      request.GateID,
		StaffID:     claims.StaffID,
		Amount:      amount,
		WeightKg:    request.WeightKg,
		VehicleText: request.VehicleText,
		Notes:       request.Notes,
	})
	if err != nil {
		server.respondManualError(ctx, err, "cash payment")
		return
	}
	ctx.JSON(http.StatusOK, decisionBody(decision))
}

func (server *Server) handleOverride(ctx *gin.Context) {
	claims := getStaffClaims(ctx)
	var request overridePayload
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}

	requestCtx, cancel := context.WithTimeout(ctx.Request.Context(), server.cfg.RequestTimeout)
	defer cancel()

	decision, err := server.engine.RecordManualOverride(requestCtx, toll.OverrideRequest{
		GateID:   request.GateID,
		StaffID:  claims.StaffID,
		Reason:   request.Reason,
		Tag:      request.Tag,
		WeightKg: request.WeightKg,
	})
	if err != nil {
		server.respondManualError(ctx, err, "override")
		return
	}
	ctx.JSON(http.StatusOK, decisionBody(decision))
}

func (server *Server) handleFineAdjustment(ctx *gin.Context) {
	claims := getStaffClaims(ctx)
	var request fineAdjustmentPayload
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	amount, err := wallet.NewAmountFromString(request.Amount)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_amount", "amount must be a non-negative decimal"))
		return
	}

	requestCtx, cancel := context.WithTimeout(ctx.Request.Context(), server.cfg.RequestTimeout)
	defer cancel()

	transaction, entry, err := server.engine.RecordFineAdjustment(requestCtx, toll.FineAdjustmentRequest{
		GateID:    request.GateID,
		StaffID:   claims.StaffID,
		AccountID: request.AccountID,
		Amount:    amount,
		Reason:    request.Reason,
	})
	if err != nil {
		if errors.Is(err, wallet.ErrInsufficientBalance) {
			ctx.JSON(http.StatusConflict, errorResponse("insufficient_funds", "account balance cannot cover the fine"))
			return
		}
		if errors.Is(err, wallet.ErrUnknownAccount) {
			ctx.JSON(http.StatusNotFound, errorResponse("unknown_account", "no account with that id"))
			return
		}
		server.respondManualError(ctx, err, "fine adjustment")
		return
	}
	response := gin.H{
		"transaction_id": transaction.ID,
		"kind":           string(transaction.Kind),
		"amount":         transaction.Amount.String(),
	}
	if entry != nil {
		response["ledger_entry_id"] = entry.ID
		response["new_balance"] = entry.BalanceAfter.String()
	}
	ctx.JSON(http.StatusOK, response)
}

func (server *Server) respondManualError(ctx *gin.Context, err error, operation string) {
	switch {
	case errors.Is(err, toll.ErrUnknownGate):
		ctx.JSON(http.StatusNotFound, errorResponse("unknown_gate", "no gate with that id"))
	case errors.Is(err, toll.ErrMissingReason):
		ctx.JSON(http.StatusBadRequest, errorResponse("missing_reason", "a justification is required"))
	case errors.Is(err, toll.ErrMissingStaff):
		ctx.JSON(http.StatusBadRequest, errorResponse("missing_staff", "staff id is required"))
	case errors.Is(err, wallet.ErrInvalidAmount):
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_amount", "amount must be positive"))
	default:
		server.logger.Error(operation+" failed", zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, errorResponse("internal", operation+" failed"))
	}
}

func (server *Server) handleClockIn(ctx *gin.Context) {
	claims := getStaffClaims(ctx)
	var request clockInPayload
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}

	requestCtx, cancel := context.WithTimeout(ctx.Request.Context(), server.cfg.RequestTimeout)
	defer cancel()

	session, err := server.shifts.ClockIn(requestCtx, claims.StaffID, request.GateID)
	if err != nil {
		switch {
		case errors.Is(err, shift.ErrActiveShiftExists):
			ctx.JSON(http.StatusConflict, errorResponse("active_shift_exists", "clock out of the current shift first"))
		case errors.Is(err, shift.ErrMissingGate):
			ctx.JSON(http.StatusBadRequest, errorResponse("missing_gate", "gate id is required"))
		default:
			server.logger.Error("clock-in failed", zap.Error(err))
			ctx.JSON(http.StatusInternalServerError, errorResponse("internal", "clock-in failed"))
		}
		return
	}
	ctx.JSON(http.StatusOK, sessionBody(session))
}

func (server *Server) handleClockOut(ctx *gin.Context) {
	var request clockOutPayload
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}

	requestCtx, cancel := context.WithTimeout(ctx.Request.Context(), server.cfg.RequestTimeout)
	defer cancel()

	session, err := server.shifts.ClockOut(requestCtx, request.ShiftID, request.Notes, request.HandoverBody, request.HandoverToStaffID)
	if err != nil {
		switch {
		case errors.Is(err, shift.ErrUnknownShift):
			ctx.JSON(http.StatusNotFound, errorResponse("unknown_shift", "no shift with that id"))
		case errors.Is(err, shift.ErrShiftClosed):
			ctx.JSON(http.StatusConflict, errorResponse("shift_closed", "shift is already closed"))
		default:
			server.logger.Error("clock-out failed", zap.Error(err))
			ctx.JSON(http.StatusInternalServerError, errorResponse("internal", "clock-out failed"))
		}
		return
	}
	ctx.JSON(http.StatusOK, sessionBody(session))
}

func (server *Server) handlePassages(ctx *gin.Context) {
	filter := toll.PassageFilter{
		GateID:  ctx.Query("gate_id"),
		Status:  toll.PassageStatus(ctx.Query("status")),
		StaffID: ctx.Query("staff_id"),
		Limit:   intQuery(ctx, "limit"),
	}
	if from, ok := timeQuery(ctx, "from"); ok {
		filter.From = from
	}
	if to, ok := timeQuery(ctx, "to"); ok {
		filter.To = to
	}

	requestCtx, cancel := context.WithTimeout(ctx.Request.Context(), server.cfg.RequestTimeout)
	defer cancel()

	passages, err := server.engine.Passages(requestCtx, filter)
	if err != nil {
		server.logger.Error("passage list failed", zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, errorResponse("internal", "passage list failed"))
		return
	}
	records := make([]passagePayload, 0, len(passages))
	for _, passage := range passages {
		records = append(records, passageBody(passage))
	}
	ctx.JSON(http.StatusOK, gin.H{"passages": records})
}

// handlePaymentWebhook credits a wallet top-up exactly once per provider
// session. A replayed notification acknowledges with 200 and the current
// balance; no second entry is written.
func (server *Server) handlePaymentWebhook(ctx *gin.Context) {
	var request paymentWebhookPayload
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	if request.PaymentStatus != "paid" {
		ctx.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}
	accountID, err := wallet.NewAccountID(request.AccountID)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_account", "account id is required"))
		return
	}
	amount, err := wallet.NewAmountFromString(request.Amount)
	if err != nil || !amount.IsPositive() {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_amount", "amount must be a positive decimal"))
		return
	}
	reference, err := wallet.NewReference(request.ProviderSessionID)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_reference", "provider session id is required"))
		return
	}
	metadata, err := wallet.NewMetadataJSON(fmt.Sprintf(`{"provider_session_id":%q}`, request.ProviderSessionID))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "metadata rejected"))
		return
	}

	requestCtx, cancel := context.WithTimeout(ctx.Request.Context(), server.cfg.RequestTimeout)
	defer cancel()

	entry, created, err := server.wallets.CreditOnce(requestCtx, accountID, amount, "Wallet top-up", reference, metadata)
	if err != nil {
		if errors.Is(err, wallet.ErrUnknownAccount) {
			ctx.JSON(http.StatusNotFound, errorResponse("unknown_account", "no account with that id"))
			return
		}
		server.logger.Error("webhook credit failed", zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, errorResponse("internal", "credit failed"))
		return
	}
	status := "credited"
	if !created {
		status = "duplicate"
	}
	ctx.JSON(http.StatusOK, gin.H{
		"status":      status,
		"new_balance": entry.BalanceAfter.String(),
	})
}

func (server *Server) handleWallet(ctx *gin.Context) {
	accountID, err := wallet.NewAccountID(ctx.Param("account_id"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_account", "account id is required"))
		return
	}

	requestCtx, cancel := context.WithTimeout(ctx.Request.Context(), server.cfg.RequestTimeout)
	defer cancel()

	account, err := server.wallets.Account(requestCtx, accountID)
	if err != nil {
		if errors.Is(err, wallet.ErrUnknownAccount) {
			ctx.JSON(http.StatusNotFound, errorResponse("unknown_account", "no account with that id"))
			return
		}
		server.logger.Error("wallet fetch failed", zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, errorResponse("internal", "wallet unavailable"))
		return
	}
	entries, err := server.wallets.Entries(requestCtx, accountID, walletHistoryLimit)
	if err != nil {
		server.logger.Error("entry list failed", zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, errorResponse("internal", "wallet unavailable"))
		return
	}

	history := make([]entryPayload, 0, len(entries))
	for _, entry := range entries {
		history = append(history, entryPayload{
			EntryID:      entry.ID,
			Kind:         entry.Kind.String(),
			Amount:       entry.Amount.String(),
			BalanceAfter: entry.BalanceAfter.String(),
			Description:  entry.Description,
			Reference:    entry.Reference.String(),
			CreatedAt:    entry.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	ctx.JSON(http.StatusOK, gin.H{"wallet": walletResponse{
		AccountID: account.ID,
		OwnerName: account.OwnerName,
		Balance:   account.Balance.String(),
		Entries:   history,
	}})
}

func scanErrorStatus(err error) int {
	switch {
	case errors.Is(err, toll.ErrMissingTag), errors.Is(err, toll.ErrInvalidWeight):
		return http.StatusBadRequest
	case errors.Is(err, toll.ErrUnknownGate):
		return http.StatusNotFound
	case errors.Is(err, toll.ErrGateNotOperational):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func scanErrorEnvelope(err error) gin.H {
	switch {
	case errors.Is(err, toll.ErrMissingTag):
		return errorBody("missing_tag", "rfid tag is required")
	case errors.Is(err, toll.ErrInvalidWeight):
		return errorBody("invalid_weight", "weight must not be negative")
	case errors.Is(err, toll.ErrUnknownGate):
		return errorBody("unknown_gate", "no gate with that code")
	case errors.Is(err, toll.ErrGateNotOperational):
		return errorBody("gate_not_operational", "gate is out of service")
	default:
		return errorBody("internal", "unable to process scan")
	}
}

func decisionBody(decision toll.Decision) decisionPayload {
	payload := decisionPayload{
		Granted:    decision.Granted,
		GateAction: string(decision.GateAction),
		Status:     string(decision.Status),
		Message:    decision.Message,
		Toll:       decision.Toll.String(),
		Fine:       decision.Fine.String(),
		Total:      decision.Total.String(),
		Overweight: decision.Overweight,
	}
	if decision.NewBalance != nil {
		balance := decision.NewBalance.String()
		payload.NewBalance = &balance
	}
	if decision.Passage != nil {
		payload.PassageID = decision.Passage.ID
	}
	if decision.Hardware != nil {
		payload.Hardware = &hardwarePayload{
			Mechanism:    string(decision.Hardware.Mechanism),
			RFIDScanner:  string(decision.Hardware.RFIDScanner),
			WeightSensor: string(decision.Hardware.WeightSensor),
		}
	}
	return payload
}

func sessionBody(session shift.Session) gin.H {
	body := gin.H{
		"shift_id":    session.ID,
		"staff_id":    session.StaffID,
		"gate_id":     session.GateID,
		"clock_in_at": session.ClockInAt.UTC().Format(time.RFC3339),
	}
	if session.ClockOutAt != nil {
		body["clock_out_at"] = session.ClockOutAt.UTC().Format(time.RFC3339)
		body["summary"] = gin.H{
			"total_passages":      session.Summary.TotalPassages,
			"successful_passages": session.Summary.SuccessfulPassages,
			"rejected_passages":   session.Summary.RejectedPassages,
			"overrides":           session.Summary.Overrides,
			"cash_payments":       session.Summary.CashPayments,
			"total_revenue":       session.Summary.TotalRevenue.String(),
			"cash_collected":      session.Summary.CashCollected.String(),
		}
	}
	return body
}

func passageBody(passage toll.PassageRecord) passagePayload {
	return passagePayload{
		PassageID:  passage.ID,
		GateID:     passage.GateID,
		AccountID:  passage.AccountID,
		VehicleID:  passage.VehicleID,
		StaffID:    passage.StaffID,
		Tag:        passage.Tag,
		Status:     string(passage.Status),
		Toll:       passage.Toll.String(),
		Fine:       passage.Fine.String(),
		Total:      passage.Total.String(),
		WeightKg:   passage.WeightKg,
		Overweight: passage.Overweight,
		Method:     string(passage.Method),
		Reason:     passage.Reason,
		ScannedAt:  passage.ScannedAt.UTC().Format(time.RFC3339),
	}
}

func parseHardware(payload hardwarePayload) (toll.GateHardware, error) {
	mechanism, err := toll.ParseHardwareState(payload.Mechanism)
	if err != nil {
		return toll.GateHardware{}, err
	}
	scanner, err := toll.ParseHardwareState(payload.RFIDScanner)
	if err != nil {
		return toll.GateHardware{}, err
	}
	sensor, err := toll.ParseHardwareState(payload.WeightSensor)
	if err != nil {
		return toll.GateHardware{}, err
	}
	return toll.GateHardware{Mechanism: mechanism, RFIDScanner: scanner, WeightSensor: sensor}, nil
}

func unixOrZero(timestamp int64) time.Time {
	if timestamp <= 0 {
		return time.Time{}
	}
	return time.Unix(timestamp, 0).UTC()
}

func intQuery(ctx *gin.Context, name string) int {
	raw := ctx.Query(name)
	if raw == "" {
		return 0
	}
	var value int
	if _, err := fmt.Sscanf(raw, "%d", &value); err != nil {
		return 0
	}
	return value
}

func timeQuery(ctx *gin.Context, name string) (time.Time, bool) {
	raw := ctx.Query(name)
	if raw == "" {
		return time.Time{}, false
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false
	}
	return parsed, true
}

func errorResponse(code string, message string) gin.H {
	return gin.H{"error": errorBody(code, message)}
}

func errorBody(code string, message string) gin.H {
	return gin.H{
		"code":    code,
		"message": message,
	}
}

type scanPayload struct {
	GateCode  string  `json:"gate_code"`
	RFIDTag   string  `json:"rfid_tag"`
	WeightKg  float64 `json:"weight_kg"`
	Timestamp int64   `json:"timestamp"`
}

type kioskVerifyPayload struct {
	GateCode string  `json:"gate_code"`
	RFIDUID  string  `json:"rfid_uid"`
	WeightKg float64 `json:"weight_kg"`
}

type hardwarePayload struct {
	Mechanism    string `json:"mechanism"`
	RFIDScanner  string `json:"rfid_scanner"`
	WeightSensor string `json:"weight_sensor"`
}

type cashPaymentPayload struct {
	GateID      string  `json:"gate_id"`
	Amount      string  `json:"amount"`
	WeightKg    float64 `json:"weight_kg"`
	VehicleText string  `json:"vehicle_text"`
	Notes       string  `json:"notes"`
}

type overridePayload struct {
	GateID   string  `json:"gate_id"`
	Reason   string  `json:"reason"`
	Tag      string  `json:"tag"`
	WeightKg float64 `json:"weight_kg"`
}

type fineAdjustmentPayload struct {
	GateID    string `json:"gate_id"`
	AccountID string `json:"account_id"`
	Amount    string `json:"amount"`
	Reason    string `json:"reason"`
}

type clockInPayload struct {
	GateID string `json:"gate_id"`
}

type clockOutPayload struct {
	ShiftID           string `json:"shift_id"`
	Notes             string `json:"notes"`
	HandoverBody      string `json:"handover_body"`
	HandoverToStaffID string `json:"handover_to_staff_id"`
}

type paymentWebhookPayload struct {
	AccountID         string `json:"account_id"`
	Amount            string `json:"amount"`
	ProviderSessionID string `json:"provider_session_id"`
	PaymentStatus     string `json:"payment_status"`
}

type decisionPayload struct {
	Granted    bool             `json:"granted"`
	GateAction string           `json:"gate_action"`
	Status     string           `json:"status"`
	Message    string           `json:"message"`
	Toll       string           `json:"toll"`
	Fine       string           `json:"fine"`
	Total      string           `json:"total"`
	Overweight bool             `json:"overweight"`
	NewBalance *string          `json:"new_balance,omitempty"`
	PassageID  string           `json:"passage_id,omitempty"`
	Hardware   *hardwarePayload `json:"hardware,omitempty"`
}

type passagePayload struct {
	PassageID  string  `json:"passage_id"`
	GateID     string  `json:"gate_id"`
	AccountID  string  `json:"account_id,omitempty"`
	VehicleID  string  `json:"vehicle_id,omitempty"`
	StaffID    string  `json:"staff_id,omitempty"`
	Tag        string  `json:"tag,omitempty"`
	Status     string  `json:"status"`
	Toll       string  `json:"toll"`
	Fine       string  `json:"fine"`
	Total      string  `json:"total"`
	WeightKg   float64 `json:"weight_kg"`
	Overweight bool    `json:"overweight"`
	Method     string  `json:"method"`
	Reason     string  `json:"reason,omitempty"`
	ScannedAt  string  `json:"scanned_at"`
}

type walletResponse struct {
	AccountID string         `json:"account_id"`
	OwnerName string         `json:"owner_name"`
	Balance   string         `json:"balance"`
	Entries   []entryPayload `json:"entries"`
}

type entryPayload struct {
	EntryID      string `json:"entry_id"`
	Kind         string `json:"kind"`
	Amount       string `json:"amount"`
	BalanceAfter string `json:"balance_after"`
	Description  string `json:"description"`
	Reference    string `json:"reference,omitempty"`
	CreatedAt    string `json:"created_at"`
}
