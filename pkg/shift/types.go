package shift

import (
	"context"
	"errors"
	"time"

	"github.com/openroads/tollgate/pkg/toll"
	"github.com/openroads/tollgate/pkg/wallet"
)

// Domain-level error values returned by the shift service.
var (
	ErrActiveShiftExists    = errors.New("active shift exists")
	ErrShiftClosed          = errors.New("shift already closed")
	ErrUnknownShift         = errors.New("unknown shift")
	ErrMissingStaff         = errors.New("missing staff id")
	ErrMissingGate          = errors.New("missing gate id")
	ErrInvalidServiceConfig = errors.New("invalid service config")
)

// Summary holds the counters computed over a shift window at clock-out.
// The snapshot is fixed at clock-out time; it is not kept live-updated.
type Summary struct {
	TotalPassages      int
	SuccessfulPassages int
	RejectedPassages   int
	Overrides          int
	CashPayments       int
	TotalRevenue       wallet.Amount
	CashCollected      wallet.Amount
}

// Session is a staff member's gate-assignment window used for revenue
// reconciliation. ClockOutAt is nil while the shift is active.
type Session struct {
	ID         string
	StaffID    string
	GateID     string
	ClockInAt  time.Time
	ClockOutAt *time.Time
	Summary    Summary
	Notes      string
}

// Active reports whether the session is still open.
func (session Session) Active() bool {
	return session.ClockOutAt == nil
}

// SessionInput carries the fields written at clock-in.
type SessionInput struct {
	StaffID   string
	GateID    string
	ClockInAt time.Time
}

// HandoverNote is addressed to the incoming staff member and stays unread
// until explicitly marked.
type HandoverNote struct {
	ID          string
	ShiftID     string
	FromStaffID string
	ToStaffID   string
	Body        string
	CreatedAt   time.Time
	ReadAt      *time.Time
}

// HandoverNoteInput carries the fields written at clock-out.
type HandoverNoteInput struct {
	ShiftID     string
	FromStaffID string
	ToStaffID   string
	Body        string
	CreatedAt   time.Time
}

// Store is the persistence contract used by Service. At most one active
// session per staff member is additionally backed by a partial unique
// index in the store.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error
	ActiveSessionByStaff(ctx context.Context, staffID string) (Session, bool, error)
	SessionByID(ctx context.Context, id string) (Session, error)
	InsertSession(ctx context.Context, input SessionInput) (Session, error)
	FinalizeSession(ctx context.Context, id string, summary Summary, notes string, clockOutAt time.Time) error
	PassagesInWindow(ctx context.Context, gateID string, from time.Time, to time.Time) ([]toll.PassageRecord, error)
	InsertHandoverNote(ctx context.Context, input HandoverNoteInput) (HandoverNote, error)
	MarkHandoverNoteRead(ctx context.Context, noteID string, at time.Time) error
}
