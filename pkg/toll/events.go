package toll

import (
	"context"
	"time"

	"github.com/openroads/tollgate/pkg/wallet"
)

// EventType enumerates the outbound side effects a decision can produce.
type EventType string

const (
	EventTollSuccess    EventType = "toll_passage_success"
	EventTollFailed     EventType = "toll_failed"
	EventLowBalance     EventType = "low_balance"
	EventOverweightFine EventType = "overweight_fine"
	EventEmailReceipt   EventType = "email_receipt"
)

// Event is one post-commit side effect. Events are collected during the
// decision and handed to the Dispatcher only after the financial commit, so
// a notification failure can never roll back a committed debit.
type Event struct {
	Type      EventType
	AccountID string
	GateName  string
	Toll      wallet.Amount
	Fine      wallet.Amount
	Total     wallet.Amount
	Required  wallet.Amount
	Available wallet.Amount
	At        time.Time
}

// Dispatcher delivers events to the external notification and email-receipt
// collaborators. Delivery is best-effort; implementations log failures and
// never propagate them.
type Dispatcher interface {
	Dispatch(ctx context.Context, events []Event)
}
