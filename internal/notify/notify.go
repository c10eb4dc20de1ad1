// Package notify carries decision side effects to the external notification
// and email-receipt collaborators. Delivery is best-effort and runs off the
// commit path: a failure here is logged and can never reverse a committed
// debit.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/openroads/tollgate/pkg/toll"
	"go.uber.org/zap"
)

const deliveryTimeout = 5 * time.Second

// Notifier delivers a push/in-app notification payload.
type Notifier interface {
	Notify(ctx context.Context, event toll.Event) error
}

// ReceiptSender delivers an email receipt for a settled passage.
type ReceiptSender interface {
	SendReceipt(ctx context.Context, event toll.Event) error
}

// Dispatcher fans decision events out to the collaborators on a goroutine.
// It implements toll.Dispatcher.
type Dispatcher struct {
	notifier Notifier
	receipts ReceiptSender
	logger   *zap.Logger
	inflight sync.WaitGroup
}

// NewDispatcher wires a Dispatcher. A nil notifier or receipt sender
// disables that delivery path.
func NewDispatcher(notifier Notifier, receipts ReceiptSender, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{notifier: notifier, receipts: receipts, logger: logger}
}

// Dispatch delivers the events asynchronously. The request context is not
// reused: the caller's request may finish long before delivery does.
func (dispatcher *Dispatcher) Dispatch(_ context.Context, events []toll.Event) {
	if len(events) == 0 {
		return
	}
	dispatcher.inflight.Add(1)
	go func() {
		defer dispatcher.inflight.Done()
		deliveryCtx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
		defer cancel()
		for _, event := range events {
			dispatcher.deliver(deliveryCtx, event)
		}
	}()
}

// Wait blocks until every in-flight delivery finishes. Used at shutdown
// and in tests.
func (dispatcher *Dispatcher) Wait() {
	dispatcher.inflight.Wait()
}

func (dispatcher *Dispatcher) deliver(ctx context.Context, event toll.Event) {
	if event.Type == toll.EventEmailReceipt {
		if dispatcher.receipts == nil {
			return
		}
		if err := dispatcher.receipts.SendReceipt(ctx, event); err != nil {
			dispatcher.logger.Warn("receipt delivery failed",
				zap.String("account_id", event.AccountID),
				zap.String("gate", event.GateName),
				zap.Error(err),
			)
		}
		return
	}
	if dispatcher.notifier == nil {
		return
	}
	if err := dispatcher.notifier.Notify(ctx, event); err != nil {
		dispatcher.logger.Warn("notification delivery failed",
			zap.String("type", string(event.Type)),
			zap.String("account_id", event.AccountID),
			zap.String("gate", event.GateName),
			zap.Error(err),
		)
	}
}

// LogNotifier stands in for the external notifier and records the payload
// in the service log.
type LogNotifier struct {
	Logger *zap.Logger
}

// Notify implements Notifier.
func (notifier LogNotifier) Notify(_ context.Context, event toll.Event) error {
	notifier.Logger.Info("notification",
		zap.String("type", string(event.Type)),
		zap.String("account_id", event.AccountID),
		zap.String("gate", event.GateName),
		zap.String("total", event.Total.String()),
		zap.String("required", event.Required.String()),
		zap.String("available", event.Available.String()),
	)
	return nil
}

// LogReceiptSender stands in for the email collaborator.
type LogReceiptSender struct {
	Logger *zap.Logger
}

// SendReceipt implements ReceiptSender.
func (sender LogReceiptSender) SendReceipt(_ context.Context, event toll.Event) error {
	sender.Logger.Info("email receipt",
		zap.String("account_id", event.AccountID),
		zap.String("gate", event.GateName),
		zap.String("total", event.Total.String()),
	)
	return nil
}
