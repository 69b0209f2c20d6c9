// Package yookassawebhook applies YooKassa payment notifications to orders.
package yookassawebhook

import (
	"context"
	"fmt"

	"github.com/angelmondragon/courierbot-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/courierbot-backend/pkg/errors"
	"github.com/angelmondragon/courierbot-backend/pkg/logger"
	"github.com/angelmondragon/courierbot-backend/pkg/yookassa"
)

// Outcome labels what happened to a notification.
type Outcome string

const (
	OutcomeProcessed Outcome = "processed"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeFailed    Outcome = "failed"
)

// PaymentConfirmer moves a paid order forward.
type PaymentConfirmer interface {
	ConfirmPayment(ctx context.Context, orderID int64, paymentID string) (*models.Order, error)
}

// Guard drops redelivered notifications.
type Guard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

type ServiceParams struct {
	Orders PaymentConfirmer
	Guard  Guard
	Logger *logger.Logger
}

type Service struct {
	orders PaymentConfirmer
	guard  Guard
	logg   *logger.Logger
}

// NewService builds the handler. Guard is optional.
func NewService(params ServiceParams) (*Service, error) {
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment confirmer required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{orders: params.Orders, guard: params.Guard, logg: logg}, nil
}

// Handle applies one notification. Only payment.succeeded changes state. A
// returned error means the notification should be redelivered.
func (s *Service) Handle(ctx context.Context, n yookassa.Notification) (Outcome, error) {
	ctx = s.logg.WithFields(ctx, map[string]any{"event": n.Event, "payment_id": n.Object.ID})
	if !n.IsSucceeded() {
		s.logg.Info(ctx, "yookassa event ignored")
		return OutcomeIgnored, nil
	}
	orderID := int64(n.Object.Metadata.OrderID)
	if orderID <= 0 || n.Object.ID == "" {
		s.logg.Warn(ctx, "yookassa notification without order reference")
		return OutcomeIgnored, nil
	}
	ctx = s.logg.WithOrderID(ctx, orderID)

	if s.guard != nil {
		seen, err := s.guard.CheckAndMark(ctx, n.Object.ID)
		if err != nil {
			s.logg.Warn(ctx, "yookassa idempotency check failed")
		} else if seen {
			return OutcomeDuplicate, nil
		}
	}

	if _, err := s.orders.ConfirmPayment(ctx, orderID, n.Object.ID); err != nil {
		if pkgerrors.IsClientFacing(pkgerrors.CodeOf(err)) {
			s.logg.Warn(s.logg.WithField(ctx, "reason", err.Error()), "yookassa payment not applied")
			return OutcomeIgnored, nil
		}
		if s.guard != nil {
			_ = s.guard.Delete(ctx, n.Object.ID)
		}
		s.logg.Error(ctx, "yookassa payment confirmation failed", err)
		return OutcomeFailed, fmt.Errorf("confirm payment for order %d: %w", orderID, err)
	}
	s.logg.Info(ctx, "yookassa payment confirmed")
	return OutcomeProcessed, nil
}
