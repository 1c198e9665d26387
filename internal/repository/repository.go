// Package repository persists payments. Implementations enforce a unique
// pgOrderId and optimistic concurrency through Payment.Version.
package repository

import (
	"context"

	"github.com/yourorg/payment-settlement/internal/apperr"
	"github.com/yourorg/payment-settlement/internal/payment"
)

var (
	ErrNotFound           = apperr.New(apperr.NotFound, "payment not found")
	ErrDuplicatePgOrderID = apperr.New(apperr.Conflict, "pgOrderId already exists")
	// ErrStaleVersion is returned when the stored payment changed since it was loaded.
	ErrStaleVersion = apperr.New(apperr.Conflict, "payment was modified concurrently")
)

// PaymentRepository is the payment store.
//
// Save inserts a payment whose ID is zero and assigns ID and Version=1.
// Otherwise it updates the row only if the stored version equals p.Version,
// then increments p.Version. pgOrderId and createdAt are never updated.
type PaymentRepository interface {
	Save(ctx context.Context, p *payment.Payment) error
	FindByID(ctx context.Context, id int64) (*payment.Payment, error)
	FindByPgOrderID(ctx context.Context, pgOrderID string) (*payment.Payment, error)
	FindByOrderID(ctx context.Context, orderID string) (*payment.Payment, error)
	FindByPgTid(ctx context.Context, pgTid string) (*payment.Payment, error)
	// FindByUserID returns the user's payments, newest first.
	FindByUserID(ctx context.Context, userID string) ([]*payment.Payment, error)
	FindByUserIDAndStatus(ctx context.Context, userID string, status payment.Status) ([]*payment.Payment, error)
	// FindByStatus returns payments in status, oldest first.
	FindByStatus(ctx context.Context, status payment.Status) ([]*payment.Payment, error)
	Ping(ctx context.Context) error
}
