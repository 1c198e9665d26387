// Package planbuilder turns a priced product and a checkout request into a PENDING payment draft.
package planbuilder

import (
	"context"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/yourorg/payment-settlement/internal/apperr"
	"github.com/yourorg/payment-settlement/internal/payment"
)

// ErrInvalidAmount is wrapped when a price cannot be charged in the minor unit.
var ErrInvalidAmount = apperr.New(apperr.InvalidAmount, "price is not an exact minor-unit amount")

// Input is what a draft is built from.
type Input struct {
	UserID    string
	PGType    payment.PGType
	ProductID int64
	Price     decimal.Decimal
	Memo      string
	Metadata  map[string]any
}

// PlanBuilder creates payment drafts. It never persists anything.
type PlanBuilder struct {
	now        func() time.Time
	newOrderID func(pg payment.PGType, now time.Time) string
}

// NewPlanBuilder creates a PlanBuilder. A nil clock means time.Now.
func NewPlanBuilder(now func() time.Time) *PlanBuilder {
	if now == nil {
		now = time.Now
	}
	return &PlanBuilder{now: now, newOrderID: payment.NewPgOrderID}
}

// Build returns a PENDING payment with a fresh provider order id.
func (b *PlanBuilder) Build(ctx context.Context, in Input) (*payment.Payment, error) {
	_, span := otel.Tracer("planbuilder").Start(ctx, "PlanBuilder.Build",
		trace.WithAttributes(
			attribute.String("payment.pg_type", string(in.PGType)),
			attribute.Int64("payment.product_id", in.ProductID),
		))
	defer span.End()

	amount, err := MinorUnits(in.Price)
	if err != nil {
		return nil, err
	}
	p, err := payment.New(payment.NewParams{
		PgOrderID:   b.newOrderID(in.PGType, b.now()),
		UserID:      in.UserID,
		ProductID:   in.ProductID,
		TotalAmount: amount,
		PGType:      in.PGType,
		Memo:        in.Memo,
		Metadata:    in.Metadata,
	})
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("payment.pg_order_id", p.PgOrderID))
	return p, nil
}

// MinorUnits converts a price to an exact, non-negative integer amount.
func MinorUnits(price decimal.Decimal) (int64, error) {
	if !price.IsInteger() {
		return 0, apperr.Wrap(apperr.InvalidAmount, "price "+price.String()+" has a fractional minor unit", ErrInvalidAmount)
	}
	if price.IsNegative() {
		return 0, apperr.Wrap(apperr.InvalidAmount, "price "+price.String()+" is negative", ErrInvalidAmount)
	}
	if price.GreaterThan(decimal.NewFromInt(math.MaxInt64)) {
		return 0, apperr.Wrap(apperr.InvalidAmount, "price "+price.String()+" overflows", ErrInvalidAmount)
	}
	return price.IntPart(), nil
}
