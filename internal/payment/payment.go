// Package payment holds the Payment aggregate and its lifecycle rules.
//
// A payment is created PENDING and moves exactly once to SUCCEED, FAILED or
// CANCELLED. Transition methods validate the current status before mutating
// anything, so a rejected transition leaves the payment untouched.
package payment

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/yourorg/payment-settlement/internal/apperr"
)

// Status is the lifecycle state of a payment.
type Status string

const (
	StatusPending         Status = "PENDING"
	StatusSucceed         Status = "SUCCEED"
	StatusCancelled       Status = "CANCELLED"
	StatusFailed          Status = "FAILED"
	StatusRefunded        Status = "REFUNDED"
	StatusPartialRefunded Status = "PARTIAL_REFUNDED"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{
	StatusPending, StatusSucceed, StatusCancelled, StatusFailed, StatusRefunded, StatusPartialRefunded,
}

// ParseStatus accepts a status name in any letter case.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	if slices.Contains(Statuses, st) {
		return st, nil
	}
	return "", apperr.Newf(apperr.InvalidArgument, "unknown payment status %q", s)
}

var (
	// ErrInvalidTransition is wrapped by every rejected status change.
	ErrInvalidTransition = apperr.New(apperr.InvalidStateTransition, "invalid payment status transition")
	// ErrBlankTransactionID is returned by Approve when no transaction id is given.
	ErrBlankTransactionID = apperr.New(apperr.InvalidArgument, "transaction id must not be blank")
)

// Payment is one settlement attempt for a product purchase.
type Payment struct {
	ID             int64          `json:"id"`
	PgOrderID      string         `json:"pgOrderId"`
	UserID         string         `json:"userId"`
	ProductID      int64          `json:"productId"`
	OrderID        string         `json:"orderId,omitempty"`
	TotalAmount    int64          `json:"totalAmount"`
	PGType         PGType         `json:"pgType"`
	PgTid          string         `json:"pgTid,omitempty"`
	AuthToken      string         `json:"-"`
	AuthResultCode string         `json:"authResultCode,omitempty"`
	PaymentMethod  string         `json:"paymentMethod,omitempty"`
	Status         Status         `json:"status"`
	Memo           string         `json:"memo,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
	ApprovedAt     *time.Time     `json:"approvedAt,omitempty"`
	FailedAt       *time.Time     `json:"failedAt,omitempty"`
	// Version is the optimistic concurrency token maintained by the repository.
	Version int64 `json:"version"`
}

// NewParams carries the fields required to open a payment.
type NewParams struct {
	PgOrderID   string
	UserID      string
	ProductID   int64
	TotalAmount int64
	PGType      PGType
	Memo        string
	Metadata    map[string]any
}

// New returns a PENDING payment.
func New(p NewParams) (*Payment, error) {
	if strings.TrimSpace(p.PgOrderID) == "" {
		return nil, apperr.New(apperr.InvalidArgument, "pgOrderId must not be blank")
	}
	if strings.TrimSpace(p.UserID) == "" {
		return nil, apperr.New(apperr.InvalidArgument, "user id must not be blank")
	}
	if p.TotalAmount < 0 {
		return nil, apperr.Newf(apperr.InvalidAmount, "total amount must not be negative: %d", p.TotalAmount)
	}
	if !p.PGType.Valid() {
		return nil, apperr.Newf(apperr.UnsupportedProvider, "unsupported pg type %q", p.PGType)
	}
	now := clock()
	return &Payment{
		PgOrderID:   p.PgOrderID,
		UserID:      p.UserID,
		ProductID:   p.ProductID,
		TotalAmount: p.TotalAmount,
		PGType:      p.PGType,
		Status:      StatusPending,
		Memo:        truncateMemo(p.Memo),
		Metadata:    p.Metadata,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

var clock = func() time.Time { return time.Now().UTC() }

// MaxMemoLength is the memo capacity in characters, matching the memo column.
const MaxMemoLength = 500

func truncateMemo(memo string) string {
	if utf8.RuneCountInString(memo) <= MaxMemoLength {
		return memo
	}
	return string([]rune(memo)[:MaxMemoLength])
}

func (p *Payment) transitionError(to Status) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.Status, to)
}

// Approve moves a pending payment to SUCCEED.
func (p *Payment) Approve(tid, authToken, resultCode string) error {
	if !p.IsPending() {
		return p.transitionError(StatusSucceed)
	}
	if strings.TrimSpace(tid) == "" {
		return ErrBlankTransactionID
	}
	now := clock()
	p.PgTid = tid
	p.AuthToken = authToken
	p.AuthResultCode = resultCode
	p.Status = StatusSucceed
	p.ApprovedAt = &now
	p.UpdatedAt = now
	return nil
}

// Fail moves a pending payment to FAILED. A non-blank tid is recorded.
func (p *Payment) Fail(tid, reason string) error {
	if !p.IsPending() {
		return p.transitionError(StatusFailed)
	}
	now := clock()
	if strings.TrimSpace(tid) != "" {
		p.PgTid = tid
	}
	if reason != "" {
		p.Memo = truncateMemo(reason)
	}
	p.Status = StatusFailed
	p.FailedAt = &now
	p.UpdatedAt = now
	return nil
}

// Cancel moves a pending payment to CANCELLED.
func (p *Payment) Cancel(reason string) error {
	if !p.CanBeCancelled() {
		return p.transitionError(StatusCancelled)
	}
	p.Status = StatusCancelled
	if reason != "" {
		p.Memo = truncateMemo(reason)
	}
	p.UpdatedAt = clock()
	return nil
}

// AttachOrder records the id of the order created for this payment.
func (p *Payment) AttachOrder(orderID string) error {
	if strings.TrimSpace(orderID) == "" {
		return apperr.New(apperr.InvalidArgument, "order id must not be blank")
	}
	p.OrderID = orderID
	p.UpdatedAt = clock()
	return nil
}

func (p *Payment) IsPending() bool   { return p.Status == StatusPending }
func (p *Payment) IsApproved() bool  { return p.Status == StatusSucceed }
func (p *Payment) IsFailed() bool    { return p.Status == StatusFailed }
func (p *Payment) IsCancelled() bool { return p.Status == StatusCancelled }

// CanBeCancelled reports whether Cancel would succeed.
func (p *Payment) CanBeCancelled() bool { return p.IsPending() }

// CanBeRefunded reports whether the payment has settled funds to return.
func (p *Payment) CanBeRefunded() bool { return p.Status == StatusSucceed }

// IsTerminal reports whether no further lifecycle transition is allowed.
func (p *Payment) IsTerminal() bool { return !p.IsPending() }

// Clone returns a deep copy.
func (p *Payment) Clone() *Payment {
	if p == nil {
		return nil
	}
	c := *p
	if p.ApprovedAt != nil {
		t := *p.ApprovedAt
		c.ApprovedAt = &t
	}
	if p.FailedAt != nil {
		t := *p.FailedAt
		c.FailedAt = &t
	}
	if p.Metadata != nil {
		c.Metadata = make(map[string]any, len(p.Metadata))
		for k, v := range p.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

// IsInvalidTransition reports whether err came from a rejected status change.
func IsInvalidTransition(err error) bool {
	return errors.Is(err, ErrInvalidTransition)
}
