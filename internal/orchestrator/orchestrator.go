// Package orchestrator drives the two-phase settlement workflow: PreparePayment
// opens a PENDING payment and its remote order, ApprovePayment settles it
// against the gateway and pushes the outcome to the order service.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/yourorg/payment-settlement/internal/adapter"
	"github.com/yourorg/payment-settlement/internal/apperr"
	"github.com/yourorg/payment-settlement/internal/client"
	"github.com/yourorg/payment-settlement/internal/lock"
	"github.com/yourorg/payment-settlement/internal/metrics"
	"github.com/yourorg/payment-settlement/internal/payment"
	"github.com/yourorg/payment-settlement/internal/planbuilder"
	"github.com/yourorg/payment-settlement/internal/reqctx"
	"github.com/yourorg/payment-settlement/internal/repository"
)

const (
	defaultLockTTL    = 60 * time.Second
	approveLockPrefix = "payment:approve:"
)

var (
	ErrProductNotFound    = apperr.New(apperr.NotFound, "product not found")
	ErrUserNotFound       = apperr.New(apperr.NotFound, "user not found")
	ErrPaymentNotFound    = apperr.New(apperr.NotFound, "payment not found")
	ErrApprovalInProgress = apperr.New(apperr.Conflict, "payment approval already in progress")
)

// ProductCatalog looks up products. A nil product with a nil error means absent.
type ProductCatalog interface {
	GetProduct(ctx context.Context, productID int64) (*client.Product, error)
}

// UserDirectory looks up users. A nil user with a nil error means absent.
type UserDirectory interface {
	GetUser(ctx context.Context, userID string) (*client.User, error)
}

// OrderService owns the remote order lifecycle.
type OrderService interface {
	CreateOrder(ctx context.Context, req client.CreateOrderRequest) (string, error)
	UpdateOrderStatus(ctx context.Context, orderID, status string) error
}

// Gateway builds checkout payloads and performs approval calls.
type Gateway interface {
	BuildInitiationPayload(req adapter.InitiationRequest) (adapter.InitiationPayload, error)
	Approve(ctx context.Context, req adapter.ApprovalRequest) (adapter.ApprovalResult, error)
}

// Dependencies are the collaborators of an Orchestrator. Products, Users,
// Orders, Gateway and Payments are required.
type Dependencies struct {
	Products ProductCatalog
	Users    UserDirectory
	Orders   OrderService
	Gateway  Gateway
	Payments repository.PaymentRepository
	Locker   lock.Locker
	Plans    *planbuilder.PlanBuilder
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
	LockTTL  time.Duration
}

// Orchestrator sequences catalog, identity, order and gateway calls around the Payment state machine.
type Orchestrator struct {
	products ProductCatalog
	users    UserDirectory
	orders   OrderService
	gateway  Gateway
	payments repository.PaymentRepository
	locker   lock.Locker
	plans    *planbuilder.PlanBuilder
	metrics  *metrics.Metrics
	logger   *zap.Logger
	lockTTL  time.Duration
}

func NewOrchestrator(deps Dependencies) *Orchestrator {
	if deps.Products == nil {
		panic("ProductCatalog cannot be nil")
	}
	if deps.Users == nil {
		panic("UserDirectory cannot be nil")
	}
	if deps.Orders == nil {
		panic("OrderService cannot be nil")
	}
	if deps.Gateway == nil {
		panic("Gateway cannot be nil")
	}
	if deps.Payments == nil {
		panic("PaymentRepository cannot be nil")
	}
	if deps.Locker == nil {
		deps.Locker = lock.NewMemoryLocker()
	}
	if deps.Plans == nil {
		deps.Plans = planbuilder.NewPlanBuilder(nil)
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewNop()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.LockTTL <= 0 {
		deps.LockTTL = defaultLockTTL
	}
	return &Orchestrator{
		products: deps.Products,
		users:    deps.Users,
		orders:   deps.Orders,
		gateway:  deps.Gateway,
		payments: deps.Payments,
		locker:   deps.Locker,
		plans:    deps.Plans,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
		lockTTL:  deps.LockTTL,
	}
}

// PrepareRequest is the checkout request of an authenticated user.
type PrepareRequest struct {
	ProductID int64          `json:"productId"`
	PGType    string         `json:"pgType"`
	ReturnURL string         `json:"returnUrl,omitempty"`
	Memo      string         `json:"memo,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// PrepareResult is the persisted PENDING payment and its client payload.
type PrepareResult struct {
	Payment *payment.Payment
	Payload adapter.InitiationPayload
}

// PreparePayment opens a PENDING payment for userID and creates its remote order.
//
// A failure after the first save leaves the payment PENDING for out-of-band
// reconciliation.
func (o *Orchestrator) PreparePayment(ctx context.Context, req PrepareRequest, userID string) (*PrepareResult, error) {
	ctx, span := otel.Tracer("orchestrator").Start(ctx, "Orchestrator.PreparePayment",
		trace.WithAttributes(
			attribute.Int64("payment.product_id", req.ProductID),
			attribute.String("payment.pg_type", req.PGType),
		))
	defer span.End()

	res, err := o.prepare(ctx, req, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("payment.pg_order_id", res.Payment.PgOrderID))
	return res, nil
}

func (o *Orchestrator) prepare(ctx context.Context, req PrepareRequest, userID string) (*PrepareResult, error) {
	pg, err := payment.ParsePGType(req.PGType)
	if err != nil {
		return nil, err
	}

	product, err := o.products.GetProduct(ctx, req.ProductID)
	if err != nil {
		return nil, fmt.Errorf("looking up product %d: %w", req.ProductID, err)
	}
	if product == nil {
		return nil, apperr.Wrap(apperr.NotFound, fmt.Sprintf("product %d not found", req.ProductID), ErrProductNotFound)
	}

	user, err := o.users.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("looking up user %s: %w", userID, err)
	}
	if user == nil {
		return nil, apperr.Wrap(apperr.NotFound, fmt.Sprintf("user %s not found", userID), ErrUserNotFound)
	}

	p, err := o.plans.Build(ctx, planbuilder.Input{
		UserID:    userID,
		PGType:    pg,
		ProductID: req.ProductID,
		Price:     product.Price,
		Memo:      req.Memo,
		Metadata:  req.Metadata,
	})
	if err != nil {
		return nil, err
	}
	if err := o.payments.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("saving payment %s: %w", p.PgOrderID, err)
	}

	log := o.logger.With(reqctx.Fields(ctx)...).With(zap.String("pg_order_id", p.PgOrderID))
	log.Info("payment created", zap.Int64("payment_id", p.ID), zap.Int64("amount", p.TotalAmount), zap.String("pg_type", string(pg)))

	orderID, err := o.orders.CreateOrder(ctx, client.CreateOrderRequest{
		UserID:      userID,
		ProductID:   req.ProductID,
		PaymentID:   p.ID,
		TotalAmount: p.TotalAmount,
	})
	if err != nil {
		log.Warn("order creation failed, payment left pending", zap.Bool("reconcile", true), zap.Error(err))
		return nil, fmt.Errorf("creating order for payment %s: %w", p.PgOrderID, err)
	}
	if err := p.AttachOrder(orderID); err != nil {
		return nil, err
	}
	if err := o.payments.Save(ctx, p); err != nil {
		log.Warn("attaching order failed, payment left pending", zap.String("order_id", orderID), zap.Bool("reconcile", true), zap.Error(err))
		return nil, fmt.Errorf("saving payment %s: %w", p.PgOrderID, err)
	}

	payload, err := o.gateway.BuildInitiationPayload(adapter.InitiationRequest{
		Payment:      p,
		ProductTitle: product.Title,
		UserEmail:    user.Email,
		UserNickname: user.Nickname,
		ReturnURL:    req.ReturnURL,
	})
	if err != nil {
		return nil, err
	}
	log.Info("payment prepared", zap.String("order_id", orderID))
	return &PrepareResult{Payment: p, Payload: payload}, nil
}

// ApproveRequest is the provider callback data for one payment.
type ApproveRequest struct {
	PgOrderID     string
	TransactionID string
	AuthToken     string
	Amount        string
}

// ApprovePayment settles a PENDING payment. The outcome is persisted before
// the order service is notified. On a gateway failure the payment is marked
// FAILED and the gateway error is returned. The returned payment reflects the
// stored state whenever it was loaded.
func (o *Orchestrator) ApprovePayment(ctx context.Context, req ApproveRequest) (*payment.Payment, error) {
	ctx, span := otel.Tracer("orchestrator").Start(ctx, "Orchestrator.ApprovePayment",
		trace.WithAttributes(attribute.String("payment.pg_order_id", req.PgOrderID)))
	defer span.End()

	p, err := o.approve(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	if p != nil {
		span.SetAttributes(attribute.String("payment.status", string(p.Status)))
	}
	return p, err
}

func (o *Orchestrator) approve(ctx context.Context, req ApproveRequest) (*payment.Payment, error) {
	if req.PgOrderID == "" {
		return nil, apperr.New(apperr.InvalidArgument, "pgOrderId is required")
	}
	log := o.logger.With(reqctx.Fields(ctx)...).With(zap.String("pg_order_id", req.PgOrderID))

	release, err := o.acquire(ctx, req.PgOrderID)
	if err != nil {
		log.Warn("approval rejected, another approval holds the lock", zap.Bool("reconcile", true))
		return nil, err
	}
	defer o.release(ctx, release, log)

	p, err := o.load(ctx, req.PgOrderID)
	if err != nil {
		if errors.Is(err, ErrPaymentNotFound) {
			log.Warn("callback for unknown payment", zap.Bool("reconcile", true))
		}
		return nil, err
	}
	if !p.IsPending() {
		log.Warn("callback for settled payment ignored", zap.String("status", string(p.Status)), zap.Bool("reconcile", true))
		return p, apperr.Wrap(apperr.InvalidStateTransition,
			fmt.Sprintf("payment %s is already %s", p.PgOrderID, p.Status), payment.ErrInvalidTransition)
	}

	result, gerr := o.gateway.Approve(ctx, adapter.ApprovalRequest{
		Payment:       p.Clone(),
		TransactionID: req.TransactionID,
		AuthToken:     req.AuthToken,
		Amount:        req.Amount,
	})

	if apperr.KindOf(gerr) == apperr.UnsupportedProvider {
		log.Warn("approval requested for provider without server-side approval", zap.String("pg_type", string(p.PGType)))
		return p, gerr
	}

	// The gateway call has happened; the outcome must be recorded even if the caller went away.
	ctx = context.WithoutCancel(ctx)

	if gerr != nil {
		return o.recordFailure(ctx, p, req, gerr, log)
	}

	tid := result.TransactionID
	if tid == "" {
		tid = req.TransactionID
	}
	resultCode := result.ResultCode
	if resultCode == "" {
		resultCode = "0000"
	}
	if err := p.Approve(tid, req.AuthToken, resultCode); err != nil {
		return p, err
	}
	if err := o.payments.Save(ctx, p); err != nil {
		log.Error("approved payment could not be saved", zap.String("pg_tid", tid), zap.Bool("reconcile", true), zap.Error(err))
		return p, fmt.Errorf("saving approval of %s: %w", p.PgOrderID, err)
	}
	o.metrics.Transitions.WithLabelValues(string(payment.StatusSucceed)).Inc()
	log.Info("payment approved", zap.String("pg_tid", tid))

	o.notify(ctx, p, log)
	return p, nil
}

func (o *Orchestrator) recordFailure(ctx context.Context, p *payment.Payment, req ApproveRequest, gerr error, log *zap.Logger) (*payment.Payment, error) {
	log.Error("payment approval failed", zap.String("kind", string(apperr.KindOf(gerr))), zap.Error(gerr))

	if err := p.Fail(req.TransactionID, "payment approval failed: "+gerr.Error()); err != nil {
		return p, gerr
	}
	if err := o.payments.Save(ctx, p); err != nil {
		log.Error("failed payment could not be saved", zap.Bool("reconcile", true), zap.Error(err))
		return p, gerr
	}
	o.metrics.Transitions.WithLabelValues(string(payment.StatusFailed)).Inc()
	o.notify(ctx, p, log)
	return p, gerr
}

// CancelPayment moves a PENDING payment to CANCELLED and pushes the status to its order.
func (o *Orchestrator) CancelPayment(ctx context.Context, pgOrderID, reason string) (*payment.Payment, error) {
	log := o.logger.With(reqctx.Fields(ctx)...).With(zap.String("pg_order_id", pgOrderID))

	release, err := o.acquire(ctx, pgOrderID)
	if err != nil {
		return nil, err
	}
	defer o.release(ctx, release, log)

	p, err := o.load(ctx, pgOrderID)
	if err != nil {
		return nil, err
	}
	if err := p.Cancel(reason); err != nil {
		log.Warn("cancel for settled payment ignored", zap.String("status", string(p.Status)), zap.Bool("reconcile", true))
		return p, err
	}
	if err := o.payments.Save(ctx, p); err != nil {
		return p, fmt.Errorf("saving cancellation of %s: %w", pgOrderID, err)
	}
	o.metrics.Transitions.WithLabelValues(string(payment.StatusCancelled)).Inc()
	log.Info("payment cancelled", zap.String("reason", reason))

	o.notify(context.WithoutCancel(ctx), p, log)
	return p, nil
}

// GetPayment returns the payment with the given provider order id.
func (o *Orchestrator) GetPayment(ctx context.Context, pgOrderID string) (*payment.Payment, error) {
	return o.load(ctx, pgOrderID)
}

// ListPayments returns userID's payments, newest first. An empty status means all.
func (o *Orchestrator) ListPayments(ctx context.Context, userID string, status payment.Status) ([]*payment.Payment, error) {
	if status == "" {
		return o.payments.FindByUserID(ctx, userID)
	}
	return o.payments.FindByUserIDAndStatus(ctx, userID, status)
}

func (o *Orchestrator) load(ctx context.Context, pgOrderID string) (*payment.Payment, error) {
	p, err := o.payments.FindByPgOrderID(ctx, pgOrderID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.Wrap(apperr.NotFound, fmt.Sprintf("payment %s not found", pgOrderID), ErrPaymentNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading payment %s: %w", pgOrderID, err)
	}
	return p, nil
}

func (o *Orchestrator) acquire(ctx context.Context, pgOrderID string) (lock.ReleaseFunc, error) {
	release, err := o.locker.Acquire(ctx, approveLockPrefix+pgOrderID, o.lockTTL)
	if errors.Is(err, lock.ErrNotAcquired) {
		return nil, apperr.Wrap(apperr.Conflict, fmt.Sprintf("payment %s is being settled", pgOrderID), ErrApprovalInProgress)
	}
	if err != nil {
		return nil, fmt.Errorf("locking payment %s: %w", pgOrderID, err)
	}
	return release, nil
}

func (o *Orchestrator) release(ctx context.Context, release lock.ReleaseFunc, log *zap.Logger) {
	if err := release(context.WithoutCancel(ctx)); err != nil {
		log.Warn("releasing approval lock failed", zap.Error(err))
	}
}

// notify pushes the payment's terminal status to its order. Failures are
// logged; duplicate pushes are acceptable to the order service.
func (o *Orchestrator) notify(ctx context.Context, p *payment.Payment, log *zap.Logger) {
	status := string(p.Status)
	if p.OrderID == "" {
		log.Warn("payment has no order, status push skipped", zap.String("status", status), zap.Bool("reconcile", true))
		o.metrics.OrderPushes.WithLabelValues(status, "skipped").Inc()
		return
	}
	if err := o.orders.UpdateOrderStatus(ctx, p.OrderID, status); err != nil {
		log.Error("order status push failed", zap.String("order_id", p.OrderID), zap.String("status", status), zap.Bool("reconcile", true), zap.Error(err))
		o.metrics.OrderPushes.WithLabelValues(status, "error").Inc()
		return
	}
	o.metrics.OrderPushes.WithLabelValues(status, "ok").Inc()
}
