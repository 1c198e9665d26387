package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/yourorg/payment-settlement/internal/adapter"
	"github.com/yourorg/payment-settlement/internal/adapter/nicepay"
	"github.com/yourorg/payment-settlement/internal/apperr"
	"github.com/yourorg/payment-settlement/internal/client"
	"github.com/yourorg/payment-settlement/internal/lock"
	"github.com/yourorg/payment-settlement/internal/metrics"
	"github.com/yourorg/payment-settlement/internal/payment"
	"github.com/yourorg/payment-settlement/internal/repository"
)

type MockCatalog struct{ mock.Mock }

func (m *MockCatalog) GetProduct(ctx context.Context, productID int64) (*client.Product, error) {
	args := m.Called(ctx, productID)
	p, _ := args.Get(0).(*client.Product)
	return p, args.Error(1)
}

type MockUsers struct{ mock.Mock }

func (m *MockUsers) GetUser(ctx context.Context, userID string) (*client.User, error) {
	args := m.Called(ctx, userID)
	u, _ := args.Get(0).(*client.User)
	return u, args.Error(1)
}

type MockOrders struct{ mock.Mock }

func (m *MockOrders) CreateOrder(ctx context.Context, req client.CreateOrderRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockOrders) UpdateOrderStatus(ctx context.Context, orderID, status string) error {
	return m.Called(ctx, orderID, status).Error(0)
}

// MockGateway builds real NicePay payloads and mocks the approval call.
type MockGateway struct {
	mock.Mock
	payloads *nicepay.Adapter
}

func (m *MockGateway) BuildInitiationPayload(req adapter.InitiationRequest) (adapter.InitiationPayload, error) {
	return m.payloads.BuildInitiationPayload(req)
}

func (m *MockGateway) Approve(ctx context.Context, req adapter.ApprovalRequest) (adapter.ApprovalResult, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(adapter.ApprovalResult)
	return res, args.Error(1)
}

type fixture struct {
	catalog *MockCatalog
	users   *MockUsers
	orders  *MockOrders
	gateway *MockGateway
	repo    *repository.MemoryRepository
	locker  *lock.MemoryLocker
	metrics *metrics.Metrics
	logs    *observer.ObservedLogs
	orch    *Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	f := &fixture{
		catalog: new(MockCatalog),
		users:   new(MockUsers),
		orders:  new(MockOrders),
		gateway: &MockGateway{payloads: nicepay.NewAdapter(nicepay.Config{
			ClientID:  "client-id",
			SecretKey: "super-secret-key",
			BaseURL:   "https://sandbox-api.nicepay.co.kr",
			ReturnURL: "http://localhost:8080/api/payments/return",
			CancelURL: "http://localhost:8080/api/payments/cancel",
		}, nil, nil)},
		repo:    repository.NewMemoryRepository(),
		locker:  lock.NewMemoryLocker(),
		metrics: metrics.NewNop(),
		logs:    logs,
	}
	f.orch = NewOrchestrator(Dependencies{
		Products: f.catalog,
		Users:    f.users,
		Orders:   f.orders,
		Gateway:  f.gateway,
		Payments: f.repo,
		Locker:   f.locker,
		Metrics:  f.metrics,
		Logger:   zap.New(core),
	})
	return f
}

func (f *fixture) assertExpectations(t *testing.T) {
	f.catalog.AssertExpectations(t)
	f.users.AssertExpectations(t)
	f.orders.AssertExpectations(t)
	f.gateway.AssertExpectations(t)
}

func (f *fixture) seedPending(t *testing.T, pgOrderID, orderID string) *payment.Payment {
	t.Helper()
	p, err := payment.New(payment.NewParams{
		PgOrderID:   pgOrderID,
		UserID:      "u1",
		ProductID:   1,
		TotalAmount: 10000,
		PGType:      payment.PGNicePay,
	})
	require.NoError(t, err)
	if orderID != "" {
		require.NoError(t, p.AttachOrder(orderID))
	}
	require.NoError(t, f.repo.Save(context.Background(), p))
	return p
}

func (f *fixture) stored(t *testing.T, pgOrderID string) *payment.Payment {
	t.Helper()
	p, err := f.repo.FindByPgOrderID(context.Background(), pgOrderID)
	require.NoError(t, err)
	return p
}

func book() *client.Product {
	return &client.Product{ID: 1, Title: "Book", Price: decimal.NewFromInt(10000)}
}

func kim() *client.User {
	return &client.User{ID: "u1", Email: "a@b.com", Nickname: "Kim"}
}

func TestPreparePayment_Success(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.catalog.On("GetProduct", mock.Anything, int64(1)).Return(book(), nil).Once()
	f.users.On("GetUser", mock.Anything, "u1").Return(kim(), nil).Once()
	f.orders.On("CreateOrder", mock.Anything, client.CreateOrderRequest{
		UserID: "u1", ProductID: 1, PaymentID: 1, TotalAmount: 10000,
	}).Return("ord-1", nil).Once()

	res, err := f.orch.PreparePayment(ctx, PrepareRequest{ProductID: 1, PGType: "NICEPAY"}, "u1")
	require.NoError(t, err)

	assert.Equal(t, int64(10000), res.Payment.TotalAmount)
	assert.Equal(t, payment.StatusPending, res.Payment.Status)
	assert.Equal(t, "ord-1", res.Payment.OrderID)
	assert.Regexp(t, `^NICE_\d+_[0-9a-f]{8}$`, res.Payment.PgOrderID)

	fields := res.Payload.Fields()
	assert.Equal(t, payment.PGNicePay, res.Payload.Provider())
	assert.EqualValues(t, 10000, fields["amount"])
	assert.Equal(t, "KRW", fields["currency"])
	assert.Equal(t, "Book", fields["goodsName"])
	assert.Equal(t, "a@b.com", fields["customerEmail"])
	assert.Equal(t, "Kim", fields["customerName"])
	assert.Equal(t, res.Payment.PgOrderID, fields["orderId"])
	assert.NotContains(t, fields, "secretKey")
	for _, v := range fields {
		assert.NotEqual(t, "super-secret-key", v)
	}

	stored := f.stored(t, res.Payment.PgOrderID)
	assert.Equal(t, "ord-1", stored.OrderID)
	assert.Equal(t, int64(2), stored.Version, "created then updated with the order id")
	f.assertExpectations(t)
}

func TestPreparePayment_ReturnURLOverride(t *testing.T) {
	f := newFixture(t)
	f.catalog.On("GetProduct", mock.Anything, int64(1)).Return(book(), nil)
	f.users.On("GetUser", mock.Anything, "u1").Return(kim(), nil)
	f.orders.On("CreateOrder", mock.Anything, mock.Anything).Return("ord-1", nil)

	res, err := f.orch.PreparePayment(context.Background(), PrepareRequest{
		ProductID: 1, PGType: "nicepay", ReturnURL: "https://shop.example/return",
	}, "u1")
	require.NoError(t, err)
	assert.Equal(t, "https://shop.example/return", res.Payload.Fields()["returnUrl"])
}

func TestPreparePayment_ProductNotFound(t *testing.T) {
	f := newFixture(t)
	f.catalog.On("GetProduct", mock.Anything, int64(99)).Return(nil, nil).Once()

	_, err := f.orch.PreparePayment(context.Background(), PrepareRequest{ProductID: 99, PGType: "NICEPAY"}, "u1")
	assert.ErrorIs(t, err, ErrProductNotFound)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))

	f.users.AssertNotCalled(t, "GetUser", mock.Anything, mock.Anything)
	f.orders.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything)
	all, err := f.repo.FindByUserID(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, all, "nothing persisted")
}

func TestPreparePayment_UserNotFound(t *testing.T) {
	f := newFixture(t)
	f.catalog.On("GetProduct", mock.Anything, int64(1)).Return(book(), nil).Once()
	f.users.On("GetUser", mock.Anything, "ghost").Return(nil, nil).Once()

	_, err := f.orch.PreparePayment(context.Background(), PrepareRequest{ProductID: 1, PGType: "NICEPAY"}, "ghost")
	assert.ErrorIs(t, err, ErrUserNotFound)
	f.orders.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything)
	pending, _ := f.repo.FindByStatus(context.Background(), payment.StatusPending)
	assert.Empty(t, pending)
}

func TestPreparePayment_LookupFailure(t *testing.T) {
	f := newFixture(t)
	down := apperr.New(apperr.UpstreamUnavailable, "product-service returned HTTP 503")
	f.catalog.On("GetProduct", mock.Anything, int64(1)).Return(nil, down).Once()

	_, err := f.orch.PreparePayment(context.Background(), PrepareRequest{ProductID: 1, PGType: "NICEPAY"}, "u1")
	assert.ErrorIs(t, err, down)
	assert.Equal(t, apperr.UpstreamUnavailable, apperr.KindOf(err))
}

func TestPreparePayment_UnsupportedProvider(t *testing.T) {
	f := newFixture(t)
	_, err := f.orch.PreparePayment(context.Background(), PrepareRequest{ProductID: 1, PGType: "PAYPAL"}, "u1")
	assert.Equal(t, apperr.UnsupportedProvider, apperr.KindOf(err))
	f.catalog.AssertNotCalled(t, "GetProduct", mock.Anything, mock.Anything)
}

func TestPreparePayment_FractionalPrice(t *testing.T) {
	f := newFixture(t)
	f.catalog.On("GetProduct", mock.Anything, int64(1)).
		Return(&client.Product{ID: 1, Title: "Book", Price: decimal.RequireFromString("10000.5")}, nil).Once()
	f.users.On("GetUser", mock.Anything, "u1").Return(kim(), nil).Once()

	_, err := f.orch.PreparePayment(context.Background(), PrepareRequest{ProductID: 1, PGType: "NICEPAY"}, "u1")
	assert.Equal(t, apperr.InvalidAmount, apperr.KindOf(err))
	pending, _ := f.repo.FindByStatus(context.Background(), payment.StatusPending)
	assert.Empty(t, pending)
}

func TestPreparePayment_OrderCreationFails(t *testing.T) {
	f := newFixture(t)
	f.catalog.On("GetProduct", mock.Anything, int64(1)).Return(book(), nil).Once()
	f.users.On("GetUser", mock.Anything, "u1").Return(kim(), nil).Once()
	f.orders.On("CreateOrder", mock.Anything, mock.Anything).Return("", errors.New("order-service down")).Once()

	_, err := f.orch.PreparePayment(context.Background(), PrepareRequest{ProductID: 1, PGType: "NICEPAY"}, "u1")
	require.Error(t, err)

	pending, err := f.repo.FindByStatus(context.Background(), payment.StatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 1, "payment stays pending for reconciliation")
	assert.Empty(t, pending[0].OrderID)
	assert.Equal(t, 1, f.logs.FilterMessage("order creation failed, payment left pending").Len())
}

func TestApprovePayment_Success(t *testing.T) {
	f := newFixture(t)
	f.seedPending(t, "NICE_123_abcd", "ord-1")

	f.gateway.On("Approve", mock.Anything, mock.MatchedBy(func(req adapter.ApprovalRequest) bool {
		return req.Payment.PgOrderID == "NICE_123_abcd" && req.TransactionID == "tid-1" &&
			req.AuthToken == "tok" && req.Amount == "10000"
	})).Return(adapter.ApprovalResult{TransactionID: "tid-1", ResultCode: "0000", HTTPStatus: 200}, nil).Once()
	f.orders.On("UpdateOrderStatus", mock.Anything, "ord-1", "SUCCEED").Return(nil).Once()

	p, err := f.orch.ApprovePayment(context.Background(), ApproveRequest{
		PgOrderID: "NICE_123_abcd", TransactionID: "tid-1", AuthToken: "tok", Amount: "10000",
	})
	require.NoError(t, err)
	assert.Equal(t, payment.StatusSucceed, p.Status)

	stored := f.stored(t, "NICE_123_abcd")
	assert.Equal(t, payment.StatusSucceed, stored.Status)
	assert.Equal(t, "tid-1", stored.PgTid)
	assert.Equal(t, "tok", stored.AuthToken)
	assert.Equal(t, "0000", stored.AuthResultCode)
	assert.NotNil(t, stored.ApprovedAt)
	assert.Nil(t, stored.FailedAt)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Transitions.WithLabelValues("SUCCEED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.OrderPushes.WithLabelValues("SUCCEED", "ok")))
	f.assertExpectations(t)
}

func TestApprovePayment_Declined(t *testing.T) {
	f := newFixture(t)
	f.seedPending(t, "NICE_123_abcd", "ord-1")
	declined := apperr.Rejected("nicepay", "1001", "declined")
	f.gateway.On("Approve", mock.Anything, mock.Anything).Return(adapter.ApprovalResult{HTTPStatus: 200}, declined).Once()
	f.orders.On("UpdateOrderStatus", mock.Anything, "ord-1", "FAILED").Return(nil).Once()

	p, err := f.orch.ApprovePayment(context.Background(), ApproveRequest{
		PgOrderID: "NICE_123_abcd", TransactionID: "tid-1", AuthToken: "tok", Amount: "10000",
	})
	assert.ErrorIs(t, err, declined)
	assert.Equal(t, apperr.GatewayRejected, apperr.KindOf(err))
	assert.Equal(t, "1001", apperr.ResultCode(err))
	require.NotNil(t, p)

	stored := f.stored(t, "NICE_123_abcd")
	assert.Equal(t, payment.StatusFailed, stored.Status)
	assert.Contains(t, stored.Memo, "1001")
	assert.Equal(t, "tid-1", stored.PgTid, "provider id kept on failure")
	assert.NotNil(t, stored.FailedAt)
	assert.Nil(t, stored.ApprovedAt)
	f.assertExpectations(t)
}

func TestApprovePayment_GatewayUnavailable(t *testing.T) {
	f := newFixture(t)
	f.seedPending(t, "NICE_123_abcd", "ord-1")
	down := apperr.New(apperr.GatewayUnavailable, "nicepay unavailable after 3 attempt(s)")
	f.gateway.On("Approve", mock.Anything, mock.Anything).Return(adapter.ApprovalResult{}, down).Once()
	f.orders.On("UpdateOrderStatus", mock.Anything, "ord-1", "FAILED").Return(nil).Once()

	_, err := f.orch.ApprovePayment(context.Background(), ApproveRequest{PgOrderID: "NICE_123_abcd", AuthToken: "tok", Amount: "10000"})
	assert.ErrorIs(t, err, down)

	stored := f.stored(t, "NICE_123_abcd")
	assert.Equal(t, payment.StatusFailed, stored.Status)
	assert.Empty(t, stored.PgTid)
	assert.Contains(t, stored.Memo, "payment approval failed")
	f.assertExpectations(t)
}

func TestApprovePayment_SecondCallbackIsRejected(t *testing.T) {
	f := newFixture(t)
	f.seedPending(t, "NICE_123_abcd", "ord-1")
	f.gateway.On("Approve", mock.Anything, mock.Anything).Return(adapter.ApprovalResult{TransactionID: "tid-1", ResultCode: "0000"}, nil).Once()
	f.orders.On("UpdateOrderStatus", mock.Anything, "ord-1", "SUCCEED").Return(nil).Once()

	req := ApproveRequest{PgOrderID: "NICE_123_abcd", TransactionID: "tid-1", AuthToken: "tok", Amount: "10000"}
	_, err := f.orch.ApprovePayment(context.Background(), req)
	require.NoError(t, err)

	p, err := f.orch.ApprovePayment(context.Background(), req)
	assert.Equal(t, apperr.InvalidStateTransition, apperr.KindOf(err))
	assert.True(t, payment.IsInvalidTransition(err))
	assert.Equal(t, payment.StatusSucceed, p.Status)

	f.gateway.AssertNumberOfCalls(t, "Approve", 1)
	f.orders.AssertNumberOfCalls(t, "UpdateOrderStatus", 1)
	assert.Equal(t, 1, f.logs.FilterMessage("callback for settled payment ignored").Len())
}

func TestApprovePayment_UnknownPayment(t *testing.T) {
	f := newFixture(t)
	_, err := f.orch.ApprovePayment(context.Background(), ApproveRequest{PgOrderID: "NICE_0_missing", TransactionID: "tid"})
	assert.ErrorIs(t, err, ErrPaymentNotFound)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
	f.gateway.AssertNotCalled(t, "Approve", mock.Anything, mock.Anything)

	_, err = f.orch.ApprovePayment(context.Background(), ApproveRequest{})
	assert.Equal(t, apperr.InvalidArgument, apperr.KindOf(err))
}

func TestApprovePayment_LockHeld(t *testing.T) {
	f := newFixture(t)
	f.seedPending(t, "NICE_123_abcd", "ord-1")
	release, err := f.locker.Acquire(context.Background(), "payment:approve:NICE_123_abcd", time.Minute)
	require.NoError(t, err)
	defer release(context.Background())

	_, err = f.orch.ApprovePayment(context.Background(), ApproveRequest{PgOrderID: "NICE_123_abcd", TransactionID: "tid-1"})
	assert.ErrorIs(t, err, ErrApprovalInProgress)
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err))
	f.gateway.AssertNotCalled(t, "Approve", mock.Anything, mock.Anything)
	assert.Equal(t, payment.StatusPending, f.stored(t, "NICE_123_abcd").Status)
}

func TestApprovePayment_ConcurrentWriterWins(t *testing.T) {
	f := newFixture(t)
	f.seedPending(t, "NICE_123_abcd", "ord-1")

	f.gateway.On("Approve", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			// Another replica settles the payment while the gateway call is in flight.
			other := f.stored(t, "NICE_123_abcd")
			require.NoError(t, other.Cancel("user closed checkout"))
			require.NoError(t, f.repo.Save(context.Background(), other))
		}).
		Return(adapter.ApprovalResult{TransactionID: "tid-1", ResultCode: "0000"}, nil).Once()

	_, err := f.orch.ApprovePayment(context.Background(), ApproveRequest{PgOrderID: "NICE_123_abcd", TransactionID: "tid-1", Amount: "10000"})
	assert.ErrorIs(t, err, repository.ErrStaleVersion)
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err))

	assert.Equal(t, payment.StatusCancelled, f.stored(t, "NICE_123_abcd").Status)
	f.orders.AssertNotCalled(t, "UpdateOrderStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestApprovePayment_OrderPushFailureTolerated(t *testing.T) {
	f := newFixture(t)
	f.seedPending(t, "NICE_123_abcd", "ord-1")
	f.gateway.On("Approve", mock.Anything, mock.Anything).Return(adapter.ApprovalResult{TransactionID: "tid-1", ResultCode: "0000"}, nil).Once()
	f.orders.On("UpdateOrderStatus", mock.Anything, "ord-1", "SUCCEED").Return(errors.New("order-service down")).Once()

	_, err := f.orch.ApprovePayment(context.Background(), ApproveRequest{PgOrderID: "NICE_123_abcd", TransactionID: "tid-1", Amount: "10000"})
	require.NoError(t, err)
	assert.Equal(t, payment.StatusSucceed, f.stored(t, "NICE_123_abcd").Status)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.OrderPushes.WithLabelValues("SUCCEED", "error")))
}

func TestApprovePayment_NoOrderSkipsPush(t *testing.T) {
	f := newFixture(t)
	f.seedPending(t, "NICE_123_abcd", "")
	f.gateway.On("Approve", mock.Anything, mock.Anything).Return(adapter.ApprovalResult{TransactionID: "tid-1", ResultCode: "0000"}, nil).Once()

	_, err := f.orch.ApprovePayment(context.Background(), ApproveRequest{PgOrderID: "NICE_123_abcd", TransactionID: "tid-1", Amount: "10000"})
	require.NoError(t, err)
	f.orders.AssertNotCalled(t, "UpdateOrderStatus", mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.OrderPushes.WithLabelValues("SUCCEED", "skipped")))
}

func TestApprovePayment_CallerCancellationAfterGatewayCall(t *testing.T) {
	f := newFixture(t)
	f.seedPending(t, "NICE_123_abcd", "ord-1")
	ctx, cancel := context.WithCancel(context.Background())

	f.gateway.On("Approve", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return(adapter.ApprovalResult{TransactionID: "tid-1", ResultCode: "0000"}, nil).Once()
	f.orders.On("UpdateOrderStatus", mock.MatchedBy(func(ctx context.Context) bool { return ctx.Err() == nil }), "ord-1", "SUCCEED").
		Return(nil).Once()

	_, err := f.orch.ApprovePayment(ctx, ApproveRequest{PgOrderID: "NICE_123_abcd", TransactionID: "tid-1", Amount: "10000"})
	require.NoError(t, err)
	assert.Equal(t, payment.StatusSucceed, f.stored(t, "NICE_123_abcd").Status)
	f.assertExpectations(t)
}

func TestCancelPayment(t *testing.T) {
	f := newFixture(t)
	f.seedPending(t, "NICE_123_abcd", "ord-1")
	f.orders.On("UpdateOrderStatus", mock.Anything, "ord-1", "CANCELLED").Return(nil).Once()

	p, err := f.orch.CancelPayment(context.Background(), "NICE_123_abcd", "user closed checkout")
	require.NoError(t, err)
	assert.Equal(t, payment.StatusCancelled, p.Status)
	assert.Equal(t, "user closed checkout", f.stored(t, "NICE_123_abcd").Memo)

	_, err = f.orch.CancelPayment(context.Background(), "NICE_123_abcd", "again")
	assert.Equal(t, apperr.InvalidStateTransition, apperr.KindOf(err))
	f.orders.AssertNumberOfCalls(t, "UpdateOrderStatus", 1)

	_, err = f.orch.CancelPayment(context.Background(), "NICE_0_missing", "")
	assert.ErrorIs(t, err, ErrPaymentNotFound)
}

func TestGetAndListPayments(t *testing.T) {
	f := newFixture(t)
	f.seedPending(t, "NICE_1_aaaa", "ord-1")
	f.seedPending(t, "NICE_2_bbbb", "ord-2")
	f.orders.On("UpdateOrderStatus", mock.Anything, "ord-2", "CANCELLED").Return(nil).Once()
	_, err := f.orch.CancelPayment(context.Background(), "NICE_2_bbbb", "")
	require.NoError(t, err)

	p, err := f.orch.GetPayment(context.Background(), "NICE_1_aaaa")
	require.NoError(t, err)
	assert.Equal(t, "ord-1", p.OrderID)
	_, err = f.orch.GetPayment(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrPaymentNotFound)

	all, err := f.orch.ListPayments(context.Background(), "u1", "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	cancelled, err := f.orch.ListPayments(context.Background(), "u1", payment.StatusCancelled)
	require.NoError(t, err)
	require.Len(t, cancelled, 1)
	assert.Equal(t, "NICE_2_bbbb", cancelled[0].PgOrderID)
}

func TestNewOrchestrator_Panics(t *testing.T) {
	full := Dependencies{
		Products: new(MockCatalog),
		Users:    new(MockUsers),
		Orders:   new(MockOrders),
		Gateway:  new(MockGateway),
		Payments: repository.NewMemoryRepository(),
	}
	assert.NotPanics(t, func() { NewOrchestrator(full) })

	for name, mutate := range map[string]func(*Dependencies){
		"products": func(d *Dependencies) { d.Products = nil },
		"users":    func(d *Dependencies) { d.Users = nil },
		"orders":   func(d *Dependencies) { d.Orders = nil },
		"gateway":  func(d *Dependencies) { d.Gateway = nil },
		"payments": func(d *Dependencies) { d.Payments = nil },
	} {
		t.Run(name, func(t *testing.T) {
			d := full
			mutate(&d)
			assert.Panics(t, func() { NewOrchestrator(d) })
		})
	}
}
