package orchestrator_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/payment-settlement/internal/adapter/kakaopay"
	"github.com/yourorg/payment-settlement/internal/adapter/nicepay"
	"github.com/yourorg/payment-settlement/internal/adapter/toss"
	"github.com/yourorg/payment-settlement/internal/apperr"
	"github.com/yourorg/payment-settlement/internal/client"
	"github.com/yourorg/payment-settlement/internal/orchestrator"
	"github.com/yourorg/payment-settlement/internal/payment"
	"github.com/yourorg/payment-settlement/internal/policy"
	"github.com/yourorg/payment-settlement/internal/processor"
	"github.com/yourorg/payment-settlement/internal/repository"
	"github.com/yourorg/payment-settlement/internal/retry"
	"github.com/yourorg/payment-settlement/internal/router"
	"github.com/yourorg/payment-settlement/internal/router/circuitbreaker"
)

// upstream fakes the catalog, identity and order services plus the NicePay API.
type upstream struct {
	mu           sync.Mutex
	nicepay      []func(w http.ResponseWriter, r *http.Request)
	nicepayCalls int
	approvals    []map[string]any
	authHeaders  []string
	pushes       []string
}

func (u *upstream) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/products/1", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":1,"title":"Book","price":10000}`))
	})
	mux.HandleFunc("/api/users/u1", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"u1","email":"a@b.com","nickname":"Kim"}`))
	})
	mux.HandleFunc("/api/orders", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`"ord-1"`))
	})
	mux.HandleFunc("/api/orders/", func(w http.ResponseWriter, r *http.Request) {
		u.mu.Lock()
		u.pushes = append(u.pushes, r.URL.Query().Get("status"))
		u.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/v1/payments/", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)

		u.mu.Lock()
		u.approvals = append(u.approvals, body)
		u.authHeaders = append(u.authHeaders, r.Header.Get("Authorization"))
		idx := u.nicepayCalls
		u.nicepayCalls++
		u.mu.Unlock()

		if idx < len(u.nicepay) {
			u.nicepay[idx](w, r)
			return
		}
		tid := strings.TrimPrefix(r.URL.Path, "/v1/payments/")
		w.Write([]byte(`{"resultCode":"0000","resultMsg":"approved","tid":"` + tid + `"}`))
	})
	return mux
}

func newStack(t *testing.T, up *upstream) (*orchestrator.Orchestrator, *repository.MemoryRepository) {
	t.Helper()
	srv := httptest.NewServer(up.handler())
	t.Cleanup(srv.Close)

	nice := nicepay.NewAdapter(nicepay.Config{
		ClientID:  "client-id",
		SecretKey: "secret-key",
		BaseURL:   srv.URL,
		ReturnURL: "http://localhost:8080/api/payments/return",
	}, srv.Client(), nil)
	proc := processor.NewProcessor(nice, toss.NewAdapter(), kakaopay.NewAdapter())
	cb := circuitbreaker.NewCircuitBreaker(circuitbreaker.Config{})
	rt := router.NewRouter(proc, cb, policy.MustDefault(), router.Config{
		Backoff: retry.DefaultBackoff,
		Sleep:   func(context.Context, time.Duration) error { return nil },
	})

	cfg := client.Config{BaseURL: srv.URL, HTTPClient: srv.Client()}
	repo := repository.NewMemoryRepository()
	orch := orchestrator.NewOrchestrator(orchestrator.Dependencies{
		Products: client.NewProductClient(cfg),
		Users:    client.NewUserClient(cfg),
		Orders: client.NewOrderClient(client.OrderConfig{
			Config: cfg,
			Sleep:  func(context.Context, time.Duration) error { return nil },
		}),
		Gateway:  rt,
		Payments: repo,
	})
	return orch, repo
}

func TestSettlement_PrepareThenApprove(t *testing.T) {
	up := &upstream{}
	orch, repo := newStack(t, up)
	ctx := context.Background()

	res, err := orch.PreparePayment(ctx, orchestrator.PrepareRequest{ProductID: 1, PGType: "NICEPAY"}, "u1")
	require.NoError(t, err)
	pgOrderID := res.Payment.PgOrderID
	assert.Equal(t, "ord-1", res.Payment.OrderID)
	assert.NotContains(t, res.Payload.Fields(), "secretKey")

	_, err = orch.ApprovePayment(ctx, orchestrator.ApproveRequest{
		PgOrderID: pgOrderID, TransactionID: "tid-1", AuthToken: "tok", Amount: "10000",
	})
	require.NoError(t, err)

	stored, err := repo.FindByPgOrderID(ctx, pgOrderID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusSucceed, stored.Status)
	assert.Equal(t, "tid-1", stored.PgTid)

	require.Len(t, up.approvals, 1)
	assert.Equal(t, float64(10000), up.approvals[0]["amount"])
	assert.Equal(t, pgOrderID, up.approvals[0]["orderId"])
	assert.Equal(t, "tok", up.approvals[0]["authToken"])
	assert.Equal(t, "Basic "+base64.StdEncoding.EncodeToString([]byte("client-id:secret-key")), up.authHeaders[0])
	assert.Equal(t, []string{"SUCCEED"}, up.pushes)
}

func TestSettlement_DeclineIsNotRetried(t *testing.T) {
	up := &upstream{nicepay: []func(http.ResponseWriter, *http.Request){
		func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"resultCode":"1001","resultMsg":"declined"}`))
		},
	}}
	orch, repo := newStack(t, up)
	ctx := context.Background()

	res, err := orch.PreparePayment(ctx, orchestrator.PrepareRequest{ProductID: 1, PGType: "NICEPAY"}, "u1")
	require.NoError(t, err)

	_, err = orch.ApprovePayment(ctx, orchestrator.ApproveRequest{
		PgOrderID: res.Payment.PgOrderID, TransactionID: "tid-1", AuthToken: "tok", Amount: "10000",
	})
	assert.Equal(t, apperr.GatewayRejected, apperr.KindOf(err))
	assert.Equal(t, "1001", apperr.ResultCode(err))

	stored, err := repo.FindByPgOrderID(ctx, res.Payment.PgOrderID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusFailed, stored.Status)
	assert.Contains(t, stored.Memo, "1001")
	assert.Equal(t, 1, up.nicepayCalls)
	assert.Equal(t, []string{"FAILED"}, up.pushes)
}

func TestSettlement_TransientFailureRetried(t *testing.T) {
	up := &upstream{nicepay: []func(http.ResponseWriter, *http.Request){
		func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusServiceUnavailable) },
	}}
	orch, repo := newStack(t, up)
	ctx := context.Background()

	res, err := orch.PreparePayment(ctx, orchestrator.PrepareRequest{ProductID: 1, PGType: "NICEPAY"}, "u1")
	require.NoError(t, err)

	_, err = orch.ApprovePayment(ctx, orchestrator.ApproveRequest{
		PgOrderID: res.Payment.PgOrderID, TransactionID: "tid-9", AuthToken: "tok", Amount: "10000",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, up.nicepayCalls)

	stored, err := repo.FindByPgOrderID(ctx, res.Payment.PgOrderID)
	require.NoError(t, err)
	assert.Equal(t, "tid-9", stored.PgTid)
}

func TestSettlement_ProviderWithoutApproval(t *testing.T) {
	up := &upstream{}
	orch, repo := newStack(t, up)
	ctx := context.Background()

	res, err := orch.PreparePayment(ctx, orchestrator.PrepareRequest{ProductID: 1, PGType: "TOSS"}, "u1")
	require.NoError(t, err)
	assert.Equal(t, payment.PGToss, res.Payload.Provider())

	_, err = orch.ApprovePayment(ctx, orchestrator.ApproveRequest{PgOrderID: res.Payment.PgOrderID, TransactionID: "t"})
	assert.Equal(t, apperr.UnsupportedProvider, apperr.KindOf(err))
	assert.Zero(t, up.nicepayCalls)

	stored, err := repo.FindByPgOrderID(ctx, res.Payment.PgOrderID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusPending, stored.Status, "no state change without an approval call")
}
