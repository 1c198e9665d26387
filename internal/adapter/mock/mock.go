// Package mock provides a programmable provider adapter for tests and local runs.
package mock

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/yourorg/payment-settlement/internal/adapter"
	"github.com/yourorg/payment-settlement/internal/payment"
)

// Payload is the payload returned by a mock adapter.
type Payload struct {
	PG     payment.PGType
	Values map[string]any
}

func (p Payload) Provider() payment.PGType { return p.PG }
func (p Payload) Fields() map[string]any   { return p.Values }

// MockAdapter implements adapter.ApprovalAdapter. Unset funcs fall back to a
// successful approval with a fresh transaction id and a minimal payload.
type MockAdapter struct {
	PG          payment.PGType
	ApproveFunc func(ctx context.Context, req adapter.ApprovalRequest) (adapter.ApprovalResult, error)
	PayloadFunc func(req adapter.InitiationRequest) (adapter.InitiationPayload, error)

	mu       sync.Mutex
	requests []adapter.ApprovalRequest
}

var _ adapter.ApprovalAdapter = (*MockAdapter)(nil)

// NewMockAdapter creates a MockAdapter for pg.
func NewMockAdapter(pg payment.PGType) *MockAdapter {
	return &MockAdapter{PG: pg}
}

func (m *MockAdapter) PGType() payment.PGType { return m.PG }

func (m *MockAdapter) Approve(ctx context.Context, req adapter.ApprovalRequest) (adapter.ApprovalResult, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.ApproveFunc != nil {
		return m.ApproveFunc(ctx, req)
	}
	tid := req.TransactionID
	if tid == "" {
		tid = uuid.NewString()
	}
	return adapter.ApprovalResult{TransactionID: tid, ResultCode: "0000", HTTPStatus: 200}, nil
}

func (m *MockAdapter) BuildInitiationPayload(req adapter.InitiationRequest) (adapter.InitiationPayload, error) {
	if m.PayloadFunc != nil {
		return m.PayloadFunc(req)
	}
	values := map[string]any{}
	if req.Payment != nil {
		values["orderId"] = req.Payment.PgOrderID
		values["amount"] = req.Payment.TotalAmount
	}
	return Payload{PG: m.PG, Values: values}, nil
}

// Calls returns the number of Approve invocations.
func (m *MockAdapter) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Requests returns a copy of the recorded approval requests.
func (m *MockAdapter) Requests() []adapter.ApprovalRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]adapter.ApprovalRequest(nil), m.requests...)
}
