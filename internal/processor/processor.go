// Package processor dispatches provider calls by PG type. It performs exactly
// one attempt per call; resilience lives in the router.
package processor

import (
	"context"
	"fmt"

	"github.com/yourorg/payment-settlement/internal/adapter"
	"github.com/yourorg/payment-settlement/internal/apperr"
	"github.com/yourorg/payment-settlement/internal/payment"
)

// Processor holds the adapter registry.
type Processor struct {
	adapterRegistry map[payment.PGType]adapter.ProviderAdapter
}

// NewProcessor creates a Processor over adapters. Duplicate PG types panic.
func NewProcessor(adapters ...adapter.ProviderAdapter) *Processor {
	registry := make(map[payment.PGType]adapter.ProviderAdapter, len(adapters))
	for _, a := range adapters {
		if a == nil {
			panic("processor: nil adapter")
		}
		if _, dup := registry[a.PGType()]; dup {
			panic(fmt.Sprintf("processor: duplicate adapter for %s", a.PGType()))
		}
		registry[a.PGType()] = a
	}
	return &Processor{adapterRegistry: registry}
}

func (p *Processor) lookup(pg payment.PGType) (adapter.ProviderAdapter, error) {
	a, ok := p.adapterRegistry[pg]
	if !ok {
		return nil, apperr.Newf(apperr.UnsupportedProvider, "no adapter registered for pg type %q", pg)
	}
	return a, nil
}

// Supports reports whether pg has a registered adapter.
func (p *Processor) Supports(pg payment.PGType) bool {
	_, ok := p.adapterRegistry[pg]
	return ok
}

// SupportsApproval reports whether pg has a server-side approval API.
func (p *Processor) SupportsApproval(pg payment.PGType) bool {
	a, ok := p.adapterRegistry[pg]
	if !ok {
		return false
	}
	_, ok = a.(adapter.ApprovalAdapter)
	return ok
}

// BuildInitiationPayload dispatches to the adapter for req.Payment.PGType.
func (p *Processor) BuildInitiationPayload(req adapter.InitiationRequest) (adapter.InitiationPayload, error) {
	if req.Payment == nil {
		return nil, apperr.New(apperr.InvalidArgument, "processor: payment cannot be nil")
	}
	a, err := p.lookup(req.Payment.PGType)
	if err != nil {
		return nil, err
	}
	return a.BuildInitiationPayload(req)
}

// Approve performs a single approval attempt.
func (p *Processor) Approve(ctx context.Context, req adapter.ApprovalRequest) (adapter.ApprovalResult, error) {
	if req.Payment == nil {
		return adapter.ApprovalResult{}, apperr.New(apperr.InvalidArgument, "processor: payment cannot be nil")
	}
	a, err := p.lookup(req.Payment.PGType)
	if err != nil {
		return adapter.ApprovalResult{}, err
	}
	approver, ok := a.(adapter.ApprovalAdapter)
	if !ok {
		return adapter.ApprovalResult{}, apperr.Newf(apperr.UnsupportedProvider, "pg type %q has no server-side approval", req.Payment.PGType)
	}
	return approver.Approve(ctx, req)
}
