// Package adapter defines the contract between the settlement core and the
// payment gateway providers. Each provider package builds its own initiation
// payload type and, where the provider exposes one, performs the approval call.
//
// An adapter makes exactly one attempt per call. Retry and circuit breaking
// are applied by the router that owns the adapters.
package adapter

import (
	"context"

	"github.com/yourorg/payment-settlement/internal/payment"
)

// InitiationRequest carries what a provider needs to render its checkout.
type InitiationRequest struct {
	Payment      *payment.Payment
	ProductTitle string
	UserEmail    string
	UserNickname string
	// ReturnURL overrides the provider's configured default when non-empty.
	ReturnURL string
}

// InitiationPayload is the client-facing payload for one provider. Fields
// returns the flat representation handed to the client SDK; it never
// contains secret credentials.
type InitiationPayload interface {
	Provider() payment.PGType
	Fields() map[string]any
}

// ApprovalRequest is the provider callback data for a pending payment.
type ApprovalRequest struct {
	Payment       *payment.Payment
	TransactionID string
	AuthToken     string
	// Amount is the decimal amount string echoed by the provider callback.
	Amount string
}

// ApprovalResult is the validated outcome of a successful approval call.
type ApprovalResult struct {
	// TransactionID is the id the payment should record as its pgTid.
	TransactionID string
	ResultCode    string
	ResultMessage string
	HTTPStatus    int
	LatencyMs     int64
	RawResponse   []byte
}

// ProviderAdapter is implemented by every provider.
type ProviderAdapter interface {
	PGType() payment.PGType
	BuildInitiationPayload(req InitiationRequest) (InitiationPayload, error)
}

// ApprovalAdapter is implemented by providers with a server-side approval API.
//
// Approve returns an *apperr.Error of kind GatewayRejected when the provider
// declines, GatewayUnavailable for transport or envelope failures, and
// InvalidArgument when the request cannot be built. The returned result's
// HTTPStatus is populated whenever a response was received.
type ApprovalAdapter interface {
	ProviderAdapter
	Approve(ctx context.Context, req ApprovalRequest) (ApprovalResult, error)
}
