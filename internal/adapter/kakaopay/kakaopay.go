// Package kakaopay builds KakaoPay checkout payloads.
package kakaopay

import (
	"github.com/yourorg/payment-settlement/internal/adapter"
	"github.com/yourorg/payment-settlement/internal/apperr"
	"github.com/yourorg/payment-settlement/internal/payment"
)

// Payload is the KakaoPay checkout payload.
type Payload struct {
	OrderID     string `json:"orderId"`
	Amount      int64  `json:"amount"`
	ProductName string `json:"productName"`
	ReturnURL   string `json:"returnUrl"`
}

func (p Payload) Provider() payment.PGType { return payment.PGKakaoPay }

func (p Payload) Fields() map[string]any {
	return map[string]any{
		"orderId":     p.OrderID,
		"amount":      p.Amount,
		"productName": p.ProductName,
		"returnUrl":   p.ReturnURL,
	}
}

// Adapter implements adapter.ProviderAdapter for KakaoPay. It has no
// server-side approval API.
type Adapter struct{}

var _ adapter.ProviderAdapter = Adapter{}

func NewAdapter() Adapter { return Adapter{} }

func (Adapter) PGType() payment.PGType { return payment.PGKakaoPay }

func (Adapter) BuildInitiationPayload(req adapter.InitiationRequest) (adapter.InitiationPayload, error) {
	if req.Payment == nil {
		return nil, apperr.New(apperr.InvalidArgument, "payment is required")
	}
	return Payload{
		OrderID:     req.Payment.PgOrderID,
		Amount:      req.Payment.TotalAmount,
		ProductName: req.ProductTitle,
		ReturnURL:   req.ReturnURL,
	}, nil
}
