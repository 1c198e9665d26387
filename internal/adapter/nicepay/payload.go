package nicepay

import (
	"github.com/yourorg/payment-settlement/internal/adapter"
	"github.com/yourorg/payment-settlement/internal/apperr"
	"github.com/yourorg/payment-settlement/internal/payment"
)

// Payload is the NicePay checkout payload. It has no field for the secret key.
type Payload struct {
	OrderID       string `json:"orderId"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	GoodsName     string `json:"goodsName"`
	CustomerEmail string `json:"customerEmail"`
	CustomerName  string `json:"customerName"`
	ReturnURL     string `json:"returnUrl"`
	CancelURL     string `json:"cancelUrl"`
	ClientID      string `json:"clientId"`
	BaseURL       string `json:"baseUrl"`
	Timestamp     int64  `json:"timestamp"`
}

func (p Payload) Provider() payment.PGType { return payment.PGNicePay }

func (p Payload) Fields() map[string]any {
	return map[string]any{
		"orderId":       p.OrderID,
		"amount":        p.Amount,
		"currency":      p.Currency,
		"goodsName":     p.GoodsName,
		"customerEmail": p.CustomerEmail,
		"customerName":  p.CustomerName,
		"returnUrl":     p.ReturnURL,
		"cancelUrl":     p.CancelURL,
		"clientId":      p.ClientID,
		"baseUrl":       p.BaseURL,
		"timestamp":     p.Timestamp,
	}
}

// BuildInitiationPayload implements adapter.ProviderAdapter.
func (a *Adapter) BuildInitiationPayload(req adapter.InitiationRequest) (adapter.InitiationPayload, error) {
	if req.Payment == nil {
		return nil, apperr.New(apperr.InvalidArgument, "payment is required")
	}
	returnURL := req.ReturnURL
	if returnURL == "" {
		returnURL = a.cfg.ReturnURL
	}
	return Payload{
		OrderID:       req.Payment.PgOrderID,
		Amount:        req.Payment.TotalAmount,
		Currency:      currencyKRW,
		GoodsName:     req.ProductTitle,
		CustomerEmail: req.UserEmail,
		CustomerName:  req.UserNickname,
		ReturnURL:     returnURL,
		CancelURL:     a.cfg.CancelURL,
		ClientID:      a.cfg.ClientID,
		BaseURL:       a.cfg.BaseURL,
		Timestamp:     a.now().UnixMilli(),
	}, nil
}
