package client

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/yourorg/payment-settlement/internal/apperr"
	"github.com/yourorg/payment-settlement/internal/retry"
)

// OrderBackoff is the retry budget for order service calls.
var OrderBackoff = retry.Backoff{MaxAttempts: 3, Initial: 200 * time.Millisecond, Multiplier: 2, Max: 2 * time.Second}

// CreateOrderRequest is the order service's creation body.
type CreateOrderRequest struct {
	UserID      string `json:"userId"`
	ProductID   int64  `json:"productId"`
	PaymentID   int64  `json:"paymentId"`
	TotalAmount int64  `json:"totalAmount"`
}

// OrderConfig adds retry settings to Config.
type OrderConfig struct {
	Config
	Backoff retry.Backoff
	Sleep   func(ctx context.Context, d time.Duration) error
}

// OrderClient creates orders and pushes status changes to the order service.
type OrderClient struct {
	baseClient
	backoff retry.Backoff
	sleep   func(ctx context.Context, d time.Duration) error
}

func NewOrderClient(cfg OrderConfig) *OrderClient {
	if cfg.Backoff.MaxAttempts == 0 {
		cfg.Backoff = OrderBackoff
	}
	return &OrderClient{
		baseClient: newBaseClient("order-service", cfg.Config),
		backoff:    cfg.Backoff,
		sleep:      cfg.Sleep,
	}
}

func (c *OrderClient) retry(ctx context.Context, op string, fn retry.Op) error {
	opts := []retry.Option{
		retry.WithRetryIf(func(_ int, err error) bool { return apperr.Retryable(err) }),
		retry.WithOnRetry(func(attempt int, err error, wait time.Duration) {
			c.logger.Warn("order service call failed, retrying",
				zap.String("op", op),
				zap.Int("attempt", attempt),
				zap.Duration("wait", wait),
				zap.Error(err),
			)
		}),
	}
	if c.sleep != nil {
		opts = append(opts, retry.WithSleep(c.sleep))
	}
	_, err := retry.Do(ctx, c.backoff, fn, opts...)
	return err
}

// CreateOrder returns the remote order id. The service may answer with a bare
// JSON string, an object carrying orderId or id, or plain text.
func (c *OrderClient) CreateOrder(ctx context.Context, req CreateOrderRequest) (string, error) {
	var orderID string
	err := c.retry(ctx, "create_order", func(ctx context.Context, _ int) error {
		status, raw, err := c.do(ctx, http.MethodPost, "/api/orders", req)
		if err != nil {
			return err
		}
		if status < 200 || status >= 300 {
			return apperr.Newf(apperr.Internal, "order service rejected order creation: HTTP %d", status)
		}
		id, err := parseOrderID(raw)
		if err != nil {
			return err
		}
		orderID = id
		return nil
	})
	return orderID, err
}

// UpdateOrderStatus pushes a payment outcome to the order. Duplicate pushes are harmless.
func (c *OrderClient) UpdateOrderStatus(ctx context.Context, orderID, status string) error {
	path := "/api/orders/" + url.PathEscape(orderID) + "/status?status=" + url.QueryEscape(status)
	return c.retry(ctx, "update_order_status", func(ctx context.Context, _ int) error {
		code, _, err := c.do(ctx, http.MethodPut, path, nil)
		if err != nil {
			return err
		}
		if code < 200 || code >= 300 {
			return apperr.Newf(apperr.Internal, "order service rejected status %s for order %s: HTTP %d", status, orderID, code)
		}
		return nil
	})
}

func parseOrderID(raw []byte) (string, error) {
	body := bytes.TrimSpace(raw)
	if len(body) == 0 {
		return "", apperr.New(apperr.Internal, "order service returned an empty order id")
	}
	switch body[0] {
	case '"':
		var s string
		if err := json.Unmarshal(body, &s); err != nil {
			return "", apperr.Wrap(apperr.Internal, "malformed order id", err)
		}
		return nonBlank(s)
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(body, &obj); err != nil {
			return "", apperr.Wrap(apperr.Internal, "malformed order response", err)
		}
		for _, key := range []string{"orderId", "id"} {
			if v, ok := obj[key]; ok {
				return scalar(v)
			}
		}
		return "", apperr.New(apperr.Internal, "order response has no orderId")
	}
	return nonBlank(string(body))
}

func scalar(v json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return nonBlank(s)
	}
	var n json.Number
	if err := json.Unmarshal(v, &n); err == nil {
		if _, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
			return n.String(), nil
		}
	}
	return "", apperr.Newf(apperr.Internal, "unsupported order id %s", string(v))
}

func nonBlank(s string) (string, error) {
	if s == "" {
		return "", apperr.New(apperr.Internal, "order service returned an empty order id")
	}
	return s, nil
}
