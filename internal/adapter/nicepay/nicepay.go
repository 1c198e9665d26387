// Package nicepay talks to the NicePay settlement API.
package nicepay

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yourorg/payment-settlement/internal/adapter"
	"github.com/yourorg/payment-settlement/internal/apperr"
	"github.com/yourorg/payment-settlement/internal/payment"
)

const (
	// SuccessCode is the resultCode NicePay returns for an approved transaction.
	SuccessCode = "0000"
	userAgent   = "payment-settlement/1.0"
	currencyKRW = "KRW"
	maxBodySize = 1 << 20
)

// Config is the immutable NicePay configuration.
type Config struct {
	ClientID  string
	SecretKey string
	BaseURL   string
	ReturnURL string
	CancelURL string
}

// Adapter implements adapter.ApprovalAdapter for NicePay.
type Adapter struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger
	now        func() time.Time
}

var _ adapter.ApprovalAdapter = (*Adapter)(nil)

// NewAdapter creates a NicePay adapter. A nil client gets a 10s timeout client.
func NewAdapter(cfg Config, client *http.Client, logger *zap.Logger) *Adapter {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Adapter{
		cfg:        cfg,
		httpClient: client,
		logger:     logger.With(zap.String("provider", payment.PGNicePay.Key())),
		now:        time.Now,
	}
}

// PGType implements adapter.ProviderAdapter.
func (a *Adapter) PGType() payment.PGType { return payment.PGNicePay }

type approvalBody struct {
	Amount    int    `json:"amount"`
	OrderID   string `json:"orderId"`
	AuthToken string `json:"authToken"`
}

type approvalResponse struct {
	ResultCode *string `json:"resultCode"`
	ResultMsg  string  `json:"resultMsg"`
	TID        string  `json:"tid"`
}

// Approve issues a single approval call for req.
func (a *Adapter) Approve(ctx context.Context, req adapter.ApprovalRequest) (adapter.ApprovalResult, error) {
	p := req.Payment
	tid := strings.TrimSpace(req.TransactionID)
	if tid == "" {
		a.logger.Warn("tid missing from callback, approving by pgOrderId", zap.String("pg_order_id", p.PgOrderID))
		tid = p.PgOrderID
	}

	amount, err := strconv.Atoi(strings.TrimSpace(req.Amount))
	if err != nil {
		return adapter.ApprovalResult{}, apperr.Wrap(apperr.InvalidArgument, fmt.Sprintf("amount %q is not an integer", req.Amount), err)
	}
	body, err := json.Marshal(approvalBody{Amount: amount, OrderID: p.PgOrderID, AuthToken: req.AuthToken})
	if err != nil {
		return adapter.ApprovalResult{}, apperr.Wrap(apperr.Internal, "encoding approval body", err)
	}

	endpoint := fmt.Sprintf("%s/v1/payments/%s", a.cfg.BaseURL, url.PathEscape(tid))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return adapter.ApprovalResult{}, apperr.Wrap(apperr.Internal, "building approval request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", userAgent)
	httpReq.Header.Set("Authorization", "Basic "+a.basicCredentials())

	a.logger.Info("nicepay approval request",
		zap.String("url", endpoint),
		zap.String("pg_order_id", p.PgOrderID),
		zap.String("tid", tid),
		zap.Int("amount", amount),
		zap.String("client_id", a.cfg.ClientID),
		zap.String("secret_key", maskSecret(a.cfg.SecretKey)),
	)

	start := a.now()
	resp, err := a.httpClient.Do(httpReq)
	latency := a.now().Sub(start).Milliseconds()
	if err != nil {
		return adapter.ApprovalResult{LatencyMs: latency}, apperr.Wrap(apperr.GatewayUnavailable, "nicepay request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	result := adapter.ApprovalResult{HTTPStatus: resp.StatusCode, LatencyMs: latency, RawResponse: raw}
	if err != nil {
		return result, apperr.Wrap(apperr.GatewayUnavailable, "reading nicepay response", err)
	}

	decoded, decodeErr := decodeResponse(raw)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if decodeErr == nil && decoded != nil && decoded.ResultCode != nil && *decoded.ResultCode != SuccessCode {
			return result, rejection(*decoded)
		}
		return result, apperr.Newf(apperr.GatewayUnavailable, "nicepay returned HTTP %d", resp.StatusCode)
	}
	if decodeErr != nil {
		return result, apperr.Wrap(apperr.GatewayUnavailable, "malformed nicepay response", decodeErr)
	}
	if decoded == nil {
		return result, apperr.New(apperr.GatewayUnavailable, "nicepay approval returned an empty response")
	}

	a.logger.Info("nicepay approval response",
		zap.String("pg_order_id", p.PgOrderID),
		zap.Int("status", resp.StatusCode),
		zap.Int64("latency_ms", latency),
	)

	if decoded.ResultCode != nil && *decoded.ResultCode != SuccessCode {
		return result, rejection(*decoded)
	}

	result.ResultCode = SuccessCode
	if decoded.ResultCode != nil {
		result.ResultCode = *decoded.ResultCode
	}
	result.ResultMessage = decoded.ResultMsg
	result.TransactionID = tid
	if decoded.TID != "" {
		result.TransactionID = decoded.TID
	}
	return result, nil
}

// decodeResponse returns nil for an empty or JSON null body.
func decodeResponse(raw []byte) (*approvalResponse, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	var r approvalResponse
	if err := json.Unmarshal(trimmed, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func rejection(r approvalResponse) error {
	msg := r.ResultMsg
	if msg == "" {
		msg = "unknown error"
	}
	return apperr.Rejected(payment.PGNicePay.Key(), *r.ResultCode, msg)
}

func (a *Adapter) basicCredentials() string {
	return base64.StdEncoding.EncodeToString([]byte(a.cfg.ClientID + ":" + a.cfg.SecretKey))
}

func maskSecret(s string) string {
	if len(s) > 8 {
		s = s[:8]
	}
	return s + "..."
}
