// Package httpapi exposes the settlement workflow over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourorg/payment-settlement/internal/apperr"
	"github.com/yourorg/payment-settlement/internal/monitor"
	"github.com/yourorg/payment-settlement/internal/orchestrator"
	"github.com/yourorg/payment-settlement/internal/payment"
	"github.com/yourorg/payment-settlement/internal/reqctx"
)

const (
	authSuccessCode      = "0000"
	defaultCancelMessage = "payment cancelled"
)

// PaymentService is the slice of the orchestrator the handlers drive.
type PaymentService interface {
	PreparePayment(ctx context.Context, req orchestrator.PrepareRequest, userID string) (*orchestrator.PrepareResult, error)
	ApprovePayment(ctx context.Context, req orchestrator.ApproveRequest) (*payment.Payment, error)
	CancelPayment(ctx context.Context, pgOrderID, reason string) (*payment.Payment, error)
	GetPayment(ctx context.Context, pgOrderID string) (*payment.Payment, error)
	ListPayments(ctx context.Context, userID string, status payment.Status) ([]*payment.Payment, error)
}

// Handler serves the /api/payments routes.
type Handler struct {
	service       PaymentService
	frontendURL   string
	logger        *zap.Logger
	prepareSchema *monitor.ContractMonitor
	returnSchema  *monitor.ContractMonitor
}

func NewHandler(service PaymentService, frontendURL string, logger *zap.Logger) *Handler {
	if service == nil {
		panic("PaymentService cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		service:       service,
		frontendURL:   strings.TrimRight(frontendURL, "/"),
		logger:        logger,
		prepareSchema: monitor.MustContractMonitor(monitor.PrepareSchema),
		returnSchema:  monitor.MustContractMonitor(monitor.ReturnCallbackSchema),
	}
}

func (h *Handler) log(c *gin.Context) *zap.Logger {
	return h.logger.With(reqctx.Fields(c.Request.Context())...)
}

// Prepare handles POST /api/payments/prepare.
func (h *Handler) Prepare(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		RespondWithError(c, http.StatusBadRequest, "Invalid request format: "+err.Error())
		return
	}
	valid, violations, err := h.prepareSchema.Validate(body)
	if err != nil {
		RespondWithError(c, http.StatusBadRequest, "Invalid request format: request body is not JSON")
		return
	}
	if !valid {
		RespondWithError(c, http.StatusBadRequest, monitor.FormatErrors(violations))
		return
	}

	var req orchestrator.PrepareRequest
	if err := json.Unmarshal(body, &req); err != nil {
		RespondWithError(c, http.StatusBadRequest, "Invalid request format: "+err.Error())
		return
	}

	ctx := c.Request.Context()
	result, err := h.service.PreparePayment(ctx, req, reqctx.UserID(ctx))
	if err != nil {
		h.log(c).Warn("prepare payment failed", zap.Int64("product_id", req.ProductID), zap.Error(err))
		respondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, result.Payload.Fields())
}

// returnResult is the outcome handed to the frontend after a provider return.
type returnResult struct {
	Success        bool   `json:"success"`
	Status         string `json:"status"`
	Message        string `json:"message"`
	OrderID        string `json:"orderId"`
	Tid            string `json:"tid,omitempty"`
	AuthResultCode string `json:"authResultCode,omitempty"`
}

// Return handles POST /api/payments/return, the browser redirect the provider
// issues after authentication. It always answers with a redirect to the
// frontend result page.
func (h *Handler) Return(c *gin.Context) {
	orderID := c.PostForm("orderId")
	tid := c.PostForm("tid")
	authToken := c.PostForm("authToken")
	authResultCode := c.PostForm("authResultCode")
	amount := c.PostForm("amount")
	log := h.log(c).With(zap.String("pg_order_id", orderID), zap.String("auth_result_code", authResultCode))

	result := h.settleReturn(c, log, orderID, tid, authToken, authResultCode, amount)

	data, err := json.Marshal(result)
	if err != nil {
		RespondWithError(c, http.StatusInternalServerError, "unexpected error")
		return
	}
	c.Redirect(http.StatusFound, h.frontendURL+"/payment/result?data="+url.QueryEscape(string(data)))
}

func (h *Handler) settleReturn(c *gin.Context, log *zap.Logger, orderID, tid, authToken, authResultCode, amount string) returnResult {
	authFailed := returnResult{
		Status:         "failed",
		Message:        "payment authentication failed",
		OrderID:        orderID,
		AuthResultCode: authResultCode,
	}

	form := map[string]any{}
	for k, v := range map[string]string{
		"orderId": orderID, "tid": tid, "authToken": authToken,
		"authResultCode": authResultCode, "amount": amount,
	} {
		if v != "" {
			form[k] = v
		}
	}
	if valid, violations, err := h.returnSchema.ValidateValue(form); err != nil || !valid {
		log.Warn("malformed provider return", zap.Strings("violations", violations), zap.Bool("reconcile", true))
		return authFailed
	}
	if authResultCode != authSuccessCode || tid == "" || authToken == "" {
		log.Warn("provider authentication failed", zap.Bool("reconcile", true))
		return authFailed
	}
	if amount == "" {
		log.Warn("provider return without amount", zap.Bool("reconcile", true))
		return returnResult{Status: "failed", Message: "payment approval failed: amount is required", OrderID: orderID, Tid: tid}
	}

	_, err := h.service.ApprovePayment(c.Request.Context(), orchestrator.ApproveRequest{
		PgOrderID:     orderID,
		TransactionID: tid,
		AuthToken:     authToken,
		Amount:        amount,
	})
	if err != nil {
		log.Warn("payment approval failed", zap.String("tid", tid), zap.Error(err))
		return returnResult{
			Status:  "failed",
			Message: "payment approval failed: " + apperr.PublicMessage(err),
			OrderID: orderID,
			Tid:     tid,
		}
	}
	return returnResult{Success: true, Status: "success", Message: "payment completed", OrderID: orderID, Tid: tid}
}

// Cancel handles GET and POST /api/payments/cancel, the redirect the provider
// issues when the user abandons checkout. The request is unauthenticated, so it
// is acknowledged and logged for reconciliation without changing any payment.
func (h *Handler) Cancel(c *gin.Context) {
	orderID := firstNonEmpty(c.Query("orderId"), c.PostForm("orderId"))
	message := firstNonEmpty(c.Query("message"), c.PostForm("message"), defaultCancelMessage)

	h.log(c).Info("provider cancel redirect received",
		zap.String("pg_order_id", orderID),
		zap.String("message", message),
		zap.Bool("reconcile", orderID != ""))
	c.JSON(http.StatusOK, gin.H{
		"success": false,
		"status":  "cancelled",
		"message": message,
		"orderId": orderID,
	})
}

// CancelOwned handles POST /api/payments/:pgOrderId/cancel for the payment's owner.
func (h *Handler) CancelOwned(c *gin.Context) {
	ctx := c.Request.Context()
	pgOrderID := c.Param("pgOrderId")
	p, err := h.service.GetPayment(ctx, pgOrderID)
	if err != nil {
		respondAppError(c, err)
		return
	}
	if p.UserID != reqctx.UserID(ctx) {
		respondAppError(c, orchestrator.ErrPaymentNotFound)
		return
	}

	reason := firstNonEmpty(c.PostForm("reason"), defaultCancelMessage)
	p, err = h.service.CancelPayment(ctx, pgOrderID, reason)
	if err != nil {
		h.log(c).Warn("cancel not applied", zap.String("pg_order_id", pgOrderID), zap.Error(err))
		respondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// Webhook handles POST /api/payments/webhook/:type. Notifications are
// acknowledged and logged but not interpreted.
func (h *Handler) Webhook(c *gin.Context) {
	body, err := c.GetRawData()
	h.log(c).Debug("provider webhook received",
		zap.String("type", c.Param("type")),
		zap.ByteString("body", body),
		zap.Error(err))
	c.String(http.StatusOK, "OK")
}

// Get handles GET /api/payments/:pgOrderId for the payment's owner.
func (h *Handler) Get(c *gin.Context) {
	ctx := c.Request.Context()
	p, err := h.service.GetPayment(ctx, c.Param("pgOrderId"))
	if err != nil {
		respondAppError(c, err)
		return
	}
	if p.UserID != reqctx.UserID(ctx) {
		respondAppError(c, orchestrator.ErrPaymentNotFound)
		return
	}
	c.JSON(http.StatusOK, p)
}

// List handles GET /api/payments with an optional status filter.
func (h *Handler) List(c *gin.Context) {
	var status payment.Status
	if raw := c.Query("status"); raw != "" {
		st, err := payment.ParseStatus(raw)
		if err != nil {
			respondAppError(c, err)
			return
		}
		status = st
	}
	ctx := c.Request.Context()
	payments, err := h.service.ListPayments(ctx, reqctx.UserID(ctx), status)
	if err != nil {
		respondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payments": payments, "count": len(payments)})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
