// Package router wraps provider calls in the gateway resilience policy: a
// per-provider circuit breaker around a bounded exponential-backoff retry.
package router

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/yourorg/payment-settlement/internal/adapter"
	"github.com/yourorg/payment-settlement/internal/apperr"
	"github.com/yourorg/payment-settlement/internal/metrics"
	"github.com/yourorg/payment-settlement/internal/payment"
	"github.com/yourorg/payment-settlement/internal/policy"
	"github.com/yourorg/payment-settlement/internal/retry"
	"github.com/yourorg/payment-settlement/internal/router/circuitbreaker"
)

// ProcessorInterface is the single-attempt dispatcher the router drives.
type ProcessorInterface interface {
	SupportsApproval(pg payment.PGType) bool
	Approve(ctx context.Context, req adapter.ApprovalRequest) (adapter.ApprovalResult, error)
	BuildInitiationPayload(req adapter.InitiationRequest) (adapter.InitiationPayload, error)
}

// Config holds the optional router collaborators.
type Config struct {
	Backoff retry.Backoff
	Metrics *metrics.Metrics
	Logger  *zap.Logger
	// Sleep replaces the wait between attempts. Tests use it to avoid real delays.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Router applies the resilience policy to approval calls.
type Router struct {
	processor      ProcessorInterface
	circuitBreaker *circuitbreaker.CircuitBreaker
	policy         *policy.RetryPolicyEnforcer
	backoff        retry.Backoff
	metrics        *metrics.Metrics
	logger         *zap.Logger
	sleep          func(ctx context.Context, d time.Duration) error
}

// NewRouter creates a Router. A zero Backoff means retry.DefaultBackoff.
func NewRouter(p ProcessorInterface, cb *circuitbreaker.CircuitBreaker, pe *policy.RetryPolicyEnforcer, cfg Config) *Router {
	if p == nil {
		panic("processor cannot be nil")
	}
	if cb == nil {
		panic("circuit breaker cannot be nil")
	}
	if pe == nil {
		panic("retry policy cannot be nil")
	}
	if cfg.Backoff.MaxAttempts == 0 {
		cfg.Backoff = retry.DefaultBackoff
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewNop()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Router{
		processor:      p,
		circuitBreaker: cb,
		policy:         pe,
		backoff:        cfg.Backoff,
		metrics:        cfg.Metrics,
		logger:         cfg.Logger,
		sleep:          cfg.Sleep,
	}
}

// CircuitStateObserver feeds breaker transitions into the circuit state gauge.
func CircuitStateObserver(m *metrics.Metrics) func(provider string, from, to circuitbreaker.State) {
	return func(provider string, _, to circuitbreaker.State) {
		m.CircuitState.WithLabelValues(provider).Set(float64(to))
	}
}

// BuildInitiationPayload dispatches payload construction. It is a pure
// computation and bypasses the breaker.
func (r *Router) BuildInitiationPayload(req adapter.InitiationRequest) (adapter.InitiationPayload, error) {
	return r.processor.BuildInitiationPayload(req)
}

// Approve runs the approval call under the breaker and retry policy.
//
// Cancellation of ctx is ignored once the call starts. Each attempt is bounded
// by the adapter's HTTP timeout and the whole call by the retry budget.
func (r *Router) Approve(ctx context.Context, req adapter.ApprovalRequest) (adapter.ApprovalResult, error) {
	if req.Payment == nil {
		return adapter.ApprovalResult{}, apperr.New(apperr.InvalidArgument, "router: payment cannot be nil")
	}
	pg := req.Payment.PGType
	if !r.processor.SupportsApproval(pg) {
		return adapter.ApprovalResult{}, apperr.Newf(apperr.UnsupportedProvider, "pg type %q has no server-side approval", pg)
	}
	provider := pg.Key()

	ctx, span := otel.Tracer("router").Start(context.WithoutCancel(ctx), "Router.Approve",
		trace.WithAttributes(
			attribute.String("payment.provider", provider),
			attribute.String("payment.pg_order_id", req.Payment.PgOrderID),
		))
	defer span.End()

	if !r.circuitBreaker.AllowRequest(provider) {
		r.metrics.GatewayRequests.WithLabelValues(provider, metrics.OutcomeCircuitOpen).Inc()
		err := apperr.Newf(apperr.GatewayUnavailable, "%s circuit open", provider)
		r.logger.Error("gateway call short-circuited", zap.String("provider", provider), zap.String("pg_order_id", req.Payment.PgOrderID))
		span.SetStatus(codes.Error, err.Error())
		return adapter.ApprovalResult{}, err
	}

	var last adapter.ApprovalResult
	opts := []retry.Option{
		retry.WithRetryIf(func(attempt int, err error) bool {
			return r.retryAllowed(provider, attempt, last.HTTPStatus, err)
		}),
		retry.WithOnRetry(func(attempt int, err error, wait time.Duration) {
			r.logger.Warn("gateway attempt failed, retrying",
				zap.String("provider", provider),
				zap.String("pg_order_id", req.Payment.PgOrderID),
				zap.Int("attempt", attempt),
				zap.Duration("wait", wait),
				zap.Error(err),
			)
		}),
	}
	if r.sleep != nil {
		opts = append(opts, retry.WithSleep(r.sleep))
	}
	attempts, err := retry.Do(ctx, r.backoff, func(ctx context.Context, attempt int) error {
		r.metrics.GatewayAttempts.WithLabelValues(provider).Inc()
		res, err := r.processor.Approve(ctx, req)
		r.metrics.GatewayLatency.WithLabelValues(provider).Observe(float64(res.LatencyMs) / 1000)
		last = res
		return err
	}, opts...)
	span.SetAttributes(attribute.Int("payment.gateway_attempts", attempts))

	switch kind := apperr.KindOf(err); {
	case err == nil:
		r.circuitBreaker.RecordSuccess(provider)
		r.metrics.GatewayRequests.WithLabelValues(provider, metrics.OutcomeSuccess).Inc()
		return last, nil
	case kind == apperr.GatewayRejected:
		// A decline is a healthy provider response.
		r.circuitBreaker.RecordSuccess(provider)
		r.metrics.GatewayRequests.WithLabelValues(provider, metrics.OutcomeRejected).Inc()
		span.SetStatus(codes.Error, err.Error())
		return last, err
	case kind == apperr.InvalidArgument || kind == apperr.InvalidAmount:
		r.metrics.GatewayRequests.WithLabelValues(provider, metrics.OutcomeInvalid).Inc()
		span.SetStatus(codes.Error, err.Error())
		return last, err
	default:
		r.circuitBreaker.RecordFailure(provider)
		r.metrics.GatewayRequests.WithLabelValues(provider, metrics.OutcomeUnavailable).Inc()
		wrapped := apperr.Wrap(apperr.GatewayUnavailable, fmt.Sprintf("%s unavailable after %d attempt(s)", provider, attempts), err)
		r.logger.Error("gateway call failed",
			zap.String("provider", provider),
			zap.String("pg_order_id", req.Payment.PgOrderID),
			zap.Int("attempts", attempts),
			zap.Error(err),
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, wrapped.Error())
		return last, wrapped
	}
}

func (r *Router) retryAllowed(provider string, attempt, httpStatus int, err error) bool {
	decision, perr := r.policy.Evaluate(policy.Attempt{
		Provider:    provider,
		Kind:        string(apperr.KindOf(err)),
		Number:      attempt,
		MaxAttempts: r.backoff.MaxAttempts,
		HTTPStatus:  httpStatus,
	})
	if perr != nil {
		r.logger.Error("retry policy evaluation failed", zap.String("provider", provider), zap.Error(perr))
		return apperr.Retryable(err)
	}
	return decision.AllowRetry
}
