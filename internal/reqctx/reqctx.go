// Package reqctx carries request-scoped correlation data through context.Context.
package reqctx

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// HeaderRequestID is the header used to propagate the correlation id.
const HeaderRequestID = "X-Request-ID"

// TraceContext holds the cross-cutting values attached to one request.
type TraceContext struct {
	RequestID string            // correlation id for logs
	UserID    string            // authenticated caller, empty for provider callbacks
	Baggage   map[string]string // optional flags
}

type ctxKey struct{}

// NewTraceContext uses requestID when present and generates one otherwise.
func NewTraceContext(requestID string) TraceContext {
	if requestID == "" {
		requestID = uuid.NewString()
	}
	return TraceContext{RequestID: requestID, Baggage: make(map[string]string)}
}

// With returns a child context carrying tc.
func With(ctx context.Context, tc TraceContext) context.Context {
	return context.WithValue(ctx, ctxKey{}, tc)
}

// From returns the TraceContext stored in ctx.
func From(ctx context.Context) (TraceContext, bool) {
	tc, ok := ctx.Value(ctxKey{}).(TraceContext)
	return tc, ok
}

// WithUserID records the authenticated caller on the request's TraceContext.
func WithUserID(ctx context.Context, userID string) context.Context {
	tc, ok := From(ctx)
	if !ok {
		tc = NewTraceContext("")
	}
	tc.UserID = userID
	return With(ctx, tc)
}

// RequestID returns the correlation id, or "" outside a request.
func RequestID(ctx context.Context) string {
	tc, _ := From(ctx)
	return tc.RequestID
}

// UserID returns the authenticated caller, or "".
func UserID(ctx context.Context) string {
	tc, _ := From(ctx)
	return tc.UserID
}

// Fields returns the zap fields that tie a log line to its request.
func Fields(ctx context.Context) []zap.Field {
	tc, ok := From(ctx)
	if !ok {
		return nil
	}
	fields := []zap.Field{zap.String("request_id", tc.RequestID)}
	if tc.UserID != "" {
		fields = append(fields, zap.String("user_id", tc.UserID))
	}
	return fields
}
