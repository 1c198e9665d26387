package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/yourorg/payment-settlement/internal/reqctx"
)

const userIDClaim = "user_id"

// RequestID attaches a correlation id to the request context and echoes it
// in the response header.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		tc := reqctx.NewTraceContext(c.GetHeader(reqctx.HeaderRequestID))
		c.Request = c.Request.WithContext(reqctx.With(c.Request.Context(), tc))
		c.Header(reqctx.HeaderRequestID, tc.RequestID)
		c.Next()
	}
}

// Logger writes one access log line per request.
func Logger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		c.Next()

		fields := append(reqctx.Fields(c.Request.Context()),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			log.Error("request", fields...)
		case c.Writer.Status() >= http.StatusBadRequest:
			log.Warn("request", fields...)
		default:
			log.Info("request", fields...)
		}
	}
}

// Recovery turns a handler panic into a 500 response.
func Recovery(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("panic recovered",
					append(reqctx.Fields(c.Request.Context()),
						zap.Any("panic", r),
						zap.ByteString("stack", debug.Stack()),
					)...)
				RespondWithError(c, http.StatusInternalServerError, "unexpected error")
			}
		}()
		c.Next()
	}
}

// JWTAuth requires an HS256 bearer token whose user_id claim names the caller.
func JWTAuth(secret string) gin.HandlerFunc {
	key := []byte(secret)
	return func(c *gin.Context) {
		if len(key) == 0 {
			RespondWithError(c, http.StatusUnauthorized, "authentication is not configured")
			return
		}
		header := c.GetHeader("Authorization")
		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenString == "" {
			RespondWithError(c, http.StatusUnauthorized, "missing bearer token")
			return
		}

		claims := jwt.MapClaims{}
		_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
			return key, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil {
			RespondWithError(c, http.StatusUnauthorized, "invalid token")
			return
		}
		userID, err := claimUserID(claims)
		if err != nil {
			RespondWithError(c, http.StatusUnauthorized, err.Error())
			return
		}
		c.Request = c.Request.WithContext(reqctx.WithUserID(c.Request.Context(), userID))
		c.Next()
	}
}

// claimUserID accepts the user_id claim as a string or a JSON number.
func claimUserID(claims jwt.MapClaims) (string, error) {
	switch v := claims[userIDClaim].(type) {
	case string:
		if v != "" {
			return v, nil
		}
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10), nil
		}
		return "", fmt.Errorf("%s claim must be an integer", userIDClaim)
	}
	return "", errors.New("token has no " + userIDClaim + " claim")
}

// SignToken issues an HS256 token for userID. It is used by tests and the CLI.
func SignToken(secret, userID string, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		userIDClaim: userID,
		"exp":       time.Now().Add(ttl).Unix(),
	})
	return token.SignedString([]byte(secret))
}
