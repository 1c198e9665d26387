package payment

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yourorg/payment-settlement/internal/apperr"
)

// PGType identifies a payment gateway provider.
type PGType string

const (
	PGNicePay  PGType = "NICEPAY"
	PGToss     PGType = "TOSS"
	PGKakaoPay PGType = "KAKAO_PAY"
)

// PGTypes lists every supported provider.
var PGTypes = []PGType{PGNicePay, PGToss, PGKakaoPay}

// Valid reports whether t is a supported provider.
func (t PGType) Valid() bool {
	switch t {
	case PGNicePay, PGToss, PGKakaoPay:
		return true
	}
	return false
}

// OrderPrefix is the leading segment of pgOrderIds issued for t.
func (t PGType) OrderPrefix() string {
	switch t {
	case PGNicePay:
		return "NICE"
	case PGToss:
		return "TOSS"
	case PGKakaoPay:
		return "KAKAO"
	default:
		return "ORDER"
	}
}

// Key is the lower-case provider name used for breaker state, metrics and logs.
func (t PGType) Key() string {
	return strings.ToLower(strings.ReplaceAll(string(t), "_", ""))
}

// ParsePGType validates a client supplied provider name.
func ParsePGType(s string) (PGType, error) {
	t := PGType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", apperr.Newf(apperr.UnsupportedProvider, "unsupported pg type %q", s)
	}
	return t, nil
}

// NewPgOrderID returns {prefix}_{unixMillis}_{8 random hex chars}.
func NewPgOrderID(t PGType, now time.Time) string {
	return fmt.Sprintf("%s_%d_%s", t.OrderPrefix(), now.UnixMilli(), uuid.NewString()[:8])
}
