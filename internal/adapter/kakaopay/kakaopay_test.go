package kakaopay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/payment-settlement/internal/adapter"
	"github.com/yourorg/payment-settlement/internal/payment"
)

func TestBuildInitiationPayload(t *testing.T) {
	p, err := payment.New(payment.NewParams{PgOrderID: "KAKAO_1_abcdef12", UserID: "u1", TotalAmount: 700, PGType: payment.PGKakaoPay})
	require.NoError(t, err)

	got, err := NewAdapter().BuildInitiationPayload(adapter.InitiationRequest{Payment: p, ProductTitle: "Mug", ReturnURL: "https://x/r"})
	require.NoError(t, err)
	assert.Equal(t, payment.PGKakaoPay, got.Provider())
	fields := got.Fields()
	assert.Equal(t, "KAKAO_1_abcdef12", fields["orderId"])
	assert.Equal(t, int64(700), fields["amount"])
	assert.Equal(t, "Mug", fields["productName"])
	assert.Equal(t, "https://x/r", fields["returnUrl"])
}
