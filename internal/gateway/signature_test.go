package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignVerifyRoundtrip(t *testing.T) {
	b := WebhookBatch{
		AccessKey: "ak_live_1",
		Transactions: []WebhookEntry{
			{OrderID: "ord-1", Status: "paid", Amount: 50000, Currency: "INR", CustomUserID: "u1", CustomTransactionID: "DEP-AAA"},
			{OrderID: "ord-2", Status: "failed", Amount: 1200, Currency: "INR", CustomUserID: "u2", CustomTransactionID: "WDL-BBB"},
		},
	}
	canonical, err := b.Canonical()
	require.NoError(t, err)

	b.Signature = Sign("ak_live_1", "sk_secret", canonical)
	assert.True(t, VerifySignature("ak_live_1", "sk_secret", b.Signature, canonical))
}

func TestVerifySignatureRejectsTampering(t *testing.T) {
	b := WebhookBatch{
		AccessKey: "ak_live_1",
		Transactions: []WebhookEntry{
			{OrderID: "ord-1", Status: "paid", Amount: 50000, Currency: "INR", CustomUserID: "u1", CustomTransactionID: "DEP-AAA"},
		},
	}
	canonical, err := b.Canonical()
	require.NoError(t, err)
	sig := Sign("ak_live_1", "sk_secret", canonical)

	// Amount inflated after signing.
	b.Transactions[0].Amount = 5000000
	tampered, err := b.Canonical()
	require.NoError(t, err)
	assert.False(t, VerifySignature("ak_live_1", "sk_secret", sig, tampered))

	// Wrong secret.
	assert.False(t, VerifySignature("ak_live_1", "sk_other", sig, canonical))

	// Garbage signature.
	assert.False(t, VerifySignature("ak_live_1", "sk_secret", "deadbeef", canonical))
}
