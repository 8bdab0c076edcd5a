package gateway

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
)

// WebhookEntry is one notification inside a webhook batch, in the
// aggregator's wire field order. Amount is in minor units.
type WebhookEntry struct {
	OrderID             string `json:"order_id"`
	Status              string `json:"status"`
	Amount              int64  `json:"amount"`
	Currency            string `json:"currency"`
	CustomUserID        string `json:"custom_user_id"`
	CustomTransactionID string `json:"custom_transaction_id"`
	PaymentSystem       string `json:"payment_system"`
	AccountNumber       string `json:"account_number"`
}

type WebhookBatch struct {
	AccessKey    string         `json:"access_key"`
	Signature    string         `json:"signature"`
	Transactions []WebhookEntry `json:"transactions"`
}

// Canonical returns the JSON form of the transactions array that the
// signature covers.
func (b WebhookBatch) Canonical() ([]byte, error) {
	return json.Marshal(b.Transactions)
}

// Sign computes SHA1hex(accessKey + secret + MD5hex(canonical)), the
// aggregator's batch signature scheme.
func Sign(accessKey, secret string, canonical []byte) string {
	inner := md5.Sum(canonical)
	innerHex := hex.EncodeToString(inner[:])
	outer := sha1.Sum([]byte(accessKey + secret + innerHex))
	return hex.EncodeToString(outer[:])
}

// VerifySignature checks a batch signature in constant time. This is the only
// authenticity guard in front of wallet mutation; a mismatch must reject the
// whole batch.
func VerifySignature(accessKey, secret, signature string, canonical []byte) bool {
	want := Sign(accessKey, secret, canonical)
	return subtle.ConstantTimeCompare([]byte(want), []byte(signature)) == 1
}
