// Package signature verifies HMAC-SHA256 signatures on payment provider callbacks.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Verifier checks a signature against the untouched request payload.
type Verifier interface {
	Verify(payload []byte, signature string) bool
}

// HMAC signs and verifies hex encoded HMAC-SHA256 digests with one secret.
// Each provider channel (payment proof, webhook) gets its own instance.
type HMAC struct {
	secret []byte
}

func NewHMAC(secret string) *HMAC {
	return &HMAC{secret: []byte(secret)}
}

// Sign returns the lowercase hex digest of payload.
func (h *HMAC) Sign(payload []byte) string {
	mac := hmac.New(sha256.New, h.secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature matches payload. An unset secret never verifies.
func (h *HMAC) Verify(payload []byte, signature string) bool {
	if len(h.secret) == 0 || signature == "" {
		return false
	}

	received, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, h.secret)
	mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), received)
}

// PaymentProof builds the "order_id|payment_id" message Razorpay checkout signs.
func PaymentProof(orderID, paymentID string) []byte {
	return []byte(orderID + "|" + paymentID)
}
