package pse

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// SignatureHeader carries the HMAC of a request, return or notification.
const SignatureHeader = "X-Rutavity-Signature"

// Payload is the canonical string signed for a transaction:
// "reference|amount|currency|public_key", amount in minor units.
func Payload(reference string, amountMinor int64, currency, publicKey string) string {
	return strings.Join([]string{reference, strconv.FormatInt(amountMinor, 10), currency, publicKey}, "|")
}

// ReturnPayload is the string signed on a browser return that carries a
// state: the transaction payload followed by "|state|transaction_id". A
// return without a state is signed with Payload alone and its state is
// queried from the processor.
func ReturnPayload(reference string, amountMinor int64, currency, publicKey, state, transactionID string) string {
	return Payload(reference, amountMinor, currency, publicKey) + "|" + state + "|" + transactionID
}

// Sign returns the lower-case hex HMAC-SHA256 of payload under key.
func Sign(key, payload string) string {
	return SignBytes(key, []byte(payload))
}

// SignBytes is Sign for a raw body.
func SignBytes(key string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the signature of payload and compares it in constant
// time. Upper-case hex is accepted.
func Verify(key, payload, signature string) bool {
	return VerifyBytes(key, []byte(payload), signature)
}

// VerifyBytes is Verify for a raw body.
func VerifyBytes(key string, body []byte, signature string) bool {
	if key == "" || signature == "" {
		return false
	}
	got, err := hex.DecodeString(strings.ToLower(strings.TrimSpace(signature)))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), got)
}
