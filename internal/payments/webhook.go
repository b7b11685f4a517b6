package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/lemonmilkceo/final-sub001/internal/apperr"
	"github.com/lemonmilkceo/final-sub001/internal/models"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw webhook body.
const SignatureHeader = "X-Signature"

var ErrBadSignature = apperr.New(apperr.KindAuthorization, "bad_signature", "webhook signature mismatch")

// Gateway status values carried by the webhook body.
const (
	GatewayDone     = "DONE"
	GatewayAborted  = "ABORTED"
	GatewayCanceled = "CANCELED"
	GatewayExpired  = "EXPIRED"
)

// Sign returns the hex signature for body. Used by tests and the gateway simulator.
func Sign(secret, body []byte) string {
	m := hmac.New(sha256.New, secret)
	m.Write(body)
	return hex.EncodeToString(m.Sum(nil))
}

// VerifySignature checks header against the HMAC of body.
func VerifySignature(secret, body []byte, header string) error {
	header = strings.TrimSpace(header)
	if header == "" {
		return ErrBadSignature.Withf("missing %s header", SignatureHeader)
	}
	got, err := hex.DecodeString(header)
	if err != nil {
		return ErrBadSignature.Withf("signature is not hex")
	}
	m := hmac.New(sha256.New, secret)
	m.Write(body)
	if !hmac.Equal(got, m.Sum(nil)) {
		return ErrBadSignature
	}
	return nil
}

// failureStatus maps a gateway failure status to the local payment status.
func failureStatus(gateway string) (string, bool) {
	switch gateway {
	case GatewayAborted, GatewayExpired:
		return models.PaymentStatusFailed, true
	case GatewayCanceled:
		return models.PaymentStatusCancelled, true
	}
	return "", false
}
