package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	"github.com/carebridge/backend/internal/domain/shared"
)

// HMACVerifier authenticates webhook payloads signed with HMAC-SHA256.
// The partner computes the hex-encoded digest over the raw request body
// and sends it alongside the payload.
type HMACVerifier struct {
	secret []byte
}

// NewHMACVerifier creates a verifier for the given shared secret
func NewHMACVerifier(secret string) *HMACVerifier {
	return &HMACVerifier{secret: []byte(secret)}
}

// Verify checks the signature against the payload. Comparison is
// constant-time.
func (v *HMACVerifier) Verify(payload []byte, signature string) error {
	if len(v.secret) == 0 || signature == "" {
		return shared.ErrUnauthorized
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return shared.ErrUnauthorized
	}
	return nil
}

// BearerVerifier authenticates webhook requests carrying a static shared
// token instead of a payload signature. Some partners only support this.
type BearerVerifier struct {
	token string
}

// NewBearerVerifier creates a verifier for the given token
func NewBearerVerifier(token string) *BearerVerifier {
	return &BearerVerifier{token: token}
}

// Verify checks the presented credential against the configured token.
// The payload is ignored.
func (v *BearerVerifier) Verify(_ []byte, credential string) error {
	if v.token == "" || credential == "" {
		return shared.ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(v.token), []byte(credential)) != 1 {
		return shared.ErrUnauthorized
	}
	return nil
}
