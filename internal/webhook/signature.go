// Package webhook signs and delivers lifecycle event notifications.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const sigPrefix = "sha256="

// Sign computes the signature header value for a payload: the hex HMAC-SHA256
// of the payload under the shared secret, prefixed with the scheme name.
func Sign(secret, payload []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	return sigPrefix + hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature is a valid signature of payload under
// secret. The comparison is constant time. A missing prefix, malformed hex,
// or any mismatch returns false rather than an error.
func Verify(secret, payload []byte, signature string) bool {
	encoded, ok := strings.CutPrefix(signature, sigPrefix)
	if !ok {
		return false
	}
	got, err := hex.DecodeString(encoded)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	return hmac.Equal(got, mac.Sum(nil))
}
