package webhook

import (
	"strings"
	"testing"
)

func TestSignVerify(t *testing.T) {
	secret := []byte("test-secret")
	payload := []byte(`{"type":"request.completed","request_id":"abc"}`)

	t.Run("roundtrip verifies", func(t *testing.T) {
		sig := Sign(secret, payload)
		if !strings.HasPrefix(sig, "sha256=") {
			t.Errorf("signature missing scheme prefix: %q", sig)
		}
		if !Verify(secret, payload, sig) {
			t.Error("valid signature rejected")
		}
	})

	t.Run("empty payload", func(t *testing.T) {
		sig := Sign(secret, nil)
		if !Verify(secret, nil, sig) {
			t.Error("empty payload signature rejected")
		}
	})

	t.Run("empty secret", func(t *testing.T) {
		sig := Sign(nil, payload)
		if !Verify(nil, payload, sig) {
			t.Error("empty secret signature rejected")
		}
	})

	t.Run("large non-ascii payload", func(t *testing.T) {
		big := []byte(strings.Repeat("héllo wörld ", 100000))
		sig := Sign(secret, big)
		if !Verify(secret, big, sig) {
			t.Error("large payload signature rejected")
		}
	})

	t.Run("deterministic", func(t *testing.T) {
		if Sign(secret, payload) != Sign(secret, payload) {
			t.Error("same inputs produced different signatures")
		}
	})

	t.Run("tampered payload rejected", func(t *testing.T) {
		sig := Sign(secret, payload)
		if Verify(secret, []byte(`{"type":"request.failed"}`), sig) {
			t.Error("tampered payload verified")
		}
	})

	t.Run("wrong secret rejected", func(t *testing.T) {
		sig := Sign(secret, payload)
		if Verify([]byte("other-secret"), payload, sig) {
			t.Error("wrong secret verified")
		}
	})

	t.Run("missing prefix rejected", func(t *testing.T) {
		sig := Sign(secret, payload)
		if Verify(secret, payload, strings.TrimPrefix(sig, "sha256=")) {
			t.Error("bare hex verified without scheme prefix")
		}
	})

	t.Run("wrong scheme rejected", func(t *testing.T) {
		sig := Sign(secret, payload)
		if Verify(secret, payload, "sha512="+strings.TrimPrefix(sig, "sha256=")) {
			t.Error("wrong scheme verified")
		}
	})

	t.Run("malformed hex rejected", func(t *testing.T) {
		if Verify(secret, payload, "sha256=not-hex-at-all") {
			t.Error("malformed hex verified")
		}
	})

	t.Run("empty signature rejected", func(t *testing.T) {
		if Verify(secret, payload, "") {
			t.Error("empty signature verified")
		}
	})

	t.Run("truncated signature rejected", func(t *testing.T) {
		sig := Sign(secret, payload)
		if Verify(secret, payload, sig[:len(sig)-2]) {
			t.Error("truncated signature verified")
		}
	})
}
