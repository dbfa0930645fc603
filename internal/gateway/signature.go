package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// Sign computes the gateway signature over a parameter set: keys are sorted,
// concatenated as key=value pairs joined with "&", the shared secret is
// appended, and the whole string is hashed with SHA-256. Empty values are
// skipped, matching the gateway's canonicalization.
func Sign(params map[string]string, secret string) string {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if v == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(params[k])
	}
	if secret != "" {
		b.WriteByte('&')
		b.WriteString(secret)
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// VerifySignature recomputes the signature over params (which must not
// contain the signature field itself) and compares in constant time.
func VerifySignature(params map[string]string, secret, got string) bool {
	want := Sign(params, secret)
	return hmac.Equal([]byte(want), []byte(strings.ToLower(got)))
}
