package cryptox

import (
	"crypto/rand"
	"encoding/base64"
)

// TokenBytes is the entropy of credential tokens (256 bits).
const TokenBytes = 32

// MakeRandURLToken returns size random bytes encoded with unpadded URL-safe
// base64, so the result can be placed in a query string as is.
func MakeRandURLToken(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
