package auth

import (
	"crypto/rand"
	"encoding/base64"
)

// newTokenID produces the jti claim. A random id guarantees two tokens for
// the same user minted within the same second still differ.
func newTokenID() string {
	const size = 16
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}
