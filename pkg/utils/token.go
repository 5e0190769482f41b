package utils

import (
	"crypto/rand"
	"encoding/base64"
)

// GenerateURLToken returns a URL-safe random token of about 4/3*n
// characters. n is the raw byte count; 24 or 32 are good choices.
func GenerateURLToken(n int) (string, error) {
	if n <= 0 {
		n = 24
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	// RawURLEncoding avoids '=' padding and '+' '/' characters.
	return base64.RawURLEncoding.EncodeToString(b), nil
}
