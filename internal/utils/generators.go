package utils

import (
	"crypto/rand"
	"encoding/hex"
)

// TokenBytes is the entropy behind each QR token; the hex form is twice as long.
const TokenBytes = 12

// GenerateToken returns 24 lowercase hex characters from crypto/rand.
func GenerateToken() (string, error) {
	b := make([]byte, TokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// MaskToken keeps only the first characters of a token for logs. Short
// values are masked entirely.
func MaskToken(token string) string {
	const visible = 6
	if len(token) <= visible {
		return "***"
	}
	return token[:visible] + "***"
}
