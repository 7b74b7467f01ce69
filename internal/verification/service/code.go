package service

import "crypto/rand"

const codeDigits = 6

// generateCode returns a 6-digit numeric verification code (e.g. "483920").
// Uses crypto/rand for randomness.
func generateCode() (string, error) {
	b := make([]byte, codeDigits)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	s := make([]byte, codeDigits)
	for i := 0; i < codeDigits; i++ {
		s[i] = '0' + (b[i] % 10)
	}
	return string(s), nil
}
