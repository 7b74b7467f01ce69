package security

import "time"

// NewTestTokenProvider returns a TokenProvider backed by a throwaway P-256
// keypair. For tests only; every call produces a different key, so tokens do
// not verify across providers.
func NewTestTokenProvider() (*TokenProvider, error) {
	signer, pub, err := GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	return NewTokenProvider(signer, pub, "test-issuer", "test-audience", 15*time.Minute), nil
}
