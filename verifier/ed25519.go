package verifier

import (
	"crypto/ed25519"

	"github.com/mr-tron/base58"
)

// Ed25519 verifies base58 signatures against addresses that are the base58
// encoding of a raw ed25519 public key.
type Ed25519 struct{}

func (Ed25519) Verify(message, address, signature string) bool {
	pubKey, err := base58.Decode(address)
	if err != nil || len(pubKey) != ed25519.PublicKeySize {
		return false
	}
	sig, err := base58.Decode(signature)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pubKey), []byte(message), sig)
}
