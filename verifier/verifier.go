// Package verifier checks that a claimant controls an address by verifying a
// signature over the challenge message the mempool handed out.
package verifier

// Verifier reports whether signature is a valid signature of message by the
// key behind address. Malformed input is reported as false, never as an error.
type Verifier interface {
	Verify(message, address, signature string) bool
}

// Func adapts a plain function to the Verifier interface.
type Func func(message, address, signature string) bool

func (f Func) Verify(message, address, signature string) bool {
	return f(message, address, signature)
}

// Multi accepts a signature when any of its verifiers does.
type Multi []Verifier

func (m Multi) Verify(message, address, signature string) bool {
	for _, v := range m {
		if v.Verify(message, address, signature) {
			return true
		}
	}
	return false
}

// NewDefault verifies Bitcoin signed messages for mainnet and testnet P2PKH
// addresses and ed25519 signatures for base58 public key addresses.
func NewDefault() Verifier {
	return Multi{
		NewBitcoinMessage(MainNetPubKeyHashID, TestNetPubKeyHashID),
		Ed25519{},
	}
}
