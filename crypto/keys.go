// Package crypto is the narrow cryptographic facade every other package
// in this module depends on: keypair generation, Ed25519 sign/verify and
// SHA-256 hashing. Nothing outside this package and its ed25519
// subpackage signs, verifies or hashes with the standard library crypto
// primitives directly.
package crypto

// PubKey is a verifying key.
type PubKey interface {
	VerifySignature(msg, sig []byte) bool
	Bytes() []byte
	Equals(other []byte) bool
	Type() string
}

// PrivKey is a signing key.
type PrivKey interface {
	Sign(msg []byte) ([]byte, error)
	PubKey() PubKey
	Equals(other []byte) bool
	Type() string
}

// Signature pairs a signature body with the identity of its signer.
type Signature struct {
	Body   []byte
	Signer []byte
}

// Signer encapsulates private-key management and verification against a
// known public key.
type Signer interface {
	// ID returns the signer's public key bytes.
	ID() []byte
	// Sign produces a Signature over data using the managed private key.
	Sign(data []byte) (Signature, error)
	// Verify checks a Signature produced by the given public key.
	Verify(data []byte, sig Signature, pub PubKey) bool
}
