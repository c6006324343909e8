// Package ed25519 is the concrete Ed25519 key implementation backing
// crypto.PubKey/crypto.PrivKey.
package ed25519

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha512"
	"errors"

	"github.com/pot-protocol/pot/crypto"
)

const KeyType = "ed25519"

type PublicKey []byte

func (pubKey PublicKey) VerifySignature(msg []byte, sig []byte) bool {
	if len(sig) != ed25519.SignatureSize {
		return false
	}
	digest := sha512.Sum512(msg)
	return ed25519.Verify(ed25519.PublicKey(pubKey), digest[:], sig)
}

func (pubKey PublicKey) Equals(other []byte) bool {
	if len(other) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.PublicKey(pubKey).Equal(ed25519.PublicKey(other))
}

func (pubKey PublicKey) Bytes() []byte {
	return pubKey
}

func (pubKey PublicKey) Type() string {
	return KeyType
}

type PrivateKey []byte

// Sign produces an Ed25519 signature over a SHA-512 prehash of msg. The
// digest is hashed here and signed with plain Ed25519 — not the
// Ed25519ph pre-hash variant, which expects the caller to already hold
// a raw SHA-512 digest in a specific internal form.
func (privKey PrivateKey) Sign(msg []byte) ([]byte, error) {
	digest := sha512.Sum512(msg)
	return ed25519.Sign(ed25519.PrivateKey(privKey), digest[:]), nil
}

func (privKey PrivateKey) PubKey() crypto.PubKey {
	public := ed25519.PrivateKey(privKey).Public().(ed25519.PublicKey)
	key := make(PublicKey, ed25519.PublicKeySize)
	copy(key, public)
	return key
}

func (privKey PrivateKey) Equals(other []byte) bool {
	if len(other) != ed25519.PrivateKeySize {
		return false
	}
	return ed25519.PrivateKey(privKey).Equal(ed25519.PrivateKey(other))
}

func (privKey PrivateKey) Type() string {
	return KeyType
}

// GenerateKeypair produces a fresh Ed25519 keypair.
func GenerateKeypair() (PublicKey, PrivateKey, error) {
	pubK, privK, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, err
	}

	public := make(PublicKey, ed25519.PublicKeySize)
	copy(public, pubK)
	private := make(PrivateKey, ed25519.PrivateKeySize)
	copy(private, privK)

	return public, private, nil
}

// BytesToPubKey builds a PublicKey from a raw 32-byte Ed25519 key.
func BytesToPubKey(b []byte) (PublicKey, error) {
	if len(b) != ed25519.PublicKeySize {
		return nil, errors.New("ed25519: invalid public key length")
	}

	key := make(PublicKey, ed25519.PublicKeySize)
	copy(key, b)
	return key, nil
}
