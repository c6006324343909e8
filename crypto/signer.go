package crypto

import "errors"

type signer struct {
	privKey PrivKey
	pubKey  PubKey
}

// NewSigner wraps a keypair as a Signer.
func NewSigner(privKey PrivKey) (Signer, error) {
	pubKey := privKey.PubKey()
	if !privKey.PubKey().Equals(pubKey.Bytes()) {
		return nil, errors.New("crypto: private key does not match its own public key")
	}

	return &signer{privKey: privKey, pubKey: pubKey}, nil
}

func (s *signer) ID() []byte {
	return s.pubKey.Bytes()
}

func (s *signer) Sign(data []byte) (Signature, error) {
	body, err := s.privKey.Sign(data)
	if err != nil {
		return Signature{}, err
	}
	return Signature{Body: body, Signer: s.ID()}, nil
}

func (s *signer) Verify(data []byte, sig Signature, pub PubKey) bool {
	return pub.VerifySignature(data, sig.Body)
}
