package crypto

import (
	"errors"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

var ErrInvalidSignature = errors.New("invalid signature")

// PublicFromPrivate returns the compressed public key of a private key
func PublicFromPrivate(priv []byte) []byte {
	return secp256k1.PrivKeyFromBytes(priv).PubKey().SerializeCompressed()
}

// Sign signs a 32 byte digest and returns the DER encoded signature
func Sign(priv, digest []byte) ([]byte, error) {
	if len(priv) != 32 {
		return nil, fmt.Errorf("private key must be 32 bytes, got %d", len(priv))
	}
	key := secp256k1.PrivKeyFromBytes(priv)
	return ecdsa.Sign(key, digest).Serialize(), nil
}

// Verify checks a DER signature over digest against a compressed public key
func Verify(pub, digest, sig []byte) error {
	key, err := secp256k1.ParsePubKey(pub)
	if err != nil {
		return fmt.Errorf("parse public key: %w", err)
	}
	parsed, err := ecdsa.ParseDERSignature(sig)
	if err != nil {
		return fmt.Errorf("parse signature: %w", err)
	}
	if !parsed.Verify(digest, key) {
		return ErrInvalidSignature
	}
	return nil
}
