package crypto

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
)

const (
	tokenNodePublic  byte = 0x1C
	tokenNodePrivate byte = 0x20
)

var (
	xrplAlphabet = base58.NewAlphabet("rpshnaf39wBUDNEGHJKLM4PQRST7VWXYZ2bcdeCg65jkm8oFqi1tuvAxyz")

	ErrBadChecksum = errors.New("base58 checksum mismatch")
)

func checksum(payload []byte) []byte {
	first := sha256.Sum256(payload)
	second := sha256.Sum256(first[:])
	return second[:4]
}

// decodeToken decodes a base58check token and verifies its type prefix
func decodeToken(token string, prefix byte, size int) ([]byte, error) {
	raw, err := base58.DecodeAlphabet(token, xrplAlphabet)
	if err != nil {
		return nil, fmt.Errorf("decode %q: %w", token, err)
	}
	if len(raw) != 1+size+4 {
		return nil, fmt.Errorf("decode %q: expected %d bytes, got %d", token, 1+size+4, len(raw))
	}
	if raw[0] != prefix {
		return nil, fmt.Errorf("decode %q: unexpected token type 0x%02X", token, raw[0])
	}
	body, sum := raw[:1+size], raw[1+size:]
	if !bytes.Equal(checksum(body), sum) {
		return nil, ErrBadChecksum
	}
	return raw[1 : 1+size], nil
}

func encodeToken(prefix byte, key []byte) string {
	body := append([]byte{prefix}, key...)
	return base58.EncodeAlphabet(append(body, checksum(body)...), xrplAlphabet)
}

// DecodeNodePublic decodes an "n..." validation public key into its 33
// byte compressed form
func DecodeNodePublic(token string) ([]byte, error) {
	return decodeToken(token, tokenNodePublic, 33)
}

// DecodeNodePrivate decodes a "p..." validation private key into its 32
// byte scalar
func DecodeNodePrivate(token string) ([]byte, error) {
	return decodeToken(token, tokenNodePrivate, 32)
}

// EncodeNodePublic is the inverse of DecodeNodePublic
func EncodeNodePublic(key []byte) string {
	return encodeToken(tokenNodePublic, key)
}

// EncodeNodePrivate is the inverse of DecodeNodePrivate
func EncodeNodePrivate(key []byte) string {
	return encodeToken(tokenNodePrivate, key)
}
