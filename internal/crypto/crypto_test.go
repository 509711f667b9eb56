package crypto

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testPrivateKey = bytes.Repeat([]byte{0x11}, 32)

func TestNodeKeyTokens(t *testing.T) {
	pub := PublicFromPrivate(testPrivateKey)
	require.Len(t, pub, 33)

	token := EncodeNodePublic(pub)
	assert.Equal(t, byte('n'), token[0])
	decoded, err := DecodeNodePublic(token)
	require.NoError(t, err)
	assert.Equal(t, pub, decoded)

	privToken := EncodeNodePrivate(testPrivateKey)
	assert.Equal(t, byte('p'), privToken[0])
	priv, err := DecodeNodePrivate(privToken)
	require.NoError(t, err)
	assert.Equal(t, testPrivateKey, priv)

	_, err = DecodeNodePrivate(token)
	assert.Error(t, err, "public token must not decode as private")
}

func TestCorruptedTokenFailsChecksum(t *testing.T) {
	token := []byte(EncodeNodePublic(PublicFromPrivate(testPrivateKey)))
	last := token[len(token)-1]
	if last == 'r' {
		token[len(token)-1] = 'p'
	} else {
		token[len(token)-1] = 'r'
	}
	_, err := DecodeNodePublic(string(token))
	assert.Error(t, err)
}

func TestProposalSignature(t *testing.T) {
	prev := bytes.Repeat([]byte{0xAB}, 32)
	txSet := bytes.Repeat([]byte{0x00}, 32)
	digest := ProposalDigest(1, 780000000, prev, txSet)
	require.Len(t, digest, 32)

	sig, err := Sign(testPrivateKey, digest)
	require.NoError(t, err)
	pub := PublicFromPrivate(testPrivateKey)
	assert.NoError(t, Verify(pub, digest, sig))

	other := ProposalDigest(1, 780000001, prev, txSet)
	assert.ErrorIs(t, Verify(pub, other, sig), ErrInvalidSignature)

	_, err = Sign([]byte{1, 2, 3}, digest)
	assert.Error(t, err)
}

func TestTransactionIDIsPrefixed(t *testing.T) {
	raw := []byte{0x12, 0x00, 0x00}
	assert.Len(t, TransactionID(raw), 32)
	assert.NotEqual(t, Sha512Half(raw), TransactionID(raw))
	assert.Equal(t, Sha512Half([]byte("TXN\x00"), raw), TransactionID(raw))
}
