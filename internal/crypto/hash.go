package crypto

import (
	"crypto/sha512"
	"encoding/binary"
)

// Hash prefixes used by the ledger when hashing signed objects
var (
	prefixProposal    = []byte{'P', 'R', 'P', 0}
	prefixTransaction = []byte{'T', 'X', 'N', 0}
)

// Sha512Half returns the first 32 bytes of the SHA-512 digest of data
func Sha512Half(data ...[]byte) []byte {
	h := sha512.New()
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)[:32]
}

// TransactionID returns the id of a serialized transaction
func TransactionID(raw []byte) []byte {
	return Sha512Half(prefixTransaction, raw)
}

// ProposalDigest returns the hash a validator signs for a proposal
func ProposalDigest(proposeSeq, closeTime uint32, previousLedger, txSetHash []byte) []byte {
	var seqs [8]byte
	binary.BigEndian.PutUint32(seqs[0:4], proposeSeq)
	binary.BigEndian.PutUint32(seqs[4:8], closeTime)
	return Sha512Half(prefixProposal, seqs[:], previousLedger, txSetHash)
}
