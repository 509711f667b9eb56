package codec

import (
	"google.golang.org/protobuf/encoding/protowire"
)

// Message is a decoded peer protocol message
type Message interface {
	Type() MessageType
	Payload() []byte
}

// StatusChange is TMStatusChange
type StatusChange struct {
	NewStatus          uint32
	NewEvent           uint32
	LedgerSeq          uint32
	LedgerHash         []byte
	LedgerHashPrevious []byte
	NetworkTime        uint64
	FirstSeq           uint32
	LastSeq            uint32
}

func (m *StatusChange) Type() MessageType { return TypeStatusChange }

func (m *StatusChange) Payload() []byte {
	var b []byte
	b = appendOptionalVarint(b, 1, uint64(m.NewStatus))
	b = appendOptionalVarint(b, 2, uint64(m.NewEvent))
	b = appendOptionalVarint(b, 3, uint64(m.LedgerSeq))
	b = appendOptionalBytes(b, 4, m.LedgerHash)
	b = appendOptionalBytes(b, 5, m.LedgerHashPrevious)
	b = appendOptionalVarint(b, 6, m.NetworkTime)
	b = appendOptionalVarint(b, 7, uint64(m.FirstSeq))
	b = appendOptionalVarint(b, 8, uint64(m.LastSeq))
	return b
}

func decodeStatusChange(payload []byte) (*StatusChange, error) {
	m := &StatusChange{}
	err := consumeFields(payload, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case 1:
			return consumeUint32(num, typ, b, &m.NewStatus)
		case 2:
			return consumeUint32(num, typ, b, &m.NewEvent)
		case 3:
			return consumeUint32(num, typ, b, &m.LedgerSeq)
		case 4:
			return consumeBytes(num, typ, b, &m.LedgerHash)
		case 5:
			return consumeBytes(num, typ, b, &m.LedgerHashPrevious)
		case 6:
			return consumeUint64(num, typ, b, &m.NetworkTime)
		case 7:
			return consumeUint32(num, typ, b, &m.FirstSeq)
		case 8:
			return consumeUint32(num, typ, b, &m.LastSeq)
		}
		return protowire.ConsumeFieldValue(num, typ, b)
	})
	return m, err
}

// ProposeSet is TMProposeSet. Unknown fields are carried over on re-encoding.
type ProposeSet struct {
	ProposeSeq          uint32
	CurrentTxHash       []byte
	NodePubKey          []byte
	CloseTime           uint32
	Signature           []byte
	PreviousLedger      []byte
	AddedTransactions   [][]byte
	RemovedTransactions [][]byte
	unknown             []byte
}

func (m *ProposeSet) Type() MessageType { return TypeProposeLedger }

func (m *ProposeSet) Payload() []byte {
	var b []byte
	b = appendVarint(b, 1, uint64(m.ProposeSeq))
	b = appendBytesField(b, 2, m.CurrentTxHash)
	b = appendBytesField(b, 3, m.NodePubKey)
	b = appendVarint(b, 4, uint64(m.CloseTime))
	b = appendBytesField(b, 5, m.Signature)
	b = appendBytesField(b, 6, m.PreviousLedger)
	for _, tx := range m.AddedTransactions {
		b = appendBytesField(b, 10, tx)
	}
	for _, tx := range m.RemovedTransactions {
		b = appendBytesField(b, 11, tx)
	}
	return append(b, m.unknown...)
}

func decodeProposeSet(payload []byte) (*ProposeSet, error) {
	m := &ProposeSet{}
	err := consumeFields(payload, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case 1:
			return consumeUint32(num, typ, b, &m.ProposeSeq)
		case 2:
			return consumeBytes(num, typ, b, &m.CurrentTxHash)
		case 3:
			return consumeBytes(num, typ, b, &m.NodePubKey)
		case 4:
			return consumeUint32(num, typ, b, &m.CloseTime)
		case 5:
			return consumeBytes(num, typ, b, &m.Signature)
		case 6:
			return consumeBytes(num, typ, b, &m.PreviousLedger)
		case 10:
			var tx []byte
			n := consumeBytes(num, typ, b, &tx)
			m.AddedTransactions = append(m.AddedTransactions, tx)
			return n
		case 11:
			var tx []byte
			n := consumeBytes(num, typ, b, &tx)
			m.RemovedTransactions = append(m.RemovedTransactions, tx)
			return n
		}
		n := protowire.ConsumeFieldValue(num, typ, b)
		if n >= 0 {
			m.unknown = protowire.AppendTag(m.unknown, num, typ)
			m.unknown = append(m.unknown, b[:n]...)
		}
		return n
	})
	return m, err
}

// Validation is TMValidation. The serialized validation object is kept opaque.
type Validation struct {
	Validation []byte
	unknown    []byte
}

func (m *Validation) Type() MessageType { return TypeValidation }

func (m *Validation) Payload() []byte {
	return append(appendBytesField(nil, 1, m.Validation), m.unknown...)
}

func decodeValidation(payload []byte) (*Validation, error) {
	m := &Validation{}
	err := consumeFields(payload, func(num protowire.Number, typ protowire.Type, b []byte) int {
		if num == 1 {
			return consumeBytes(num, typ, b, &m.Validation)
		}
		n := protowire.ConsumeFieldValue(num, typ, b)
		if n >= 0 {
			m.unknown = protowire.AppendTag(m.unknown, num, typ)
			m.unknown = append(m.unknown, b[:n]...)
		}
		return n
	})
	return m, err
}

// Transaction is TMTransaction
type Transaction struct {
	RawTransaction   []byte
	Status           uint32
	ReceiveTimestamp uint64
	unknown          []byte
}

func (m *Transaction) Type() MessageType { return TypeTransaction }

func (m *Transaction) Payload() []byte {
	var b []byte
	b = appendBytesField(b, 1, m.RawTransaction)
	b = appendVarint(b, 2, uint64(m.Status))
	b = appendOptionalVarint(b, 3, m.ReceiveTimestamp)
	return append(b, m.unknown...)
}

func decodeTransaction(payload []byte) (*Transaction, error) {
	m := &Transaction{}
	err := consumeFields(payload, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case 1:
			return consumeBytes(num, typ, b, &m.RawTransaction)
		case 2:
			return consumeUint32(num, typ, b, &m.Status)
		case 3:
			return consumeUint64(num, typ, b, &m.ReceiveTimestamp)
		}
		n := protowire.ConsumeFieldValue(num, typ, b)
		if n >= 0 {
			m.unknown = protowire.AppendTag(m.unknown, num, typ)
			m.unknown = append(m.unknown, b[:n]...)
		}
		return n
	})
	return m, err
}

// HaveTransactionSet is TMHaveTransactionSet
type HaveTransactionSet struct {
	Status uint32
	Hash   []byte
}

func (m *HaveTransactionSet) Type() MessageType { return TypeHaveSet }

func (m *HaveTransactionSet) Payload() []byte {
	var b []byte
	b = appendVarint(b, 1, uint64(m.Status))
	return appendBytesField(b, 2, m.Hash)
}

func decodeHaveTransactionSet(payload []byte) (*HaveTransactionSet, error) {
	m := &HaveTransactionSet{}
	err := consumeFields(payload, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case 1:
			return consumeUint32(num, typ, b, &m.Status)
		case 2:
			return consumeBytes(num, typ, b, &m.Hash)
		}
		return protowire.ConsumeFieldValue(num, typ, b)
	})
	return m, err
}

// Raw is any other known message kind, kept as an undecoded payload
type Raw struct {
	Kind MessageType
	Data []byte
}

func (m *Raw) Type() MessageType { return m.Kind }

func (m *Raw) Payload() []byte { return m.Data }

func consumeFields(b []byte, fn func(num protowire.Number, typ protowire.Type, b []byte) int) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		m := fn(num, typ, b)
		if m < 0 {
			return protowire.ParseError(m)
		}
		b = b[m:]
	}
	return nil
}

func consumeUint64(num protowire.Number, typ protowire.Type, b []byte, dst *uint64) int {
	if typ != protowire.VarintType {
		return protowire.ConsumeFieldValue(num, typ, b)
	}
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return n
	}
	*dst = v
	return n
}

func consumeUint32(num protowire.Number, typ protowire.Type, b []byte, dst *uint32) int {
	var v uint64
	n := consumeUint64(num, typ, b, &v)
	if n >= 0 && typ == protowire.VarintType {
		*dst = uint32(v)
	}
	return n
}

func consumeBytes(num protowire.Number, typ protowire.Type, b []byte, dst *[]byte) int {
	if typ != protowire.BytesType {
		return protowire.ConsumeFieldValue(num, typ, b)
	}
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return n
	}
	*dst = append([]byte{}, v...)
	return n
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendOptionalVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	return appendVarint(b, num, v)
}

func appendBytesField(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendOptionalBytes(b []byte, num protowire.Number, v []byte) []byte {
	if v == nil {
		return b
	}
	return appendBytesField(b, num, v)
}
