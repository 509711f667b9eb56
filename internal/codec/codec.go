package codec

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mavleo96/rocket/internal/crypto"
	"github.com/mavleo96/rocket/internal/utils"
)

// Decode parses one framed message. Frames of an unknown kind or with a
// payload that does not parse return an error wrapping
// ErrUnsupportedMessageType.
func Decode(data []byte) (Message, error) {
	h, payload, err := SplitFrame(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedMessageType, err)
	}
	if !h.Type.Known() {
		return nil, fmt.Errorf("%w: type %d", ErrUnsupportedMessageType, h.Type)
	}

	var msg Message
	switch h.Type {
	case TypeStatusChange:
		msg, err = decodeStatusChange(payload)
	case TypeProposeLedger:
		msg, err = decodeProposeSet(payload)
	case TypeValidation:
		msg, err = decodeValidation(payload)
	case TypeTransaction:
		msg, err = decodeTransaction(payload)
	case TypeHaveSet:
		msg, err = decodeHaveTransactionSet(payload)
	default:
		msg = &Raw{Kind: h.Type, Data: append([]byte{}, payload...)}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnsupportedMessageType, h.Type, err)
	}
	return msg, nil
}

// Encode frames msg without compression
func Encode(msg Message) ([]byte, error) {
	return EncodeFrame(msg.Type(), msg.Payload())
}

// Field is one key value pair of a message description
type Field struct {
	Key   string
	Value string
}

// Fields returns the human readable fields of msg in a stable order
func Fields(msg Message) []Field {
	u := func(v uint32) string { return strconv.FormatUint(uint64(v), 10) }
	switch m := msg.(type) {
	case *StatusChange:
		fields := []Field{
			{"newStatus", u(m.NewStatus)},
			{"newEvent", u(m.NewEvent)},
			{"ledgerSeq", u(m.LedgerSeq)},
		}
		if m.LedgerHash != nil {
			fields = append(fields, Field{"ledgerHash", utils.HexString(m.LedgerHash)})
		}
		if m.LedgerHashPrevious != nil {
			fields = append(fields, Field{"ledgerHashPrevious", utils.HexString(m.LedgerHashPrevious)})
		}
		return append(fields,
			Field{"networkTime", strconv.FormatUint(m.NetworkTime, 10)},
			Field{"firstSeq", u(m.FirstSeq)},
			Field{"lastSeq", u(m.LastSeq)},
		)
	case *ProposeSet:
		return []Field{
			{"proposeSeq", u(m.ProposeSeq)},
			{"currentTxHash", utils.HexString(m.CurrentTxHash)},
			{"nodePubKey", utils.HexString(m.NodePubKey)},
			{"closeTime", u(m.CloseTime)},
			{"signature", utils.HexString(m.Signature)},
			{"previousledger", utils.HexString(m.PreviousLedger)},
			{"addedTransactions", strconv.Itoa(len(m.AddedTransactions))},
			{"removedTransactions", strconv.Itoa(len(m.RemovedTransactions))},
		}
	case *Validation:
		return []Field{{"validation", utils.HexString(m.Validation)}}
	case *Transaction:
		return []Field{
			{"txid", utils.HexString(crypto.TransactionID(m.RawTransaction))},
			{"status", u(m.Status)},
			{"rawTransaction", utils.HexString(m.RawTransaction)},
		}
	case *HaveTransactionSet:
		return []Field{
			{"status", u(m.Status)},
			{"hash", utils.HexString(m.Hash)},
		}
	}
	return []Field{{"payload", utils.HexString(msg.Payload())}}
}

// FormatFields renders fields as "key: value; key: value"
func FormatFields(fields []Field) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f.Key+": "+f.Value)
	}
	return strings.Join(parts, "; ")
}

// ParseFields is the inverse of FormatFields. Pairs without a colon are skipped.
func ParseFields(s string) map[string]string {
	fields := make(map[string]string)
	for _, pair := range strings.Split(s, ";") {
		key, value, ok := strings.Cut(pair, ":")
		if !ok {
			continue
		}
		fields[strings.TrimSpace(key)] = strings.Trim(strings.TrimSpace(value), `"`)
	}
	return fields
}
