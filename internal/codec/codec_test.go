package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestStatusChangeFrame(t *testing.T) {
	in := &StatusChange{
		NewStatus:  4,
		NewEvent:   EventClosingLedger,
		LedgerSeq:  7,
		LedgerHash: bytes.Repeat([]byte{0xAA}, 32),
	}
	frame, err := Encode(in)
	require.NoError(t, err)
	assert.Equal(t, uint16(TypeStatusChange), binary.BigEndian.Uint16(frame[4:6]))

	msg, err := Decode(frame)
	require.NoError(t, err)
	out, ok := msg.(*StatusChange)
	require.True(t, ok)
	assert.Equal(t, in.LedgerSeq, out.LedgerSeq)
	assert.Equal(t, in.NewEvent, out.NewEvent)
	assert.Equal(t, in.LedgerHash, out.LedgerHash)
}

func TestProposeSetKeepsUnknownFields(t *testing.T) {
	in := &ProposeSet{
		ProposeSeq:        2,
		CurrentTxHash:     make([]byte, 32),
		NodePubKey:        bytes.Repeat([]byte{0x02}, 33),
		CloseTime:         100,
		Signature:         []byte{0x30, 0x01},
		PreviousLedger:    bytes.Repeat([]byte{0x01}, 32),
		AddedTransactions: [][]byte{{0x01}},
	}
	payload := in.Payload()
	payload = protowire.AppendTag(payload, 12, protowire.VarintType)
	payload = protowire.AppendVarint(payload, 3)
	frame, err := EncodeFrame(TypeProposeLedger, payload)
	require.NoError(t, err)

	msg, err := Decode(frame)
	require.NoError(t, err)
	ps := msg.(*ProposeSet)
	assert.Equal(t, uint32(100), ps.CloseTime)
	assert.Equal(t, [][]byte{{0x01}}, ps.AddedTransactions)

	ps.CloseTime = 200
	reencoded, err := Encode(ps)
	require.NoError(t, err)
	again, err := Decode(reencoded)
	require.NoError(t, err)
	assert.Equal(t, uint32(200), again.(*ProposeSet).CloseTime)
	assert.True(t, bytes.HasSuffix(again.Payload(), []byte{0x60, 0x03}), "hops field must survive")
}

func TestUnsupportedFrames(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"too short", []byte("test")},
		{"unknown type", mustFrame(t, 999, []byte{0x08, 0x01})},
		{"truncated payload", mustFrame(t, TypeStatusChange, []byte{0x08, 0x01})[:7]},
		{"bad payload", mustFrame(t, TypeStatusChange, []byte{0x0A, 0x09, 0x01})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data)
			assert.True(t, errors.Is(err, ErrUnsupportedMessageType), "got %v", err)
		})
	}
}

func TestRawMessagesAreOpaque(t *testing.T) {
	frame := mustFrame(t, TypePing, []byte{0x08, 0x00, 0x10, 0x05})
	msg, err := Decode(frame)
	require.NoError(t, err)
	assert.Equal(t, TypePing, msg.Type())
	reencoded, err := Encode(msg)
	require.NoError(t, err)
	assert.Equal(t, frame, reencoded)
}

func TestCompressedFrame(t *testing.T) {
	in := &Validation{Validation: bytes.Repeat([]byte("validation"), 40)}
	frame, err := EncodeCompressedFrame(TypeValidation, in.Payload())
	require.NoError(t, err)
	require.NotZero(t, frame[0]&0x80, "payload should compress")

	msg, err := Decode(frame)
	require.NoError(t, err)
	assert.Equal(t, in.Validation, msg.(*Validation).Validation)
}

func TestConsensusClass(t *testing.T) {
	for typ, want := range map[MessageType]int{
		TypeTransaction:   0,
		TypeProposeLedger: 3,
		TypeStatusChange:  4,
		TypeHaveSet:       5,
		TypeValidation:    6,
	} {
		got, ok := ConsensusClass(typ)
		assert.True(t, ok)
		assert.Equal(t, want, got, typ.String())
	}
	_, ok := ConsensusClass(TypePing)
	assert.False(t, ok)
}

func TestFieldsRoundTripThroughText(t *testing.T) {
	sc := &StatusChange{NewEvent: EventClosingLedger, LedgerSeq: 12, LedgerHash: []byte{0xBE, 0xEF}}
	text := FormatFields(Fields(sc))
	parsed := ParseFields(text)
	assert.Equal(t, "12", parsed["ledgerSeq"])
	assert.Equal(t, "BEEF", parsed["ledgerHash"])

	tx := &Transaction{RawTransaction: []byte{0x12}}
	assert.Len(t, ParseFields(FormatFields(Fields(tx)))["txid"], 64)

	assert.Empty(t, ParseFields("no pairs here"))
}

func mustFrame(t *testing.T, typ MessageType, payload []byte) []byte {
	t.Helper()
	frame, err := EncodeFrame(typ, payload)
	require.NoError(t, err)
	return frame
}
