package pb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestConfigPartitionsSurviveEncoding(t *testing.T) {
	cfg := &Config{
		BasePortPeer:  60000,
		NumberOfNodes: 3,
		NetPartitions: []*Partition{{Nodes: []uint32{0, 1}}, {Nodes: []uint32{2}}},
		UnlPartitions: []*Partition{{Nodes: []uint32{0, 1, 2}}},
	}
	data, err := Codec{}.Marshal(cfg)
	require.NoError(t, err)

	var got Config
	require.NoError(t, Codec{}.Unmarshal(data, &got))
	assert.Equal(t, uint32(60000), got.BasePortPeer)
	require.Len(t, got.NetPartitions, 2)
	assert.Equal(t, []uint32{0, 1}, got.NetPartitions[0].Nodes)
	assert.Equal(t, []uint32{2}, got.NetPartitions[1].Nodes)
	assert.Equal(t, []uint32{0, 1, 2}, got.UnlPartitions[0].Nodes)
}

func TestUnknownFieldsAreSkipped(t *testing.T) {
	var b []byte
	b = protowire.AppendTag(b, 15, protowire.BytesType)
	b = protowire.AppendBytes(b, []byte("future"))
	b = protowire.AppendTag(b, 2, protowire.VarintType)
	b = protowire.AppendVarint(b, 60001)

	var p Packet
	require.NoError(t, p.Unmarshal(b))
	assert.Equal(t, uint32(60001), p.FromPort)
	assert.Nil(t, p.Data)
}

func TestUnpackedRepeatedNodes(t *testing.T) {
	var b []byte
	for _, n := range []uint64{4, 5} {
		b = protowire.AppendTag(b, 1, protowire.VarintType)
		b = protowire.AppendVarint(b, n)
	}
	var p Partition
	require.NoError(t, p.Unmarshal(b))
	assert.Equal(t, []uint32{4, 5}, p.Nodes)
}

func TestTruncatedInputFails(t *testing.T) {
	data, err := (&Packet{Data: []byte("abcdef"), FromPort: 1}).Marshal()
	require.NoError(t, err)

	var p Packet
	assert.Error(t, p.Unmarshal(data[:3]))
}

func TestCodecRejectsForeignTypes(t *testing.T) {
	_, err := Codec{}.Marshal("not a message")
	assert.Error(t, err)
	assert.Error(t, Codec{}.Unmarshal(nil, new(int)))
	assert.Equal(t, "proto", Codec{}.Name())
}
