package pb

import (
	"google.golang.org/protobuf/encoding/protowire"
)

// Packet is a single intercepted peer message together with the ports of
// the sending and receiving validator.
type Packet struct {
	Data     []byte
	FromPort uint32
	ToPort   uint32
}

func (m *Packet) GetData() []byte {
	if m == nil {
		return nil
	}
	return m.Data
}

func (m *Packet) GetFromPort() uint32 {
	if m == nil {
		return 0
	}
	return m.FromPort
}

func (m *Packet) GetToPort() uint32 {
	if m == nil {
		return 0
	}
	return m.ToPort
}

func (m *Packet) Marshal() ([]byte, error) {
	var b []byte
	b = appendBytes(b, 1, m.Data)
	b = appendUint32(b, 2, m.FromPort)
	b = appendUint32(b, 3, m.ToPort)
	return b, nil
}

func (m *Packet) Unmarshal(data []byte) error {
	*m = Packet{}
	return consumeFields(data, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case 1:
			return consumeBytes(num, typ, b, &m.Data)
		case 2:
			return consumeUint32(num, typ, b, &m.FromPort)
		case 3:
			return consumeUint32(num, typ, b, &m.ToPort)
		}
		return protowire.ConsumeFieldValue(num, typ, b)
	})
}

// PacketAck carries the decision for a Packet back to the interceptor.
type PacketAck struct {
	Data       []byte
	Action     uint32
	SendAmount uint32
}

func (m *PacketAck) Marshal() ([]byte, error) {
	var b []byte
	b = appendBytes(b, 1, m.Data)
	b = appendUint32(b, 2, m.Action)
	b = appendUint32(b, 3, m.SendAmount)
	return b, nil
}

func (m *PacketAck) Unmarshal(data []byte) error {
	*m = PacketAck{}
	return consumeFields(data, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case 1:
			return consumeBytes(num, typ, b, &m.Data)
		case 2:
			return consumeUint32(num, typ, b, &m.Action)
		case 3:
			return consumeUint32(num, typ, b, &m.SendAmount)
		}
		return protowire.ConsumeFieldValue(num, typ, b)
	})
}

// ValidatorNodeInfo describes one validator started by the interceptor.
type ValidatorNodeInfo struct {
	PeerPort             uint32
	WsPublicPort         uint32
	WsAdminPort          uint32
	RpcPort              uint32
	Status               string
	ValidationKey        string
	ValidationPrivateKey string
	ValidationPublicKey  string
	ValidationSeed       string
}

func (m *ValidatorNodeInfo) Marshal() ([]byte, error) {
	var b []byte
	b = appendUint32(b, 1, m.PeerPort)
	b = appendUint32(b, 2, m.WsPublicPort)
	b = appendUint32(b, 3, m.WsAdminPort)
	b = appendUint32(b, 4, m.RpcPort)
	b = appendString(b, 5, m.Status)
	b = appendString(b, 6, m.ValidationKey)
	b = appendString(b, 7, m.ValidationPrivateKey)
	b = appendString(b, 8, m.ValidationPublicKey)
	b = appendString(b, 9, m.ValidationSeed)
	return b, nil
}

func (m *ValidatorNodeInfo) Unmarshal(data []byte) error {
	*m = ValidatorNodeInfo{}
	return consumeFields(data, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case 1:
			return consumeUint32(num, typ, b, &m.PeerPort)
		case 2:
			return consumeUint32(num, typ, b, &m.WsPublicPort)
		case 3:
			return consumeUint32(num, typ, b, &m.WsAdminPort)
		case 4:
			return consumeUint32(num, typ, b, &m.RpcPort)
		case 5:
			return consumeString(num, typ, b, &m.Status)
		case 6:
			return consumeString(num, typ, b, &m.ValidationKey)
		case 7:
			return consumeString(num, typ, b, &m.ValidationPrivateKey)
		case 8:
			return consumeString(num, typ, b, &m.ValidationPublicKey)
		case 9:
			return consumeString(num, typ, b, &m.ValidationSeed)
		}
		return protowire.ConsumeFieldValue(num, typ, b)
	})
}

type ValidatorNodeInfoAck struct {
	Status string
}

func (m *ValidatorNodeInfoAck) Marshal() ([]byte, error) {
	return appendString(nil, 1, m.Status), nil
}

func (m *ValidatorNodeInfoAck) Unmarshal(data []byte) error {
	*m = ValidatorNodeInfoAck{}
	return consumeFields(data, func(num protowire.Number, typ protowire.Type, b []byte) int {
		if num == 1 {
			return consumeString(num, typ, b, &m.Status)
		}
		return protowire.ConsumeFieldValue(num, typ, b)
	})
}

type GetConfig struct{}

func (m *GetConfig) Marshal() ([]byte, error) {
	return nil, nil
}

func (m *GetConfig) Unmarshal(data []byte) error {
	return consumeFields(data, protowire.ConsumeFieldValue)
}

type Partition struct {
	Nodes []uint32
}

func (m *Partition) Marshal() ([]byte, error) {
	return appendPackedUint32(nil, 1, m.Nodes), nil
}

func (m *Partition) Unmarshal(data []byte) error {
	*m = Partition{}
	return consumeFields(data, func(num protowire.Number, typ protowire.Type, b []byte) int {
		if num == 1 {
			return consumeRepeatedUint32(num, typ, b, &m.Nodes)
		}
		return protowire.ConsumeFieldValue(num, typ, b)
	})
}

// Config is the network layout the interceptor uses to start validators.
type Config struct {
	BasePortPeer    uint32
	BasePortWs      uint32
	BasePortWsAdmin uint32
	BasePortRpc     uint32
	NumberOfNodes   uint32
	NetPartitions   []*Partition
	UnlPartitions   []*Partition
}

func (m *Config) Marshal() ([]byte, error) {
	var b []byte
	b = appendUint32(b, 1, m.BasePortPeer)
	b = appendUint32(b, 2, m.BasePortWs)
	b = appendUint32(b, 3, m.BasePortWsAdmin)
	b = appendUint32(b, 4, m.BasePortRpc)
	b = appendUint32(b, 5, m.NumberOfNodes)
	for _, p := range m.NetPartitions {
		inner, _ := p.Marshal()
		b = protowire.AppendTag(b, 6, protowire.BytesType)
		b = protowire.AppendBytes(b, inner)
	}
	for _, p := range m.UnlPartitions {
		inner, _ := p.Marshal()
		b = protowire.AppendTag(b, 7, protowire.BytesType)
		b = protowire.AppendBytes(b, inner)
	}
	return b, nil
}

func (m *Config) Unmarshal(data []byte) error {
	*m = Config{}
	var innerErr error
	consumePartition := func(num protowire.Number, typ protowire.Type, b []byte, dst *[]*Partition) int {
		if typ != protowire.BytesType {
			return protowire.ConsumeFieldValue(num, typ, b)
		}
		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return n
		}
		p := &Partition{}
		if err := p.Unmarshal(v); err != nil {
			innerErr = err
			return n
		}
		*dst = append(*dst, p)
		return n
	}
	err := consumeFields(data, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case 1:
			return consumeUint32(num, typ, b, &m.BasePortPeer)
		case 2:
			return consumeUint32(num, typ, b, &m.BasePortWs)
		case 3:
			return consumeUint32(num, typ, b, &m.BasePortWsAdmin)
		case 4:
			return consumeUint32(num, typ, b, &m.BasePortRpc)
		case 5:
			return consumeUint32(num, typ, b, &m.NumberOfNodes)
		case 6:
			return consumePartition(num, typ, b, &m.NetPartitions)
		case 7:
			return consumePartition(num, typ, b, &m.UnlPartitions)
		}
		return protowire.ConsumeFieldValue(num, typ, b)
	})
	if err != nil {
		return err
	}
	return innerErr
}
