// Package codec decodes and encodes the framed peer protocol messages that
// validators exchange. Only the message kinds the harness inspects are
// decoded into typed structs; every other known kind is kept opaque.
package codec

// MessageType is the 16 bit type carried in every frame header
type MessageType uint16

const (
	TypeManifests               MessageType = 2
	TypePing                    MessageType = 3
	TypeCluster                 MessageType = 5
	TypeEndpoints               MessageType = 15
	TypeTransaction             MessageType = 30
	TypeGetLedger               MessageType = 31
	TypeLedgerData              MessageType = 32
	TypeProposeLedger           MessageType = 33
	TypeStatusChange            MessageType = 34
	TypeHaveSet                 MessageType = 35
	TypeValidation              MessageType = 41
	TypeGetObjects              MessageType = 42
	TypeValidatorList           MessageType = 54
	TypeSquelch                 MessageType = 55
	TypeValidatorListCollection MessageType = 56
	TypeProofPathReq            MessageType = 57
	TypeProofPathResponse       MessageType = 58
	TypeReplayDeltaReq          MessageType = 59
	TypeReplayDeltaResponse     MessageType = 60
	TypeHaveTransactions        MessageType = 63
	TypeTransactions            MessageType = 64
)

var typeNames = map[MessageType]string{
	TypeManifests:               "TMManifests",
	TypePing:                    "TMPing",
	TypeCluster:                 "TMCluster",
	TypeEndpoints:               "TMEndpoints",
	TypeTransaction:             "TMTransaction",
	TypeGetLedger:               "TMGetLedger",
	TypeLedgerData:              "TMLedgerData",
	TypeProposeLedger:           "TMProposeSet",
	TypeStatusChange:            "TMStatusChange",
	TypeHaveSet:                 "TMHaveTransactionSet",
	TypeValidation:              "TMValidation",
	TypeGetObjects:              "TMGetObjectByHash",
	TypeValidatorList:           "TMValidatorList",
	TypeSquelch:                 "TMSquelch",
	TypeValidatorListCollection: "TMValidatorListCollection",
	TypeProofPathReq:            "TMProofPathRequest",
	TypeProofPathResponse:       "TMProofPathResponse",
	TypeReplayDeltaReq:          "TMReplayDeltaRequest",
	TypeReplayDeltaResponse:     "TMReplayDeltaResponse",
	TypeHaveTransactions:        "TMHaveTransactions",
	TypeTransactions:            "TMTransactions",
}

// Known reports whether the type number belongs to the peer protocol
func (t MessageType) Known() bool {
	_, ok := typeNames[t]
	return ok
}

// String returns the protobuf message name, e.g. TMProposeSet
func (t MessageType) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "TMUnknown"
}

// NumConsensusClasses is the number of message types that drive consensus
const NumConsensusClasses = 7

// ConsensusClass maps the consensus message types to [0, NumConsensusClasses).
// Types 30..35 map to 0..5 and validations to 6.
func ConsensusClass(t MessageType) (int, bool) {
	switch {
	case t >= TypeTransaction && t <= TypeHaveSet:
		return int(t - TypeTransaction), true
	case t == TypeValidation:
		return 6, true
	}
	return 0, false
}

// Node events reported in status changes
const (
	EventClosingLedger  uint32 = 1
	EventAcceptedLedger uint32 = 2
	EventSwitchedLedger uint32 = 3
	EventLostSync       uint32 = 4
)
