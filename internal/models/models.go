package models

import (
	"math"
	"net"
	"strconv"
)

// SocketAddress is a host and port pair of one validator endpoint
type SocketAddress struct {
	Host string
	Port uint32
}

// String returns the address in host:port form
func (a SocketAddress) String() string {
	return net.JoinHostPort(a.Host, strconv.FormatUint(uint64(a.Port), 10))
}

// ValidatorKeyData holds the validation keys of a validator as reported by
// the node itself
type ValidatorKeyData struct {
	Status               string
	ValidationKey        string
	ValidationPrivateKey string
	ValidationPublicKey  string
	ValidationSeed       string
}

// Action is the forwarding decision for one packet. Zero forwards
// immediately, ActionDrop drops, any other value delays by that many
// milliseconds.
type Action uint32

const (
	ActionSend Action = 0
	ActionDrop Action = math.MaxUint32
)
