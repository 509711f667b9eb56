package utils

import (
	"fmt"
)

// PortCeiling is the first value that is not a valid port or node id
const PortCeiling = 65536

// InvalidPortError is returned for a pair of ports or node ids that cannot
// describe a message between two distinct validators
type InvalidPortError struct {
	From, To int64
	Reason   string
}

func (e *InvalidPortError) Error() string {
	return fmt.Sprintf("invalid port pair (%d, %d): %s", e.From, e.To, e.Reason)
}

// ValidatePorts checks that both values are non-negative, below PortCeiling
// and distinct. It is used for ports as well as node ids.
func ValidatePorts(from, to int64) error {
	return ValidatePortsBelow(from, to, PortCeiling)
}

// ValidatePortsBelow is ValidatePorts with a narrower allocation window
func ValidatePortsBelow(from, to, ceiling int64) error {
	switch {
	case from < 0 || to < 0:
		return &InvalidPortError{From: from, To: to, Reason: "negative value"}
	case from >= ceiling || to >= ceiling:
		return &InvalidPortError{From: from, To: to, Reason: "value out of range"}
	case from == to:
		return &InvalidPortError{From: from, To: to, Reason: "sender equals receiver"}
	}
	return nil
}

// HexString formats bytes as upper case hex as done by the validator APIs
func HexString(b []byte) string {
	return fmt.Sprintf("%X", b)
}
