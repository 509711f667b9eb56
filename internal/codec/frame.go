package codec

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/pierrec/lz4"
)

const (
	// HeaderSizeUncompressed is 4 bytes of flags and size followed by 2 bytes of type
	HeaderSizeUncompressed = 6
	// HeaderSizeCompressed adds 4 bytes holding the uncompressed payload size
	HeaderSizeCompressed = 10

	MaxPayloadSize = (1 << 26) - 1

	compressionFlag = 0x80
	algorithmLZ4    = 1
)

var (
	// ErrUnsupportedMessageType is returned for frames that cannot be decoded.
	// It is recoverable: the packet is forwarded untouched.
	ErrUnsupportedMessageType = errors.New("unsupported message type")
	ErrTruncatedMessage       = errors.New("truncated message")
	ErrUnknownCompression     = errors.New("unknown compression algorithm")
)

// Header is a parsed frame header
type Header struct {
	PayloadSize      uint32
	Type             MessageType
	Compressed       bool
	UncompressedSize uint32
}

// Size returns the number of header bytes on the wire
func (h *Header) Size() int {
	if h.Compressed {
		return HeaderSizeCompressed
	}
	return HeaderSizeUncompressed
}

// DecodeHeader parses the frame header at the start of buf
func DecodeHeader(buf []byte) (*Header, error) {
	if len(buf) < HeaderSizeUncompressed {
		return nil, ErrTruncatedMessage
	}
	h := &Header{
		PayloadSize: binary.BigEndian.Uint32(buf[0:4]) & MaxPayloadSize,
		Type:        MessageType(binary.BigEndian.Uint16(buf[4:6])),
	}
	if buf[0]&compressionFlag != 0 {
		if (buf[0]>>4)&0x07 != algorithmLZ4 {
			return nil, ErrUnknownCompression
		}
		if len(buf) < HeaderSizeCompressed {
			return nil, ErrTruncatedMessage
		}
		h.Compressed = true
		h.UncompressedSize = binary.BigEndian.Uint32(buf[6:10])
	}
	return h, nil
}

// SplitFrame returns the header and the uncompressed payload of one frame
func SplitFrame(data []byte) (*Header, []byte, error) {
	h, err := DecodeHeader(data)
	if err != nil {
		return nil, nil, err
	}
	end := h.Size() + int(h.PayloadSize)
	if len(data) < end {
		return nil, nil, ErrTruncatedMessage
	}
	payload := data[h.Size():end]
	if !h.Compressed {
		return h, payload, nil
	}
	if h.UncompressedSize == 0 || h.UncompressedSize > MaxPayloadSize {
		return nil, nil, fmt.Errorf("invalid uncompressed size %d", h.UncompressedSize)
	}
	out := make([]byte, h.UncompressedSize)
	n, err := lz4.UncompressBlock(payload, out)
	if err != nil {
		return nil, nil, fmt.Errorf("lz4: %w", err)
	}
	if n != int(h.UncompressedSize) {
		return nil, nil, fmt.Errorf("lz4: expected %d bytes, got %d", h.UncompressedSize, n)
	}
	return h, out, nil
}

// EncodeFrame prefixes payload with an uncompressed header
func EncodeFrame(t MessageType, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("payload of %d bytes exceeds frame limit", len(payload))
	}
	buf := make([]byte, HeaderSizeUncompressed, HeaderSizeUncompressed+len(payload))
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(payload)))
	binary.BigEndian.PutUint16(buf[4:6], uint16(t))
	return append(buf, payload...), nil
}

// EncodeCompressedFrame compresses payload with LZ4. Payloads that do not
// shrink are framed uncompressed.
func EncodeCompressedFrame(t MessageType, payload []byte) ([]byte, error) {
	compressed := make([]byte, lz4.CompressBlockBound(len(payload)))
	n, err := lz4.CompressBlock(payload, compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("lz4: %w", err)
	}
	if n == 0 || n >= len(payload) {
		return EncodeFrame(t, payload)
	}
	buf := make([]byte, HeaderSizeCompressed, HeaderSizeCompressed+n)
	binary.BigEndian.PutUint32(buf[0:4], uint32(n)|uint32(compressionFlag|algorithmLZ4<<4)<<24)
	binary.BigEndian.PutUint16(buf[4:6], uint16(t))
	binary.BigEndian.PutUint32(buf[6:10], uint32(len(payload)))
	return append(buf, compressed[:n]...), nil
}
