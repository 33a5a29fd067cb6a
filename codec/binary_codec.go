package codec

import (
	"encoding"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"ghost-robot/message"
)

// BinaryCodec encodes envelopes with a length-prefixed layout and delegates every
// other value to its encoding.BinaryMarshaler implementation.
//
// Envelope layout:
//
//	┌─────────┬──────────┬───────────┬──────────────┐
//	│ typeLen │ type ... │ payLen    │ payload ...  │
//	│ uint16  │ n bytes  │ uint32    │ n bytes      │
//	└─────────┴──────────┴───────────┴──────────────┘
type BinaryCodec struct{}

var errShortBuffer = errors.New("BinaryCodec: short buffer")

func (c *BinaryCodec) Encode(v any) ([]byte, error) {
	switch msg := v.(type) {
	case *message.Envelope:
		return encodeEnvelope(msg)
	case encoding.BinaryMarshaler:
		return msg.MarshalBinary()
	default:
		return nil, fmt.Errorf("BinaryCodec: cannot encode %T", v)
	}
}

func (c *BinaryCodec) Decode(data []byte, v any) error {
	switch msg := v.(type) {
	case *message.Envelope:
		return decodeEnvelope(data, msg)
	case encoding.BinaryUnmarshaler:
		return msg.UnmarshalBinary(data)
	default:
		return fmt.Errorf("BinaryCodec: cannot decode into %T", v)
	}
}

func (c *BinaryCodec) Type() CodecType {
	return CodecTypeBinary
}

func encodeEnvelope(msg *message.Envelope) ([]byte, error) {
	if len(msg.Type) > math.MaxUint16 {
		return nil, fmt.Errorf("BinaryCodec: type name too long (%d bytes)", len(msg.Type))
	}
	total := 2 + len(msg.Type) + 4 + len(msg.Payload)
	buf := make([]byte, total)

	offset := 0
	// Type length -- 2 bytes
	binary.BigEndian.PutUint16(buf[offset:offset+2], uint16(len(msg.Type)))
	offset += 2

	// Type -- n bytes
	copy(buf[offset:offset+len(msg.Type)], msg.Type)
	offset += len(msg.Type)

	// Payload length -- 4 bytes
	binary.BigEndian.PutUint32(buf[offset:offset+4], uint32(len(msg.Payload)))
	offset += 4

	// Payload -- n bytes
	copy(buf[offset:], msg.Payload)
	return buf, nil
}

func decodeEnvelope(data []byte, msg *message.Envelope) error {
	offset := 0

	// Read Type
	if len(data) < offset+2 {
		return errShortBuffer
	}
	typeLen := int(binary.BigEndian.Uint16(data[offset : offset+2]))
	offset += 2
	if len(data) < offset+typeLen {
		return errShortBuffer
	}
	msg.Type = string(data[offset : offset+typeLen])
	offset += typeLen

	// Read Payload
	if len(data) < offset+4 {
		return errShortBuffer
	}
	payloadLen := int(binary.BigEndian.Uint32(data[offset : offset+4]))
	offset += 4
	if len(data)-offset != payloadLen {
		return fmt.Errorf("BinaryCodec: payload length %d does not match remaining %d bytes", payloadLen, len(data)-offset)
	}
	msg.Payload = make([]byte, payloadLen)
	copy(msg.Payload, data[offset:])

	return nil
}
