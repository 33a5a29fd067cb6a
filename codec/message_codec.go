package codec

import (
	"fmt"
	"reflect"

	"ghost-robot/message"
)

// MessageCodec binds a message type T to a type identifier and a serialization format.
// The identifier, not the payload, decides which handlers a message reaches.
type MessageCodec[T any] interface {
	TypeID() string
	Serialize(msg T) ([]byte, error)
	Deserialize(data []byte) (T, error)
}

type messageCodec[T any] struct {
	typeID string
	codec  Codec
}

// NewMessageCodec returns a MessageCodec for T using c. An empty typeID is replaced by
// the Go type name of T.
func NewMessageCodec[T any](typeID string, c Codec) MessageCodec[T] {
	if typeID == "" {
		typeID = TypeIDOf[T]()
	}
	return &messageCodec[T]{typeID: typeID, codec: c}
}

// TypeIDOf derives a type identifier from the Go type, e.g. "message.Odometry".
func TypeIDOf[T any]() string {
	return reflect.TypeFor[T]().String()
}

func (m *messageCodec[T]) TypeID() string {
	return m.typeID
}

func (m *messageCodec[T]) Serialize(msg T) ([]byte, error) {
	data, err := m.codec.Encode(msg)
	if err != nil {
		return nil, fmt.Errorf("serialize %s: %w", m.typeID, err)
	}
	return data, nil
}

func (m *messageCodec[T]) Deserialize(data []byte) (T, error) {
	var msg T
	if err := m.codec.Decode(data, &msg); err != nil {
		return msg, fmt.Errorf("deserialize %s: %w", m.typeID, err)
	}
	return msg, nil
}

// OdometryCodec is the MessageCodec for robot odometry snapshots.
func OdometryCodec(c Codec) MessageCodec[message.Odometry] {
	return NewMessageCodec[message.Odometry](message.OdometryType, c)
}
