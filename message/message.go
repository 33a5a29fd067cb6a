// Package message defines the envelope exchanged between publishers and subscribers
// and the typed messages carried inside it.
//
// Envelope is the unit of transmission. It gets serialized by the codec layer and
// wrapped in a protocol frame for transmission over TCP.
package message

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Envelope carries one published message.
//
//   - Type is the message type identifier the subscriber dispatches on.
//   - Payload is the typed message serialized by its MessageCodec.
type Envelope struct {
	Type    string // e.g. "ghost.RobotOdometry"
	Payload []byte
}

// OdometryType is the type identifier of Odometry on the wire.
const OdometryType = "ghost.RobotOdometry"

// odometrySize is two IEEE-754 doubles.
const odometrySize = 16

// Odometry is the robot position snapshot, in meters.
type Odometry struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// MarshalBinary encodes X and Y as big-endian IEEE-754 bit patterns, so every
// float64 (including NaN payloads and signed zeros) round-trips exactly.
func (o Odometry) MarshalBinary() ([]byte, error) {
	buf := make([]byte, odometrySize)
	binary.BigEndian.PutUint64(buf[0:8], math.Float64bits(o.X))
	binary.BigEndian.PutUint64(buf[8:16], math.Float64bits(o.Y))
	return buf, nil
}

// UnmarshalBinary is the inverse of MarshalBinary.
func (o *Odometry) UnmarshalBinary(data []byte) error {
	if len(data) != odometrySize {
		return fmt.Errorf("odometry: expected %d bytes, got %d", odometrySize, len(data))
	}
	o.X = math.Float64frombits(binary.BigEndian.Uint64(data[0:8]))
	o.Y = math.Float64frombits(binary.BigEndian.Uint64(data[8:16]))
	return nil
}
