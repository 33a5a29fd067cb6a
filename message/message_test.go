package message

import (
	"encoding/json"
	"math"
	"testing"
)

func TestOdometryBinaryRoundTrip(t *testing.T) {
	cases := []Odometry{
		{X: 0, Y: 0},
		{X: 2.0, Y: 0.0},
		{X: -1.5, Y: 3.25},
		{X: math.MaxFloat64, Y: -math.SmallestNonzeroFloat64},
		{X: math.Copysign(0, -1), Y: 1e-300},
	}

	for _, want := range cases {
		data, err := want.MarshalBinary()
		if err != nil {
			t.Fatalf("MarshalBinary failed: %v", err)
		}

		var got Odometry
		if err := got.UnmarshalBinary(data); err != nil {
			t.Fatalf("UnmarshalBinary failed: %v", err)
		}

		if math.Float64bits(got.X) != math.Float64bits(want.X) || math.Float64bits(got.Y) != math.Float64bits(want.Y) {
			t.Errorf("round trip mismatch: got %+v, want %+v", got, want)
		}
	}
}

func TestOdometryUnmarshalShortInput(t *testing.T) {
	var o Odometry
	if err := o.UnmarshalBinary([]byte{1, 2, 3}); err == nil {
		t.Fatal("expect error for short input")
	}
}

func TestEnvelopeJSON(t *testing.T) {
	env := &Envelope{Type: OdometryType, Payload: []byte(`{"x":1,"y":2}`)}

	data, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("Failed to marshal envelope: %v", err)
	}

	var env2 Envelope
	if err := json.Unmarshal(data, &env2); err != nil {
		t.Fatalf("Failed to unmarshal envelope: %v", err)
	}

	if env2.Type != env.Type || string(env2.Payload) != string(env.Payload) {
		t.Fatalf("envelope mismatch: got %+v, want %+v", env2, env)
	}
}
