// Package codec converts a GameState to and from the bytes kept in a
// persisted game record. The payload is a protobuf Struct so records stay
// self-describing without a generated schema.
package codec

import (
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"holdem-live/holdem"
)

// FormatVersion is bumped whenever the payload layout changes incompatibly.
const FormatVersion = 1

const (
	keyFormat = "format"
	keyState  = "state"
)

var ErrUnsupportedFormat = errors.New("codec: unsupported payload format")

// corrupt marks a payload that cannot become a GameState. The result is a
// holdem.InvalidStateError and still matches err.
func corrupt(what string, err error) error {
	return fmt.Errorf("%w: %w", holdem.ErrInvalidState("codec: "+what), err)
}

// EncodeState serializes the full state, including deck and seed, so a
// restored game deals exactly the cards it would have dealt.
func EncodeState(s holdem.GameState) ([]byte, error) {
	st, err := StateToStruct(s)
	if err != nil {
		return nil, err
	}
	envelope := &structpb.Struct{Fields: map[string]*structpb.Value{
		keyFormat: structpb.NewNumberValue(FormatVersion),
		keyState:  structpb.NewStructValue(st),
	}}
	raw, err := proto.MarshalOptions{Deterministic: true}.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("codec: marshal envelope: %w", err)
	}
	return raw, nil
}

func DecodeState(raw []byte) (holdem.GameState, error) {
	var envelope structpb.Struct
	if err := proto.Unmarshal(raw, &envelope); err != nil {
		return holdem.GameState{}, corrupt("unmarshal envelope", err)
	}
	format := envelope.GetFields()[keyFormat].GetNumberValue()
	if int(format) != FormatVersion {
		return holdem.GameState{}, corrupt(fmt.Sprintf("format %v", format), ErrUnsupportedFormat)
	}
	st := envelope.GetFields()[keyState].GetStructValue()
	if st == nil {
		return holdem.GameState{}, corrupt("missing state", ErrUnsupportedFormat)
	}
	return StructToState(st)
}

// StateToStruct goes through the JSON form of the state so field names match
// what clients see on the wire.
func StateToStruct(s holdem.GameState) (*structpb.Struct, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("codec: encode state: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("codec: encode state: %w", err)
	}
	st, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("codec: encode state: %w", err)
	}
	return st, nil
}

// StructToState re-encodes with encoding/json rather than protojson, which
// would print large integral numbers in exponent form.
func StructToState(st *structpb.Struct) (holdem.GameState, error) {
	raw, err := json.Marshal(st.AsMap())
	if err != nil {
		return holdem.GameState{}, corrupt("decode state", err)
	}
	var s holdem.GameState
	if err := json.Unmarshal(raw, &s); err != nil {
		return holdem.GameState{}, corrupt("decode state", err)
	}
	return s.Clone(), nil
}
