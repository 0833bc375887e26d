package codec

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"holdem-live/holdem"
)

func playedState(t *testing.T) holdem.GameState {
	t.Helper()
	cfg := holdem.DefaultConfig()
	cfg.Seed = 1234567890123456789
	g, err := holdem.NewGame(cfg, "codec-game", []holdem.Seat{
		{Name: "Alice", Chips: 5_000_000, UserID: "u-1"},
		{Name: "Bob", Chips: 3_000_000},
	})
	require.NoError(t, err)
	_, err = g.Deal()
	require.NoError(t, err)
	s, err := g.Act("player-1", holdem.Call{})
	require.NoError(t, err)
	return s
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	want := playedState(t)

	raw, err := EncodeState(want)
	require.NoError(t, err)
	got, err := DecodeState(raw)
	require.NoError(t, err)

	assert.Equal(t, want, got)
	assert.Equal(t, int64(1234567890123456789), got.Seed, "seed survives without float rounding")
	assert.Equal(t, int64(8_000_000), got.TotalChips)
	assert.NoError(t, got.Validate())
}

func TestEncode_IsDeterministic(t *testing.T) {
	s := playedState(t)
	a, err := EncodeState(s)
	require.NoError(t, err)
	b, err := EncodeState(s)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestDecode_RejectsUnknownFormat(t *testing.T) {
	raw, err := proto.Marshal(&structpb.Struct{Fields: map[string]*structpb.Value{
		keyFormat: structpb.NewNumberValue(99),
	}})
	require.NoError(t, err)
	_, err = DecodeState(raw)
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
	var invalid holdem.InvalidStateError
	assert.True(t, errors.As(err, &invalid))
}

func TestDecode_CorruptPayloadIsInvalidState(t *testing.T) {
	badState, err := proto.Marshal(&structpb.Struct{Fields: map[string]*structpb.Value{
		keyFormat: structpb.NewNumberValue(FormatVersion),
		keyState: structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			"pot": structpb.NewStringValue("lots"),
		}}),
	}})
	require.NoError(t, err)

	for name, raw := range map[string][]byte{
		"garbage":       {0xff, 0xff},
		"missing state": mustMarshal(t, &structpb.Struct{Fields: map[string]*structpb.Value{keyFormat: structpb.NewNumberValue(FormatVersion)}}),
		"bad field":     badState,
	} {
		_, err := DecodeState(raw)
		var invalid holdem.InvalidStateError
		assert.True(t, errors.As(err, &invalid), name)
	}
}

func mustMarshal(t *testing.T, m proto.Message) []byte {
	t.Helper()
	raw, err := proto.Marshal(m)
	require.NoError(t, err)
	return raw
}
