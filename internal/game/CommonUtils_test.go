package game

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDirection(t *testing.T) {
	tests := map[string]Direction{
		"up": Up, "W": Up, "ArrowUp": Up, "k": Up,
		"down": Down, "s": Down, "ArrowDown": Down, "swipeDown": Down,
		"left": Left, "a": Left, "h": Left,
		"right": Right, " D ": Right, "ArrowRight": Right,
	}

	for input, want := range tests {
		got, ok := ParseDirection(input)
		assert.True(t, ok, input)
		assert.Equal(t, want, got, input)
	}
}

func TestParseDirectionIgnoresUnknownInput(t *testing.T) {
	for _, input := range []string{"", "space", "enter", "upp", "x"} {
		_, ok := ParseDirection(input)
		assert.False(t, ok, input)
	}
}

func TestDirectionAxes(t *testing.T) {
	assert.True(t, Up.SameAxis(Down))
	assert.True(t, Left.SameAxis(Right))
	assert.True(t, Up.SameAxis(Up))
	assert.False(t, Up.SameAxis(Left))
	assert.False(t, Right.SameAxis(Down))
}

func TestStateJSON(t *testing.T) {
	state := NewEngine().State()

	raw, err := json.Marshal(state)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "idle", decoded["status"])
	assert.Equal(t, map[string]any{"x": 15.0, "y": 15.0}, decoded["food"])

	var roundTrip State
	require.NoError(t, json.Unmarshal(raw, &roundTrip))
	assert.Equal(t, state, roundTrip)
}
