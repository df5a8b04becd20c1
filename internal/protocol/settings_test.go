package protocol

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntValue(t *testing.T) {
	config := map[string]interface{}{
		"a": 9600,
		"b": float64(115200),
		"c": "19200",
		"d": 1.5,
		"e": true,
	}

	v, err := IntValue(config, "a", 0)
	require.NoError(t, err)
	assert.Equal(t, 9600, v)

	v, err = IntValue(config, "b", 0)
	require.NoError(t, err)
	assert.Equal(t, 115200, v)

	v, err = IntValue(config, "c", 0)
	require.NoError(t, err)
	assert.Equal(t, 19200, v)

	v, err = IntValue(config, "missing", 42)
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	_, err = IntValue(config, "d", 0)
	assert.Error(t, err)

	_, err = IntValue(config, "e", 0)
	assert.Error(t, err)
}

func TestDurationValue(t *testing.T) {
	config := map[string]interface{}{
		"seconds_float": 0.25,
		"seconds_int":   2,
		"go_duration":   "150ms",
		"seconds_str":   "0.5",
		"bad":           "soon",
		"negative":      -1.0,
	}

	tests := []struct {
		key  string
		want time.Duration
	}{
		{"seconds_float", 250 * time.Millisecond},
		{"seconds_int", 2 * time.Second},
		{"go_duration", 150 * time.Millisecond},
		{"seconds_str", 500 * time.Millisecond},
		{"missing", 100 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			d, err := DurationValue(config, tt.key, 100*time.Millisecond)
			require.NoError(t, err)
			assert.Equal(t, tt.want, d)
		})
	}

	_, err := DurationValue(config, "bad", 0)
	assert.Error(t, err)

	_, err = DurationValue(config, "negative", 0)
	assert.Error(t, err)
}

func TestBoolValue(t *testing.T) {
	config := map[string]interface{}{"a": true, "b": "false", "c": 1}

	v, err := BoolValue(config, "a", false)
	require.NoError(t, err)
	assert.True(t, v)

	v, err = BoolValue(config, "b", true)
	require.NoError(t, err)
	assert.False(t, v)

	_, err = BoolValue(config, "c", false)
	assert.Error(t, err)
}

func TestParseFraming(t *testing.T) {
	f, err := ParseFraming(map[string]interface{}{}, DefaultFraming())
	require.NoError(t, err)
	assert.Equal(t, DefaultFraming(), f)

	f, err = ParseFraming(map[string]interface{}{
		"baudrate":  115200,
		"data_bits": 7,
		"stop_bits": 2,
		"parity":    "E",
	}, DefaultFraming())
	require.NoError(t, err)
	assert.Equal(t, Framing{BaudRate: 115200, DataBits: 7, StopBits: 2, Parity: ParityEven}, f)

	f, err = ParseFraming(map[string]interface{}{"baud_rate": 57600, "bytesize": 8, "stopbits": 1}, DefaultFraming())
	require.NoError(t, err)
	assert.Equal(t, 57600, f.BaudRate)

	_, err = ParseFraming(map[string]interface{}{"parity": "sometimes"}, DefaultFraming())
	assert.Error(t, err)

	_, err = ParseFraming(map[string]interface{}{"baudrate": 0}, DefaultFraming())
	assert.Error(t, err)
}
