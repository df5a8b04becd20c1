package protocol

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

func TestFraming_ByteTime(t *testing.T) {
	tests := []struct {
		name    string
		framing Framing
		want    time.Duration
	}{
		{"9600 8N1", Framing{BaudRate: 9600, DataBits: 8, StopBits: 1, Parity: ParityNone}, 1041666},
		{"115200 8N1", Framing{BaudRate: 115200, DataBits: 8, StopBits: 1, Parity: ParityNone}, 86805},
		{"9600 7E2", Framing{BaudRate: 9600, DataBits: 7, StopBits: 2, Parity: ParityEven}, 1145833},
		{"zero baud", Framing{BaudRate: 0, DataBits: 8, StopBits: 1}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, float64(tt.want), float64(tt.framing.ByteTime()), 1)
		})
	}
}

func TestFraming_String(t *testing.T) {
	assert.Equal(t, "9600 8N1", DefaultFraming().String())
	assert.Equal(t, "19200 7E1.5", Framing{BaudRate: 19200, DataBits: 7, StopBits: 1.5, Parity: ParityEven}.String())
}

func TestFraming_Mode(t *testing.T) {
	mode, err := Framing{BaudRate: 115200, DataBits: 8, StopBits: 2, Parity: ParityOdd}.Mode()
	require.NoError(t, err)

	assert.Equal(t, 115200, mode.BaudRate)
	assert.Equal(t, 8, mode.DataBits)
	assert.Equal(t, serial.TwoStopBits, mode.StopBits)
	assert.Equal(t, serial.OddParity, mode.Parity)
}

func TestFraming_Validate(t *testing.T) {
	assert.NoError(t, DefaultFraming().Validate())
	assert.Error(t, Framing{BaudRate: 9600, DataBits: 9, StopBits: 1, Parity: ParityNone}.Validate())
	assert.Error(t, Framing{BaudRate: 9600, DataBits: 8, StopBits: 3, Parity: ParityNone}.Validate())
	assert.Error(t, Framing{BaudRate: 9600, DataBits: 8, StopBits: 1, Parity: "bogus"}.Validate())
	assert.Error(t, Framing{BaudRate: -1, DataBits: 8, StopBits: 1, Parity: ParityNone}.Validate())
}
