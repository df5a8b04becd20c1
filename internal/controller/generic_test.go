package controller

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"instrument-service/internal/model"
	"instrument-service/internal/protocol"
	"instrument-service/internal/timeutil"
)

// newMockController returns an initialized controller over a scripted port
func newMockController(t *testing.T, config map[string]interface{}) (*GenericSerialController, *protocol.MockPort) {
	t.Helper()

	settings, err := ParseSettings(config)
	require.NoError(t, err)

	clock := timeutil.NewFakeClock(epoch)
	port := protocol.NewMockPort(clock, settings.Framing)

	c, err := NewGenericSerialController(settings, model.ConnectionTypeSerial, zap.NewNop(),
		WithClock(clock),
		WithConnection(port),
	)
	require.NoError(t, err)
	require.NoError(t, c.Initialize(context.Background()))
	return c, port
}

func TestGenericSerialController_NotInitialized(t *testing.T) {
	c, err := NewGenericSerialController(DefaultSettings(), model.ConnectionTypeSerial, zap.NewNop())
	require.NoError(t, err)
	ctx := context.Background()

	assert.False(t, c.IsInitialized())
	assert.ErrorIs(t, c.Write(ctx, "l1"), ErrNotInitialized)

	_, err = c.ReadLines(ctx, true)
	assert.ErrorIs(t, err, ErrNotInitialized)

	_, err = c.ReadBuffer(ctx, true)
	assert.ErrorIs(t, err, ErrNotInitialized)

	_, err = c.Query(ctx, "p?")
	assert.ErrorIs(t, err, ErrNotInitialized)

	_, err = c.Idn(ctx)
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestGenericSerialController_FinalizeBeforeInitialize(t *testing.T) {
	c, err := NewGenericSerialController(DefaultSettings(), model.ConnectionTypeSerial, zap.NewNop())
	require.NoError(t, err)

	assert.NoError(t, c.Finalize())
	assert.False(t, c.IsInitialized())
}

func TestGenericSerialController_QueryClearsBuffersThenWrites(t *testing.T) {
	c, port := newMockController(t, map[string]interface{}{"write_termination": "\r"})

	// Stale bytes from an earlier unanswered exchange
	port.Schedule(0, []byte("stale\n"))
	port.OnWrite = func(p *protocol.MockPort, data []byte) {
		p.Schedule(2*time.Millisecond, []byte("0.115\r\n"))
	}

	resp, err := c.Query(context.Background(), "p?")
	require.NoError(t, err)

	assert.Equal(t, []string{"0.115"}, resp.Lines)
	assert.True(t, resp.Terminated)
	assert.Equal(t, "p?\r", string(port.Written()))
	assert.Equal(t, []string{"open", "reset_output", "reset_input", "write"}, port.Calls())
}

func TestGenericSerialController_Idn(t *testing.T) {
	c, port := newMockController(t, nil)
	port.OnWrite = func(p *protocol.MockPort, data []byte) {
		p.Schedule(time.Millisecond, []byte("Cobolt Inc.,08-NLD,1234,1.0\n"))
	}

	resp, err := c.Idn(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "*IDN?\n", string(port.Written()))
	assert.Equal(t, "Cobolt Inc.,08-NLD,1234,1.0", resp.First())
}

func TestGenericSerialController_QueryTimeoutIsNotAnError(t *testing.T) {
	c, _ := newMockController(t, nil)

	resp, err := c.Query(context.Background(), "silent?")
	require.NoError(t, err)
	assert.Empty(t, resp.Lines)
	assert.True(t, resp.Expired)
	assert.False(t, resp.Terminated)
}

func TestGenericSerialController_ReadLinesWithoutStrip(t *testing.T) {
	c, port := newMockController(t, nil)
	port.Schedule(0, []byte("\nOK\n"))

	resp, err := c.ReadLines(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, []string{"", "OK", ""}, resp.Lines)
}

func TestGenericSerialController_Exchange(t *testing.T) {
	c, port := newMockController(t, nil)
	port.OnWrite = func(p *protocol.MockPort, data []byte) {
		p.Schedule(time.Millisecond, []byte{0x06})
	}

	resp, err := c.Exchange(context.Background(), "ack", false)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x06}, resp.Raw)
	assert.Nil(t, resp.Lines)
}

func TestGenericSerialController_WriteEncodingError(t *testing.T) {
	c, port := newMockController(t, nil)

	assert.Error(t, c.Write(context.Background(), "5 µW"))
	assert.Empty(t, port.Written())
}

func TestGenericSerialController_Finalize(t *testing.T) {
	c, port := newMockController(t, nil)

	require.NoError(t, c.Finalize())
	assert.False(t, c.IsInitialized())
	assert.False(t, port.IsOpen())
	assert.ErrorIs(t, c.Write(context.Background(), "l0"), ErrNotInitialized)
}

func TestGenericSerialController_DummyMode(t *testing.T) {
	settings, err := ParseSettings(map[string]interface{}{"dummy": true, "port": "COM10"})
	require.NoError(t, err)

	c, err := NewGenericSerialController(settings, model.ConnectionTypeSerial, zap.NewNop(),
		WithClock(timeutil.NewFakeClock(epoch)),
		WithResponder(func(request string) string {
			return strings.ToUpper(request)
		}),
	)
	require.NoError(t, err)
	require.NoError(t, c.Initialize(context.Background()))
	defer c.Finalize()

	resp, err := c.Query(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []string{"HELLO"}, resp.Lines)
	assert.True(t, c.Info().Dummy)
	assert.Equal(t, "COM10", c.Info().Port)
}

func TestGenericSerialController_RealLinkRequiresPort(t *testing.T) {
	c, err := NewGenericSerialController(DefaultSettings(), model.ConnectionTypeSerial, zap.NewNop())
	require.NoError(t, err)

	assert.Error(t, c.Initialize(context.Background()))
	assert.False(t, c.IsInitialized())
}

func TestGenericSerialController_RealLinkRejectsNonStandardBaud(t *testing.T) {
	settings, err := ParseSettings(map[string]interface{}{"port": "/dev/ttyUSB7", "baudrate": 12345})
	require.NoError(t, err)

	c, err := NewGenericSerialController(settings, model.ConnectionTypeSerial, zap.NewNop())
	require.NoError(t, err)

	err = c.Initialize(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid baud rate")
	assert.False(t, c.IsInitialized())
}
