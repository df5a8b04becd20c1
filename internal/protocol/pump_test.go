package protocol

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInputPump_BuffersAndDrains(t *testing.T) {
	pr, pw := io.Pipe()
	pump := newInputPump(pr, zap.NewNop())
	pump.start()
	defer func() {
		pump.stop()
		pw.Close()
		pump.wait(time.Second)
	}()

	_, err := pw.Write([]byte("abc"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		n, _ := pump.available()
		return n == 3
	}, time.Second, time.Millisecond)

	buf := make([]byte, 2)
	n, err := pump.read(buf)
	require.NoError(t, err)
	assert.Equal(t, "ab", string(buf[:n]))

	n, err = pump.available()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	pump.reset()
	n, err = pump.available()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestInputPump_ReadOnEmptyDoesNotBlock(t *testing.T) {
	pr, pw := io.Pipe()
	pump := newInputPump(pr, zap.NewNop())
	pump.start()
	defer func() {
		pump.stop()
		pw.Close()
		pump.wait(time.Second)
	}()

	n, err := pump.read(make([]byte, 8))
	assert.NoError(t, err)
	assert.Zero(t, n)
}

func TestInputPump_ErrorAfterDrain(t *testing.T) {
	pr, pw := io.Pipe()
	pump := newInputPump(pr, zap.NewNop())
	pump.start()

	unplugged := errors.New("device unplugged")
	_, err := pw.Write([]byte("x"))
	require.NoError(t, err)
	pw.CloseWithError(unplugged)

	require.True(t, pump.wait(time.Second))

	n, err := pump.available()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	buf := make([]byte, 1)
	_, err = pump.read(buf)
	require.NoError(t, err)

	_, err = pump.available()
	assert.ErrorIs(t, err, unplugged)
}

func TestInputPump_StopSuppressesCloseError(t *testing.T) {
	pr, pw := io.Pipe()
	pump := newInputPump(pr, zap.NewNop())
	pump.start()

	pump.stop()
	pw.Close()
	require.True(t, pump.wait(time.Second))

	_, err := pump.available()
	assert.NoError(t, err)
}
