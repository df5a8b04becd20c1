package controller

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"instrument-service/internal/protocol"
	"instrument-service/internal/timeutil"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// newScriptedPort returns a 9600 8N1 mock port on a fake clock
func newScriptedPort() (*protocol.MockPort, *timeutil.FakeClock) {
	clock := timeutil.NewFakeClock(epoch)
	return protocol.NewMockPort(clock, protocol.DefaultFraming()), clock
}

func TestReadBuffer_CompleteLineWithinOnePoll(t *testing.T) {
	port, clock := newScriptedPort()
	port.Schedule(5*time.Millisecond, []byte("OK\r\n"))

	resp, err := ReadBuffer(context.Background(), port, clock, ReadOptions{
		Timeout:            100 * time.Millisecond,
		WaitForTermination: true,
	})
	require.NoError(t, err)

	assert.Equal(t, "OK\r\n", string(resp.Raw))
	assert.True(t, resp.Terminated)
	assert.False(t, resp.Expired)
	assert.Equal(t, 1, resp.Polls)
	assert.Equal(t, []string{"OK"}, DecodeLines(string(resp.Raw), true))
}

func TestReadBuffer_SplitPayloadExtendsDeadline(t *testing.T) {
	port, clock := newScriptedPort()
	port.Schedule(0, []byte("0.115"))
	// Arrives after the initial window but within one extension of the first chunk
	port.Schedule(30*time.Millisecond, []byte("000\r\n"))

	resp, err := ReadBuffer(context.Background(), port, clock, ReadOptions{
		Timeout:            10 * time.Millisecond,
		WaitForTermination: true,
	})
	require.NoError(t, err)

	assert.Equal(t, "0.115000\r\n", string(resp.Raw))
	assert.True(t, resp.Terminated)
	assert.False(t, resp.Expired)
	assert.Equal(t, 1, resp.Extensions)
	assert.Equal(t, 2, resp.Polls)
}

func TestReadBuffer_DeadlineExtensionNeverShortens(t *testing.T) {
	port, clock := newScriptedPort()
	port.Schedule(0, []byte("partial"))

	resp, err := ReadBuffer(context.Background(), port, clock, ReadOptions{
		Timeout:            500 * time.Millisecond,
		WaitForTermination: true,
	})
	require.NoError(t, err)

	// The extension falls inside the initial window, so the full window is used
	assert.Zero(t, resp.Extensions)
	assert.True(t, resp.Expired)
	assert.GreaterOrEqual(t, resp.Elapsed, 500*time.Millisecond)
}

func TestReadBuffer_EndlessStreamStopsAtDeadline(t *testing.T) {
	port, clock := newScriptedPort()
	for i := 0; i < 1000; i++ {
		port.Schedule(time.Duration(i)*time.Millisecond, []byte("x"))
	}

	timeout := 100 * time.Millisecond
	resp, err := ReadBuffer(context.Background(), port, clock, ReadOptions{
		Timeout:            timeout,
		WaitForTermination: true,
	})
	require.NoError(t, err)

	byteTime := protocol.DefaultFraming().ByteTime()
	assert.True(t, resp.Expired)
	assert.False(t, resp.Terminated)
	assert.NotEmpty(t, resp.Raw)
	assert.Less(t, len(resp.Raw), 1000)
	assert.GreaterOrEqual(t, resp.Elapsed, timeout)
	assert.Less(t, resp.Elapsed, timeout+(extendByteTimes+2*pollByteTimes)*byteTime)
}

func TestReadBuffer_NothingReceived(t *testing.T) {
	port, clock := newScriptedPort()

	resp, err := ReadBuffer(context.Background(), port, clock, ReadOptions{
		Timeout:            100 * time.Millisecond,
		WaitForTermination: true,
	})
	require.NoError(t, err)

	assert.Empty(t, resp.Raw)
	assert.True(t, resp.Expired)
	assert.False(t, resp.Terminated)
	assert.Equal(t, 5, resp.Polls)
	assert.Empty(t, DecodeLines(string(resp.Raw), true))
	assert.Equal(t, []string{""}, DecodeLines(string(resp.Raw), false))
}

func TestReadBuffer_ZeroTimeoutPollsOnce(t *testing.T) {
	port, clock := newScriptedPort()

	resp, err := ReadBuffer(context.Background(), port, clock, ReadOptions{
		Timeout:            0,
		WaitForTermination: true,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, resp.Polls)
	assert.True(t, resp.Expired)
}

func TestReadBuffer_ZeroTimeoutExtendedByArrival(t *testing.T) {
	port, clock := newScriptedPort()
	port.Schedule(time.Millisecond, []byte("0."))
	port.Schedule(25*time.Millisecond, []byte("5\n"))

	resp, err := ReadBuffer(context.Background(), port, clock, ReadOptions{
		Timeout:            0,
		WaitForTermination: true,
	})
	require.NoError(t, err)

	assert.Equal(t, "0.5\n", string(resp.Raw))
	assert.True(t, resp.Terminated)
	assert.Equal(t, 1, resp.Extensions)
}

func TestReadBuffer_WithoutTerminationReturnsAfterFirstPoll(t *testing.T) {
	port, clock := newScriptedPort()
	port.Schedule(time.Millisecond, []byte("abc"))
	port.Schedule(50*time.Millisecond, []byte("def\n"))

	resp, err := ReadBuffer(context.Background(), port, clock, ReadOptions{
		Timeout:            time.Second,
		WaitForTermination: false,
	})
	require.NoError(t, err)

	assert.Equal(t, "abc", string(resp.Raw))
	assert.Equal(t, 1, resp.Polls)
	assert.False(t, resp.Expired)
}

func TestReadBuffer_PollIntervalIsTwentyByteTimes(t *testing.T) {
	port, clock := newScriptedPort()

	_, err := ReadBuffer(context.Background(), port, clock, ReadOptions{Timeout: 50 * time.Millisecond, WaitForTermination: true})
	require.NoError(t, err)

	sleeps := clock.Sleeps()
	require.NotEmpty(t, sleeps)
	for _, d := range sleeps {
		assert.Equal(t, 20*protocol.DefaultFraming().ByteTime(), d)
	}
}

func TestReadBuffer_CustomTerminator(t *testing.T) {
	port, clock := newScriptedPort()
	port.Schedule(time.Millisecond, []byte("OK>"))

	resp, err := ReadBuffer(context.Background(), port, clock, ReadOptions{
		Timeout:            100 * time.Millisecond,
		WaitForTermination: true,
		Terminators:        [][]byte{[]byte(">")},
	})
	require.NoError(t, err)
	assert.True(t, resp.Terminated)
	assert.Equal(t, 1, resp.Polls)
}

func TestReadBuffer_TransportErrorPropagates(t *testing.T) {
	port, clock := newScriptedPort()
	unplugged := errors.New("device unplugged")
	port.InWaitingErr = unplugged

	resp, err := ReadBuffer(context.Background(), port, clock, ReadOptions{
		Timeout:            100 * time.Millisecond,
		WaitForTermination: true,
	})
	assert.Same(t, unplugged, err)
	require.NotNil(t, resp)
	assert.Empty(t, resp.Raw)
}

func TestReadBuffer_ReadErrorPropagates(t *testing.T) {
	port, clock := newScriptedPort()
	port.Schedule(0, []byte("abc"))
	failed := errors.New("read failed")
	port.ReadErr = failed

	_, err := ReadBuffer(context.Background(), port, clock, ReadOptions{
		Timeout:            100 * time.Millisecond,
		WaitForTermination: true,
	})
	assert.ErrorIs(t, err, failed)
}

func TestReadBuffer_CancelledContext(t *testing.T) {
	port, clock := newScriptedPort()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resp, err := ReadBuffer(ctx, port, clock, ReadOptions{
		Timeout:            time.Second,
		WaitForTermination: true,
	})
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, resp)
	assert.Zero(t, resp.Polls)
}
