package protocol

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// startLineServer answers every received line with "OK\r\n"
func startLineServer(t *testing.T) *net.TCPAddr {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		scanner := bufio.NewScanner(conn)
		for scanner.Scan() {
			if _, err := conn.Write([]byte("OK\r\n")); err != nil {
				return
			}
		}
	}()

	return ln.Addr().(*net.TCPAddr)
}

func TestTCPConnection_WriteAndRead(t *testing.T) {
	addr := startLineServer(t)

	conn := NewTCPConnection(&TCPConfig{
		Host:         "127.0.0.1",
		Port:         addr.Port,
		Framing:      NominalTCPFraming(),
		Timeout:      time.Second,
		WriteTimeout: time.Second,
	}, zap.NewNop())

	require.NoError(t, conn.Open(context.Background()))
	defer conn.Close()
	assert.True(t, conn.IsOpen())

	n, err := conn.Write([]byte("p?\n"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.Eventually(t, func() bool {
		pending, err := conn.InWaiting()
		return err == nil && pending == 4
	}, 2*time.Second, 5*time.Millisecond)

	buf := make([]byte, 16)
	n, err = conn.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "OK\r\n", string(buf[:n]))

	stats := conn.Stats()
	assert.Equal(t, int64(3), stats.BytesWritten)
	assert.Equal(t, int64(4), stats.BytesRead)
	assert.NoError(t, conn.Ping(context.Background()))

	require.NoError(t, conn.Close())
	assert.False(t, conn.IsOpen())

	_, err = conn.Write([]byte("x\n"))
	assert.ErrorIs(t, err, ErrNotOpen)
}

func TestTCPConnection_ResetInputBuffer(t *testing.T) {
	addr := startLineServer(t)

	conn := NewTCPConnection(&TCPConfig{Host: "127.0.0.1", Port: addr.Port, Framing: NominalTCPFraming(), Timeout: time.Second}, zap.NewNop())
	require.NoError(t, conn.Open(context.Background()))
	defer conn.Close()

	_, err := conn.Write([]byte("stale\n"))
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		pending, _ := conn.InWaiting()
		return pending > 0
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, conn.ResetInputBuffer())
	pending, err := conn.InWaiting()
	require.NoError(t, err)
	assert.Zero(t, pending)
}

func TestTCPConnection_OpenRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	conn := NewTCPConnection(&TCPConfig{Host: "127.0.0.1", Port: port, Timeout: time.Second}, zap.NewNop())
	assert.Error(t, conn.Open(context.Background()))
	assert.False(t, conn.IsOpen())
}
