// internal/protocol/tcp_connection.go
package protocol

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"instrument-service/internal/model"
)

// TCPConnection implements Connection for raw sockets to LAN instruments.
// The framing is nominal and only sizes the reader's poll interval.
type TCPConnection struct {
	config *TCPConfig
	conn   net.Conn
	pump   *inputPump
	logger *zap.Logger
	mutex  sync.RWMutex
	isOpen bool
	stats  *ProtocolStats
}

// NewTCPConnection creates a new TCP connection
func NewTCPConnection(config *TCPConfig, logger *zap.Logger) *TCPConnection {
	return &TCPConnection{
		config: config,
		logger: logger.With(
			zap.String("protocol", "tcp"),
			zap.String("host", config.Host),
			zap.Int("port", config.Port),
		),
		stats: &ProtocolStats{
			IsConnected: false,
		},
	}
}

// Open dials the instrument and starts the input pump
func (tc *TCPConnection) Open(ctx context.Context) error {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()

	if tc.isOpen {
		return nil
	}

	tc.logger.Info("Opening TCP connection",
		zap.String("address", tc.config.Address()),
	)

	// Create dialer with timeout
	dialer := &net.Dialer{
		Timeout: tc.config.Timeout,
	}
	if tc.config.KeepAlive {
		dialer.KeepAlive = 30 * time.Second
	}

	conn, err := dialer.DialContext(ctx, "tcp", tc.config.Address())
	if err != nil {
		tc.logger.Error("Failed to open TCP connection", zap.Error(err))
		return fmt.Errorf("failed to connect to %s: %w", tc.config.Address(), err)
	}

	tc.conn = conn
	tc.pump = newInputPump(conn, tc.logger)
	tc.pump.start()
	tc.isOpen = true
	tc.stats.IsConnected = true
	tc.stats.LastActivity = time.Now()

	tc.logger.Info("TCP connection opened successfully")
	return nil
}

// Close closes the socket and waits for the pump to exit
func (tc *TCPConnection) Close() error {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()

	if !tc.isOpen || tc.conn == nil {
		return nil
	}

	tc.pump.stop()
	err := tc.conn.Close()
	if !tc.pump.wait(time.Second) {
		tc.logger.Warn("Input pump did not exit after close")
	}

	tc.conn = nil
	tc.pump = nil
	tc.isOpen = false
	tc.stats.IsConnected = false

	if err != nil {
		tc.logger.Error("Failed to close TCP connection", zap.Error(err))
		return fmt.Errorf("failed to close TCP connection: %w", err)
	}

	tc.logger.Info("TCP connection closed successfully")
	return nil
}

// IsOpen returns whether the connection is open
func (tc *TCPConnection) IsOpen() bool {
	tc.mutex.RLock()
	defer tc.mutex.RUnlock()
	return tc.isOpen && tc.conn != nil
}

// Write writes data to the socket
func (tc *TCPConnection) Write(data []byte) (int, error) {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()

	if !tc.isOpen || tc.conn == nil {
		return 0, ErrNotOpen
	}

	// Set write deadline
	if tc.config.WriteTimeout > 0 {
		tc.conn.SetWriteDeadline(time.Now().Add(tc.config.WriteTimeout))
	}

	startTime := time.Now()
	n, err := tc.conn.Write(data)
	if err != nil {
		tc.stats.ErrorCount++
		tc.logger.Error("TCP write failed", zap.Error(err))
		return n, fmt.Errorf("failed to write to TCP connection: %w", err)
	}

	tc.stats.recordWrite(n, time.Since(startTime))
	tc.logger.Debug("TCP write completed", zap.Int("bytes", n))
	return n, nil
}

// Read drains already received bytes without blocking
func (tc *TCPConnection) Read(b []byte) (int, error) {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()

	if !tc.isOpen || tc.pump == nil {
		return 0, ErrNotOpen
	}

	n, err := tc.pump.read(b)
	if err != nil {
		tc.stats.ErrorCount++
		return n, fmt.Errorf("failed to read from TCP connection: %w", err)
	}
	tc.stats.recordRead(n)
	return n, nil
}

// InWaiting returns the number of received bytes not yet read
func (tc *TCPConnection) InWaiting() (int, error) {
	tc.mutex.RLock()
	defer tc.mutex.RUnlock()

	if !tc.isOpen || tc.pump == nil {
		return 0, ErrNotOpen
	}

	n, err := tc.pump.available()
	if err != nil {
		return 0, fmt.Errorf("failed to read from TCP connection: %w", err)
	}
	return n, nil
}

// ResetInputBuffer discards received bytes
func (tc *TCPConnection) ResetInputBuffer() error {
	tc.mutex.RLock()
	defer tc.mutex.RUnlock()

	if !tc.isOpen || tc.pump == nil {
		return ErrNotOpen
	}
	tc.pump.reset()
	return nil
}

// ResetOutputBuffer is a no-op: socket writes are not queued locally
func (tc *TCPConnection) ResetOutputBuffer() error {
	if !tc.IsOpen() {
		return ErrNotOpen
	}
	return nil
}

// Framing returns the nominal framing
func (tc *TCPConnection) Framing() Framing {
	return tc.config.Framing
}

// GetProtocolType returns the protocol type
func (tc *TCPConnection) GetProtocolType() model.ConnectionType {
	return model.ConnectionTypeTCP
}

// Name returns host:port
func (tc *TCPConnection) Name() string {
	return tc.config.Address()
}

// Ping reports a socket whose reader has failed
func (tc *TCPConnection) Ping(ctx context.Context) error {
	tc.mutex.RLock()
	defer tc.mutex.RUnlock()

	if !tc.isOpen || tc.pump == nil {
		return ErrNotOpen
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if _, err := tc.pump.available(); err != nil {
		return fmt.Errorf("TCP connection failed: %w", err)
	}
	return nil
}

// Stats returns a snapshot of the connection statistics
func (tc *TCPConnection) Stats() ProtocolStats {
	tc.mutex.RLock()
	defer tc.mutex.RUnlock()
	return *tc.stats
}
