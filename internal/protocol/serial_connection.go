// internal/protocol/serial_connection.go
package protocol

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"

	"instrument-service/internal/model"
)

const defaultPumpInterval = 10 * time.Millisecond

// ErrNotOpen is returned when a closed connection is used
var ErrNotOpen = errors.New("connection not open")

// ErrWriteTimeout is returned when a write does not finish within the write timeout
var ErrWriteTimeout = errors.New("write timeout")

// SerialConnection implements Connection for serial ports
type SerialConnection struct {
	config *SerialConfig
	port   serial.Port
	pump   *inputPump
	logger *zap.Logger
	mutex  sync.RWMutex
	isOpen bool
	stats  *ProtocolStats
}

// NewSerialConnection creates a new serial connection
func NewSerialConnection(config *SerialConfig, logger *zap.Logger) *SerialConnection {
	return &SerialConnection{
		config: config,
		logger: logger.With(
			zap.String("protocol", "serial"),
			zap.String("port", config.Port),
		),
		stats: &ProtocolStats{
			IsConnected: false,
		},
	}
}

// Open opens the serial port and starts the input pump
func (sc *SerialConnection) Open(ctx context.Context) error {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()

	if sc.isOpen {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	sc.logger.Info("Opening serial port",
		zap.String("port", sc.config.Port),
		zap.String("framing", sc.config.Framing.String()),
	)

	mode, err := sc.config.Framing.Mode()
	if err != nil {
		return fmt.Errorf("invalid serial framing: %w", err)
	}

	port, err := serial.Open(sc.config.Port, mode)
	if err != nil {
		sc.logger.Error("Failed to open serial port", zap.Error(err))
		return fmt.Errorf("failed to open serial port %s: %w", sc.config.Port, err)
	}

	// The pump polls the OS handle with a short timeout so it can be stopped
	interval := sc.config.PumpInterval
	if interval <= 0 {
		interval = defaultPumpInterval
	}
	if err := port.SetReadTimeout(interval); err != nil {
		port.Close()
		return fmt.Errorf("failed to set read timeout: %w", err)
	}

	sc.port = port
	sc.pump = newInputPump(port, sc.logger)
	sc.pump.start()
	sc.isOpen = true
	sc.stats.IsConnected = true
	sc.stats.LastActivity = time.Now()

	sc.logger.Info("Serial port opened successfully")
	return nil
}

// Close stops the pump and closes the serial port
func (sc *SerialConnection) Close() error {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()

	if !sc.isOpen || sc.port == nil {
		return nil
	}

	sc.pump.stop()
	err := sc.port.Close()
	if !sc.pump.wait(time.Second) {
		sc.logger.Warn("Input pump did not exit after close")
	}

	sc.port = nil
	sc.pump = nil
	sc.isOpen = false
	sc.stats.IsConnected = false

	if err != nil {
		sc.logger.Error("Failed to close serial port", zap.Error(err))
		return fmt.Errorf("failed to close serial port: %w", err)
	}

	sc.logger.Info("Serial port closed successfully")
	return nil
}

// IsOpen returns whether the connection is open
func (sc *SerialConnection) IsOpen() bool {
	sc.mutex.RLock()
	defer sc.mutex.RUnlock()
	return sc.isOpen && sc.port != nil
}

// Write writes data to the serial port, bounded by the write timeout
func (sc *SerialConnection) Write(data []byte) (int, error) {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()

	if !sc.isOpen || sc.port == nil {
		return 0, ErrNotOpen
	}

	startTime := time.Now()
	n, err := writeWithTimeout(sc.port, data, sc.config.WriteTimeout)
	if err != nil {
		sc.stats.ErrorCount++
		sc.logger.Error("Serial write failed", zap.Error(err))
		return n, fmt.Errorf("failed to write to serial port: %w", err)
	}

	sc.stats.recordWrite(n, time.Since(startTime))
	sc.logger.Debug("Serial write completed", zap.Int("bytes", n))
	return n, nil
}

// Read drains already received bytes without blocking
func (sc *SerialConnection) Read(b []byte) (int, error) {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()

	if !sc.isOpen || sc.pump == nil {
		return 0, ErrNotOpen
	}

	n, err := sc.pump.read(b)
	if err != nil {
		sc.stats.ErrorCount++
		return n, fmt.Errorf("failed to read from serial port: %w", err)
	}
	sc.stats.recordRead(n)
	return n, nil
}

// InWaiting returns the number of received bytes not yet read
func (sc *SerialConnection) InWaiting() (int, error) {
	sc.mutex.RLock()
	defer sc.mutex.RUnlock()

	if !sc.isOpen || sc.pump == nil {
		return 0, ErrNotOpen
	}

	n, err := sc.pump.available()
	if err != nil {
		return 0, fmt.Errorf("failed to read from serial port: %w", err)
	}
	return n, nil
}

// ResetInputBuffer discards bytes in the OS buffer and in the pump
func (sc *SerialConnection) ResetInputBuffer() error {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()

	if !sc.isOpen || sc.port == nil {
		return ErrNotOpen
	}

	if err := sc.port.ResetInputBuffer(); err != nil {
		return fmt.Errorf("failed to reset input buffer: %w", err)
	}
	sc.pump.reset()
	return nil
}

// ResetOutputBuffer discards bytes queued for transmission
func (sc *SerialConnection) ResetOutputBuffer() error {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()

	if !sc.isOpen || sc.port == nil {
		return ErrNotOpen
	}

	if err := sc.port.ResetOutputBuffer(); err != nil {
		return fmt.Errorf("failed to reset output buffer: %w", err)
	}
	return nil
}

// Framing returns the configured framing
func (sc *SerialConnection) Framing() Framing {
	return sc.config.Framing
}

// GetProtocolType returns the protocol type
func (sc *SerialConnection) GetProtocolType() model.ConnectionType {
	return model.ConnectionTypeSerial
}

// Name returns the port name
func (sc *SerialConnection) Name() string {
	return sc.config.Port
}

// Ping checks that the port still answers modem status requests
func (sc *SerialConnection) Ping(ctx context.Context) error {
	sc.mutex.RLock()
	defer sc.mutex.RUnlock()

	if !sc.isOpen || sc.port == nil {
		return ErrNotOpen
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if _, err := sc.port.GetModemStatusBits(); err != nil {
		return fmt.Errorf("serial port not responding: %w", err)
	}
	if _, err := sc.pump.available(); err != nil {
		return fmt.Errorf("serial input failed: %w", err)
	}
	return nil
}

// Stats returns a snapshot of the connection statistics
func (sc *SerialConnection) Stats() ProtocolStats {
	sc.mutex.RLock()
	defer sc.mutex.RUnlock()
	return *sc.stats
}

type writeResult struct {
	n   int
	err error
}

// writeWithTimeout runs a blocking write and gives up after timeout.
// A zero timeout waits indefinitely.
func writeWithTimeout(w io.Writer, data []byte, timeout time.Duration) (int, error) {
	if timeout <= 0 {
		return w.Write(data)
	}

	done := make(chan writeResult, 1)
	go func() {
		n, err := w.Write(data)
		done <- writeResult{n: n, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case result := <-done:
		return result.n, result.err
	case <-timer.C:
		return 0, ErrWriteTimeout
	}
}
