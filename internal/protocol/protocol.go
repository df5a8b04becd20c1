// internal/protocol/protocol.go
package protocol

import (
	"context"
	"io"
	"time"

	"instrument-service/internal/model"
)

// Port is a half-duplex byte channel to an instrument. Read never blocks:
// it returns whatever has already arrived, possibly nothing.
type Port interface {
	io.ReadWriteCloser

	// InWaiting returns the number of received bytes not yet read
	InWaiting() (int, error)

	// ResetInputBuffer discards received bytes not yet read
	ResetInputBuffer() error

	// ResetOutputBuffer discards bytes queued for transmission
	ResetOutputBuffer() error

	// Framing returns the character framing of the link
	Framing() Framing
}

// Connection is a Port with a lifecycle
type Connection interface {
	Port

	// Connection lifecycle
	Open(ctx context.Context) error
	IsOpen() bool

	// Protocol information
	GetProtocolType() model.ConnectionType
	Name() string

	// Health and diagnostics
	Ping(ctx context.Context) error
	Stats() ProtocolStats
}

// ProtocolStats provides protocol-level statistics
type ProtocolStats struct {
	BytesWritten   int64         `json:"bytes_written"`
	BytesRead      int64         `json:"bytes_read"`
	OperationCount int64         `json:"operation_count"`
	ErrorCount     int64         `json:"error_count"`
	LastActivity   time.Time     `json:"last_activity"`
	AverageLatency time.Duration `json:"average_latency"`
	IsConnected    bool          `json:"is_connected"`
}

// recordWrite updates the statistics after a write
func (s *ProtocolStats) recordWrite(n int, latency time.Duration) {
	s.BytesWritten += int64(n)
	s.OperationCount++
	s.LastActivity = time.Now()
	if s.AverageLatency == 0 {
		s.AverageLatency = latency
	} else {
		s.AverageLatency = (s.AverageLatency + latency) / 2
	}
}

// recordRead updates the statistics after a read
func (s *ProtocolStats) recordRead(n int) {
	if n == 0 {
		return
	}
	s.BytesRead += int64(n)
	s.LastActivity = time.Now()
}
