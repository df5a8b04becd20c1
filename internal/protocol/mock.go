// internal/protocol/mock.go
package protocol

import (
	"context"
	"sync"
	"time"

	"instrument-service/internal/model"
	"instrument-service/internal/timeutil"
)

// arrival is a chunk of bytes that becomes readable at a given instant
type arrival struct {
	at   time.Time
	data []byte
}

// MockPort is a scripted Port for tests. Bytes are scheduled to arrive at
// offsets on a clock, usually a timeutil.FakeClock, and become visible to
// InWaiting and Read once the clock has passed their arrival time.
type MockPort struct {
	mutex    sync.Mutex
	clock    timeutil.Clock
	framing  Framing
	arrivals []arrival
	input    []byte
	written  []byte
	calls    []string
	closed   bool

	// OnWrite, when set, is called for every write with the written bytes
	OnWrite func(p *MockPort, data []byte)

	// InWaitingErr and ReadErr are returned by the respective calls when set
	InWaitingErr error
	ReadErr      error
	WriteErr     error
}

// NewMockPort creates a mock port reading time from clock
func NewMockPort(clock timeutil.Clock, framing Framing) *MockPort {
	return &MockPort{
		clock:   clock,
		framing: framing,
	}
}

// Schedule makes data readable after the given delay from now
func (m *MockPort) Schedule(after time.Duration, data []byte) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.scheduleLocked(after, data)
}

func (m *MockPort) scheduleLocked(after time.Duration, data []byte) {
	at := m.clock.Now().Add(after)
	chunk := append([]byte(nil), data...)

	// Keep arrivals ordered by time
	i := len(m.arrivals)
	for i > 0 && m.arrivals[i-1].at.After(at) {
		i--
	}
	m.arrivals = append(m.arrivals, arrival{})
	copy(m.arrivals[i+1:], m.arrivals[i:])
	m.arrivals[i] = arrival{at: at, data: chunk}
}

// deliver moves due arrivals into the input buffer
func (m *MockPort) deliver() {
	now := m.clock.Now()
	n := 0
	for n < len(m.arrivals) && !m.arrivals[n].at.After(now) {
		m.input = append(m.input, m.arrivals[n].data...)
		n++
	}
	m.arrivals = m.arrivals[n:]
}

// Read drains delivered bytes
func (m *MockPort) Read(b []byte) (int, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.closed {
		return 0, ErrNotOpen
	}
	if m.ReadErr != nil {
		return 0, m.ReadErr
	}

	m.deliver()
	n := copy(b, m.input)
	m.input = m.input[n:]
	return n, nil
}

// Write captures data and triggers OnWrite
func (m *MockPort) Write(data []byte) (int, error) {
	m.mutex.Lock()
	m.calls = append(m.calls, "write")
	if m.closed {
		m.mutex.Unlock()
		return 0, ErrNotOpen
	}
	if m.WriteErr != nil {
		m.mutex.Unlock()
		return 0, m.WriteErr
	}
	m.written = append(m.written, data...)
	onWrite := m.OnWrite
	m.mutex.Unlock()

	if onWrite != nil {
		onWrite(m, data)
	}
	return len(data), nil
}

// InWaiting returns the number of delivered, unread bytes
func (m *MockPort) InWaiting() (int, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.closed {
		return 0, ErrNotOpen
	}
	if m.InWaitingErr != nil {
		return 0, m.InWaitingErr
	}

	m.deliver()
	return len(m.input), nil
}

// ResetInputBuffer drops delivered bytes; scheduled arrivals are kept
func (m *MockPort) ResetInputBuffer() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.calls = append(m.calls, "reset_input")
	m.deliver()
	m.input = nil
	return nil
}

// ResetOutputBuffer records the call
func (m *MockPort) ResetOutputBuffer() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.calls = append(m.calls, "reset_output")
	return nil
}

// Open marks the port open. A new MockPort starts open.
func (m *MockPort) Open(ctx context.Context) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.calls = append(m.calls, "open")
	m.closed = false
	return nil
}

// Close marks the port closed
func (m *MockPort) Close() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.calls = append(m.calls, "close")
	m.closed = true
	return nil
}

// IsOpen returns whether the port is open
func (m *MockPort) IsOpen() bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return !m.closed
}

// GetProtocolType reports the mock as serial
func (m *MockPort) GetProtocolType() model.ConnectionType {
	return model.ConnectionTypeSerial
}

// Name returns a fixed port name
func (m *MockPort) Name() string {
	return "mock"
}

// Ping fails once the port is closed
func (m *MockPort) Ping(ctx context.Context) error {
	if !m.IsOpen() {
		return ErrNotOpen
	}
	return nil
}

// Stats returns byte counts of the mock
func (m *MockPort) Stats() ProtocolStats {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return ProtocolStats{
		BytesWritten: int64(len(m.written)),
		IsConnected:  !m.closed,
	}
}

// Framing returns the configured framing
func (m *MockPort) Framing() Framing {
	return m.framing
}

// Written returns everything written so far
func (m *MockPort) Written() []byte {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return append([]byte(nil), m.written...)
}

// Calls returns the sequence of open, close, write and reset calls
func (m *MockPort) Calls() []string {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return append([]string(nil), m.calls...)
}
