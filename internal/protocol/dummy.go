// internal/protocol/dummy.go
package protocol

import (
	"bytes"
	"context"
	"sync"
	"time"

	"instrument-service/internal/model"
)

// Responder answers one request line. An empty answer sends nothing back.
type Responder func(request string) string

// DefaultDummyAnswer is returned by the default responder
const DefaultDummyAnswer = "A general dummy answer"

// EchoResponder answers every request with the same fixed text
func EchoResponder(answer string) Responder {
	return func(string) string {
		return answer
	}
}

// DummyPort simulates an instrument in memory. Every line written to it is
// passed to the responder and the answer is queued as received bytes.
type DummyPort struct {
	name       string
	framing    Framing
	responder  Responder
	terminator string

	mutex   sync.Mutex
	isOpen  bool
	pending []byte
	input   []byte
	stats   ProtocolStats
}

// NewDummyPort creates a dummy link. readTermination is appended to answers.
func NewDummyPort(name string, framing Framing, responder Responder, readTermination string) *DummyPort {
	if responder == nil {
		responder = EchoResponder(DefaultDummyAnswer)
	}
	if readTermination == "" {
		readTermination = "\n"
	}
	return &DummyPort{
		name:       name,
		framing:    framing,
		responder:  responder,
		terminator: readTermination,
	}
}

// Open marks the link open
func (d *DummyPort) Open(ctx context.Context) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.isOpen = true
	d.stats.IsConnected = true
	d.stats.LastActivity = time.Now()
	return nil
}

// Close marks the link closed and drops buffered data
func (d *DummyPort) Close() error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.isOpen = false
	d.pending = nil
	d.input = nil
	d.stats.IsConnected = false
	return nil
}

// IsOpen returns whether the link is open
func (d *DummyPort) IsOpen() bool {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.isOpen
}

// Write collects bytes and answers each complete line
func (d *DummyPort) Write(data []byte) (int, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if !d.isOpen {
		return 0, ErrNotOpen
	}

	d.pending = append(d.pending, data...)
	for {
		idx := bytes.IndexAny(d.pending, "\r\n")
		if idx < 0 {
			break
		}
		line := string(d.pending[:idx])
		d.pending = d.pending[idx+1:]
		if line == "" {
			continue
		}
		if answer := d.responder(line); answer != "" {
			d.input = append(d.input, answer...)
			d.input = append(d.input, d.terminator...)
		}
	}

	d.stats.recordWrite(len(data), 0)
	return len(data), nil
}

// Read drains queued answer bytes
func (d *DummyPort) Read(b []byte) (int, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if !d.isOpen {
		return 0, ErrNotOpen
	}

	n := copy(b, d.input)
	d.input = d.input[n:]
	d.stats.recordRead(n)
	return n, nil
}

// InWaiting returns the number of queued answer bytes
func (d *DummyPort) InWaiting() (int, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if !d.isOpen {
		return 0, ErrNotOpen
	}
	return len(d.input), nil
}

// ResetInputBuffer drops queued answers
func (d *DummyPort) ResetInputBuffer() error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.input = nil
	return nil
}

// ResetOutputBuffer drops a partially written line
func (d *DummyPort) ResetOutputBuffer() error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.pending = nil
	return nil
}

// Framing returns the simulated framing
func (d *DummyPort) Framing() Framing {
	return d.framing
}

// GetProtocolType reports the simulated link as serial
func (d *DummyPort) GetProtocolType() model.ConnectionType {
	return model.ConnectionTypeSerial
}

// Name returns the simulated port name
func (d *DummyPort) Name() string {
	return d.name
}

// Ping succeeds while the link is open
func (d *DummyPort) Ping(ctx context.Context) error {
	if !d.IsOpen() {
		return ErrNotOpen
	}
	return nil
}

// Stats returns a snapshot of the link statistics
func (d *DummyPort) Stats() ProtocolStats {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.stats
}
