// internal/protocol/pump.go
package protocol

import (
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
)

const pumpChunkSize = 4096

// inputPump moves bytes from a blocking reader into a locked buffer so the
// number of pending bytes can be observed without consuming them.
type inputPump struct {
	src    io.Reader
	logger *zap.Logger

	mutex    sync.Mutex
	buf      []byte
	err      error
	stopping bool

	done chan struct{}
}

// newInputPump creates a pump over src. Call start to begin reading.
func newInputPump(src io.Reader, logger *zap.Logger) *inputPump {
	return &inputPump{
		src:    src,
		logger: logger,
		done:   make(chan struct{}),
	}
}

// start launches the background reader
func (p *inputPump) start() {
	go p.run()
}

func (p *inputPump) run() {
	defer close(p.done)

	chunk := make([]byte, pumpChunkSize)
	for {
		n, err := p.src.Read(chunk)

		p.mutex.Lock()
		if n > 0 {
			p.buf = append(p.buf, chunk[:n]...)
		}
		if p.stopping {
			p.mutex.Unlock()
			return
		}
		if err != nil {
			p.err = err
			p.mutex.Unlock()
			p.logger.Warn("Input pump stopped", zap.Error(err))
			return
		}
		p.mutex.Unlock()
	}
}

// available returns the number of buffered bytes. The reader error is
// reported only once the buffer has been drained.
func (p *inputPump) available() (int, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if len(p.buf) > 0 {
		return len(p.buf), nil
	}
	return 0, p.err
}

// read drains up to len(b) buffered bytes without blocking
func (p *inputPump) read(b []byte) (int, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if len(p.buf) == 0 {
		return 0, p.err
	}

	n := copy(b, p.buf)
	p.buf = p.buf[n:]
	if len(p.buf) == 0 {
		p.buf = nil
	}
	return n, nil
}

// reset discards buffered bytes
func (p *inputPump) reset() {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.buf = nil
}

// stop marks the pump as stopping. The owner must then close the underlying
// handle so the blocked read returns, and may wait for the goroutine to exit.
func (p *inputPump) stop() {
	p.mutex.Lock()
	p.stopping = true
	p.mutex.Unlock()
}

// wait blocks until the background reader has exited or the timeout elapsed
func (p *inputPump) wait(timeout time.Duration) bool {
	select {
	case <-p.done:
		return true
	case <-time.After(timeout):
		return false
	}
}
