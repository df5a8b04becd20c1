// internal/controller/reader.go
package controller

import (
	"bytes"
	"context"
	"time"

	"instrument-service/internal/protocol"
	"instrument-service/internal/timeutil"
	"instrument-service/pkg/driver"
)

const (
	// pollByteTimes is the poll interval in byte-times
	pollByteTimes = 20

	// extendByteTimes is how far the deadline moves when the input grows:
	// long enough for one more 32-byte hardware chunk
	extendByteTimes = 32
)

// ReadOptions controls one adaptive read
type ReadOptions struct {
	// Timeout is the initial window, measured from the start of the read
	Timeout time.Duration

	// WaitForTermination keeps reading until the last byte is a terminator
	WaitForTermination bool

	// Terminators are the byte sequences that end a response. Defaults to \n and \r.
	Terminators [][]byte
}

var defaultTerminators = [][]byte{[]byte("\n"), []byte("\r")}

// ReadBuffer collects everything the device sends until the response is
// terminated or the deadline passes.
//
// The pending-byte count is polled every 20 byte-times. Whenever it exceeds
// the highest count seen so far, the deadline is moved to at least 32
// byte-times from now. Every poll drains the pending bytes. The first poll
// always happens, even with a zero timeout.
//
// Expiry is not an error: the response carries what arrived and Expired is
// set. Port errors are returned as-is together with the bytes read so far.
// A cancelled context ends the read with ctx.Err().
func ReadBuffer(ctx context.Context, port protocol.Port, clock timeutil.Clock, opts ReadOptions) (*driver.Response, error) {
	terminators := opts.Terminators
	if len(terminators) == 0 {
		terminators = defaultTerminators
	}

	byteTime := port.Framing().ByteTime()
	pollInterval := pollByteTimes * byteTime
	extension := extendByteTimes * byteTime

	start := clock.Now()
	deadline := start.Add(opts.Timeout)
	resp := &driver.Response{}
	observed := 0

	finish := func() *driver.Response {
		resp.Terminated = endsWithAny(resp.Raw, terminators)
		resp.Elapsed = clock.Since(start)
		return resp
	}

	for {
		if err := ctx.Err(); err != nil {
			return finish(), err
		}

		clock.Sleep(pollInterval)
		resp.Polls++

		pending, err := port.InWaiting()
		if err != nil {
			return finish(), err
		}

		if pending > observed {
			if extended := clock.Now().Add(extension); extended.After(deadline) {
				deadline = extended
				resp.Extensions++
			}
			observed = pending
		}

		if pending > 0 {
			buf := make([]byte, pending)
			n, err := port.Read(buf)
			resp.Raw = append(resp.Raw, buf[:n]...)
			if err != nil {
				return finish(), err
			}
		}

		if !opts.WaitForTermination || endsWithAny(resp.Raw, terminators) {
			return finish(), nil
		}

		if !clock.Now().Before(deadline) {
			resp.Expired = true
			return finish(), nil
		}
	}
}

// endsWithAny reports whether b ends with one of the terminators
func endsWithAny(b []byte, terminators [][]byte) bool {
	if len(b) == 0 {
		return false
	}
	for _, t := range terminators {
		if len(t) > 0 && bytes.HasSuffix(b, t) {
			return true
		}
	}
	return false
}
