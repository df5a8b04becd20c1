// internal/protocol/connection.go
package protocol

import (
	"fmt"
	"strings"
	"time"

	"go.bug.st/serial"
)

// Parity represents the parity mode of a serial link
type Parity string

const (
	ParityNone  Parity = "none"
	ParityEven  Parity = "even"
	ParityOdd   Parity = "odd"
	ParityMark  Parity = "mark"
	ParitySpace Parity = "space"
)

// Framing describes how one character is put on the wire
type Framing struct {
	BaudRate int     `json:"baud_rate"`
	DataBits int     `json:"data_bits"`
	StopBits float64 `json:"stop_bits"`
	Parity   Parity  `json:"parity"`
}

// DefaultFraming is 9600 8N1
func DefaultFraming() Framing {
	return Framing{BaudRate: 9600, DataBits: 8, StopBits: 1, Parity: ParityNone}
}

// ParityBits returns 0 without parity and 1 otherwise
func (f Framing) ParityBits() int {
	if f.Parity == ParityNone || f.Parity == "" {
		return 0
	}
	return 1
}

// BitsPerCharacter counts the start bit, data bits, stop bits and parity bit
func (f Framing) BitsPerCharacter() float64 {
	return 1 + float64(f.DataBits) + f.StopBits + float64(f.ParityBits())
}

// ByteTime returns the time one character occupies on the wire
func (f Framing) ByteTime() time.Duration {
	if f.BaudRate <= 0 {
		return 0
	}
	return time.Duration(f.BitsPerCharacter() / float64(f.BaudRate) * float64(time.Second))
}

// Validate checks the framing against what UARTs support
func (f Framing) Validate() error {
	if f.BaudRate <= 0 {
		return fmt.Errorf("invalid baud rate: %d", f.BaudRate)
	}
	if f.DataBits < 5 || f.DataBits > 8 {
		return fmt.Errorf("invalid data bits: %d", f.DataBits)
	}
	switch f.StopBits {
	case 1, 1.5, 2:
	default:
		return fmt.Errorf("invalid stop bits: %v", f.StopBits)
	}
	switch f.Parity {
	case ParityNone, ParityEven, ParityOdd, ParityMark, ParitySpace:
	default:
		return fmt.Errorf("invalid parity: %q", f.Parity)
	}
	return nil
}

// String renders the framing as e.g. 9600 8N1
func (f Framing) String() string {
	parity := "N"
	if f.Parity != ParityNone && f.Parity != "" {
		parity = strings.ToUpper(string(f.Parity[:1]))
	}
	return fmt.Sprintf("%d %d%s%v", f.BaudRate, f.DataBits, parity, f.StopBits)
}

// Mode converts the framing into a go.bug.st/serial mode
func (f Framing) Mode() (*serial.Mode, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	mode := &serial.Mode{
		BaudRate: f.BaudRate,
		DataBits: f.DataBits,
	}

	// Set stop bits
	switch f.StopBits {
	case 1.5:
		mode.StopBits = serial.OnePointFiveStopBits
	case 2:
		mode.StopBits = serial.TwoStopBits
	default:
		mode.StopBits = serial.OneStopBit
	}

	// Set parity
	switch f.Parity {
	case ParityOdd:
		mode.Parity = serial.OddParity
	case ParityEven:
		mode.Parity = serial.EvenParity
	case ParityMark:
		mode.Parity = serial.MarkParity
	case ParitySpace:
		mode.Parity = serial.SpaceParity
	default:
		mode.Parity = serial.NoParity
	}

	return mode, nil
}

// SerialConfig represents serial connection configuration
type SerialConfig struct {
	Port         string        `json:"port"`
	Framing      Framing       `json:"framing"`
	WriteTimeout time.Duration `json:"write_timeout"`
	// PumpInterval bounds how long the background reader blocks in the OS
	PumpInterval time.Duration `json:"pump_interval"`
}

// TCPConfig represents raw socket configuration for LAN instruments
type TCPConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	Framing      Framing       `json:"framing"`
	KeepAlive    bool          `json:"keep_alive"`
	Timeout      time.Duration `json:"timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

// Address returns host:port
func (c *TCPConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
