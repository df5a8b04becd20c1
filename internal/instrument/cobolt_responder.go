// internal/instrument/cobolt_responder.go
package instrument

import (
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"instrument-service/internal/protocol"
)

const coboltSyntaxError = "Syntax error: illegal command"

// CoboltSimulator is an in-memory 08-NLD used in dummy mode
type CoboltSimulator struct {
	mutex    sync.Mutex
	on       bool
	setpoint decimal.Decimal
	fault    CoboltFault
	idn      string
}

// NewCoboltSimulator creates a switched-off simulator with a zero setpoint
func NewCoboltSimulator() *CoboltSimulator {
	return &CoboltSimulator{idn: "Cobolt 08-NLD dummy"}
}

// Responder returns the request handler for a dummy port
func (s *CoboltSimulator) Responder() protocol.Responder {
	return s.respond
}

func (s *CoboltSimulator) respond(request string) string {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	cmd := strings.TrimSpace(request)
	switch {
	case cmd == "*IDN?":
		return s.idn
	case cmd == coboltGetSetpoint:
		return s.setpoint.String()
	case cmd == coboltGetPower:
		if !s.on {
			return "0"
		}
		return s.setpoint.String()
	case cmd == coboltGetOn:
		if s.on {
			return "1"
		}
		return "0"
	case cmd == coboltOn:
		s.on = true
		return coboltAck
	case cmd == coboltOff:
		s.on = false
		return coboltAck
	case cmd == coboltGetFault:
		return decimal.NewFromInt(int64(s.fault)).String()
	case cmd == coboltClearFault:
		s.fault = CoboltNoFault
		return coboltAck
	case cmd == coboltGetLock:
		return "0"
	case strings.HasPrefix(cmd, "p "):
		value, err := decimal.NewFromString(strings.TrimSpace(cmd[2:]))
		if err != nil {
			return coboltSyntaxError
		}
		s.setpoint = value
		return coboltAck
	default:
		return coboltSyntaxError
	}
}
