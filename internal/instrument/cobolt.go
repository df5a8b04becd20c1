// internal/instrument/cobolt.go
package instrument

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"instrument-service/internal/model"
	"instrument-service/internal/units"
	"instrument-service/pkg/driver"
)

// Cobolt 08-NLD command set
const (
	coboltGetSetpoint = "p?"
	coboltSetSetpoint = "p %s"
	coboltGetPower    = "pa?"
	coboltGetOn       = "l?"
	coboltOn          = "l1"
	coboltOff         = "l0"
	coboltGetFault    = "f?"
	coboltClearFault  = "cf"
	coboltGetLock     = "ilk?"
	coboltAck         = "OK"
)

// CoboltDefaults are the link settings of the 08-NLD when the config leaves
// them out
var CoboltDefaults = map[string]interface{}{
	"baudrate":          115200,
	"write_termination": "\r",
	"read_termination":  "\r\n",
}

// CoboltFault is the fault register of the laser
type CoboltFault int

const (
	CoboltNoFault          CoboltFault = 0
	CoboltTemperatureFault CoboltFault = 1
	CoboltInterlockOpen    CoboltFault = 3
	CoboltConstantPower    CoboltFault = 4
)

// String returns a readable fault description
func (f CoboltFault) String() string {
	switch f {
	case CoboltNoFault:
		return "no fault"
	case CoboltTemperatureFault:
		return "temperature fault"
	case CoboltInterlockOpen:
		return "interlock open"
	case CoboltConstantPower:
		return "constant power time out"
	default:
		return fmt.Sprintf("fault %d", int(f))
	}
}

// CoboltLaser is the Cobolt 08-NLD diode laser. Power is exchanged with the
// device in watts and converted at this layer.
type CoboltLaser struct {
	*Base
	maxPower *units.Quantity
}

// NewCoboltLaser wraps a controller. maxPower may be nil for no limit.
func NewCoboltLaser(name string, controller driver.Controller, converter *units.Converter, maxPower *units.Quantity, logger *zap.Logger) (*CoboltLaser, error) {
	l := &CoboltLaser{Base: NewBase(name, "cobolt08nld", controller, converter, logger)}
	if maxPower != nil {
		w, err := converter.Require(*maxPower, units.Power, "W")
		if err != nil {
			return nil, fmt.Errorf("invalid max power: %w", err)
		}
		l.maxPower = &w
	}
	return l, nil
}

// Capabilities adds the laser capabilities to the controller ones
func (l *CoboltLaser) Capabilities() []model.Capability {
	return append(l.Base.Capabilities(), driver.CapabilitiesOf(l)...)
}

// PowerSetpoint returns the output power setpoint
func (l *CoboltLaser) PowerSetpoint(ctx context.Context) (units.Quantity, error) {
	value, err := l.queryDecimal(ctx, coboltGetSetpoint)
	if err != nil {
		return units.Quantity{}, err
	}
	return units.Quantity{Magnitude: value, Unit: "W"}, nil
}

// SetPowerSetpoint sets the output power. Any power unit is accepted.
func (l *CoboltLaser) SetPowerSetpoint(ctx context.Context, power units.Quantity) error {
	w, err := l.converter.Require(power, units.Power, "W")
	if err != nil {
		return err
	}
	if w.Magnitude.IsNegative() {
		return fmt.Errorf("%w: negative power %s", units.ErrInvalidQuantity, power)
	}
	if l.maxPower != nil && w.Magnitude.GreaterThan(l.maxPower.Magnitude) {
		return fmt.Errorf("%w: %s exceeds maximum %s", units.ErrInvalidQuantity, power, *l.maxPower)
	}

	l.logger.Info("Setting power setpoint", zap.String("power", w.String()))
	return l.command(ctx, fmt.Sprintf(coboltSetSetpoint, w.Magnitude.String()), coboltAck)
}

// Power returns the measured output power
func (l *CoboltLaser) Power(ctx context.Context) (units.Quantity, error) {
	value, err := l.queryDecimal(ctx, coboltGetPower)
	if err != nil {
		return units.Quantity{}, err
	}
	return units.Quantity{Magnitude: value, Unit: "W"}, nil
}

// Enable switches the laser output on or off
func (l *CoboltLaser) Enable(ctx context.Context, on bool) error {
	cmd := coboltOff
	if on {
		cmd = coboltOn
	}
	l.logger.Info("Switching laser", zap.Bool("on", on))
	return l.command(ctx, cmd, coboltAck)
}

// Enabled returns whether the laser output is on
func (l *CoboltLaser) Enabled(ctx context.Context) (bool, error) {
	return l.queryFlag(ctx, coboltGetOn)
}

// Fault reads the fault register
func (l *CoboltLaser) Fault(ctx context.Context) (CoboltFault, error) {
	value, err := l.queryDecimal(ctx, coboltGetFault)
	if err != nil {
		return 0, err
	}
	return CoboltFault(value.IntPart()), nil
}

// FaultStatus reads the fault register in its generic form
func (l *CoboltLaser) FaultStatus(ctx context.Context) (driver.FaultStatus, error) {
	fault, err := l.Fault(ctx)
	if err != nil {
		return driver.FaultStatus{}, err
	}
	return driver.FaultStatus{
		Code:        int(fault),
		Description: fault.String(),
		Active:      fault != CoboltNoFault,
	}, nil
}

// ClearFault resets the fault register
func (l *CoboltLaser) ClearFault(ctx context.Context) error {
	return l.command(ctx, coboltClearFault, coboltAck)
}

// InterlockOpen reports whether the remote interlock is open
func (l *CoboltLaser) InterlockOpen(ctx context.Context) (bool, error) {
	return l.queryFlag(ctx, coboltGetLock)
}

// queryFlag reads a 0/1 answer
func (l *CoboltLaser) queryFlag(ctx context.Context, command string) (bool, error) {
	line, err := l.queryLine(ctx, command)
	if err != nil {
		return false, err
	}
	v, err := strconv.Atoi(line)
	if err != nil || (v != 0 && v != 1) {
		return false, fmt.Errorf("%s: %w: %q", command, ErrUnexpectedResponse, line)
	}
	return v == 1, nil
}

var (
	_ driver.Instrument     = (*CoboltLaser)(nil)
	_ driver.PowerSettable  = (*CoboltLaser)(nil)
	_ driver.PowerReadable  = (*CoboltLaser)(nil)
	_ driver.Switchable     = (*CoboltLaser)(nil)
	_ driver.FaultReporting = (*CoboltLaser)(nil)
)
