// pkg/driver/interfaces.go
package driver

import (
	"context"

	"instrument-service/internal/model"
	"instrument-service/internal/protocol"
	"instrument-service/internal/units"
)

// Capabilities are small interfaces composed per device instead of a class
// hierarchy. Callers type-assert for what they need.

// Openable is anything holding a link that must be opened before use
type Openable interface {
	Initialize(ctx context.Context) error
	Finalize() error
	IsInitialized() bool
}

// Writable sends a command line to the device
type Writable interface {
	Write(ctx context.Context, message string) error
}

// Readable collects whatever the device sends
type Readable interface {
	ReadBuffer(ctx context.Context, waitForTermination bool) (*Response, error)
	ReadLines(ctx context.Context, strip bool) (*Response, error)
}

// Queryable writes a command and reads the answer lines
type Queryable interface {
	Query(ctx context.Context, message string) (*Response, error)
}

// Controller is the lowest layer, issuing raw commands to one device
type Controller interface {
	Openable
	Writable
	Readable
	Queryable

	Idn(ctx context.Context) (*Response, error)
	Ping(ctx context.Context) error
	Info() ControllerInfo
	Stats() protocol.ProtocolStats
}

// Instrument is the unit-aware layer on top of a controller
type Instrument interface {
	Openable

	Name() string
	Kind() string
	Controller() Controller
	Capabilities() []model.Capability
}

// PowerSettable instruments accept an output power setpoint
type PowerSettable interface {
	PowerSetpoint(ctx context.Context) (units.Quantity, error)
	SetPowerSetpoint(ctx context.Context, power units.Quantity) error
}

// PowerReadable instruments report their measured output power
type PowerReadable interface {
	Power(ctx context.Context) (units.Quantity, error)
}

// Switchable instruments can be turned on and off
type Switchable interface {
	Enable(ctx context.Context, on bool) error
	Enabled(ctx context.Context) (bool, error)
}

// FaultReporting instruments expose a fault register and an interlock
type FaultReporting interface {
	FaultStatus(ctx context.Context) (FaultStatus, error)
	ClearFault(ctx context.Context) error
	InterlockOpen(ctx context.Context) (bool, error)
}

// CapabilitiesOf derives the capability list from the interfaces i implements
func CapabilitiesOf(i interface{}) []model.Capability {
	var caps []model.Capability
	if _, ok := i.(Writable); ok {
		caps = append(caps, model.CapabilityWrite)
	}
	if _, ok := i.(Readable); ok {
		caps = append(caps, model.CapabilityRead)
	}
	if _, ok := i.(Queryable); ok {
		caps = append(caps, model.CapabilityQuery, model.CapabilityIdentify)
	}
	if _, ok := i.(PowerSettable); ok {
		caps = append(caps, model.CapabilityPowerSet)
	}
	if _, ok := i.(PowerReadable); ok {
		caps = append(caps, model.CapabilityPowerRead)
	}
	if _, ok := i.(Switchable); ok {
		caps = append(caps, model.CapabilitySwitch)
	}
	if _, ok := i.(FaultReporting); ok {
		caps = append(caps, model.CapabilityFault)
	}
	return caps
}
