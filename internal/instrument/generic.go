// internal/instrument/generic.go
package instrument

import (
	"go.uber.org/zap"

	"instrument-service/internal/units"
	"instrument-service/pkg/driver"
)

// GenericSerial passes commands straight to its controller. It serves
// devices without a unit-aware layer, such as Arduino sketches.
type GenericSerial struct {
	*Base
}

// NewGenericSerial wraps a controller
func NewGenericSerial(name, kind string, controller driver.Controller, converter *units.Converter, logger *zap.Logger) *GenericSerial {
	return &GenericSerial{Base: NewBase(name, kind, controller, converter, logger)}
}

var _ driver.Instrument = (*GenericSerial)(nil)
