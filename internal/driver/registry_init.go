// internal/driver/registry_init.go
package driver

import (
	"fmt"

	"go.uber.org/zap"

	"instrument-service/internal/controller"
	"instrument-service/internal/instrument"
	"instrument-service/internal/model"
	"instrument-service/internal/protocol"
	"instrument-service/internal/units"
	"instrument-service/pkg/driver"
)

// Registered kinds
const (
	KindGenericSerial = "generic_serial"
	KindArduino       = "arduino"
	KindCobolt08NLD   = "cobolt08nld"
)

// RegisterDefaultDrivers registers all built-in instrument kinds
func RegisterDefaultDrivers(registry *Registry, logger *zap.Logger) {
	registerGenericDrivers(registry)
	registerCoboltDrivers(registry)

	logger.Info("Instrument drivers registered",
		zap.Strings("kinds", registry.Kinds()),
	)
}

// registerGenericDrivers registers pass-through line instruments
func registerGenericDrivers(registry *Registry) {
	registry.Register(KindGenericSerial, newGenericSerial)

	// Arduino sketches speak plain lines at the default framing
	registry.Register(KindArduino, newGenericSerial)
}

// registerCoboltDrivers registers Cobolt lasers
func registerCoboltDrivers(registry *Registry) {
	registry.Register(KindCobolt08NLD, newCobolt08NLD)
}

func newGenericSerial(def *model.InstrumentDefinition, deps Dependencies) (driver.Instrument, error) {
	c, err := newController(def, deps, nil)
	if err != nil {
		return nil, err
	}
	return instrument.NewGenericSerial(def.Name, def.Kind, c, deps.Converter, deps.Logger), nil
}

func newCobolt08NLD(def *model.InstrumentDefinition, deps Dependencies) (driver.Instrument, error) {
	config := withDefaults(def.Settings, instrument.CoboltDefaults)

	var maxPower *units.Quantity
	if raw, ok := config["max_power"]; ok {
		q, err := units.ParseQuantity(fmt.Sprint(raw))
		if err != nil {
			return nil, err
		}
		if q.Unit == "" {
			q.Unit = "W"
		}
		maxPower = &q
	}

	sim := instrument.NewCoboltSimulator()
	c, err := newController(&model.InstrumentDefinition{
		Name:           def.Name,
		ConnectionType: def.ConnectionType,
		Settings:       config,
	}, deps, sim.Responder())
	if err != nil {
		return nil, err
	}
	return instrument.NewCoboltLaser(def.Name, c, deps.Converter, maxPower, deps.Logger)
}

// newController parses the settings and builds the controller
func newController(def *model.InstrumentDefinition, deps Dependencies, responder protocol.Responder) (*controller.GenericSerialController, error) {
	config := withDefaults(def.Settings, deps.Defaults)
	config["name"] = def.Name

	settings, err := controller.ParseSettings(config)
	if err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}

	opts := []controller.Option{controller.WithClock(deps.Clock)}
	if responder != nil {
		opts = append(opts, controller.WithResponder(responder))
	}
	return controller.NewGenericSerialController(settings, def.ConnectionType, deps.Logger, opts...)
}

// settingAliases lists alternative spellings accepted by the settings parser
var settingAliases = map[string]string{
	"baudrate":  "baud_rate",
	"data_bits": "bytesize",
	"stop_bits": "stopbits",
}

// withDefaults returns a copy of settings with absent keys taken from defaults
func withDefaults(settings, defaults map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(settings)+len(defaults))
	for k, v := range defaults {
		if alias, ok := settingAliases[k]; ok {
			if _, set := settings[alias]; set {
				continue
			}
		}
		merged[k] = v
	}
	for k, v := range settings {
		merged[k] = v
	}
	return merged
}
