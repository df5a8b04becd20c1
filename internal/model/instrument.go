// internal/model/instrument.go
package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// InstrumentStatus represents the current status of an instrument link
type InstrumentStatus string

const (
	InstrumentStatusConnected    InstrumentStatus = "CONNECTED"
	InstrumentStatusDisconnected InstrumentStatus = "DISCONNECTED"
	InstrumentStatusConnecting   InstrumentStatus = "CONNECTING"
	InstrumentStatusError        InstrumentStatus = "ERROR"
)

// ConnectionType represents how the instrument is connected
type ConnectionType string

const (
	ConnectionTypeSerial ConnectionType = "SERIAL"
	ConnectionTypeTCP    ConnectionType = "TCP"
	ConnectionTypeUSB    ConnectionType = "USB"
)

// Capability represents what an instrument can do
type Capability string

const (
	CapabilityWrite     Capability = "WRITE"
	CapabilityRead      Capability = "READ"
	CapabilityQuery     Capability = "QUERY"
	CapabilityIdentify  Capability = "IDENTIFY"
	CapabilityPowerSet  Capability = "POWER_SET"
	CapabilityPowerRead Capability = "POWER_READ"
	CapabilitySwitch    Capability = "SWITCH"
	CapabilityFault     Capability = "FAULT"
)

// JSONObject type for PostgreSQL JSONB objects
type JSONObject map[string]interface{}

func (j *JSONObject) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, j)
}

func (j JSONObject) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// InstrumentDefinition is one entry of the instruments config section
type InstrumentDefinition struct {
	Name           string         `json:"name" mapstructure:"name"`
	Kind           string         `json:"kind" mapstructure:"kind"`
	ConnectionType ConnectionType `json:"connection_type" mapstructure:"connection_type"`
	Description    string         `json:"description,omitempty" mapstructure:"description"`
	Settings       JSONObject     `json:"settings" mapstructure:"settings"`
	AutoConnect    bool           `json:"auto_connect" mapstructure:"auto_connect"`
}

// Port returns the configured port name, or an empty string
func (d *InstrumentDefinition) Port() string {
	if p, ok := d.Settings["port"].(string); ok {
		return p
	}
	return ""
}

// Instrument is the runtime view of a configured instrument
type Instrument struct {
	Name           string           `json:"name"`
	Kind           string           `json:"kind"`
	Description    string           `json:"description,omitempty"`
	ConnectionType ConnectionType   `json:"connection_type"`
	Port           string           `json:"port,omitempty"`
	Dummy          bool             `json:"dummy"`
	Status         InstrumentStatus `json:"status"`
	Capabilities   []Capability     `json:"capabilities"`
	LastActivity   *time.Time       `json:"last_activity,omitempty"`
	LastError      *string          `json:"last_error,omitempty"`
	ExchangeCount  int64            `json:"exchange_count"`
	ErrorCount     int64            `json:"error_count"`
}

// HasCapability checks if the instrument has a specific capability
func (i *Instrument) HasCapability(capability Capability) bool {
	for _, c := range i.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}

// IsConnected checks if the instrument link is open
func (i *Instrument) IsConnected() bool {
	return i.Status == InstrumentStatusConnected
}
