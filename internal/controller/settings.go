// internal/controller/settings.go
package controller

import (
	"fmt"
	"strings"
	"time"

	"instrument-service/internal/protocol"
)

// Default settings of a serial controller
const (
	DefaultName             = "Serial Device"
	DefaultWriteTermination = "\n"
	DefaultReadTermination  = "\n"
	DefaultReadTimeout      = 100 * time.Millisecond
	DefaultWriteTimeout     = 100 * time.Millisecond
	DefaultEncoding         = "ascii"
)

var escapeReplacer = strings.NewReplacer(`\r`, "\r", `\n`, "\n", `\t`, "\t")

// Settings is the parsed form of an instrument's flat settings map
type Settings struct {
	Name             string                 `json:"name"`
	Port             string                 `json:"port"`
	Framing          protocol.Framing       `json:"framing"`
	WriteTermination string                 `json:"write_termination"`
	ReadTermination  string                 `json:"read_termination"`
	ReadTimeout      time.Duration          `json:"read_timeout"`
	WriteTimeout     time.Duration          `json:"write_timeout"`
	Encoding         string                 `json:"encoding"`
	Dummy            bool                   `json:"dummy"`
	Raw              map[string]interface{} `json:"-"`
}

// DefaultSettings returns the settings used for absent keys
func DefaultSettings() *Settings {
	return &Settings{
		Name:             DefaultName,
		Framing:          protocol.DefaultFraming(),
		WriteTermination: DefaultWriteTermination,
		ReadTermination:  DefaultReadTermination,
		ReadTimeout:      DefaultReadTimeout,
		WriteTimeout:     DefaultWriteTimeout,
		Encoding:         DefaultEncoding,
		Raw:              map[string]interface{}{},
	}
}

// ParseSettings interprets a flat key-value map, applying defaults for
// absent keys. Terminators may be given with literal escapes such as "\r\n".
func ParseSettings(config map[string]interface{}) (*Settings, error) {
	s := DefaultSettings()
	if config == nil {
		return s, nil
	}
	s.Raw = config

	var err error

	// Parse identity
	if s.Name, err = protocol.StringValue(config, "name", DefaultName); err != nil {
		return nil, err
	}
	port, err := protocol.StringValue(config, "port", "")
	if err != nil {
		return nil, err
	}
	if !protocol.IsUnsetPort(port) {
		s.Port = port
	}

	// Parse framing
	if s.Framing, err = protocol.ParseFraming(config, protocol.DefaultFraming()); err != nil {
		return nil, err
	}

	// Parse terminators
	if s.WriteTermination, err = protocol.StringValue(config, "write_termination", DefaultWriteTermination); err != nil {
		return nil, err
	}
	s.WriteTermination = escapeReplacer.Replace(s.WriteTermination)
	if s.ReadTermination, err = protocol.StringValue(config, "read_termination", DefaultReadTermination); err != nil {
		return nil, err
	}
	s.ReadTermination = escapeReplacer.Replace(s.ReadTermination)

	// Parse timeouts
	if s.ReadTimeout, err = protocol.DurationValue(config, "read_timeout", DefaultReadTimeout); err != nil {
		return nil, err
	}
	if s.WriteTimeout, err = protocol.DurationValue(config, "write_timeout", DefaultWriteTimeout); err != nil {
		return nil, err
	}

	// Parse encoding
	if s.Encoding, err = protocol.StringValue(config, "encoding", DefaultEncoding); err != nil {
		return nil, err
	}
	if _, err := NewCodec(s.Encoding); err != nil {
		return nil, err
	}

	if s.Dummy, err = protocol.BoolValue(config, "dummy", false); err != nil {
		return nil, err
	}

	return s, nil
}

// Validate checks that a real link can be opened with these settings
func (s *Settings) Validate() error {
	if s.Dummy {
		return nil
	}
	if s.Port == "" && s.Raw["host"] == nil && s.Raw["vendor_id"] == nil {
		return fmt.Errorf("port is required unless dummy is set")
	}
	return nil
}
