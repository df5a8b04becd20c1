// internal/protocol/factory.go
package protocol

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"instrument-service/internal/model"
)

const (
	defaultWriteTimeout = 100 * time.Millisecond
	defaultDialTimeout  = 5 * time.Second
)

var validBaudRates = []int{300, 600, 1200, 2400, 4800, 9600, 14400, 19200, 38400, 57600, 115200, 230400, 460800, 921600}

// NominalTCPFraming sizes the poll interval of socket and USB links
func NominalTCPFraming() Framing {
	return Framing{BaudRate: 115200, DataBits: 8, StopBits: 1, Parity: ParityNone}
}

// CreatePort creates an unopened connection based on connection type and settings
func CreatePort(connectionType model.ConnectionType, config map[string]interface{}, logger *zap.Logger) (Connection, error) {
	switch connectionType {
	case model.ConnectionTypeSerial, "":
		cfg, err := parseSerialConfig(config)
		if err != nil {
			return nil, err
		}
		logger.Info("Creating serial connection",
			zap.String("port", cfg.Port),
			zap.String("framing", cfg.Framing.String()),
		)
		return NewSerialConnection(cfg, logger), nil
	case model.ConnectionTypeTCP:
		cfg, err := parseTCPConfig(config)
		if err != nil {
			return nil, err
		}
		logger.Info("Creating TCP connection",
			zap.String("address", cfg.Address()),
		)
		return NewTCPConnection(cfg, logger), nil
	case model.ConnectionTypeUSB:
		cfg, err := parseUSBConfig(config)
		if err != nil {
			return nil, err
		}
		logger.Info("Creating USB connection",
			zap.String("vendor_id", cfg.VendorID),
			zap.String("product_id", cfg.ProductID),
		)
		return NewUSBConnection(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unsupported connection type: %s", connectionType)
	}
}

// parseSerialConfig builds a serial configuration from instrument settings
func parseSerialConfig(config map[string]interface{}) (*SerialConfig, error) {
	cfg := &SerialConfig{}

	// Parse port
	port, err := StringValue(config, "port", "")
	if err != nil {
		return nil, err
	}
	if IsUnsetPort(port) {
		return nil, fmt.Errorf("serial port is required")
	}
	cfg.Port = port

	// Parse framing
	if cfg.Framing, err = ParseFraming(config, DefaultFraming()); err != nil {
		return nil, err
	}

	// Parse timeouts
	if cfg.WriteTimeout, err = DurationValue(config, "write_timeout", defaultWriteTimeout); err != nil {
		return nil, err
	}
	if cfg.PumpInterval, err = DurationValue(config, "pump_interval", defaultPumpInterval); err != nil {
		return nil, err
	}

	return cfg, nil
}

// parseTCPConfig builds a socket configuration. The address is either
// host plus a numeric port, or a "host:port" string in port.
func parseTCPConfig(config map[string]interface{}) (*TCPConfig, error) {
	cfg := &TCPConfig{KeepAlive: true}

	host, err := StringValue(config, "host", "")
	if err != nil {
		return nil, err
	}

	if portStr, ok := config["port"].(string); ok && strings.Contains(portStr, ":") {
		h, p, err := net.SplitHostPort(portStr)
		if err != nil {
			return nil, fmt.Errorf("invalid TCP address %q: %w", portStr, err)
		}
		if host == "" {
			host = h
		}
		if cfg.Port, err = strconv.Atoi(p); err != nil {
			return nil, fmt.Errorf("invalid TCP port %q", p)
		}
	} else if cfg.Port, err = IntValue(config, "port", 0); err != nil {
		return nil, err
	}

	if host == "" {
		return nil, fmt.Errorf("TCP host is required")
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port number: %d", cfg.Port)
	}
	cfg.Host = host

	if cfg.Framing, err = ParseFraming(config, NominalTCPFraming()); err != nil {
		return nil, err
	}
	if cfg.KeepAlive, err = BoolValue(config, "keep_alive", true); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = DurationValue(config, "timeout", defaultDialTimeout); err != nil {
		return nil, err
	}
	if cfg.WriteTimeout, err = DurationValue(config, "write_timeout", defaultWriteTimeout); err != nil {
		return nil, err
	}

	return cfg, nil
}

// parseUSBConfig builds a bulk-endpoint configuration
func parseUSBConfig(config map[string]interface{}) (*USBConfig, error) {
	cfg := &USBConfig{}
	var err error

	// Parse vendor and product IDs
	if cfg.VendorID, err = StringValue(config, "vendor_id", ""); err != nil {
		return nil, err
	}
	if _, err := ParseUSBID(cfg.VendorID); err != nil {
		return nil, fmt.Errorf("USB vendor_id is required: %w", err)
	}
	if cfg.ProductID, err = StringValue(config, "product_id", ""); err != nil {
		return nil, err
	}
	if _, err := ParseUSBID(cfg.ProductID); err != nil {
		return nil, fmt.Errorf("USB product_id is required: %w", err)
	}

	if cfg.SerialNumber, err = StringValue(config, "serial_number", ""); err != nil {
		return nil, err
	}
	if cfg.InEndpoint, err = IntValue(config, "in_endpoint", 1); err != nil {
		return nil, err
	}
	if cfg.OutEndpoint, err = IntValue(config, "out_endpoint", 1); err != nil {
		return nil, err
	}
	if cfg.Framing, err = ParseFraming(config, NominalTCPFraming()); err != nil {
		return nil, err
	}
	if cfg.WriteTimeout, err = DurationValue(config, "write_timeout", defaultWriteTimeout); err != nil {
		return nil, err
	}

	return cfg, nil
}

// IsUnsetPort reports the placeholder values used for "no port configured"
func IsUnsetPort(port string) bool {
	switch strings.ToLower(strings.TrimSpace(port)) {
	case "", "none", "null":
		return true
	}
	return false
}

// ValidateConfig validates settings for a specific connection type
func ValidateConfig(connectionType model.ConnectionType, config map[string]interface{}) error {
	switch connectionType {
	case model.ConnectionTypeSerial, "":
		cfg, err := parseSerialConfig(config)
		if err != nil {
			return err
		}
		return validateBaudRate(cfg.Framing.BaudRate)
	case model.ConnectionTypeTCP:
		_, err := parseTCPConfig(config)
		return err
	case model.ConnectionTypeUSB:
		_, err := parseUSBConfig(config)
		return err
	default:
		return fmt.Errorf("unsupported connection type: %s", connectionType)
	}
}

// validateBaudRate rejects rates no common UART supports
func validateBaudRate(rate int) error {
	for _, validRate := range validBaudRates {
		if rate == validRate {
			return nil
		}
	}
	return fmt.Errorf("invalid baud rate: %d", rate)
}
