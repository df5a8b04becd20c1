// internal/discovery/serial/scanner.go
package serial

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.bug.st/serial/enumerator"
	"go.uber.org/zap"

	"instrument-service/internal/controller"
	"instrument-service/internal/discovery"
	"instrument-service/internal/model"
	"instrument-service/pkg/devicetypes"
)

// Scanner lists the serial ports of the host
type Scanner struct {
	logger    *zap.Logger
	config    *Config
	enumerate func() ([]*enumerator.PortDetails, error)
	probe     func(ctx context.Context, port string, baudRate int) (string, error)
}

// Config for serial scanner
type Config struct {
	ScanTimeout  time.Duration `json:"scan_timeout"`
	PortPatterns []string      `json:"port_patterns"`
	USBOnly      bool          `json:"usb_only"`
	Probe        bool          `json:"probe"`
	ProbeBaud    int           `json:"probe_baud"`
	ProbeTimeout time.Duration `json:"probe_timeout"`
}

// DefaultConfig lists every port without probing
func DefaultConfig() *Config {
	return &Config{
		ScanTimeout:  time.Duration(devicetypes.DefaultTimeouts["SERIAL_SCAN"]) * time.Second,
		ProbeBaud:    9600,
		ProbeTimeout: 500 * time.Millisecond,
	}
}

// NewScanner creates a new serial scanner
func NewScanner(logger *zap.Logger, config *Config) *Scanner {
	if config == nil {
		config = DefaultConfig()
	}

	s := &Scanner{
		logger:    logger.With(zap.String("scanner", "serial")),
		config:    config,
		enumerate: enumerator.GetDetailedPortsList,
	}
	s.probe = s.probeIdn
	return s
}

// GetScannerType returns scanner type
func (s *Scanner) GetScannerType() string {
	return "serial"
}

// IsAvailable reports true: port enumeration works on every supported OS
func (s *Scanner) IsAvailable() bool {
	return true
}

// Scan lists serial ports, identifying USB adapters by VID/PID and, when
// probing is enabled, asking each port for *IDN?
func (s *Scanner) Scan(ctx context.Context) ([]*discovery.DiscoveredPort, error) {
	s.logger.Info("Starting serial port scan")

	ports, err := s.enumerate()
	if err != nil {
		return nil, fmt.Errorf("failed to get serial ports: %w", err)
	}

	scanCtx := ctx
	if s.config.ScanTimeout > 0 {
		var cancel context.CancelFunc
		scanCtx, cancel = context.WithTimeout(ctx, s.config.ScanTimeout)
		defer cancel()
	}

	discovered := make([]*discovery.DiscoveredPort, 0, len(ports))
	for _, details := range ports {
		if !s.matches(details) {
			continue
		}

		select {
		case <-scanCtx.Done():
			return discovered, scanCtx.Err()
		default:
		}

		port := s.describe(details)
		if s.config.Probe {
			s.identify(scanCtx, port)
		}
		discovered = append(discovered, port)
	}

	s.logger.Info("Serial scan completed", zap.Int("ports_found", len(discovered)))
	return discovered, nil
}

// matches applies the USB-only and name pattern filters
func (s *Scanner) matches(details *enumerator.PortDetails) bool {
	if s.config.USBOnly && !details.IsUSB {
		return false
	}
	if len(s.config.PortPatterns) == 0 {
		return true
	}
	for _, pattern := range s.config.PortPatterns {
		if ok, _ := filepath.Match(pattern, details.Name); ok {
			return true
		}
	}
	return false
}

// describe turns enumerator details into a discovered port
func (s *Scanner) describe(details *enumerator.PortDetails) *discovery.DiscoveredPort {
	port := &discovery.DiscoveredPort{
		ConnectionType: model.ConnectionTypeSerial,
		Port:           details.Name,
		Settings:       map[string]interface{}{"port": details.Name},
		SuggestedKind:  "generic_serial",
		Confidence:     0.1,
		Location:       details.Name,
	}
	if !details.IsUSB {
		return port
	}

	port.SerialNumber = details.SerialNumber
	port.Model = details.Product
	port.Confidence = 0.2

	vid, vidErr := devicetypes.ParseHexID(details.VID)
	pid, pidErr := devicetypes.ParseHexID(details.PID)
	if vidErr != nil || pidErr != nil {
		return port
	}
	port.VendorID = devicetypes.FormatHexID(vid)
	port.ProductID = devicetypes.FormatHexID(pid)

	if info, ok := devicetypes.LookupAdapter(vid, pid); ok {
		port.Vendor = info.Vendor
		port.Model = info.Model
		port.SuggestedKind = info.SuggestedKind
		port.Confidence = info.Confidence
		if info.BaudRate > 0 {
			port.Settings["baudrate"] = info.BaudRate
		}
	}
	return port
}

// identify probes the port and records its answer
func (s *Scanner) identify(ctx context.Context, port *discovery.DiscoveredPort) {
	baud := s.config.ProbeBaud
	if rate, ok := port.Settings["baudrate"].(int); ok {
		baud = rate
	}

	identity, err := s.probe(ctx, port.Port, baud)
	if err != nil {
		s.logger.Debug("Probe failed", zap.String("port", port.Port), zap.Error(err))
		return
	}
	if identity == "" {
		return
	}

	port.Identity = identity
	port.Confidence += 0.1
	if port.Confidence > 1 {
		port.Confidence = 1
	}
}

// probeIdn opens the port with the generic controller and asks *IDN?
func (s *Scanner) probeIdn(ctx context.Context, port string, baudRate int) (string, error) {
	settings, err := controller.ParseSettings(map[string]interface{}{
		"name":         "probe",
		"port":         port,
		"baudrate":     baudRate,
		"read_timeout": s.config.ProbeTimeout.String(),
	})
	if err != nil {
		return "", err
	}

	c, err := controller.NewGenericSerialController(settings, model.ConnectionTypeSerial, s.logger)
	if err != nil {
		return "", err
	}
	if err := c.Initialize(ctx); err != nil {
		return "", err
	}
	defer func() {
		if err := c.Finalize(); err != nil {
			s.logger.Warn("Failed to close probed port", zap.String("port", port), zap.Error(err))
		}
	}()

	resp, err := c.Idn(ctx)
	if err != nil {
		return "", err
	}
	return resp.First(), nil
}
