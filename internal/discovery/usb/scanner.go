// internal/discovery/usb/scanner.go
package usb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/gousb"
	"go.uber.org/zap"

	"instrument-service/internal/discovery"
	"instrument-service/internal/model"
	"instrument-service/pkg/devicetypes"
)

// USBClassVendorSpec marks devices with raw bulk endpoints
const USBClassVendorSpec = gousb.ClassVendorSpec

// Scanner enumerates USB devices of known adapter vendors and devices with
// a vendor-specific class
type Scanner struct {
	logger *zap.Logger
	config *Config
}

// Config for USB scanner
type Config struct {
	ScanTimeout   time.Duration `json:"scan_timeout"`
	EnableDebug   bool          `json:"enable_debug"`
	FilterByClass bool          `json:"filter_by_class"`
	MaxConcurrent int           `json:"max_concurrent"`
}

// NewScanner creates a new USB scanner
func NewScanner(logger *zap.Logger, config *Config) *Scanner {
	if config == nil {
		config = &Config{
			ScanTimeout:   time.Duration(devicetypes.DefaultTimeouts["USB_SCAN"]) * time.Second,
			FilterByClass: true,
			MaxConcurrent: 5,
		}
	}

	return &Scanner{
		logger: logger.With(zap.String("scanner", "usb")),
		config: config,
	}
}

// GetScannerType returns scanner type
func (s *Scanner) GetScannerType() string {
	return "usb"
}

// IsAvailable checks that libusb can enumerate the bus
func (s *Scanner) IsAvailable() (available bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("libusb unavailable", zap.Any("panic", r))
			available = false
		}
	}()

	ctx := gousb.NewContext()
	defer ctx.Close()

	_, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return false
	})
	return err == nil
}

// Scan opens matching devices and reads their descriptors
func (s *Scanner) Scan(ctx context.Context) ([]*discovery.DiscoveredPort, error) {
	startTime := time.Now()
	s.logger.Info("Starting USB device scan")

	scanCtx, cancel := context.WithTimeout(ctx, s.config.ScanTimeout)
	defer cancel()

	usbCtx := gousb.NewContext()
	defer func() {
		if err := usbCtx.Close(); err != nil {
			s.logger.Warn("Failed to close USB context", zap.Error(err))
		}
	}()
	if s.config.EnableDebug {
		usbCtx.Debug(3)
	}

	devices, err := usbCtx.OpenDevices(s.ShouldExamine)
	if err != nil && len(devices) == 0 {
		return nil, fmt.Errorf("failed to enumerate USB devices: %w", err)
	}
	defer s.closeAll(devices)

	discovered, err := s.processConcurrently(scanCtx, devices)
	if err != nil {
		return discovered, err
	}

	discovered = Dedupe(discovered)
	s.logger.Info("USB scan completed",
		zap.Int("ports_found", len(discovered)),
		zap.Duration("scan_duration", time.Since(startTime)),
	)
	return discovered, nil
}

// ShouldExamine selects known vendors and, when filtering by class,
// vendor-specific devices
func (s *Scanner) ShouldExamine(desc *gousb.DeviceDesc) bool {
	if devicetypes.KnownVendor(uint16(desc.Vendor)) {
		return true
	}
	return s.config.FilterByClass && desc.Class == USBClassVendorSpec
}

type deviceResult struct {
	port *discovery.DiscoveredPort
}

func (s *Scanner) processConcurrently(ctx context.Context, devices []*gousb.Device) ([]*discovery.DiscoveredPort, error) {
	if len(devices) == 0 {
		return []*discovery.DiscoveredPort{}, nil
	}

	maxWorkers := s.config.MaxConcurrent
	if maxWorkers <= 0 {
		maxWorkers = 5
	}

	deviceChan := make(chan *gousb.Device, len(devices))
	resultChan := make(chan deviceResult, len(devices))

	for i := 0; i < maxWorkers; i++ {
		go func() {
			for device := range deviceChan {
				resultChan <- deviceResult{port: s.describe(device)}
			}
		}()
	}
	for _, device := range devices {
		deviceChan <- device
	}
	close(deviceChan)

	var discovered []*discovery.DiscoveredPort
	for i := 0; i < len(devices); i++ {
		select {
		case result := <-resultChan:
			if result.port != nil {
				discovered = append(discovered, result.port)
			}
		case <-ctx.Done():
			return discovered, ctx.Err()
		}
	}
	return discovered, nil
}

// describe reads the descriptors of an opened device
func (s *Scanner) describe(device *gousb.Device) *discovery.DiscoveredPort {
	desc := device.Desc
	if desc == nil {
		return nil
	}

	port := Describe(desc)
	if serial, err := device.SerialNumber(); err == nil {
		port.SerialNumber = strings.TrimSpace(serial)
		port.Settings["serial_number"] = port.SerialNumber
	}
	if port.Model == "" {
		if product, err := device.Product(); err == nil {
			port.Model = strings.TrimSpace(product)
		}
	}
	if port.Vendor == "" {
		if manufacturer, err := device.Manufacturer(); err == nil {
			port.Vendor = strings.TrimSpace(manufacturer)
		}
	}

	s.logger.Debug("USB device examined",
		zap.String("vendor_id", port.VendorID),
		zap.String("product_id", port.ProductID),
		zap.String("class", desc.Class.String()),
	)
	return port
}

// Describe builds a discovered port from a device descriptor alone
func Describe(desc *gousb.DeviceDesc) *discovery.DiscoveredPort {
	vid, pid := uint16(desc.Vendor), uint16(desc.Product)
	port := &discovery.DiscoveredPort{
		ConnectionType: model.ConnectionTypeUSB,
		Port:           fmt.Sprintf("%s:%s", devicetypes.FormatHexID(vid), devicetypes.FormatHexID(pid)),
		VendorID:       devicetypes.FormatHexID(vid),
		ProductID:      devicetypes.FormatHexID(pid),
		SuggestedKind:  "generic_serial",
		Confidence:     0.2,
		Location:       fmt.Sprintf("USB-Bus%d-Addr%d", desc.Bus, desc.Address),
		Settings: map[string]interface{}{
			"vendor_id":  devicetypes.FormatHexID(vid),
			"product_id": devicetypes.FormatHexID(pid),
		},
	}

	if info, ok := devicetypes.LookupAdapter(vid, pid); ok {
		port.Vendor = info.Vendor
		port.Model = info.Model
		port.SuggestedKind = info.SuggestedKind
		port.Confidence = info.Confidence
	}
	return port
}

// Dedupe drops repeated vid:pid:serial entries and sorts by confidence
func Dedupe(ports []*discovery.DiscoveredPort) []*discovery.DiscoveredPort {
	seen := make(map[string]bool)
	unique := make([]*discovery.DiscoveredPort, 0, len(ports))
	for _, p := range ports {
		key := fmt.Sprintf("%s:%s:%s:%s", p.VendorID, p.ProductID, p.SerialNumber, p.Location)
		if seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, p)
	}
	discovery.SortByConfidence(unique)
	return unique
}

func (s *Scanner) closeAll(devices []*gousb.Device) {
	for i, device := range devices {
		if device == nil {
			continue
		}
		if err := device.Close(); err != nil {
			s.logger.Warn("Failed to close USB device",
				zap.Int("device_index", i),
				zap.Error(err),
			)
		}
	}
}
