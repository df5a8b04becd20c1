// internal/service/discovery_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"instrument-service/internal/config"
	"instrument-service/internal/discovery"
	serialscan "instrument-service/internal/discovery/serial"
	"instrument-service/internal/discovery/tcp"
	"instrument-service/internal/discovery/usb"
	internalDriver "instrument-service/internal/driver"
	"instrument-service/internal/model"
	"instrument-service/internal/protocol"
	"instrument-service/internal/utils"
)

// ErrUnsupportedScanType is returned for an unknown scan type
var ErrUnsupportedScanType = errors.New("unsupported scan type")

// DiscoveryService finds ports instruments could be configured on
type DiscoveryService struct {
	registry       *internalDriver.Registry
	scannerManager *discovery.ScannerManager
	config         *config.Config
	logger         *utils.ServiceLogger
}

// DiscoveredInstrument is a discovered port cross-checked against the
// configured instruments
type DiscoveredInstrument struct {
	*discovery.DiscoveredPort
	ConfiguredAs string `json:"configured_as,omitempty"`
	Supported    bool   `json:"supported"`
}

// SuggestResult lists instrument definitions for unconfigured ports
type SuggestResult struct {
	TotalScanned int                          `json:"total_scanned"`
	Suggestions  []model.InstrumentDefinition `json:"suggestions"`
}

// NewDiscoveryService creates a new discovery service with the scanners
// the config enables
func NewDiscoveryService(registry *internalDriver.Registry, cfg *config.Config, logger *zap.Logger) *DiscoveryService {
	ds := &DiscoveryService{
		registry:       registry,
		scannerManager: discovery.NewScannerManager(logger),
		config:         cfg,
		logger:         utils.NewServiceLogger(logger, "discovery-service"),
	}
	ds.initializeScanners(logger)
	return ds
}

// NewDiscoveryServiceWithScanners uses the given scanners instead
func NewDiscoveryServiceWithScanners(registry *internalDriver.Registry, cfg *config.Config, logger *zap.Logger, scanners ...discovery.PortScanner) *DiscoveryService {
	ds := &DiscoveryService{
		registry:       registry,
		scannerManager: discovery.NewScannerManager(logger),
		config:         cfg,
		logger:         utils.NewServiceLogger(logger, "discovery-service"),
	}
	for _, s := range scanners {
		ds.scannerManager.RegisterScanner(s)
	}
	return ds
}

// initializeScanners registers the serial scanner and, when enabled, the
// USB and TCP scanners
func (ds *DiscoveryService) initializeScanners(logger *zap.Logger) {
	dc := ds.config.Discovery

	serialConfig := serialscan.DefaultConfig()
	serialConfig.Probe = dc.SerialProbe
	serialConfig.USBOnly = dc.SerialUSBOnly
	serialConfig.PortPatterns = dc.PortPatterns
	if dc.ScanTimeout > 0 {
		serialConfig.ScanTimeout = dc.ScanTimeout
	}
	ds.scannerManager.RegisterScanner(serialscan.NewScanner(logger, serialConfig))

	if dc.USBEnabled {
		ds.scannerManager.RegisterScanner(usb.NewScanner(logger, nil))
	}

	tcpScanner := tcp.NewScanner(logger, &tcp.Config{
		ScanTimeout:   dc.ScanTimeout,
		Hosts:         dc.TCPHosts,
		NetworkRanges: dc.TCPRanges,
		Ports:         dc.TCPPorts,
	})
	if tcpScanner.IsAvailable() {
		ds.scannerManager.RegisterScanner(tcpScanner)
	}

	ds.logger.Info("Discovery scanners initialized",
		zap.Strings("available_scanners", ds.scannerManager.GetAvailableScanners()),
	)
}

// AvailableScanners lists the scanner types that can run
func (ds *DiscoveryService) AvailableScanners() []string {
	return ds.scannerManager.GetAvailableScanners()
}

// Scan runs one scanner type, or all of them for "all" or ""
func (ds *DiscoveryService) Scan(ctx context.Context, scanType string) ([]*DiscoveredInstrument, error) {
	scanType = strings.ToLower(strings.TrimSpace(scanType))
	ds.logger.Info("Starting port scan", zap.String("type", scanType))

	var ports []*discovery.DiscoveredPort
	var err error

	switch scanType {
	case "", "all":
		ports, err = ds.scannerManager.ScanAll(ctx)
	case "serial", "usb", "tcp":
		ports, err = ds.scannerManager.ScanByType(ctx, scanType)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScanType, scanType)
	}
	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}

	result := make([]*DiscoveredInstrument, len(ports))
	for i, port := range ports {
		result[i] = &DiscoveredInstrument{
			DiscoveredPort: port,
			ConfiguredAs:   ds.configuredAs(port),
			Supported:      ds.registry.IsSupported(port.SuggestedKind),
		}
	}

	ds.logger.Info("Port scan completed",
		zap.Int("ports_found", len(result)),
		zap.String("scan_type", scanType),
	)
	return result, nil
}

// Suggest scans and proposes a definition for every supported port no
// instrument is configured on
func (ds *DiscoveryService) Suggest(ctx context.Context, scanType string) (*SuggestResult, error) {
	found, err := ds.Scan(ctx, scanType)
	if err != nil {
		return nil, err
	}

	result := &SuggestResult{
		TotalScanned: len(found),
		Suggestions:  []model.InstrumentDefinition{},
	}

	counts := make(map[string]int)
	for _, d := range found {
		if d.ConfiguredAs != "" || !d.Supported {
			continue
		}

		counts[d.SuggestedKind]++
		settings := make(model.JSONObject, len(d.Settings))
		for k, v := range d.Settings {
			settings[k] = v
		}

		result.Suggestions = append(result.Suggestions, model.InstrumentDefinition{
			Name:           fmt.Sprintf("%s_%d", d.SuggestedKind, counts[d.SuggestedKind]),
			Kind:           d.SuggestedKind,
			ConnectionType: d.ConnectionType,
			Description:    strings.TrimSpace(strings.Join([]string{d.Vendor, d.Model}, " ")),
			Settings:       settings,
		})
	}

	ds.logger.Info("Suggestions prepared",
		zap.Int("total_scanned", result.TotalScanned),
		zap.Int("suggestions", len(result.Suggestions)),
	)
	return result, nil
}

// configuredAs returns the name of the instrument already using the port
func (ds *DiscoveryService) configuredAs(port *discovery.DiscoveredPort) string {
	for _, def := range ds.config.Instruments {
		if def.ConnectionType != port.ConnectionType {
			continue
		}

		switch port.ConnectionType {
		case model.ConnectionTypeUSB:
			vid, _ := protocol.StringValue(def.Settings, "vendor_id", "")
			pid, _ := protocol.StringValue(def.Settings, "product_id", "")
			if strings.EqualFold(vid, port.VendorID) && strings.EqualFold(pid, port.ProductID) {
				return def.Name
			}
		case model.ConnectionTypeTCP:
			host, _ := protocol.StringValue(def.Settings, "host", "")
			p, _ := protocol.IntValue(def.Settings, "port", 0)
			if host == port.Settings["host"] && p == port.Settings["port"] {
				return def.Name
			}
		default:
			if def.Port() == port.Port {
				return def.Name
			}
		}
	}
	return ""
}

// SupportedKinds lists the instrument kinds the registry can build
func (ds *DiscoveryService) SupportedKinds() []string {
	return ds.registry.Kinds()
}
