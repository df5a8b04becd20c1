package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"instrument-service/internal/config"
	"instrument-service/internal/discovery"
	internalDriver "instrument-service/internal/driver"
	"instrument-service/internal/model"
	"instrument-service/internal/units"
)

type stubScanner struct {
	kind  string
	ports []*discovery.DiscoveredPort
}

func (s *stubScanner) Scan(ctx context.Context) ([]*discovery.DiscoveredPort, error) {
	return s.ports, nil
}
func (s *stubScanner) GetScannerType() string { return s.kind }
func (s *stubScanner) IsAvailable() bool      { return true }

func newTestDiscoveryService() *DiscoveryService {
	logger := zap.NewNop()
	registry := internalDriver.NewRegistry(units.NewConverter(), logger)
	internalDriver.RegisterDefaultDrivers(registry, logger)

	cfg := &config.Config{
		Instruments: []model.InstrumentDefinition{
			{
				Name:           "uno",
				Kind:           internalDriver.KindArduino,
				ConnectionType: model.ConnectionTypeSerial,
				Settings:       model.JSONObject{"port": "/dev/ttyACM0"},
			},
		},
	}

	serial := &stubScanner{kind: "serial", ports: []*discovery.DiscoveredPort{
		{
			ConnectionType: model.ConnectionTypeSerial,
			Port:           "/dev/ttyACM0",
			SuggestedKind:  "arduino",
			Settings:       map[string]interface{}{"port": "/dev/ttyACM0"},
			Confidence:     0.9,
		},
		{
			ConnectionType: model.ConnectionTypeSerial,
			Port:           "/dev/ttyACM1",
			SuggestedKind:  "arduino",
			Vendor:         "Arduino",
			Model:          "Mega 2560",
			Settings:       map[string]interface{}{"port": "/dev/ttyACM1", "baudrate": 9600},
			Confidence:     0.9,
		},
		{
			ConnectionType: model.ConnectionTypeSerial,
			Port:           "/dev/ttyS0",
			SuggestedKind:  "oscilloscope",
			Settings:       map[string]interface{}{"port": "/dev/ttyS0"},
			Confidence:     0.1,
		},
	}}

	return NewDiscoveryServiceWithScanners(registry, cfg, logger, serial)
}

func TestDiscoveryService_ScanMarksConfiguredPorts(t *testing.T) {
	ds := newTestDiscoveryService()

	found, err := ds.Scan(context.Background(), "serial")
	require.NoError(t, err)
	require.Len(t, found, 3)

	assert.Equal(t, "uno", found[0].ConfiguredAs)
	assert.True(t, found[0].Supported)
	assert.Empty(t, found[1].ConfiguredAs)
	assert.False(t, found[2].Supported)
}

func TestDiscoveryService_ScanUnsupportedType(t *testing.T) {
	ds := newTestDiscoveryService()

	_, err := ds.Scan(context.Background(), "bluetooth")
	assert.ErrorIs(t, err, ErrUnsupportedScanType)
}

func TestDiscoveryService_Suggest(t *testing.T) {
	ds := newTestDiscoveryService()

	result, err := ds.Suggest(context.Background(), "all")
	require.NoError(t, err)
	assert.Equal(t, 3, result.TotalScanned)
	require.Len(t, result.Suggestions, 1)

	def := result.Suggestions[0]
	assert.Equal(t, "arduino_1", def.Name)
	assert.Equal(t, "Arduino Mega 2560", def.Description)
	assert.Equal(t, "/dev/ttyACM1", def.Port())
	assert.Equal(t, 9600, def.Settings["baudrate"])
}
