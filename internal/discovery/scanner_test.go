package discovery

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"instrument-service/internal/model"
)

type fakeScanner struct {
	kind      string
	available bool
	ports     []*DiscoveredPort
	err       error
}

func (f *fakeScanner) Scan(ctx context.Context) ([]*DiscoveredPort, error) { return f.ports, f.err }
func (f *fakeScanner) GetScannerType() string                              { return f.kind }
func (f *fakeScanner) IsAvailable() bool                                   { return f.available }

func TestScannerManager_ScanAllSkipsFailures(t *testing.T) {
	sm := NewScannerManager(zap.NewNop())
	sm.RegisterScanner(&fakeScanner{kind: "serial", available: true, ports: []*DiscoveredPort{
		{ConnectionType: model.ConnectionTypeSerial, Port: "/dev/ttyUSB0", Confidence: 0.5},
		{ConnectionType: model.ConnectionTypeSerial, Port: "/dev/ttyACM0", Confidence: 0.9},
	}})
	sm.RegisterScanner(&fakeScanner{kind: "usb", available: true, err: errors.New("no access")})
	sm.RegisterScanner(&fakeScanner{kind: "tcp", available: false})

	ports, err := sm.ScanAll(context.Background())
	require.NoError(t, err)
	require.Len(t, ports, 2)
	assert.Equal(t, "/dev/ttyACM0", ports[0].Port)

	assert.Equal(t, []string{"serial", "usb"}, sm.GetAvailableScanners())
}

func TestScannerManager_ScanByType(t *testing.T) {
	sm := NewScannerManager(zap.NewNop())
	sm.RegisterScanner(&fakeScanner{kind: "tcp", available: false})

	_, err := sm.ScanByType(context.Background(), "usb")
	assert.Error(t, err)

	_, err = sm.ScanByType(context.Background(), "tcp")
	assert.Error(t, err)
}
