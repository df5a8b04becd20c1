package usb

import (
	"testing"

	"github.com/google/gousb"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"instrument-service/internal/discovery"
	"instrument-service/internal/model"
)

func TestScanner_ShouldExamine(t *testing.T) {
	s := NewScanner(zap.NewNop(), nil)

	assert.True(t, s.ShouldExamine(&gousb.DeviceDesc{Vendor: 0x0403, Product: 0x6001}))
	assert.True(t, s.ShouldExamine(&gousb.DeviceDesc{Vendor: 0x9999, Class: gousb.ClassVendorSpec}))
	assert.False(t, s.ShouldExamine(&gousb.DeviceDesc{Vendor: 0x9999, Class: gousb.ClassHID}))

	s = NewScanner(zap.NewNop(), &Config{FilterByClass: false})
	assert.False(t, s.ShouldExamine(&gousb.DeviceDesc{Vendor: 0x9999, Class: gousb.ClassVendorSpec}))
}

func TestDescribe_KnownAdapter(t *testing.T) {
	port := Describe(&gousb.DeviceDesc{Vendor: 0x2341, Product: 0x0043, Bus: 1, Address: 4})

	assert.Equal(t, model.ConnectionTypeUSB, port.ConnectionType)
	assert.Equal(t, "0x2341:0x0043", port.Port)
	assert.Equal(t, "arduino", port.SuggestedKind)
	assert.Equal(t, "Uno", port.Model)
	assert.Equal(t, "USB-Bus1-Addr4", port.Location)
	assert.Equal(t, "0x2341", port.Settings["vendor_id"])
}

func TestDescribe_UnknownDevice(t *testing.T) {
	port := Describe(&gousb.DeviceDesc{Vendor: 0x9999, Product: 0x0001})

	assert.Equal(t, "generic_serial", port.SuggestedKind)
	assert.Empty(t, port.Vendor)
	assert.InDelta(t, 0.2, port.Confidence, 1e-9)
}

func TestDedupe(t *testing.T) {
	a := &discovery.DiscoveredPort{VendorID: "0x0403", ProductID: "0x6001", SerialNumber: "A", Confidence: 0.6}
	dup := &discovery.DiscoveredPort{VendorID: "0x0403", ProductID: "0x6001", SerialNumber: "A", Confidence: 0.6}
	b := &discovery.DiscoveredPort{VendorID: "0x2341", ProductID: "0x0043", Confidence: 0.9}

	unique := Dedupe([]*discovery.DiscoveredPort{a, dup, b})
	assert.Equal(t, []*discovery.DiscoveredPort{b, a}, unique)
}
