// internal/protocol/usb_connection.go
package protocol

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/gousb"
	"go.uber.org/zap"

	"instrument-service/internal/model"
)

// USBConfig represents a raw bulk-endpoint link to a USB instrument
type USBConfig struct {
	VendorID     string        `json:"vendor_id"`
	ProductID    string        `json:"product_id"`
	SerialNumber string        `json:"serial_number"`
	InEndpoint   int           `json:"in_endpoint"`
	OutEndpoint  int           `json:"out_endpoint"`
	Framing      Framing       `json:"framing"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

// endpointReader adapts a bulk IN endpoint to io.Reader with a cancellable context
type endpointReader struct {
	ctx context.Context
	ep  *gousb.InEndpoint
}

func (r *endpointReader) Read(b []byte) (int, error) {
	return r.ep.ReadContext(r.ctx, b)
}

// USBConnection implements Connection for instruments exposing bulk endpoints
type USBConnection struct {
	config   *USBConfig
	ctx      *gousb.Context
	device   *gousb.Device
	intf     *gousb.Interface
	done     func()
	outEndpt *gousb.OutEndpoint
	pump     *inputPump
	cancel   context.CancelFunc
	logger   *zap.Logger
	mutex    sync.RWMutex
	isOpen   bool
	stats    *ProtocolStats
}

// NewUSBConnection creates a new USB connection
func NewUSBConnection(config *USBConfig, logger *zap.Logger) *USBConnection {
	return &USBConnection{
		config: config,
		logger: logger.With(
			zap.String("protocol", "usb"),
			zap.String("vendor_id", config.VendorID),
			zap.String("product_id", config.ProductID),
		),
		stats: &ProtocolStats{
			IsConnected: false,
		},
	}
}

// Open claims the default interface and starts reading the IN endpoint
func (uc *USBConnection) Open(ctx context.Context) error {
	uc.mutex.Lock()
	defer uc.mutex.Unlock()

	if uc.isOpen {
		return nil
	}

	uc.logger.Info("Opening USB connection",
		zap.Int("in_endpoint", uc.config.InEndpoint),
		zap.Int("out_endpoint", uc.config.OutEndpoint),
	)

	// Parse vendor and product IDs
	vendorID, err := ParseUSBID(uc.config.VendorID)
	if err != nil {
		return fmt.Errorf("invalid vendor ID: %w", err)
	}

	productID, err := ParseUSBID(uc.config.ProductID)
	if err != nil {
		return fmt.Errorf("invalid product ID: %w", err)
	}

	// Initialize USB context
	uc.ctx = gousb.NewContext()

	// Find and open device
	device, err := uc.findAndOpenDevice(vendorID, productID)
	if err != nil {
		uc.ctx.Close()
		return fmt.Errorf("failed to find USB device: %w", err)
	}

	// Claim interface
	intf, done, err := device.DefaultInterface()
	if err != nil {
		device.Close()
		uc.ctx.Close()
		return fmt.Errorf("failed to claim interface: %w", err)
	}

	// Find endpoints
	outEndpt, err := intf.OutEndpoint(uc.config.OutEndpoint)
	if err != nil {
		done()
		device.Close()
		uc.ctx.Close()
		return fmt.Errorf("failed to get out endpoint: %w", err)
	}

	inEndpt, err := intf.InEndpoint(uc.config.InEndpoint)
	if err != nil {
		done()
		device.Close()
		uc.ctx.Close()
		return fmt.Errorf("failed to get in endpoint: %w", err)
	}

	readCtx, cancel := context.WithCancel(context.Background())
	uc.device = device
	uc.intf = intf
	uc.done = done
	uc.outEndpt = outEndpt
	uc.cancel = cancel
	uc.pump = newInputPump(&endpointReader{ctx: readCtx, ep: inEndpt}, uc.logger)
	uc.pump.start()
	uc.isOpen = true
	uc.stats.IsConnected = true
	uc.stats.LastActivity = time.Now()

	uc.logger.Info("USB connection opened successfully")
	return nil
}

// Close stops the pump and releases the device
func (uc *USBConnection) Close() error {
	uc.mutex.Lock()
	defer uc.mutex.Unlock()

	if !uc.isOpen {
		return nil
	}

	uc.pump.stop()
	uc.cancel()
	if !uc.pump.wait(time.Second) {
		uc.logger.Warn("Input pump did not exit after close")
	}

	if uc.done != nil {
		uc.done()
		uc.done = nil
	}
	uc.intf = nil

	var err error
	if uc.device != nil {
		err = uc.device.Close()
		uc.device = nil
	}

	if uc.ctx != nil {
		uc.ctx.Close()
		uc.ctx = nil
	}

	uc.outEndpt = nil
	uc.pump = nil
	uc.isOpen = false
	uc.stats.IsConnected = false

	if err != nil {
		return fmt.Errorf("failed to close USB device: %w", err)
	}

	uc.logger.Info("USB connection closed successfully")
	return nil
}

// IsOpen returns whether the connection is open
func (uc *USBConnection) IsOpen() bool {
	uc.mutex.RLock()
	defer uc.mutex.RUnlock()
	return uc.isOpen && uc.device != nil && uc.outEndpt != nil
}

// Write writes data to the OUT endpoint, bounded by the write timeout
func (uc *USBConnection) Write(data []byte) (int, error) {
	uc.mutex.Lock()
	defer uc.mutex.Unlock()

	if !uc.isOpen || uc.outEndpt == nil {
		return 0, ErrNotOpen
	}

	ctx := context.Background()
	if uc.config.WriteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, uc.config.WriteTimeout)
		defer cancel()
	}

	startTime := time.Now()
	n, err := uc.outEndpt.WriteContext(ctx, data)
	if err != nil {
		uc.stats.ErrorCount++
		uc.logger.Error("USB write failed", zap.Error(err))
		return n, fmt.Errorf("failed to write to USB device: %w", err)
	}

	uc.stats.recordWrite(n, time.Since(startTime))
	uc.logger.Debug("USB write completed", zap.Int("bytes", n))
	return n, nil
}

// Read drains already received bytes without blocking
func (uc *USBConnection) Read(b []byte) (int, error) {
	uc.mutex.Lock()
	defer uc.mutex.Unlock()

	if !uc.isOpen || uc.pump == nil {
		return 0, ErrNotOpen
	}

	n, err := uc.pump.read(b)
	if err != nil {
		uc.stats.ErrorCount++
		return n, fmt.Errorf("failed to read from USB device: %w", err)
	}
	uc.stats.recordRead(n)
	return n, nil
}

// InWaiting returns the number of received bytes not yet read
func (uc *USBConnection) InWaiting() (int, error) {
	uc.mutex.RLock()
	defer uc.mutex.RUnlock()

	if !uc.isOpen || uc.pump == nil {
		return 0, ErrNotOpen
	}

	n, err := uc.pump.available()
	if err != nil {
		return 0, fmt.Errorf("failed to read from USB device: %w", err)
	}
	return n, nil
}

// ResetInputBuffer discards received bytes
func (uc *USBConnection) ResetInputBuffer() error {
	uc.mutex.RLock()
	defer uc.mutex.RUnlock()

	if !uc.isOpen || uc.pump == nil {
		return ErrNotOpen
	}
	uc.pump.reset()
	return nil
}

// ResetOutputBuffer is a no-op: bulk writes complete synchronously
func (uc *USBConnection) ResetOutputBuffer() error {
	if !uc.IsOpen() {
		return ErrNotOpen
	}
	return nil
}

// Framing returns the nominal framing
func (uc *USBConnection) Framing() Framing {
	return uc.config.Framing
}

// GetProtocolType returns the protocol type
func (uc *USBConnection) GetProtocolType() model.ConnectionType {
	return model.ConnectionTypeUSB
}

// Name returns vid:pid
func (uc *USBConnection) Name() string {
	return fmt.Sprintf("%s:%s", uc.config.VendorID, uc.config.ProductID)
}

// Ping reports a device whose reader has failed
func (uc *USBConnection) Ping(ctx context.Context) error {
	uc.mutex.RLock()
	defer uc.mutex.RUnlock()

	if !uc.isOpen || uc.pump == nil {
		return ErrNotOpen
	}
	if _, err := uc.pump.available(); err != nil {
		return fmt.Errorf("USB input failed: %w", err)
	}
	return nil
}

// Stats returns a snapshot of the connection statistics
func (uc *USBConnection) Stats() ProtocolStats {
	uc.mutex.RLock()
	defer uc.mutex.RUnlock()
	return *uc.stats
}

// ParseUSBID parses a hex ID string (0x1234 or 1234)
func ParseUSBID(hexStr string) (gousb.ID, error) {
	hexStr = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(hexStr)), "0x")

	id, err := strconv.ParseUint(hexStr, 16, 16)
	if err != nil {
		return 0, err
	}

	return gousb.ID(id), nil
}

// findAndOpenDevice finds and opens the USB device, matching the serial
// number when one is configured
func (uc *USBConnection) findAndOpenDevice(vendorID, productID gousb.ID) (*gousb.Device, error) {
	devices, err := uc.ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Vendor == vendorID && desc.Product == productID
	})
	if err != nil && len(devices) == 0 {
		return nil, fmt.Errorf("failed to enumerate USB devices: %w", err)
	}

	var selected *gousb.Device
	for _, device := range devices {
		if selected != nil {
			device.Close()
			continue
		}
		if uc.config.SerialNumber != "" {
			serial, err := device.SerialNumber()
			if err != nil || serial != uc.config.SerialNumber {
				device.Close()
				continue
			}
		}
		selected = device
	}

	if selected == nil {
		return nil, fmt.Errorf("USB device not found (VID: %s, PID: %s)", vendorID, productID)
	}
	if len(devices) > 1 && uc.config.SerialNumber == "" {
		uc.logger.Warn("Multiple matching USB devices found, using first one")
	}

	return selected, nil
}
