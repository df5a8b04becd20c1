// pkg/devicetypes/types.go
package devicetypes

import (
	"fmt"
	"strconv"
	"strings"
)

// Known USB adapters and instruments. Both the serial and the USB scanner
// identify ports through these tables.

// AdapterInfo describes a USB vendor or a specific product
type AdapterInfo struct {
	Vendor        string  `json:"vendor"`
	Model         string  `json:"model,omitempty"`
	SuggestedKind string  `json:"suggested_kind,omitempty"`
	BaudRate      int     `json:"baud_rate,omitempty"`
	Confidence    float64 `json:"confidence"`
}

type vendorEntry struct {
	name     string
	kind     string
	products map[uint16]AdapterInfo
}

// Vendor IDs
const (
	VendorFTDI     uint16 = 0x0403
	VendorArduino  uint16 = 0x2341
	VendorProlific uint16 = 0x067B
	VendorSiLabs   uint16 = 0x10C4
	VendorWCH      uint16 = 0x1A86
	VendorThorlabs uint16 = 0x1313
)

var vendors = map[uint16]vendorEntry{
	VendorFTDI: {
		name: "FTDI",
		kind: "generic_serial",
		products: map[uint16]AdapterInfo{
			0x6001: {Model: "FT232R", Confidence: 0.6},
			0x6010: {Model: "FT2232", Confidence: 0.6},
			0x6015: {Model: "FT231X", Confidence: 0.6},
		},
	},
	VendorArduino: {
		name: "Arduino",
		kind: "arduino",
		products: map[uint16]AdapterInfo{
			0x0043: {Model: "Uno", BaudRate: 9600, Confidence: 0.9},
			0x0042: {Model: "Mega 2560", BaudRate: 9600, Confidence: 0.9},
			0x8036: {Model: "Leonardo", BaudRate: 9600, Confidence: 0.9},
			0x0058: {Model: "Nano Every", BaudRate: 9600, Confidence: 0.9},
		},
	},
	VendorProlific: {
		name: "Prolific",
		kind: "generic_serial",
		products: map[uint16]AdapterInfo{
			0x2303: {Model: "PL2303", Confidence: 0.5},
		},
	},
	VendorSiLabs: {
		name: "Silicon Labs",
		kind: "generic_serial",
		products: map[uint16]AdapterInfo{
			0xEA60: {Model: "CP210x", Confidence: 0.5},
		},
	},
	VendorWCH: {
		name: "WCH",
		kind: "generic_serial",
		products: map[uint16]AdapterInfo{
			0x7523: {Model: "CH340", Confidence: 0.5},
		},
	},
	VendorThorlabs: {
		name: "Thorlabs",
		kind: "generic_serial",
		products: map[uint16]AdapterInfo{},
	},
}

// KnownVendor reports whether vendorID appears in the table
func KnownVendor(vendorID uint16) bool {
	_, ok := vendors[vendorID]
	return ok
}

// LookupAdapter identifies a vendor/product pair. Unknown products of a
// known vendor are returned with a low confidence.
func LookupAdapter(vendorID, productID uint16) (AdapterInfo, bool) {
	v, ok := vendors[vendorID]
	if !ok {
		return AdapterInfo{}, false
	}

	info, ok := v.products[productID]
	if !ok {
		info = AdapterInfo{
			Model:      fmt.Sprintf("Unknown-%04X", productID),
			Confidence: 0.3,
		}
	}
	info.Vendor = v.name
	if info.SuggestedKind == "" {
		info.SuggestedKind = v.kind
	}
	return info, true
}

// ParseHexID parses a 16-bit hex ID such as "0403" or "0x0403"
func ParseHexID(s string) (uint16, error) {
	s = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "0x")
	id, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid hex ID %q: %w", s, err)
	}
	return uint16(id), nil
}

// FormatHexID formats an ID the way instrument settings expect it
func FormatHexID(id uint16) string {
	return fmt.Sprintf("0x%04X", id)
}

// DefaultTimeouts for discovery probes
var DefaultTimeouts = map[string]int{
	"SERIAL_SCAN": 10, // seconds
	"USB_SCAN":    10,
	"TCP_SCAN":    30,
	"TCP_DIAL":    1,
}
