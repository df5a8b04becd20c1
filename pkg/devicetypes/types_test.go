package devicetypes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupAdapter_KnownProduct(t *testing.T) {
	info, ok := LookupAdapter(VendorArduino, 0x0043)
	require.True(t, ok)
	assert.Equal(t, "Arduino", info.Vendor)
	assert.Equal(t, "Uno", info.Model)
	assert.Equal(t, "arduino", info.SuggestedKind)
	assert.Equal(t, 9600, info.BaudRate)
}

func TestLookupAdapter_UnknownProductOfKnownVendor(t *testing.T) {
	info, ok := LookupAdapter(VendorFTDI, 0xBEEF)
	require.True(t, ok)
	assert.Equal(t, "Unknown-BEEF", info.Model)
	assert.Equal(t, "generic_serial", info.SuggestedKind)
	assert.Less(t, info.Confidence, 0.5)
}

func TestLookupAdapter_UnknownVendor(t *testing.T) {
	_, ok := LookupAdapter(0x1234, 0x0001)
	assert.False(t, ok)
	assert.False(t, KnownVendor(0x1234))
}

func TestParseHexID(t *testing.T) {
	id, err := ParseHexID("0x0403")
	require.NoError(t, err)
	assert.Equal(t, VendorFTDI, id)

	id, err = ParseHexID("2341")
	require.NoError(t, err)
	assert.Equal(t, VendorArduino, id)

	_, err = ParseHexID("zz")
	assert.Error(t, err)

	assert.Equal(t, "0x067B", FormatHexID(VendorProlific))
}
