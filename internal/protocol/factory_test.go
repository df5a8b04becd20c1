package protocol

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"instrument-service/internal/model"
)

func TestCreatePort_Serial(t *testing.T) {
	conn, err := CreatePort(model.ConnectionTypeSerial, map[string]interface{}{
		"port":          "/dev/ttyUSB0",
		"baudrate":      115200,
		"write_timeout": 0.5,
	}, zap.NewNop())
	require.NoError(t, err)

	sc, ok := conn.(*SerialConnection)
	require.True(t, ok)
	assert.Equal(t, "/dev/ttyUSB0", sc.Name())
	assert.Equal(t, 115200, sc.Framing().BaudRate)
	assert.Equal(t, 500*time.Millisecond, sc.config.WriteTimeout)
	assert.Equal(t, model.ConnectionTypeSerial, sc.GetProtocolType())
	assert.False(t, sc.IsOpen())
}

func TestCreatePort_SerialRequiresPort(t *testing.T) {
	for _, port := range []interface{}{nil, "", "None"} {
		_, err := CreatePort(model.ConnectionTypeSerial, map[string]interface{}{"port": port}, zap.NewNop())
		assert.Error(t, err, "port %v", port)
	}
}

func TestCreatePort_TCP(t *testing.T) {
	conn, err := CreatePort(model.ConnectionTypeTCP, map[string]interface{}{
		"port": "192.168.1.20:5025",
	}, zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, "192.168.1.20:5025", conn.Name())
	assert.Equal(t, NominalTCPFraming(), conn.Framing())

	conn, err = CreatePort(model.ConnectionTypeTCP, map[string]interface{}{
		"host": "lab-laser.local",
		"port": 4001,
	}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "lab-laser.local:4001", conn.Name())
}

func TestCreatePort_Unsupported(t *testing.T) {
	_, err := CreatePort("BLUETOOTH", map[string]interface{}{}, zap.NewNop())
	assert.Error(t, err)
}

func TestValidateConfig(t *testing.T) {
	assert.NoError(t, ValidateConfig(model.ConnectionTypeSerial, map[string]interface{}{"port": "COM4", "baudrate": 9600}))
	assert.Error(t, ValidateConfig(model.ConnectionTypeSerial, map[string]interface{}{"port": "COM4", "baudrate": 9601}))
	assert.Error(t, ValidateConfig(model.ConnectionTypeTCP, map[string]interface{}{"host": "10.0.0.2", "port": 70000}))
	assert.Error(t, ValidateConfig(model.ConnectionTypeTCP, map[string]interface{}{"port": 5025}))
}

func TestCreatePort_USB(t *testing.T) {
	conn, err := CreatePort(model.ConnectionTypeUSB, map[string]interface{}{
		"vendor_id":  "0x1313",
		"product_id": "8078",
	}, zap.NewNop())
	require.NoError(t, err)

	uc, ok := conn.(*USBConnection)
	require.True(t, ok)
	assert.Equal(t, 1, uc.config.InEndpoint)
	assert.Equal(t, model.ConnectionTypeUSB, uc.GetProtocolType())

	_, err = CreatePort(model.ConnectionTypeUSB, map[string]interface{}{"vendor_id": "xyz", "product_id": "8078"}, zap.NewNop())
	assert.Error(t, err)
}

func TestParseUSBID(t *testing.T) {
	id, err := ParseUSBID("0x0403")
	require.NoError(t, err)
	assert.Equal(t, "0403", id.String())

	_, err = ParseUSBID("10000")
	assert.Error(t, err)
}
