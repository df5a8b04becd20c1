package instrument

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"instrument-service/internal/controller"
	"instrument-service/internal/model"
	"instrument-service/internal/protocol"
	"instrument-service/internal/units"
)

func TestGenericSerial_DummyIdn(t *testing.T) {
	settings, err := controller.ParseSettings(map[string]interface{}{"dummy": true})
	require.NoError(t, err)

	c, err := controller.NewGenericSerialController(settings, model.ConnectionTypeSerial, zap.NewNop())
	require.NoError(t, err)

	inst := NewGenericSerial("arduino-1", "arduino", c, units.NewConverter(), zap.NewNop())
	assert.Equal(t, "arduino-1", inst.Name())
	assert.Equal(t, "arduino", inst.Kind())
	assert.False(t, inst.IsInitialized())

	ctx := context.Background()
	require.NoError(t, inst.Initialize(ctx))
	assert.True(t, inst.IsInitialized())

	idn, err := inst.Idn(ctx)
	require.NoError(t, err)
	assert.Equal(t, protocol.DefaultDummyAnswer, idn)

	require.NoError(t, inst.Finalize())
	assert.False(t, inst.IsInitialized())
}

func TestGenericSerial_Capabilities(t *testing.T) {
	c, err := controller.NewGenericSerialController(controller.DefaultSettings(), model.ConnectionTypeSerial, zap.NewNop())
	require.NoError(t, err)

	inst := NewGenericSerial("g", "generic_serial", c, units.NewConverter(), zap.NewNop())
	caps := inst.Capabilities()

	assert.Contains(t, caps, model.CapabilityWrite)
	assert.Contains(t, caps, model.CapabilityQuery)
	assert.NotContains(t, caps, model.CapabilityPowerSet)
	assert.NotContains(t, caps, model.CapabilityFault)
}
