package controller

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"instrument-service/internal/protocol"
)

func TestParseSettings_Defaults(t *testing.T) {
	s, err := ParseSettings(map[string]interface{}{})
	require.NoError(t, err)

	assert.Equal(t, "", s.Port)
	assert.Equal(t, 9600, s.Framing.BaudRate)
	assert.Equal(t, protocol.DefaultFraming(), s.Framing)
	assert.Equal(t, "\n", s.WriteTermination)
	assert.Equal(t, "\n", s.ReadTermination)
	assert.Equal(t, 100*time.Millisecond, s.ReadTimeout)
	assert.Equal(t, 100*time.Millisecond, s.WriteTimeout)
	assert.Equal(t, "ascii", s.Encoding)
	assert.False(t, s.Dummy)
	assert.Equal(t, DefaultName, s.Name)
}

func TestParseSettings_Overrides(t *testing.T) {
	s, err := ParseSettings(map[string]interface{}{
		"port":              "COM5",
		"baudrate":          115200,
		"write_termination": `\r`,
		"read_termination":  "\r\n",
		"read_timeout":      1.0,
		"encoding":          "utf-8",
		"dummy":             true,
		"name":              "Cobolt",
	})
	require.NoError(t, err)

	assert.Equal(t, "COM5", s.Port)
	assert.Equal(t, 115200, s.Framing.BaudRate)
	assert.Equal(t, "\r", s.WriteTermination)
	assert.Equal(t, "\r\n", s.ReadTermination)
	assert.Equal(t, time.Second, s.ReadTimeout)
	assert.Equal(t, "utf-8", s.Encoding)
	assert.True(t, s.Dummy)
	assert.Equal(t, "Cobolt", s.Name)
}

func TestParseSettings_PortNone(t *testing.T) {
	s, err := ParseSettings(map[string]interface{}{"port": "None"})
	require.NoError(t, err)
	assert.Empty(t, s.Port)
	assert.Error(t, s.Validate())
}

func TestParseSettings_Invalid(t *testing.T) {
	_, err := ParseSettings(map[string]interface{}{"encoding": "klingon"})
	assert.ErrorIs(t, err, ErrUnknownEncoding)

	_, err = ParseSettings(map[string]interface{}{"read_timeout": "whenever"})
	assert.Error(t, err)

	_, err = ParseSettings(map[string]interface{}{"baudrate": "fast"})
	assert.Error(t, err)
}
