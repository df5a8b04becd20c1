package cmd

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"instrument-service/internal/protocol"
)

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		statsFlag = false
		dummyFlag = false
		countFlag = 0
		commandFlag = ""
	})

	err := rootCmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestQueryDummy(t *testing.T) {
	out, _, err := run(t, "--dummy", "query", "hello")
	require.NoError(t, err)
	assert.Equal(t, protocol.DefaultDummyAnswer+"\n", out)
}

func TestQueryStats(t *testing.T) {
	_, errOut, err := run(t, "--dummy", "--stats", "query", "hello")
	require.NoError(t, err)
	assert.Contains(t, errOut, "terminated=true")
	assert.Contains(t, errOut, "expired=false")
}

func TestWriteDummy(t *testing.T) {
	out, _, err := run(t, "--dummy", "write", "l1")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestQueryRequiresCommand(t *testing.T) {
	_, _, err := run(t, "--dummy", "query")
	assert.Error(t, err)
}

func TestMonitorCount(t *testing.T) {
	out, _, err := run(t, "--dummy", "monitor", "-n", "2", "-i", "1ms", "-c", "ping")
	require.NoError(t, err)
	assert.Equal(t, protocol.DefaultDummyAnswer+"\n"+protocol.DefaultDummyAnswer+"\n", out)
}

func TestQueryInvalidEncoding(t *testing.T) {
	_, _, err := run(t, "--dummy", "--encoding", "klingon", "query", "hello")
	assert.Error(t, err)
	encodingFlag = "ascii"
}
