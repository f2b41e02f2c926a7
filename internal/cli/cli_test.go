package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/config"
	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/log"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&buf, "warn", "json")
	require.NoError(t, err)
	logger.Info("hidden")
	logger.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	_, err = NewLogger(&buf, "loud", "text")
	assert.Error(t, err)
	_, err = NewLogger(&buf, "info", "xml")
	assert.Error(t, err)
}

func TestOutputRedirect(t *testing.T) {
	var first, second bytes.Buffer
	out := NewOutput(&first)
	logger, err := NewLogger(out, "info", "text")
	require.NoError(t, err)

	logger.Info("before")
	out.SetOutput(&second)
	logger.Info("after")

	assert.Contains(t, first.String(), "before")
	assert.NotContains(t, first.String(), "after")
	assert.Contains(t, second.String(), "after")
}

func TestProtocolLoggerWritesCapture(t *testing.T) {
	var console bytes.Buffer
	logger, err := NewLogger(&console, "debug", "text")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "session.dlog")
	plog, closeFn, err := ProtocolLogger(path, logger)
	require.NoError(t, err)

	plog.Log(log.Event{SessionID: "s-1", Category: log.CategoryState,
		StateChange: &log.StateChangeEvent{Entity: log.StateEntitySession, NewState: "CONNECTED"}})
	require.NoError(t, closeFn())

	assert.Contains(t, console.String(), "new_state=CONNECTED")

	r, err := log.NewReader(path)
	require.NoError(t, err)
	defer r.Close()
	events, err := r.All()
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "s-1", events[0].SessionID)
}

func TestLoadSpec(t *testing.T) {
	spec, err := LoadSpec("")
	require.NoError(t, err)
	assert.Equal(t, DemoSpec(), spec)

	t.Setenv(config.EnvDeviceName, "Boardroom")
	spec, err = LoadSpec("")
	require.NoError(t, err)
	assert.Equal(t, "Boardroom", spec.Name)

	empty := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("id: 4\n"), 0o644))
	_, err = LoadSpec(empty)
	assert.Error(t, err)

	_, err = LoadSpec(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
