package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func restoreStandardLogger(t *testing.T) {
	t.Helper()
	std := logrus.StandardLogger()
	out, formatter, level := std.Out, std.Formatter, std.GetLevel()
	t.Cleanup(func() {
		logrus.SetOutput(out)
		logrus.SetFormatter(formatter)
		logrus.SetLevel(level)
	})
}

func TestSetup_JSONCarriesComponent(t *testing.T) {
	restoreStandardLogger(t)

	var buf bytes.Buffer
	require.NoError(t, Setup("debug", "json", &buf))

	For("imu").Debug("init ok")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "imu", entry["component"])
	assert.Equal(t, "init ok", entry["msg"])
	assert.Equal(t, "debug", entry["level"])
}

func TestSetup_LevelFilters(t *testing.T) {
	restoreStandardLogger(t)

	var buf bytes.Buffer
	require.NoError(t, Setup("warn", "text", &buf))

	For("pipeline").Info("hidden")
	assert.Zero(t, buf.Len())

	For("pipeline").Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestSetup_Rejects(t *testing.T) {
	restoreStandardLogger(t)

	assert.Error(t, Setup("loud", "text", nil))
	assert.Error(t, Setup("info", "xml", nil))
}
