package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "github.com/mwantia/viewsync/internal/config/server"
)

func TestParse(t *testing.T) {
	assert.Equal(t, Debug, Parse("debug"))
	assert.Equal(t, Warn, Parse(" WARNING "))
	assert.Equal(t, Error, Parse("Error"))
	assert.Equal(t, Info, Parse("unknown"))
	assert.Equal(t, Info, Parse(""))
}

func TestLoggerService_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger("test", config.LogServerConfig{Level: "warn", NoColor: true}, &buf)

	logger.Info("dropped %d", 1)
	logger.Warn("kept %d", 2)

	out := buf.String()
	assert.NotContains(t, out, "dropped")
	assert.Contains(t, out, "WARN")
	assert.Contains(t, out, "[test] kept 2")
}

func TestLoggerService_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger("agent", config.LogServerConfig{Level: "debug", JSON: true}, &buf)

	logger.Named("views").Debug("table %s mounted", "tickets")

	var entry logEntry
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &entry))
	assert.Equal(t, "DEBUG", entry.Level)
	assert.Equal(t, "agent/views", entry.Service)
	assert.Equal(t, "table tickets mounted", entry.Message)
}

func TestLoggerService_PercentWithoutArgs(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger("", config.LogServerConfig{Level: "info", NoColor: true}, &buf)

	logger.Info("100% done")

	assert.Contains(t, buf.String(), "100% done")
}
