package log

import (
	"bytes"
	"context"
	"reflect"
	"testing"

	"github.com/mwantia/fabric/pkg/container"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "github.com/mwantia/viewsync/internal/config/server"
)

type taggedService struct {
	Base  LoggerService `fabric:"inject"`
	Plain LoggerService `fabric:"logger"`
	Store LoggerService `fabric:"logger: store "`
}

func TestLoggerTagProcessor_CanProcess(t *testing.T) {
	ltp := NewLoggerTagProcessor()

	assert.True(t, ltp.CanProcess("logger"))
	assert.True(t, ltp.CanProcess("Logger:views"))
	assert.False(t, ltp.CanProcess("inject"))
	assert.False(t, ltp.CanProcess("loggers"))
	assert.False(t, ltp.CanProcess("inject:logger"))
}

func TestLoggerTagProcessor_InjectsNamedLoggers(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger("agent", config.LogServerConfig{Level: "info", NoColor: true}, &buf)

	sc := container.NewServiceContainer()
	sc.AddTagProcessor(NewLoggerTagProcessor())
	require.NoError(t, container.Register[*LoggerServiceImpl](sc,
		container.With[LoggerService](),
		container.WithInstance(logger),
		container.AsSingleton()))
	require.NoError(t, container.Register[*taggedService](sc))

	service, err := container.Resolve[*taggedService](context.Background(), sc)
	require.NoError(t, err)

	assert.Same(t, logger, service.Base)
	assert.Same(t, logger, service.Plain)

	service.Store.Info("opened")
	assert.Contains(t, buf.String(), "[agent/store] opened")
}

func TestLoggerTagProcessor_WithoutLogger(t *testing.T) {
	sc := container.NewServiceContainer()
	sc.AddTagProcessor(NewLoggerTagProcessor())

	type orphan struct {
		Log LoggerService `fabric:"logger"`
	}
	field := reflect.TypeFor[orphan]().Field(0)

	_, err := NewLoggerTagProcessor().Process(context.Background(), sc, field, "logger")
	assert.ErrorContains(t, err, "no LoggerService registered")
}
