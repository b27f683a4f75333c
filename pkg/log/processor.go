package log

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/mwantia/fabric/pkg/container"
)

const loggerTag = "logger"

// LoggerTagProcessor fills struct fields tagged `fabric:"logger"` with the
// registered LoggerService, and `fabric:"logger:<name>"` with a logger
// derived through Named(name).
//
// Fabric only builds a struct from its tags when at least one field carries
// `fabric:"inject"`.
type LoggerTagProcessor struct{}

func NewLoggerTagProcessor() *LoggerTagProcessor {
	return &LoggerTagProcessor{}
}

// GetPriority places the processor ahead of fabric's inject processor.
func (ltp *LoggerTagProcessor) GetPriority() int {
	return 50
}

func (ltp *LoggerTagProcessor) CanProcess(value string) bool {
	tag, _, _ := strings.Cut(value, ":")
	return strings.EqualFold(strings.TrimSpace(tag), loggerTag)
}

func (ltp *LoggerTagProcessor) Process(ctx context.Context, sc *container.ServiceContainer, field reflect.StructField, value string) (any, error) {
	ok, resolved := sc.ResolveByType(ctx, reflect.TypeFor[LoggerService]())
	if !ok {
		return nil, fmt.Errorf("no LoggerService registered for field '%s'", field.Name)
	}

	logger, ok := resolved.(LoggerService)
	if !ok {
		return nil, fmt.Errorf("registered logger for field '%s' is a %T", field.Name, resolved)
	}

	if _, name, found := strings.Cut(value, ":"); found {
		if name = strings.TrimSpace(name); name != "" {
			return logger.Named(name), nil
		}
	}
	return logger, nil
}
