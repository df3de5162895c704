package annotations

import (
	"fmt"
	"sort"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewZapHandler turns events into structured log entries. Error events log
// at error level, rule and round events at debug level, the rest at info.
func NewZapHandler(logger *zap.Logger) Handler {
	if logger == nil {
		return nil
	}
	return func(event Event) {
		level := zapcore.InfoLevel
		switch event.Name {
		case RuleEvaluated, RoundComplete:
			level = zapcore.DebugLevel
		case ErrorCompile, ErrorEvaluate, ErrorFactCheck:
			level = zapcore.ErrorLevel
		case RunComplete:
			if success, ok := event.Data["success"].(bool); ok && !success {
				level = zapcore.ErrorLevel
			}
		}

		ce := logger.Check(level, event.Name)
		if ce == nil {
			return
		}
		ce.Write(eventFields(event)...)
	}
}

func eventFields(event Event) []zap.Field {
	keys := make([]string, 0, len(event.Data))
	for k := range event.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]zap.Field, 0, len(keys)+1)
	if event.Latency > 0 {
		fields = append(fields, zap.Duration("latency", event.Latency))
	}
	for _, k := range keys {
		switch v := event.Data[k].(type) {
		case string:
			fields = append(fields, zap.String(k, v))
		case int:
			fields = append(fields, zap.Int(k, v))
		case bool:
			fields = append(fields, zap.Bool(k, v))
		case float64:
			fields = append(fields, zap.Float64(k, v))
		case []string:
			fields = append(fields, zap.Strings(k, v))
		case error:
			fields = append(fields, zap.NamedError(k, v))
		default:
			fields = append(fields, zap.String(k, fmt.Sprint(v)))
		}
	}
	return fields
}
