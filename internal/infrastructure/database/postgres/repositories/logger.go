package repositories

import (
	"fmt"

	"github.com/DailyForkCast/osint-foresight-sub003/internal/infrastructure/monitoring/logging"
)

// Logger is the minimal logging contract required by repository
// implementations: alternating key/value pairs, sugared-logger style. It is
// satisfied by most structured-logging libraries.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// AdaptLogger bridges the platform's field-based logging.Logger to the
// key/value contract above.
func AdaptLogger(l logging.Logger) Logger {
	return kvLogger{l: l}
}

type kvLogger struct {
	l logging.Logger
}

func (k kvLogger) Debug(msg string, kv ...interface{}) { k.l.Debug(msg, toFields(kv)...) }
func (k kvLogger) Info(msg string, kv ...interface{})  { k.l.Info(msg, toFields(kv)...) }
func (k kvLogger) Warn(msg string, kv ...interface{})  { k.l.Warn(msg, toFields(kv)...) }
func (k kvLogger) Error(msg string, kv ...interface{}) { k.l.Error(msg, toFields(kv)...) }

func toFields(kv []interface{}) []logging.Field {
	fields := make([]logging.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		fields = append(fields, logging.Any(key, kv[i+1]))
	}
	return fields
}
