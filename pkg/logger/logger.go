package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger is a leveled, key-value structured logger.
//
//	log.Info("Message created", "message_id", id, "sender_id", senderID)
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Fatal(msg string, keysAndValues ...interface{})
	With(keysAndValues ...interface{}) Logger
}

type zeroLogger struct {
	zl zerolog.Logger
}

// New returns a JSON logger on stdout filtered at the given level
// (debug, info, warn, error). Unknown levels fall back to info.
func New(level string) Logger {
	return NewWithWriter(os.Stdout, level)
}

func NewWithWriter(w io.Writer, level string) Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zl := zerolog.New(w).Level(parseLevel(level)).With().Timestamp().Logger()
	return &zeroLogger{zl: zl}
}

// Nop discards everything.
func Nop() Logger {
	return &zeroLogger{zl: zerolog.Nop()}
}

func parseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

func (l *zeroLogger) Debug(msg string, keysAndValues ...interface{}) {
	write(l.zl.Debug(), msg, keysAndValues)
}

func (l *zeroLogger) Info(msg string, keysAndValues ...interface{}) {
	write(l.zl.Info(), msg, keysAndValues)
}

func (l *zeroLogger) Warn(msg string, keysAndValues ...interface{}) {
	write(l.zl.Warn(), msg, keysAndValues)
}

func (l *zeroLogger) Error(msg string, keysAndValues ...interface{}) {
	write(l.zl.Error(), msg, keysAndValues)
}

func (l *zeroLogger) Fatal(msg string, keysAndValues ...interface{}) {
	write(l.zl.Fatal(), msg, keysAndValues)
}

func (l *zeroLogger) With(keysAndValues ...interface{}) Logger {
	return &zeroLogger{zl: l.zl.With().Fields(normalize(keysAndValues)).Logger()}
}

func write(ev *zerolog.Event, msg string, keysAndValues []interface{}) {
	if ev == nil {
		return
	}
	ev.Fields(normalize(keysAndValues)).Msg(msg)
}

// normalize turns the variadic pairs into a map, stringifying errors and
// keeping a trailing key without value under "!BADKEY".
func normalize(keysAndValues []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(keysAndValues)/2)
	for i := 0; i < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = "!BADKEY"
		}
		if i+1 >= len(keysAndValues) {
			fields["!BADKEY"] = keysAndValues[i]
			break
		}
		value := keysAndValues[i+1]
		if err, isErr := value.(error); isErr && err != nil {
			value = err.Error()
		}
		fields[key] = value
	}
	return fields
}
