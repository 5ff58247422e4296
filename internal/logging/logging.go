// Package logging builds the zap loggers pesitd hands down to the
// session and transfer layers, and attaches the correlation fields
// that tie a log line back to one session or one file transfer.
package logging

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options selects the log level and encoding, mirroring the
// log_level / log_encoding fields of internal/config.Config.
type Options struct {
	Level    string // debug | info | warn | error
	Encoding string // console | json
}

// New returns a configured *zap.SugaredLogger. Unknown levels fall
// back to info, unknown encodings to console.
func New(opts Options) *zap.SugaredLogger {
	var zapLevel zapcore.Level
	switch strings.ToLower(opts.Level) {
	case "debug":
		zapLevel = zap.DebugLevel
	case "warn":
		zapLevel = zap.WarnLevel
	case "error":
		zapLevel = zap.ErrorLevel
	default:
		zapLevel = zap.InfoLevel
	}

	encoding := opts.Encoding
	if encoding != "json" {
		encoding = "console"
	}
	encodeLevel := zapcore.CapitalColorLevelEncoder
	if encoding == "json" {
		encodeLevel = zapcore.LowercaseLevelEncoder
	}

	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         encoding,
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "ts",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    encodeLevel,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
	}

	logger, err := config.Build()
	if err != nil {
		panic("cannot initialize logger: " + err.Error())
	}

	return logger.Sugar()
}

// ForSession returns a child logger carrying the session correlation
// id every line of that session's lifecycle is tagged with.
func ForSession(l *zap.SugaredLogger, sessionID string) *zap.SugaredLogger {
	return l.With("session", sessionID)
}

// ForTransfer returns a child logger carrying the transfer id, so the
// data-phase lines of one file can be filtered out of a busy session.
func ForTransfer(l *zap.SugaredLogger, transferID string) *zap.SugaredLogger {
	return l.With("transfer", transferID)
}
