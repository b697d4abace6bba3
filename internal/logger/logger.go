package logger

import (
	"sync/atomic"

	"github.com/goran-ethernal/BlockStreamor/pkg/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// process-wide fallback logger
var defaultLogger atomic.Pointer[Logger]

// Logger wraps zap.SugaredLogger so every component logs through one
// interface, with both structured (Infow) and printf-style (Infof) methods.
type Logger struct {
	*zap.SugaredLogger
}

// New builds a logger from the logging configuration. Production mode emits
// JSON to stderr; development mode switches to a colored console encoder.
func New(cfg config.LoggingConfig) (*Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	zapCfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      cfg.Development,
		Encoding:         "json",
		EncoderConfig:    encoderCfg,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}
	if cfg.Development {
		zapCfg.Encoding = "console"
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zapLogger, err := zapCfg.Build()
	if err != nil {
		return nil, err
	}

	return &Logger{SugaredLogger: zapLogger.Sugar()}, nil
}

// NewNopLogger creates a logger that discards everything. Useful in tests.
func NewNopLogger() *Logger {
	return &Logger{SugaredLogger: zap.NewNop().Sugar()}
}

// NewComponentLoggerFromConfig builds a component-scoped logger from the
// logging configuration, falling back to the process default when the
// configuration is unusable.
func NewComponentLoggerFromConfig(component string, cfg config.LoggingConfig) *Logger {
	l, err := New(cfg)
	if err != nil {
		return GetDefaultLogger().WithComponent(component)
	}
	return l.WithComponent(component)
}

// WithComponent returns a child logger tagging every entry with the
// component name.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{SugaredLogger: l.With("component", component)}
}

// Close flushes any buffered log entries.
func (l *Logger) Close() error {
	return l.Sync()
}

// GetDefaultLogger returns the process-wide logger, creating a debug-level
// development logger on first use.
func GetDefaultLogger() *Logger {
	if l := defaultLogger.Load(); l != nil {
		return l
	}

	l, err := New(config.LoggingConfig{Level: "debug", Development: true})
	if err != nil {
		panic(err)
	}
	defaultLogger.CompareAndSwap(nil, l)
	return defaultLogger.Load()
}
