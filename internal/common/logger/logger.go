package logger

import (
	"errors"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/edgecomet/ssr-gateway/internal/common/configtypes"
)

var errNoOutputs = errors.New("at least one log output (console or file) must be enabled")

// DynamicLogger is a zap.Logger whose output levels can be changed after startup.
// The SSR server starts at INFO so the boot sequence is always visible, then
// drops to the configured level once listeners are up.
type DynamicLogger struct {
	*zap.Logger
	console    *zap.AtomicLevel
	file       *zap.AtomicLevel
	configured configtypes.LogConfig
}

// NewLogger builds a logger with console and/or rotating file outputs
func NewLogger(cfg configtypes.LogConfig) (*DynamicLogger, error) {
	global := parseLogLevel(cfg.Level)
	dl := &DynamicLogger{configured: cfg}

	var cores []zapcore.Core
	if cfg.Console.Enabled {
		dl.console = atomicLevel(cfg.Console.Level, global)
		cores = append(cores, zapcore.NewCore(createEncoder(cfg.Console.Format), zapcore.Lock(os.Stdout), dl.console))
	}
	if cfg.File.Enabled {
		if cfg.File.Path == "" {
			return nil, errors.New("file.path must be specified when file logging is enabled")
		}
		dl.file = atomicLevel(cfg.File.Level, global)
		cores = append(cores, zapcore.NewCore(createEncoder(cfg.File.Format), createFileWriter(cfg.File), dl.file))
	}
	if len(cores) == 0 {
		return nil, errNoOutputs
	}

	dl.Logger = zap.New(zapcore.NewTee(cores...))
	return dl, nil
}

// NewLoggerWithStartupOverride raises WARN/ERROR configurations to INFO until
// SwitchToConfiguredLevel is called.
func NewLoggerWithStartupOverride(cfg configtypes.LogConfig) (*DynamicLogger, error) {
	if parseLogLevel(cfg.Level) <= zap.InfoLevel {
		return NewLogger(cfg)
	}

	startup := cfg
	startup.Level = configtypes.LogLevelInfo
	if startup.Console.Level == "" {
		startup.Console.Level = configtypes.LogLevelInfo
	}
	if startup.File.Level == "" {
		startup.File.Level = configtypes.LogLevelInfo
	}

	dl, err := NewLogger(startup)
	if err != nil {
		return nil, err
	}
	dl.configured = cfg
	return dl, nil
}

// NewDefaultLogger is used before the configuration file has been read
func NewDefaultLogger() (*DynamicLogger, error) {
	return NewLogger(configtypes.LogConfig{
		Level: configtypes.LogLevelDebug,
		Console: configtypes.ConsoleLogConfig{
			Enabled: true,
			Format:  configtypes.LogFormatConsole,
		},
	})
}

// SwitchToConfiguredLevel applies the levels from the loaded configuration
func (dl *DynamicLogger) SwitchToConfiguredLevel() {
	global := parseLogLevel(dl.configured.Level)
	dl.Info("Switching logger to configured level", zap.String("level", dl.configured.Level))

	if dl.console != nil {
		dl.console.SetLevel(resolveLogLevel(dl.configured.Console.Level, global))
	}
	if dl.file != nil {
		dl.file.SetLevel(resolveLogLevel(dl.configured.File.Level, global))
	}
}

// EnsureInfoLevelForShutdown lowers every output to INFO so the shutdown sequence is logged
func (dl *DynamicLogger) EnsureInfoLevelForShutdown() {
	changed := false
	for _, lvl := range []*zap.AtomicLevel{dl.console, dl.file} {
		if lvl != nil && lvl.Level() > zap.InfoLevel {
			lvl.SetLevel(zap.InfoLevel)
			changed = true
		}
	}
	if changed {
		dl.Info("Switched to INFO level for shutdown visibility")
	}
}

func atomicLevel(outputLevel string, global zapcore.Level) *zap.AtomicLevel {
	lvl := zap.NewAtomicLevelAt(resolveLogLevel(outputLevel, global))
	return &lvl
}

func parseLogLevel(level string) zapcore.Level {
	switch level {
	case configtypes.LogLevelDebug:
		return zap.DebugLevel
	case configtypes.LogLevelWarn:
		return zap.WarnLevel
	case configtypes.LogLevelError:
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}

// resolveLogLevel prefers the per-output level and falls back to the global one
func resolveLogLevel(outputLevel string, global zapcore.Level) zapcore.Level {
	if outputLevel != "" {
		return parseLogLevel(outputLevel)
	}
	return global
}

func createEncoder(format string) zapcore.Encoder {
	if format == configtypes.LogFormatJSON {
		return zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	}

	encoderConfig := zap.NewDevelopmentEncoderConfig()
	if format == configtypes.LogFormatText {
		// no color codes in files
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	} else {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	return zapcore.NewConsoleEncoder(encoderConfig)
}

func createFileWriter(cfg configtypes.FileLogConfig) zapcore.WriteSyncer {
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.Rotation.MaxSize,
		MaxAge:     cfg.Rotation.MaxAge,
		MaxBackups: cfg.Rotation.MaxBackups,
		Compress:   cfg.Rotation.Compress,
	})
}
