// internal/config/runtime.go
package config

import (
	"fmt"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Runtime is the process-level configuration read from the environment.
// Gateway and sensor layout lives in the key/value Source instead and goes
// through Resolve.
type Runtime struct {
	Logging struct {
		Format string `env:"LOG_FORMAT" env-default:"console"`
		Level  string `env:"LOG_LEVEL" env-default:"info"`
	}
	DegreesF        bool   `env:"DEGREES_F" env-default:"false"`
	SinkURL         string `env:"SINK_URL"`
	ModbusTimeoutMs int    `env:"MODBUS_TIMEOUT_MS" env-default:"2000"`
}

// LoadRuntime reads and validates the runtime configuration.
func LoadRuntime() (*Runtime, error) {
	var rt Runtime
	if err := cleanenv.ReadEnv(&rt); err != nil {
		return nil, fmt.Errorf("config: read environment: %w", err)
	}

	rt.Logging.Format = strings.ToLower(rt.Logging.Format)
	if rt.Logging.Format != "console" && rt.Logging.Format != "json" {
		return nil, fmt.Errorf("config: log format must be 'console' or 'json', got %q", rt.Logging.Format)
	}

	rt.Logging.Level = strings.ToLower(rt.Logging.Level)
	switch rt.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("config: log level must be one of debug, info, warn, error, got %q", rt.Logging.Level)
	}

	if rt.ModbusTimeoutMs <= 0 {
		return nil, fmt.Errorf("config: modbus timeout must be > 0, got %d", rt.ModbusTimeoutMs)
	}

	return &rt, nil
}

// NewLogger builds a zap logger from the logging configuration.
func (rt *Runtime) NewLogger() (*zap.Logger, error) {
	var level zapcore.Level
	switch rt.Logging.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "ts"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	if rt.Logging.Format == "console" {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Encoding:         rt.Logging.Format,
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}
	return cfg.Build()
}
