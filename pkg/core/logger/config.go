package logger

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

// Config holds zap settings read from the "logger" section.
type Config struct {
	Level            zapcore.Level
	Development      bool
	OutputPaths      []string
	ErrorOutputPaths []string
	StacktraceLevel  zapcore.Level
}

// Validate rejects blank entries in output path lists.
func (c Config) Validate() error {
	if err := validatePaths(c.OutputPaths, "outputPaths"); err != nil {
		return err
	}
	return validatePaths(c.ErrorOutputPaths, "errorOutputPaths")
}

func validatePaths(paths []string, fieldName string) error {
	for i, path := range paths {
		if strings.TrimSpace(path) == "" {
			return fmt.Errorf("%s[%d] cannot be empty or whitespace", fieldName, i)
		}
	}
	return nil
}

type rawConfig struct {
	Level            string   `mapstructure:"level"`
	Development      bool     `mapstructure:"development"`
	OutputPaths      []string `mapstructure:"outputPaths"`
	ErrorOutputPaths []string `mapstructure:"errorOutputPaths"`
	StacktraceLevel  string   `mapstructure:"stacktraceLevel"`
}

func newConfig(v *viper.Viper) (Config, error) {
	cfg := Config{
		Level:           zapcore.InfoLevel,
		StacktraceLevel: zapcore.ErrorLevel,
	}

	sub := v.Sub("logger")
	if sub == nil {
		return cfg, nil
	}

	var raw rawConfig
	if err := sub.Unmarshal(&raw); err != nil {
		return Config{}, fmt.Errorf("failed to load logger config: %w", err)
	}

	var err error
	if cfg.Level, err = parseLevel(raw.Level, zapcore.InfoLevel); err != nil {
		return Config{}, fmt.Errorf("invalid log level '%s': %w", raw.Level, err)
	}
	if cfg.StacktraceLevel, err = parseLevel(raw.StacktraceLevel, zapcore.ErrorLevel); err != nil {
		return Config{}, fmt.Errorf("invalid stacktrace level '%s': %w", raw.StacktraceLevel, err)
	}

	cfg.Development = raw.Development
	cfg.OutputPaths = raw.OutputPaths
	cfg.ErrorOutputPaths = raw.ErrorOutputPaths

	return cfg, nil
}

func parseLevel(s string, def zapcore.Level) (zapcore.Level, error) {
	if s == "" {
		return def, nil
	}
	return zapcore.ParseLevel(s)
}
