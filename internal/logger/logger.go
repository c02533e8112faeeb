// Package logger собирает zap.Logger сервиса из настроек окружения.
package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config - настройки логгера из LOG_LEVEL и LOG_ENCODING.
type Config struct {
	Level      string
	Encoding   string // json | console, остальное считается json
	OutputPath string // "" пишет в stdout
	Service    string
}

// New строит логгер без caller и stacktrace: сервису хватает полей записи.
// Неизвестный уровень не считается ошибкой, логгер работает на info и
// сообщает об этом первой записью.
func New(cfg Config) (*zap.Logger, error) {
	level, levelErr := parseLevel(cfg.Level)

	sink, _, err := zap.Open(outputPath(cfg.OutputPath))
	if err != nil {
		return nil, fmt.Errorf("open log output %q: %w", cfg.OutputPath, err)
	}
	errSink, _, err := zap.Open("stderr")
	if err != nil {
		return nil, fmt.Errorf("open log error output: %w", err)
	}

	core := zapcore.NewCore(newEncoder(cfg.Encoding), sink, level)
	log := zap.New(core, zap.ErrorOutput(errSink))
	if cfg.Service != "" {
		log = log.With(zap.String("service", cfg.Service))
	}
	if levelErr != nil {
		log.Warn("Invalid log level, falling back to info", zap.String("configured_level", cfg.Level), zap.Error(levelErr))
	}
	return log, nil
}

func parseLevel(raw string) (zapcore.Level, error) {
	if raw == "" {
		return zapcore.InfoLevel, nil
	}
	lvl, err := zapcore.ParseLevel(strings.ToLower(raw))
	if err != nil {
		return zapcore.InfoLevel, err
	}
	return lvl, nil
}

func newEncoder(encoding string) zapcore.Encoder {
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "timestamp"
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	ec.EncodeLevel = zapcore.CapitalLevelEncoder

	if strings.EqualFold(encoding, "console") {
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return zapcore.NewConsoleEncoder(ec)
	}
	return zapcore.NewJSONEncoder(ec)
}

func outputPath(path string) string {
	if path == "" {
		return "stdout"
	}
	return path
}
