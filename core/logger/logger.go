package logger

import (
	"fmt"
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config defines logger configuration.
type Config struct {
	Level       string // "debug", "info", "warn", "error"
	Development bool
	// OutputPaths are zap sink URLs or file paths. If empty, records go to
	// the writer handed to New.
	OutputPaths []string
}

// New creates a logger from cfg. The returned func releases any sinks that
// were opened and must be called once the logger is no longer needed.
func New(cfg Config, w io.Writer) (*zap.Logger, func(), error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}

	sink := zapcore.AddSync(w)
	closeSinks := func() {}
	if len(cfg.OutputPaths) > 0 {
		sink, closeSinks, err = zap.Open(cfg.OutputPaths...)
		if err != nil {
			return nil, nil, fmt.Errorf("open log outputs: %w", err)
		}
	}

	core := zapcore.NewCore(encoder(cfg.Development), sink, zap.NewAtomicLevelAt(level))

	opts := []zap.Option{zap.ErrorOutput(zapcore.AddSync(w))}
	if cfg.Development {
		opts = append(opts, zap.Development(), zap.AddCaller())
	}

	return zap.New(core, opts...), closeSinks, nil
}

// parseLevel converts string level to zapcore.Level.
func parseLevel(level string) (zapcore.Level, error) {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return zapcore.InfoLevel, err
	}
	return l, nil
}

func encoder(development bool) zapcore.Encoder {
	if development {
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return zapcore.NewConsoleEncoder(cfg)
	}

	return zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
}
