package config

import (
	"fmt"

	"go.uber.org/zap"
)

// Build constructs the process logger described by this section.
func (lc LoggerConfig) Build() (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(lc.Level)
	if err != nil {
		return nil, fmt.Errorf("config: logger.level: %w", err)
	}

	var zc zap.Config
	switch lc.Format {
	case "json":
		zc = zap.NewProductionConfig()
	case "console", "":
		zc = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("config: unknown logger.format %q", lc.Format)
	}
	zc.Level = level

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("config: build logger: %w", err)
	}
	return logger, nil
}
