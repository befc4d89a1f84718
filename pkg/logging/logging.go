package logging

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/hanziwordle/hanziwordle/pkg/config"
)

// New builds the process logger: JSON output in production, colored console
// output in development.
func New(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", cfg.Level, err)
	}

	var zc zap.Config
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	zc.Level = level
	return zc.Build()
}
