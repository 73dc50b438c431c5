package sprites

import (
	"time"

	"go.uber.org/zap"
)

// NewLogger returns a colored console logger at debug level in development, and a
// JSON logger at info level otherwise.
func NewLogger(development bool) (*zap.Logger, error) {
	if development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// Timer logs how long something took once the returned func is called.
func Timer(logger *zap.Logger, name string) func() {
	start := time.Now()
	return func() {
		logger.Info("timer", zap.String("name", name), zap.Duration("took", time.Since(start)))
	}
}
