package service

import (
	"fmt"
	"runtime/debug"

	"go.uber.org/zap"

	"github.com/and161185/phishtrack/internal/metrics"
)

// BestEffort runs fn and swallows its error or panic after logging it.
// Reports whether fn completed without either.
func BestEffort(log *zap.Logger, step string, fn func() error) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			metrics.TrackerFailures.Inc()
			log.Error("panic in tracking step",
				zap.String("step", step),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
			ok = false
		}
	}()
	if err := fn(); err != nil {
		metrics.TrackerFailures.Inc()
		log.Error("tracking step failed", zap.String("step", step), zap.Error(fmt.Errorf("%s: %w", step, err)))
		return false
	}
	return true
}
