package soap

import (
	"context"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/ahrav/cxscan/pkg/common/logger"
)

var _ retryablehttp.LeveledLogger = (*retryLogger)(nil)

// retryLogger routes go-retryablehttp's leveled logging through our logger.
type retryLogger struct {
	log *logger.Logger
}

func (l *retryLogger) Error(msg string, keysAndValues ...any) {
	l.log.Error(context.Background(), msg, keysAndValues...)
}

func (l *retryLogger) Info(msg string, keysAndValues ...any) {
	l.log.Info(context.Background(), msg, keysAndValues...)
}

func (l *retryLogger) Debug(msg string, keysAndValues ...any) {
	l.log.Debug(context.Background(), msg, keysAndValues...)
}

func (l *retryLogger) Warn(msg string, keysAndValues ...any) {
	l.log.Warn(context.Background(), msg, keysAndValues...)
}
