package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/lesson-calendar-api/internal/repository"
	appErrors "github.com/noah-isme/lesson-calendar-api/pkg/errors"
)

const defaultMaxAttempts = 3

// withRetry runs op until it succeeds, fails with a non-retryable error, or maxAttempts
// serialization failures have been seen. It returns the number of attempts made.
func withRetry(ctx context.Context, logger *zap.Logger, name string, maxAttempts int, op func() error) (int, error) {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = op()
		if err == nil || !repository.IsRetryable(err) {
			return attempt, err
		}
		logger.Debug("retrying transaction", zap.String("operation", name), zap.Int("attempt", attempt), zap.Error(err))
		if ctxErr := ctx.Err(); ctxErr != nil {
			return attempt, ctxErr
		}
	}
	return maxAttempts, appErrors.Wrap(err, appErrors.ErrTryAgain.Code, appErrors.ErrTryAgain.Status, appErrors.ErrTryAgain.Message)
}

// internalError wraps unexpected failures, leaving typed errors untouched.
func internalError(err error, message string) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}
