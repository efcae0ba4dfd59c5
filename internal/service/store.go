package service

import (
	"context"
	"errors"
	"time"

	"github.com/Vishesh-Tomer/school-erp/internal/domain"
)

// storeTimeout bounds every credential-store and token-store call so a stuck
// backend surfaces as a retryable 503 instead of hanging the request.
const storeTimeout = 5 * time.Second

func storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, storeTimeout)
}

// storeErr translates infrastructure failures into the domain taxonomy.
// Timeouts and cancellations become ServiceUnavailable; anything else that
// is not already an AppError becomes Internal.
func storeErr(op string, err error) error {
	var appErr *domain.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return domain.ErrServiceUnavailable(op+" timed out", err)
	}
	return domain.ErrInternal(op, err)
}
