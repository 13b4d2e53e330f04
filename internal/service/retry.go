package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"portfolio-server/internal/model"
)

// withRetries выполняет call, повторяя его только после сигналов лимита
// (429, RESOURCE_EXHAUSTED, временные 5xx). Задержки растут экспоненциально:
// baseDelay, 2*baseDelay, 4*baseDelay... При исчерпании попыток возвращается
// ошибка, оборачивающая model.ErrQuotaExceeded. Невосстановимые ошибки
// возвращаются сразу, без повторов.
func withRetries(ctx context.Context, logger *zap.Logger, maxRetries int, baseDelay time.Duration, call func() (string, error)) (string, error) {
	if maxRetries < 0 {
		maxRetries = 0
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(float64(baseDelay) * math.Pow(2, float64(attempt-1)))
			logger.Warn("Rate limit signal, retrying",
				zap.Int("attempt", attempt),
				zap.Int("max_retries", maxRetries),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)
			MetricsIncrementAIRetry()
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("%w: %v", model.ErrProvider, ctx.Err())
			case <-time.After(delay):
			}
		}

		result, err := call()
		if err == nil {
			return result, nil
		}
		if !isRateLimitSignal(err) {
			return "", err
		}
		lastErr = err
	}

	return "", fmt.Errorf("%w: %v", model.ErrQuotaExceeded, lastErr)
}
