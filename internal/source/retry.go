package source

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/goran-ethernal/ChainProcessor/pkg/config"
)

// retryableError checks if an error should trigger a retry.
func retryableError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}

	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusTooManyRequests || httpErr.StatusCode >= http.StatusInternalServerError
	}

	errStr := strings.ToLower(err.Error())
	for _, marker := range []string{
		"timeout", "deadline exceeded",
		"too many requests", "rate limit",
		"bad gateway", "service unavailable",
		"connection pool", "no available connection",
	} {
		if strings.Contains(errStr, marker) {
			return true
		}
	}

	return false
}

// calculateBackoff computes the backoff before the given attempt, with ±25% jitter.
func calculateBackoff(attempt int, cfg *config.RetryConfig) time.Duration {
	if attempt <= 1 {
		return 0
	}

	backoff := float64(cfg.InitialBackoff.Duration) * math.Pow(cfg.BackoffMultiplier, float64(attempt-2))
	backoff = math.Min(backoff, float64(cfg.MaxBackoff.Duration))

	jitterRange := backoff * 0.25
	backoff += (rand.Float64() * 2 * jitterRange) - jitterRange

	return time.Duration(math.Max(backoff, 0))
}

// retryWithBackoff runs fn until it succeeds, fails with a non-retryable error or
// runs out of attempts. Backoff waits are cut short by ctx.
func retryWithBackoff(ctx context.Context, cfg *config.RetryConfig, operation string, fn func() error) error {
	if cfg == nil || cfg.MaxAttempts <= 1 {
		return fn()
	}

	var lastErr error
	startTime := time.Now()

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("context cancelled before attempt %d: %w", attempt, err)
		}

		if attempt > 1 {
			select {
			case <-time.After(calculateBackoff(attempt, cfg)):
			case <-ctx.Done():
				return fmt.Errorf("context cancelled during backoff (attempt %d/%d): %w",
					attempt, cfg.MaxAttempts, ctx.Err())
			}
			RetryInc(operation)
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !retryableError(err) {
			return fmt.Errorf("non-retryable error on attempt %d/%d: %w", attempt, cfg.MaxAttempts, err)
		}
	}

	return fmt.Errorf("all %d attempts failed after %v (last error: %w)",
		cfg.MaxAttempts, time.Since(startTime), lastErr)
}
