package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// backoffFor returns base * 2^attempt for a zero-based attempt number.
func backoffFor(base time.Duration, attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	return base << uint(attempt)
}

// sleepCtx waits for d with context cancellation support.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// execute runs the protected dispatch sequence for one logical request:
// gate, rolling window, spacing, round trip, cookie hand-off, then the
// 429 and transport retry policy. Any other status is returned as-is.
func (c *Client) execute(ctx context.Context, req *request) (*Response, error) {
	maxAttempts := c.config.MaxAttempts
	var lastErr error
	var lastClass ErrorClass

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := c.limiter.Acquire(ctx); err != nil {
			return nil, c.cancelled(req, attempt, err)
		}

		resp, err := c.roundTrip(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, c.cancelled(req, attempt+1, ctx.Err())
			}
			requestsTotal.WithLabelValues(req.method, "transport_error").Inc()
			lastErr, lastClass = err, ErrorClassNetwork

			c.logger.Warn().
				Err(err).
				Str("method", req.method).
				Str("endpoint", req.endpoint).
				Int("attempt", attempt+1).
				Bool("timeout", isTimeout(err)).
				Msg("Transport error")
		} else {
			requestsTotal.WithLabelValues(req.method, strconv.Itoa(resp.StatusCode)).Inc()
			c.handOffCookies(resp.Cookies)

			if resp.StatusCode != http.StatusTooManyRequests {
				resp.Attempts = attempt + 1
				if attempt > 0 {
					c.logger.Info().
						Str("method", req.method).
						Str("endpoint", req.endpoint).
						Int("attempt", attempt+1).
						Msg("Request succeeded after retry")
				}
				return resp, nil
			}

			lastErr, lastClass = ErrRateLimited, ErrorClassRateLimit
			opened, err := c.limiter.HandleTooManyRequests(ctx, resp.Header)
			if err != nil {
				return nil, c.cancelled(req, attempt+1, err)
			}
			c.logger.Warn().
				Str("method", req.method).
				Str("endpoint", req.endpoint).
				Int("attempt", attempt+1).
				Bool("opened_gate", opened).
				Msg("429 received")
		}

		// A 429 backs off after every attempt, the last one included. A
		// transport failure on the last attempt propagates immediately.
		if lastClass == ErrorClassNetwork && attempt+1 >= maxAttempts {
			break
		}

		backoff := backoffFor(c.config.BaseBackoff, attempt)
		retriesTotal.WithLabelValues(string(lastClass)).Inc()
		retryBackoffSeconds.WithLabelValues(string(lastClass)).Observe(backoff.Seconds())

		c.logger.Debug().
			Str("error_class", string(lastClass)).
			Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Msg("Retrying request after backoff")

		if err := sleepCtx(ctx, backoff); err != nil {
			return nil, c.cancelled(req, attempt+1, err)
		}
	}

	// All retries exhausted
	retryExhaustedTotal.WithLabelValues(string(lastClass)).Inc()
	c.logger.Error().
		Str("method", req.method).
		Str("endpoint", req.endpoint).
		Str("error_class", string(lastClass)).
		Int("max_attempts", maxAttempts).
		Msg("Retry attempts exhausted")

	apiErr := &APIError{
		Class:    lastClass,
		Method:   req.method,
		Endpoint: req.endpoint,
		Attempts: maxAttempts,
	}
	if lastClass == ErrorClassRateLimit {
		apiErr.StatusCode = http.StatusTooManyRequests
		apiErr.Err = fmt.Errorf("%w: %w after %d attempts", ErrRateLimited, ErrRetryExhausted, maxAttempts)
	} else {
		apiErr.Err = fmt.Errorf("%w: %w after %d attempts: %w", ErrTransport, ErrRetryExhausted, maxAttempts, lastErr)
	}
	return nil, c.fail(apiErr)
}

// cancelled builds the error for a caller whose context ended while waiting.
func (c *Client) cancelled(req *request, attempts int, cause error) error {
	if cause == nil {
		cause = context.Canceled
	}
	c.logger.Debug().
		Str("method", req.method).
		Str("endpoint", req.endpoint).
		Int("attempt", attempts).
		Msg("Context cancelled while waiting")
	return c.fail(&APIError{
		Class:    ErrorClassCancelled,
		Method:   req.method,
		Endpoint: req.endpoint,
		Attempts: attempts,
		Err:      fmt.Errorf("%w: %w", ErrContextCancelled, cause),
	})
}

// fail records the error class and returns err.
func (c *Client) fail(err *APIError) error {
	errorsTotal.WithLabelValues(string(err.Class)).Inc()
	return err
}

// isTimeout reports whether err is a transport timeout.
func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
