package github

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit/github_primary_ratelimit"
	gh "github.com/google/go-github/v82/github"

	"github.com/ericfisherdev/wpdispatch/internal/domain/port/driven"
)

// rateLimitRetries is the number of additional attempts made after a primary
// or secondary rate limit response.
const rateLimitRetries = 2

// call runs fn under the rate-limit retry policy and converts any final
// failure into a *driven.APIError:
//   - primary limits (*gh.RateLimitError, or the transport's
//     *github_primary_ratelimit.RateLimitReachedError) and secondary limits
//     (*gh.AbuseRateLimitError) are retried up to rateLimitRetries times, waiting the delay
//     GitHub suggests, capped at c.maxWait;
//   - a 429 response is never retried;
//   - every other error is returned after the first attempt.
func (c *Client) call(ctx context.Context, endpoint string, fn func() (*gh.Response, error)) error {
	var lastResp *gh.Response

	err := retry.Do(
		func() error {
			resp, err := fn()
			lastResp = resp
			logRateLimit(resp, endpoint)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(rateLimitRetries+1),
		retry.LastErrorOnly(true),
		retry.RetryIf(isRetryableRateLimit),
		retry.DelayType(func(_ uint, err error, _ *retry.Config) time.Duration {
			return rateLimitDelay(err, c.maxWait)
		}),
		retry.OnRetry(func(n uint, err error) {
			if !isRetryableRateLimit(err) {
				return
			}
			slog.Warn("github rate limit hit",
				"endpoint", endpoint,
				"attempt", n+1,
				"wait", rateLimitDelay(err, c.maxWait),
				"error", err,
			)
		}),
	)
	if err == nil {
		return nil
	}

	return toAPIError(err, lastResp)
}

// isRetryableRateLimit reports whether err is a rate limit signal that the
// policy retries. A 429 status is excluded regardless of its error type.
func isRetryableRateLimit(err error) bool {
	var reached *github_primary_ratelimit.RateLimitReachedError
	if errors.As(err, &reached) {
		return statusOf(reached.Response) != http.StatusTooManyRequests
	}

	var primary *gh.RateLimitError
	if errors.As(err, &primary) {
		return statusOf(primary.Response) != http.StatusTooManyRequests
	}

	var secondary *gh.AbuseRateLimitError
	if errors.As(err, &secondary) {
		return statusOf(secondary.Response) != http.StatusTooManyRequests
	}

	return false
}

// isRateLimit reports whether err is any rate limit signal, retryable or not.
func isRateLimit(err error) bool {
	var reached *github_primary_ratelimit.RateLimitReachedError
	var primary *gh.RateLimitError
	var secondary *gh.AbuseRateLimitError
	return errors.As(err, &reached) || errors.As(err, &primary) || errors.As(err, &secondary)
}

// rateLimitDelay returns the wait GitHub asks for, clamped to [0, maxWait].
// Primary limits wait until the quota resets; secondary limits honour Retry-After.
func rateLimitDelay(err error, maxWait time.Duration) time.Duration {
	var d time.Duration

	var reached *github_primary_ratelimit.RateLimitReachedError
	var primary *gh.RateLimitError
	var secondary *gh.AbuseRateLimitError
	switch {
	case errors.As(err, &reached):
		if reached.ResetTime != nil {
			d = time.Until(*reached.ResetTime)
		}
	case errors.As(err, &primary):
		d = time.Until(primary.Rate.Reset.Time)
	case errors.As(err, &secondary):
		d = secondary.GetRetryAfter()
	}

	if d < 0 {
		return 0
	}
	if d > maxWait {
		return maxWait
	}
	return d
}

// toAPIError wraps err with the HTTP status of the last response seen.
func toAPIError(err error, lastResp *gh.Response) *driven.APIError {
	apiErr := &driven.APIError{
		Message:     err.Error(),
		RateLimited: isRateLimit(err),
		Err:         err,
	}

	var ghErr *gh.ErrorResponse
	if errors.As(err, &ghErr) {
		if ghErr.Message != "" {
			apiErr.Message = ghErr.Message
		}
		apiErr.StatusCode = statusOf(ghErr.Response)
	}

	var reached *github_primary_ratelimit.RateLimitReachedError
	if errors.As(err, &reached) {
		apiErr.Message = "primary rate limit reached"
		apiErr.StatusCode = statusOf(reached.Response)
	}
	if apiErr.StatusCode == 0 && lastResp != nil && lastResp.Response != nil {
		apiErr.StatusCode = lastResp.StatusCode
	}
	if apiErr.StatusCode == http.StatusTooManyRequests {
		apiErr.RateLimited = true
	}

	return apiErr
}

func statusOf(resp *http.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}
