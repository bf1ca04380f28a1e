package transport

import (
	"context"
	"crypto/x509"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// checkRetry classifies one attempt's outcome. Classification depends only
// on the status code or error, never on the attempt number:
//
//	2xx                  success, no retry
//	429, 502, 503, 504   retryable
//	401, 403             auth rejection, handled by the caller's re-auth path
//	500, 501, everything else  terminal, surfaced immediately
//
// Transport-level errors (timeouts, connection resets) are retryable except
// for certificate failures, which will not fix themselves.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			var certErr x509.UnknownAuthorityError
			if errors.As(urlErr.Err, &certErr) {
				return false, err
			}
			if errors.As(urlErr.Err, &x509.HostnameError{}) {
				return false, err
			}
		}
		return true, nil
	}

	return retryableStatus(resp.StatusCode), nil
}

// retryableStatus reports whether a status code marks a transient failure.
func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests, // 429
		http.StatusBadGateway,         // 502
		http.StatusServiceUnavailable, // 503
		http.StatusGatewayTimeout:     // 504
		return true
	}
	return false
}

// backoffWait computes the sleep before retrying attempt attemptNum. The
// exponential component is min * 2^attemptNum capped at max; when the
// response carries a valid Retry-After hint the wait is the larger of the
// two, never smaller than either.
func backoffWait(min, max time.Duration, attemptNum int, resp *http.Response) time.Duration {
	wait := min
	for i := 0; i < attemptNum; i++ {
		wait *= 2
		if wait >= max {
			break
		}
	}
	if wait > max {
		wait = max
	}

	if hint, ok := parseRetryAfter(resp); ok && hint > wait {
		wait = hint
	}

	return wait
}

// parseRetryAfter reads a Retry-After response header in either
// delta-seconds or HTTP-date form. A missing header, an unparsable value or
// a date in the past all degrade to "no hint".
func parseRetryAfter(resp *http.Response) (time.Duration, bool) {
	if resp == nil {
		return 0, false
	}

	value := strings.TrimSpace(resp.Header.Get("Retry-After"))
	if value == "" {
		return 0, false
	}

	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}

	when, err := http.ParseTime(value)
	if err != nil {
		return 0, false
	}

	d := time.Until(when)
	if d <= 0 {
		return 0, false
	}
	return d, true
}
