package reliability

import "time"

// IsRetryableHTTPStatus reports whether an upstream HTTP status warrants a
// retry: rate limiting or any server-class failure. Client errors are final.
func IsRetryableHTTPStatus(code int) bool {
	if code == 429 {
		return true
	}
	return code >= 500 && code <= 599
}

// IsRetryableCloseCode classifies websocket close codes from the realtime
// channel. Normal closure and policy violations are final.
func IsRetryableCloseCode(code int) bool {
	switch code {
	case 1006, 1011, 1012, 1013, 1014:
		return true
	default:
		return false
	}
}

// Backoff computes the delay before the given retry attempt: base for the
// first retry, doubling each attempt, capped.
func Backoff(attempt int, base, cap time.Duration) time.Duration {
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= cap {
			return cap
		}
	}
	return d
}
