package reliability

import (
	"testing"
	"time"
)

func TestIsRetryableHTTPStatus(t *testing.T) {
	cases := []struct {
		code int
		want bool
	}{
		{200, false},
		{400, false},
		{404, false},
		{429, true},
		{500, true},
		{503, true},
		{599, true},
		{600, false},
	}
	for _, tc := range cases {
		if got := IsRetryableHTTPStatus(tc.code); got != tc.want {
			t.Fatalf("IsRetryableHTTPStatus(%d) = %v, want %v", tc.code, got, tc.want)
		}
	}
}

func TestIsRetryableCloseCode(t *testing.T) {
	if IsRetryableCloseCode(1000) {
		t.Fatal("normal closure must not be retryable")
	}
	if !IsRetryableCloseCode(1011) {
		t.Fatal("server error close should be retryable")
	}
}

func TestBackoffDoubles(t *testing.T) {
	base := 2 * time.Second
	capDur := time.Minute
	if got := Backoff(0, base, capDur); got != base {
		t.Fatalf("attempt 0 = %v, want %v", got, base)
	}
	if got := Backoff(1, base, capDur); got != 2*base {
		t.Fatalf("attempt 1 = %v, want %v", got, 2*base)
	}
	if got := Backoff(2, base, capDur); got != 4*base {
		t.Fatalf("attempt 2 = %v, want %v", got, 4*base)
	}
}

func TestBackoffCap(t *testing.T) {
	if got := Backoff(20, 100*time.Millisecond, 700*time.Millisecond); got != 700*time.Millisecond {
		t.Fatalf("capped backoff = %v", got)
	}
}
