package httpx

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

type statusErr struct{ code int }

func (e *statusErr) Error() string       { return "status error" }
func (e *statusErr) HTTPStatusCode() int { return e.code }

func TestIsRetryableError(t *testing.T) {
	if IsRetryableError(nil) {
		t.Fatal("nil should not be retryable")
	}
	if !IsRetryableError(context.DeadlineExceeded) {
		t.Fatal("deadline exceeded should be retryable")
	}
	if !IsRetryableError(&statusErr{code: 503}) {
		t.Fatal("503 should be retryable")
	}
	if IsRetryableError(&statusErr{code: 400}) {
		t.Fatal("400 should not be retryable")
	}
	if IsRetryableError(errors.New("boom")) {
		t.Fatal("plain errors should not be retryable")
	}
}

func TestRetryAfterDuration(t *testing.T) {
	resp := &http.Response{Header: http.Header{}}
	resp.Header.Set("Retry-After", "5")
	if d := RetryAfterDuration(resp, 0, time.Minute); d != 5*time.Second {
		t.Fatalf("retry-after = %v, want 5s", d)
	}

	// Header wins over the fallback but never exceeds the cap.
	resp.Header.Set("Retry-After", "600")
	if d := RetryAfterDuration(resp, time.Second, time.Minute); d != time.Minute {
		t.Fatalf("capped retry-after = %v, want 1m", d)
	}

	if d := RetryAfterDuration(nil, 2*time.Second, time.Minute); d != 2*time.Second {
		t.Fatalf("nil response = %v, want the fallback", d)
	}

	resp.Header.Set("Retry-After", "soon")
	if d := RetryAfterDuration(resp, 2*time.Second, time.Minute); d != 2*time.Second {
		t.Fatalf("unparsable header = %v, want the fallback", d)
	}
}

func TestJitterSleepStaysNearBase(t *testing.T) {
	if d := JitterSleep(0); d != 0 {
		t.Fatalf("zero base = %v, want 0", d)
	}
	base := 2 * time.Second
	for i := 0; i < 50; i++ {
		d := JitterSleep(base)
		if d < 1600*time.Millisecond || d > 2400*time.Millisecond {
			t.Fatalf("jittered sleep = %v, want within 20%% of %v", d, base)
		}
	}
}
