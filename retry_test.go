package wsupervisor

import (
	"testing"
	"time"
)

func TestRetryLinearBoundary(t *testing.T) {
	// scale=500ms, limits=3: attempts 1..3 retry with increasing delay,
	// attempt 4 is refused.
	rp := NewRetryPolicy(LinearPolicy(500*time.Millisecond), 3, nil)

	want := []time.Duration{500 * time.Millisecond, time.Second, 1500 * time.Millisecond}
	for i, w := range want {
		d, ok := rp.Retry(AbnormalClosure, ReasonServer{}, i+1)
		if !ok {
			t.Fatalf("attempt %d: want ok=true", i+1)
		}
		if d != w {
			t.Errorf("attempt %d: delay = %s, want %s", i+1, d, w)
		}
	}

	if _, ok := rp.Retry(AbnormalClosure, ReasonServer{}, 4); ok {
		t.Error("attempt 4 exceeds limits=3, want ok=false")
	}
}

func TestRetryExponentialBoundary(t *testing.T) {
	// base=2, scale=250ms, limits=5: delay(n) = 250ms * 2^n.
	rp := NewRetryPolicy(ExponentialPolicy(2, 250*time.Millisecond), 5, nil)

	want := []time.Duration{
		500 * time.Millisecond,
		time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
	}
	for i, w := range want {
		d, ok := rp.Retry(AbnormalClosure, ReasonServer{}, i+1)
		if !ok {
			t.Fatalf("attempt %d: want ok=true", i+1)
		}
		if d != w {
			t.Errorf("attempt %d: delay = %s, want %s", i+1, d, w)
		}
	}
}

func TestRetryFilterRejectsRegardlessOfAttempt(t *testing.T) {
	rejectApplication := func(code CloseCode, _ CloseReason) bool {
		return code.Kind() == KindApplication
	}
	rp := NewRetryPolicy(EqualPolicy(time.Second), 10, rejectApplication)

	if _, ok := rp.Retry(FromRaw(4001), ReasonServer{}, 1); ok {
		t.Error("filter-matched close must never retry, even on the first attempt")
	}

	if _, ok := rp.Retry(AbnormalClosure, ReasonServer{}, 1); !ok {
		t.Error("a close the filter doesn't match should retry normally")
	}
}

func TestRetryNilPolicyNeverRetries(t *testing.T) {
	var rp *RetryPolicy
	if _, ok := rp.Retry(AbnormalClosure, ReasonServer{}, 1); ok {
		t.Error("nil RetryPolicy must never retry")
	}
}

func TestRetryRandomWithinBounds(t *testing.T) {
	rp := NewRetryPolicy(RandomPolicy(100*time.Millisecond, 200*time.Millisecond), 20, nil)
	for attempt := 1; attempt <= 20; attempt++ {
		d, ok := rp.Retry(AbnormalClosure, ReasonServer{}, attempt)
		if !ok {
			t.Fatalf("attempt %d: want ok=true", attempt)
		}
		if d < 100*time.Millisecond || d > 200*time.Millisecond {
			t.Errorf("attempt %d: delay %s out of [100ms,200ms]", attempt, d)
		}
	}
}
