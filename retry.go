package wsupervisor

import (
	"math"
	"math/rand"
	"time"
)

// PolicyKind selects the backoff formula a RetryPolicy applies. Grounded on
// the single exponential formula in conn_reconnect_retry_backoff.go's
// ExponentialBackoff, generalized into the four variants spec.md §3/§4.2
// names.
type PolicyKind int

const (
	PolicyLinear PolicyKind = iota
	PolicyEqual
	PolicyRandom
	PolicyExponential
)

// Policy is the pure backoff formula, parameterized per spec.md §4.2:
//
//	Linear{Scale}            -> Scale * attempt
//	Equal{Interval}          -> Interval
//	Random{Min,Max}          -> uniform in [Min, Max]
//	Exponential{Base,Scale}  -> Scale * Base^attempt
type Policy struct {
	Kind PolicyKind

	Scale    time.Duration
	Interval time.Duration
	Min, Max time.Duration
	Base     float64
}

func LinearPolicy(scale time.Duration) Policy {
	return Policy{Kind: PolicyLinear, Scale: scale}
}

func EqualPolicy(interval time.Duration) Policy {
	return Policy{Kind: PolicyEqual, Interval: interval}
}

func RandomPolicy(min, max time.Duration) Policy {
	return Policy{Kind: PolicyRandom, Min: min, Max: max}
}

func ExponentialPolicy(base float64, scale time.Duration) Policy {
	return Policy{Kind: PolicyExponential, Base: base, Scale: scale}
}

func (p Policy) delay(attempt int) time.Duration {
	switch p.Kind {
	case PolicyLinear:
		return p.Scale * time.Duration(attempt)
	case PolicyEqual:
		return p.Interval
	case PolicyRandom:
		if p.Max <= p.Min {
			return p.Min
		}
		span := int64(p.Max - p.Min)
		return p.Min + time.Duration(rand.Int63n(span+1))
	case PolicyExponential:
		factor := math.Pow(p.Base, float64(attempt))
		return time.Duration(float64(p.Scale) * factor)
	default:
		return 0
	}
}

// Filter decides whether a given close (code, reason) should never be
// retried, independent of the attempt count. Grounded on spec.md §4.2 step
// 1 and boundary scenario 3 (filter rejecting an Application close).
type Filter func(code CloseCode, reason CloseReason) bool

// RetryPolicy is the pure decision procedure from spec.md §4.2: given
// (code, reason, attempt), it returns the delay before the next reconnect
// attempt, or ok=false when no retry should happen.
type RetryPolicy struct {
	Policy Policy
	Limits uint32
	Filter Filter
}

// NewRetryPolicy builds a RetryPolicy. filter may be nil.
func NewRetryPolicy(policy Policy, limits uint32, filter Filter) *RetryPolicy {
	return &RetryPolicy{Policy: policy, Limits: limits, Filter: filter}
}

// Retry implements spec.md §4.2's three-step decision:
//  1. filter(code, reason) == true -> no retry.
//  2. attempt > limits -> no retry.
//  3. otherwise, the policy's delay for this attempt.
//
// attempt starts at 1 on the first retry after a connected-then-closed
// transition (spec.md §4.2). limits includes the attempt itself: attempt
// limits+1 is refused.
func (p *RetryPolicy) Retry(code CloseCode, reason CloseReason, attempt int) (time.Duration, bool) {
	if p == nil {
		return 0, false
	}
	if p.Filter != nil && p.Filter(code, reason) {
		return 0, false
	}
	if uint32(attempt) > p.Limits {
		return 0, false
	}
	d := p.Policy.delay(attempt)
	if d < 0 {
		d = 0
	}
	return d, true
}
