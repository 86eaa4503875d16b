package dag

import (
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/calyptra/redgraph/internal/config"
)

// BackoffKind selects how retry delays grow with the attempt number.
type BackoffKind string

const (
	BackoffFixed       BackoffKind = "fixed"
	BackoffLinear      BackoffKind = "linear"
	BackoffExponential BackoffKind = "exponential"
)

// RetryPolicy decides whether a failed attempt is retried and how long to
// wait before the next attempt.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Backoff      BackoffKind
	Increment    time.Duration // Linear step
	Multiplier   float64       // Exponential factor
	Jitter       float64       // Fraction in [0,1] of the capped delay

	// Ordered substring lists, matched case-insensitively. Non-retryable
	// wins over retryable so explicit denial beats optimistic retry.
	NonRetryable []string
	Retryable    []string
}

// DefaultRetryPolicy mirrors the engine's config defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicyFromConfig(config.Default())
}

// RetryPolicyFromConfig builds a policy from the loaded configuration.
func RetryPolicyFromConfig(c *config.Config) RetryPolicy {
	kind := BackoffKind(strings.ToLower(c.Retry.Backoff))
	switch kind {
	case BackoffFixed, BackoffLinear, BackoffExponential:
	default:
		kind = BackoffExponential
	}
	multiplier := c.Retry.Multiplier
	if multiplier <= 0 {
		multiplier = 2.0
	}
	jitter := c.Retry.Jitter
	if jitter < 0 {
		jitter = 0
	}
	if jitter > 1 {
		jitter = 1
	}
	return RetryPolicy{
		MaxAttempts:  c.Retry.MaxAttempts,
		InitialDelay: c.InitialDelay(),
		MaxDelay:     c.MaxDelay(),
		Backoff:      kind,
		Increment:    c.Increment(),
		Multiplier:   multiplier,
		Jitter:       jitter,
		NonRetryable: c.Retry.NonRetryable,
		Retryable:    c.Retry.Retryable,
	}
}

// Delay computes the backoff before the attempt with the given zero-based
// number is retried: the kind-specific delay capped at MaxDelay, plus a
// uniform random jitter in [0, capped*Jitter].
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	var d time.Duration
	switch p.Backoff {
	case BackoffLinear:
		d = p.InitialDelay + time.Duration(attempt)*p.Increment
	case BackoffExponential:
		d = time.Duration(float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt)))
	default:
		d = p.InitialDelay
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	if p.Jitter > 0 {
		d += time.Duration(rand.Float64() * p.Jitter * float64(d))
	}
	return d
}

// IsRetryable classifies an error message. The non-retryable list is checked
// first and any match forces false; then the retryable list, any match forcing
// true. Unknown errors default to true — they are optimistically retried,
// bounded by MaxAttempts.
func (p RetryPolicy) IsRetryable(errText string) bool {
	lower := strings.ToLower(errText)
	for _, s := range p.NonRetryable {
		if s != "" && strings.Contains(lower, strings.ToLower(s)) {
			return false
		}
	}
	for _, s := range p.Retryable {
		if s != "" && strings.Contains(lower, strings.ToLower(s)) {
			return true
		}
	}
	return true
}
