package backend

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"
	"time"
)

const (
	// DefaultMaxRetries is the number of retries after the first attempt.
	DefaultMaxRetries = 3
	// DefaultRetryDelay is the base delay between attempts.
	DefaultRetryDelay = 500 * time.Millisecond
)

// Retry configures transient failure retries.
type Retry struct {
	// Type is "fixed", "exponential" or "none".
	Type       string        `json:"type,omitempty" yaml:"type,omitempty"`
	MaxRetries int           `json:"maxRetries,omitempty" yaml:"maxRetries,omitempty"`
	Delay      time.Duration `json:"delay,omitempty" yaml:"delay,omitempty"`
	Multiplier float64       `json:"multiplier,omitempty" yaml:"multiplier,omitempty"`
	MaxDelay   time.Duration `json:"maxDelay,omitempty" yaml:"maxDelay,omitempty"`
}

// shouldRetry returns (retry?, delay) for the given number of completed retries.
func (r *Retry) shouldRetry(attempts int) (bool, time.Duration) {
	if strings.ToLower(r.Type) == "none" {
		return false, 0
	}
	max := r.MaxRetries
	if max == 0 {
		max = DefaultMaxRetries
	}
	if attempts >= max {
		return false, 0
	}
	baseDelay := r.Delay
	if baseDelay == 0 {
		baseDelay = DefaultRetryDelay
	}
	switch strings.ToLower(r.Type) {
	case "exponential":
		mult := r.Multiplier
		if mult <= 1 {
			mult = 2
		}
		delay := time.Duration(float64(baseDelay) * math.Pow(mult, float64(attempts)))
		if r.MaxDelay > 0 && delay > r.MaxDelay {
			delay = r.MaxDelay
		}
		return true, delay
	default:
		return true, baseDelay
	}
}

type retrying struct {
	adapter Adapter
	retry   Retry
}

func (r *retrying) Name() string {
	return NameOf(r.adapter, "")
}

// Invoke calls the wrapped adapter, retrying transient failures. Once retries
// are exhausted the last failure is returned as permanent, so callers never
// observe a transient error.
func (r *retrying) Invoke(ctx context.Context, request *Request) (*Response, error) {
	for attempts := 0; ; attempts++ {
		response, err := r.adapter.Invoke(ctx, request)
		if err == nil || !IsTransient(err) {
			return response, err
		}
		retry, delay := r.retry.shouldRetry(attempts)
		if !retry {
			return nil, &Error{Kind: KindPermanent, Message: fmt.Sprintf("retries exhausted after %d attempts", attempts+1), Err: err}
		}
		log.Printf("backend %v: transient failure, retrying in %v: %v", r.Name(), delay, err)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, Permanent(fmt.Errorf("retry interrupted: %w", ctx.Err()))
		case <-timer.C:
		}
	}
}

// WithRetry wraps adapter with transient failure retries.
func WithRetry(adapter Adapter, retry Retry) Adapter {
	return &retrying{adapter: adapter, retry: retry}
}
