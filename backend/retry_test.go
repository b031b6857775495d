package backend

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetry_ShouldRetry(t *testing.T) {
	testCases := []struct {
		name        string
		retry       Retry
		attempts    int
		expectRetry bool
		expectDelay time.Duration
	}{
		{name: "default fixed", retry: Retry{}, attempts: 0, expectRetry: true, expectDelay: DefaultRetryDelay},
		{name: "default exhausted", retry: Retry{}, attempts: DefaultMaxRetries, expectRetry: false},
		{name: "none", retry: Retry{Type: "none"}, attempts: 0, expectRetry: false},
		{name: "exponential", retry: Retry{Type: "exponential", Delay: time.Second, MaxRetries: 5}, attempts: 2, expectRetry: true, expectDelay: 4 * time.Second},
		{name: "exponential capped", retry: Retry{Type: "exponential", Delay: time.Second, Multiplier: 3, MaxDelay: 5 * time.Second, MaxRetries: 5}, attempts: 2, expectRetry: true, expectDelay: 5 * time.Second},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			retry, delay := tc.retry.shouldRetry(tc.attempts)
			assert.Equal(t, tc.expectRetry, retry)
			assert.Equal(t, tc.expectDelay, delay)
		})
	}
}

func TestWithRetry(t *testing.T) {
	testCases := []struct {
		name        string
		failures    []error
		expectCalls int
		expectKind  Kind
	}{
		{name: "success first", expectCalls: 1},
		{name: "transient then success", failures: []error{Transient(errors.New("503"))}, expectCalls: 2},
		{name: "permanent not retried", failures: []error{Permanent(errors.New("bad request"))}, expectCalls: 1, expectKind: KindPermanent},
		{name: "refused not retried", failures: []error{Refused("policy")}, expectCalls: 1, expectKind: KindRefused},
		{
			name:        "exhausted becomes permanent",
			failures:    []error{Transient(errors.New("a")), Transient(errors.New("b")), Transient(errors.New("c"))},
			expectCalls: 3,
			expectKind:  KindPermanent,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			calls := 0
			adapter := Func(func(ctx context.Context, request *Request) (*Response, error) {
				calls++
				if calls <= len(tc.failures) {
					return nil, tc.failures[calls-1]
				}
				return &Response{Output: request.Prompt}, nil
			})
			retrying := WithRetry(adapter, Retry{MaxRetries: 2, Delay: time.Millisecond})
			response, err := retrying.Invoke(context.Background(), &Request{Prompt: "uptime"})
			assert.Equal(t, tc.expectCalls, calls)
			if tc.expectKind == "" {
				require.NoError(t, err)
				assert.Equal(t, "uptime", response.Output)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tc.expectKind, KindOf(err))
			assert.False(t, IsTransient(err))
		})
	}
}

func TestWithRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	adapter := Func(func(ctx context.Context, request *Request) (*Response, error) {
		cancel()
		return nil, Transient(errors.New("busy"))
	})
	_, err := WithRetry(adapter, Retry{Delay: time.Hour}).Invoke(ctx, &Request{})
	require.Error(t, err)
	assert.Equal(t, KindPermanent, KindOf(err))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestKindOf(t *testing.T) {
	testCases := []struct {
		name   string
		err    error
		expect Kind
	}{
		{name: "nil", err: nil, expect: ""},
		{name: "plain", err: errors.New("x"), expect: KindPermanent},
		{name: "deadline", err: context.DeadlineExceeded, expect: KindTimeout},
		{name: "stage timeout", err: Timeout("planning", context.DeadlineExceeded), expect: KindTimeout},
		{name: "wrapped transient", err: errors.Join(errors.New("ctx"), Transient(errors.New("x"))), expect: KindTransient},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expect, KindOf(tc.err))
		})
	}
	assert.ErrorIs(t, Timeout("planning", context.DeadlineExceeded), ErrStageTimeout)
}

type namedAdapter struct{ Func }

func (namedAdapter) Name() string { return "named" }

func TestNameOf(t *testing.T) {
	fn := Func(func(ctx context.Context, request *Request) (*Response, error) { return nil, nil })
	assert.Equal(t, "fallback", NameOf(fn, "fallback"))
	assert.Equal(t, "named", NameOf(namedAdapter{fn}, "fallback"))
	assert.Equal(t, "named", NameOf(WithRetry(namedAdapter{fn}, Retry{}), "fallback"))
	assert.Equal(t, "fallback", NameOf(WithRetry(fn, Retry{}), "fallback"))
}
