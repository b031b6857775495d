// Package clock is the single time source for runs, stages and metrics.
package clock

import "time"

// NowFunc is replaced in tests to pin timestamps and rate windows.
var NowFunc = time.Now

// Now returns NowFunc().
func Now() time.Time { return NowFunc() }

// Since returns the duration elapsed from t to Now.
func Since(t time.Time) time.Duration { return Now().Sub(t) }

// Within reports whether t falls inside the trailing window ending at Now.
// A non-positive window accepts every t.
func Within(t time.Time, window time.Duration) bool {
	if window <= 0 {
		return true
	}
	return Since(t) < window
}
