// Package metrics keeps aggregated run counters for a single service
// instance. The tracker is owned by the caller and injected into the service;
// nothing here is process-global, so independent services never share counts.
package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/viant/hybrid/internal/clock"
	"github.com/viant/hybrid/model"
)

// Sink receives counter changes.
type Sink interface {
	Update(ctx context.Context, delta Delta)
}

// Delta represents an incremental counter change. Fields are signed so a
// transition can decrement one gauge while incrementing another.
type Delta struct {
	Submitted int
	Blocked   int
	Awaiting  int
	Running   int
	Completed int
	Failed    int
	Spend     float64
	// Target is set when a submission was routed.
	Target model.Target
}

// Snapshot is a read-only copy of the counters.
type Snapshot struct {
	StartedAt time.Time
	Submitted int64
	Blocked   int64
	Awaiting  int64
	Running   int64
	Completed int64
	Failed    int64
	Spend     float64
	ByTarget  map[model.Target]int64
}

// Tracker keeps aggregated counters. It is safe for concurrent use.
type Tracker struct {
	mu        sync.Mutex
	snapshot  Snapshot
	window    time.Duration
	submitted []time.Time
	onChange  func(Snapshot)
}

// Option configures a tracker.
type Option func(*Tracker)

// WithWindow keeps submission timestamps for window so Recent can serve rate
// limits.
func WithWindow(window time.Duration) Option {
	return func(t *Tracker) {
		t.window = window
	}
}

// WithOnChange registers a callback invoked after every update.
func WithOnChange(fn func(Snapshot)) Option {
	return func(t *Tracker) {
		t.onChange = fn
	}
}

// NewTracker creates a tracker.
func NewTracker(opts ...Option) *Tracker {
	ret := &Tracker{snapshot: Snapshot{StartedAt: clock.Now(), ByTarget: map[model.Target]int64{}}}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// Update applies delta. The callback runs outside the critical section with a
// copy taken under the lock.
func (t *Tracker) Update(_ context.Context, d Delta) {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.snapshot.Submitted += int64(d.Submitted)
	t.snapshot.Blocked += int64(d.Blocked)
	t.snapshot.Awaiting += int64(d.Awaiting)
	t.snapshot.Running += int64(d.Running)
	t.snapshot.Completed += int64(d.Completed)
	t.snapshot.Failed += int64(d.Failed)
	t.snapshot.Spend += d.Spend
	if d.Target != "" {
		t.snapshot.ByTarget[d.Target]++
	}
	if d.Submitted > 0 && t.window > 0 {
		now := clock.Now()
		for i := 0; i < d.Submitted; i++ {
			t.submitted = append(t.submitted, now)
		}
		t.prune()
	}
	snapshot := t.copy()
	cb := t.onChange
	t.mu.Unlock()

	if cb != nil {
		cb(snapshot)
	}
}

// Snapshot returns a copy of the counters.
func (t *Tracker) Snapshot() Snapshot {
	if t == nil {
		return Snapshot{}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.copy()
}

// Submitted returns the total number of submitted tasks.
func (t *Tracker) Submitted() int64 {
	return t.Snapshot().Submitted
}

// Spend returns accumulated backend cost.
func (t *Tracker) Spend() float64 {
	return t.Snapshot().Spend
}

// Recent returns submissions within the configured window, or all
// submissions when no window is set.
func (t *Tracker) Recent() int64 {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.window <= 0 {
		return t.snapshot.Submitted
	}
	t.prune()
	return int64(len(t.submitted))
}

func (t *Tracker) prune() {
	index := 0
	for index < len(t.submitted) && !clock.Within(t.submitted[index], t.window) {
		index++
	}
	t.submitted = t.submitted[index:]
}

func (t *Tracker) copy() Snapshot {
	ret := t.snapshot
	ret.ByTarget = make(map[model.Target]int64, len(t.snapshot.ByTarget))
	for k, v := range t.snapshot.ByTarget {
		ret.ByTarget[k] = v
	}
	return ret
}

var _ Sink = (*Tracker)(nil)

type trackerKeyT struct{}

var trackerKey trackerKeyT

// WithTracker embeds tracker in ctx.
func WithTracker(ctx context.Context, tracker *Tracker) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, trackerKey, tracker)
}

// FromContext extracts a tracker embedded with WithTracker.
func FromContext(ctx context.Context) (*Tracker, bool) {
	if ctx == nil {
		return nil, false
	}
	tr, ok := ctx.Value(trackerKey).(*Tracker)
	return tr, ok
}
