package metrics

import (
	"context"
	"log"
)

// Func adapts a function to Sink.
type Func func(ctx context.Context, delta Delta)

// Update calls f.
func (f Func) Update(ctx context.Context, delta Delta) {
	f(ctx, delta)
}

// Multi forwards every delta to each sink.
func Multi(sinks ...Sink) Sink {
	return Func(func(ctx context.Context, delta Delta) {
		for _, sink := range sinks {
			if sink != nil {
				sink.Update(ctx, delta)
			}
		}
	})
}

// LogChanges returns an OnChange callback that logs every snapshot.
func LogChanges(logger *log.Logger) func(Snapshot) {
	if logger == nil {
		logger = log.Default()
	}
	return func(s Snapshot) {
		logger.Printf("metrics: submitted=%d blocked=%d awaiting=%d running=%d completed=%d failed=%d spend=%.4f",
			s.Submitted, s.Blocked, s.Awaiting, s.Running, s.Completed, s.Failed, s.Spend)
	}
}
