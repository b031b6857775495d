package audit

import (
	"context"
	"errors"
	"sync"
)

// Sink records audit events.
type Sink interface {
	Record(ctx context.Context, event *Event) error
}

// Func adapts a function to Sink.
type Func func(ctx context.Context, event *Event) error

// Record calls f.
func (f Func) Record(ctx context.Context, event *Event) error {
	return f(ctx, event)
}

// Nop discards events.
var Nop Sink = Func(func(context.Context, *Event) error { return nil })

// Multi records every event on each sink, joining failures.
func Multi(sinks ...Sink) Sink {
	return Func(func(ctx context.Context, event *Event) error {
		var errs []error
		for _, sink := range sinks {
			if sink == nil {
				continue
			}
			if err := sink.Record(ctx, event); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}

// Memory keeps events in process memory.
type Memory struct {
	mu     sync.RWMutex
	events []*Event
}

// NewMemory creates a memory sink.
func NewMemory() *Memory {
	return &Memory{}
}

// Record appends event.
func (m *Memory) Record(_ context.Context, event *Event) error {
	if event == nil {
		return nil
	}
	copied := *event
	m.mu.Lock()
	m.events = append(m.events, &copied)
	m.mu.Unlock()
	return nil
}

// Events returns recorded events, optionally restricted to those matching
// every filter.
func (m *Memory) Events(filters ...Filter) []*Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ret := make([]*Event, 0, len(m.events))
outer:
	for _, event := range m.events {
		for _, filter := range filters {
			if !filter(event) {
				continue outer
			}
		}
		ret = append(ret, event)
	}
	return ret
}

// Filter selects events.
type Filter func(event *Event) bool

// ByRun selects events of run id.
func ByRun(id string) Filter {
	return func(event *Event) bool { return event.RunID == id }
}

// ByTask selects events of task id.
func ByTask(id string) Filter {
	return func(event *Event) bool { return event.TaskID == id }
}

// ByKind selects events of kind.
func ByKind(kind Kind) Filter {
	return func(event *Event) bool { return event.Kind == kind }
}
