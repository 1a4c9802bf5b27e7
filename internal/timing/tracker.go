package timing

import (
	"context"
	"sort"
	"sync"
	"time"
)

type timingKey struct{}

type TimingInfo struct {
	Operation string
	StartTime time.Time
}

// Tracker records how long named operations take. It is safe for concurrent
// use by the batch workers.
type Tracker struct {
	timings map[string][]time.Duration
	mu      sync.RWMutex
	enabled bool
	now     func() time.Time
}

func NewTracker() *Tracker {
	return &Tracker{
		timings: make(map[string][]time.Duration),
		enabled: true,
		now:     time.Now,
	}
}

// StartTiming returns a context carrying the start of operation; pass it to
// EndTiming once the operation completes.
func (tt *Tracker) StartTiming(ctx context.Context, operation string) context.Context {
	if !tt.isEnabled() {
		return ctx
	}

	return context.WithValue(ctx, timingKey{}, TimingInfo{
		Operation: operation,
		StartTime: tt.now(),
	})
}

// EndTiming records the elapsed time of the operation started on ctx and
// returns it.
func (tt *Tracker) EndTiming(ctx context.Context) time.Duration {
	if !tt.isEnabled() {
		return 0
	}

	timingInfo, ok := ctx.Value(timingKey{}).(TimingInfo)
	if !ok {
		return 0
	}

	duration := tt.now().Sub(timingInfo.StartTime)

	tt.mu.Lock()
	tt.timings[timingInfo.Operation] = append(tt.timings[timingInfo.Operation], duration)
	tt.mu.Unlock()

	return duration
}

// Track times fn under operation.
func (tt *Tracker) Track(ctx context.Context, operation string, fn func(context.Context) error) error {
	tctx := tt.StartTiming(ctx, operation)
	err := fn(tctx)
	tt.EndTiming(tctx)
	return err
}

func (tt *Tracker) GetTimings(operation string) []time.Duration {
	tt.mu.RLock()
	defer tt.mu.RUnlock()

	timings := tt.timings[operation]
	if timings == nil {
		return nil
	}

	result := make([]time.Duration, len(timings))
	copy(result, timings)
	return result
}

func (tt *Tracker) GetAverageTime(operation string) time.Duration {
	timings := tt.GetTimings(operation)
	if len(timings) == 0 {
		return 0
	}

	var total time.Duration
	for _, duration := range timings {
		total += duration
	}

	return total / time.Duration(len(timings))
}

// Summary returns the average duration in milliseconds per operation, ready
// to be attached to a log entry.
func (tt *Tracker) Summary() map[string]interface{} {
	tt.mu.RLock()
	operations := make([]string, 0, len(tt.timings))
	for operation := range tt.timings {
		operations = append(operations, operation)
	}
	tt.mu.RUnlock()
	sort.Strings(operations)

	summary := make(map[string]interface{}, len(operations))
	for _, operation := range operations {
		summary[operation+"_avg_ms"] = float64(tt.GetAverageTime(operation).Microseconds()) / 1000
	}
	return summary
}

func (tt *Tracker) SetEnabled(enabled bool) {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	tt.enabled = enabled
}

func (tt *Tracker) isEnabled() bool {
	tt.mu.RLock()
	defer tt.mu.RUnlock()
	return tt.enabled
}

func (tt *Tracker) Reset(operation string) {
	tt.mu.Lock()
	defer tt.mu.Unlock()

	if operation == "" {
		tt.timings = make(map[string][]time.Duration)
	} else {
		delete(tt.timings, operation)
	}
}
