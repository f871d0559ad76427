package transcribe

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync/atomic"
	"time"
)

type failureClass int

const (
	failureOther failureClass = iota
	failureOverload
	failureTimeout
)

func (c failureClass) String() string {
	switch c {
	case failureOverload:
		return "overload"
	case failureTimeout:
		return "timeout"
	default:
		return "other"
	}
}

// classify inspects the error text because the remote SDK does not expose a
// stable typed error for capacity problems.
func classify(err error) failureClass {
	if err == nil {
		return failureOther
	}
	msg := err.Error()
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(msg, "503"), strings.Contains(lower, "overload"), strings.Contains(lower, "unavailable"):
		return failureOverload
	case strings.Contains(msg, "504"), strings.Contains(lower, "deadline"), strings.Contains(lower, "timeout"):
		return failureTimeout
	default:
		return failureOther
	}
}

// backoffDelay returns the wait before the attempt following attempt (0-based).
func (o *Orchestrator) backoffDelay(class failureClass, attempt int) time.Duration {
	base := o.opts.InitialDelay.Seconds()
	var seconds float64
	switch class {
	case failureOverload:
		seconds = base*math.Pow(3, float64(attempt)) + o.uniform(2, 6)
	case failureTimeout:
		seconds = base*math.Pow(2, float64(attempt)) + o.uniform(1, 4)
	default:
		seconds = base*math.Pow(2, float64(attempt)) + o.uniform(0, 2)
	}
	return time.Duration(seconds * float64(time.Second))
}

func (o *Orchestrator) uniform(lo, hi float64) float64 {
	return lo + o.randFloat()*(hi-lo)
}

func (o *Orchestrator) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if ctx == nil {
		return errors.New("transcribe: nil context")
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if o.sleeper != nil {
		o.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// regionRotator hands out regions round-robin across all workers.
type regionRotator struct {
	regions []string
	cursor  atomic.Uint64
}

func newRegionRotator(regions []string) *regionRotator {
	return &regionRotator{regions: append([]string(nil), regions...)}
}

func (r *regionRotator) next() string {
	if r == nil || len(r.regions) == 0 {
		return ""
	}
	i := r.cursor.Add(1) - 1
	return r.regions[i%uint64(len(r.regions))]
}
