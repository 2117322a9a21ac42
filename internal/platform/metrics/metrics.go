package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

type Collector struct {
	totalRequests   uint64
	errorRequests   uint64
	clientErrors    uint64
	conflicts       uint64
	totalDurationMs uint64

	mu      sync.Mutex
	exports map[string]uint64
}

func New() *Collector {
	return &Collector{exports: map[string]uint64{}}
}

func (c *Collector) Record(status int, duration time.Duration) {
	atomic.AddUint64(&c.totalRequests, 1)
	switch {
	case status >= 500:
		atomic.AddUint64(&c.errorRequests, 1)
	case status == 409:
		atomic.AddUint64(&c.conflicts, 1)
		atomic.AddUint64(&c.clientErrors, 1)
	case status >= 400:
		atomic.AddUint64(&c.clientErrors, 1)
	}
	atomic.AddUint64(&c.totalDurationMs, uint64(duration.Milliseconds()))
}

// RecordExport counts exports by outcome, e.g. "csv.completed" or "async.cancelled".
func (c *Collector) RecordExport(outcome string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.exports[outcome]++
}

func (c *Collector) Snapshot() map[string]any {
	total := atomic.LoadUint64(&c.totalRequests)
	errs := atomic.LoadUint64(&c.errorRequests)
	clientErrs := atomic.LoadUint64(&c.clientErrors)
	conflicts := atomic.LoadUint64(&c.conflicts)
	totalMs := atomic.LoadUint64(&c.totalDurationMs)
	avg := float64(0)
	if total > 0 {
		avg = float64(totalMs) / float64(total)
	}

	c.mu.Lock()
	exports := make(map[string]uint64, len(c.exports))
	for k, v := range c.exports {
		exports[k] = v
	}
	c.mu.Unlock()

	return map[string]any{
		"requestsTotal":     total,
		"errorsTotal":       errs,
		"clientErrorsTotal": clientErrs,
		"conflictsTotal":    conflicts,
		"avgDurationMs":     avg,
		"totalDurationMs":   totalMs,
		"exportsTotal":      exports,
	}
}
