package scraper

import (
	"sync/atomic"
	"time"
)

// pacer holds the adaptive delay applied before each request. Every completed
// fetch replaces the delay with its own latency.
type pacer struct {
	delay atomic.Int64
}

func newPacer(initial time.Duration) *pacer {
	p := &pacer{}
	if initial > 0 {
		p.delay.Store(int64(initial))
	}
	return p
}

// Delay returns the current adaptive delay.
func (p *pacer) Delay() time.Duration {
	return time.Duration(p.delay.Load())
}

// Observe records the latency of the most recently completed fetch.
func (p *pacer) Observe(latency time.Duration) {
	if latency < 0 {
		latency = 0
	}
	p.delay.Store(int64(latency))
}
