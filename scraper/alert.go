package scraper

import (
	"context"
	"io"
	"os"
	"time"
)

// Alerter signals an operator that the session aborted.
type Alerter interface {
	Alert(ctx context.Context)
}

// AlerterFunc adapts a function to Alerter.
type AlerterFunc func(ctx context.Context)

// Alert calls f.
func (f AlerterFunc) Alert(ctx context.Context) { f(ctx) }

// BellAlerter rings the terminal bell Count times, Interval apart.
type BellAlerter struct {
	Out      io.Writer
	Count    int
	Interval time.Duration
}

// NewBellAlerter writes to stderr.
func NewBellAlerter(count int, interval time.Duration) *BellAlerter {
	return &BellAlerter{Out: os.Stderr, Count: count, Interval: interval}
}

// Alert implements Alerter. It returns early if ctx is cancelled.
func (b *BellAlerter) Alert(ctx context.Context) {
	out := b.Out
	if out == nil {
		out = os.Stderr
	}
	for i := 0; i < b.Count; i++ {
		if i > 0 && b.Interval > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(b.Interval):
			}
		}
		_, _ = io.WriteString(out, "\a")
	}
}

type nopAlerter struct{}

func (nopAlerter) Alert(context.Context) {}
