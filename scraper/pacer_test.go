package scraper

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"
)

func TestPacer(t *testing.T) {
	p := newPacer(0)
	if p.Delay() != 0 {
		t.Fatalf("initial delay = %v, want 0", p.Delay())
	}

	samples := []time.Duration{120 * time.Millisecond, 40 * time.Millisecond, -time.Second, 3 * time.Second}
	want := []time.Duration{120 * time.Millisecond, 40 * time.Millisecond, 0, 3 * time.Second}
	for i, s := range samples {
		p.Observe(s)
		if got := p.Delay(); got != want[i] {
			t.Fatalf("after sample %d: delay = %v, want %v", i, got, want[i])
		}
	}

	if got := newPacer(250 * time.Millisecond).Delay(); got != 250*time.Millisecond {
		t.Fatalf("initial floor = %v, want 250ms", got)
	}
}

func TestDesktopUserAgentsDeduplicated(t *testing.T) {
	pool := DesktopUserAgents()
	if len(pool) == 0 {
		t.Fatal("empty user agent pool")
	}
	seen := make(map[string]bool, len(pool))
	for _, ua := range pool {
		if seen[ua] {
			t.Fatalf("duplicate user agent %q", ua)
		}
		seen[ua] = true
		if strings.Contains(ua, "Mobile") {
			t.Fatalf("non-desktop user agent %q", ua)
		}
	}
}

func TestHeaderPool(t *testing.T) {
	p := NewHeaderPool("Webmaster: me")
	calls := 0
	p.intn = func(n int) int {
		calls++
		return n - 1
	}
	hdr := p.Headers()
	if got := hdr.Get("Accept"); got != AcceptHeaders[len(AcceptHeaders)-1] {
		t.Fatalf("Accept = %q", got)
	}
	if got := hdr.Get("User-Agent"); got != p.userAgents[len(p.userAgents)-1] {
		t.Fatalf("User-Agent = %q", got)
	}
	if got := hdr.Get("X-Contact-Info"); got != "Webmaster: me" {
		t.Fatalf("X-Contact-Info = %q", got)
	}
	if calls != 2 {
		t.Fatalf("random picks = %d, want 2", calls)
	}
}

func TestBellAlerter(t *testing.T) {
	var buf bytes.Buffer
	a := &BellAlerter{Out: &buf, Count: 3, Interval: time.Millisecond}
	a.Alert(context.Background())
	if buf.String() != "\a\a\a" {
		t.Fatalf("bells = %q, want 3", buf.String())
	}

	buf.Reset()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	(&BellAlerter{Out: &buf, Count: 4, Interval: time.Hour}).Alert(ctx)
	if buf.String() != "\a" {
		t.Fatalf("cancelled alert wrote %q, want a single bell", buf.String())
	}
}
