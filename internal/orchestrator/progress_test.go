package orchestrator

import (
	"testing"
	"time"
)

func TestProgressTrackerCalculate(t *testing.T) {
	tracker := &progressTracker{total: 100, startTime: time.Now().Add(-10 * time.Second), description: "ingest"}

	p := tracker.calculate(50)
	if p.Current != 50 || p.Total != 100 {
		t.Fatalf("got current=%d total=%d, want 50/100", p.Current, p.Total)
	}
	if p.Percentage != 50 {
		t.Fatalf("got percentage=%v, want 50", p.Percentage)
	}
	if p.Throughput <= 0 {
		t.Fatalf("expected positive throughput, got %v", p.Throughput)
	}
}

func TestProgressTrackerZeroTotal(t *testing.T) {
	tracker := &progressTracker{total: 0, startTime: time.Now(), description: "ingest"}
	p := tracker.calculate(0)
	if p.Percentage != 0 {
		t.Fatalf("expected 0%% for a zero-total tracker, got %v", p.Percentage)
	}
}

func TestFormatETA(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want string
	}{
		{0, "calculating..."},
		{-5 * time.Second, "calculating..."},
		{45 * time.Second, "45s"},
		{90 * time.Second, "1m 30s"},
		{90 * time.Minute, "1h 30m 0s"},
	}
	for _, c := range cases {
		if got := formatETA(c.d); got != c.want {
			t.Errorf("formatETA(%v) = %q, want %q", c.d, got, c.want)
		}
	}
}

func TestFormatThroughput(t *testing.T) {
	if got := formatThroughput(5); got != "5.00/s" {
		t.Errorf("formatThroughput(5) = %q, want 5.00/s", got)
	}
	if got := formatThroughput(2500); got != "2.5K/s" {
		t.Errorf("formatThroughput(2500) = %q, want 2.5K/s", got)
	}
}
