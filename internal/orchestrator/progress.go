package orchestrator

import (
	"fmt"
	"time"
)

// progressTracker reports throughput/ETA over a fixed-size list of
// archives, adapted from the teacher's byte-oriented
// internal/pipeline.ProgressTracker to count archives instead of
// bytes — the unit this orchestrator actually streams is "one archive
// fully ingested", not a byte offset into a single file.
type progressTracker struct {
	total       int64
	startTime   time.Time
	description string
}

func newProgressTracker(total int64, description string) *progressTracker {
	return &progressTracker{total: total, startTime: time.Now(), description: description}
}

type progress struct {
	Current     int64
	Total       int64
	Percentage  float64
	Elapsed     time.Duration
	ETA         time.Duration
	Throughput  float64
	Description string
}

func (p *progressTracker) calculate(processed int64) progress {
	elapsed := time.Since(p.startTime)

	var percentage float64
	var eta time.Duration
	if p.total > 0 {
		percentage = float64(processed) / float64(p.total) * 100
		if percentage > 0 && percentage < 100 && elapsed.Seconds() > 0 {
			perArchive := elapsed.Seconds() / float64(processed)
			remaining := p.total - processed
			eta = time.Duration(perArchive*float64(remaining)) * time.Second
		}
	}

	var throughput float64
	if elapsed.Seconds() > 0 {
		throughput = float64(processed) / elapsed.Seconds()
	}

	return progress{
		Current:     processed,
		Total:       p.total,
		Percentage:  percentage,
		Elapsed:     elapsed.Round(time.Second),
		ETA:         eta.Round(time.Second),
		Throughput:  throughput,
		Description: p.description,
	}
}

func formatETA(d time.Duration) string {
	if d <= 0 {
		return "calculating..."
	}
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

func formatThroughput(perSec float64) string {
	if perSec >= 1000 {
		return fmt.Sprintf("%.1fK/s", perSec/1000)
	}
	return fmt.Sprintf("%.2f/s", perSec)
}
