package progress

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

const defaultInterval = 5 * time.Second

// Stats are cumulative counts for a run.
type Stats struct {
	Attempted    int
	Uploaded     int
	Failed       int
	TotalLatency time.Duration
}

// AvgLatencyMs is the mean insert latency of uploaded records.
func (s Stats) AvgLatencyMs() float64 {
	if s.Uploaded == 0 {
		return 0
	}
	return float64(s.TotalLatency) / float64(s.Uploaded) / float64(time.Millisecond)
}

// Counter is updated by the import loop and read by Run.
type Counter struct {
	mu sync.Mutex
	s  Stats
}

// Record adds one attempted record.
func (c *Counter) Record(ok bool, latency time.Duration) {
	c.mu.Lock()
	c.s.Attempted++
	if ok {
		c.s.Uploaded++
		c.s.TotalLatency += latency
	} else {
		c.s.Failed++
	}
	c.mu.Unlock()
}

func (c *Counter) Snapshot() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.s
}

// Run logs progress every interval until ctx is done. total is the size of
// the record collection.
func Run(ctx context.Context, logger *log.Logger, c *Counter, total int, interval time.Duration) {
	if interval <= 0 {
		interval = defaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	var prev Stats
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		cur := c.Snapshot()
		Report(logger, prev, cur, total)
		prev = cur
	}
}

// Report logs the interval delta between prev and cur and the cumulative totals.
func Report(logger *log.Logger, prev, cur Stats, total int) {
	delta := Stats{
		Attempted:    cur.Attempted - prev.Attempted,
		Uploaded:     cur.Uploaded - prev.Uploaded,
		Failed:       cur.Failed - prev.Failed,
		TotalLatency: cur.TotalLatency - prev.TotalLatency,
	}
	logger.Infof("Progress (this interval): %d attempted, %d uploaded, %d failed, avg latency %.2f ms",
		delta.Attempted, delta.Uploaded, delta.Failed, delta.AvgLatencyMs())
	logger.Infof("Progress (cumulative): %d/%d attempted, %d uploaded, %d failed, avg latency %.2f ms",
		cur.Attempted, total, cur.Uploaded, cur.Failed, cur.AvgLatencyMs())
}
