package metrics

import (
	"context"
	"time"
)

// Gauge sampling cadence and the deadline for a single round.
const (
	sampleInterval = 15 * time.Second
	sampleTimeout  = 5 * time.Second
)

// StreamStats reports the depth of the command stream
type StreamStats interface {
	Depth(ctx context.Context) (length, pending int64, err error)
}

// JournalStats reports effect journal entry counts
type JournalStats interface {
	Counts() (open, completed int, err error)
}

// Collector keeps the stream and journal gauges current by sampling
// both sources on a fixed cadence.
type Collector struct {
	stream  StreamStats
	journal JournalStats
	stopCh  chan struct{}
}

// NewCollector builds a collector over the given sources. Either may be
// nil, in which case its gauges are never written.
func NewCollector(stream StreamStats, journal JournalStats) *Collector {
	return &Collector{
		stream:  stream,
		journal: journal,
		stopCh:  make(chan struct{}),
	}
}

// Start launches the sampling loop. The first round runs immediately so
// the gauges are populated before the first scrape.
func (c *Collector) Start() {
	go c.run()
}

// Stop terminates the sampling loop.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) run() {
	ticker := time.NewTicker(sampleInterval)
	defer ticker.Stop()

	c.sample()
	for {
		select {
		case <-ticker.C:
			c.sample()
		case <-c.stopCh:
			return
		}
	}
}

// sample runs one round against both sources under a shared deadline.
// A failed read leaves the affected gauges at their last sampled value.
func (c *Collector) sample() {
	ctx, cancel := context.WithTimeout(context.Background(), sampleTimeout)
	defer cancel()

	if c.stream != nil {
		c.sampleStream(ctx)
	}
	if c.journal != nil {
		c.sampleJournal()
	}
}

func (c *Collector) sampleStream(ctx context.Context) {
	length, pending, err := c.stream.Depth(ctx)
	if err != nil {
		return
	}
	StreamLength.Set(float64(length))
	StreamPending.Set(float64(pending))
}

func (c *Collector) sampleJournal() {
	open, completed, err := c.journal.Counts()
	if err != nil {
		return
	}
	JournalEntries.WithLabelValues("open").Set(float64(open))
	JournalEntries.WithLabelValues("completed").Set(float64(completed))
}
