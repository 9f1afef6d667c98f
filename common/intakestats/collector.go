package intakestats

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const flushTimeout = 10 * time.Second

// Collector batches intake counts per data source in memory and writes them
// to Redis on a fixed interval. Safe for concurrent use.
type Collector struct {
	client   *Client
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	pending map[string]*BatchUpdate

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewCollector starts a collector that flushes every interval until Stop.
func NewCollector(client *Client, interval time.Duration, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Collector{
		client:   client,
		interval: interval,
		logger:   logger,
		pending:  make(map[string]*BatchUpdate),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go c.run()
	return c
}

// Record counts one submission for source.
func (c *Collector) Record(source string, accepted bool, clientIP string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	b := c.pending[source]
	if b == nil {
		b = NewBatchUpdate(source)
		c.pending[source] = b
	}
	b.Add(accepted, clientIP)
}

// FlushNow writes everything recorded so far.
func (c *Collector) FlushNow() {
	c.flush()
}

// Stop ends the flush loop. Counts recorded before Stop are flushed once more.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
	<-c.done
}

// Pending returns unflushed submission counts per source.
func (c *Collector) Pending() map[string]int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]int64, len(c.pending))
	for source, b := range c.pending {
		out[source] = b.Accepted + b.Rejected
	}
	return out
}

func (c *Collector) run() {
	defer close(c.done)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.flush()
		case <-c.stop:
			c.flush()
			return
		}
	}
}

// take swaps out the pending batches.
func (c *Collector) take() map[string]*BatchUpdate {
	c.mu.Lock()
	defer c.mu.Unlock()

	taken := c.pending
	c.pending = make(map[string]*BatchUpdate)
	return taken
}

// requeue folds a batch that failed to flush into whatever arrived since.
func (c *Collector) requeue(b *BatchUpdate) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cur, ok := c.pending[b.Source]; ok {
		cur.merge(b)
		return
	}
	c.pending[b.Source] = b
}

func (c *Collector) flush() {
	batches := c.take()
	if len(batches) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	for _, b := range batches {
		if err := c.client.Flush(ctx, b); err != nil {
			c.logger.Error("intake stats flush failed",
				slog.String("data_source", b.Source),
				slog.Int64("accepted", b.Accepted),
				slog.Int64("rejected", b.Rejected),
				slog.String("error", err.Error()))
			c.requeue(b)
		}
	}
}
