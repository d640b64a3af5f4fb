package service

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// OccupancyCounter is the store query the sampler polls.
type OccupancyCounter interface {
	CountOpen(ctx context.Context) (int64, error)
}

// OccupancyGauge receives each sample.
type OccupancyGauge interface {
	SetOccupancy(n int64)
}

// OccupancySampler periodically publishes the number of members inside.
// An interval of 0 disables it.
type OccupancySampler struct {
	counter  OccupancyCounter
	gauge    OccupancyGauge
	interval time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewOccupancySampler(c OccupancyCounter, g OccupancyGauge, interval time.Duration, logger *slog.Logger) *OccupancySampler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OccupancySampler{counter: c, gauge: g, interval: interval, logger: logger}
}

// Start samples once immediately, then every interval until ctx is
// cancelled or Stop is called.
func (p *OccupancySampler) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done != nil {
		return
	}
	p.done = make(chan struct{})

	if p.interval <= 0 {
		p.logger.Info("occupancy sampler disabled")
		close(p.done)
		return
	}

	ctx, p.cancel = context.WithCancel(ctx)
	go p.loop(ctx)

	p.logger.Info("occupancy sampler started", "interval", p.interval)
}

// Stop signals the loop to exit and waits for it. Safe to call repeatedly
// and before Start.
func (p *OccupancySampler) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (p *OccupancySampler) loop(ctx context.Context) {
	defer close(p.done)

	p.sample(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.sample(ctx)
		}
	}
}

func (p *OccupancySampler) sample(ctx context.Context) {
	n, err := p.counter.CountOpen(ctx)
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Error("occupancy sample failed", "error", err)
		}
		return
	}
	p.gauge.SetOccupancy(n)
}
