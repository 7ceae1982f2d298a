package pruner

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rickgao/jobportal-notify/internal/metrics"
)

// Target deletes read notifications older than a cutoff.
type Target interface {
	PruneRead(ctx context.Context, cutoff time.Time) (int64, error)
}

// TargetFunc is a function adapter for Target.
type TargetFunc func(ctx context.Context, cutoff time.Time) (int64, error)

func (f TargetFunc) PruneRead(ctx context.Context, cutoff time.Time) (int64, error) {
	return f(ctx, cutoff)
}

// Config holds pruner configuration.
type Config struct {
	Interval time.Duration // Time between passes (default: 1h)
	MaxAge   time.Duration // Read notifications older than this are removed (default: 30d)
	Timeout  time.Duration // Per-pass timeout (default: 1m)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval: time.Hour,
		MaxAge:   30 * 24 * time.Hour,
		Timeout:  time.Minute,
	}
}

// Pruner periodically removes old read notifications.
type Pruner struct {
	cfg    Config
	target Target
	logger *slog.Logger
	now    func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Pruner.
func New(cfg Config, target Target, logger *slog.Logger) *Pruner {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	return &Pruner{
		cfg:    cfg,
		target: target,
		logger: logger,
		now:    time.Now,
	}
}

// Start begins the retention loop.
func (p *Pruner) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.run()

	p.logger.Info("retention pruner started",
		"interval", p.cfg.Interval,
		"max_age", p.cfg.MaxAge,
	)

	return nil
}

// Stop gracefully shuts down the pruner.
func (p *Pruner) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("retention pruner stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run is the main retention loop.
func (p *Pruner) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	// Prune immediately on start.
	p.PruneOnce(p.ctx)

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.PruneOnce(p.ctx)
		}
	}
}

// PruneOnce runs a single pass and returns the number of rows removed.
func (p *Pruner) PruneOnce(ctx context.Context) int64 {
	start := time.Now()
	cutoff := p.now().Add(-p.cfg.MaxAge)

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	n, err := p.target.PruneRead(ctx, cutoff)
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Error("prune failed", "error", err)
		}
		return 0
	}

	metrics.RowsPruned.Add(float64(n))
	p.logger.Info("prune complete",
		"removed", n,
		"cutoff", cutoff,
		"duration", time.Since(start),
	)
	return n
}
