package lifecycle

import (
	"context"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"
)

// ChoreConfig contains configurable values for the purge chore.
type ChoreConfig struct {
	Enabled  bool
	Schedule string
}

// Chore periodically purges expired trash entries.
type Chore struct {
	log     *zap.Logger
	manager *Manager
	config  ChoreConfig

	cron      *cron.Cron
	done      chan struct{}
	closeOnce sync.Once
}

// NewChore creates a purge chore. The schedule accepts standard cron
// expressions and descriptors such as @hourly or @every 10m.
func NewChore(log *zap.Logger, manager *Manager, config ChoreConfig) (*Chore, error) {
	c := &Chore{
		log:     log,
		manager: manager,
		config:  config,
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		done:    make(chan struct{}),
	}
	if !config.Enabled {
		return c, nil
	}

	schedule, err := cron.ParseStandard(config.Schedule)
	if err != nil {
		return nil, errs.New("invalid purge schedule %q: %v", config.Schedule, err)
	}
	c.cron.Schedule(schedule, cron.FuncJob(func() {
		// Errors are logged by RunOnce.
		_, _ = c.RunOnce(context.Background())
	}))
	return c, nil
}

// Run starts the chore and blocks until ctx is canceled or Close is called.
func (c *Chore) Run(ctx context.Context) (err error) {
	defer mon.Task()(&ctx)(&err)

	if !c.config.Enabled {
		c.log.Info("purge chore disabled")
		return nil
	}

	c.log.Info("purge chore started", zap.String("schedule", c.config.Schedule))
	c.cron.Start()
	select {
	case <-ctx.Done():
	case <-c.done:
	}
	<-c.cron.Stop().Done()
	return nil
}

// RunOnce runs a single purge pass.
func (c *Chore) RunOnce(ctx context.Context) (n int, err error) {
	defer mon.Task()(&ctx)(&err)

	n, err = c.manager.AutoPurge(ctx)
	if err != nil {
		c.log.Error("auto-purge failed", zap.Int("purged", n), zap.Error(err))
		return n, err
	}
	c.log.Debug("auto-purge pass finished", zap.Int("purged", n))
	return n, nil
}

// Close stops the scheduler and waits for a running pass to finish.
func (c *Chore) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	<-c.cron.Stop().Done()
	return nil
}
