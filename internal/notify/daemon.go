package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const (
	onlineText  = "Switchyard notifier online"
	offlineText = "Switchyard notifier offline"

	shutdownTimeout = 5 * time.Second
)

// Daemon is the notifier process. It tails the audit log and posts events
// and scheduled digests to every adapter.
type Daemon struct {
	db           *gorm.DB
	adapters     []Adapter
	channel      string
	pollInterval time.Duration
	digest       cron.Schedule
	logger       *zap.Logger
	now          func() time.Time
}

// DaemonOpts holds parameters for creating a new Daemon.
type DaemonOpts struct {
	DB           *gorm.DB
	Adapters     []Adapter
	Channel      string        // default channel for every message
	PollInterval time.Duration // defaults to DefaultPollInterval
	// DigestSchedule is a 5-field cron expression. Empty disables digests.
	DigestSchedule string
	Logger         *zap.Logger
	Now            func() time.Time
}

// NewDaemon creates a Daemon with the given options.
func NewDaemon(opts DaemonOpts) (*Daemon, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("notify: db is required")
	}
	if len(opts.Adapters) == 0 {
		return nil, fmt.Errorf("notify: at least one adapter is required")
	}
	d := &Daemon{
		db:           opts.DB,
		adapters:     opts.Adapters,
		channel:      opts.Channel,
		pollInterval: opts.PollInterval,
		logger:       opts.Logger,
		now:          opts.Now,
	}
	if d.logger == nil {
		d.logger = zap.NewNop()
	}
	if d.now == nil {
		d.now = time.Now
	}
	if opts.DigestSchedule != "" {
		sched, err := ParseSchedule(opts.DigestSchedule)
		if err != nil {
			return nil, err
		}
		d.digest = sched
	}
	return d, nil
}

// Run connects the adapters, then forwards audit events and digests until
// ctx is cancelled. On shutdown it closes every adapter.
func (d *Daemon) Run(ctx context.Context) error {
	for i, a := range d.adapters {
		if err := a.Connect(ctx); err != nil {
			d.closeAdapters(d.adapters[:i])
			return fmt.Errorf("notify: connect: %w", err)
		}
	}
	defer d.closeAdapters(d.adapters)

	watcher, err := NewWatcher(WatcherOpts{DB: d.db, PollInterval: d.pollInterval, Logger: d.logger})
	if err != nil {
		return err
	}
	if err := watcher.Seed(ctx); err != nil {
		return err
	}

	if err := d.broadcast(ctx, OutboundMessage{Text: onlineText}); err != nil {
		d.logger.Warn("send online message", zap.Error(err))
	}
	d.logger.Info("notifier online", zap.Int("adapters", len(d.adapters)))

	g, gctx := errgroup.WithContext(ctx)
	events := watcher.Run(gctx)
	g.Go(func() error {
		d.dispatch(gctx, events)
		return nil
	})
	if d.digest != nil {
		g.Go(func() error {
			d.runDigestScheduler(gctx)
			return nil
		})
	}
	err = g.Wait()

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if sendErr := d.broadcast(stopCtx, OutboundMessage{Text: offlineText}); sendErr != nil {
		d.logger.Warn("send offline message", zap.Error(sendErr))
	}
	d.logger.Info("notifier stopped")
	return err
}

// dispatch formats and forwards events until the watcher closes the channel.
func (d *Daemon) dispatch(ctx context.Context, events <-chan Event) {
	for e := range events {
		formatted, ok := Format(e)
		if !ok {
			continue
		}
		if err := d.broadcast(ctx, OutboundMessage{Events: []FormattedEvent{formatted}}); err != nil {
			d.logger.Warn("send event",
				zap.Uint("audit_id", e.AuditID),
				zap.String("action", e.Action),
				zap.Error(err))
		}
	}
}

// runDigestScheduler posts a digest every time the schedule fires.
func (d *Daemon) runDigestScheduler(ctx context.Context) {
	timer := time.NewTimer(nextFire(d.digest, d.now()))
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			if err := d.SendDigest(ctx); err != nil {
				d.logger.Warn("send digest", zap.Error(err))
			}
			timer.Reset(nextFire(d.digest, d.now()))
		}
	}
}

// SendDigest builds the current digest and posts it to every adapter.
func (d *Daemon) SendDigest(ctx context.Context) error {
	now := d.now()
	digests, err := BuildDigest(ctx, d.db, now)
	if err != nil {
		return err
	}
	return d.broadcast(ctx, OutboundMessage{Events: []FormattedEvent{FormatDigest(digests, now)}})
}

// broadcast sends msg to every adapter concurrently. A failing adapter does
// not stop delivery to the others.
func (d *Daemon) broadcast(ctx context.Context, msg OutboundMessage) error {
	if msg.ChannelID == "" {
		msg.ChannelID = d.channel
	}
	errs := make([]error, len(d.adapters))
	var g errgroup.Group
	for i, a := range d.adapters {
		g.Go(func() error {
			errs[i] = a.Send(ctx, msg)
			return nil
		})
	}
	g.Wait()
	return errors.Join(errs...)
}

func (d *Daemon) closeAdapters(adapters []Adapter) {
	for _, a := range adapters {
		if err := a.Close(); err != nil {
			d.logger.Warn("close adapter", zap.Error(err))
		}
	}
}
