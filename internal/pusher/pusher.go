package pusher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/promship/promship/push"
)

// Default retry and shutdown knobs.
const (
	defaultRetryInitial    = 1 * time.Second
	defaultRetryMaxElapsed = 2 * time.Minute
	shutdownDeleteTimeout  = 10 * time.Second
)

// Client is the slice of *push.Client the pusher drives.
// Narrowed to an interface so tests can substitute a fake.
type Client interface {
	Add(ctx context.Context, src push.MetricsSource) error
	Replace(ctx context.Context, src push.MetricsSource) error
	Delete(ctx context.Context) error
}

// Options configures a Pusher.
type Options struct {
	// Mode selects the gateway operation per push: "add" merges, "replace"
	// overwrites.
	Mode string

	// Interval is the time between pushes in Run.
	Interval time.Duration

	// DeleteOnStop removes the job's group from the gateway when Run exits.
	DeleteOnStop bool

	// RetryInitial and RetryMaxElapsed tune the per-push retry backoff.
	// Zero values pick the defaults (1s initial, 2m budget).
	RetryInitial    time.Duration
	RetryMaxElapsed time.Duration
}

// Pusher pushes a metrics source to the gateway on a fixed interval, retrying
// transient failures with truncated exponential backoff. Retry policy lives
// here, not in the push client: the client reports one structured outcome per
// request and this layer decides what is worth repeating.
type Pusher struct {
	client Client
	src    push.MetricsSource
	opts   Options
}

// New creates a Pusher. Zero retry options are filled with defaults.
func New(client Client, src push.MetricsSource, opts Options) *Pusher {
	if opts.RetryInitial <= 0 {
		opts.RetryInitial = defaultRetryInitial
	}
	if opts.RetryMaxElapsed <= 0 {
		opts.RetryMaxElapsed = defaultRetryMaxElapsed
	}
	return &Pusher{client: client, src: src, opts: opts}
}

// Run pushes once immediately, then on every interval tick until ctx is
// cancelled. If DeleteOnStop is set, the job's group is removed from the
// gateway on the way out so stale metrics do not linger.
func (p *Pusher) Run(ctx context.Context) {
	if err := p.PushOnce(ctx); err != nil {
		slog.Error("pusher: push failed", "err", err)
	}

	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.deleteOnStop()
			return
		case <-ticker.C:
			if err := p.PushOnce(ctx); err != nil {
				slog.Error("pusher: push failed", "err", err)
				continue
			}
			slog.Debug("pusher: snapshot pushed", "mode", p.opts.Mode)
		}
	}
}

// PushOnce pushes a single snapshot. Transient failures (5xx, transport
// errors) are retried with backoff until the retry budget runs out; outcomes
// the gateway will repeat verbatim (4xx, redirects, label collisions) fail
// immediately.
func (p *Pusher) PushOnce(ctx context.Context) error {
	op := func() error {
		err := p.pushOnce(ctx)
		if err != nil && isPermanent(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.opts.RetryInitial
	bo.MaxElapsedTime = p.opts.RetryMaxElapsed

	notify := func(err error, wait time.Duration) {
		slog.Warn("pusher: push failed, will retry", "err", err, "retry_in", wait)
	}
	return backoff.RetryNotify(op, backoff.WithContext(bo, ctx), notify)
}

func (p *Pusher) pushOnce(ctx context.Context) error {
	switch p.opts.Mode {
	case "add":
		return p.client.Add(ctx, p.src)
	case "replace":
		return p.client.Replace(ctx, p.src)
	default:
		return backoff.Permanent(fmt.Errorf("pusher: unknown mode %q", p.opts.Mode))
	}
}

// deleteOnStop removes the group using a fresh context — the run context is
// already cancelled by the time shutdown cleanup happens.
func (p *Pusher) deleteOnStop() {
	if !p.opts.DeleteOnStop {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownDeleteTimeout)
	defer cancel()
	if err := p.client.Delete(ctx); err != nil {
		slog.Error("pusher: delete on shutdown failed", "err", err)
		return
	}
	slog.Info("pusher: deleted metrics group from gateway")
}

// isPermanent reports whether retrying err would deterministically fail
// again: the request itself is wrong, not the gateway's current state.
func isPermanent(err error) bool {
	return errors.Is(err, push.ErrClientError) ||
		errors.Is(err, push.ErrRedirect) ||
		errors.Is(err, push.ErrLabelCollision)
}
