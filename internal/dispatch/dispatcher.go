// Package dispatch serializes front-end control commands against whichever
// player session is currently resolvable. A single consumer loop re-resolves
// the session on every tick, so command targeting stays current even when the
// active or pinned player changes between submissions; no push-based session
// change notification is needed.
package dispatch

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/toasterrepairman/empress/internal/domain"
)

// ErrStopped is returned by Submit once the dispatcher loop is gone.
// Callers may log and ignore it; the user-visible effect is simply
// "control had no effect".
var ErrStopped = errors.New("dispatcher stopped")

const queueDepth = 16

// Dispatcher owns the command queue and its consumer loop.
type Dispatcher struct {
	logger   *zap.Logger
	resolver domain.Resolver
	prefs    *domain.PreferenceStore
	interval time.Duration

	commands chan domain.Command
	done     chan struct{}
}

// NewDispatcher creates a dispatcher. Run must be started for commands to
// take effect.
func NewDispatcher(logger *zap.Logger, resolver domain.Resolver, prefs *domain.PreferenceStore, interval time.Duration) *Dispatcher {
	return &Dispatcher{
		logger:   logger,
		resolver: resolver,
		prefs:    prefs,
		interval: interval,
		commands: make(chan domain.Command, queueDepth),
		done:     make(chan struct{}),
	}
}

// Submit enqueues a command for the consumer loop. The enqueue itself is the
// only acknowledgment; the effect becomes visible on a later poll snapshot.
// It fails only when the dispatcher has shut down.
func (d *Dispatcher) Submit(cmd domain.Command) error {
	select {
	case <-d.done:
		return ErrStopped
	default:
	}

	select {
	case d.commands <- cmd:
		return nil
	case <-d.done:
		return ErrStopped
	}
}

// Run executes the consumer loop until the context is cancelled. Each tick:
// re-resolve the session under the current preference, drain at most one
// pending command, apply it if a session exists. Commands submitted while no
// session is resolvable are dropped silently (fire-and-forget).
func (d *Dispatcher) Run(ctx context.Context) {
	d.logger.Info("Command dispatcher started",
		zap.Duration("interval", d.interval))

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	defer close(d.done)

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Command dispatcher stopped")
			return
		case <-ticker.C:
			d.tick()
		}
	}
}

func (d *Dispatcher) tick() {
	sess := d.resolver.Resolve(d.prefs.Get())

	select {
	case cmd := <-d.commands:
		if sess == nil {
			d.logger.Debug("No session resolvable, dropping command",
				zap.Stringer("command", cmd.Kind))
			return
		}
		d.apply(sess, cmd)
	default:
	}
}

func (d *Dispatcher) apply(sess domain.Session, cmd domain.Command) {
	var err error
	switch cmd.Kind {
	case domain.CmdPlayPause:
		err = sess.PlayPause()
	case domain.CmdNext:
		err = sess.Next()
	case domain.CmdPrevious:
		err = sess.Previous()
	case domain.CmdSeek:
		err = sess.Seek(cmd.SeekOffsetMicros)
	}

	if err != nil {
		// Protocol failures are non-fatal; the next snapshot reflects reality
		d.logger.Debug("Command delivery failed",
			zap.Stringer("command", cmd.Kind),
			zap.String("player", sess.Identity()),
			zap.Error(err))
		return
	}

	d.logger.Debug("Command applied",
		zap.Stringer("command", cmd.Kind),
		zap.String("player", sess.Identity()))
}
