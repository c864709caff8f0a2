// Package poller turns the volatile session state into a continuous stream
// of immutable snapshots, on a cadence independent from command dispatch.
package poller

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/toasterrepairman/empress/internal/domain"
)

const snapshotBuffer = 10

// Poller queries the resolved session on a fixed interval and emits a
// Snapshot per tick on its output channel. The channel is closed when the
// context is cancelled; that close is the consumer's end-of-stream signal.
type Poller struct {
	logger   *zap.Logger
	resolver domain.Resolver
	prefs    *domain.PreferenceStore
	interval time.Duration

	snapshots chan domain.Snapshot

	mu              sync.Mutex
	lastDropWarning time.Time // Rate limiting for "channel full" warnings
}

// NewPoller creates a poller. Run must be started for snapshots to flow.
func NewPoller(logger *zap.Logger, resolver domain.Resolver, prefs *domain.PreferenceStore, interval time.Duration) *Poller {
	return &Poller{
		logger:    logger,
		resolver:  resolver,
		prefs:     prefs,
		interval:  interval,
		snapshots: make(chan domain.Snapshot, snapshotBuffer),
	}
}

// Snapshots returns the read-only snapshot stream, FIFO, single producer.
func (p *Poller) Snapshots() <-chan domain.Snapshot {
	return p.snapshots
}

// Run produces snapshots until the context is cancelled, then closes the
// stream. Each tick re-resolves the session under the current preference; a
// stale handle is never reused across ticks.
func (p *Poller) Run(ctx context.Context) {
	p.logger.Info("State poller started",
		zap.Duration("interval", p.interval))

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	defer close(p.snapshots)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("State poller stopped")
			return
		case <-ticker.C:
			snap := p.snapshot()

			// Non-blocking send: a slow consumer costs at most latency,
			// never a stalled poll loop. The next tick re-reads live state.
			select {
			case p.snapshots <- snap:
			default:
				p.logChannelFullWarning()
			}
		}
	}
}

// snapshot reads the current session state into an immutable value. Every
// field degrades independently: a failing metadata read, status read, or
// position read falls back to its own default rather than aborting the
// snapshot.
func (p *Poller) snapshot() domain.Snapshot {
	sess := p.resolver.Resolve(p.prefs.Get())
	if sess == nil {
		return domain.EmptySnapshot()
	}

	snap := domain.Snapshot{Status: domain.StatusStopped}

	meta, err := sess.Metadata()
	if err != nil {
		// Status and position are still read below: a player with no track
		// loaded can legitimately report Stopped while refusing metadata
		p.logger.Debug("Metadata read failed",
			zap.String("player", sess.Identity()),
			zap.Error(err))
		snap.Title = "No media playing"
	} else {
		snap.Title = meta.Title
		if snap.Title == "" {
			snap.Title = "Unknown"
		}
		snap.Artist = meta.Artist
		if snap.Artist == "" {
			snap.Artist = "Unknown Artist"
		}
		snap.Album = meta.Album
		snap.ArtRef = meta.ArtRef
		snap.Length = meta.Length
		snap.HasLength = meta.HasLength
	}

	if status, err := sess.PlaybackStatus(); err == nil {
		snap.Status = status
	}

	if pos, err := sess.Position(); err == nil {
		snap.Position = pos
		snap.HasPosition = true
	}

	return snap
}

// logChannelFullWarning logs a warning about the snapshot channel being full,
// rate-limited to avoid log spam while a consumer catches up.
func (p *Poller) logChannelFullWarning() {
	p.mu.Lock()
	defer p.mu.Unlock()

	const warningInterval = 5 * time.Second
	now := time.Now()

	if now.Sub(p.lastDropWarning) >= warningInterval {
		p.logger.Warn("Snapshot channel full, dropping tick (consumer may be slow)")
		p.lastDropWarning = now
	}
}
