// Package reconcile consumes the snapshot stream, diffs each snapshot
// against remembered state, and turns the difference into presenter calls,
// history appends, and art fetch attempts.
package reconcile

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/toasterrepairman/empress/internal/artwork"
	"github.com/toasterrepairman/empress/internal/domain"
)

// observed is the reconciler's memory of the last applied snapshot. It lives
// on the reconciliation goroutine only, so the hot path needs no locking.
type observed struct {
	title       string
	artist      string
	status      domain.PlaybackStatus
	initialDone bool
}

// Reconciler drains the poller's snapshot stream, classifies each snapshot,
// and emits side effects. It also owns the art-retry and player-choice
// refresh ticks, multiplexed onto the same goroutine to keep all mutable
// state confined to it.
type Reconciler struct {
	logger    *zap.Logger
	presenter domain.Presenter
	resolver  domain.Resolver
	art       *artwork.Tracker

	snapshots <-chan domain.Snapshot

	drainInterval   time.Duration
	retryInterval   time.Duration
	choicesInterval time.Duration

	state      observed
	history    []domain.HistoryEntry // newest first
	historyCap int

	now func() time.Time
}

// NewReconciler wires a reconciler to a snapshot stream.
func NewReconciler(
	logger *zap.Logger,
	presenter domain.Presenter,
	resolver domain.Resolver,
	art *artwork.Tracker,
	snapshots <-chan domain.Snapshot,
	drainInterval, retryInterval, choicesInterval time.Duration,
	historyCap int,
) *Reconciler {
	return &Reconciler{
		logger:          logger,
		presenter:       presenter,
		resolver:        resolver,
		art:             art,
		snapshots:       snapshots,
		drainInterval:   drainInterval,
		retryInterval:   retryInterval,
		choicesInterval: choicesInterval,
		state:           observed{status: domain.StatusStopped},
		historyCap:      historyCap,
		now:             time.Now,
	}
}

// History returns a copy of the history, newest first.
func (r *Reconciler) History() []domain.HistoryEntry {
	return append([]domain.HistoryEntry(nil), r.history...)
}

// Run loops until the context is cancelled or the snapshot stream closes.
// Every drain tick consumes the full pending backlog, so a slow consumer
// catches up to the latest state instead of lagging indefinitely.
func (r *Reconciler) Run(ctx context.Context) {
	r.logger.Info("Reconciler started",
		zap.Duration("drain", r.drainInterval),
		zap.Duration("artRetry", r.retryInterval))

	// Populate the selector once before the first refresh tick
	r.presenter.SetPlayerChoices(r.resolver.Identities())

	drain := time.NewTicker(r.drainInterval)
	defer drain.Stop()
	retry := time.NewTicker(r.retryInterval)
	defer retry.Stop()
	choices := time.NewTicker(r.choicesInterval)
	defer choices.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Reconciler stopped")
			return
		case <-drain.C:
			if !r.drain(ctx) {
				r.logger.Info("Snapshot stream closed, reconciler exiting")
				return
			}
		case <-retry.C:
			r.retryArt(ctx)
		case <-choices.C:
			r.presenter.SetPlayerChoices(r.resolver.Identities())
		}
	}
}

// drain applies every buffered snapshot in arrival order. Returns false when
// the stream has closed.
func (r *Reconciler) drain(ctx context.Context) bool {
	for {
		select {
		case snap, ok := <-r.snapshots:
			if !ok {
				return false
			}
			r.apply(ctx, snap)
		default:
			return true
		}
	}
}

// apply reconciles one snapshot against the state as it stood before this
// snapshot. Sequential per-snapshot application means a burst where only the
// last snapshot differs produces exactly the old-state to final-state change
// set: snapshots identical to their predecessor contribute nothing.
func (r *Reconciler) apply(ctx context.Context, snap domain.Snapshot) {
	titleChanged := snap.Title != r.state.title
	artistChanged := snap.Artist != r.state.artist
	urlChanged := snap.ArtRef != r.art.Reference()
	isInitial := !r.state.initialDone

	// Art is keyed to (url, title, artist) jointly: some players reuse one
	// generic art URL across tracks, so a textual identity change must
	// re-fetch even when the URL string is stable.
	forceArt := isInitial || urlChanged || titleChanged || artistChanged

	// Field updates are cheap and idempotent; apply them every snapshot
	r.presenter.SetText(snap.Title, snap.Artist, snap.Album)
	r.presenter.SetPlaybackIcon(snap.Status == domain.StatusPlaying)
	r.presenter.SetProgress(snap.Progress())

	if forceArt {
		img, ok := r.art.Load(ctx, snap.ArtRef)
		if ok {
			r.presenter.SetArt(img)
		} else {
			r.presenter.SetArt(nil)
		}
		r.state.initialDone = true
	}

	statusChanged := snap.Status != r.state.status
	if statusChanged || titleChanged || artistChanged {
		r.pushHistory(domain.HistoryEntry{
			Status:     snap.Status,
			Title:      snap.Title,
			Artist:     snap.Artist,
			ObservedAt: r.now(),
		})

		r.state.title = snap.Title
		r.state.artist = snap.Artist
		r.state.status = snap.Status

		r.presenter.SetHistory(r.History())

		r.logger.Debug("Session change recorded",
			zap.String("title", snap.Title),
			zap.String("artist", snap.Artist),
			zap.String("status", string(snap.Status)))
	}
}

// pushHistory prepends an entry and evicts the oldest past capacity.
func (r *Reconciler) pushHistory(entry domain.HistoryEntry) {
	r.history = append([]domain.HistoryEntry{entry}, r.history...)
	if len(r.history) > r.historyCap {
		r.history = r.history[:r.historyCap]
	}
}

// retryArt re-attempts a failed art fetch once the backoff window has
// elapsed. First attempts happen inline in apply; retries live here so an
// unreachable art host cannot stall the drain tick more than once per
// window.
func (r *Reconciler) retryArt(ctx context.Context) {
	if !r.art.RetryDue() {
		return
	}

	r.logger.Debug("Retrying artwork fetch",
		zap.String("ref", r.art.Reference()))

	if img, ok := r.art.Retry(ctx); ok {
		r.presenter.SetArt(img)
	}
}
