package domain

import (
	"sync"
	"time"
)

// PlaybackStatus represents the current state of a media player
type PlaybackStatus string

const (
	// StatusPlaying indicates the media is currently playing
	StatusPlaying PlaybackStatus = "Playing"
	// StatusPaused indicates the media is paused
	StatusPaused PlaybackStatus = "Paused"
	// StatusStopped indicates the media is stopped
	StatusStopped PlaybackStatus = "Stopped"
)

// Snapshot is an immutable point-in-time read of a session's displayable
// state. It is produced fresh on every poll tick and never mutated after
// creation; it is the only value that crosses the poller/reconciler boundary.
type Snapshot struct {
	// Title of the currently playing track
	Title string
	// Artist name
	Artist string
	// Album name
	Album string
	// ArtRef is the URL or local path to the cover artwork; empty means absent
	ArtRef string
	// Status is the current playback status
	Status PlaybackStatus
	// Position within the track; valid only when HasPosition is set
	Position    time.Duration
	HasPosition bool
	// Length of the track; valid only when HasLength is set
	Length    time.Duration
	HasLength bool
}

// EmptySnapshot is the snapshot emitted when no session is resolvable.
func EmptySnapshot() Snapshot {
	return Snapshot{
		Title:  "No media playing",
		Status: StatusStopped,
	}
}

// Progress returns position/length clamped to [0, 1]. It is 0 whenever
// position or length is absent, or length is zero.
func (s Snapshot) Progress() float64 {
	if !s.HasPosition || !s.HasLength || s.Length <= 0 {
		return 0
	}
	ratio := s.Position.Seconds() / s.Length.Seconds()
	if ratio < 0 {
		return 0
	}
	if ratio > 1 {
		return 1
	}
	return ratio
}

// CommandKind enumerates the player controls a front-end can issue.
type CommandKind int

const (
	// CmdPlayPause toggles between playing and paused
	CmdPlayPause CommandKind = iota
	// CmdNext skips to the next track
	CmdNext
	// CmdPrevious skips to the previous track
	CmdPrevious
	// CmdSeek moves the playback position by SeekOffsetMicros
	CmdSeek
)

// SeekStepMicros is the seek granularity front-ends use for a single
// scroll or keyboard step (5 seconds, in MPRIS microseconds).
const SeekStepMicros int64 = 5_000_000

// Command is a control request created by a front-end action and consumed
// exactly once by the dispatcher.
type Command struct {
	Kind CommandKind
	// SeekOffsetMicros is the signed seek offset in microseconds.
	// Only meaningful when Kind is CmdSeek.
	SeekOffsetMicros int64
}

func (k CommandKind) String() string {
	switch k {
	case CmdPlayPause:
		return "play-pause"
	case CmdNext:
		return "next"
	case CmdPrevious:
		return "previous"
	case CmdSeek:
		return "seek"
	default:
		return "unknown"
	}
}

// HistoryEntry records one observed state-or-identity change.
type HistoryEntry struct {
	Status     PlaybackStatus
	Title      string
	Artist     string
	ObservedAt time.Time
}

// PreferenceStore is the guarded player-preference cell shared between the
// front-end (writer) and the dispatcher/poller (readers). An empty name means
// Auto: follow whichever player is active. There is no unset state distinct
// from Auto.
//
// Readers copy the value out under the lock and act after releasing it; the
// lock is never held across a D-Bus call.
type PreferenceStore struct {
	mu   sync.Mutex
	name string
}

// NewPreferenceStore creates a store in the Auto state.
func NewPreferenceStore() *PreferenceStore {
	return &PreferenceStore{}
}

// Set pins a named player, or returns to Auto when name is empty.
func (p *PreferenceStore) Set(name string) {
	p.mu.Lock()
	p.name = name
	p.mu.Unlock()
}

// Get returns the pinned player identity, or "" for Auto.
func (p *PreferenceStore) Get() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.name
}
