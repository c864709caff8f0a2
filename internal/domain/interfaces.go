package domain

import (
	"image"
	"time"
)

// Metadata is the raw field set read from a bound session.
// Absent fields are empty/zero; callers apply their own defaults.
type Metadata struct {
	Title  string
	Artist string
	Album  string
	ArtRef string
	// Length of the track; valid only when HasLength is set
	Length    time.Duration
	HasLength bool
}

// Session is a live bound connection to one media player's control surface.
// Every call may fail; failures are treated as "value absent" by callers,
// never propagated as fatal.
type Session interface {
	// Identity returns the short player identity (e.g. "spotify")
	Identity() string

	// Metadata reads the current track metadata
	Metadata() (Metadata, error)

	// PlaybackStatus reads the current playback status
	PlaybackStatus() (PlaybackStatus, error)

	// Position reads the playback position within the current track
	Position() (time.Duration, error)

	// PlayPause toggles playback
	PlayPause() error

	// Next skips to the next track
	Next() error

	// Previous skips to the previous track
	Previous() error

	// Seek moves the position by a signed offset in microseconds
	Seek(offsetMicros int64) error
}

// Resolver produces the currently-correct live session for a preference.
// Resolution is stateless per call: sessions can appear, disappear, or change
// identity between calls, so handles are re-derived every time and never
// cached.
type Resolver interface {
	// Resolve binds the named player when preferred is non-empty, falling
	// back to the active player when it is absent; an empty preferred binds
	// the active player directly. Returns nil when no player exists.
	Resolve(preferred string) Session

	// Identities re-enumerates the available player identities
	Identities() []string
}

// Presenter is the outbound surface toward the presentation layer. The core
// calls it only from the reconciliation goroutine, so implementations need no
// internal locking.
type Presenter interface {
	// SetText updates the track labels. Empty artist/album mean the
	// corresponding rows should be hidden.
	SetText(title, artist, album string)

	// SetArt displays a decoded cover image; nil clears the art and hides
	// its container.
	SetArt(img image.Image)

	// SetPlaybackIcon switches between the play and pause affordance
	SetPlaybackIcon(playing bool)

	// SetProgress updates the progress ring with a ratio in [0, 1]
	SetProgress(ratio float64)

	// SetHistory re-renders the session history, newest first
	SetHistory(entries []HistoryEntry)

	// SetPlayerChoices repopulates the player selector
	SetPlayerChoices(identities []string)
}
