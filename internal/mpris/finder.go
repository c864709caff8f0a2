package mpris

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/toasterrepairman/empress/internal/domain"
)

// Finder enumerates MPRIS players on the session bus and binds sessions to
// them. Resolution is stateless: every call re-enumerates the bus, because a
// player may quit, restart, or lose focus between calls and a cached handle
// would silently target a dead session.
type Finder struct {
	logger *zap.Logger
	conn   DBusClient
}

// NewFinder creates a finder over an established D-Bus connection
func NewFinder(logger *zap.Logger, conn DBusClient) *Finder {
	return &Finder{logger: logger, conn: conn}
}

// List returns the bus names of all MPRIS players currently on the bus,
// in stable order.
func (f *Finder) List() ([]string, error) {
	names, err := f.conn.ListNames()
	if err != nil {
		return nil, err
	}

	var players []string
	for _, name := range names {
		if strings.HasPrefix(name, busPrefix) {
			players = append(players, name)
		}
	}
	sort.Strings(players)
	return players, nil
}

// Identities re-enumerates the short identities of the available players.
// Errors degrade to an empty list; the selector simply shows no choices.
func (f *Finder) Identities() []string {
	players, err := f.List()
	if err != nil {
		f.logger.Debug("Failed to list bus names", zap.Error(err))
		return nil
	}

	identities := make([]string, 0, len(players))
	for _, name := range players {
		identities = append(identities, strings.TrimPrefix(name, busPrefix))
	}
	return identities
}

// FindActive binds the currently active player: the first one that reports
// Playing, then the first Paused one, then any. Returns nil when no player
// is on the bus.
func (f *Finder) FindActive() *Session {
	players, err := f.List()
	if err != nil {
		f.logger.Debug("Failed to list bus names", zap.Error(err))
		return nil
	}
	if len(players) == 0 {
		return nil
	}

	var paused *Session
	var first *Session
	for _, name := range players {
		sess := &Session{logger: f.logger, conn: f.conn, busName: name}
		if first == nil {
			first = sess
		}
		status, err := sess.PlaybackStatus()
		if err != nil {
			continue
		}
		switch status {
		case domain.StatusPlaying:
			return sess
		case domain.StatusPaused:
			if paused == nil {
				paused = sess
			}
		}
	}

	if paused != nil {
		return paused
	}
	return first
}

// FindByName binds the player with the given short identity, or nil when it
// is not on the bus.
func (f *Finder) FindByName(identity string) *Session {
	players, err := f.List()
	if err != nil {
		f.logger.Debug("Failed to list bus names", zap.Error(err))
		return nil
	}

	for _, name := range players {
		if strings.TrimPrefix(name, busPrefix) == identity {
			return &Session{logger: f.logger, conn: f.conn, busName: name}
		}
	}
	return nil
}

// Resolve implements domain.Resolver. A pinned player that is currently
// absent falls back to the active one rather than erroring out.
func (f *Finder) Resolve(preferred string) domain.Session {
	if preferred != "" {
		if sess := f.FindByName(preferred); sess != nil {
			return sess
		}
		f.logger.Debug("Preferred player not present, falling back to active",
			zap.String("preferred", preferred))
	}

	sess := f.FindActive()
	if sess == nil {
		// Typed nil would still satisfy the interface; return a real nil
		return nil
	}
	return sess
}
