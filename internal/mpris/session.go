package mpris

import (
	"fmt"
	"strings"
	"time"

	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"

	"github.com/toasterrepairman/empress/internal/domain"
)

const (
	busPrefix   = "org.mpris.MediaPlayer2."
	objectPath  = "/org/mpris/MediaPlayer2"
	playerIface = "org.mpris.MediaPlayer2.Player"

	propMetadata = playerIface + ".Metadata"
	propStatus   = playerIface + ".PlaybackStatus"
	propPosition = playerIface + ".Position"
)

// Session is a live binding to one MPRIS player on the session bus. It holds
// only the bus name; every method call goes straight to the bus, so a Session
// stays valid exactly as long as the player does and is cheap to re-derive.
type Session struct {
	logger  *zap.Logger
	conn    DBusClient
	busName string
}

// Identity returns the short player identity (the bus name with the MPRIS
// prefix stripped, e.g. "spotify").
func (s *Session) Identity() string {
	return strings.TrimPrefix(s.busName, busPrefix)
}

// Metadata reads the current track metadata from the player.
func (s *Session) Metadata() (domain.Metadata, error) {
	variant, err := s.conn.GetProperty(s.busName, objectPath, propMetadata)
	if err != nil {
		return domain.Metadata{}, fmt.Errorf("failed to get metadata: %w", err)
	}

	// Some players return nil or unexpected types when nothing is loaded
	raw, ok := variant.Value().(map[string]dbus.Variant)
	if !ok {
		return domain.Metadata{}, fmt.Errorf("metadata variant is not a map")
	}

	return s.parseMetadata(raw), nil
}

// PlaybackStatus reads the current playback status from the player.
func (s *Session) PlaybackStatus() (domain.PlaybackStatus, error) {
	variant, err := s.conn.GetProperty(s.busName, objectPath, propStatus)
	if err != nil {
		return domain.StatusStopped, fmt.Errorf("failed to get playback status: %w", err)
	}

	status, ok := variant.Value().(string)
	if !ok {
		return domain.StatusStopped, fmt.Errorf("invalid playback status format")
	}

	switch status {
	case "Playing":
		return domain.StatusPlaying, nil
	case "Paused":
		return domain.StatusPaused, nil
	default:
		return domain.StatusStopped, nil
	}
}

// Position reads the playback position within the current track.
func (s *Session) Position() (time.Duration, error) {
	variant, err := s.conn.GetProperty(s.busName, objectPath, propPosition)
	if err != nil {
		return 0, fmt.Errorf("failed to get position: %w", err)
	}

	micros, ok := asInt64(variant.Value())
	if !ok {
		return 0, fmt.Errorf("invalid position format")
	}
	return time.Duration(micros) * time.Microsecond, nil
}

// PlayPause toggles playback
func (s *Session) PlayPause() error {
	return s.conn.Call(s.busName, objectPath, playerIface+".PlayPause")
}

// Next skips to the next track
func (s *Session) Next() error {
	return s.conn.Call(s.busName, objectPath, playerIface+".Next")
}

// Previous skips to the previous track
func (s *Session) Previous() error {
	return s.conn.Call(s.busName, objectPath, playerIface+".Previous")
}

// Seek moves the position by a signed offset in microseconds
func (s *Session) Seek(offsetMicros int64) error {
	return s.conn.Call(s.busName, objectPath, playerIface+".Seek", offsetMicros)
}

// parseMetadata converts an MPRIS metadata map to the domain model.
// Fields are extracted independently; a malformed field is skipped, never
// failing the whole read.
func (s *Session) parseMetadata(raw map[string]dbus.Variant) domain.Metadata {
	var meta domain.Metadata

	if titleVar, ok := raw["xesam:title"]; ok {
		if title, ok := titleVar.Value().(string); ok {
			meta.Title = title
		}
	}

	// Artist can be an array, or a plain string on non-compliant players
	if artistVar, ok := raw["xesam:artist"]; ok {
		switch artists := artistVar.Value().(type) {
		case []string:
			if len(artists) > 0 {
				meta.Artist = artists[0]
			}
		case string:
			meta.Artist = artists
		default:
			s.logger.Debug("Unexpected artist type in metadata",
				zap.String("player", s.busName),
				zap.String("type", fmt.Sprintf("%T", artistVar.Value())))
		}
	}

	if albumVar, ok := raw["xesam:album"]; ok {
		if album, ok := albumVar.Value().(string); ok {
			meta.Album = album
		}
	}

	if artVar, ok := raw["mpris:artUrl"]; ok {
		if artRef, ok := artVar.Value().(string); ok {
			if artRef == "" {
				// Some players (browsers, local files) send an empty artUrl
				s.logger.Debug("Empty artUrl received",
					zap.String("title", meta.Title),
					zap.String("artist", meta.Artist))
			} else {
				meta.ArtRef = artRef
			}
		}
	}

	// mpris:length is spec'd as int64 microseconds but players disagree
	if lengthVar, ok := raw["mpris:length"]; ok {
		if micros, ok := asInt64(lengthVar.Value()); ok && micros > 0 {
			meta.Length = time.Duration(micros) * time.Microsecond
			meta.HasLength = true
		}
	}

	return meta
}

// asInt64 normalizes the integer types players use for microsecond values
func asInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case uint64:
		return int64(n), true
	case int32:
		return int64(n), true
	case uint32:
		return int64(n), true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}
