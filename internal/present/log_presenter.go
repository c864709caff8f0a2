// Package present holds the default outbound surface toward a front-end.
// A graphical shell supplies its own domain.Presenter; when the core runs
// headless, LogPresenter makes every side effect visible in the logs.
package present

import (
	"image"

	"go.uber.org/zap"

	"github.com/toasterrepairman/empress/internal/domain"
)

// LogPresenter logs every presentation call instead of drawing it.
type LogPresenter struct {
	logger *zap.Logger
}

// NewLogPresenter creates a headless presenter
func NewLogPresenter(logger *zap.Logger) *LogPresenter {
	return &LogPresenter{logger: logger}
}

// SetText updates the track labels; empty artist/album rows are hidden
func (p *LogPresenter) SetText(title, artist, album string) {
	p.logger.Debug("Track labels",
		zap.String("title", title),
		zap.String("artist", artist),
		zap.Bool("artistVisible", artist != ""),
		zap.String("album", album),
		zap.Bool("albumVisible", album != ""))
}

// SetArt displays or clears the cover art
func (p *LogPresenter) SetArt(img image.Image) {
	if img == nil {
		p.logger.Info("Artwork cleared")
		return
	}
	b := img.Bounds()
	p.logger.Info("Artwork displayed",
		zap.Int("width", b.Dx()),
		zap.Int("height", b.Dy()))
}

// SetPlaybackIcon switches the play/pause affordance
func (p *LogPresenter) SetPlaybackIcon(playing bool) {
	p.logger.Debug("Playback icon", zap.Bool("playing", playing))
}

// SetProgress updates the progress ring
func (p *LogPresenter) SetProgress(ratio float64) {
	p.logger.Debug("Progress", zap.Float64("ratio", ratio))
}

// SetHistory re-renders the session history
func (p *LogPresenter) SetHistory(entries []domain.HistoryEntry) {
	if len(entries) == 0 {
		return
	}
	latest := entries[0]
	p.logger.Info("History updated",
		zap.Int("entries", len(entries)),
		zap.String("latestTitle", latest.Title),
		zap.String("latestStatus", string(latest.Status)))
}

// SetPlayerChoices repopulates the player selector
func (p *LogPresenter) SetPlayerChoices(identities []string) {
	p.logger.Debug("Player choices", zap.Strings("identities", identities))
}
