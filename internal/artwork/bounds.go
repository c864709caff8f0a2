package artwork

import (
	"github.com/kbinani/screenshot"
	"go.uber.org/zap"
)

// DisplayBounds caps decoded artwork at a dimension the primary display can
// actually show; covers never need more pixels than the shorter screen edge.
type DisplayBounds struct {
	MaxDim int
}

// NewDisplayBounds detects the primary screen at startup
func NewDisplayBounds(logger *zap.Logger) *DisplayBounds {
	n := screenshot.NumActiveDisplays()
	if n <= 0 {
		logger.Warn("No active displays detected, falling back to 1080px artwork cap")
		return &DisplayBounds{MaxDim: 1080}
	}

	// Use primary monitor (index 0)
	bounds := screenshot.GetDisplayBounds(0)
	maxDim := bounds.Dy()
	if bounds.Dx() < maxDim {
		maxDim = bounds.Dx()
	}

	logger.Info("Artwork cap derived from primary display",
		zap.Int("width", bounds.Dx()),
		zap.Int("height", bounds.Dy()),
		zap.Int("maxDim", maxDim))

	return &DisplayBounds{MaxDim: maxDim}
}
