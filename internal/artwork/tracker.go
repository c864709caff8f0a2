// Package artwork schedules cover-art fetch attempts and remembers their
// outcome, so transient failures recover through bounded periodic retries
// instead of inline hammering of a slow or offline art source.
package artwork

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	_ "golang.org/x/image/webp" // webp cover support
)

// Outcome is the fetch state recorded for the current art reference.
type Outcome int

const (
	// OutcomeNotAttempted means no reference is recorded or none was tried
	OutcomeNotAttempted Outcome = iota
	// OutcomeLoaded means the reference decoded successfully
	OutcomeLoaded
	// OutcomeFailed means the last attempt failed at some stage
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeLoaded:
		return "loaded"
	case OutcomeFailed:
		return "failed"
	default:
		return "not-attempted"
	}
}

// Tracker is the per-reference fetch state machine:
//
//	NotAttempted -> Loaded | Failed   on the first attempt
//	Failed       -> Loaded | Failed   on a retry
//	Loaded is terminal until Load is called with a different reference
//
// The reference stays recorded after a success; it is cleared only when the
// reference itself changes. Tracker is confined to the reconciliation
// goroutine and needs no locking.
type Tracker struct {
	logger        *zap.Logger
	fetcher       *HTTPFetcher
	maxDim        int
	retryInterval time.Duration
	now           func() time.Time

	ref         string
	outcome     Outcome
	lastAttempt time.Time
}

// NewTracker creates a tracker. bounds may carry MaxDim 0 to disable
// downscaling.
func NewTracker(logger *zap.Logger, fetcher *HTTPFetcher, bounds *DisplayBounds, retryInterval time.Duration) *Tracker {
	return &Tracker{
		logger:        logger,
		fetcher:       fetcher,
		maxDim:        bounds.MaxDim,
		retryInterval: retryInterval,
		now:           time.Now,
	}
}

// Reference returns the currently recorded art reference ("" when absent).
func (t *Tracker) Reference() string {
	return t.ref
}

// Outcome returns the fetch outcome for the current reference.
func (t *Tracker) Outcome() Outcome {
	return t.outcome
}

// Load records ref as the current reference and performs one fetch attempt.
// An empty ref clears the machine and reports absent art. The returned image
// is non-nil exactly when ok is true.
func (t *Tracker) Load(ctx context.Context, ref string) (image.Image, bool) {
	t.ref = ref
	if ref == "" {
		t.outcome = OutcomeNotAttempted
		t.lastAttempt = time.Time{}
		return nil, false
	}
	return t.attempt(ctx, ref)
}

// RetryDue reports whether a retry attempt is warranted: a reference is
// recorded, it has not loaded, and a full retry interval has passed since
// the last attempt.
func (t *Tracker) RetryDue() bool {
	return t.ref != "" &&
		t.outcome != OutcomeLoaded &&
		t.now().Sub(t.lastAttempt) >= t.retryInterval
}

// Retry re-attempts the current reference. Callers gate on RetryDue.
func (t *Tracker) Retry(ctx context.Context) (image.Image, bool) {
	return t.attempt(ctx, t.ref)
}

func (t *Tracker) attempt(ctx context.Context, ref string) (image.Image, bool) {
	t.lastAttempt = t.now()

	img, err := t.load(ctx, ref)
	if err != nil {
		// Non-fatal at every stage: record and wait for the retry window
		t.logger.Warn("Artwork load failed",
			zap.String("ref", ref),
			zap.Error(err))
		t.outcome = OutcomeFailed
		return nil, false
	}

	t.outcome = OutcomeLoaded
	t.logger.Debug("Artwork loaded", zap.String("ref", ref))
	return img, true
}

func (t *Tracker) load(ctx context.Context, ref string) (image.Image, error) {
	var data []byte
	var err error

	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		data, err = t.fetcher.Fetch(ctx, ref)
	} else {
		data, err = readLocal(ref)
	}
	if err != nil {
		return nil, err
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	if t.maxDim > 0 {
		b := img.Bounds()
		if b.Dx() > t.maxDim || b.Dy() > t.maxDim {
			img = imaging.Fit(img, t.maxDim, t.maxDim, imaging.Lanczos)
		}
	}
	return img, nil
}

// readLocal reads a local-path reference, stripping a file scheme and
// percent-decoding, after an existence check.
func readLocal(ref string) ([]byte, error) {
	path := strings.TrimPrefix(ref, "file://")
	if decoded, err := url.PathUnescape(path); err == nil {
		path = decoded
	}

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("art file not accessible: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read art file: %w", err)
	}
	return data, nil
}
