package artwork

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("encode test png: %v", err)
	}
	return buf.Bytes()
}

func newTestTracker(maxDim int) *Tracker {
	return NewTracker(zap.NewNop(), NewHTTPFetcher(zap.NewNop()),
		&DisplayBounds{MaxDim: maxDim}, 3*time.Second)
}

func TestTrackerRemoteLoad(t *testing.T) {
	tests := []struct {
		name        string
		statusCode  int
		contentType string
		body        []byte
		expectOK    bool
		outcome     Outcome
	}{
		{
			name:        "Success",
			statusCode:  http.StatusOK,
			contentType: "image/png",
			body:        nil, // filled with a real png below
			expectOK:    true,
			outcome:     OutcomeLoaded,
		},
		{
			name:        "HTTP failure",
			statusCode:  http.StatusNotFound,
			contentType: "image/png",
			expectOK:    false,
			outcome:     OutcomeFailed,
		},
		{
			name:        "Decode failure",
			statusCode:  http.StatusOK,
			contentType: "image/png",
			body:        []byte("not-a-png"),
			expectOK:    false,
			outcome:     OutcomeFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := tt.body
			if tt.expectOK {
				body = pngBytes(t, 4, 4)
			}
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				w.WriteHeader(tt.statusCode)
				_, _ = w.Write(body)
			}))
			defer server.Close()

			tr := newTestTracker(0)
			img, ok := tr.Load(context.Background(), server.URL)

			if ok != tt.expectOK {
				t.Fatalf("ok: want %v, got %v", tt.expectOK, ok)
			}
			if tt.expectOK && img == nil {
				t.Fatal("expected a decoded image")
			}
			if tr.Outcome() != tt.outcome {
				t.Errorf("outcome: want %v, got %v", tt.outcome, tr.Outcome())
			}
			if tr.Reference() != server.URL {
				t.Errorf("reference not recorded: got %q", tr.Reference())
			}
		})
	}
}

func TestTrackerLocalLoad(t *testing.T) {
	dir := t.TempDir()

	// A path with a space exercises the percent-decoding branch
	path := filepath.Join(dir, "cover art.png")
	if err := os.WriteFile(path, pngBytes(t, 4, 4), 0o644); err != nil {
		t.Fatal(err)
	}
	encoded := "file://" + filepath.Join(dir, "cover%20art.png")

	tests := []struct {
		name     string
		ref      string
		expectOK bool
	}{
		{"Plain path", path, true},
		{"File scheme with percent-encoding", encoded, true},
		{"Missing file", filepath.Join(dir, "nope.png"), false},
		{"Unreadable image data", mustWrite(t, dir, "junk.png", []byte("junk")), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newTestTracker(0)
			img, ok := tr.Load(context.Background(), tt.ref)
			if ok != tt.expectOK {
				t.Fatalf("ok: want %v, got %v", tt.expectOK, ok)
			}
			if tt.expectOK && img == nil {
				t.Fatal("expected a decoded image")
			}
		})
	}
}

func mustWrite(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestTrackerAbsentReferenceClears(t *testing.T) {
	tr := newTestTracker(0)

	img, ok := tr.Load(context.Background(), "")
	if ok || img != nil {
		t.Fatal("absent reference must report no art")
	}
	if tr.Outcome() != OutcomeNotAttempted {
		t.Errorf("outcome: want not-attempted, got %v", tr.Outcome())
	}
	if tr.RetryDue() {
		t.Error("no retry without a recorded reference")
	}
}

func TestTrackerRetryWindow(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := base
	tr := newTestTracker(0)
	tr.now = func() time.Time { return clock }

	if _, ok := tr.Load(context.Background(), server.URL); ok {
		t.Fatal("load should have failed")
	}

	// Within the 3s backoff window: no retry
	for _, offset := range []time.Duration{time.Second, 2 * time.Second} {
		clock = base.Add(offset)
		if tr.RetryDue() {
			t.Errorf("retry due at +%v, want gated", offset)
		}
	}

	// Past the window: exactly one retry becomes due
	clock = base.Add(3500 * time.Millisecond)
	if !tr.RetryDue() {
		t.Fatal("retry not due at +3.5s")
	}
	if _, ok := tr.Retry(context.Background()); ok {
		t.Fatal("retry should still fail")
	}
	if tr.RetryDue() {
		t.Error("retry window must reset after an attempt")
	}
}

func TestTrackerLoadedIsTerminal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(pngBytes(t, 4, 4))
	}))
	defer server.Close()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := base
	tr := newTestTracker(0)
	tr.now = func() time.Time { return clock }

	if _, ok := tr.Load(context.Background(), server.URL); !ok {
		t.Fatal("load should have succeeded")
	}

	clock = base.Add(time.Hour)
	if tr.RetryDue() {
		t.Error("loaded outcome must never schedule retries")
	}
	if tr.Reference() != server.URL {
		t.Error("reference must stay recorded after success")
	}
}

func TestTrackerDownscalesOversizedArt(t *testing.T) {
	dir := t.TempDir()
	path := mustWrite(t, dir, "big.png", pngBytes(t, 64, 32))

	tr := newTestTracker(16)
	img, ok := tr.Load(context.Background(), path)
	if !ok {
		t.Fatal("load failed")
	}
	if b := img.Bounds(); b.Dx() > 16 || b.Dy() > 16 {
		t.Errorf("image not bounded: got %dx%d", b.Dx(), b.Dy())
	}
}
