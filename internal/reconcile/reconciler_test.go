package reconcile

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/toasterrepairman/empress/internal/artwork"
	"github.com/toasterrepairman/empress/internal/domain"
)

// recordingPresenter captures every outbound call for assertions. The core
// only calls presenters from one goroutine, but tests running Run read
// concurrently, so the recorder locks anyway.
type recordingPresenter struct {
	mu        sync.Mutex
	titles    []string
	artists   []string
	albums    []string
	artImages []image.Image // nil entries are clears
	icons     []bool
	progress  []float64
	histories [][]domain.HistoryEntry
	choices   [][]string
}

func (p *recordingPresenter) SetText(title, artist, album string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.titles = append(p.titles, title)
	p.artists = append(p.artists, artist)
	p.albums = append(p.albums, album)
}
func (p *recordingPresenter) SetArt(img image.Image) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.artImages = append(p.artImages, img)
}
func (p *recordingPresenter) SetPlaybackIcon(playing bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.icons = append(p.icons, playing)
}
func (p *recordingPresenter) SetProgress(ratio float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.progress = append(p.progress, ratio)
}
func (p *recordingPresenter) SetHistory(entries []domain.HistoryEntry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.histories = append(p.histories, entries)
}
func (p *recordingPresenter) SetPlayerChoices(ids []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.choices = append(p.choices, ids)
}

func (p *recordingPresenter) choicesSnapshot() [][]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]string(nil), p.choices...)
}

func (p *recordingPresenter) lastArt() (image.Image, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.artImages) == 0 {
		return nil, 0
	}
	return p.artImages[len(p.artImages)-1], len(p.artImages)
}

type nilResolver struct{}

func (nilResolver) Resolve(string) domain.Session { return nil }
func (nilResolver) Identities() []string          { return []string{"spotify"} }

// artServer serves one tiny png and counts hits.
func artServer(t *testing.T, fail bool) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatal(err)
	}
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if fail {
			http.Error(w, "down", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(buf.Bytes())
	}))
	t.Cleanup(server.Close)
	return server, &hits
}

func newTestReconciler(p domain.Presenter, snapshots <-chan domain.Snapshot, historyCap int) *Reconciler {
	tracker := artwork.NewTracker(zap.NewNop(), artwork.NewHTTPFetcher(zap.NewNop()),
		&artwork.DisplayBounds{}, 3*time.Second)
	return NewReconciler(zap.NewNop(), p, nilResolver{}, tracker, snapshots,
		time.Millisecond, time.Millisecond, time.Millisecond, historyCap)
}

func playingSnap(title, artist, artRef string) domain.Snapshot {
	return domain.Snapshot{
		Title:  title,
		Artist: artist,
		Status: domain.StatusPlaying,
		ArtRef: artRef,
	}
}

func TestIdenticalSnapshotsCoalesce(t *testing.T) {
	server, hits := artServer(t, false)
	p := &recordingPresenter{}
	r := newTestReconciler(p, nil, 50)

	snap := playingSnap("A", "X", server.URL+"/1.png")
	r.apply(context.Background(), snap)
	r.apply(context.Background(), snap)

	if got := hits.Load(); got != 1 {
		t.Errorf("art attempts: want 1, got %d", got)
	}
	if got := len(r.History()); got != 1 {
		t.Errorf("history entries: want 1, got %d", got)
	}
	// Field updates still run every snapshot
	if len(p.titles) != 2 || len(p.progress) != 2 {
		t.Errorf("field updates must be unconditional: %d titles, %d progress", len(p.titles), len(p.progress))
	}
}

func TestInitialSnapshotForcesArt(t *testing.T) {
	p := &recordingPresenter{}
	r := newTestReconciler(p, nil, 50)

	// Bytewise equal to the reconciler's zero memory: no field changed,
	// only the initial-load flag forces the art path
	snap := domain.Snapshot{Status: domain.StatusStopped}
	r.apply(context.Background(), snap)

	if len(p.artImages) != 1 || p.artImages[0] != nil {
		t.Fatalf("initial snapshot must force one art update (clear), got %d", len(p.artImages))
	}
	if len(r.History()) != 0 {
		t.Error("no history entry without a state or identity change")
	}

	// Second identical snapshot: initial is done, nothing forces art
	r.apply(context.Background(), snap)
	if len(p.artImages) != 1 {
		t.Errorf("art updates: want 1, got %d", len(p.artImages))
	}
}

func TestArtClearedOnReferenceRemoval(t *testing.T) {
	server, _ := artServer(t, false)
	p := &recordingPresenter{}
	r := newTestReconciler(p, nil, 50)

	r.apply(context.Background(), playingSnap("A", "X", server.URL+"/1.png"))
	before := len(r.History())

	r.apply(context.Background(), playingSnap("A", "X", ""))

	last, _ := p.lastArt()
	if last != nil {
		t.Error("art must be cleared when the reference goes absent")
	}
	if got := len(r.History()); got != before {
		t.Errorf("no history entry expected: want %d, got %d", before, got)
	}
}

func TestIdentityChangeForcesArtDespiteStableURL(t *testing.T) {
	server, hits := artServer(t, false)
	p := &recordingPresenter{}
	r := newTestReconciler(p, nil, 50)

	url := server.URL + "/generic.png"
	r.apply(context.Background(), playingSnap("A", "X", url))
	r.apply(context.Background(), playingSnap("B", "X", url))

	if got := hits.Load(); got != 2 {
		t.Errorf("art attempts: want 2 (title change re-keys art), got %d", got)
	}
	if got := len(r.History()); got != 2 {
		t.Errorf("history entries: want 2, got %d", got)
	}
}

func TestDrainProcessesFullBacklogInOrder(t *testing.T) {
	server, hits := artServer(t, false)
	p := &recordingPresenter{}

	snapshots := make(chan domain.Snapshot, 10)
	r := newTestReconciler(p, snapshots, 50)

	snap1 := playingSnap("A", "X", server.URL+"/1.png")
	snapshots <- snap1
	snapshots <- snap1
	snapshots <- playingSnap("B", "X", server.URL+"/1.png")

	if !r.drain(context.Background()) {
		t.Fatal("stream unexpectedly reported closed")
	}

	hist := r.History()
	if len(hist) != 2 {
		t.Fatalf("history entries: want 2, got %d", len(hist))
	}
	// Newest first
	if hist[0].Title != "B" || hist[1].Title != "A" {
		t.Errorf("history order wrong: %+v", hist)
	}
	if got := hits.Load(); got != 2 {
		t.Errorf("art attempts: want 2, got %d", got)
	}

	close(snapshots)
	if r.drain(context.Background()) {
		t.Error("drain must report a closed stream")
	}
}

func TestHistoryCapacityEvictsOldest(t *testing.T) {
	p := &recordingPresenter{}
	r := newTestReconciler(p, nil, 3)

	titles := []string{"t1", "t2", "t3", "t4", "t5"}
	for _, title := range titles {
		r.apply(context.Background(), playingSnap(title, "X", ""))
	}

	hist := r.History()
	if len(hist) != 3 {
		t.Fatalf("history length: want 3, got %d", len(hist))
	}
	for i, want := range []string{"t5", "t4", "t3"} {
		if hist[i].Title != want {
			t.Errorf("hist[%d]: want %s, got %s", i, want, hist[i].Title)
		}
	}
}

func TestPlaybackIconAndProgress(t *testing.T) {
	p := &recordingPresenter{}
	r := newTestReconciler(p, nil, 50)

	r.apply(context.Background(), domain.Snapshot{
		Title:       "A",
		Status:      domain.StatusPaused,
		Position:    30 * time.Second,
		HasPosition: true,
		Length:      60 * time.Second,
		HasLength:   true,
	})

	if p.icons[0] {
		t.Error("paused snapshot must not show the playing icon")
	}
	if p.progress[0] != 0.5 {
		t.Errorf("progress: want 0.5, got %v", p.progress[0])
	}
}

func TestRetryRecoversArt(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatal(err)
	}
	var failing atomic.Bool
	failing.Store(true)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failing.Load() {
			http.Error(w, "down", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(buf.Bytes())
	}))
	defer server.Close()

	p := &recordingPresenter{}
	tracker := artwork.NewTracker(zap.NewNop(), artwork.NewHTTPFetcher(zap.NewNop()),
		&artwork.DisplayBounds{}, time.Millisecond)
	r := NewReconciler(zap.NewNop(), p, nilResolver{}, tracker, nil,
		time.Millisecond, time.Millisecond, time.Millisecond, 50)

	r.apply(context.Background(), playingSnap("A", "X", server.URL+"/1.png"))
	if img, _ := p.lastArt(); img != nil {
		t.Fatal("first attempt should have failed and cleared art")
	}

	// Art host comes back; the retry tick recovers it
	failing.Store(false)
	time.Sleep(2 * time.Millisecond)
	r.retryArt(context.Background())

	last, _ := p.lastArt()
	if last == nil {
		t.Fatal("retry should have restored the art")
	}
}

func TestRunRefreshesPlayerChoices(t *testing.T) {
	p := &recordingPresenter{}
	snapshots := make(chan domain.Snapshot)
	r := newTestReconciler(p, snapshots, 50)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(p.choicesSnapshot()) >= 2 {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}
	cancel()
	<-done

	choices := p.choicesSnapshot()
	if len(choices) < 2 {
		t.Fatalf("player choices never refreshed: %d pushes", len(choices))
	}
	if choices[0][0] != "spotify" {
		t.Errorf("choices content: got %v", choices[0])
	}
}
