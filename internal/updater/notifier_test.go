package updater

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/loykin/appshell/internal/emitter"
	"github.com/loykin/appshell/internal/release"
	"github.com/loykin/appshell/internal/store"
)

type fakeSource struct {
	latest    release.Release
	latestErr error
	byTag     map[string]release.Release
	byTagErr  error
}

func (f *fakeSource) Latest(context.Context, string, string) (release.Release, error) {
	return f.latest, f.latestErr
}

func (f *fakeSource) ByTag(_ context.Context, _, _ string, tag string) (release.Release, error) {
	if f.byTagErr != nil {
		return release.Release{}, f.byTagErr
	}
	r, ok := f.byTag[tag]
	if !ok {
		return release.Release{}, errors.New("tag not found: " + tag)
	}
	return r, nil
}

type memKV struct {
	mu sync.Mutex
	m  map[string]string
}

func newMemKV() *memKV { return &memKV{m: make(map[string]string)} }

func (s *memKV) EnsureSchema(context.Context) error { return nil }
func (s *memKV) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[key]
	return v, ok, nil
}
func (s *memKV) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = value
	return nil
}
func (s *memKV) Close() error { return nil }

type emitted struct {
	event   string
	payload any
}

type recEmitter struct {
	mu   sync.Mutex
	evs  []emitted
	fail bool
}

func (r *recEmitter) Emit(event string, payload any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("emit failed")
	}
	r.evs = append(r.evs, emitted{event: event, payload: payload})
	return nil
}

func (r *recEmitter) byEvent(event string) []emitted {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []emitted
	for _, e := range r.evs {
		if e.event == event {
			out = append(out, e)
		}
	}
	return out
}

func TestFirstRunStoresVersionWithoutSignals(t *testing.T) {
	src := &fakeSource{latest: release.Release{Name: "1.2.0", HTMLURL: "https://example.com/r/1.2.0"}}
	kv := newMemKV()
	em := &recEmitter{}
	n := New(src, kv, em, "owner", "repo", "1.2.0")

	if err := n.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := em.byEvent(emitter.EventUpdateAvailable); len(got) != 0 {
		t.Fatalf("update_available should not fire when names match, got %+v", got)
	}
	if got := em.byEvent(emitter.EventShowReleaseNotes); len(got) != 0 {
		t.Fatalf("show_release_notes should not fire on first run, got %+v", got)
	}
	v, ok, _ := kv.Get(context.Background(), store.KeyAppVersion)
	if !ok || v != "1.2.0" {
		t.Fatalf("store should hold app_version=1.2.0, got %q ok=%v", v, ok)
	}
}

func TestUpgradeShowsReleaseNotesAndAdvancesMarker(t *testing.T) {
	src := &fakeSource{
		latest: release.Release{Name: "1.2.0", HTMLURL: "https://example.com/r/1.2.0"},
		byTag: map[string]release.Release{
			"v1.2.0": {Body: "notes for 1.2.0"},
		},
	}
	kv := newMemKV()
	_ = kv.Set(context.Background(), store.KeyAppVersion, "1.1.0")
	em := &recEmitter{}
	n := New(src, kv, em, "owner", "repo", "1.2.0")

	if err := n.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := em.byEvent(emitter.EventUpdateAvailable); len(got) != 0 {
		t.Fatalf("names equal, no update_available expected, got %+v", got)
	}
	notes := em.byEvent(emitter.EventShowReleaseNotes)
	if len(notes) != 1 {
		t.Fatalf("expected one show_release_notes, got %+v", notes)
	}
	p, ok := notes[0].payload.(emitter.ShowReleaseNotesPayload)
	if !ok || p.ReleaseNotes != "notes for 1.2.0" {
		t.Fatalf("unexpected payload %+v", notes[0].payload)
	}
	v, _, _ := kv.Get(context.Background(), store.KeyAppVersion)
	if v != "1.2.0" {
		t.Fatalf("marker should advance to 1.2.0, got %q", v)
	}
}

func TestStaleBinaryEmitsUpdateAvailableOnly(t *testing.T) {
	src := &fakeSource{latest: release.Release{Name: "1.3.0", HTMLURL: "https://example.com/r/1.3.0"}}
	kv := newMemKV()
	_ = kv.Set(context.Background(), store.KeyAppVersion, "1.2.0")
	em := &recEmitter{}
	n := New(src, kv, em, "owner", "repo", "1.2.0")

	if err := n.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	ups := em.byEvent(emitter.EventUpdateAvailable)
	if len(ups) != 1 {
		t.Fatalf("expected one update_available, got %+v", ups)
	}
	p, ok := ups[0].payload.(emitter.UpdateAvailablePayload)
	if !ok || p.DownloadURL != "https://example.com/r/1.3.0" {
		t.Fatalf("unexpected payload %+v", ups[0].payload)
	}
	if got := em.byEvent(emitter.EventShowReleaseNotes); len(got) != 0 {
		t.Fatalf("no show_release_notes expected, got %+v", got)
	}
}

// The comparison is deliberately a plain string inequality: a lexically
// different latest release triggers the signal even when it is older.
func TestLexicallyOlderLatestStillSignalsUpdate(t *testing.T) {
	src := &fakeSource{latest: release.Release{Name: "1.0.0", HTMLURL: "https://example.com/r/1.0.0"}}
	kv := newMemKV()
	_ = kv.Set(context.Background(), store.KeyAppVersion, "1.2.0")
	em := &recEmitter{}
	n := New(src, kv, em, "owner", "repo", "1.2.0")

	if err := n.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := em.byEvent(emitter.EventUpdateAvailable); len(got) != 1 {
		t.Fatalf("expected update_available for lexically different name, got %+v", got)
	}
}

func TestSecondPassNeverRepeatsReleaseNotes(t *testing.T) {
	src := &fakeSource{
		latest: release.Release{Name: "1.3.0", HTMLURL: "https://example.com/r/1.3.0"},
		byTag: map[string]release.Release{
			"v1.2.0": {Body: "notes for 1.2.0"},
		},
	}
	kv := newMemKV()
	_ = kv.Set(context.Background(), store.KeyAppVersion, "1.1.0")
	em := &recEmitter{}
	n := New(src, kv, em, "owner", "repo", "1.2.0")

	if err := n.Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := n.Run(context.Background()); err != nil {
		t.Fatalf("second run: %v", err)
	}

	if got := em.byEvent(emitter.EventUpdateAvailable); len(got) != 2 {
		t.Fatalf("update_available fires each pass while names differ, got %d", len(got))
	}
	if got := em.byEvent(emitter.EventShowReleaseNotes); len(got) != 1 {
		t.Fatalf("show_release_notes must fire at most once per version, got %d", len(got))
	}
}

func TestFetchFailureAbortsPassAndLeavesStoreUntouched(t *testing.T) {
	src := &fakeSource{latestErr: errors.New("network down")}
	kv := newMemKV()
	em := &recEmitter{}
	n := New(src, kv, em, "owner", "repo", "1.2.0")

	err := n.Run(context.Background())
	if err == nil {
		t.Fatal("expected error to surface for the caller to log")
	}
	if len(em.evs) != 0 {
		t.Fatalf("no signals expected on fetch failure, got %+v", em.evs)
	}
	if _, ok, _ := kv.Get(context.Background(), store.KeyAppVersion); ok {
		t.Fatal("store must stay untouched when the pass aborts")
	}
}

func TestTaggedFetchFailureLeavesMarkerForRetry(t *testing.T) {
	src := &fakeSource{
		latest:   release.Release{Name: "1.2.0"},
		byTagErr: errors.New("rate limited"),
	}
	kv := newMemKV()
	_ = kv.Set(context.Background(), store.KeyAppVersion, "1.1.0")
	em := &recEmitter{}
	n := New(src, kv, em, "owner", "repo", "1.2.0")

	if err := n.Run(context.Background()); err == nil {
		t.Fatal("expected tagged fetch failure to surface")
	}
	if got := em.byEvent(emitter.EventShowReleaseNotes); len(got) != 0 {
		t.Fatalf("no notes without a body, got %+v", got)
	}
	// marker unchanged, so the next application start retries the notes
	v, _, _ := kv.Get(context.Background(), store.KeyAppVersion)
	if v != "1.1.0" {
		t.Fatalf("marker must not advance on failure, got %q", v)
	}
}

func TestEmitterFailureDoesNotAbortPass(t *testing.T) {
	src := &fakeSource{latest: release.Release{Name: "9.9.9"}}
	kv := newMemKV()
	em := &recEmitter{fail: true}
	n := New(src, kv, em, "owner", "repo", "1.2.0")

	if err := n.Run(context.Background()); err != nil {
		t.Fatalf("emit failures are logged, not fatal: %v", err)
	}
	if v, ok, _ := kv.Get(context.Background(), store.KeyAppVersion); !ok || v != "1.2.0" {
		t.Fatalf("first-run write should still happen, got %q ok=%v", v, ok)
	}
}
