package updater

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/loykin/appshell/internal/emitter"
	"github.com/loykin/appshell/internal/metrics"
	"github.com/loykin/appshell/internal/release"
	"github.com/loykin/appshell/internal/store"
)

// Notifier runs the one-shot version-check / release-notes pass. It compares
// the running application version against the latest published release and
// against the persisted last-seen-version marker, and emits at most two
// distinct signals per run: update_available and show_release_notes.
//
// Release-notes notification for a given version fires at most once across
// the lifetime of the store, because the only write that advances the marker
// happens immediately after firing.
type Notifier struct {
	src     release.Source
	kv      store.KV
	emit    emitter.Emitter
	owner   string
	repo    string
	version string // running application version, ground truth
}

func New(src release.Source, kv store.KV, emit emitter.Emitter, owner, repo, version string) *Notifier {
	return &Notifier{src: src, kv: kv, emit: emit, owner: owner, repo: repo, version: version}
}

// Run executes a single best-effort pass. Any fetch or store failure aborts
// the remaining steps; partial progress is acceptable and never rolled back,
// since the pass compares against persisted state and is safe to re-run on
// the next application start. The caller is expected to log the returned
// error; nothing here is user-visible beyond the emitted signals.
func (n *Notifier) Run(ctx context.Context) error {
	latest, err := n.src.Latest(ctx, n.owner, n.repo)
	if err != nil {
		metrics.IncUpdateCheck("fetch_failure")
		return fmt.Errorf("fetch latest release: %w", err)
	}

	// Plain string inequality, not a semver ordering: a lexically different
	// latest release name triggers the signal even when it is older.
	if latest.Name != n.version {
		if err := n.emit.Emit(emitter.EventUpdateAvailable, emitter.UpdateAvailablePayload{DownloadURL: latest.HTMLURL}); err != nil {
			slog.Warn("failed to emit update signal", "error", err)
		}
		metrics.IncNotification(emitter.EventUpdateAvailable)
	}

	stored, ok, err := n.kv.Get(ctx, store.KeyAppVersion)
	if err != nil {
		metrics.IncUpdateCheck("store_failure")
		return fmt.Errorf("read stored version: %w", err)
	}
	if !ok {
		// First run: remember the current version, show nothing.
		if err := n.kv.Set(ctx, store.KeyAppVersion, n.version); err != nil {
			metrics.IncUpdateCheck("store_failure")
			return fmt.Errorf("store initial version: %w", err)
		}
		metrics.IncUpdateCheck("first_run")
		return nil
	}

	if stored != n.version {
		tagged, err := n.src.ByTag(ctx, n.owner, n.repo, "v"+n.version)
		if err != nil {
			metrics.IncUpdateCheck("fetch_failure")
			return fmt.Errorf("fetch release notes for v%s: %w", n.version, err)
		}
		if err := n.emit.Emit(emitter.EventShowReleaseNotes, emitter.ShowReleaseNotesPayload{ReleaseNotes: tagged.Body}); err != nil {
			slog.Warn("failed to emit release notes signal", "error", err)
		}
		metrics.IncNotification(emitter.EventShowReleaseNotes)
		// Advance the marker only after firing, so the notes are shown at
		// most once per version transition.
		if err := n.kv.Set(ctx, store.KeyAppVersion, n.version); err != nil {
			metrics.IncUpdateCheck("store_failure")
			return fmt.Errorf("advance stored version: %w", err)
		}
	}

	metrics.IncUpdateCheck("ok")
	return nil
}
