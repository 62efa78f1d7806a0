package emitter

import "log/slog"

// Outbound event names delivered to the UI layer.
const (
	EventUpdateAvailable  = "update_available"
	EventShowReleaseNotes = "show_release_notes"
)

// UpdateAvailablePayload accompanies EventUpdateAvailable.
type UpdateAvailablePayload struct {
	DownloadURL string `json:"downloadURL"`
}

// ShowReleaseNotesPayload accompanies EventShowReleaseNotes.
type ShowReleaseNotesPayload struct {
	ReleaseNotes string `json:"releaseNotes"`
}

// Emitter is the one-way channel from the core to the UI layer. Emit must
// not block on slow consumers.
type Emitter interface {
	Emit(event string, payload any) error
}

// LogEmitter writes signals to the application log. It stands in for the
// windowed-mode IPC bridge, which lives outside this module.
type LogEmitter struct{}

func (LogEmitter) Emit(event string, payload any) error {
	slog.Info("signal emitted", "event", event, "payload", payload)
	return nil
}
