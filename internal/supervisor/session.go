package supervisor

import (
	"sync"

	"github.com/loykin/appshell/internal/process"
)

// Mode selects how the backend server is launched. Windowed and headless
// differ only in the flags passed; headless is paired with a browser opened
// at the local port by the caller.
type Mode string

const (
	ModeWindowed Mode = "windowed"
	ModeHeadless Mode = "headless"
)

// State is the observable lifecycle position of a session.
type State string

const (
	StateRunning    State = "running"
	StateExiting    State = "exiting"
	StateCrashed    State = "crashed"
	StateTerminated State = "terminated"
)

// Session is one supervised lifetime of the backend server, from start to
// observed exit. At most one live Session exists; it is exclusively owned by
// the Supervisor and never exposes the underlying OS handle.
type Session struct {
	handle *process.Handle
	mode   Mode
	flags  []string

	mu              sync.Mutex
	intentionalQuit bool
	hasExited       bool
	done            chan struct{}
}

func newSession(h *process.Handle, mode Mode, flags []string) *Session {
	return &Session{handle: h, mode: mode, flags: flags, done: make(chan struct{})}
}

func (s *Session) Mode() Mode      { return s.mode }
func (s *Session) Flags() []string { return append([]string(nil), s.flags...) }
func (s *Session) PID() int        { return s.handle.PID() }

// Done is closed once the exit event has been observed. It is the last
// observation for the session.
func (s *Session) Done() <-chan struct{} { return s.done }

// requestQuit flips intentionalQuit exactly once. The second caller gets
// false and must not signal the process again.
func (s *Session) requestQuit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.intentionalQuit || s.hasExited {
		return false
	}
	s.intentionalQuit = true
	return true
}

func (s *Session) IntentionalQuit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.intentionalQuit
}

func (s *Session) Exited() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasExited
}

// markExited flips hasExited exactly once and releases Done waiters.
func (s *Session) markExited() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hasExited {
		return
	}
	s.hasExited = true
	close(s.done)
}

// State derives the lifecycle position from the quit/exit flags.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.hasExited && s.intentionalQuit:
		return StateTerminated
	case s.hasExited:
		return StateCrashed
	case s.intentionalQuit:
		return StateExiting
	default:
		return StateRunning
	}
}
