package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/loykin/appshell/internal/history"
	"github.com/loykin/appshell/internal/logger"
	"github.com/loykin/appshell/internal/metrics"
	"github.com/loykin/appshell/internal/process"
)

// serverName is the backend executable shipped in the resources directory.
const serverName = "server"

// requestTracePrefix marks the backend's normal outbound-request trace on
// stderr; such lines are informational, not errors.
const requestTracePrefix = "Requesting"

// ErrAlreadyRunning is returned by Start while a previous session is live.
var ErrAlreadyRunning = errors.New("server already running")

// Config carries the fixed launch environment for the backend server.
type Config struct {
	ResourcesDir string        // packaged resources root containing the server binary
	StaticDir    string        // frontend assets served in headless mode; default <resources>/static
	Env          []string      // extra KEY=VALUE entries for the child
	Log          logger.Config // rotating file capture of child output
	StopWait     time.Duration // grace period before force kill on Stop; default 5s
}

// Supervisor owns zero-or-one Session. It starts the backend with
// mode-specific flags, classifies its output and termination, and guarantees
// the session is stoppable exactly once. It never restarts a crashed server;
// restart policy belongs to a higher layer.
type Supervisor struct {
	cfg  Config
	sink history.Sink // optional session history export

	mu      sync.Mutex
	session *Session
}

func New(cfg Config) *Supervisor {
	if cfg.StaticDir == "" {
		cfg.StaticDir = filepath.Join(cfg.ResourcesDir, "static")
	}
	if cfg.StopWait <= 0 {
		cfg.StopWait = 5 * time.Second
	}
	return &Supervisor{cfg: cfg}
}

// SetHistorySink attaches an optional sink receiving session start/exit
// events. Must be called before Start.
func (s *Supervisor) SetHistorySink(sink history.Sink) { s.sink = sink }

// ServerPath returns the platform-appropriate backend executable path under
// the resources directory.
func ServerPath(resourcesDir string) string {
	return filepath.Join(resourcesDir, serverName+exeSuffix)
}

// Start spawns the backend server for the given mode, appending extraFlags to
// the mode-specific defaults, and attaches the observers before any output
// can be missed. Spawn failures are logged and surfaced to the caller.
func (s *Supervisor) Start(mode Mode, extraFlags []string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != nil && !s.session.Exited() {
		return nil, ErrAlreadyRunning
	}

	flags := make([]string, 0, len(extraFlags)+2)
	if mode == ModeHeadless {
		flags = append(flags, "-html-static-dir", s.cfg.StaticDir)
	}
	flags = append(flags, extraFlags...)

	spec := process.Spec{
		Name: serverName,
		Path: ServerPath(s.cfg.ResourcesDir),
		Args: flags,
		Env:  s.cfg.Env,
		Log:  s.cfg.Log,
	}
	h, err := process.Start(spec)
	if err != nil {
		slog.Error("failed to spawn server", "path", spec.Path, "error", err)
		return nil, err
	}

	sess := newSession(h, mode, flags)
	s.session = sess
	metrics.IncStart(string(mode))
	s.record(history.Event{
		Type:       history.EventSessionStart,
		OccurredAt: time.Now(),
		Name:       serverName,
		PID:        sess.PID(),
		Mode:       string(mode),
	})
	slog.Info("server started", "pid", sess.PID(), "mode", mode, "flags", flags)

	go s.observe(sess)
	return sess, nil
}

// Stop terminates the live session: intentionalQuit is set before any signal,
// the whole process group is signaled where the platform supports it, stdin
// is closed, and the process itself is signaled. A second call on the same
// session is a no-op beyond an "already not running" log line. Stop waits up
// to the configured grace period for the exit event, then force kills.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	sess := s.session
	s.mu.Unlock()

	if sess == nil || !sess.requestQuit() {
		slog.Info("server already not running")
		return
	}

	if process.GroupSignalingSupported() {
		_ = sess.handle.TerminateGroup()
	}
	_ = sess.handle.CloseStdin()
	_ = sess.handle.Terminate()
	slog.Info("server stop requested", "pid", sess.PID())

	select {
	case <-sess.Done():
	case <-time.After(s.cfg.StopWait):
		slog.Warn("server did not exit in time, killing", "pid", sess.PID())
		_ = sess.handle.Kill()
		select {
		case <-sess.Done():
		case <-time.After(200 * time.Millisecond):
			// best-effort
		}
	}
}

// Session returns the current session, or nil when none was started.
func (s *Supervisor) Session() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

// observe consumes the session's event stream until the terminal exit event.
// stdout is informational; stderr is informational only for the backend's
// request trace lines; the exit event is classified by intentionalQuit.
func (s *Supervisor) observe(sess *Session) {
	for ev := range sess.handle.Events() {
		switch ev.Type {
		case process.EventStdout:
			slog.Info("server stdout", "line", ev.Line)
			metrics.IncOutputLine("stdout")
		case process.EventStderr:
			if strings.Contains(ev.Line, requestTracePrefix) {
				slog.Info("server stderr", "line", ev.Line)
				metrics.IncOutputLine("request_trace")
			} else {
				slog.Error("server stderr", "line", ev.Line)
				metrics.IncOutputLine("error")
			}
		case process.EventExit:
			s.handleExit(sess, ev)
		}
	}
}

func (s *Supervisor) handleExit(sess *Session, ev process.Event) {
	intentional := sess.IntentionalQuit()
	if intentional {
		slog.Info("server exited as requested", "code", ev.Code, "signal", ev.Signal)
		metrics.IncExit("intentional")
	} else {
		slog.Error("server exited unexpectedly", "code", ev.Code, "signal", ev.Signal)
		metrics.IncExit("crash")
	}
	s.record(history.Event{
		Type:        history.EventSessionExit,
		OccurredAt:  time.Now(),
		Name:        serverName,
		PID:         sess.PID(),
		Mode:        string(sess.Mode()),
		ExitCode:    ev.Code,
		Signal:      ev.Signal,
		Intentional: intentional,
	})
	// marked last so Done() waiters observe the classified exit already logged
	sess.markExited()
}

func (s *Supervisor) record(e history.Event) {
	if s.sink == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.sink.Send(ctx, e); err != nil {
		slog.Warn("failed to record session history", "event", e.Type, "error", err)
	}
}
