package process

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
)

// ErrGroupSignalUnsupported is returned by TerminateGroup on platforms whose
// process model has no group-signal semantics.
var ErrGroupSignalUnsupported = errors.New("process group signaling not supported on this platform")

// SpawnError indicates the executable could not be located or the OS-level
// start failed. It is surfaced to the caller; there is no automatic retry.
type SpawnError struct {
	Path string
	Err  error
}

func (e *SpawnError) Error() string { return fmt.Sprintf("spawn %s: %v", e.Path, e.Err) }
func (e *SpawnError) Unwrap() error { return e.Err }

// Handle owns one spawned child process. It pumps stdout/stderr as line
// events and delivers a terminal exit event carrying (code, signal); the exit
// event is guaranteed to be the last one observed, after which Events() is
// closed. The underlying OS handle is never exposed.
type Handle struct {
	spec   Spec
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	events chan Event

	mu        sync.Mutex
	stdinDone bool
	outCloser io.WriteCloser
	errCloser io.WriteCloser
}

// Start spawns the child described by spec and begins pumping its output.
// On non-Windows platforms the child becomes the leader of a new process
// group so the whole subtree can be signaled later.
func Start(spec Spec) (*Handle, error) {
	if _, err := os.Stat(spec.Path); err != nil {
		return nil, &SpawnError{Path: spec.Path, Err: err}
	}
	cmd := spec.BuildCommand()
	configureSysProcAttr(cmd)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, &SpawnError{Path: spec.Path, Err: err}
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &SpawnError{Path: spec.Path, Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, &SpawnError{Path: spec.Path, Err: err}
	}

	h := &Handle{spec: spec, cmd: cmd, stdin: stdin, events: make(chan Event, 64)}
	if spec.Log.Dir != "" || spec.Log.StdoutPath != "" || spec.Log.StderrPath != "" {
		if spec.Log.Dir != "" {
			_ = os.MkdirAll(spec.Log.Dir, 0o750)
		}
		outW, errW, _ := spec.Log.Writers(spec.Name)
		h.outCloser, h.errCloser = outW, errW
	}

	if err := cmd.Start(); err != nil {
		return nil, &SpawnError{Path: spec.Path, Err: err}
	}

	go h.pump(stdout, stderr)
	return h, nil
}

// Events returns the channel delivering output and exit events.
func (h *Handle) Events() <-chan Event { return h.events }

func (h *Handle) PID() int { return h.cmd.Process.Pid }

// CloseStdin closes the child's input stream. Idempotent.
func (h *Handle) CloseStdin() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stdinDone {
		return nil
	}
	h.stdinDone = true
	return h.stdin.Close()
}

// Terminate sends a termination signal to the process itself.
func (h *Handle) Terminate() error { return terminate(h.cmd.Process.Pid) }

// TerminateGroup signals the child's whole process group by negated group id.
// Returns ErrGroupSignalUnsupported where the platform has no group semantics.
func (h *Handle) TerminateGroup() error { return terminateGroup(h.cmd.Process.Pid) }

// Kill forcefully ends the process (and its group where supported).
func (h *Handle) Kill() error { return kill(h.cmd.Process.Pid) }

// GroupSignalingSupported reports whether this platform can terminate a whole
// process group in one signal. Resolved once at build time.
func GroupSignalingSupported() bool { return groupSignaling }

// pump relays both output streams line by line, then waits for the child and
// delivers the exit event last.
func (h *Handle) pump(stdout, stderr io.Reader) {
	var wg sync.WaitGroup
	wg.Add(2)
	go h.scan(stdout, EventStdout, h.outCloser, &wg)
	go h.scan(stderr, EventStderr, h.errCloser, &wg)
	wg.Wait()

	err := h.cmd.Wait()
	code, sig := exitStatus(h.cmd.ProcessState)
	h.closeWriters()
	h.events <- Event{Type: EventExit, Code: code, Signal: sig, Err: err}
	close(h.events)
}

func (h *Handle) scan(r io.Reader, t EventType, mirror io.Writer, wg *sync.WaitGroup) {
	defer wg.Done()
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if mirror != nil {
			_, _ = mirror.Write([]byte(line + "\n"))
		}
		h.events <- Event{Type: t, Line: line}
	}
}

func (h *Handle) closeWriters() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.outCloser != nil {
		_ = h.outCloser.Close()
		h.outCloser = nil
	}
	if h.errCloser != nil {
		_ = h.errCloser.Close()
		h.errCloser = nil
	}
}
