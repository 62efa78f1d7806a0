//go:build windows

package process

import (
	"os"
	"os/exec"
	"syscall"
)

const groupSignaling = false

// Windows creation flags
const createNewProcessGroup = 0x00000200

var (
	kernel32             = syscall.NewLazyDLL("kernel32.dll")
	procOpenProcess      = kernel32.NewProc("OpenProcess")
	procTerminateProcess = kernel32.NewProc("TerminateProcess")
	procCloseHandle      = kernel32.NewProc("CloseHandle")
)

const processTerminate = 0x0001

// configureSysProcAttr creates a new process group for the child. Group-wide
// signaling is still unavailable on Windows; only the process itself can be
// terminated.
func configureSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: createNewProcessGroup}
}

// terminate ends a Windows process by PID via TerminateProcess. A process
// that is already gone counts as successfully terminated; rapid exit races
// are common here.
func terminate(pid int) error {
	if pid <= 0 {
		return nil
	}
	handle, _, err := procOpenProcess.Call(uintptr(processTerminate), uintptr(0), uintptr(uint32(pid)))
	if handle == 0 {
		_ = err
		return nil
	}
	defer func() { _, _, _ = procCloseHandle.Call(handle) }()
	ret, _, err := procTerminateProcess.Call(handle, uintptr(1))
	if ret == 0 {
		return err
	}
	return nil
}

func terminateGroup(pid int) error { return ErrGroupSignalUnsupported }

func kill(pid int) error { return terminate(pid) }

func exitStatus(state *os.ProcessState) (int, string) {
	if state == nil {
		return -1, ""
	}
	return state.ExitCode(), ""
}
