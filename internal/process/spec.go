package process

import (
	"os"
	"os/exec"

	"github.com/loykin/appshell/internal/logger"
)

// Spec describes the child process to launch. The executable is invoked
// directly; no shell is involved.
type Spec struct {
	Name    string        // logical name, used for log file naming
	Path    string        // path to the executable
	Args    []string      // positional flags, passed verbatim
	WorkDir string        // optional working dir
	Env     []string      // optional extra KEY=VALUE entries
	Log     logger.Config // optional rotating file capture of child output
}

// BuildCommand constructs an *exec.Cmd for the spec.
func (s *Spec) BuildCommand() *exec.Cmd {
	// #nosec G204 -- path and args come from packaged resources and config
	cmd := exec.Command(s.Path, s.Args...)
	if s.WorkDir != "" {
		cmd.Dir = s.WorkDir
	}
	if len(s.Env) > 0 {
		cmd.Env = append(os.Environ(), s.Env...)
	}
	return cmd
}
